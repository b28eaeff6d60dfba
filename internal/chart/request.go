package chart

import "fmt"

// Request is the complete configuration of one chart for one interaction.
// Zero values mean "use the default": first column for axes, the table name
// for the title, the configured height, width and row count. An empty Color
// disables color-by.
type Request struct {
	Kind           Kind           `json:"kind" yaml:"kind"`
	Dimensionality Dimensionality `json:"dimensionality,omitempty" yaml:"dimensionality,omitempty"`
	X              string         `json:"x,omitempty" yaml:"x,omitempty"`
	Y              string         `json:"y,omitempty" yaml:"y,omitempty"`
	Z              string         `json:"z,omitempty" yaml:"z,omitempty"`
	Color          string         `json:"color,omitempty" yaml:"color,omitempty"`
	Title          string         `json:"title,omitempty" yaml:"title,omitempty"`
	Height         int            `json:"height,omitempty" yaml:"height,omitempty"`
	Width          int            `json:"width,omitempty" yaml:"width,omitempty"`
	Names          string         `json:"names,omitempty" yaml:"names,omitempty"`
	Values         string         `json:"values,omitempty" yaml:"values,omitempty"`
	Rows           int            `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// Limits holds the bounds and defaults applied by the resolver.
type Limits struct {
	DefaultHeight int `json:"defaultHeight"`
	MinHeight     int `json:"minHeight"`
	MaxHeight     int `json:"maxHeight"`
	DefaultWidth  int `json:"defaultWidth"`
	MinWidth      int `json:"minWidth"`
	MaxWidth      int `json:"maxWidth"`
	DefaultRows   int `json:"defaultRows"`
	// MaxDefaultCells is the largest table (rows x columns) the default view
	// shows in full. Larger tables degrade to a table of DefaultRows rows.
	MaxDefaultCells int `json:"maxDefaultCells"`
}

// DefaultLimits returns the bounds of the page sliders.
func DefaultLimits() Limits {
	return Limits{
		DefaultHeight:   800,
		MinHeight:       400,
		MaxHeight:       1200,
		DefaultWidth:    1350,
		MinWidth:        200,
		MaxWidth:        1500,
		DefaultRows:     5,
		MaxDefaultCells: 2_000_000,
	}
}

// Validate rejects inconsistent bounds.
func (l Limits) Validate() error {
	if l.MinHeight < 1 || l.MinHeight > l.MaxHeight {
		return fmt.Errorf("height bounds [%d, %d] are invalid", l.MinHeight, l.MaxHeight)
	}
	if l.DefaultHeight < l.MinHeight || l.DefaultHeight > l.MaxHeight {
		return fmt.Errorf("default height %d is outside [%d, %d]", l.DefaultHeight, l.MinHeight, l.MaxHeight)
	}
	if l.MinWidth < 1 || l.MinWidth > l.MaxWidth {
		return fmt.Errorf("width bounds [%d, %d] are invalid", l.MinWidth, l.MaxWidth)
	}
	if l.DefaultWidth < l.MinWidth || l.DefaultWidth > l.MaxWidth {
		return fmt.Errorf("default width %d is outside [%d, %d]", l.DefaultWidth, l.MinWidth, l.MaxWidth)
	}
	if l.DefaultRows < 1 {
		return fmt.Errorf("default table rows must be at least 1, got %d", l.DefaultRows)
	}
	if l.MaxDefaultCells < 1 {
		return fmt.Errorf("default view cell limit must be positive, got %d", l.MaxDefaultCells)
	}
	return nil
}
