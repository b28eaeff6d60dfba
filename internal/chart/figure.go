package chart

import (
	"fmt"

	"github.com/visualiza/backend/internal/models"
)

// Figure is a plotly.js figure: the page passes it to Plotly.newPlot as is.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is the subset of plotly trace attributes the charts use.
type Trace struct {
	Type   string       `json:"type"`
	Name   string       `json:"name,omitempty"`
	Mode   string       `json:"mode,omitempty"`
	X      []any        `json:"x,omitempty"`
	Y      []any        `json:"y,omitempty"`
	Z      []any        `json:"z,omitempty"`
	Labels []any        `json:"labels,omitempty"`
	Values []any        `json:"values,omitempty"`
	Marker *Marker      `json:"marker,omitempty"`
	Header *TableHeader `json:"header,omitempty"`
	Cells  *TableCells  `json:"cells,omitempty"`
}

// Marker colors the marks of a trace. Color is a constant or one value per point.
type Marker struct {
	Color     any  `json:"color,omitempty"`
	ShowScale bool `json:"showscale,omitempty"`
}

type TableHeader struct {
	Values []string `json:"values"`
}

// TableCells holds the table body column by column.
type TableCells struct {
	Values [][]any `json:"values"`
}

type Layout struct {
	Title       Text   `json:"title"`
	Height      int    `json:"height,omitempty"`
	Width       int    `json:"width,omitempty"`
	XAxis       *Axis  `json:"xaxis,omitempty"`
	YAxis       *Axis  `json:"yaxis,omitempty"`
	Scene       *Scene `json:"scene,omitempty"`
	BarMode     string `json:"barmode,omitempty"`
	LegendTitle *Text  `json:"legend_title,omitempty"`
}

type Text struct {
	Text string `json:"text"`
}

type Axis struct {
	Title Text `json:"title"`
}

type Scene struct {
	XAxis Axis `json:"xaxis"`
	YAxis Axis `json:"yaxis"`
	ZAxis Axis `json:"zaxis"`
}

// BuildFigure draws a render call from the table it was resolved against.
func BuildFigure(table *models.Table, call RenderCall) (*Figure, error) {
	switch c := call.(type) {
	case TableCall:
		return tableFigure(table.Head(c.Rows)), nil
	case FrameCall:
		return tableFigure(table), nil
	case XYCall:
		return xyFigure(table, c)
	case Scatter3DCall:
		return scatter3DFigure(table, c)
	case PieCall:
		return pieFigure(table, c)
	default:
		return nil, fmt.Errorf("unsupported render call %T", call)
	}
}

func tableFigure(t *models.Table) *Figure {
	cells := make([][]any, t.NumCols())
	for c := range t.Columns {
		col := make([]any, t.NumRows())
		for r, row := range t.Rows {
			if c < len(row) {
				col[r] = row[c]
			}
		}
		cells[c] = col
	}
	return &Figure{
		Data: []Trace{{
			Type:   "table",
			Header: &TableHeader{Values: append([]string(nil), t.Columns...)},
			Cells:  &TableCells{Values: cells},
		}},
		Layout: Layout{Title: Text{Text: t.Name}},
	}
}

// group is the subset of rows sharing one color value.
type group struct {
	name string
	rows []int
}

// colorGroups partitions rows by the display value of the color column in
// order of first appearance.
func colorGroups(values []any) []group {
	var groups []group
	index := make(map[string]int)
	for i, v := range values {
		name := fmt.Sprint(v)
		g, ok := index[name]
		if !ok {
			g = len(groups)
			index[name] = g
			groups = append(groups, group{name: name})
		}
		groups[g].rows = append(groups[g].rows, i)
	}
	return groups
}

func pick(values []any, rows []int) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}

// columns fetches the named columns; color may be empty.
func columns(table *models.Table, names ...string) ([][]any, error) {
	out := make([][]any, len(names))
	for i, n := range names {
		if n == "" {
			continue
		}
		col, err := table.Column(n)
		if err != nil {
			return nil, err
		}
		out[i] = col
	}
	return out, nil
}

func traceStyle(kind Kind) (typ, mode string) {
	switch kind {
	case KindBar:
		return "bar", ""
	case KindLine:
		return "scatter", "lines"
	default:
		return "scatter", "markers"
	}
}

func xyFigure(table *models.Table, c XYCall) (*Figure, error) {
	cols, err := columns(table, c.X, c.Y, c.Color)
	if err != nil {
		return nil, err
	}
	xs, ys, colors := cols[0], cols[1], cols[2]
	typ, mode := traceStyle(c.Chart)

	fig := &Figure{Layout: Layout{
		Title:  Text{Text: c.Title},
		Height: c.Height,
		Width:  c.Width,
		XAxis:  &Axis{Title: Text{Text: c.X}},
		YAxis:  &Axis{Title: Text{Text: c.Y}},
	}}
	if c.Chart == KindBar {
		fig.Layout.BarMode = "relative"
	}

	switch {
	case c.Color == "":
		fig.Data = []Trace{{Type: typ, Mode: mode, X: xs, Y: ys}}
	case models.KindOf(colors).IsNumeric():
		// numeric color columns are a continuous scale, not groups
		fig.Data = []Trace{{Type: typ, Mode: mode, X: xs, Y: ys, Marker: &Marker{Color: colors, ShowScale: true}}}
	default:
		for _, g := range colorGroups(colors) {
			fig.Data = append(fig.Data, Trace{
				Type: typ,
				Mode: mode,
				Name: g.name,
				X:    pick(xs, g.rows),
				Y:    pick(ys, g.rows),
			})
		}
		fig.Layout.LegendTitle = &Text{Text: c.Color}
	}
	return fig, nil
}

func scatter3DFigure(table *models.Table, c Scatter3DCall) (*Figure, error) {
	cols, err := columns(table, c.X, c.Y, c.Z, c.Color)
	if err != nil {
		return nil, err
	}
	xs, ys, zs, colors := cols[0], cols[1], cols[2], cols[3]

	fig := &Figure{Layout: Layout{
		Title:  Text{Text: c.Title},
		Height: c.Height,
		Width:  c.Width,
		Scene: &Scene{
			XAxis: Axis{Title: Text{Text: c.X}},
			YAxis: Axis{Title: Text{Text: c.Y}},
			ZAxis: Axis{Title: Text{Text: c.Z}},
		},
	}}

	switch {
	case c.Color == "":
		fig.Data = []Trace{{Type: "scatter3d", Mode: "markers", X: xs, Y: ys, Z: zs}}
	case models.KindOf(colors).IsNumeric():
		fig.Data = []Trace{{Type: "scatter3d", Mode: "markers", X: xs, Y: ys, Z: zs,
			Marker: &Marker{Color: colors, ShowScale: true}}}
	default:
		for _, g := range colorGroups(colors) {
			fig.Data = append(fig.Data, Trace{
				Type: "scatter3d",
				Mode: "markers",
				Name: g.name,
				X:    pick(xs, g.rows),
				Y:    pick(ys, g.rows),
				Z:    pick(zs, g.rows),
			})
		}
		fig.Layout.LegendTitle = &Text{Text: c.Color}
	}
	return fig, nil
}

// pieFigure sums values per name. Slices keep the order of first appearance.
func pieFigure(table *models.Table, c PieCall) (*Figure, error) {
	cols, err := columns(table, c.Names, c.Values)
	if err != nil {
		return nil, err
	}
	names, values := cols[0], cols[1]

	var labels []any
	var sums []float64
	for _, g := range colorGroups(names) {
		labels = append(labels, names[g.rows[0]])
		total := 0.0
		for _, r := range g.rows {
			if v, ok := models.ToFloat(values[r]); ok {
				total += v
			}
		}
		sums = append(sums, total)
	}

	slices := make([]any, len(sums))
	for i, s := range sums {
		slices[i] = s
	}
	return &Figure{
		Data: []Trace{{Type: "pie", Labels: labels, Values: slices}},
		Layout: Layout{
			Title:  Text{Text: c.Title},
			Height: c.Height,
			Width:  c.Width,
		},
	}, nil
}
