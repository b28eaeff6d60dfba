// Package chart turns chart requests into render calls and figures.
//
// A Request is an immutable value holding everything one chart needs. The
// Resolver checks it against a table, applies defaults and selects one
// constructor per (kind, dimensionality, color) shape. Pass runs every
// selected kind of one interaction in canonical order.
package chart

import (
	"fmt"
	"strings"
)

// Kind is a chart kind.
type Kind string

const (
	KindBar     Kind = "bar"
	KindLine    Kind = "line"
	KindPie     Kind = "pie"
	KindScatter Kind = "scatter"
	KindTable   Kind = "table"
	KindDefault Kind = "default"
)

// CanonicalOrder is the order in which selected kinds are rendered,
// independent of the order they were selected in.
var CanonicalOrder = []Kind{KindBar, KindLine, KindPie, KindScatter, KindTable, KindDefault}

var kindAliases = map[string]Kind{
	"bar":          KindBar,
	"bar graph":    KindBar,
	"line":         KindLine,
	"line graph":   KindLine,
	"pie":          KindPie,
	"pie chart":    KindPie,
	"scatter":      KindScatter,
	"scatter plot": KindScatter,
	"table":        KindTable,
	"default":      KindDefault,
}

// ParseKind accepts kind names case-insensitively, including the widget
// labels of the page ("Bar Graph", "Scatter Plot", ...).
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", &ConfigurationError{Field: "kind", Reason: fmt.Sprintf("unknown chart kind %q", s)}
	}
	return k, nil
}

// UnmarshalText lets request documents name kinds by alias.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// rank returns the position of k in CanonicalOrder, or -1.
func (k Kind) rank() int {
	for i, c := range CanonicalOrder {
		if c == k {
			return i
		}
	}
	return -1
}

// Spatial reports whether the kind has x/y axes and a dimensionality switch.
func (k Kind) Spatial() bool {
	return k == KindBar || k == KindLine || k == KindScatter
}

// Dimensionality is the number of spatial axes of bar, line and scatter charts.
type Dimensionality string

const (
	Dim2D Dimensionality = "2d"
	Dim3D Dimensionality = "3d"
)

// ParseDimensionality accepts "2d"/"3d" in any case. Empty means 2D.
func ParseDimensionality(s string) (Dimensionality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "2d":
		return Dim2D, nil
	case "3d":
		return Dim3D, nil
	}
	return "", &ConfigurationError{Field: "dimensionality", Reason: fmt.Sprintf("must be 2D or 3D, got %q", s)}
}

func (d *Dimensionality) UnmarshalText(text []byte) error {
	parsed, err := ParseDimensionality(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
