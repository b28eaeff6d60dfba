package chart

import (
	"github.com/visualiza/backend/internal/models"
)

// shape selects a constructor.
type shape struct {
	kind    Kind
	dim     Dimensionality
	colored bool
}

// axes is a request after defaults were applied and columns were checked.
type axes struct {
	kind          Kind
	x, y, z       string
	color         string
	title         string
	height, width int
}

type constructor func(a axes) RenderCall

func xy2D(a axes) RenderCall {
	return XYCall{Chart: a.kind, X: a.x, Y: a.y, Title: a.title, Height: a.height, Width: a.width}
}

func xy2DColored(a axes) RenderCall {
	return XYCall{Chart: a.kind, X: a.x, Y: a.y, Color: a.color, Title: a.title, Height: a.height, Width: a.width}
}

func scatter3D(a axes) RenderCall {
	return Scatter3DCall{Source: a.kind, X: a.x, Y: a.y, Z: a.z, Title: a.title, Height: a.height, Width: a.width}
}

func scatter3DColored(a axes) RenderCall {
	return Scatter3DCall{Source: a.kind, X: a.x, Y: a.y, Z: a.z, Color: a.color, Title: a.title, Height: a.height, Width: a.width}
}

// constructors covers every spatial shape. Bar and line charts have no
// three-axis form of their own and become 3D scatters.
var constructors = map[shape]constructor{
	{KindBar, Dim2D, false}:     xy2D,
	{KindBar, Dim2D, true}:      xy2DColored,
	{KindBar, Dim3D, false}:     scatter3D,
	{KindBar, Dim3D, true}:      scatter3DColored,
	{KindLine, Dim2D, false}:    xy2D,
	{KindLine, Dim2D, true}:     xy2DColored,
	{KindLine, Dim3D, false}:    scatter3D,
	{KindLine, Dim3D, true}:     scatter3DColored,
	{KindScatter, Dim2D, false}: xy2D,
	{KindScatter, Dim2D, true}:  xy2DColored,
	{KindScatter, Dim3D, false}: scatter3D,
	{KindScatter, Dim3D, true}:  scatter3DColored,
}

// Resolver turns requests into render calls. It holds no per-request state.
type Resolver struct {
	limits Limits
}

// NewResolver creates a resolver. Invalid limits fall back to DefaultLimits.
func NewResolver(limits Limits) *Resolver {
	if limits.Validate() != nil {
		limits = DefaultLimits()
	}
	return &Resolver{limits: limits}
}

// Limits returns the bounds in effect.
func (r *Resolver) Limits() Limits {
	return r.limits
}

// Resolve checks req against table and returns the render call for it.
// Failures are *ConfigurationError values.
func (r *Resolver) Resolve(table *models.Table, req Request) (RenderCall, error) {
	if table == nil {
		return nil, configErr(req.Kind, "", "no table loaded")
	}

	switch req.Kind {
	case KindTable:
		return r.resolveTable(table, req)
	case KindDefault:
		return r.resolveDefault(table)
	case KindPie:
		return r.resolvePie(table, req)
	case KindBar, KindLine, KindScatter:
		return r.resolveSpatial(table, req)
	case "":
		return nil, configErr("", "kind", "chart kind is required")
	default:
		return nil, configErr(req.Kind, "kind", "unknown chart kind")
	}
}

func (r *Resolver) resolveTable(table *models.Table, req Request) (RenderCall, error) {
	if table.NumRows() == 0 {
		return nil, configErr(KindTable, "rows", "table has no rows to show")
	}
	rows := req.Rows
	switch {
	case rows == 0:
		rows = r.limits.DefaultRows
	case rows < 1:
		return nil, configErr(KindTable, "rows", "must be at least 1, got %d", rows)
	}
	if rows > table.NumRows() {
		rows = table.NumRows()
	}
	return TableCall{Rows: rows}, nil
}

func (r *Resolver) resolveDefault(table *models.Table) (RenderCall, error) {
	if table.NumRows()*table.NumCols() <= r.limits.MaxDefaultCells {
		return FrameCall{}, nil
	}
	rows := r.limits.DefaultRows
	if rows > table.NumRows() {
		rows = table.NumRows()
	}
	return TableCall{Rows: rows, Degraded: true}, nil
}

func (r *Resolver) resolvePie(table *models.Table, req Request) (RenderCall, error) {
	names := req.Names
	if names == "" {
		candidates := table.NonNumericColumns()
		if len(candidates) == 0 {
			return nil, configErr(KindPie, "names", "table has no non-numeric column to slice by")
		}
		names = candidates[0]
	}
	values := req.Values
	if values == "" {
		candidates := table.NumericColumns()
		if len(candidates) == 0 {
			return nil, configErr(KindPie, "values", "table has no numeric column to size slices by")
		}
		values = candidates[0]
	}

	if err := requireColumn(table, KindPie, "names", names); err != nil {
		return nil, err
	}
	if err := requireColumn(table, KindPie, "values", values); err != nil {
		return nil, err
	}
	if table.ColumnKind(names).IsNumeric() {
		return nil, configErr(KindPie, "names", "column %q is numeric; names must be a non-numeric column", names)
	}
	if !table.ColumnKind(values).IsNumeric() {
		return nil, configErr(KindPie, "values", "column %q is not numeric; values must be a numeric column", values)
	}

	height, width, err := r.measurements(KindPie, req)
	if err != nil {
		return nil, err
	}

	return PieCall{
		Names:  names,
		Values: values,
		Title:  r.title(table, req),
		Height: height,
		Width:  width,
	}, nil
}

func (r *Resolver) resolveSpatial(table *models.Table, req Request) (RenderCall, error) {
	dim := req.Dimensionality
	if dim == "" {
		dim = Dim2D
	}
	if dim != Dim2D && dim != Dim3D {
		return nil, configErr(req.Kind, "dimensionality", "must be 2d or 3d, got %q", dim)
	}
	if table.NumCols() == 0 {
		return nil, configErr(req.Kind, "", "table has no columns")
	}

	first := table.Columns[0]
	a := axes{
		kind:  req.Kind,
		x:     orDefault(req.X, first),
		y:     orDefault(req.Y, first),
		color: req.Color,
		title: r.title(table, req),
	}
	if err := requireColumn(table, req.Kind, "x", a.x); err != nil {
		return nil, err
	}
	if err := requireColumn(table, req.Kind, "y", a.y); err != nil {
		return nil, err
	}
	if dim == Dim3D {
		a.z = orDefault(req.Z, first)
		if err := requireColumn(table, req.Kind, "z", a.z); err != nil {
			return nil, err
		}
	}
	if a.color != "" {
		if err := requireColumn(table, req.Kind, "color", a.color); err != nil {
			return nil, err
		}
	}

	var err error
	a.height, a.width, err = r.measurements(req.Kind, req)
	if err != nil {
		return nil, err
	}

	build, ok := constructors[shape{kind: req.Kind, dim: dim, colored: a.color != ""}]
	if !ok {
		return nil, configErr(req.Kind, "", "no %s %s chart", dim, req.Kind)
	}
	return build(a), nil
}

func (r *Resolver) measurements(kind Kind, req Request) (int, int, error) {
	height := req.Height
	if height == 0 {
		height = r.limits.DefaultHeight
	}
	if height < r.limits.MinHeight || height > r.limits.MaxHeight {
		return 0, 0, configErr(kind, "height", "%d is outside [%d, %d]", height, r.limits.MinHeight, r.limits.MaxHeight)
	}
	width := req.Width
	if width == 0 {
		width = r.limits.DefaultWidth
	}
	if width < r.limits.MinWidth || width > r.limits.MaxWidth {
		return 0, 0, configErr(kind, "width", "%d is outside [%d, %d]", width, r.limits.MinWidth, r.limits.MaxWidth)
	}
	return height, width, nil
}

func (r *Resolver) title(table *models.Table, req Request) string {
	if req.Title != "" {
		return req.Title
	}
	return table.Name
}

func requireColumn(table *models.Table, kind Kind, field, name string) error {
	if !table.HasColumn(name) {
		return configErr(kind, field, "column %q does not exist", name)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
