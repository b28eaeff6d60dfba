package chart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visualiza/backend/internal/models"
)

// abTable is the table of data.csv "a,b\n1,2\n3,4".
func abTable() *models.Table {
	t := models.NewTable("data", []string{"a", "b"})
	t.Rows = append(t.Rows, []any{int64(1), int64(2)}, []any{int64(3), int64(4)})
	return t
}

// salesTable mixes numeric and non-numeric columns.
func salesTable() *models.Table {
	t := models.NewTable("sales", []string{"region", "units", "price", "note"})
	t.Rows = append(t.Rows,
		[]any{"north", int64(3), 1.5, ""},
		[]any{"south", int64(5), 2.0, "late"},
		[]any{"north", int64(2), 1.0, ""},
	)
	return t
}

func isConfigErr(t *testing.T, err error) *ConfigurationError {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	return ce
}

func TestResolve_BarDefaults(t *testing.T) {
	r := NewResolver(DefaultLimits())

	call, err := r.Resolve(abTable(), Request{Kind: KindBar, Dimensionality: Dim2D, X: "a", Y: "b"})
	require.NoError(t, err)
	assert.Equal(t, XYCall{Chart: KindBar, X: "a", Y: "b", Title: "data", Height: 800, Width: 1350}, call)
}

func TestResolve_SpatialShapes(t *testing.T) {
	r := NewResolver(DefaultLimits())
	table := salesTable()

	tests := []struct {
		name string
		req  Request
		want RenderCall
	}{
		{
			name: "axes default to the first column",
			req:  Request{Kind: KindLine},
			want: XYCall{Chart: KindLine, X: "region", Y: "region", Title: "sales", Height: 800, Width: 1350},
		},
		{
			name: "colored 2D scatter",
			req:  Request{Kind: KindScatter, X: "units", Y: "price", Color: "region", Title: "t", Height: 400, Width: 200},
			want: XYCall{Chart: KindScatter, X: "units", Y: "price", Color: "region", Title: "t", Height: 400, Width: 200},
		},
		{
			name: "3D bar becomes a 3D scatter",
			req:  Request{Kind: KindBar, Dimensionality: Dim3D, X: "units", Y: "price", Z: "units"},
			want: Scatter3DCall{Source: KindBar, X: "units", Y: "price", Z: "units", Title: "sales", Height: 800, Width: 1350},
		},
		{
			name: "colored 3D line",
			req:  Request{Kind: KindLine, Dimensionality: Dim3D, Color: "note", Height: 1200, Width: 1500},
			want: Scatter3DCall{Source: KindLine, X: "region", Y: "region", Z: "region", Color: "note", Title: "sales", Height: 1200, Width: 1500},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := r.Resolve(table, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, call)
		})
	}
}

func TestResolve_SpatialErrors(t *testing.T) {
	r := NewResolver(DefaultLimits())
	table := salesTable()

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing x", Request{Kind: KindBar, X: "gone"}, "x"},
		{"missing y", Request{Kind: KindBar, Y: "gone"}, "y"},
		{"missing z", Request{Kind: KindScatter, Dimensionality: Dim3D, Z: "gone"}, "z"},
		{"missing color", Request{Kind: KindLine, Color: "gone"}, "color"},
		{"height too small", Request{Kind: KindBar, Height: 399}, "height"},
		{"height too large", Request{Kind: KindBar, Height: 1201}, "height"},
		{"width too small", Request{Kind: KindBar, Width: 199}, "width"},
		{"width too large", Request{Kind: KindBar, Width: 1501}, "width"},
		{"bad dimensionality", Request{Kind: KindBar, Dimensionality: "4d"}, "dimensionality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(table, tt.req)
			ce := isConfigErr(t, err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	_, err := r.Resolve(models.NewTable("empty", []string{}), Request{Kind: KindBar})
	isConfigErr(t, err)
}

func TestResolve_Table(t *testing.T) {
	r := NewResolver(DefaultLimits())
	table := salesTable()

	call, err := r.Resolve(table, Request{Kind: KindTable})
	require.NoError(t, err)
	assert.Equal(t, TableCall{Rows: 3}, call, "default of 5 is clamped to the row count")

	call, err = r.Resolve(table, Request{Kind: KindTable, Rows: 2})
	require.NoError(t, err)
	assert.Equal(t, TableCall{Rows: 2}, call)

	call, err = r.Resolve(table, Request{Kind: KindTable, Rows: 100})
	require.NoError(t, err)
	assert.Equal(t, TableCall{Rows: 3}, call)

	_, err = r.Resolve(table, Request{Kind: KindTable, Rows: -1})
	assert.Equal(t, "rows", isConfigErr(t, err).Field)

	_, err = r.Resolve(models.NewTable("empty", []string{"a"}), Request{Kind: KindTable})
	isConfigErr(t, err)
}

func TestResolve_Default(t *testing.T) {
	table := salesTable()

	call, err := NewResolver(DefaultLimits()).Resolve(table, Request{Kind: KindDefault})
	require.NoError(t, err)
	assert.Equal(t, FrameCall{}, call)

	limits := DefaultLimits()
	limits.MaxDefaultCells = 4
	limits.DefaultRows = 2
	call, err = NewResolver(limits).Resolve(table, Request{Kind: KindDefault})
	require.NoError(t, err)
	assert.Equal(t, TableCall{Rows: 2, Degraded: true}, call)
}

func TestResolve_Pie(t *testing.T) {
	r := NewResolver(DefaultLimits())
	table := salesTable()

	t.Run("defaults pick the first column of each partition", func(t *testing.T) {
		call, err := r.Resolve(table, Request{Kind: KindPie})
		require.NoError(t, err)
		assert.Equal(t, PieCall{Names: "region", Values: "units", Title: "sales", Height: 800, Width: 1350}, call)
	})

	t.Run("numeric names column", func(t *testing.T) {
		call, err := r.Resolve(table, Request{Kind: KindPie, Names: "units", Values: "price"})
		assert.Nil(t, call)
		assert.Equal(t, "names", isConfigErr(t, err).Field)
	})

	t.Run("non-numeric values column", func(t *testing.T) {
		call, err := r.Resolve(table, Request{Kind: KindPie, Names: "region", Values: "note"})
		assert.Nil(t, call)
		assert.Equal(t, "values", isConfigErr(t, err).Field)
	})

	t.Run("no numeric column at all", func(t *testing.T) {
		words := models.NewTable("w", []string{"a"})
		words.Rows = append(words.Rows, []any{"x"})
		_, err := r.Resolve(words, Request{Kind: KindPie})
		assert.Equal(t, "values", isConfigErr(t, err).Field)
	})

	t.Run("pie from the scenario table", func(t *testing.T) {
		// every column of a,b is numeric
		_, err := r.Resolve(abTable(), Request{Kind: KindPie, Names: "a"})
		isConfigErr(t, err)
	})
}

func TestResolve_UnknownKind(t *testing.T) {
	r := NewResolver(DefaultLimits())
	_, err := r.Resolve(abTable(), Request{Kind: "radar"})
	isConfigErr(t, err)
	_, err = r.Resolve(abTable(), Request{})
	isConfigErr(t, err)
	_, err = r.Resolve(nil, Request{Kind: KindBar})
	isConfigErr(t, err)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"Bar Graph":    KindBar,
		"line":         KindLine,
		"PIE CHART":    KindPie,
		"Scatter Plot": KindScatter,
		" table ":      KindTable,
		"Default":      KindDefault,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("histogram")
	assert.Error(t, err)
}

func TestLimitsValidate(t *testing.T) {
	assert.NoError(t, DefaultLimits().Validate())

	l := DefaultLimits()
	l.DefaultHeight = 1300
	assert.Error(t, l.Validate())

	l = DefaultLimits()
	l.MinWidth, l.MaxWidth = 900, 800
	assert.Error(t, l.Validate())

	l = DefaultLimits()
	l.DefaultRows = 0
	assert.Error(t, l.Validate())
}
