package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visualiza/backend/internal/models"
)

func TestDescribe(t *testing.T) {
	table := models.NewTable("sales", []string{"region", "units", "gaps", "blank"})
	table.Rows = append(table.Rows,
		[]any{"north", int64(2), 1.5, ""},
		[]any{"south", int64(4), "", ""},
		[]any{"north", int64(6), 2.5, ""},
		[]any{"east", int64(8), 3.5, ""},
	)

	p, err := Describe(table)
	require.NoError(t, err)
	assert.Equal(t, "sales", p.Name)
	assert.Equal(t, 4, p.Rows)
	require.Len(t, p.Columns, 4)

	region := p.Columns[0]
	assert.Nil(t, region.Summary)
	require.NotNil(t, region.Categories)
	assert.Equal(t, Categories{Unique: 3, Top: "north", Freq: 2}, *region.Categories)

	units := p.Columns[1]
	require.NotNil(t, units.Summary)
	assert.Equal(t, 4, units.Count)
	assert.InDelta(t, 5.0, units.Summary.Mean, 1e-9)
	assert.InDelta(t, 2.581988897, units.Summary.StdDev, 1e-6)
	assert.Equal(t, 2.0, units.Summary.Min)
	assert.Equal(t, 8.0, units.Summary.Max)
	assert.Equal(t, 5.0, units.Summary.Median)
	assert.LessOrEqual(t, units.Summary.Min, units.Summary.Q25)
	assert.LessOrEqual(t, units.Summary.Q25, units.Summary.Median)
	assert.LessOrEqual(t, units.Summary.Median, units.Summary.Q75)
	assert.LessOrEqual(t, units.Summary.Q75, units.Summary.Max)

	gaps := p.Columns[2]
	assert.Equal(t, models.ColumnKindMixed, gaps.Kind)
	assert.Equal(t, 3, gaps.Count)
	assert.Equal(t, 1, gaps.Empty)
	require.NotNil(t, gaps.Summary)
	assert.InDelta(t, 2.5, gaps.Summary.Mean, 1e-9)

	blank := p.Columns[3]
	assert.Equal(t, 0, blank.Count)
	assert.Equal(t, 4, blank.Empty)
	assert.Nil(t, blank.Summary)
	assert.Nil(t, blank.Categories)
}

func TestDescribe_SingleValue(t *testing.T) {
	table := models.NewTable("one", []string{"v"})
	table.Rows = append(table.Rows, []any{7.0})

	p, err := Describe(table)
	require.NoError(t, err)
	s := p.Columns[0].Summary
	require.NotNil(t, s)
	assert.Equal(t, 7.0, s.Q25)
	assert.Equal(t, 7.0, s.Q75)
	assert.Equal(t, 0.0, s.StdDev)
}
