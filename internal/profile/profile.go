// Package profile summarizes table columns for the default view.
package profile

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/visualiza/backend/internal/models"
)

// Summary holds describe-style statistics of a numeric column.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"p25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Categories describes a non-numeric column.
type Categories struct {
	Unique int    `json:"unique"`
	Top    string `json:"top"`
	Freq   int    `json:"freq"`
}

// Column is the profile of one column. Exactly one of Summary and
// Categories is set for a non-empty column.
type Column struct {
	Name       string            `json:"name"`
	Kind       models.ColumnKind `json:"kind"`
	Count      int               `json:"count"`
	Empty      int               `json:"empty"`
	Summary    *Summary          `json:"summary,omitempty"`
	Categories *Categories       `json:"categories,omitempty"`
}

// Table is the profile of a whole table.
type Table struct {
	Name    string   `json:"name"`
	Rows    int      `json:"rows"`
	Columns []Column `json:"columns"`
}

// Describe profiles every column of t.
func Describe(t *models.Table) (*Table, error) {
	out := &Table{Name: t.Name, Rows: t.NumRows(), Columns: make([]Column, 0, t.NumCols())}
	for _, name := range t.Columns {
		values, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		col, err := describeColumn(name, values)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

func describeColumn(name string, values []any) (Column, error) {
	col := Column{Name: name, Kind: models.KindOf(values)}

	var nums []float64
	var present []any
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if models.IsMissing(v) || v == "" {
			col.Empty++
			continue
		}
		col.Count++
		present = append(present, v)
		if f, ok := models.ToFloat(v); ok {
			nums = append(nums, f)
		}
		key := fmt.Sprint(v)
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	if col.Count == 0 {
		return col, nil
	}

	// cells emptied by normalization do not make a column categorical here
	if models.KindOf(present).IsNumeric() {
		s, err := summarize(nums)
		if err != nil {
			return col, err
		}
		col.Summary = s
		return col, nil
	}

	cat := &Categories{Unique: len(counts)}
	for _, k := range order {
		if counts[k] > cat.Freq {
			cat.Top, cat.Freq = k, counts[k]
		}
	}
	col.Categories = cat
	return col, nil
}

func summarize(data stats.Float64Data) (*Summary, error) {
	var s Summary
	var err error

	if s.Mean, err = stats.Mean(data); err != nil {
		return nil, err
	}
	if len(data) > 1 {
		if s.StdDev, err = stats.StandardDeviationSample(data); err != nil {
			return nil, err
		}
	}
	if s.Min, err = stats.Min(data); err != nil {
		return nil, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return nil, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return nil, err
	}
	if s.Q25, err = percentile(data, 25); err != nil {
		return nil, err
	}
	if s.Q75, err = percentile(data, 75); err != nil {
		return nil, err
	}
	return &s, nil
}

// percentile interpolates between neighbours and falls back to the nearest
// rank for samples too small to interpolate.
func percentile(data stats.Float64Data, p float64) (float64, error) {
	v, err := stats.Percentile(data, p)
	if err == nil {
		return v, nil
	}
	return stats.PercentileNearestRank(data, p)
}
