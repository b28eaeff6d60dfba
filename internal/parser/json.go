package parser

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/visualiza/backend/internal/models"
)

// JSONParser reads JSON documents shaped as records, rows of arrays,
// column-oriented objects ({"col": {"idx": v}}) or objects of column arrays.
// gjson is used because it keeps object key order, which becomes column order.
type JSONParser struct{}

func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Name() string {
	return "json"
}

func (p *JSONParser) Extensions() []string {
	return []string{"json"}
}

func (p *JSONParser) Parse(ctx context.Context, data []byte, opts Options) (*models.Table, error) {
	data = trimBOM(data)
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid JSON document")
	}

	doc := gjson.ParseBytes(data)
	switch {
	case doc.IsArray():
		return p.parseArray(doc, opts)
	case doc.IsObject():
		return p.parseObject(doc, opts)
	default:
		return nil, fmt.Errorf("expected a JSON array or object, got %s", doc.Type)
	}
}

// parseArray handles [{...}, {...}], [[...], [...]] and [v, v, ...].
func (p *JSONParser) parseArray(doc gjson.Result, opts Options) (*models.Table, error) {
	items := doc.Array()
	if len(items) == 0 {
		return models.NewTable(opts.TableName, []string{}), nil
	}

	if !items[0].IsArray() && !items[0].IsObject() {
		// a flat array of scalars is a single column named "0"
		table := models.NewTable(opts.TableName, positionalColumns(1))
		for _, item := range items {
			table.Rows = append(table.Rows, []any{jsonValue(item)})
		}
		return table, nil
	}

	if items[0].IsArray() {
		width := 0
		for _, item := range items {
			if n := len(item.Array()); n > width {
				width = n
			}
		}
		table := models.NewTable(opts.TableName, positionalColumns(width))
		for i, item := range items {
			if !item.IsArray() {
				return nil, fmt.Errorf("row %d: mixed arrays and non-arrays", i)
			}
			row := make([]any, width)
			for c, cell := range item.Array() {
				row[c] = jsonValue(cell)
			}
			table.Rows = append(table.Rows, row)
		}
		return table, nil
	}

	var columns []string
	index := make(map[string]int)
	var rows []map[int]any
	for i, item := range items {
		if !item.IsObject() {
			return nil, fmt.Errorf("row %d: expected an object, got %s", i, item.Type)
		}
		row := make(map[int]any)
		item.ForEach(func(key, value gjson.Result) bool {
			c, ok := index[key.String()]
			if !ok {
				c = len(columns)
				index[key.String()] = c
				columns = append(columns, key.String())
			}
			row[c] = jsonValue(value)
			return true
		})
		rows = append(rows, row)
	}

	table := models.NewTable(opts.TableName, columns)
	for _, r := range rows {
		row := make([]any, len(columns))
		for c, v := range r {
			row[c] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// parseObject handles {"col": {"0": v, ...}} and {"col": [v, ...]}.
func (p *JSONParser) parseObject(doc gjson.Result, opts Options) (*models.Table, error) {
	var columns []string
	var cells []map[string]any
	var order []string
	seen := make(map[string]bool)
	scalar := false
	var walkErr error

	doc.ForEach(func(key, value gjson.Result) bool {
		col := make(map[string]any)
		switch {
		case value.IsObject():
			value.ForEach(func(idx, v gjson.Result) bool {
				col[idx.String()] = jsonValue(v)
				if !seen[idx.String()] {
					seen[idx.String()] = true
					order = append(order, idx.String())
				}
				return true
			})
		case value.IsArray():
			for i, v := range value.Array() {
				k := strconv.Itoa(i)
				col[k] = jsonValue(v)
				if !seen[k] {
					seen[k] = true
					order = append(order, k)
				}
			}
		default:
			scalar = true
			walkErr = fmt.Errorf("column %q holds a scalar; if using all scalar values, an index is required", key.String())
			return false
		}
		columns = append(columns, key.String())
		cells = append(cells, col)
		return true
	})
	if scalar {
		return nil, walkErr
	}

	table := models.NewTable(opts.TableName, columns)
	for _, idx := range order {
		row := make([]any, len(columns))
		for c := range columns {
			row[c] = cells[c][idx]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// jsonValue converts a gjson leaf to a cell value. Nested values keep their raw text.
func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		if isIntegerFast(v.Raw) {
			if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return n
			}
		}
		return v.Float()
	case gjson.String:
		return v.String()
	default:
		return v.Raw
	}
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
