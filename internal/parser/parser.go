package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/visualiza/backend/internal/models"
)

// DefaultDelimiter is the CSV delimiter used when the client does not supply one.
const DefaultDelimiter = ","

// LargeFileThreshold is the payload size, in bytes, from which an upload
// carries a "this may take a while" advisory.
const LargeFileThreshold int64 = 5_000_000

// Options carries the user-supplied ingestion settings.
type Options struct {
	// Delimiter separates CSV fields. Longer than one character it is
	// treated as a regular expression.
	Delimiter string
	// TableName names the resulting table (the file stem by default).
	TableName string
}

// Parser turns a file payload into a table.
type Parser interface {
	// Name returns the unique name of the parser.
	Name() string
	// Extensions lists the lower-cased file extensions handled by the parser.
	Extensions() []string
	// Parse decodes the payload. Errors are wrapped into ParseError by the resolver.
	Parse(ctx context.Context, data []byte, opts Options) (*models.Table, error)
}

// Common utilities for parsing

var (
	// naValues are the strings read as missing cells by the text readers.
	naValues = map[string]struct{}{
		"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
		"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
		"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
	}

	boolTrue  = map[string]bool{"True": true, "TRUE": true, "true": true}
	boolFalse = map[string]bool{"False": true, "FALSE": true, "false": true}
)

// IsNA reports whether a raw text cell stands for a missing value.
func IsNA(raw string) bool {
	_, ok := naValues[strings.TrimSpace(raw)]
	return ok
}

// InferKind guesses the column kind of a single raw string.
// Optimized to avoid strconv for common cases.
func InferKind(raw string) models.ColumnKind {
	s := strings.TrimSpace(raw)
	if IsNA(s) {
		return models.ColumnKindEmpty
	}
	if boolTrue[s] || boolFalse[s] {
		return models.ColumnKindBoolean
	}
	if isIntegerFast(s) {
		return models.ColumnKindInteger
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return models.ColumnKindFloat
	}
	return models.ColumnKindString
}

// isIntegerFast checks if a string is a decimal integer with an optional sign.
func isIntegerFast(s string) bool {
	if len(s) == 0 {
		return false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
		if i >= len(s) {
			return false
		}
	}
	// int64 overflow falls through to float
	if len(s)-i > 18 {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseValue converts a raw string to a typed cell value of the given column kind.
func ParseValue(raw string, kind models.ColumnKind) any {
	s := strings.TrimSpace(raw)
	if IsNA(s) {
		return nil
	}

	switch kind {
	case models.ColumnKindBoolean:
		if boolTrue[s] {
			return true
		}
		if boolFalse[s] {
			return false
		}
		return raw
	case models.ColumnKindInteger:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return raw
		}
		return v
	case models.ColumnKindFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return raw
		}
		return v
	default:
		return raw
	}
}

// columnKind merges the kinds of the raw cells of one column.
func columnKind(raws []string) models.ColumnKind {
	kind := models.ColumnKindEmpty
	for _, raw := range raws {
		k := InferKind(raw)
		switch {
		case k == models.ColumnKindEmpty:
		case kind == models.ColumnKindEmpty:
			kind = k
		case kind == k:
		case kind.IsNumeric() && k.IsNumeric():
			kind = models.ColumnKindFloat
		default:
			return models.ColumnKindString
		}
	}
	return kind
}

// buildTable converts a header and raw string records into a typed table.
// Rows shorter than the header are padded with missing cells.
func buildTable(name string, header []string, records [][]string) (*models.Table, error) {
	columns := uniqueColumns(header)
	width := len(columns)

	kinds := make([]models.ColumnKind, width)
	raws := make([]string, 0, len(records))
	for c := 0; c < width; c++ {
		raws = raws[:0]
		for _, rec := range records {
			if c < len(rec) {
				raws = append(raws, rec[c])
			}
		}
		kinds[c] = columnKind(raws)
	}

	intern := NewStringIntern()
	table := models.NewTable(name, columns)
	for i, rec := range records {
		if len(rec) > width {
			return nil, fmt.Errorf("expected %d fields in row %d, saw %d", width, i+1, len(rec))
		}
		row := make([]any, width)
		for c := 0; c < width; c++ {
			if c >= len(rec) {
				continue
			}
			v := ParseValue(rec[c], kinds[c])
			if str, ok := v.(string); ok {
				v = intern.Intern(str)
			}
			row[c] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// uniqueColumns makes header names unique the way dataframe readers do:
// blank names become "Unnamed: i" and repeats get a ".n" suffix.
func uniqueColumns(header []string) []string {
	cols := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[name]; ok {
			base := name
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[name] = 0
		cols[i] = name
	}
	return cols
}

// positionalColumns names columns "0", "1", ... for headerless sources.
func positionalColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = strconv.Itoa(i)
	}
	return cols
}
