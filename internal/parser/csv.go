package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/visualiza/backend/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVParser reads delimited text. The first record is the header.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Name() string {
	return "csv"
}

func (p *CSVParser) Extensions() []string {
	return []string{"csv"}
}

func (p *CSVParser) Parse(ctx context.Context, data []byte, opts Options) (*models.Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	delim := opts.Delimiter
	if delim == "" {
		return nil, errors.New("delimiter must not be empty")
	}

	var records [][]string
	var err error
	if utf8.RuneCountInString(delim) == 1 {
		records, err = readSingleRune(data, []rune(delim)[0])
	} else {
		records, err = readRegexSplit(ctx, data, delim)
	}
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, errors.New("no columns to parse from file")
	}

	return buildTable(opts.TableName, records[0], records[1:])
}

func readSingleRune(data []byte, delim rune) ([][]string, error) {
	if delim == '"' || delim == '\r' || delim == '\n' || delim == utf8.RuneError {
		return nil, fmt.Errorf("invalid delimiter %q", delim)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1 // ragged rows are checked against the header in buildTable
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// readRegexSplit splits every line on a regular expression, the way the
// python engine of dataframe readers treats multi-character separators.
// Quoting is not interpreted.
func readRegexSplit(ctx context.Context, data []byte, pattern string) ([][]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid delimiter pattern %q: %w", pattern, err)
	}

	var records [][]string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, re.Split(line, -1))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", lineNum+1, err)
	}
	return records, nil
}

func isBlankRecord(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}
