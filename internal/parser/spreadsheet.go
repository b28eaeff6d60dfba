package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/extrame/xls"
	"github.com/visualiza/backend/internal/models"
	"github.com/xuri/excelize/v2"
)

// SpreadsheetParser reads the first sheet of a workbook. The first row is the header.
type SpreadsheetParser struct {
	log *slog.Logger
}

func NewSpreadsheetParser() *SpreadsheetParser {
	return &SpreadsheetParser{log: slog.Default().With("component", "spreadsheet")}
}

func (p *SpreadsheetParser) Name() string {
	return "spreadsheet"
}

func (p *SpreadsheetParser) Extensions() []string {
	return []string{"xls", "xlsx", "xlsm", "xlsb", "odf", "ods", "odt"}
}

// ExtensionNotes describes accepted extensions that cannot be read in
// practice, keyed by extension.
func ExtensionNotes() map[string]string {
	return map[string]string{
		"xlsb": "binary workbooks are accepted but cannot be read, save as .xlsx instead",
	}
}

// Parse sniffs the container format instead of trusting the extension, so a
// workbook saved with the wrong suffix is still read.
func (p *SpreadsheetParser) Parse(ctx context.Context, data []byte, opts Options) (*models.Table, error) {
	var rows [][]string
	var err error

	switch {
	case isZip(data) && isOpenDocument(data):
		rows, err = readOpenDocument(data)
	case isZip(data):
		rows, err = readOOXML(data)
	case isOLE2(data):
		rows, err = readXLS(data)
	default:
		return nil, errors.New("unrecognised workbook format (expected an Office Open XML, OpenDocument or BIFF workbook)")
	}
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, errors.New("worksheet is empty")
	}

	p.log.Debug("worksheet read", "rows", len(rows))
	header, records := splitHeader(rows)
	return buildTable(opts.TableName, header, records)
}

// readOOXML reads xlsx/xlsm workbooks with excelize. Binary xlsb workbooks
// are zip containers too but carry no worksheet XML, so excelize rejects them.
func readOOXML(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no worksheets (binary xlsb workbooks are not readable)")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	return rows, nil
}

// readXLS reads legacy BIFF workbooks. The reader panics on some corrupt
// files; that is reported as a parse error.
func readXLS(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = fmt.Errorf("corrupt xls workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, errors.New("workbook has no worksheets")
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("failed to read first worksheet")
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		// ROW records store one past the last used column
		cells := make([]string, 0, row.LastCol()+1)
		for c := 0; c <= row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		rows = append(rows, cells)
	}
	return trimTrailingEmptyRows(rows), nil
}

// xlsRow returns nil for rows the sheet has no ROW record for.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// splitHeader returns the first non-empty row as header and the remaining
// rows as records. The header is widened to the widest record.
func splitHeader(rows [][]string) ([]string, [][]string) {
	start := 0
	for start < len(rows) && isEmptyRow(rows[start]) {
		start++
	}
	if start == len(rows) {
		return []string{}, nil
	}

	header := append([]string(nil), rows[start]...)
	records := rows[start+1:]
	width := len(header)
	for _, r := range records {
		if len(r) > width {
			width = len(r)
		}
	}
	for len(header) < width {
		header = append(header, "")
	}
	return header, records
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

func trimTrailingEmptyRows(rows [][]string) [][]string {
	for len(rows) > 0 && isEmptyRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func isZip(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K' && data[2] == 3 && data[3] == 4
}

func isOLE2(data []byte) bool {
	sig := []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	return len(data) >= len(sig) && bytes.Equal(data[:len(sig)], sig)
}
