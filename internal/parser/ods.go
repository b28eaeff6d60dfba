package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	odfMimePrefix  = "application/vnd.oasis.opendocument"
	maxODFColumns  = 16384
	maxODFRowBurst = 1 << 20
)

// isOpenDocument reports whether a zip archive is an OpenDocument package.
func isOpenDocument(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name != "mimetype" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return false
		}
		defer rc.Close()
		head, _ := io.ReadAll(io.LimitReader(rc, 128))
		return strings.HasPrefix(string(head), odfMimePrefix)
	}
	return false
}

// readOpenDocument returns the cells of the first table:table in content.xml.
// That is the first sheet of a spreadsheet and the first table of a text document.
func readOpenDocument(data []byte) ([][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open OpenDocument package: %w", err)
	}

	var content *zip.File
	for _, f := range zr.File {
		if f.Name == "content.xml" {
			content = f
			break
		}
	}
	if content == nil {
		return nil, errors.New("OpenDocument package has no content.xml")
	}

	rc, err := content.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open content.xml: %w", err)
	}
	defer rc.Close()

	return readODFTable(rc)
}

type odfReader struct {
	rows        [][]string
	pendingRows int

	row          []string
	pendingCells int
	rowRepeat    int

	cellValue  string
	cellRepeat int
	cellTyped  bool
	text       strings.Builder
	paragraphs []string
	inPara     bool
}

func readODFTable(r io.Reader) ([][]string, error) {
	dec := xml.NewDecoder(r)
	st := &odfReader{}

	tableDepth := 0
	inCell := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed content.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
				if t.Name.Space != "" && !strings.Contains(t.Name.Space, "table") {
					continue
				}
				tableDepth++
			case "table-row":
				if tableDepth == 1 {
					st.row = nil
					st.pendingCells = 0
					st.rowRepeat = repeatAttr(t, "number-rows-repeated")
				}
			case "table-cell", "covered-table-cell":
				if tableDepth == 1 {
					inCell = true
					st.startCell(t)
				}
			case "p":
				if inCell && tableDepth == 1 {
					st.inPara = true
					st.text.Reset()
				}
			case "s":
				if st.inPara {
					n := repeatAttr(t, "c")
					st.text.WriteString(strings.Repeat(" ", n))
				}
			case "tab":
				if st.inPara {
					st.text.WriteString("\t")
				}
			}
		case xml.CharData:
			if st.inPara {
				st.text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "table":
				if t.Name.Space != "" && !strings.Contains(t.Name.Space, "table") {
					continue
				}
				tableDepth--
				if tableDepth == 0 {
					return trimTrailingEmptyRows(st.rows), nil
				}
			case "table-row":
				if tableDepth == 1 {
					st.endRow()
				}
			case "table-cell", "covered-table-cell":
				if tableDepth == 1 && inCell {
					inCell = false
					st.endCell()
				}
			case "p":
				if st.inPara {
					st.inPara = false
					st.paragraphs = append(st.paragraphs, st.text.String())
				}
			}
		}
	}

	return nil, errors.New("document contains no tables")
}

func (st *odfReader) startCell(t xml.StartElement) {
	st.cellRepeat = repeatAttr(t, "number-columns-repeated")
	st.cellValue = ""
	st.cellTyped = false
	st.paragraphs = st.paragraphs[:0]

	var valueType string
	attrs := make(map[string]string, len(t.Attr))
	for _, a := range t.Attr {
		attrs[a.Name.Local] = a.Value
		if a.Name.Local == "value-type" {
			valueType = a.Value
		}
	}

	switch valueType {
	case "float", "percentage", "currency":
		st.cellValue, st.cellTyped = attrs["value"], true
	case "boolean":
		st.cellValue, st.cellTyped = attrs["boolean-value"], true
	case "date":
		st.cellValue, st.cellTyped = attrs["date-value"], true
	case "time":
		st.cellValue, st.cellTyped = attrs["time-value"], true
	}
}

func (st *odfReader) endCell() {
	value := st.cellValue
	if !st.cellTyped {
		value = strings.Join(st.paragraphs, "\n")
	}

	if value == "" {
		// Trailing blanks are usually repeated to the sheet edge; they are
		// only materialised when a filled cell follows.
		st.pendingCells += st.cellRepeat
		return
	}

	for i := 0; i < st.pendingCells && len(st.row) < maxODFColumns; i++ {
		st.row = append(st.row, "")
	}
	st.pendingCells = 0
	for i := 0; i < st.cellRepeat && len(st.row) < maxODFColumns; i++ {
		st.row = append(st.row, value)
	}
}

func (st *odfReader) endRow() {
	if isEmptyRow(st.row) {
		st.pendingRows += st.rowRepeat
		return
	}

	for i := 0; i < st.pendingRows && i < maxODFRowBurst; i++ {
		st.rows = append(st.rows, nil)
	}
	st.pendingRows = 0
	for i := 0; i < st.rowRepeat && i < maxODFRowBurst; i++ {
		st.rows = append(st.rows, append([]string(nil), st.row...))
	}
}

func repeatAttr(t xml.StartElement, name string) int {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			if n, err := strconv.Atoi(a.Value); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}
