package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visualiza/backend/internal/models"
	"github.com/xuri/excelize/v2"
)

func parseWith(t *testing.T, p Parser, data string, opts Options) (*models.Table, error) {
	t.Helper()
	if opts.Delimiter == "" {
		opts.Delimiter = DefaultDelimiter
	}
	return p.Parse(context.Background(), []byte(data), opts)
}

// ============ CSV ============

func TestCSVParser(t *testing.T) {
	p := NewCSVParser()

	t.Run("header and typed rows", func(t *testing.T) {
		table, err := parseWith(t, p, "a,b\n1,2\n3,4", Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, table.Columns)
		assert.Equal(t, [][]any{{int64(1), int64(2)}, {int64(3), int64(4)}}, table.Rows)
	})

	t.Run("custom delimiter", func(t *testing.T) {
		table, err := parseWith(t, p, "a;b\nx;1.5\n", Options{Delimiter: ";"})
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"x", 1.5}}, table.Rows)
	})

	t.Run("multi-character delimiter is a pattern", func(t *testing.T) {
		table, err := parseWith(t, p, "a :: b\n1 :: 2\n", Options{Delimiter: `\s*::\s*`})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, table.Columns)
		assert.Equal(t, [][]any{{int64(1), int64(2)}}, table.Rows)
	})

	t.Run("quoted fields and BOM", func(t *testing.T) {
		table, err := parseWith(t, p, "\ufeffname,note\n\"Doe, J\",\"said \"\"hi\"\"\"\n", Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "note"}, table.Columns)
		assert.Equal(t, [][]any{{"Doe, J", `said "hi"`}}, table.Rows)
	})

	t.Run("empty field is missing", func(t *testing.T) {
		table, err := parseWith(t, p, "a,b\n1,\n", Options{})
		require.NoError(t, err)
		assert.Equal(t, [][]any{{int64(1), nil}}, table.Rows)
	})

	t.Run("empty payload", func(t *testing.T) {
		_, err := parseWith(t, p, "", Options{})
		assert.ErrorContains(t, err, "no columns to parse")
	})

	t.Run("invalid delimiter", func(t *testing.T) {
		_, err := p.Parse(context.Background(), []byte("a,b"), Options{Delimiter: "\""})
		assert.Error(t, err)
		_, err = p.Parse(context.Background(), []byte("a,b"), Options{Delimiter: ""})
		assert.Error(t, err)
		_, err = p.Parse(context.Background(), []byte("a,b"), Options{Delimiter: "(("})
		assert.Error(t, err)
	})
}

// ============ JSON ============

func TestJSONParser(t *testing.T) {
	p := NewJSONParser()

	t.Run("records", func(t *testing.T) {
		table, err := parseWith(t, p, `[{"a":1,"b":"x"},{"a":2.5,"c":true}]`, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, table.Columns)
		assert.Equal(t, [][]any{{int64(1), "x", nil}, {2.5, nil, true}}, table.Rows)
	})

	t.Run("array of arrays", func(t *testing.T) {
		table, err := parseWith(t, p, `[[1,2],[3]]`, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1"}, table.Columns)
		assert.Equal(t, [][]any{{int64(1), int64(2)}, {int64(3), nil}}, table.Rows)
	})

	t.Run("array of scalars", func(t *testing.T) {
		table, err := parseWith(t, p, `[1,2,3]`, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"0"}, table.Columns)
		assert.Equal(t, [][]any{{int64(1)}, {int64(2)}, {int64(3)}}, table.Rows)
	})

	t.Run("columns of indexed objects", func(t *testing.T) {
		table, err := parseWith(t, p, `{"a":{"0":1,"1":2},"b":{"0":"x","1":"y"}}`, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, table.Columns)
		assert.Equal(t, [][]any{{int64(1), "x"}, {int64(2), "y"}}, table.Rows)
	})

	t.Run("columns of arrays", func(t *testing.T) {
		table, err := parseWith(t, p, `{"a":[1,2],"b":[null,{"k":1}]}`, Options{})
		require.NoError(t, err)
		assert.Equal(t, [][]any{{int64(1), nil}, {int64(2), `{"k":1}`}}, table.Rows)
	})

	t.Run("all scalar object", func(t *testing.T) {
		_, err := parseWith(t, p, `{"a":1,"b":2}`, Options{})
		assert.ErrorContains(t, err, "index is required")
	})

	t.Run("invalid document", func(t *testing.T) {
		_, err := parseWith(t, p, `{"a":`, Options{})
		assert.Error(t, err)
	})
}

// ============ XML ============

func TestXMLParser(t *testing.T) {
	p := NewXMLParser()

	t.Run("attributes and child elements", func(t *testing.T) {
		doc := `<?xml version="1.0"?>
<rows>
  <row id="1"><name>x</name><v>1.5</v></row>
  <row id="2"><name>y</name></row>
</rows>`
		table, err := parseWith(t, p, doc, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "v"}, table.Columns)
		assert.Equal(t, [][]any{{int64(1), "x", 1.5}, {int64(2), "y", nil}}, table.Rows)
	})

	t.Run("root without children", func(t *testing.T) {
		_, err := parseWith(t, p, `<rows/>`, Options{})
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := parseWith(t, p, `<rows><row></rows>`, Options{})
		assert.Error(t, err)
	})
}

// ============ HTML ============

func TestHTMLParser(t *testing.T) {
	p := NewHTMLParser()

	t.Run("thead header and colspan", func(t *testing.T) {
		doc := `<html><body>
<table>
  <thead><tr><th>a</th><th>b</th></tr></thead>
  <tbody>
    <tr><td>1</td><td> x  y </td></tr>
    <tr><td colspan="2">7</td></tr>
  </tbody>
</table>
<table><tr><td>ignored</td></tr></table>
</body></html>`
		table, err := parseWith(t, p, doc, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, table.Columns)
		assert.Equal(t, [][]any{{int64(1), "x y"}, {int64(7), "7"}}, table.Rows)
	})

	t.Run("leading th row without thead", func(t *testing.T) {
		table, err := parseWith(t, p, `<table><tr><th>k</th></tr><tr><td>v</td></tr></table>`, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"k"}, table.Columns)
		assert.Equal(t, [][]any{{"v"}}, table.Rows)
	})

	t.Run("no header", func(t *testing.T) {
		table, err := parseWith(t, p, `<table><tr><td>1</td><td>2</td></tr></table>`, Options{})
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1"}, table.Columns)
	})

	t.Run("no table", func(t *testing.T) {
		_, err := parseWith(t, p, `<p>nothing here</p>`, Options{})
		assert.ErrorContains(t, err, "no tables found")
	})
}

// ============ Spreadsheets ============

func xlsxFixture(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"region", "units"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"north", 3}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"south", 5}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

const odsContent = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content
  xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:spreadsheet>
<table:table table:name="Sheet1">
  <table:table-row>
    <table:table-cell office:value-type="string"><text:p>a</text:p></table:table-cell>
    <table:table-cell office:value-type="string"><text:p>b</text:p></table:table-cell>
    <table:table-cell table:number-columns-repeated="1020"/>
  </table:table-row>
  <table:table-row>
    <table:table-cell office:value-type="float" office:value="1"><text:p>1</text:p></table:table-cell>
    <table:table-cell table:number-columns-repeated="2" office:value-type="float" office:value="2.5"><text:p>2,5</text:p></table:table-cell>
  </table:table-row>
  <table:table-row>
    <table:table-cell table:number-columns-repeated="2"/>
    <table:table-cell office:value-type="boolean" office:boolean-value="true"><text:p>TRUE</text:p></table:table-cell>
  </table:table-row>
  <table:table-row table:number-rows-repeated="1048000">
    <table:table-cell table:number-columns-repeated="1024"/>
  </table:table-row>
</table:table>
<table:table table:name="Sheet2">
  <table:table-row><table:table-cell><text:p>other</text:p></table:table-cell></table:table-row>
</table:table>
</office:spreadsheet></office:body></office:document-content>`

func odsFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("application/vnd.oasis.opendocument.spreadsheet"))
	require.NoError(t, err)
	w, err = zw.Create("content.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(odsContent))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestSpreadsheetParser_XLSX(t *testing.T) {
	table, err := NewSpreadsheetParser().Parse(context.Background(), xlsxFixture(t), Options{TableName: "sales"})
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "units"}, table.Columns)
	assert.Equal(t, [][]any{{"north", int64(3)}, {"south", int64(5)}}, table.Rows)
}

func xlsFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/sales.xls")
	require.NoError(t, err)
	return data
}

func TestSpreadsheetParser_XLS(t *testing.T) {
	table, err := NewSpreadsheetParser().Parse(context.Background(), xlsFixture(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "units", "price"}, table.Columns)
	assert.Equal(t, [][]any{{"north", int64(3), 1.5}, {"south", int64(5), 2.25}}, table.Rows)
}

func TestSpreadsheetParser_ODS(t *testing.T) {
	table, err := NewSpreadsheetParser().Parse(context.Background(), odsFixture(t), Options{})
	require.NoError(t, err)

	// the repeated value cell widens the sheet past the header
	assert.Equal(t, []string{"a", "b", "Unnamed: 2"}, table.Columns)
	require.Equal(t, 2, table.NumRows())
	assert.Equal(t, []any{int64(1), 2.5, "2.5"}, table.Rows[0])
	assert.Equal(t, []any{nil, nil, "true"}, table.Rows[1])
}

func TestSpreadsheetParser_Rejects(t *testing.T) {
	p := NewSpreadsheetParser()

	t.Run("not a workbook", func(t *testing.T) {
		_, err := p.Parse(context.Background(), []byte("plain text"), Options{})
		assert.ErrorContains(t, err, "unrecognised workbook format")
	})

	t.Run("binary workbook", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, err := zw.Create("xl/workbook.bin")
		require.NoError(t, err)
		_, err = w.Write([]byte{0x83, 0x01, 0x00})
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		_, err = p.Parse(context.Background(), buf.Bytes(), Options{})
		assert.Error(t, err)
	})

	t.Run("corrupt legacy workbook", func(t *testing.T) {
		data := []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
		_, err := p.Parse(context.Background(), data, Options{})
		assert.Error(t, err)
	})
}
