package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const salesCSV = "region,units,price\nnorth,10,2.5\nsouth,4,3\neast,7,1.5\n"

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "visualiza dev")
}

func TestInspectCmd(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Sales.csv", salesCSV)

	out, err := run(t, "inspect", path, "--rows", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "sales: 3 rows, 3 columns")
	assert.Contains(t, out, "north")
	assert.Contains(t, out, "units")
}

func TestInspectCmd_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sales.csv", salesCSV)

	out, err := run(t, "inspect", path, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"parser"`)
	assert.Contains(t, out, `"profile"`)
}

func TestInspectCmd_Unsupported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "hello")

	_, err := run(t, "inspect", path)
	require.Error(t, err)
}

func TestInspectCmd_ParserOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "export.txt", salesCSV)

	out, err := run(t, "inspect", path, "--parser", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "export: 3 rows, 3 columns (parser csv)")

	_, err = run(t, "inspect", path, "--parser", "nope")
	require.Error(t, err)
}

func TestRenderCmd(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "sales.csv", salesCSV)
	doc := writeFile(t, dir, "charts.yaml", "charts:\n  - kind: table\n  - kind: bar\n    x: region\n    y: units\n")
	outDir := filepath.Join(dir, "out")

	out, err := run(t, "render", data, "--request", doc, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "bar: ")

	assert.FileExists(t, filepath.Join(outDir, "sales_bar.png"))
	assert.FileExists(t, filepath.Join(outDir, "sales_table.json"))
}

func TestRenderCmd_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	data := writeFile(t, dir, "sales.csv", salesCSV)
	doc := writeFile(t, dir, "charts.yaml", "charts:\n  - kind: bar\n    x: nope\n    y: units\n  - kind: table\n")

	out, err := run(t, "render", data, "--request", doc, "--out", filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, out, "bar: ")
	assert.FileExists(t, filepath.Join(dir, "out", "sales_table.json"))
}
