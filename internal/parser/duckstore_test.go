// duckstore_test.go - Tests for the DuckDB table cache
package parser

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visualiza/backend/internal/models"
)

func sampleTable() *models.Table {
	t := models.NewTable("sales", []string{"region", "units", "price", "active"})
	t.Rows = append(t.Rows,
		[]any{"north", int64(3), 1.5, true},
		[]any{"south", int64(-7), 2.25, false},
		[]any{"", int64(0), 0.0, true},
	)
	return t
}

func TestDuckStore_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "table.duckdb")
	ctx := context.Background()

	store, err := NewDuckStoreAtPath(dbPath, DefaultDuckOptions())
	require.NoError(t, err)
	require.NoError(t, store.WriteTable(ctx, sampleTable()))
	require.NoError(t, store.Close())

	reopened, err := OpenDuckStore(dbPath, DefaultDuckOptions())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.ReadTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), got)
}

func TestDuckStore_EmptyTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.duckdb")
	ctx := context.Background()

	store, err := NewDuckStoreAtPath(dbPath, DefaultDuckOptions())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.WriteTable(ctx, models.NewTable("empty", []string{"a", "b"})))

	got, err := store.ReadTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Columns)
	assert.Equal(t, 0, got.NumRows())
}

func TestOpenDuckStore_Missing(t *testing.T) {
	_, err := OpenDuckStore(filepath.Join(t.TempDir(), "nope.duckdb"), DefaultDuckOptions())
	assert.Error(t, err)
}

func TestEncodeDecodeValue(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{true, true},
		{int64(42), int64(42)},
		{42, int64(42)},
		{3.5, 3.5},
		{"x", "x"},
	}
	for _, tt := range tests {
		vt, b, i, f, s := encodeValue(tt.in)
		assert.Equal(t, tt.want, decodeValue(vt, b, i, f, s))
	}
}
