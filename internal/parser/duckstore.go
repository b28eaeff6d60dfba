package parser

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/visualiza/backend/internal/models"
)

// DuckOptions tunes the embedded database.
type DuckOptions struct {
	MemoryLimit string // e.g. "512MB"
	Threads     int
}

// DefaultDuckOptions mirrors the defaults of the configuration file.
func DefaultDuckOptions() DuckOptions {
	return DuckOptions{MemoryLimit: "512MB", Threads: 2}
}

// DuckStore keeps one parsed table in a DuckDB file so an identical upload
// can be served without running the reader again.
type DuckStore struct {
	db     *sql.DB
	dbPath string
	log    *slog.Logger
}

func openConnector(dbPath string, opts DuckOptions, strict bool) (*sql.DB, error) {
	if opts.MemoryLimit == "" {
		opts = DefaultDuckOptions()
	}
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", max(opts.Threads, 1)),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				if strict {
					return err
				}
				slog.Warn("duckdb pragma failed", "component", "duckstore", "pragma", pragma, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// NewDuckStoreAtPath creates a fresh database at dbPath. An existing file is replaced.
func NewDuckStoreAtPath(dbPath string, opts DuckOptions) (*DuckStore, error) {
	log := slog.Default().With("component", "duckstore")
	os.Remove(dbPath)

	db, err := openConnector(dbPath, opts, true)
	if err != nil {
		return nil, err
	}

	schema := []string{
		`CREATE TABLE meta (
			name      VARCHAR NOT NULL,
			num_rows  BIGINT NOT NULL,
			stored_at BIGINT NOT NULL
		)`,
		`CREATE TABLE columns (
			pos  INTEGER NOT NULL,
			name VARCHAR NOT NULL
		)`,
		`CREATE TABLE cells (
			row_id    BIGINT NOT NULL,
			col       INTEGER NOT NULL,
			val_type  TINYINT NOT NULL,
			val_bool  BOOLEAN,
			val_int   BIGINT,
			val_float DOUBLE,
			val_str   VARCHAR
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			os.Remove(dbPath)
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	log.Debug("created table cache", "path", dbPath)
	return &DuckStore{db: db, dbPath: dbPath, log: log}, nil
}

// OpenDuckStore opens a database previously written by WriteTable.
func OpenDuckStore(dbPath string, opts DuckOptions) (*DuckStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("table cache not found: %w", err)
	}
	db, err := openConnector(dbPath, opts, false)
	if err != nil {
		return nil, err
	}
	return &DuckStore{db: db, dbPath: dbPath, log: slog.Default().With("component", "duckstore")}, nil
}

// WriteTable stores the table. Cells go through the Appender API.
func (ds *DuckStore) WriteTable(ctx context.Context, t *models.Table) error {
	start := time.Now()

	if _, err := ds.db.ExecContext(ctx, "INSERT INTO meta VALUES (?, ?, ?)",
		t.Name, int64(t.NumRows()), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to write table metadata: %w", err)
	}
	for i, c := range t.Columns {
		if _, err := ds.db.ExecContext(ctx, "INSERT INTO columns VALUES (?, ?)", int32(i), c); err != nil {
			return fmt.Errorf("failed to write column %q: %w", c, err)
		}
	}

	conn, err := ds.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "cells")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for r, row := range t.Rows {
			if r%100000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			for c, v := range row {
				valType, valBool, valInt, valFloat, valStr := encodeValue(v)
				if err := appender.AppendRow(
					int64(r),
					int32(c),
					int8(valType),
					valBool,
					valInt,
					valFloat,
					valStr,
				); err != nil {
					return fmt.Errorf("failed to append cell (%d,%d): %w", r, c, err)
				}
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	ds.log.Debug("stored table", "rows", t.NumRows(), "columns", t.NumCols(), "elapsed", time.Since(start))
	return nil
}

// ReadTable loads the stored table.
func (ds *DuckStore) ReadTable(ctx context.Context) (*models.Table, error) {
	var name string
	var numRows int64
	if err := ds.db.QueryRowContext(ctx, "SELECT name, num_rows FROM meta LIMIT 1").Scan(&name, &numRows); err != nil {
		return nil, fmt.Errorf("failed to read table metadata: %w", err)
	}

	colRows, err := ds.db.QueryContext(ctx, "SELECT name FROM columns ORDER BY pos")
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	var columns []string
	for colRows.Next() {
		var c string
		if err := colRows.Scan(&c); err != nil {
			colRows.Close()
			return nil, err
		}
		columns = append(columns, c)
	}
	colRows.Close()
	if columns == nil {
		columns = []string{}
	}

	table := models.NewTable(name, columns)
	table.Rows = make([][]any, numRows)
	for i := range table.Rows {
		table.Rows[i] = make([]any, len(columns))
	}

	rows, err := ds.db.QueryContext(ctx, `
		SELECT row_id, col, val_type, val_bool, val_int, val_float, val_str
		FROM cells ORDER BY row_id, col
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read cells: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rowID int64
		var col, valType int
		var valBool sql.NullBool
		var valInt sql.NullInt64
		var valFloat sql.NullFloat64
		var valStr sql.NullString
		if err := rows.Scan(&rowID, &col, &valType, &valBool, &valInt, &valFloat, &valStr); err != nil {
			return nil, err
		}
		if rowID < 0 || rowID >= numRows || col < 0 || col >= len(columns) {
			return nil, fmt.Errorf("cell (%d,%d) outside of stored table", rowID, col)
		}
		table.Rows[rowID][col] = decodeValue(valType, valBool.Bool, valInt.Int64, valFloat.Float64, valStr.String)
	}
	return table, rows.Err()
}

// Path returns the database file location.
func (ds *DuckStore) Path() string {
	return ds.dbPath
}

// Close closes the database. The file is kept.
func (ds *DuckStore) Close() error {
	if ds.db != nil {
		return ds.db.Close()
	}
	return nil
}

// Value type constants
const (
	valTypeNull   = 0
	valTypeBool   = 1
	valTypeInt    = 2
	valTypeFloat  = 3
	valTypeString = 4
)

func encodeValue(val any) (valType int, valBool bool, valInt int64, valFloat float64, valStr string) {
	switch v := val.(type) {
	case nil:
		return valTypeNull, false, 0, 0, ""
	case bool:
		return valTypeBool, v, 0, 0, ""
	case int:
		return valTypeInt, false, int64(v), 0, ""
	case int64:
		return valTypeInt, false, v, 0, ""
	case float64:
		if math.IsNaN(v) {
			return valTypeNull, false, 0, 0, ""
		}
		return valTypeFloat, false, 0, v, ""
	case string:
		return valTypeString, false, 0, 0, v
	default:
		return valTypeString, false, 0, 0, fmt.Sprintf("%v", val)
	}
}

func decodeValue(valType int, valBool bool, valInt int64, valFloat float64, valStr string) any {
	switch valType {
	case valTypeNull:
		return nil
	case valTypeBool:
		return valBool
	case valTypeInt:
		return valInt
	case valTypeFloat:
		return valFloat
	default:
		return valStr
	}
}
