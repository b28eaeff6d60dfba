package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/visualiza/backend/internal/models"
)

// Resolver is the ingestion entry point: extension lookup, parse, normalize.
type Resolver struct {
	registry *Registry
	log      *slog.Logger
}

// NewResolver creates a resolver over a registry. A nil registry uses the global one.
func NewResolver(registry *Registry) *Resolver {
	if registry == nil {
		registry = GetGlobalRegistry()
	}
	return &Resolver{
		registry: registry,
		log:      slog.Default().With("component", "ingest"),
	}
}

// Result is a parsed table together with the reader that produced it.
type Result struct {
	Table      *models.Table
	ParserName string
	Elapsed    time.Duration
}

// Resolve parses an uploaded file into a normalized table.
// Failures are *IngestionError values.
func (r *Resolver) Resolve(ctx context.Context, file models.UploadedFile, opts Options) (*Result, error) {
	ext := file.Extension()
	p, err := r.registry.FindParser(ext)
	if err != nil {
		r.log.Warn("unsupported upload", "file", file.Name, "extension", ext)
		return nil, &IngestionError{Kind: KindUnsupportedFormat, File: file.Name, Extension: ext}
	}
	return r.run(ctx, p, file, opts)
}

// ResolveAs parses file with the named reader, whatever its extension.
func (r *Resolver) ResolveAs(ctx context.Context, name string, file models.UploadedFile, opts Options) (*Result, error) {
	p, err := r.registry.GetParserByName(name)
	if err != nil {
		return nil, &IngestionError{Kind: KindUnsupportedFormat, File: file.Name, Extension: file.Extension(), Cause: err}
	}
	return r.run(ctx, p, file, opts)
}

func (r *Resolver) run(ctx context.Context, p Parser, file models.UploadedFile, opts Options) (*Result, error) {
	ext := file.Extension()
	if opts.Delimiter == "" {
		opts.Delimiter = DefaultDelimiter
	}
	if opts.TableName == "" {
		opts.TableName = file.Stem()
	}

	start := time.Now()
	table, err := p.Parse(ctx, file.Data, opts)
	if err != nil {
		r.log.Warn("parse failed", "file", file.Name, "parser", p.Name(), "error", err)
		return nil, &IngestionError{Kind: KindParseError, File: file.Name, Extension: ext, Cause: err}
	}
	if table == nil {
		return nil, &IngestionError{Kind: KindParseError, File: file.Name, Extension: ext,
			Cause: fmt.Errorf("%s reader returned no table", p.Name())}
	}

	table.Name = opts.TableName
	table = Normalize(table)
	elapsed := time.Since(start)

	r.log.Info("parsed upload",
		"file", file.Name,
		"parser", p.Name(),
		"rows", table.NumRows(),
		"columns", table.NumCols(),
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return &Result{Table: table, ParserName: p.Name(), Elapsed: elapsed}, nil
}

// Normalize rewrites every missing cell of the table to the empty string.
// Rows shorter than the header are padded. A table without missing cells is
// returned unchanged.
func Normalize(t *models.Table) *models.Table {
	if !t.HasMissing() {
		return t
	}
	out := t.Clone()
	width := len(out.Columns)
	for i, row := range out.Rows {
		if len(row) < width {
			padded := make([]any, width)
			copy(padded, row)
			row = padded
			out.Rows[i] = row
		}
		for c, v := range row {
			if models.IsMissing(v) {
				row[c] = ""
			}
		}
	}
	return out
}

// ContentKey identifies a parse result: the payload hash, plus the delimiter
// for CSV uploads since it changes the outcome.
func ContentKey(file models.UploadedFile, opts Options) string {
	h := sha256.New()
	h.Write(file.Data)
	h.Write([]byte{0})
	h.Write([]byte(file.Extension()))
	if file.Extension() == "csv" {
		delim := opts.Delimiter
		if delim == "" {
			delim = DefaultDelimiter
		}
		h.Write([]byte{0})
		h.Write([]byte(delim))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
