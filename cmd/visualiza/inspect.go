package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/visualiza/backend/internal/chart"
	"github.com/visualiza/backend/internal/models"
	"github.com/visualiza/backend/internal/parser"
	"github.com/visualiza/backend/internal/profile"
)

func newInspectCmd() *cobra.Command {
	var (
		delimiter  string
		parserName string
		rows       int
		output     string
	)

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Parse a file and print its first rows and column profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := loadTable(cmd.Context(), args[0], parserName, delimiter)
			if err != nil {
				return err
			}
			if rows <= 0 {
				rows = chart.DefaultLimits().DefaultRows
			}
			prof, err := profile.Describe(result.Table)
			if err != nil {
				return fmt.Errorf("profile: %w", err)
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				head := result.Table.Head(rows)
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"parser":  result.ParserName,
					"columns": head.Columns,
					"rows":    head.Rows,
					"profile": prof,
				})
			}

			_, _ = fmt.Fprintf(out, "%s: %d rows, %d columns (parser %s)\n\n",
				result.Table.Name, result.Table.NumRows(), result.Table.NumCols(), result.ParserName)
			if err := printTable(out, result.Table.Head(rows)); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out)
			return printProfile(out, prof)
		},
	}

	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", parser.DefaultDelimiter, "CSV delimiter, a regular expression when longer than one character")
	cmd.Flags().StringVarP(&parserName, "parser", "p", "", "Reader to use instead of the one chosen by extension (csv, json, xml, html, spreadsheet)")
	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "Number of rows to print (default 5)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text or json")
	return cmd
}

// loadTable reads and parses a file from disk the way an upload is parsed.
// A non-empty parserName bypasses the extension lookup.
func loadTable(ctx context.Context, path, parserName, delimiter string) (*parser.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	file := models.UploadedFile{Name: filepath.Base(path), Data: data}
	opts := parser.Options{Delimiter: delimiter}
	if parserName != "" {
		return parser.NewResolver(nil).ResolveAs(ctx, parserName, file, opts)
	}
	return parser.NewResolver(nil).Resolve(ctx, file, opts)
}

func printTable(w io.Writer, t *models.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, c := range t.Columns {
		if i > 0 {
			_, _ = fmt.Fprint(tw, "\t")
		}
		_, _ = fmt.Fprint(tw, c)
	}
	_, _ = fmt.Fprintln(tw)
	for _, row := range t.Rows {
		for i, v := range row {
			if i > 0 {
				_, _ = fmt.Fprint(tw, "\t")
			}
			_, _ = fmt.Fprint(tw, v)
		}
		_, _ = fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func printProfile(w io.Writer, p *profile.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "column\tkind\tcount\tempty\tsummary")
	for _, c := range p.Columns {
		summary := ""
		switch {
		case c.Summary != nil:
			s := c.Summary
			summary = fmt.Sprintf("mean=%g std=%g min=%g median=%g max=%g", s.Mean, s.StdDev, s.Min, s.Median, s.Max)
		case c.Categories != nil:
			summary = fmt.Sprintf("unique=%d top=%q freq=%d", c.Categories.Unique, c.Categories.Top, c.Categories.Freq)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", c.Name, c.Kind, c.Count, c.Empty, summary)
	}
	return tw.Flush()
}
