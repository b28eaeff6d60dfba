package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/visualiza/backend/internal/chart"
	"github.com/visualiza/backend/internal/parser"
	"github.com/visualiza/backend/internal/render"
)

func newRenderCmd() *cobra.Command {
	var (
		delimiter string
		docPath   string
		outDir    string
	)

	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Render the charts of a chart document to files",
		Long: "Parses FILE, runs the charts of the document in canonical order and writes\n" +
			"one PNG per chart. Charts without a raster form are written as figure JSON.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := chart.LoadDocument(docPath)
			if err != nil {
				return err
			}
			result, err := loadTable(cmd.Context(), args[0], "", delimiter)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			pass, err := chart.NewResolver(chart.DefaultLimits()).Pass(result.Table, doc.Charts, doc.Policy)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var failed []error
			for _, o := range pass.Outcomes {
				switch {
				case o.Skipped:
					_, _ = fmt.Fprintf(out, "%s: skipped\n", o.Kind)
					continue
				case o.Failed():
					_, _ = fmt.Fprintf(out, "%s: %v\n", o.Kind, o.Err)
					failed = append(failed, o.Err)
					continue
				}
				path, err := writeFigure(outDir, result.Table.Name, o)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%s: %s\n", o.Kind, path)
			}
			if pass.Err != nil {
				return pass.Err
			}
			return errors.Join(failed...)
		},
	}

	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", parser.DefaultDelimiter, "CSV delimiter, a regular expression when longer than one character")
	cmd.Flags().StringVarP(&docPath, "request", "r", "", "Chart document (YAML or JSON)")
	cmd.Flags().StringVar(&outDir, "out", ".", "Output directory")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func writeFigure(dir, stem string, o chart.Outcome) (string, error) {
	base := filepath.Join(dir, fmt.Sprintf("%s_%s", stem, o.Kind))

	png, err := render.PNG(o.Figure)
	if err == nil {
		path := base + ".png"
		return path, os.WriteFile(path, png, 0644)
	}
	if !errors.Is(err, render.ErrNoRaster) {
		return "", fmt.Errorf("%s: %w", o.Kind, err)
	}

	data, err := json.MarshalIndent(o.Figure, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s: %w", o.Kind, err)
	}
	path := base + ".json"
	return path, os.WriteFile(path, data, 0644)
}
