package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/visualiza/backend/internal/logging"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var logLevel string

	serve := newServeCmd()

	root := &cobra.Command{
		Use:           "visualiza",
		Short:         "Upload tabular files and plot them in the browser",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// serve configures logging from its config file
			if cmd.Name() != "serve" && cmd.Name() != "visualiza" {
				logging.SetupWriter(os.Stderr, logLevel, "text")
			}
		},
		// plain "visualiza" starts the server
		RunE: serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level of the offline commands")

	root.AddCommand(serve)
	root.AddCommand(newInspectCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "visualiza %s (built %s)\n", Version, BuildTime)
			return nil
		},
	}
}
