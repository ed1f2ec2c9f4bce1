package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rendis/playback/internal/store"
	"github.com/rendis/playback/internal/trace"
)

var importCmd = &cobra.Command{
	Use:   "import <trace-file>...",
	Short: "Record trace files as runs in the trace store",
	Long: `Validate trace files and record each one as a run in the trace store.
The new run IDs are printed one per line. A trace without a run_id gets a
random one.

Examples:
  playback import run.json
  playback import --steps-query '.events' logs/*.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&flagStepsQuery, "steps-query", "", "jq query extracting steps from the trace document")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	loader, err := trace.NewLoader(trace.LoaderConfig{StepsQuery: cfg.StepsQuery, Logger: logger})
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, path := range args {
		res, err := loader.LoadFile(ctx, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		id, err := store.ImportTrace(ctx, st, res.Trace)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logger.Debug("trace imported", slog.String("file", path), slog.String("run_id", id))
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
