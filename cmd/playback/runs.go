package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/playback/internal/store"
	"github.com/rendis/playback/pkg/schema"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs recorded in the trace store",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var (
	runsLimit  int
	runsOffset int
	runsSince  string
	runsJSON   bool
	runsDelete string
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs")
	runsCmd.Flags().IntVar(&runsOffset, "offset", 0, "Runs to skip")
	runsCmd.Flags().StringVar(&runsSince, "since", "", "Only runs created at or after this RFC 3339 time or duration ago (e.g. 24h)")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "Output as JSON")
	runsCmd.Flags().StringVar(&runsDelete, "delete", "", "Delete the run with this ID instead of listing")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if runsDelete != "" {
		if err := st.DeleteRun(ctx, runsDelete); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", runsDelete)
		return nil
	}

	filter := store.RunFilter{Limit: runsLimit, Offset: runsOffset}
	if runsSince != "" {
		since, err := parseSince(runsSince, time.Now())
		if err != nil {
			return err
		}
		filter.Since = &since
	}

	runs, err := st.ListRuns(ctx, filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if runs == nil {
			runs = []*store.Run{}
		}
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTEPS\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, r.Name, r.StepCount, r.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

// parseSince accepts an RFC 3339 time or a duration counted back from now.
func parseSince(v string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}
	return time.Time{}, schema.NewErrorf(schema.ErrCodeValidation, "invalid --since %q: want RFC 3339 time or duration", v)
}
