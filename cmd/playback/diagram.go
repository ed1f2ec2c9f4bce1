package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/playback/internal/diagram"
	"github.com/rendis/playback/internal/playback"
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [trace-file]",
	Short: "Render the trace graph",
	Long: `Render the trace graph after replaying the first --at steps on a
simulated clock. Without --at the whole trace is replayed, so the diagram
shows the final node states.

Examples:
  playback diagram run.json
  playback diagram run.json --format svg -o run.svg
  playback diagram run.json --format ascii --at 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiagram,
}

var (
	diagramFormat string
	diagramOut    string
	diagramAt     int
)

func init() {
	rootCmd.AddCommand(diagramCmd)
	addPlaybackFlags(diagramCmd)
	diagramCmd.Flags().StringVarP(&diagramFormat, "format", "f", "ascii", "Output format (mermaid, ascii, dot, svg, png)")
	diagramCmd.Flags().StringVarP(&diagramOut, "output", "o", "", "Write to file instead of stdout")
	diagramCmd.Flags().IntVar(&diagramAt, "at", -1, "Number of steps to replay before rendering (-1: all)")
}

func runDiagram(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, err := diagram.ParseFormat(diagramFormat)
	if err != nil {
		return err
	}

	c := cfg
	c.AutoStart = false
	c.LoopCron = ""
	clock := playback.NewManualClock()
	a, err := buildApp(ctx, c, args, appOptions{clock: clock})
	if err != nil {
		return err
	}
	defer a.Close()

	advanceTo(a.sched, clock, diagramAt)

	out, err := a.session.Diagram(ctx, format)
	if err != nil {
		return err
	}
	if diagramOut != "" {
		return os.WriteFile(diagramOut, out, 0o644)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// advanceTo starts s and fires timers until n steps have been entered. A
// negative n plays the whole run.
func advanceTo(s *playback.Scheduler, clock *playback.ManualClock, n int) {
	if n == 0 || len(s.Steps()) == 0 {
		return
	}
	s.Start()
	limit := len(s.Steps()) + 1
	if n > 0 && n < limit {
		limit = n - 1
	}
	clock.RunUntilIdle(limit)
}
