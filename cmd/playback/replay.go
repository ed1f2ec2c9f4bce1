package main

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/playback/internal/playback"
	"github.com/rendis/playback/internal/streaming"
	"github.com/rendis/playback/pkg/schema"
)

var replayCmd = &cobra.Command{
	Use:   "replay [trace-file]",
	Short: "Replay a trace and print each snapshot as a JSON line",
	Long: `Replay a trace in the terminal. Every published snapshot is written to
stdout as one JSON object per line, ending with the finished snapshot.

With --instant, steps are replayed on a simulated clock so the whole run is
printed immediately; elapsed_ms still reflects the configured durations.

Examples:
  playback replay run.json
  playback replay run.json --instant --duration-expr 'failed ? 3000 : 500'
  playback replay --from-run 3f2c... --steps-query '.events'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

var flagInstant bool

func init() {
	rootCmd.AddCommand(replayCmd)
	addPlaybackFlags(replayCmd)
	replayCmd.Flags().BoolVar(&flagInstant, "instant", false, "Replay on a simulated clock without waiting")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A replay always plays, regardless of auto_start.
	c := cfg
	c.AutoStart = false
	c.LoopCron = ""

	opts := appOptions{hub: true, fullHistory: true}
	var clock *playback.ManualClock
	if flagInstant {
		clock = playback.NewManualClock()
		opts.clock = clock
	}

	a, err := buildApp(ctx, c, args, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	return replay(ctx, a, clock, cmd.OutOrStdout())
}

// replay starts playback and writes snapshots to w until the run finishes.
// With a manual clock the run is driven to completion synchronously, one
// timer at a time, so no snapshot is lost to a slow reader.
func replay(ctx context.Context, a *app, clock *playback.ManualClock, w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(a.sched.Snapshot()); err != nil {
		return err
	}
	if len(a.sched.Steps()) == 0 {
		return nil
	}

	if clock != nil {
		a.sched.Start()
		for {
			if err := enc.Encode(a.sched.Snapshot()); err != nil {
				return err
			}
			if clock.Pending() == 0 || ctx.Err() != nil {
				return nil
			}
			clock.RunUntilIdle(1)
		}
	}

	events, cancel, err := a.hub.Subscribe(ctx, streaming.EventFilter{EventTypes: []string{
		schema.EventStepAdvanced, schema.EventPlaybackFinished,
	}})
	if err != nil {
		return err
	}
	defer cancel()
	a.sched.Start()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := enc.Encode(ev.Payload); err != nil {
				return err
			}
			if ev.EventType == schema.EventPlaybackFinished {
				return nil
			}
		}
	}
}
