package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rendis/playback/internal/expressions"
	"github.com/rendis/playback/internal/loop"
	"github.com/rendis/playback/internal/playback"
	"github.com/rendis/playback/internal/session"
	"github.com/rendis/playback/internal/store"
	"github.com/rendis/playback/internal/streaming"
	"github.com/rendis/playback/internal/trace"
	"github.com/rendis/playback/pkg/schema"
)

var (
	flagListen         string
	flagInterval       string
	flagDurationExpr   string
	flagDurationEngine string
	flagStepsQuery     string
	flagLoopCron       string
	flagLoopInterrupt  bool
	flagAutoStart      bool
	flagRunID          string
	flagFromRun        string
)

// addPlaybackFlags registers the flags shared by commands that build a
// playback session.
func addPlaybackFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagInterval, "interval", "", "Fixed step duration (e.g. 500ms; bare numbers are ms)")
	f.StringVar(&flagDurationExpr, "duration-expr", "", "Expression computing each step's duration in ms")
	f.StringVar(&flagDurationEngine, "duration-engine", "", "Engine for --duration-expr (expr, cel, jq)")
	f.StringVar(&flagStepsQuery, "steps-query", "", "jq query extracting steps from the trace document")
	f.BoolVar(&flagAutoStart, "auto-start", true, "Start playback as soon as the trace is loaded")
	f.StringVar(&flagRunID, "run-id", "", "Run ID reported in snapshots (default: from trace or random)")
	f.StringVar(&flagFromRun, "from-run", "", "Replay a run recorded in the trace store instead of a file")
}

// app is a fully wired playback session and the resources it owns.
type app struct {
	logger  *slog.Logger
	hub     *streaming.MemoryHub
	sched   *playback.Scheduler
	session *session.Session
	store   store.Store
	looper  *loop.Looper
}

// appOptions adjusts wiring for a single command.
type appOptions struct {
	hub bool
	// fullHistory sizes the hub so a single subscriber can hold every
	// snapshot of one run without dropping any.
	fullHistory bool
	clock       playback.Clock
	store       bool
}

// buildApp loads the trace named by args (or --from-run) and wires the
// scheduler, session and optional store, hub and loop around it.
func buildApp(ctx context.Context, c Config, args []string, o appOptions) (*app, error) {
	a := &app{logger: newLogger()}

	if o.store || flagFromRun != "" {
		st, err := openStore(ctx, c.DBPath)
		if err != nil {
			return nil, err
		}
		a.store = st
	}

	tr, err := a.loadTrace(ctx, c, args)
	if err != nil {
		a.Close()
		return nil, err
	}
	if c.RunID != "" {
		tr.RunID = c.RunID
	}
	if tr.RunID == "" {
		tr.RunID = uuid.NewString()
	}

	opts, err := schedulerOptions(c, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	opts = append(opts,
		playback.WithEdges(tr.Edges),
		playback.WithRunID(tr.RunID),
		playback.WithLogger(a.logger),
	)
	if o.hub {
		if o.fullHistory {
			a.hub = streaming.NewMemoryHubSize(len(tr.Steps) + 4)
		} else {
			a.hub = streaming.NewMemoryHub()
		}
		opts = append(opts, playback.WithHub(a.hub))
	}
	if o.clock != nil {
		opts = append(opts, playback.WithClock(o.clock))
	}

	a.sched = playback.New(tr.Steps, opts...)
	a.session = session.New(tr, session.Deps{Scheduler: a.sched, Store: a.store, Logger: a.logger})

	if c.LoopCron != "" {
		a.looper, err = loop.New(a.sched, loop.Config{
			Cron:      c.LoopCron,
			Interrupt: c.LoopInterrupt,
			Logger:    a.logger,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.logger.Info("trace loaded",
		slog.String("run_id", tr.RunID),
		slog.Int("steps", len(tr.Steps)),
		slog.Int("edges", len(tr.Edges)),
	)
	return a, nil
}

func (a *app) loadTrace(ctx context.Context, c Config, args []string) (*schema.Trace, error) {
	var (
		res *trace.Result
		err error
	)
	switch {
	case flagFromRun != "":
		res, err = trace.FromStore(ctx, a.store, flagFromRun, a.logger)
	case len(args) == 1:
		var loader *trace.Loader
		loader, err = trace.NewLoader(trace.LoaderConfig{StepsQuery: c.StepsQuery, Logger: a.logger})
		if err != nil {
			return nil, err
		}
		res, err = loader.LoadFile(ctx, args[0])
	default:
		return nil, schema.NewError(schema.ErrCodeValidation, "a trace file or --from-run is required")
	}
	if err != nil {
		return nil, err
	}
	return res.Trace, nil
}

// schedulerOptions maps timing configuration to scheduler options.
func schedulerOptions(c Config, logger *slog.Logger) ([]playback.Option, error) {
	interval, err := c.Interval()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = playback.DefaultStepInterval
	}
	opts := []playback.Option{
		playback.WithAutoStart(c.AutoStart),
		playback.WithStepInterval(interval),
	}
	if c.DurationExpr == "" {
		return opts, nil
	}

	engine, err := expressions.NewEngine(c.DurationEngine)
	if err != nil {
		return nil, err
	}
	fn, err := expressions.NewDurationFunc(engine, c.DurationExpr, interval, logger)
	if err != nil {
		return nil, fmt.Errorf("duration_expr: %w", err)
	}
	return append(opts, playback.WithStepDuration(fn)), nil
}

func openStore(ctx context.Context, path string) (*store.LibSQLStore, error) {
	if dir := filepath.Dir(strings.TrimPrefix(path, "file:")); dir != "." && !strings.Contains(path, "://") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConfig, "create db dir %s: %v", dir, err).WithCause(err)
		}
	}
	st, err := store.NewLibSQLStore(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// Close releases everything buildApp created. Safe on a partial app.
func (a *app) Close() {
	if a.looper != nil {
		a.looper.Stop()
	}
	if a.sched != nil {
		a.sched.Close()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store failed", slog.String("error", err.Error()))
		}
	}
}
