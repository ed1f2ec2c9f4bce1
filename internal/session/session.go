// Package session binds a playback scheduler to the trace it replays, so the
// outer surfaces (HTTP panel, MCP tools, CLI) share one control point.
package session

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/rendis/playback/internal/diagram"
	"github.com/rendis/playback/internal/playback"
	"github.com/rendis/playback/internal/store"
	"github.com/rendis/playback/internal/trace"
	"github.com/rendis/playback/pkg/schema"
)

// Controller is what the outer surfaces drive.
type Controller interface {
	Start()
	Stop()
	Reset()
	Snapshot() *playback.Progress
	Trace() *schema.Trace
	Diagram(ctx context.Context, format diagram.Format) ([]byte, error)
	LoadTrace(tr *schema.Trace)
	LoadRun(ctx context.Context, runID string) error
	ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error)
}

// Deps holds a Session's collaborators. Store is optional; without it the
// run operations fail with NOT_FOUND.
type Deps struct {
	Scheduler *playback.Scheduler
	Store     store.Store
	Logger    *slog.Logger
}

// Session is the default Controller.
type Session struct {
	sched  *playback.Scheduler
	store  store.Store
	logger *slog.Logger

	mu    sync.RWMutex
	trace *schema.Trace
}

// New creates a Session replaying tr on deps.Scheduler. The scheduler must
// already hold tr's steps and edges.
func New(tr *schema.Trace, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if tr == nil {
		tr = &schema.Trace{Steps: deps.Scheduler.Steps(), Edges: deps.Scheduler.Edges()}
	}
	return &Session{
		sched:  deps.Scheduler,
		store:  deps.Store,
		logger: logger,
		trace:  tr,
	}
}

// Start restarts playback from the first step.
func (s *Session) Start() {
	s.logger.Info("playback start requested")
	s.sched.Start()
}

// Stop freezes playback at the current step.
func (s *Session) Stop() {
	s.logger.Info("playback stop requested")
	s.sched.Stop()
}

// Reset stops playback and clears all progress.
func (s *Session) Reset() {
	s.logger.Info("playback reset requested")
	s.sched.Reset()
}

// Snapshot returns the latest published snapshot.
func (s *Session) Snapshot() *playback.Progress {
	return s.sched.Snapshot()
}

// Trace returns the trace being replayed.
func (s *Session) Trace() *schema.Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trace
}

// Diagram renders the trace graph with the current snapshot overlaid. The
// trace and snapshot are read together, so a concurrent LoadTrace never pairs
// one trace with the other's progress.
func (s *Session) Diagram(ctx context.Context, format diagram.Format) ([]byte, error) {
	s.mu.RLock()
	m := diagram.Build(s.trace, s.sched.Snapshot())
	s.mu.RUnlock()
	return diagram.Render(ctx, m, format)
}

// LoadTrace swaps the replayed trace. The current run is reset and, with
// auto-start enabled, the new one begins on its own.
func (s *Session) LoadTrace(tr *schema.Trace) {
	if tr == nil {
		return
	}
	edges := tr.Edges
	if edges == nil {
		edges = []schema.Edge{}
	}

	s.mu.Lock()
	s.sched.Replace(tr.Steps, edges, playback.WithRunID(tr.RunID))
	s.trace = tr
	s.mu.Unlock()

	s.logger.Info("trace loaded",
		slog.String("run_id", tr.RunID),
		slog.Int("steps", len(tr.Steps)),
		slog.Int("edges", len(tr.Edges)),
	)
}

// LoadRun loads a recorded run from the store.
func (s *Session) LoadRun(ctx context.Context, runID string) error {
	if s.store == nil {
		return schema.NewError(schema.ErrCodeNotFound, "no trace store configured")
	}
	res, err := trace.FromStore(ctx, s.store, runID, s.logger)
	if err != nil {
		return err
	}
	s.LoadTrace(res.Trace)
	return nil
}

// ListRuns lists recorded runs.
func (s *Session) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	if s.store == nil {
		return nil, schema.NewError(schema.ErrCodeNotFound, "no trace store configured")
	}
	return s.store.ListRuns(ctx, filter)
}

var _ Controller = (*Session)(nil)
