package playback

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rendis/playback/internal/logging"
	"github.com/rendis/playback/internal/streaming"
	"github.com/rendis/playback/pkg/schema"
)

// Scheduler replays an ordered sequence of steps over time and publishes a
// Progress snapshot on every change. One scheduler plays one run at a time.
//
// All state changes happen under mu. Every armed timer carries the generation
// it was armed in; cancelling bumps the generation, so a callback that fires
// after Stop, Reset, a restart or Close finds a stale generation and does
// nothing. Timers never call the advance logic directly: they go through
// handler, which Reconfigure replaces, so a changed duration function applies
// on the very next tick.
type Scheduler struct {
	mu      sync.Mutex
	steps   []schema.Step
	cfg     config
	edges   *EdgeIndex
	logger  *slog.Logger
	cursor  int
	timer   Timer
	gen     uint64
	closed  bool
	handler func()

	progress atomic.Pointer[Progress]
}

// New creates a scheduler for steps. With auto-start enabled (the default)
// and at least one step, playback begins from a zero-delay timer, so the idle
// snapshot is always observable before the first advance.
func New(steps []schema.Step, opts ...Option) *Scheduler {
	s := &Scheduler{
		steps:  steps,
		cfg:    defaultConfig(),
		cursor: -1,
	}
	for _, opt := range opts {
		opt(&s.cfg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.installLocked()
	s.publishLocked(initialProgress(s.cfg.runID, false), schema.EventPlaybackIdle)
	s.scheduleAutoStartLocked()
	return s
}

// Snapshot returns the latest published snapshot. It never blocks.
func (s *Scheduler) Snapshot() *Progress {
	return s.progress.Load()
}

// Steps returns the steps being replayed.
func (s *Scheduler) Steps() []schema.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// Edges returns the configured edges.
func (s *Scheduler) Edges() []schema.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.edges
}

// Start restarts playback from the first step. Any run in progress is
// discarded; this is never a resume.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.startLocked()
}

// Stop freezes playback. The snapshot keeps its node states, edges and
// current step for inspection; a later Start still restarts from step 0.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancelTimerLocked()
	p := s.progress.Load().clone()
	p.IsRunning = false
	s.publishLocked(p, schema.EventPlaybackStopped)
}

// Reset stops playback and republishes the initial empty snapshot.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resetLocked()
}

// Reconfigure applies opts to a live scheduler. Timing options take effect on
// the next tick without re-arming the pending timer. Edges and run ID apply
// from the next advance; callers that need a consistent run should Start or
// Reset afterwards.
func (s *Scheduler) Reconfigure(opts ...Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	s.installLocked()
}

// Replace swaps the step sequence (and optionally the edges) and applies opts
// under the same lock, so no snapshot ever mixes the old steps with the new
// configuration. The current run is reset and, with auto-start enabled, a new
// one is scheduled.
func (s *Scheduler) Replace(steps []schema.Step, edges []schema.Edge, opts ...Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancelTimerLocked()
	s.steps = steps
	if edges != nil {
		s.cfg.edges = edges
	}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	s.installLocked()
	s.resetLocked()
	s.scheduleAutoStartLocked()
}

// Close cancels any pending timer and disposes the scheduler. Late timer
// callbacks and further control calls are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancelTimerLocked()
	s.closed = true
	s.logger.Debug("playback closed")
}

// installLocked rebuilds the derived configuration and points the handler
// slot at an advance bound to it.
func (s *Scheduler) installLocked() {
	s.logger = s.cfg.logger
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.edges = NewEdgeIndex(s.cfg.edges)

	cfg := s.cfg
	edges := s.edges
	s.handler = func() { s.advanceLocked(&cfg, edges) }
}

func (s *Scheduler) scheduleAutoStartLocked() {
	if !s.cfg.autoStart || len(s.steps) == 0 {
		return
	}
	s.armLocked(0, s.startLocked)
}

func (s *Scheduler) startLocked() {
	s.cancelTimerLocked()
	s.cursor = -1
	s.publishLocked(initialProgress(s.cfg.runID, true), schema.EventPlaybackStarted)
	s.handler()
}

func (s *Scheduler) resetLocked() {
	s.cancelTimerLocked()
	s.cursor = -1
	s.publishLocked(initialProgress(s.cfg.runID, false), schema.EventPlaybackReset)
}

// advanceLocked moves playback to the next step, or publishes the finished
// snapshot when no step is left.
func (s *Scheduler) advanceLocked(cfg *config, edges *EdgeIndex) {
	next := s.cursor + 1
	prev := s.progress.Load()

	if next >= len(s.steps) {
		s.cancelTimerLocked()
		p := prev.clone()
		if s.cursor >= 0 && s.cursor < len(s.steps) {
			last := s.steps[s.cursor]
			s.transitionLocked(p, last.NodeID, finishedState(last))
		}
		p.IsRunning = false
		p.CurrentStep = nil
		p.ActiveEdgeID = ""
		s.publishLocked(p, schema.EventPlaybackFinished)
		return
	}

	s.cursor = next
	step := s.steps[next]
	p := prev.clone()
	p.ActiveEdgeID = ""

	if next > 0 {
		prevStep := s.steps[next-1]
		s.transitionLocked(p, prevStep.NodeID, finishedState(prevStep))
		if id, ok := edges.Lookup(prevStep.NodeID, step.NodeID); ok {
			p.completedEdges[id] = struct{}{}
			p.ActiveEdgeID = id
		}
	}
	s.transitionLocked(p, step.NodeID, schema.NodeStateExecuting)

	d := cfg.duration(step, next)
	p.ElapsedMs += d.Milliseconds()
	p.IsRunning = true
	p.RunID = cfg.runID
	p.CurrentStepIndex = next
	p.CurrentStep = &step

	s.publishLocked(p, schema.EventStepAdvanced)
	s.armLocked(d, s.tick)
}

// tick is what advance timers run. It reads the handler slot when the timer
// fires, not when it was armed.
func (s *Scheduler) tick() {
	s.handler()
}

// transitionLocked sets a node state on an unpublished snapshot, refusing
// changes the node state machine does not allow.
func (s *Scheduler) transitionLocked(p *Progress, nodeID string, to schema.NodeState) {
	from := p.NodeState(nodeID)
	if from == to {
		return
	}
	if !isValidNodeTransition(from, to) {
		s.logger.Warn("ignoring invalid node transition",
			slog.String("node_id", nodeID),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
		return
	}
	p.nodeStates[nodeID] = to
}

// armLocked cancels the pending timer and arms fn to run after d.
func (s *Scheduler) armLocked(d time.Duration, fn func()) {
	s.cancelTimerLocked()
	gen := s.gen
	s.timer = s.cfg.clock.AfterFunc(d, func() { s.fire(gen, fn) })
}

// fire runs a timer callback unless its generation has been superseded.
func (s *Scheduler) fire(gen uint64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.timer = nil
	fn()
}

func (s *Scheduler) cancelTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) publishLocked(p *Progress, eventType string) {
	s.progress.Store(p)

	nodeID := ""
	if p.CurrentStep != nil {
		nodeID = p.CurrentStep.NodeID
	}
	ctx := logging.WithRunID(context.Background(), p.RunID)
	if nodeID != "" {
		ctx = logging.WithNodeID(ctx, nodeID)
	}

	s.logger.DebugContext(ctx, "playback snapshot",
		slog.String("event", eventType),
		slog.Int("step_index", p.CurrentStepIndex),
		slog.Bool("running", p.IsRunning),
		slog.String("active_edge", p.ActiveEdgeID),
		slog.Int64("elapsed_ms", p.ElapsedMs),
	)

	if s.cfg.hub == nil {
		return
	}
	if err := s.cfg.hub.Publish(ctx, streaming.StreamEvent{
		RunID:     p.RunID,
		NodeID:    nodeID,
		EventType: eventType,
		Payload:   p,
	}); err != nil {
		s.logger.WarnContext(ctx, "publish snapshot failed", slog.String("error", err.Error()))
	}
}
