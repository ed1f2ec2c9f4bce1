// Package loop restarts playback on a cron schedule, for unattended
// displays that should replay a trace forever.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/playback/internal/playback"
	"github.com/rendis/playback/pkg/schema"
)

// DefaultPollInterval is how often the loop checks whether a restart is due.
const DefaultPollInterval = time.Second

// Target is the playback the loop restarts. *playback.Scheduler satisfies it.
type Target interface {
	Start()
	Snapshot() *playback.Progress
}

// Config configures a Looper.
type Config struct {
	// Cron is a standard 5-field expression, an optional leading seconds
	// field, or a descriptor such as "@every 30s".
	Cron string
	// Interrupt restarts even when the current run is still playing.
	// Without it, a due restart is skipped until the run finishes.
	Interrupt    bool
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Looper restarts a Target whenever its cron schedule comes due.
type Looper struct {
	target    Target
	schedule  cron.Schedule
	interrupt bool
	poll      time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	next     time.Time
	restarts int
	cancel   context.CancelFunc
	done     chan struct{}
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "parse cron expression %q", expr).WithCause(err)
	}
	return sched, nil
}

// New creates a Looper for target.
func New(target Target, cfg Config) (*Looper, error) {
	if target == nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "loop target is nil")
	}
	sched, err := ParseSchedule(cfg.Cron)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Looper{
		target:    target,
		schedule:  sched,
		interrupt: cfg.Interrupt,
		poll:      poll,
		logger:    logger,
	}, nil
}

// Start launches the background loop. The first restart is due at the first
// schedule time after now.
func (l *Looper) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.done != nil {
		l.mu.Unlock()
		return fmt.Errorf("loop already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	done := make(chan struct{})
	l.done = done
	l.next = l.schedule.Next(time.Now())
	next := l.next
	l.mu.Unlock()

	go l.run(loopCtx, done)
	l.logger.Info("playback loop started", slog.Time("next_restart", next))
	return nil
}

func (l *Looper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Tick(now)
		}
	}
}

// Tick restarts the target if a restart is due at now and reports whether it
// did. A skipped restart moves on to the next schedule time.
func (l *Looper) Tick(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.next.IsZero() {
		l.next = l.schedule.Next(now)
		return false
	}
	if now.Before(l.next) {
		return false
	}

	due := l.next
	l.next = l.schedule.Next(now)

	if p := l.target.Snapshot(); p != nil && p.IsRunning && !l.interrupt {
		l.logger.Debug("restart skipped, run still playing",
			slog.Time("due", due),
			slog.Int("step_index", p.CurrentStepIndex),
		)
		return false
	}

	l.target.Start()
	l.restarts++
	l.logger.Info("playback restarted by loop",
		slog.Int("restarts", l.restarts),
		slog.Time("next_restart", l.next),
	)
	return true
}

// Next returns the time of the next scheduled restart.
func (l *Looper) Next() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}

// Restarts returns how many restarts the loop has performed.
func (l *Looper) Restarts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.restarts
}

// Stop shuts the loop down and waits for it to exit.
func (l *Looper) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	l.logger.Info("playback loop stopped")
}
