package playback

import (
	"log/slog"
	"time"

	"github.com/rendis/playback/internal/streaming"
	"github.com/rendis/playback/pkg/schema"
)

// DefaultStepInterval is the per-step duration used when no duration function is set.
const DefaultStepInterval = 1800 * time.Millisecond

// DurationFunc computes how long a step stays current. Negative results are
// treated as zero.
type DurationFunc func(step schema.Step, index int) time.Duration

type config struct {
	edges        []schema.Edge
	runID        string
	autoStart    bool
	stepInterval time.Duration
	stepDuration DurationFunc
	clock        Clock
	logger       *slog.Logger
	hub          streaming.EventHub
}

func defaultConfig() config {
	return config{
		autoStart:    true,
		stepInterval: DefaultStepInterval,
		clock:        RealClock{},
	}
}

// duration returns the clamped duration of the step at index.
func (c *config) duration(step schema.Step, index int) time.Duration {
	d := c.stepInterval
	if c.stepDuration != nil {
		d = c.stepDuration(step, index)
	}
	if d < 0 {
		return 0
	}
	return d
}

// Option configures a Scheduler.
type Option func(*config)

// WithEdges sets the edges used to resolve the traversed edge between steps.
func WithEdges(edges []schema.Edge) Option {
	return func(c *config) { c.edges = edges }
}

// WithRunID sets the label stamped on every snapshot.
func WithRunID(id string) Option {
	return func(c *config) { c.runID = id }
}

// WithAutoStart controls whether a non-empty scheduler starts on its own.
// Defaults to true.
func WithAutoStart(on bool) Option {
	return func(c *config) { c.autoStart = on }
}

// WithStepInterval sets the fixed per-step duration.
func WithStepInterval(d time.Duration) Option {
	return func(c *config) { c.stepInterval = d }
}

// WithStepDuration sets a per-step duration function. It takes precedence
// over the step interval for every step.
func WithStepDuration(fn DurationFunc) Option {
	return func(c *config) { c.stepDuration = fn }
}

// WithClock replaces the real-time clock.
func WithClock(clock Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger. Transitions are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithHub publishes every snapshot to hub.
func WithHub(hub streaming.EventHub) Option {
	return func(c *config) { c.hub = hub }
}
