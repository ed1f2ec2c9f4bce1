package loop

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/playback/internal/playback"
	"github.com/rendis/playback/pkg/schema"
)

type fakeTarget struct {
	mu      sync.Mutex
	starts  int
	running bool
}

func (f *fakeTarget) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
}

func (f *fakeTarget) Snapshot() *playback.Progress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &playback.Progress{IsRunning: f.running}
}

func (f *fakeTarget) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseSchedule(t *testing.T) {
	for _, expr := range []string{"*/5 * * * *", "30 */5 * * * *", "@every 10s", "@hourly"} {
		_, err := ParseSchedule(expr)
		assert.NoError(t, err, expr)
	}

	_, err := ParseSchedule("not a cron")
	require.Error(t, err)
	assert.Contains(t, err.Error(), schema.ErrCodeConfig)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, Config{Cron: "@every 1s"})
	require.Error(t, err)

	_, err = New(&fakeTarget{}, Config{Cron: ""})
	require.Error(t, err)
}

func TestTick_RestartsWhenDue(t *testing.T) {
	target := &fakeTarget{}
	l, err := New(target, Config{Cron: "@every 10s", Logger: quiet()})
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, l.Tick(base), "first tick only schedules")
	assert.Equal(t, base.Add(10*time.Second), l.Next())

	assert.False(t, l.Tick(base.Add(5*time.Second)))
	assert.True(t, l.Tick(base.Add(10*time.Second)))
	assert.Equal(t, 1, target.Starts())
	assert.Equal(t, 1, l.Restarts())
	assert.Equal(t, base.Add(20*time.Second), l.Next())
}

func TestTick_SkipsWhileRunning(t *testing.T) {
	target := &fakeTarget{running: true}
	l, err := New(target, Config{Cron: "@every 10s", Logger: quiet()})
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.Tick(base)
	assert.False(t, l.Tick(base.Add(10*time.Second)))
	assert.Equal(t, 0, target.Starts())
	assert.Equal(t, base.Add(20*time.Second), l.Next())
}

func TestTick_InterruptRestartsRunningPlayback(t *testing.T) {
	target := &fakeTarget{running: true}
	l, err := New(target, Config{Cron: "@every 10s", Interrupt: true, Logger: quiet()})
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.Tick(base)
	assert.True(t, l.Tick(base.Add(11*time.Second)))
	assert.Equal(t, 1, target.Starts())
}

func TestStartStop(t *testing.T) {
	target := &fakeTarget{}
	l, err := New(target, Config{Cron: "@every 1s", PollInterval: 10 * time.Millisecond, Logger: quiet()})
	require.NoError(t, err)

	require.NoError(t, l.Start(context.Background()))
	assert.Error(t, l.Start(context.Background()))

	assert.Eventually(t, func() bool { return target.Starts() >= 1 }, 5*time.Second, 10*time.Millisecond)

	l.Stop()
	l.Stop()
	after := target.Starts()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, target.Starts())
}

func TestStopRightAfterStart(t *testing.T) {
	for i := 0; i < 200; i++ {
		l, err := New(&fakeTarget{}, Config{Cron: "@every 1h", PollInterval: time.Millisecond, Logger: quiet()})
		require.NoError(t, err)
		require.NoError(t, l.Start(context.Background()))
		l.Stop()
	}
}

func TestRestartAfterStop(t *testing.T) {
	l, err := New(&fakeTarget{}, Config{Cron: "@every 1h", PollInterval: time.Millisecond, Logger: quiet()})
	require.NoError(t, err)

	require.NoError(t, l.Start(context.Background()))
	l.Stop()
	require.NoError(t, l.Start(context.Background()))
	l.Stop()
	l.Stop()
}

func TestLoop_RestartsRealScheduler(t *testing.T) {
	clock := playback.NewManualClock()
	s := playback.New([]schema.Step{{NodeID: "A"}, {NodeID: "B"}},
		playback.WithClock(clock),
		playback.WithStepInterval(time.Second),
	)
	t.Cleanup(s.Close)
	clock.RunUntilIdle(10)
	require.True(t, s.Snapshot().Finished())

	l, err := New(s, Config{Cron: "@every 1m", Logger: quiet()})
	require.NoError(t, err)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Tick(base)
	require.True(t, l.Tick(base.Add(time.Minute)))

	p := s.Snapshot()
	assert.True(t, p.IsRunning)
	assert.Equal(t, 0, p.CurrentStepIndex)
}
