package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/playback/internal/playback"
	"github.com/rendis/playback/internal/session"
	"github.com/rendis/playback/internal/store"
	"github.com/rendis/playback/internal/streaming"
	"github.com/rendis/playback/pkg/schema"
)

// --- Mock controller ---

type mockController struct {
	session.Controller // embed for unimplemented methods

	runs    []*store.Run
	runsErr error
	loaded  []string
	loadErr error
	filter  store.RunFilter
}

func (m *mockController) ListRuns(_ context.Context, filter store.RunFilter) ([]*store.Run, error) {
	m.filter = filter
	return m.runs, m.runsErr
}

func (m *mockController) LoadRun(_ context.Context, id string) error {
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loaded = append(m.loaded, id)
	return nil
}

func (m *mockController) Snapshot() *playback.Progress {
	return &playback.Progress{RunID: "mock", CurrentStepIndex: -1}
}

// --- Helpers ---

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), target))
}

func newLiveServer(t *testing.T) (*PlaybackServer, *playback.ManualClock) {
	t.Helper()
	tr := &schema.Trace{
		RunID: "run-1",
		Steps: []schema.Step{
			{NodeID: "A", Status: schema.StepStatusSuccess},
			{NodeID: "B", Status: schema.StepStatusError},
		},
		Edges: []schema.Edge{{ID: "e1", Source: "A", Target: "B"}},
	}
	clock := playback.NewManualClock()
	sched := playback.New(tr.Steps,
		playback.WithEdges(tr.Edges),
		playback.WithRunID(tr.RunID),
		playback.WithAutoStart(false),
		playback.WithStepInterval(50*time.Millisecond),
		playback.WithClock(clock),
	)
	t.Cleanup(sched.Close)
	sess := session.New(tr, session.Deps{Scheduler: sched, Logger: quiet()})
	return NewPlaybackServer(PlaybackServerDeps{Controller: sess, Logger: quiet()}), clock
}

// --- Tests ---

func TestNewPlaybackServer(t *testing.T) {
	s := NewPlaybackServer(PlaybackServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.MCPServer())
	assert.NotNil(t, s.logger)
}

func TestToolRegistration(t *testing.T) {
	s := NewPlaybackServer(PlaybackServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 7)
	for _, name := range []string{
		"playback.start", "playback.stop", "playback.reset", "playback.status",
		"playback.diagram", "playback.runs", "playback.load",
	} {
		assert.NotNil(t, s.mcpServer.GetTool(name), "tool %s should be registered", name)
	}
}

func TestControlTools(t *testing.T) {
	s, clock := newLiveServer(t)
	ctx := context.Background()

	result, err := s.handleStart(ctx, buildRequest("playback.start", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	var p playback.Progress
	unmarshalResult(t, result, &p)
	assert.True(t, p.IsRunning)
	assert.Equal(t, "A", p.CurrentStep.NodeID)

	clock.Advance(50 * time.Millisecond)

	result, err = s.handleStop(ctx, buildRequest("playback.stop", nil))
	require.NoError(t, err)
	unmarshalResult(t, result, &p)
	assert.False(t, p.IsRunning)
	assert.Equal(t, 1, p.CurrentStepIndex)
	assert.Equal(t, "e1", p.ActiveEdgeID)

	result, err = s.handleReset(ctx, buildRequest("playback.reset", nil))
	require.NoError(t, err)
	unmarshalResult(t, result, &p)
	assert.Equal(t, -1, p.CurrentStepIndex)
}

func TestStatusTool(t *testing.T) {
	s, clock := newLiveServer(t)
	ctx := context.Background()
	_, _ = s.handleStart(ctx, buildRequest("playback.start", nil))
	clock.RunUntilIdle(10)

	result, err := s.handleStatus(ctx, buildRequest("playback.status", nil))
	require.NoError(t, err)

	var out struct {
		Progress       playback.Progress `json:"progress"`
		Finished       bool              `json:"finished"`
		ExecutingNodes []string          `json:"executing_nodes"`
		TotalSteps     int               `json:"total_steps"`
		TotalEdges     int               `json:"total_edges"`
	}
	unmarshalResult(t, result, &out)
	assert.True(t, out.Finished)
	assert.Empty(t, out.ExecutingNodes)
	assert.Equal(t, 2, out.TotalSteps)
	assert.Equal(t, 1, out.TotalEdges)
	assert.Equal(t, int64(100), out.Progress.ElapsedMs)
	assert.Equal(t, schema.NodeStateError, out.Progress.NodeState("B"))
}

func TestDiagramTool(t *testing.T) {
	s, _ := newLiveServer(t)
	ctx := context.Background()
	_, _ = s.handleStart(ctx, buildRequest("playback.start", nil))

	result, err := s.handleDiagram(ctx, buildRequest("playback.diagram", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, extractText(t, result), "class A executing")

	result, err = s.handleDiagram(ctx, buildRequest("playback.diagram", map[string]any{"format": "ascii"}))
	require.NoError(t, err)
	assert.Contains(t, extractText(t, result), "[RUN]")

	result, err = s.handleDiagram(ctx, buildRequest("playback.diagram", map[string]any{"format": "png"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	img, ok := result.Content[1].(mcp.ImageContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.NotEmpty(t, img.Data)

	result, err = s.handleDiagram(ctx, buildRequest("playback.diagram", map[string]any{"format": "gif"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRunsTool(t *testing.T) {
	ctrl := &mockController{runs: []*store.Run{{ID: "r1", StepCount: 3}}}
	s := NewPlaybackServer(PlaybackServerDeps{Controller: ctrl, Logger: quiet()})

	result, err := s.handleRuns(context.Background(), buildRequest("playback.runs", map[string]any{
		"limit": float64(5),
		"since": "2026-01-01T00:00:00Z",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out struct {
		Runs  []store.Run `json:"runs"`
		Count int         `json:"count"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "r1", out.Runs[0].ID)
	assert.Equal(t, 5, ctrl.filter.Limit)
	require.NotNil(t, ctrl.filter.Since)
	assert.Equal(t, 2026, ctrl.filter.Since.Year())

	result, err = s.handleRuns(context.Background(), buildRequest("playback.runs", map[string]any{"since": "soon"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRunsTool_StoreError(t *testing.T) {
	ctrl := &mockController{runsErr: schema.NewError(schema.ErrCodeNotFound, "no trace store configured")}
	s := NewPlaybackServer(PlaybackServerDeps{Controller: ctrl, Logger: quiet()})

	result, err := s.handleRuns(context.Background(), buildRequest("playback.runs", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "no trace store configured")
}

func TestLoadTool(t *testing.T) {
	ctrl := &mockController{}
	s := NewPlaybackServer(PlaybackServerDeps{Controller: ctrl, Logger: quiet()})

	result, err := s.handleLoad(context.Background(), buildRequest("playback.load", map[string]any{"run_id": "r9"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, []string{"r9"}, ctrl.loaded)

	result, err = s.handleLoad(context.Background(), buildRequest("playback.load", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	ctrl.loadErr = schema.NewError(schema.ErrCodeNotFound, `run "x" not found`)
	result, err = s.handleLoad(context.Background(), buildRequest("playback.load", map[string]any{"run_id": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- Notifier ---

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []map[string]any
}

func (b *recordingBroadcaster) SendNotificationToAllClients(method string, params map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if method == ProgressMethod {
		b.events = append(b.events, params)
	}
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func TestProgressNotifier(t *testing.T) {
	hub := streaming.NewMemoryHub()
	t.Cleanup(hub.Close)
	out := &recordingBroadcaster{}
	n := NewProgressNotifier(out, hub, quiet())

	require.NoError(t, n.Start(context.Background()))
	assert.Error(t, n.Start(context.Background()))

	require.NoError(t, hub.Publish(context.Background(), streaming.StreamEvent{
		RunID: "run-1", NodeID: "A", EventType: schema.EventStepAdvanced,
	}))
	require.Eventually(t, func() bool { return out.count() == 1 }, time.Second, 5*time.Millisecond)

	out.mu.Lock()
	got := out.events[0]
	out.mu.Unlock()
	assert.Equal(t, schema.EventStepAdvanced, got["event"])
	assert.Equal(t, "A", got["node_id"])

	n.Stop()
	n.Stop()
	assert.Equal(t, 0, hub.Subscribers())
}
