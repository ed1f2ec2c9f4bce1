package main

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/playback/internal/playback"
	"github.com/rendis/playback/pkg/schema"
)

func TestExample_Checkout(t *testing.T) {
	c := testConfig(t)
	c.DurationEngine = "jq"
	c.DurationExpr = ".step.attrs.duration_ms // 300"
	clock := playback.NewManualClock()

	a, err := buildApp(context.Background(), c, []string{"../../examples/checkout.json"}, appOptions{clock: clock})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, replay(context.Background(), a, clock, io.Discard))

	p := a.sched.Snapshot()
	assert.Equal(t, "checkout-demo", p.RunID)
	assert.True(t, p.Finished())
	assert.Equal(t, int64(4700), p.ElapsedMs)
	assert.Equal(t, 4, p.CompletedEdgeCount())
	assert.Equal(t, schema.NodeStateCompleted, p.NodeState("notify"))
}

func TestExample_ETLWithStepsQuery(t *testing.T) {
	c := testConfig(t)
	c.StepsQuery = ".log | map({node_id: .task, status: .result})"
	clock := playback.NewManualClock()

	a, err := buildApp(context.Background(), c, []string{"../../examples/etl.yaml"}, appOptions{clock: clock})
	require.NoError(t, err)
	defer a.Close()

	steps := a.sched.Steps()
	require.Len(t, steps, 4)
	assert.Equal(t, "extract", steps[0].NodeID)
	assert.Equal(t, schema.StepStatusSkipped, steps[2].Status)
	assert.Equal(t, "nightly-etl", a.session.Trace().Name)

	require.NoError(t, replay(context.Background(), a, clock, io.Discard))
	p := a.sched.Snapshot()
	assert.True(t, p.Finished())
	assert.Equal(t, 3, p.CompletedEdgeCount())
	assert.Equal(t, int64(400), p.ElapsedMs)
}
