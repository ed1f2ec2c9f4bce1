package playback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/playback/pkg/schema"
)

func TestProgressJSON(t *testing.T) {
	p := initialProgress("run-7", true)
	p.CurrentStepIndex = 1
	p.CurrentStep = &schema.Step{NodeID: "B", Status: schema.StepStatusSuccess}
	p.ActiveEdgeID = "e1"
	p.ElapsedMs = 250
	p.nodeStates["A"] = schema.NodeStateCompleted
	p.nodeStates["B"] = schema.NodeStateExecuting
	p.completedEdges["e1"] = struct{}{}
	p.completedEdges["e0"] = struct{}{}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, true, raw["is_running"])
	assert.Equal(t, "run-7", raw["run_id"])
	assert.Equal(t, []any{"e0", "e1"}, raw["completed_edges"])
	assert.Equal(t, map[string]any{"A": "completed", "B": "executing"}, raw["node_states"])

	var back Progress
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.CompletedEdgeIDs(), back.CompletedEdgeIDs())
	assert.Equal(t, p.NodeStates(), back.NodeStates())
	assert.Equal(t, "B", back.CurrentStep.NodeID)
	assert.Equal(t, int64(250), back.ElapsedMs)
}

func TestProgressCloneIsDeep(t *testing.T) {
	p := initialProgress("r", true)
	p.nodeStates["A"] = schema.NodeStateExecuting
	p.CurrentStep = &schema.Step{NodeID: "A"}

	cp := p.clone()
	cp.nodeStates["A"] = schema.NodeStateCompleted
	cp.completedEdges["e"] = struct{}{}
	cp.CurrentStep.NodeID = "Z"

	assert.Equal(t, schema.NodeStateExecuting, p.NodeState("A"))
	assert.False(t, p.HasCompletedEdge("e"))
	assert.Equal(t, "A", p.CurrentStep.NodeID)
	assert.Equal(t, schema.NodeStateIdle, p.NodeState("unknown"))
}

func TestNodeTransitions(t *testing.T) {
	assert.True(t, isValidNodeTransition(schema.NodeStateIdle, schema.NodeStateExecuting))
	assert.True(t, isValidNodeTransition(schema.NodeStateExecuting, schema.NodeStateError))
	assert.True(t, isValidNodeTransition(schema.NodeStateCompleted, schema.NodeStateExecuting))
	assert.False(t, isValidNodeTransition(schema.NodeStateIdle, schema.NodeStateCompleted))
	assert.False(t, isValidNodeTransition(schema.NodeStateCompleted, schema.NodeStateIdle))
	assert.False(t, isValidNodeTransition(schema.NodeStateCompleted, schema.NodeStateError))

	assert.Equal(t, schema.NodeStateError, finishedState(schema.Step{Status: schema.StepStatusError}))
	assert.Equal(t, schema.NodeStateCompleted, finishedState(schema.Step{Status: "timeout"}))
}
