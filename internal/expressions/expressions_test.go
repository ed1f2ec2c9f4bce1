package expressions

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/playback/pkg/schema"
)

func TestNewEngine(t *testing.T) {
	for name, want := range map[string]string{"": "expr", "expr": "expr", "EXPR": "expr", "cel": "cel", "jq": "jq"} {
		e, err := NewEngine(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, e.Name(), name)
	}

	_, err := NewEngine("lua")
	require.Error(t, err)
	var pe *schema.PlaybackError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, schema.ErrCodeConfig, pe.Code)
}

func TestExprEngine_Evaluate(t *testing.T) {
	e := NewExprEngine()
	data := StepData(schema.Step{NodeID: "B", Status: schema.StepStatusError}, 3)

	out, err := e.Evaluate(context.Background(), `failed ? 500 : 1800`, data)
	require.NoError(t, err)
	assert.Equal(t, 500, out)

	out, err = e.Evaluate(context.Background(), `index * 100`, data)
	require.NoError(t, err)
	assert.Equal(t, 300, out)

	out, err = e.Evaluate(context.Background(), `node + ":" + status`, data)
	require.NoError(t, err)
	assert.Equal(t, "B:error", out)
}

func TestExprEngine_CompileError(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), `1 +`, nil)
	require.Error(t, err)
	var pe *schema.PlaybackError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, schema.ErrCodeExpression, pe.Code)
	assert.Equal(t, "1 +", pe.Details["expression"])
}

func TestExprEngine_Empty(t *testing.T) {
	_, err := NewExprEngine().Evaluate(context.Background(), "", nil)
	require.Error(t, err)
}

func TestExprEngine_CachesPrograms(t *testing.T) {
	e := NewExprEngine()
	data := StepData(schema.Step{NodeID: "A"}, 0)
	for i := 0; i < 3; i++ {
		_, err := e.Evaluate(context.Background(), `index + 1`, data)
		require.NoError(t, err)
	}
	assert.Len(t, e.cache, 1)
}

func TestCELEngine_Evaluate(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	data := StepData(schema.Step{NodeID: "C", Status: schema.StepStatusError}, 2)

	out, err := e.Evaluate(context.Background(), `failed ? 500 : 1800`, data)
	require.NoError(t, err)
	assert.Equal(t, int64(500), out)

	out, err = e.Evaluate(context.Background(), `step.status == "error" ? index * 10 : 0`, data)
	require.NoError(t, err)
	assert.Equal(t, int64(20), out)

	out, err = e.Evaluate(context.Background(), `node`, data)
	require.NoError(t, err)
	assert.Equal(t, "C", out)
}

func TestCELEngine_MissingVariablesDefault(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), `index + 1`, map[string]any{"unrelated": true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out)
}

func TestCELEngine_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), `undeclared_var > 1`, nil)
	require.Error(t, err)
	var pe *schema.PlaybackError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, schema.ErrCodeExpression, pe.Code)
}

func TestGoJQEngine_Query(t *testing.T) {
	e := NewGoJQEngine()
	doc := map[string]any{
		"events": []any{
			map[string]any{"node": "A", "ok": true},
			map[string]any{"node": "B", "ok": false},
		},
	}

	out, err := e.Query(context.Background(), `.events[] | .node`, doc)
	require.NoError(t, err)
	assert.Equal(t, []any{"A", "B"}, out)

	single, err := e.Evaluate(context.Background(), `.events | length`, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, single)

	none, err := e.Evaluate(context.Background(), `empty`, doc)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGoJQEngine_NormalizesIntegers(t *testing.T) {
	out, err := NewGoJQEngine().Evaluate(context.Background(), `.n + 1`, map[string]any{"n": int64(41)})
	require.NoError(t, err)
	assert.Equal(t, float64(42), out)
}

func TestGoJQEngine_Errors(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), `.[`, nil)
	require.Error(t, err)

	_, err = e.Evaluate(context.Background(), `error("boom")`, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	out, err := e.Evaluate(context.Background(), `$ENV | length`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0, out)
}

func TestToDuration(t *testing.T) {
	tests := []struct {
		in   any
		want time.Duration
		ok   bool
	}{
		{250, 250 * time.Millisecond, true},
		{int64(1800), 1800 * time.Millisecond, true},
		{uint64(5), 5 * time.Millisecond, true},
		{1.5, 1500 * time.Microsecond, true},
		{-10, 0, true},
		{math.NaN(), 0, true},
		{math.Inf(1), 0, true},
		{"2s", 2 * time.Second, true},
		{"750", 750 * time.Millisecond, true},
		{"-1s", 0, true},
		{3 * time.Second, 3 * time.Second, true},
		{"soon", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToDuration(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestNewDurationFunc(t *testing.T) {
	fn, err := NewDurationFunc(NewExprEngine(), `failed ? 500 : 100 * (index + 1)`, time.Second, nil)
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, fn(schema.Step{NodeID: "A"}, 0))
	assert.Equal(t, 300*time.Millisecond, fn(schema.Step{NodeID: "B"}, 2))
	assert.Equal(t, 500*time.Millisecond, fn(schema.Step{NodeID: "C", Status: schema.StepStatusError}, 2))
}

func TestNewDurationFunc_CEL(t *testing.T) {
	cel, err := NewCELEngine()
	require.NoError(t, err)

	fn, err := NewDurationFunc(cel, `status == "skipped" ? 0 : 40`, time.Second, nil)
	require.NoError(t, err)

	assert.Equal(t, 40*time.Millisecond, fn(schema.Step{NodeID: "A", Status: schema.StepStatusSuccess}, 0))
	assert.Equal(t, time.Duration(0), fn(schema.Step{NodeID: "B", Status: schema.StepStatusSkipped}, 1))
}

func TestNewDurationFunc_Fallback(t *testing.T) {
	fn, err := NewDurationFunc(NewExprEngine(), `step.label`, 42*time.Millisecond, nil)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, fn(schema.Step{NodeID: "A", Label: "2s"}, 0))
	assert.Equal(t, 42*time.Millisecond, fn(schema.Step{NodeID: "B", Label: "later"}, 1))
}

func TestNewDurationFunc_RejectsBadExpression(t *testing.T) {
	_, err := NewDurationFunc(NewExprEngine(), `)(`, time.Second, nil)
	require.Error(t, err)

	_, err = NewDurationFunc(NewExprEngine(), "  ", time.Second, nil)
	require.Error(t, err)

	_, err = NewDurationFunc(nil, "1", time.Second, nil)
	require.Error(t, err)
}
