package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/playback/pkg/schema"
)

func issuePaths(issues []schema.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Path
	}
	return out
}

func TestCheck_Clean(t *testing.T) {
	r := Check(expectedLinear())
	assert.True(t, r.Valid())
	assert.Empty(t, r.Warnings)
}

func TestCheck_Nil(t *testing.T) {
	assert.False(t, Check(nil).Valid())
}

func TestCheck_MissingEdgeBetweenSteps(t *testing.T) {
	tr := expectedLinear()
	tr.Edges = tr.Edges[:1]

	r := Check(tr)
	assert.True(t, r.Valid())
	assert.Equal(t, []string{"/steps/2"}, issuePaths(r.Warnings))
	assert.Contains(t, r.Warnings[0].Message, `"B" to "C"`)
}

func TestCheck_DuplicatePairWarns(t *testing.T) {
	tr := expectedLinear()
	tr.Edges = append(tr.Edges, schema.Edge{ID: "e1-dup", Source: "A", Target: "B"})

	r := Check(tr)
	assert.True(t, r.Valid())
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, "/edges/2", r.Warnings[0].Path)
	assert.Contains(t, r.Warnings[0].Message, `"e1" wins`)
}

func TestCheck_DuplicateIDFails(t *testing.T) {
	tr := expectedLinear()
	tr.Edges = append(tr.Edges, schema.Edge{ID: "e2", Source: "C", Target: "A"})

	r := Check(tr)
	assert.False(t, r.Valid())
	assert.Equal(t, []string{"/edges/2/id"}, issuePaths(r.Errors))
}

func TestCheck_NoEdges(t *testing.T) {
	tr := expectedLinear()
	tr.Edges = nil
	assert.Equal(t, []string{"/edges"}, issuePaths(Check(tr).Warnings))

	single := &schema.Trace{Steps: []schema.Step{{NodeID: "A", Status: schema.StepStatusSuccess}}}
	assert.Empty(t, Check(single).Warnings)
}

func TestCheck_UnknownStatus(t *testing.T) {
	tr := &schema.Trace{Steps: []schema.Step{{NodeID: "A", Status: "timeout"}}}
	r := Check(tr)
	assert.Equal(t, []string{"/steps/0/status"}, issuePaths(r.Warnings))
}

func TestSchemaValidator_ReportsPointers(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	r := v.Validate(map[string]any{
		"steps": []any{map[string]any{"node_id": ""}},
	})
	require.False(t, r.Valid())
	assert.Equal(t, "/steps/0/node_id", r.Errors[0].Path)

	r = v.Validate(map[any]any{1: "x"})
	assert.False(t, r.Valid())
}
