package trace

import (
	"fmt"

	"github.com/rendis/playback/pkg/schema"
)

type edgePair struct{ source, target string }

// Check reports problems JSON Schema cannot express. Duplicate edge IDs are
// errors; everything else only degrades highlighting and is a warning.
func Check(tr *schema.Trace) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if tr == nil {
		result.AddError("/", "trace is nil")
		return result
	}

	if len(tr.Steps) == 0 {
		result.AddWarning("/steps", "trace has no steps; playback never starts")
	}

	ids := make(map[string]int, len(tr.Edges))
	pairs := make(map[edgePair]int, len(tr.Edges))
	for i, e := range tr.Edges {
		path := fmt.Sprintf("/edges/%d", i)
		if j, dup := ids[e.ID]; dup {
			result.AddError(path+"/id", "duplicate edge id %q (first at /edges/%d)", e.ID, j)
		} else {
			ids[e.ID] = i
		}
		p := edgePair{e.Source, e.Target}
		if j, dup := pairs[p]; dup {
			result.AddWarning(path, "edge %q repeats %s -> %s; %q wins", e.ID, e.Source, e.Target, tr.Edges[j].ID)
		} else {
			pairs[p] = i
		}
	}

	for i, s := range tr.Steps {
		switch s.Status {
		case schema.StepStatusSuccess, schema.StepStatusError, schema.StepStatusSkipped:
		default:
			result.AddWarning(fmt.Sprintf("/steps/%d/status", i), "unknown status %q is treated as success", s.Status)
		}
	}

	if len(tr.Edges) == 0 {
		if len(tr.Steps) > 1 {
			result.AddWarning("/edges", "trace has no edges; no edge will be highlighted")
		}
		return result
	}
	for i := 1; i < len(tr.Steps); i++ {
		from, to := tr.Steps[i-1].NodeID, tr.Steps[i].NodeID
		if _, ok := pairs[edgePair{from, to}]; !ok {
			result.AddWarning(fmt.Sprintf("/steps/%d", i), "no edge from %q to %q", from, to)
		}
	}
	return result
}
