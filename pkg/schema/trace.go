package schema

// Trace is a materialized run: the ordered steps and the graph they walk.
type Trace struct {
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Steps []Step `json:"steps" yaml:"steps"`
	Edges []Edge `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// Step is one replayed unit of execution. Its position in Trace.Steps is its index.
type Step struct {
	NodeID string         `json:"node_id" yaml:"node_id"`
	Status StepStatus     `json:"status" yaml:"status"`
	Label  string         `json:"label,omitempty" yaml:"label,omitempty"`
	Attrs  map[string]any `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// Failed reports whether the step ended in error.
func (s Step) Failed() bool {
	return s.Status == StepStatusError
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Nodes returns node IDs in first-appearance order: step nodes first, then
// any edge endpoint no step visits.
func (t *Trace) Nodes() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, s := range t.Steps {
		add(s.NodeID)
	}
	for _, e := range t.Edges {
		add(e.Source)
		add(e.Target)
	}
	return out
}
