package playback

import (
	"encoding/json"
	"sort"

	"github.com/rendis/playback/pkg/schema"
)

// Progress is an immutable snapshot of playback state. A new value is built
// for every change; published values are never modified, so consumers may
// keep and compare them freely.
type Progress struct {
	IsRunning        bool
	RunID            string
	CurrentStepIndex int
	CurrentStep      *schema.Step
	ActiveEdgeID     string
	ElapsedMs        int64

	nodeStates     map[string]schema.NodeState
	completedEdges map[string]struct{}
}

func initialProgress(runID string, running bool) *Progress {
	return &Progress{
		IsRunning:        running,
		RunID:            runID,
		CurrentStepIndex: -1,
		nodeStates:       map[string]schema.NodeState{},
		completedEdges:   map[string]struct{}{},
	}
}

// clone returns a deep copy that the caller may mutate before publishing.
func (p *Progress) clone() *Progress {
	cp := *p
	cp.nodeStates = make(map[string]schema.NodeState, len(p.nodeStates)+1)
	for k, v := range p.nodeStates {
		cp.nodeStates[k] = v
	}
	cp.completedEdges = make(map[string]struct{}, len(p.completedEdges)+1)
	for k := range p.completedEdges {
		cp.completedEdges[k] = struct{}{}
	}
	if p.CurrentStep != nil {
		step := *p.CurrentStep
		cp.CurrentStep = &step
	}
	return &cp
}

// NodeState returns the state of a node; unvisited nodes are idle.
func (p *Progress) NodeState(nodeID string) schema.NodeState {
	if s, ok := p.nodeStates[nodeID]; ok {
		return s
	}
	return schema.NodeStateIdle
}

// NodeStates returns a copy of the visited nodes and their states.
func (p *Progress) NodeStates() map[string]schema.NodeState {
	out := make(map[string]schema.NodeState, len(p.nodeStates))
	for k, v := range p.nodeStates {
		out[k] = v
	}
	return out
}

// ExecutingNodes returns the nodes currently executing, sorted.
func (p *Progress) ExecutingNodes() []string {
	var out []string
	for id, s := range p.nodeStates {
		if s == schema.NodeStateExecuting {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// HasCompletedEdge reports whether the edge was traversed in this run.
func (p *Progress) HasCompletedEdge(edgeID string) bool {
	_, ok := p.completedEdges[edgeID]
	return ok
}

// CompletedEdgeIDs returns the traversed edge IDs, sorted.
func (p *Progress) CompletedEdgeIDs() []string {
	out := make([]string, 0, len(p.completedEdges))
	for id := range p.completedEdges {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CompletedEdgeCount returns the number of traversed edges.
func (p *Progress) CompletedEdgeCount() int {
	return len(p.completedEdges)
}

// Started reports whether the run has entered at least one step.
func (p *Progress) Started() bool {
	return p.CurrentStepIndex >= 0
}

// Finished reports whether the snapshot is the end-of-run snapshot.
func (p *Progress) Finished() bool {
	return !p.IsRunning && p.CurrentStepIndex >= 0 && p.CurrentStep == nil
}

type progressJSON struct {
	IsRunning        bool                        `json:"is_running"`
	RunID            string                      `json:"run_id"`
	CurrentStepIndex int                         `json:"current_step_index"`
	CurrentStep      *schema.Step                `json:"current_step"`
	NodeStates       map[string]schema.NodeState `json:"node_states"`
	CompletedEdges   []string                    `json:"completed_edges"`
	ActiveEdgeID     string                      `json:"active_edge_id,omitempty"`
	ElapsedMs        int64                       `json:"elapsed_ms"`
}

// MarshalJSON encodes the snapshot with completed edges as a sorted array.
func (p *Progress) MarshalJSON() ([]byte, error) {
	return json.Marshal(progressJSON{
		IsRunning:        p.IsRunning,
		RunID:            p.RunID,
		CurrentStepIndex: p.CurrentStepIndex,
		CurrentStep:      p.CurrentStep,
		NodeStates:       p.NodeStates(),
		CompletedEdges:   p.CompletedEdgeIDs(),
		ActiveEdgeID:     p.ActiveEdgeID,
		ElapsedMs:        p.ElapsedMs,
	})
}

// UnmarshalJSON decodes a snapshot produced by MarshalJSON.
func (p *Progress) UnmarshalJSON(data []byte) error {
	var raw progressJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Progress{
		IsRunning:        raw.IsRunning,
		RunID:            raw.RunID,
		CurrentStepIndex: raw.CurrentStepIndex,
		CurrentStep:      raw.CurrentStep,
		ActiveEdgeID:     raw.ActiveEdgeID,
		ElapsedMs:        raw.ElapsedMs,
		nodeStates:       make(map[string]schema.NodeState, len(raw.NodeStates)),
		completedEdges:   make(map[string]struct{}, len(raw.CompletedEdges)),
	}
	for k, v := range raw.NodeStates {
		p.nodeStates[k] = v
	}
	for _, id := range raw.CompletedEdges {
		p.completedEdges[id] = struct{}{}
	}
	return nil
}
