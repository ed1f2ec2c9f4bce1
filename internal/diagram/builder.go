package diagram

import (
	"github.com/rendis/playback/internal/playback"
	"github.com/rendis/playback/pkg/schema"
)

// Build assembles a Model from the trace graph and an optional snapshot.
// Without a snapshot every node is idle. Node labels come from the first
// step that carries one; Visits counts how many steps up to the current one
// visited the node.
func Build(tr *schema.Trace, p *playback.Progress) *Model {
	m := &Model{StepIndex: -1}
	if tr == nil {
		return m
	}
	m.Title = tr.Name
	if m.Title == "" {
		m.Title = tr.RunID
	}
	if p != nil {
		m.Running = p.IsRunning
		m.StepIndex = p.CurrentStepIndex
	}

	labels := make(map[string]string)
	visits := make(map[string]int)
	for i, s := range tr.Steps {
		if _, ok := labels[s.NodeID]; !ok && s.Label != "" {
			labels[s.NodeID] = s.Label
		}
		if p != nil && i <= p.CurrentStepIndex {
			visits[s.NodeID]++
		}
	}

	for _, id := range tr.Nodes() {
		n := &Node{ID: id, Label: id, State: schema.NodeStateIdle, Visits: visits[id]}
		if l, ok := labels[id]; ok {
			n.Label = l
		}
		if p != nil {
			n.State = p.NodeState(id)
		}
		m.Nodes = append(m.Nodes, n)
	}

	for _, e := range tr.Edges {
		edge := Edge{ID: e.ID, From: e.Source, To: e.Target}
		if p != nil {
			edge.Completed = p.HasCompletedEdge(e.ID)
			edge.Active = e.ID != "" && e.ID == p.ActiveEdgeID
		}
		m.Edges = append(m.Edges, edge)
	}

	m.Levels = buildLevels(m)
	return m
}

// buildLevels assigns each node its breadth-first distance from the first
// node. Nodes the walk cannot reach start a new level of their own, in
// first-appearance order.
func buildLevels(m *Model) [][]string {
	if len(m.Nodes) == 0 {
		return nil
	}
	adj := make(map[string][]string)
	for _, e := range m.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	level := make(map[string]int, len(m.Nodes))
	var levels [][]string
	place := func(id string, l int) {
		level[id] = l
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], id)
	}

	for _, root := range m.Nodes {
		if _, seen := level[root.ID]; seen {
			continue
		}
		place(root.ID, len(levels))
		queue := []string{root.ID}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range adj[cur] {
				if _, seen := level[next]; seen || m.Node(next) == nil {
					continue
				}
				place(next, level[cur]+1)
				queue = append(queue, next)
			}
		}
	}
	return levels
}
