package diagram

import "github.com/rendis/playback/pkg/schema"

// Model is the intermediate representation shared by all renderers: the
// trace graph with the playback state painted on top.
type Model struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string

	// Running and StepIndex mirror the snapshot the model was built from.
	Running   bool
	StepIndex int
}

// Node is one graph node.
type Node struct {
	ID     string
	Label  string
	State  schema.NodeState
	Visits int
}

// Edge is one directed connection. Completed edges were traversed in the
// current run; at most one edge is Active.
type Edge struct {
	ID        string
	From      string
	To        string
	Completed bool
	Active    bool
}

// Node returns the node with id, or nil.
func (m *Model) Node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
