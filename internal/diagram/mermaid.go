package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/playback/pkg/schema"
)

const (
	colorCompletedEdge = "#2d6a2d"
	colorActiveEdge    = "#e0a800"
)

// RenderMermaid renders a Model as a Mermaid flowchart. Node states become
// classes; traversed edges are drawn green and the active edge thick amber.
func RenderMermaid(m *Model) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if m.Title != "" {
		fmt.Fprintf(&b, "    %%%% %s\n", m.Title)
	}

	for _, n := range m.Nodes {
		fmt.Fprintf(&b, "    %s[%q]\n", mermaidSafeID(n.ID), mermaidLabel(n))
	}
	for _, e := range m.Edges {
		fmt.Fprintf(&b, "    %s --> %s\n", mermaidSafeID(e.From), mermaidSafeID(e.To))
	}

	b.WriteString("\n")
	b.WriteString("    classDef idle fill:#6b6b6b,stroke:#4a4a4a,color:#fff\n")
	b.WriteString("    classDef executing fill:#1a5276,stroke:#0e3a52,color:#fff,stroke-width:3px\n")
	b.WriteString("    classDef completed fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef error fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")

	for _, n := range m.Nodes {
		fmt.Fprintf(&b, "    class %s %s\n", mermaidSafeID(n.ID), mermaidClass(n.State))
	}

	// linkStyle addresses edges by declaration order.
	for i, e := range m.Edges {
		switch {
		case e.Active:
			fmt.Fprintf(&b, "    linkStyle %d stroke:%s,stroke-width:4px\n", i, colorActiveEdge)
		case e.Completed:
			fmt.Fprintf(&b, "    linkStyle %d stroke:%s,stroke-width:2px\n", i, colorCompletedEdge)
		}
	}

	return b.String()
}

func mermaidLabel(n *Node) string {
	label := firstLine(n.Label)
	if n.Visits > 1 {
		label = fmt.Sprintf("%s x%d", label, n.Visits)
	}
	return label
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_", ":", "_")
	return r.Replace(id)
}

func mermaidClass(s schema.NodeState) string {
	switch s {
	case schema.NodeStateExecuting, schema.NodeStateCompleted, schema.NodeStateError:
		return string(s)
	default:
		return "idle"
	}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}
