package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/playback/pkg/schema"
)

// stateTag returns a short ASCII indicator for a node state.
func stateTag(s schema.NodeState) string {
	switch s {
	case schema.NodeStateExecuting:
		return "[RUN]"
	case schema.NodeStateCompleted:
		return "[OK]"
	case schema.NodeStateError:
		return "[FAIL]"
	default:
		return ""
	}
}

// RenderASCII renders a Model as boxes, one row per level, followed by the
// edge list with traversal markers.
func RenderASCII(m *Model) string {
	var b strings.Builder

	if m.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", m.Title)
	}

	for i, level := range m.Levels {
		var boxes []asciiBox
		for _, id := range level {
			if n := m.Node(id); n != nil {
				boxes = append(boxes, makeBox(n))
			}
		}
		renderBoxRow(&b, boxes)
		if i < len(m.Levels)-1 {
			b.WriteString("       │\n")
			b.WriteString("       ▼\n")
		}
	}

	if len(m.Edges) > 0 {
		b.WriteString("\nedges:\n")
		for _, e := range m.Edges {
			marker := " "
			switch {
			case e.Active:
				marker = ">"
			case e.Completed:
				marker = "*"
			}
			fmt.Fprintf(&b, "  %s %s: %s ─→ %s\n", marker, e.ID, e.From, e.To)
		}
	}

	return b.String()
}

type asciiBox struct {
	lines []string
	width int
}

func makeBox(n *Node) asciiBox {
	content := []string{mermaidLabel(n)}
	if tag := stateTag(n.State); tag != "" {
		content = append(content, tag)
	}

	maxLen := 0
	for _, line := range content {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	width := maxLen + 4

	lines := []string{"┌" + strings.Repeat("─", width-2) + "┐"}
	for _, c := range content {
		lines = append(lines, "│ "+c+strings.Repeat(" ", maxLen-len(c))+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")
	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	height := 0
	for _, box := range boxes {
		if len(box.lines) > height {
			height = len(box.lines)
		}
	}
	for row := 0; row < height; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}
