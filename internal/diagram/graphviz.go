package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/rendis/playback/pkg/schema"
)

// RenderDOT renders a Model as Graphviz DOT source with layout attributes.
func RenderDOT(ctx context.Context, m *Model) ([]byte, error) {
	return renderGraphviz(ctx, m, graphviz.XDOT)
}

// RenderSVG renders a Model as an SVG image.
func RenderSVG(ctx context.Context, m *Model) ([]byte, error) {
	return renderGraphviz(ctx, m, graphviz.SVG)
}

// RenderPNG renders a Model as a PNG image.
func RenderPNG(ctx context.Context, m *Model) ([]byte, error) {
	return renderGraphviz(ctx, m, graphviz.PNG)
}

func renderGraphviz(ctx context.Context, m *Model, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if m.Title != "" {
		graph.SetLabel(m.Title)
	}

	gvNodes := make(map[string]*cgraph.Node, len(m.Nodes))
	for _, n := range m.Nodes {
		gvNode, err := graph.CreateNodeByName(n.ID)
		if err != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", n.ID, err)
		}
		gvNode.SetLabel(mermaidLabel(n))
		gvNode.SetShape(cgraph.BoxShape)
		applyStateStyle(gvNode, n.State)
		gvNodes[n.ID] = gvNode
	}

	for _, e := range m.Edges {
		from, to := gvNodes[e.From], gvNodes[e.To]
		if from == nil || to == nil {
			continue
		}
		gvEdge, err := graph.CreateEdgeByName(e.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("diagram: create edge %s: %w", e.ID, err)
		}
		switch {
		case e.Active:
			gvEdge.SetColor(colorActiveEdge)
			gvEdge.SetPenWidth(3)
			gvEdge.SetStyle(cgraph.BoldEdgeStyle)
		case e.Completed:
			gvEdge.SetColor(colorCompletedEdge)
			gvEdge.SetPenWidth(2)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, format, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// applyStateStyle fills a node according to its playback state.
func applyStateStyle(gvNode *cgraph.Node, state schema.NodeState) {
	gvNode.SetStyle(cgraph.FilledNodeStyle)
	switch state {
	case schema.NodeStateExecuting:
		gvNode.SetFillColor("#1a5276")
		gvNode.SetFontColor("white")
		gvNode.SetPenWidth(3)
	case schema.NodeStateCompleted:
		gvNode.SetFillColor("#2d6a2d")
		gvNode.SetFontColor("white")
	case schema.NodeStateError:
		gvNode.SetFillColor("#8b1a1a")
		gvNode.SetFontColor("white")
	default:
		gvNode.SetFillColor("#d3d3d3")
		gvNode.SetFontColor("black")
	}
}
