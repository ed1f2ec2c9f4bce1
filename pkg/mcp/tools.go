package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/playback/internal/diagram"
	"github.com/rendis/playback/internal/store"
)

// --- Tool definitions ---

func startTool() mcp.Tool {
	return mcp.NewTool("playback.start",
		mcp.WithDescription("Restart playback from the first step"),
	)
}

func stopTool() mcp.Tool {
	return mcp.NewTool("playback.stop",
		mcp.WithDescription("Freeze playback, keeping the current snapshot"),
	)
}

func resetTool() mcp.Tool {
	return mcp.NewTool("playback.reset",
		mcp.WithDescription("Stop playback and clear all progress"),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("playback.status",
		mcp.WithDescription("Get the current playback snapshot"),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("playback.diagram",
		mcp.WithDescription("Render the trace graph with the live playback state"),
		mcp.WithString("format",
			mcp.Enum("mermaid", "ascii", "dot", "svg", "png"),
			mcp.Description("Output format (default: mermaid). png is returned as an image"),
		),
	)
}

func runsTool() mcp.Tool {
	return mcp.NewTool("playback.runs",
		mcp.WithDescription("List recorded runs in the trace store"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default: 20)")),
		mcp.WithString("since", mcp.Description("Only runs created at or after this RFC 3339 time")),
	)
}

func loadTool() mcp.Tool {
	return mcp.NewTool("playback.load",
		mcp.WithDescription("Replace the replayed trace with a recorded run"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the recorded run")),
	)
}

// --- Handlers ---

func (s *PlaybackServer) handleStart(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.ctrl.Start()
	return marshalResult(s.ctrl.Snapshot())
}

func (s *PlaybackServer) handleStop(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.ctrl.Stop()
	return marshalResult(s.ctrl.Snapshot())
}

func (s *PlaybackServer) handleReset(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.ctrl.Reset()
	return marshalResult(s.ctrl.Snapshot())
}

// handleStatus returns the snapshot together with trace totals.
func (s *PlaybackServer) handleStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := s.ctrl.Snapshot()
	out := map[string]any{
		"progress":        p,
		"finished":        p.Finished(),
		"executing_nodes": p.ExecutingNodes(),
	}
	if tr := s.ctrl.Trace(); tr != nil {
		out["total_steps"] = len(tr.Steps)
		out["total_edges"] = len(tr.Edges)
	}
	return marshalResult(out)
}

func (s *PlaybackServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := diagram.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.ctrl.Diagram(ctx, format)
	if err != nil {
		s.logger.Error("diagram render failed", slog.String("format", string(format)), slog.String("error", err.Error()))
		return mcp.NewToolResultError(fmt.Sprintf("diagram render failed: %v", err)), nil
	}

	if format == diagram.FormatPNG {
		return mcp.NewToolResultImage("playback diagram", base64.StdEncoding.EncodeToString(out), "image/png"), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *PlaybackServer) handleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.RunFilter{Limit: int(req.GetFloat("limit", 20))}
	if v := req.GetString("since", ""); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since: %v", err)), nil
		}
		filter.Since = &t
	}

	runs, err := s.ctrl.ListRuns(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list runs failed: %v", err)), nil
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	return marshalResult(map[string]any{"runs": runs, "count": len(runs)})
}

func (s *PlaybackServer) handleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	if err := s.ctrl.LoadRun(ctx, runID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load run failed: %v", err)), nil
	}
	return marshalResult(s.ctrl.Snapshot())
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
