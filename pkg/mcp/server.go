package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/playback/internal/session"
	"github.com/rendis/playback/internal/streaming"
)

// PlaybackServerDeps holds the dependencies for creating a PlaybackServer.
type PlaybackServerDeps struct {
	Controller session.Controller
	Hub        streaming.EventHub
	Logger     *slog.Logger
	Version    string
}

// PlaybackServer exposes playback control as MCP tools.
type PlaybackServer struct {
	ctrl      session.Controller
	hub       streaming.EventHub
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewPlaybackServer creates a PlaybackServer with all tools registered.
func NewPlaybackServer(deps PlaybackServerDeps) *PlaybackServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &PlaybackServer{
		ctrl:   deps.Controller,
		hub:    deps.Hub,
		logger: logger,
	}

	mcpSrv := server.NewMCPServer(
		"playback",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Playback replays a recorded execution trace over its graph. Use playback.start to replay from the first step, playback.stop to freeze, playback.reset to clear, playback.status for the current snapshot, playback.diagram to render the graph with live state, playback.runs and playback.load to pick a recorded run."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin
// closes. Snapshot changes are pushed to the client while serving.
func (s *PlaybackServer) Serve(ctx context.Context) error {
	if s.hub != nil {
		n := NewProgressNotifier(s.mcpServer, s.hub, s.logger)
		if err := n.Start(ctx); err != nil {
			return err
		}
		defer n.Stop()
	}
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *PlaybackServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *PlaybackServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: startTool(), Handler: s.handleStart},
		{Tool: stopTool(), Handler: s.handleStop},
		{Tool: resetTool(), Handler: s.handleReset},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: runsTool(), Handler: s.handleRuns},
		{Tool: loadTool(), Handler: s.handleLoad},
	}
}
