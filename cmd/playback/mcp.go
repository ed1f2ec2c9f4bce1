package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	playbackmcp "github.com/rendis/playback/pkg/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp [trace-file]",
	Short: "Serve playback tools over MCP stdio",
	Long: `Expose playback control as MCP tools on stdin/stdout. Snapshot changes
are pushed to the client as notifications/playback/progress.

Logs go to stderr so they never interleave with the protocol stream.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	addPlaybackFlags(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, args, appOptions{hub: true, store: true})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := playbackmcp.NewPlaybackServer(playbackmcp.PlaybackServerDeps{
		Controller: a.session,
		Hub:        a.hub,
		Logger:     a.logger,
		Version:    version,
	})
	return srv.Serve(ctx)
}
