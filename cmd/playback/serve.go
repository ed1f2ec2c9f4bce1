package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/playback/internal/panel"
)

var serveCmd = &cobra.Command{
	Use:   "serve [trace-file]",
	Short: "Serve the playback panel over HTTP",
	Long: `Serve the control panel, JSON API and SSE progress stream for a trace.

Examples:
  playback serve run.json
  playback serve --from-run 3f2c... --listen :8080
  playback serve run.yaml --loop "@every 1m"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addPlaybackFlags(serveCmd)
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "HTTP listen address")
	serveCmd.Flags().StringVar(&flagLoopCron, "loop", "", "Cron schedule restarting playback (e.g. \"@every 30s\")")
	serveCmd.Flags().BoolVar(&flagLoopInterrupt, "loop-interrupt", false, "Restart even when the current run is still playing")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, args, appOptions{hub: true, store: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.looper != nil {
		if err := a.looper.Start(ctx); err != nil {
			return err
		}
	}

	ps := panel.NewPanelServer(panel.PanelDeps{
		Controller: a.session,
		Hub:        a.hub,
		Logger:     a.logger,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           ps.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("panel listening", slog.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
