package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rendis/playback/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "playback",
	Short: "Replay recorded execution traces as animated progress",
	Long: `playback replays a recorded execution trace step by step, lighting up
nodes and edges of the trace graph as if the run were happening live.

Traces come from JSON or YAML files, or from runs recorded in the local
trace store. Progress is served to a browser panel, streamed over SSE,
exposed as MCP tools, or printed as JSON lines.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRootConfig,
}

// cfg is the resolved configuration for the running command.
var cfg Config

var (
	flagLogLevel string
	flagLogJSON  bool
	flagDBPath   string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&flagLogJSON, "log-json", false, "Emit JSON logs")
	pf.StringVar(&flagDBPath, "db", "", "Path to the trace store database")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadRootConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = applyFlags(loaded, cmd.Flags())
	return nil
}

// applyFlags overrides c with every flag set on the command line.
func applyFlags(c Config, fs *pflag.FlagSet) Config {
	set := func(name string, apply func()) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("log-level", func() { c.LogLevel = flagLogLevel })
	set("log-json", func() { c.LogJSON = flagLogJSON })
	set("db", func() { c.DBPath = flagDBPath })
	set("listen", func() { c.ListenAddr = flagListen })
	set("interval", func() { c.StepInterval = flagInterval })
	set("duration-expr", func() { c.DurationExpr = flagDurationExpr })
	set("duration-engine", func() { c.DurationEngine = flagDurationEngine })
	set("steps-query", func() { c.StepsQuery = flagStepsQuery })
	set("loop", func() { c.LoopCron = flagLoopCron })
	set("loop-interrupt", func() { c.LoopInterrupt = flagLoopInterrupt })
	set("auto-start", func() { c.AutoStart = flagAutoStart })
	set("run-id", func() { c.RunID = flagRunID })
	return c
}

// logOutput is where command logs go. Logs never share stdout with command
// output.
var logOutput io.Writer = os.Stderr

func newLogger() *slog.Logger {
	return logging.New(logOutput, cfg.LogLevel, cfg.LogJSON)
}
