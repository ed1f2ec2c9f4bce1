package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rendis/playback/pkg/schema"
)

// Config holds all playback configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	ListenAddr     string `json:"listen_addr"`
	LogLevel       string `json:"log_level"`
	LogJSON        bool   `json:"log_json"`
	DBPath         string `json:"db_path"`
	StepInterval   string `json:"step_interval"`
	DurationExpr   string `json:"duration_expr"`
	DurationEngine string `json:"duration_engine"`
	StepsQuery     string `json:"steps_query"`
	LoopCron       string `json:"loop_cron"`
	LoopInterrupt  bool   `json:"loop_interrupt"`
	AutoStart      bool   `json:"auto_start"`
	RunID          string `json:"run_id"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:     ":4200",
		LogLevel:       "info",
		DBPath:         filepath.Join(playbackDir(), "playback.db"),
		StepInterval:   "1.8s",
		DurationEngine: "expr",
		AutoStart:      true,
	}
}

func playbackDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".playback"
	}
	return filepath.Join(home, ".playback")
}

func settingsPath() string {
	return filepath.Join(playbackDir(), "settings.json")
}

func loadConfig() (Config, error) {
	return loadConfigFrom(settingsPath(), os.Getenv)
}

// loadConfigFrom layers path and the environment over the defaults. A missing
// settings file is not an error; a malformed one is.
func loadConfigFrom(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json.
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, schema.NewErrorf(schema.ErrCodeConfig, "parse %s: %v", path, err).WithCause(err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, schema.NewErrorf(schema.ErrCodeConfig, "read %s: %v", path, err).WithCause(err)
	}

	// Layer 3: env vars override.
	strs := map[string]*string{
		"PLAYBACK_LISTEN_ADDR":     &cfg.ListenAddr,
		"PLAYBACK_LOG_LEVEL":       &cfg.LogLevel,
		"PLAYBACK_DB_PATH":         &cfg.DBPath,
		"PLAYBACK_STEP_INTERVAL":   &cfg.StepInterval,
		"PLAYBACK_DURATION_EXPR":   &cfg.DurationExpr,
		"PLAYBACK_DURATION_ENGINE": &cfg.DurationEngine,
		"PLAYBACK_STEPS_QUERY":     &cfg.StepsQuery,
		"PLAYBACK_LOOP_CRON":       &cfg.LoopCron,
		"PLAYBACK_RUN_ID":          &cfg.RunID,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	bools := map[string]*bool{
		"PLAYBACK_LOG_JSON":       &cfg.LogJSON,
		"PLAYBACK_LOOP_INTERRUPT": &cfg.LoopInterrupt,
		"PLAYBACK_AUTO_START":     &cfg.AutoStart,
	}
	for key, dst := range bools {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return cfg, schema.NewErrorf(schema.ErrCodeConfig, "%s: %q is not a boolean", key, v)
			}
			*dst = b
		}
	}

	return cfg, nil
}

// Interval parses StepInterval. A bare number is milliseconds.
func (c Config) Interval() (time.Duration, error) {
	if c.StepInterval == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(c.StepInterval); err == nil {
		return d, nil
	}
	if ms, err := strconv.ParseFloat(c.StepInterval, 64); err == nil {
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	return 0, schema.NewErrorf(schema.ErrCodeConfig, "invalid step_interval %q", c.StepInterval)
}
