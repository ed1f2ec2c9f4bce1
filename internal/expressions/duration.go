package expressions

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rendis/playback/pkg/schema"
)

// StepData builds the variables a duration expression sees for one step.
//
//	step    map with node_id, status, label and attrs
//	node    the step's node ID
//	status  the step's status
//	index   zero-based position in the sequence
//	failed  true when status is "error"
func StepData(step schema.Step, index int) map[string]any {
	attrs := make(map[string]any, len(step.Attrs))
	for k, v := range step.Attrs {
		attrs[k] = v
	}
	return map[string]any{
		"step": map[string]any{
			"node_id": step.NodeID,
			"status":  string(step.Status),
			"label":   step.Label,
			"attrs":   attrs,
		},
		"node":   step.NodeID,
		"status": string(step.Status),
		"index":  index,
		"failed": step.Failed(),
	}
}

// NewDurationFunc compiles expression with engine and returns a per-step
// duration function. Numeric results are milliseconds, strings are parsed with
// time.ParseDuration. A step whose evaluation fails or yields an unusable
// value gets fallback. The expression is checked once against a sample step,
// so syntax errors surface here instead of during playback.
func NewDurationFunc(engine Engine, expression string, fallback time.Duration, logger *slog.Logger) (func(schema.Step, int) time.Duration, error) {
	if engine == nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "duration engine is nil")
	}
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, emptyError(engine.Name())
	}
	if logger == nil {
		logger = slog.Default()
	}

	sample := schema.Step{NodeID: "sample", Status: schema.StepStatusSuccess}
	if _, err := engine.Evaluate(context.Background(), expression, StepData(sample, 0)); err != nil {
		return nil, err
	}

	return func(step schema.Step, index int) time.Duration {
		out, err := engine.Evaluate(context.Background(), expression, StepData(step, index))
		if err != nil {
			logger.Warn("duration expression failed, using fallback",
				slog.String("node_id", step.NodeID),
				slog.Int("index", index),
				slog.String("error", err.Error()),
			)
			return fallback
		}
		d, ok := ToDuration(out)
		if !ok {
			logger.Warn("duration expression returned unusable value, using fallback",
				slog.String("node_id", step.NodeID),
				slog.Any("value", out),
			)
			return fallback
		}
		return d
	}, nil
}

// ToDuration converts an expression result to a duration. Numbers are
// milliseconds. NaN, infinities and negative values become zero. The second
// return is false when v has no duration reading at all.
func ToDuration(v any) (time.Duration, bool) {
	switch val := v.(type) {
	case time.Duration:
		return clampDuration(val), true
	case int:
		return millis(float64(val)), true
	case int32:
		return millis(float64(val)), true
	case int64:
		return millis(float64(val)), true
	case uint:
		return millis(float64(val)), true
	case uint32:
		return millis(float64(val)), true
	case uint64:
		return millis(float64(val)), true
	case float32:
		return millis(float64(val)), true
	case float64:
		return millis(val), true
	case string:
		s := strings.TrimSpace(val)
		if d, err := time.ParseDuration(s); err == nil {
			return clampDuration(d), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return millis(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func millis(ms float64) time.Duration {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms <= 0 {
		return 0
	}
	if ms >= float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
