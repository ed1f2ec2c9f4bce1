package trace

import (
	"context"
	"log/slog"

	"github.com/rendis/playback/internal/store"
	"github.com/rendis/playback/pkg/schema"
)

// FromStore materializes a recorded run. Semantic warnings are logged; a
// duplicate edge ID fails the load.
func FromStore(ctx context.Context, s store.Store, runID string, logger *slog.Logger) (*Result, error) {
	tr, err := s.GetTrace(ctx, runID)
	if err != nil {
		return nil, err
	}
	result := Check(tr)
	if err := result.ToError(); err != nil {
		return nil, err
	}
	if logger != nil {
		for _, w := range result.Warnings {
			logger.Warn("trace warning",
				slog.String("run_id", runID),
				slog.String("path", w.Path),
				slog.String("message", w.Message),
			)
		}
	}
	return &Result{Trace: tr, Warnings: result.Warnings}, nil
}

// Steps returns the trace's steps, or nil for a nil result.
func (r *Result) Steps() []schema.Step {
	if r == nil || r.Trace == nil {
		return nil
	}
	return r.Trace.Steps
}
