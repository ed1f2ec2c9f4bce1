package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/rendis/playback/pkg/schema"
)

// ImportTrace records tr as a new run and returns its ID. A trace without a
// run ID gets a random one. A failed import leaves nothing behind.
func ImportTrace(ctx context.Context, s Store, tr *schema.Trace) (string, error) {
	if tr == nil {
		return "", schema.NewError(schema.ErrCodeValidation, "trace is nil")
	}
	runID := tr.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	steps := make([]*StepRecord, 0, len(tr.Steps))
	for _, step := range tr.Steps {
		steps = append(steps, &StepRecord{
			RunID:  runID,
			NodeID: step.NodeID,
			Status: step.Status,
			Label:  step.Label,
			Attrs:  step.Attrs,
		})
	}
	if err := s.RecordTrace(ctx, &Run{ID: runID, Name: tr.Name}, steps, tr.Edges); err != nil {
		return "", err
	}
	return runID, nil
}
