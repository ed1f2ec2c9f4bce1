package store

import (
	"context"

	"github.com/rendis/playback/pkg/schema"
)

// Store persists recorded runs so they can be replayed later.
// Implementations must be safe for concurrent use.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// AppendStep assigns the next sequence number of the run to rec.
	AppendStep(ctx context.Context, rec *StepRecord) error
	ListSteps(ctx context.Context, runID string) ([]*StepRecord, error)

	// PutEdges replaces the run's edge set, keeping slice order.
	PutEdges(ctx context.Context, runID string, edges []schema.Edge) error
	ListEdges(ctx context.Context, runID string) ([]schema.Edge, error)

	// RecordTrace writes a run with its steps and edges atomically: either
	// all of it is stored or none of it is.
	RecordTrace(ctx context.Context, run *Run, steps []*StepRecord, edges []schema.Edge) error

	// GetTrace materializes a run as a replayable trace.
	GetTrace(ctx context.Context, runID string) (*schema.Trace, error)

	Migrate(ctx context.Context) error
	Close() error
}
