package store

import (
	"time"

	"github.com/rendis/playback/pkg/schema"
)

// Run is a recorded execution.
type Run struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	StepCount int       `json:"step_count"`
}

// RunFilter narrows ListRuns. Zero values mean no constraint.
type RunFilter struct {
	Since  *time.Time
	Limit  int
	Offset int
}

// StepRecord is one persisted step event.
type StepRecord struct {
	RunID      string            `json:"run_id"`
	Seq        int64             `json:"seq"`
	NodeID     string            `json:"node_id"`
	Status     schema.StepStatus `json:"status"`
	Label      string            `json:"label,omitempty"`
	Attrs      map[string]any    `json:"attrs,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// Step converts the record to its replayable form.
func (r *StepRecord) Step() schema.Step {
	return schema.Step{
		NodeID: r.NodeID,
		Status: r.Status,
		Label:  r.Label,
		Attrs:  r.Attrs,
	}
}
