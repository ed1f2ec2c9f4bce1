package schema

// Event type constants published on every snapshot change.
const (
	EventPlaybackIdle     = "playback_idle"
	EventPlaybackStarted  = "playback_started"
	EventStepAdvanced     = "step_advanced"
	EventPlaybackFinished = "playback_finished"
	EventPlaybackStopped  = "playback_stopped"
	EventPlaybackReset    = "playback_reset"
)

// StepStatus is the terminal outcome recorded for a step by the step source.
// The vocabulary belongs to the source; playback only tells StepStatusError
// apart from everything else.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusError   StepStatus = "error"
	StepStatusSkipped StepStatus = "skipped"
)

// NodeState is the playback state of a graph node.
type NodeState string

const (
	NodeStateIdle      NodeState = "idle"
	NodeStateExecuting NodeState = "executing"
	NodeStateCompleted NodeState = "completed"
	NodeStateError     NodeState = "error"
)

// Terminal reports whether the node finished, successfully or not.
func (s NodeState) Terminal() bool {
	return s == NodeStateCompleted || s == NodeStateError
}
