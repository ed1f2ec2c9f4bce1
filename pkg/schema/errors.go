package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeExpression = "EXPRESSION_ERROR"
	ErrCodeTrace      = "TRACE_ERROR"
	ErrCodeStore      = "STORE_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
)

// PlaybackError is the structured error returned by the layers around the
// scheduler (trace loading, expressions, store, config). The scheduler itself
// never returns errors.
type PlaybackError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *PlaybackError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *PlaybackError) Unwrap() error {
	return e.Cause
}

// NewError creates a new PlaybackError.
func NewError(code, message string) *PlaybackError {
	return &PlaybackError{Code: code, Message: message}
}

// NewErrorf creates a new PlaybackError with a formatted message.
func NewErrorf(code, format string, args ...any) *PlaybackError {
	return &PlaybackError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *PlaybackError) WithNode(nodeID string) *PlaybackError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *PlaybackError) WithCause(err error) *PlaybackError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *PlaybackError) WithDetails(details map[string]any) *PlaybackError {
	e.Details = details
	return e
}
