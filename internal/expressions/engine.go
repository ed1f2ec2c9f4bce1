package expressions

import (
	"context"
	"fmt"
	"strings"

	"github.com/rendis/playback/pkg/schema"
)

// Engine evaluates an expression against a data environment.
// Expr and CEL compute step durations; GoJQ extracts steps from trace documents.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// NewEngine returns the duration engine registered under name: "expr" (also
// the default for an empty name), "cel" or "jq".
func NewEngine(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "expr":
		return NewExprEngine(), nil
	case "cel":
		e, err := NewCELEngine()
		if err != nil {
			return nil, err
		}
		return e, nil
	case "jq":
		return NewGoJQEngine(), nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "unknown expression engine %q", name).
			WithDetails(map[string]any{"supported": []string{"expr", "cel", "jq"}})
	}
}

func compileError(engine, expression string, err error) error {
	return schema.NewErrorf(schema.ErrCodeExpression,
		"%s compile error in %q: %s", engine, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression})
}

func evalError(engine, expression string, err error) error {
	return schema.NewErrorf(schema.ErrCodeExpression,
		"%s evaluation failed for %q: %s", engine, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression})
}

func emptyError(engine string) error {
	return schema.NewError(schema.ErrCodeExpression, fmt.Sprintf("empty %s expression", engine))
}
