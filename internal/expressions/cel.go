package expressions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// celVariables are the variables declared in the CEL environment. Missing
// values get a zero default so evaluation never fails on an absent key.
var celVariables = map[string]*cel.Type{
	"step":   cel.MapType(cel.StringType, cel.DynType),
	"node":   cel.StringType,
	"status": cel.StringType,
	"index":  cel.IntType,
	"failed": cel.BoolType,
}

// CELEngine evaluates Common Expression Language expressions against the
// step environment (step, node, status, index, failed). Compiled programs are
// cached and safe to share across goroutines.
type CELEngine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEngine creates a CEL engine with the step environment declared.
func NewCELEngine() (*CELEngine, error) {
	opts := make([]cel.EnvOption, 0, len(celVariables))
	for name, typ := range celVariables {
		opts = append(opts, cel.Variable(name, typ))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &CELEngine{env: env, cache: make(map[string]cel.Program)}, nil
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return "cel"
}

// Evaluate compiles (or reuses) expression and evaluates it against data.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, emptyError("CEL")
	}

	prg, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.ContextEval(ctx, celActivation(data))
	if err != nil {
		return nil, evalError("CEL", expression, err)
	}
	return out.Value(), nil
}

func (e *CELEngine) getOrCompile(expression string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, compileError("CEL", expression, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, compileError("CEL", expression, err)
	}
	e.cache[expression] = prg
	return prg, nil
}

func celActivation(data map[string]any) map[string]any {
	activation := map[string]any{
		"step":   map[string]any{},
		"node":   "",
		"status": "",
		"index":  int64(0),
		"failed": false,
	}
	for k, v := range data {
		if _, declared := celVariables[k]; !declared || v == nil {
			continue
		}
		if i, ok := v.(int); ok {
			v = int64(i)
		}
		activation[k] = v
	}
	return activation
}

var _ Engine = (*CELEngine)(nil)
