package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/playback/internal/expressions"
	"github.com/rendis/playback/pkg/schema"
)

// Format is a trace document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension. Unknown extensions
// are read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// StepsQuery is a jq query producing the step list from an arbitrary
	// document: either one array of step objects or a stream of them.
	StepsQuery string
	// EdgesQuery works like StepsQuery for edges. Without it, the document's
	// "edges" key is used.
	EdgesQuery string
	Logger     *slog.Logger
}

// Loader turns trace documents into validated traces.
type Loader struct {
	validator *SchemaValidator
	jq        *expressions.GoJQEngine
	cfg       LoaderConfig
	logger    *slog.Logger
}

// Result is a loaded trace and the non-blocking issues found in it.
type Result struct {
	Trace    *schema.Trace
	Warnings []schema.Issue
}

// NewLoader creates a Loader. Queries are compiled on first use.
func NewLoader(cfg LoaderConfig) (*Loader, error) {
	v, err := NewSchemaValidator()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Loader{
		validator: v,
		jq:        expressions.NewGoJQEngine(),
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// LoadFile reads and loads the trace at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "trace file %q not found", path).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeTrace, "read trace file %q", path).WithCause(err)
	}
	res, err := l.Load(ctx, bytes.NewReader(data), FormatFromPath(path))
	if err != nil {
		return nil, err
	}
	l.logger.Info("trace loaded",
		slog.String("path", path),
		slog.String("run_id", res.Trace.RunID),
		slog.Int("steps", len(res.Trace.Steps)),
		slog.Int("edges", len(res.Trace.Edges)),
		slog.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// Load decodes, extracts, validates and checks one trace document.
func (l *Loader) Load(ctx context.Context, r io.Reader, format Format) (*Result, error) {
	doc, err := decode(r, format)
	if err != nil {
		return nil, err
	}

	if l.cfg.StepsQuery != "" {
		doc, err = l.extract(ctx, doc)
		if err != nil {
			return nil, err
		}
	}

	result := l.validator.Validate(doc)
	if !result.Valid() {
		return nil, result.ToError()
	}

	tr, err := toTrace(doc)
	if err != nil {
		return nil, err
	}

	result.Merge(Check(tr))
	if !result.Valid() {
		return nil, result.ToError()
	}
	for _, w := range result.Warnings {
		l.logger.Warn("trace warning", slog.String("path", w.Path), slog.String("message", w.Message))
	}
	return &Result{Trace: tr, Warnings: result.Warnings}, nil
}

// extract builds a canonical trace document from the configured queries.
func (l *Loader) extract(ctx context.Context, doc any) (any, error) {
	steps, err := l.queryList(ctx, l.cfg.StepsQuery, doc)
	if err != nil {
		return nil, err
	}

	out := map[string]any{"steps": steps}
	src, _ := doc.(map[string]any)
	for _, key := range []string{"run_id", "name"} {
		if v, ok := src[key]; ok {
			out[key] = v
		}
	}

	switch {
	case l.cfg.EdgesQuery != "":
		edges, err := l.queryList(ctx, l.cfg.EdgesQuery, doc)
		if err != nil {
			return nil, err
		}
		out["edges"] = edges
	case src["edges"] != nil:
		out["edges"] = src["edges"]
	}
	return out, nil
}

// queryList runs query and flattens its output: a single array result is
// the list, otherwise every output is an element.
func (l *Loader) queryList(ctx context.Context, query string, doc any) ([]any, error) {
	results, err := l.jq.Query(ctx, query, doc)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeTrace, "query %q failed", query).WithCause(err)
	}
	if len(results) == 1 {
		if list, ok := results[0].([]any); ok {
			return list, nil
		}
	}
	if results == nil {
		return []any{}, nil
	}
	return results, nil
}

func decode(r io.Reader, format Format) (any, error) {
	var doc any
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			if err == io.EOF {
				return nil, schema.NewError(schema.ErrCodeTrace, "empty trace document")
			}
			return nil, schema.NewError(schema.ErrCodeTrace, "decode YAML trace").WithCause(err)
		}
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			if err == io.EOF {
				return nil, schema.NewError(schema.ErrCodeTrace, "empty trace document")
			}
			return nil, schema.NewError(schema.ErrCodeTrace, "decode JSON trace").WithCause(err)
		}
	default:
		return nil, schema.NewErrorf(schema.ErrCodeTrace, "unsupported trace format %q", format)
	}
	return doc, nil
}

func toTrace(doc any) (*schema.Trace, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeTrace, "encode trace document").WithCause(err)
	}
	var tr schema.Trace
	if err := json.Unmarshal(b, &tr); err != nil {
		return nil, schema.NewError(schema.ErrCodeTrace, fmt.Sprintf("decode trace: %s", err.Error())).WithCause(err)
	}
	if tr.Steps == nil {
		tr.Steps = []schema.Step{}
	}
	for i := range tr.Steps {
		if tr.Steps[i].Status == "" {
			tr.Steps[i].Status = schema.StepStatusSuccess
		}
	}
	return &tr, nil
}
