package trace

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/playback/pkg/schema"
)

const traceSchemaURL = "https://playback.dev/schemas/trace.json"

// traceSchemaJSON describes a trace document. Unknown keys are allowed so
// producers can attach their own metadata.
const traceSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://playback.dev/schemas/trace.json",
  "type": "object",
  "required": ["steps"],
  "properties": {
    "run_id": { "type": "string" },
    "name": { "type": "string" },
    "steps": {
      "type": "array",
      "items": { "$ref": "#/$defs/step" }
    },
    "edges": {
      "type": "array",
      "items": { "$ref": "#/$defs/edge" }
    }
  },
  "$defs": {
    "step": {
      "type": "object",
      "required": ["node_id"],
      "properties": {
        "node_id": { "type": "string", "minLength": 1 },
        "status": { "type": "string" },
        "label": { "type": "string" },
        "attrs": { "type": "object" }
      }
    },
    "edge": {
      "type": "object",
      "required": ["id", "source", "target"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "source": { "type": "string", "minLength": 1 },
        "target": { "type": "string", "minLength": 1 }
      }
    }
  }
}`

// SchemaValidator checks decoded trace documents against the trace JSON
// Schema (Draft 2020-12). It is safe for concurrent use.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles the trace schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(traceSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal trace schema: %w", err)
	}
	if err := c.AddResource(traceSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add trace schema resource: %w", err)
	}
	compiled, err := c.Compile(traceSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile trace schema: %w", err)
	}
	return &SchemaValidator{schema: compiled}, nil
}

// Validate checks doc, any decoded JSON or YAML value, and reports every
// violation as an error issue located by JSON pointer.
func (v *SchemaValidator) Validate(doc any) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	value, err := toJSONValue(doc)
	if err != nil {
		result.AddError("/", "document is not JSON-compatible: %s", err.Error())
		return result
	}

	if err := v.schema.Validate(value); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			result.AddError("/", "%s", err.Error())
			return result
		}
		collectViolations(verr, result)
	}
	return result
}

// toJSONValue round-trips a value through JSON so numbers become json.Number,
// which the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// collectViolations records the leaves of a ValidationError tree.
func collectViolations(verr *jsonschema.ValidationError, result *schema.ValidationResult) {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		result.AddError(loc, "%s", verr.Error())
		return
	}
	for _, cause := range verr.Causes {
		collectViolations(cause, result)
	}
}
