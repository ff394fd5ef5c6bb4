package contract

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed proposal_schema.json
var proposalSchemaText string

const schemaURL = "https://openpic.dev/schemas/proposal.schema.json"

var proposalSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(proposalSchemaText)); err != nil {
		panic(fmt.Sprintf("contract: load proposal schema: %v", err))
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("contract: compile proposal schema: %v", err))
	}
	return s
}

// SchemaError reports the structural violations found by the JSON Schema
// validator, one message per failing location.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("proposal schema validation failed: %s", strings.Join(e.Violations, "; "))
}

// ValidateSchema checks a raw proposal payload against the embedded
// proposal JSON Schema. This is the structural phase; Parse performs the
// typed, invariant-enforcing phase.
func ValidateSchema(raw map[string]any) error {
	if raw == nil {
		return &SchemaError{Violations: []string{"proposal must be a JSON object"}}
	}
	err := proposalSchema.Validate(normalizeForSchema(raw))
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &SchemaError{Violations: []string{err.Error()}}
	}
	return &SchemaError{Violations: flattenViolations(ve)}
}

// flattenViolations collects leaf causes so callers see every failing
// location, not just the root "doesn't validate" summary.
func flattenViolations(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{fmt.Sprintf("%s: %s", loc, ve.Message)}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, flattenViolations(c)...)
	}
	return out
}

// normalizeForSchema converts values produced by yaml or typed callers
// into the plain JSON types the validator expects.
func normalizeForSchema(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeForSchema(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeForSchema(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
