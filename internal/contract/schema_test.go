package contract

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateSchemaAcceptsValidProposal(t *testing.T) {
	if err := ValidateSchema(validProposal()); err != nil {
		t.Errorf("expected valid proposal to pass schema, got %v", err)
	}
}

func TestValidateSchemaMissingRequiredField(t *testing.T) {
	for _, field := range []string{"intent", "impact", "provenance", "claims", "action"} {
		raw := validProposal()
		delete(raw, field)

		err := ValidateSchema(raw)
		var se *SchemaError
		if !errors.As(err, &se) {
			t.Errorf("missing %s: expected SchemaError, got %v", field, err)
		}
	}
}

func TestValidateSchemaWrongProtocol(t *testing.T) {
	raw := validProposal()
	raw["protocol"] = "PIC/2.0"

	if err := ValidateSchema(raw); err == nil {
		t.Error("expected schema error for wrong protocol const")
	}
}

func TestValidateSchemaUnknownImpactEnum(t *testing.T) {
	raw := validProposal()
	raw["impact"] = "cosmic"

	err := ValidateSchema(raw)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(se.Violations) == 0 {
		t.Error("expected at least one violation message")
	}
}

func TestValidateSchemaViolationsNameLocation(t *testing.T) {
	raw := validProposal()
	raw["intent"] = ""

	err := ValidateSchema(raw)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	found := false
	for _, v := range se.Violations {
		if strings.Contains(v, "/intent") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a violation naming /intent, got %v", se.Violations)
	}
}

func TestValidateSchemaNilPayload(t *testing.T) {
	if err := ValidateSchema(nil); err == nil {
		t.Error("expected error for nil payload")
	}
}

func TestValidateSchemaNormalizesIntegers(t *testing.T) {
	raw := validProposal()
	raw["action"] = map[string]any{
		"tool": "send_payment",
		"args": map[string]any{"amount": 42},
	}

	if err := ValidateSchema(raw); err != nil {
		t.Errorf("expected int args to validate, got %v", err)
	}
}
