package contract

import (
	"errors"
	"testing"
)

func validProposal() map[string]any {
	return map[string]any{
		"protocol": "PIC/1.0",
		"intent":   "refund duplicate charge",
		"impact":   "money",
		"provenance": []any{
			map[string]any{"id": "src_ledger", "trust": "trusted", "source": "ledger-db"},
		},
		"claims": []any{
			map[string]any{"text": "charge appears twice", "evidence": []any{"src_ledger"}},
		},
		"action": map[string]any{
			"tool": "send_payment",
			"args": map[string]any{"amount": 42.0},
		},
	}
}

func TestParseValidHighImpact(t *testing.T) {
	p, err := Parse(validProposal())
	if err != nil {
		t.Fatalf("expected valid proposal, got %v", err)
	}
	if p.Impact != ImpactMoney {
		t.Errorf("expected impact money, got %s", p.Impact)
	}
	if p.Action.Tool != "send_payment" {
		t.Errorf("expected tool send_payment, got %s", p.Action.Tool)
	}
	if len(p.Provenance) != 1 || p.Provenance[0].Trust != Trusted {
		t.Errorf("unexpected provenance: %+v", p.Provenance)
	}
}

func TestParseHighImpactWithoutTrustedClaimBlocked(t *testing.T) {
	for _, impact := range []string{"money", "irreversible", "privacy"} {
		raw := validProposal()
		raw["impact"] = impact
		raw["provenance"] = []any{
			map[string]any{"id": "src_ledger", "trust": "untrusted"},
		}

		_, err := Parse(raw)
		var ve *ViolationError
		if !errors.As(err, &ve) {
			t.Errorf("impact %s: expected ViolationError, got %v", impact, err)
			continue
		}
		if string(ve.Impact) != impact {
			t.Errorf("impact %s: violation reports %s", impact, ve.Impact)
		}
	}
}

func TestParseLowImpactNeedsNoTrustedClaim(t *testing.T) {
	for _, impact := range []string{"read", "write", "external", "compute"} {
		raw := validProposal()
		raw["impact"] = impact
		raw["provenance"] = []any{
			map[string]any{"id": "src_ledger", "trust": "untrusted"},
		}
		raw["claims"] = []any{}

		if _, err := Parse(raw); err != nil {
			t.Errorf("impact %s: expected parse to pass, got %v", impact, err)
		}
	}
}

func TestParseClaimCitingUntrustedProvenanceOnlyBlocked(t *testing.T) {
	raw := validProposal()
	raw["provenance"] = []any{
		map[string]any{"id": "src_ledger", "trust": "trusted"},
		map[string]any{"id": "src_web", "trust": "untrusted"},
	}
	raw["claims"] = []any{
		map[string]any{"text": "saw it online", "evidence": []any{"src_web"}},
	}

	var ve *ViolationError
	if _, err := Parse(raw); !errors.As(err, &ve) {
		t.Errorf("expected ViolationError when no claim cites trusted provenance, got %v", err)
	}
}

func TestParseSemiTrustedDoesNotSatisfyContract(t *testing.T) {
	raw := validProposal()
	raw["provenance"] = []any{
		map[string]any{"id": "src_ledger", "trust": "semi_trusted"},
	}

	var ve *ViolationError
	if _, err := Parse(raw); !errors.As(err, &ve) {
		t.Errorf("expected ViolationError for semi_trusted provenance, got %v", err)
	}
}

func TestParseUnknownEnumValuesRejected(t *testing.T) {
	raw := validProposal()
	raw["impact"] = "catastrophic"
	if _, err := Parse(raw); err == nil {
		t.Error("expected error for unknown impact class")
	}

	raw = validProposal()
	raw["provenance"] = []any{
		map[string]any{"id": "src_ledger", "trust": "very_trusted"},
	}
	if _, err := Parse(raw); err == nil {
		t.Error("expected error for unknown trust level")
	}
}

func TestParseDuplicateProvenanceIDRejected(t *testing.T) {
	raw := validProposal()
	raw["provenance"] = []any{
		map[string]any{"id": "src_ledger", "trust": "trusted"},
		map[string]any{"id": "src_ledger", "trust": "untrusted"},
	}

	if _, err := Parse(raw); err == nil {
		t.Error("expected error for duplicate provenance id")
	}
}

func TestParseClaimEvidenceMayReferenceUnknownID(t *testing.T) {
	raw := validProposal()
	raw["impact"] = "read"
	raw["claims"] = []any{
		map[string]any{"text": "cites nothing known", "evidence": []any{"no_such_id"}},
	}

	if _, err := Parse(raw); err != nil {
		t.Errorf("dangling evidence reference should not fail parsing, got %v", err)
	}
}

func TestCheckToolBinding(t *testing.T) {
	p, err := Parse(validProposal())
	if err != nil {
		t.Fatal(err)
	}

	if err := CheckToolBinding(p, "send_payment"); err != nil {
		t.Errorf("expected matching tool to pass, got %v", err)
	}
	if err := CheckToolBinding(p, "  send_payment  "); err != nil {
		t.Errorf("expected trimmed match to pass, got %v", err)
	}

	var be *BindingError
	if err := CheckToolBinding(p, "delete_account"); !errors.As(err, &be) {
		t.Fatalf("expected BindingError, got %v", err)
	}
	if be.ProposalTool != "send_payment" || be.ActualTool != "delete_account" {
		t.Errorf("unexpected binding error fields: %+v", be)
	}
}

func TestCheckToolBindingEmptyProposalTool(t *testing.T) {
	raw := validProposal()
	raw["action"] = map[string]any{"tool": "   "}

	p, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	var be *BindingError
	if err := CheckToolBinding(p, "send_payment"); !errors.As(err, &be) {
		t.Errorf("expected BindingError for empty proposal tool, got %v", err)
	}
}

func TestParseTrustLevelAndImpactClass(t *testing.T) {
	if _, err := ParseTrustLevel("trusted"); err != nil {
		t.Error(err)
	}
	if _, err := ParseTrustLevel("TRUSTED"); err == nil {
		t.Error("trust levels are case-sensitive")
	}
	if ImpactWrite.HighImpact() {
		t.Error("write must not be high-impact")
	}
	if !ImpactPrivacy.HighImpact() {
		t.Error("privacy must be high-impact")
	}
}
