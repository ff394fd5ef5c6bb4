// Package contract defines the PIC proposal model: the machine-checkable
// contract an agent attaches to a tool call asserting intent, impact,
// provenance, and claims. A Proposal can only be constructed if the
// causal-contract rule holds — high-impact actions require at least one
// claim backed by trusted provenance.
package contract

import (
	"fmt"
	"strings"
)

// Protocol is the contract version tag every proposal must carry.
const Protocol = "PIC/1.0"

// ProposalKey is the reserved tool-argument field carrying the proposal.
const ProposalKey = "__pic"

// TrustLevel classifies the asserted trustworthiness of a provenance entry.
type TrustLevel string

const (
	Trusted     TrustLevel = "trusted"
	SemiTrusted TrustLevel = "semi_trusted"
	Untrusted   TrustLevel = "untrusted"
)

// ParseTrustLevel parses a trust level string. Unknown values are an
// error, never a default.
func ParseTrustLevel(s string) (TrustLevel, error) {
	switch TrustLevel(s) {
	case Trusted, SemiTrusted, Untrusted:
		return TrustLevel(s), nil
	}
	return "", fmt.Errorf("unknown trust level %q", s)
}

// ImpactClass is the blast-radius category of the proposed action.
type ImpactClass string

const (
	ImpactRead         ImpactClass = "read"
	ImpactWrite        ImpactClass = "write"
	ImpactExternal     ImpactClass = "external"
	ImpactIrreversible ImpactClass = "irreversible"
	ImpactMoney        ImpactClass = "money"
	ImpactCompute      ImpactClass = "compute"
	ImpactPrivacy      ImpactClass = "privacy"
)

// highImpact is the set of impact classes that require trusted evidence.
var highImpact = map[ImpactClass]bool{
	ImpactMoney:        true,
	ImpactIrreversible: true,
	ImpactPrivacy:      true,
}

// ParseImpactClass parses an impact class string. Unknown values are an
// error, never a default.
func ParseImpactClass(s string) (ImpactClass, error) {
	switch ImpactClass(s) {
	case ImpactRead, ImpactWrite, ImpactExternal, ImpactIrreversible,
		ImpactMoney, ImpactCompute, ImpactPrivacy:
		return ImpactClass(s), nil
	}
	return "", fmt.Errorf("unknown impact class %q", s)
}

// HighImpact reports whether the class requires trusted evidence.
func (c ImpactClass) HighImpact() bool {
	return highImpact[c]
}

// Provenance is one data origin referenced by claims.
type Provenance struct {
	ID     string
	Trust  TrustLevel
	Source string
}

// Claim ties explanatory text to one or more provenance ids.
type Claim struct {
	Text     string
	Evidence []string
}

// Action names the tool the proposal authorizes and its argument map.
type Action struct {
	Tool string
	Args map[string]any
}

// Proposal is a validated PIC contract. Instances exist only if the
// causal-contract invariant holds; Parse is the sole constructor.
type Proposal struct {
	Protocol   string
	Intent     string
	Impact     ImpactClass
	Provenance []Provenance
	Claims     []Claim
	Action     Action
}

// ViolationError is returned when a high-impact proposal has no claim
// backed by trusted provenance.
type ViolationError struct {
	Impact ImpactClass
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("contract violation: action of type %q cannot proceed without evidence from a trusted source", e.Impact)
}

// BindingError is returned when a proposal's declared tool does not
// match the tool actually being invoked.
type BindingError struct {
	ProposalTool string
	ActualTool   string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("tool binding mismatch: proposal authorizes %q but %q was invoked", e.ProposalTool, e.ActualTool)
}

// Parse builds a Proposal from a structurally-valid (schema-checked)
// payload and enforces the causal-contract invariant. Unknown enum
// values fail parsing rather than defaulting.
func Parse(raw map[string]any) (*Proposal, error) {
	if raw == nil {
		return nil, fmt.Errorf("proposal must be an object")
	}

	p := &Proposal{Protocol: Protocol}

	if v, ok := raw["protocol"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("protocol must be a string")
		}
		p.Protocol = s
	}

	intent, ok := raw["intent"].(string)
	if !ok {
		return nil, fmt.Errorf("intent must be a string")
	}
	p.Intent = intent

	impactStr, ok := raw["impact"].(string)
	if !ok {
		return nil, fmt.Errorf("impact must be a string")
	}
	impact, err := ParseImpactClass(impactStr)
	if err != nil {
		return nil, err
	}
	p.Impact = impact

	prov, err := parseProvenance(raw["provenance"])
	if err != nil {
		return nil, err
	}
	p.Provenance = prov

	claims, err := parseClaims(raw["claims"])
	if err != nil {
		return nil, err
	}
	p.Claims = claims

	action, err := parseAction(raw["action"])
	if err != nil {
		return nil, err
	}
	p.Action = action

	if err := p.checkCausalContract(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseProvenance(v any) ([]Provenance, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("provenance must be an array")
	}
	out := make([]Provenance, 0, len(list))
	seen := make(map[string]bool, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("provenance[%d] must be an object", i)
		}
		id, ok := m["id"].(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("provenance[%d].id must be a non-empty string", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("provenance id %q is not unique", id)
		}
		seen[id] = true

		trustStr, ok := m["trust"].(string)
		if !ok {
			return nil, fmt.Errorf("provenance[%d].trust must be a string", i)
		}
		trust, err := ParseTrustLevel(trustStr)
		if err != nil {
			return nil, fmt.Errorf("provenance[%d]: %w", i, err)
		}

		source, _ := m["source"].(string)
		out = append(out, Provenance{ID: id, Trust: trust, Source: source})
	}
	return out, nil
}

func parseClaims(v any) ([]Claim, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("claims must be an array")
	}
	out := make([]Claim, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("claims[%d] must be an object", i)
		}
		text, ok := m["text"].(string)
		if !ok {
			return nil, fmt.Errorf("claims[%d].text must be a string", i)
		}
		evList, ok := m["evidence"].([]any)
		if !ok {
			return nil, fmt.Errorf("claims[%d].evidence must be an array", i)
		}
		ev := make([]string, 0, len(evList))
		for j, e := range evList {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("claims[%d].evidence[%d] must be a string", i, j)
			}
			ev = append(ev, s)
		}
		out = append(out, Claim{Text: text, Evidence: ev})
	}
	return out, nil
}

func parseAction(v any) (Action, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Action{}, fmt.Errorf("action must be an object")
	}
	tool, _ := m["tool"].(string)
	args, _ := m["args"].(map[string]any)
	return Action{Tool: tool, Args: args}, nil
}

// checkCausalContract enforces: high-impact actions require at least one
// claim referencing a trusted provenance id.
func (p *Proposal) checkCausalContract() error {
	if !p.Impact.HighImpact() {
		return nil
	}

	trustedIDs := make(map[string]bool)
	for _, prov := range p.Provenance {
		if prov.Trust == Trusted {
			trustedIDs[prov.ID] = true
		}
	}

	for _, claim := range p.Claims {
		for _, id := range claim.Evidence {
			if trustedIDs[id] {
				return nil
			}
		}
	}
	return &ViolationError{Impact: p.Impact}
}

// CheckToolBinding requires the proposal's declared tool to exactly match
// the tool actually being invoked. A proposal authorized for tool A must
// never authorize tool B.
func CheckToolBinding(p *Proposal, actualTool string) error {
	proposed := strings.TrimSpace(p.Action.Tool)
	actual := strings.TrimSpace(actualTool)
	if proposed == "" {
		return &BindingError{ProposalTool: "", ActualTool: actual}
	}
	if proposed != actual {
		return &BindingError{ProposalTool: proposed, ActualTool: actual}
	}
	return nil
}
