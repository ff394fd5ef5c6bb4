// Package guard is the evaluation pipeline: it combines the policy
// require-check, the structural schema check, evidence verification with
// trust upgrade, the causal-contract invariant, and tool binding into
// one synchronous, fail-closed allow/block decision per tool call.
package guard

import (
	"fmt"
	"strings"
	"time"

	"github.com/openpic/picguard/internal/contract"
	"github.com/openpic/picguard/internal/evidence"
	"github.com/openpic/picguard/internal/keyring"
	"github.com/openpic/picguard/internal/policy"
)

// ProposalKey is the reserved tool-argument field carrying the proposal.
const ProposalKey = contract.ProposalKey

// Config holds the immutable inputs for one evaluation. Policy and Ring
// are read-only values safe to share across concurrent calls.
type Config struct {
	Policy          *policy.Policy
	Limits          policy.Limits
	Ring            *keyring.Ring
	VerifyEvidence  bool
	ProposalBaseDir string
	EvidenceRootDir string
	Debug           bool

	// Now overrides the evaluation clock. Tests only; nil means time.Now.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Evaluate decides whether the tool call may proceed. A nil return is
// the only allow; every other outcome is a typed *Error. The pipeline
// never retries and never continues past a block, and any panic is
// converted to PIC_INTERNAL_ERROR: indeterminate outcomes block.
func Evaluate(toolName string, toolArgs map[string]any, cfg Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e := newError(CodeInternalError, "internal verification error")
			if cfg.Debug {
				e.Details = map[string]any{"panic": fmt.Sprint(r)}
			}
			err = e
		}
	}()

	limits := cfg.Limits
	if limits == (policy.Limits{}) {
		limits = policy.DefaultLimits()
	}
	start := cfg.now()

	toolName = strings.TrimSpace(toolName)
	if toolName == "" {
		return newError(CodeInvalidRequest, "missing or empty tool_name")
	}

	// RequireCheck: absence of a proposal is only an error when policy
	// demands one for this tool.
	rawAny, present := lookupProposal(toolArgs)
	if !present {
		if cfg.Policy.RequiresProposal(toolName) {
			return newError(CodeNoProposal, "tool %q requires a PIC proposal and none was provided", toolName)
		}
		return nil
	}
	raw, ok := rawAny.(map[string]any)
	if !ok {
		return newError(CodeInvalidRequest, "%s must be an object", ProposalKey)
	}

	if err := checkBudget(start, limits, cfg); err != nil {
		return err
	}

	// ProposalSchemaCheck: structural validation is a black box here.
	if err := contract.ValidateSchema(raw); err != nil {
		e := newError(CodeSchemaInvalid, "proposal failed schema validation")
		if se, ok := err.(*contract.SchemaError); ok && cfg.Debug {
			e.Details = map[string]any{"violations": se.Violations}
		}
		return e
	}

	if err := checkBudget(start, limits, cfg); err != nil {
		return err
	}

	// EvidenceVerify + TrustUpgrade. Ceilings are enforced before any
	// item is checked; verification itself never blocks.
	if cfg.VerifyEvidence {
		if err := evidence.CheckLimits(raw, cfg.ProposalBaseDir, cfg.EvidenceRootDir,
			limits.MaxEvidenceItems, limits.MaxEvidenceFileBytes); err != nil {
			return newError(CodeEvidenceLimitExceeded, "%v", err)
		}

		sys := evidence.NewSystem(cfg.Ring)
		sys.Now = cfg.Now
		report := sys.VerifyAll(raw, cfg.ProposalBaseDir, cfg.EvidenceRootDir)
		raw = evidence.ApplyVerifiedIDs(raw, report.VerifiedIDs)

		if err := checkBudget(start, limits, cfg); err != nil {
			return err
		}
	}

	// ContractCheck: construction and invariant validation are one act.
	p, err := contract.Parse(raw)
	if err != nil {
		if _, ok := err.(*contract.ViolationError); ok {
			return newError(CodeContractViolation, "%v", err)
		}
		return newError(CodeSchemaInvalid, "proposal failed to parse: %v", err)
	}

	// BindingCheck: checked unconditionally whenever a proposal is
	// present, independent of impact class.
	if err := contract.CheckToolBinding(p, toolName); err != nil {
		return newError(CodeToolBindingMismatch, "%v", err)
	}

	if err := checkBudget(start, limits, cfg); err != nil {
		return err
	}
	return nil
}

// lookupProposal extracts the reserved proposal field. A present-but-nil
// value counts as absent.
func lookupProposal(toolArgs map[string]any) (any, bool) {
	if toolArgs == nil {
		return nil, false
	}
	v, ok := toolArgs[ProposalKey]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// checkBudget is the checkpoint-based deadline: in-flight I/O is not
// cancelled, elapsed time is checked between pipeline stages.
func checkBudget(start time.Time, limits policy.Limits, cfg Config) error {
	if limits.MaxEvalTime <= 0 {
		return nil
	}
	if elapsed := cfg.now().Sub(start); elapsed > limits.MaxEvalTime {
		return newError(CodeBudgetExceeded, "evaluation exceeded time budget %s", limits.MaxEvalTime)
	}
	return nil
}
