package picguard

import (
	"fmt"

	"github.com/openpic/picguard/internal/guard"
	"github.com/openpic/picguard/internal/keyring"
	"github.com/openpic/picguard/internal/policy"
)

// Client holds the verification pipeline for in-process enforcement.
// Safe for concurrent tool calls; all state is immutable after New.
type Client struct {
	cfg    clientConfig
	policy *policy.Policy
	limits policy.Limits
	ring   *keyring.Ring
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	var cfg clientConfig
	for _, o := range opts {
		o(&cfg)
	}

	pol, limits, err := policy.Load(cfg.policyPath)
	if err != nil {
		return nil, fmt.Errorf("picguard: failed to load policy: %w", err)
	}
	if cfg.limits != nil {
		limits = *cfg.limits
	}

	ring, err := keyring.LoadDefault(cfg.keyringPath)
	if err != nil {
		return nil, fmt.Errorf("picguard: failed to load keyring: %w", err)
	}

	return &Client{cfg: cfg, policy: pol, limits: limits, ring: ring}, nil
}

// Check verifies a tool invocation without executing anything.
func (c *Client) Check(toolName string, toolArgs map[string]any) Result {
	return toResult(guard.Evaluate(toolName, toolArgs, c.guardConfig()))
}

func (c *Client) guardConfig() guard.Config {
	return guard.Config{
		Policy:          c.policy,
		Limits:          c.limits,
		Ring:            c.ring,
		VerifyEvidence:  c.cfg.verifyEvidence,
		ProposalBaseDir: c.cfg.proposalBaseDir,
		EvidenceRootDir: c.cfg.evidenceRootDir,
		Debug:           c.cfg.debug,
	}
}
