package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/openpic/picguard/internal/guard"
)

// CheckInput defines parameters for the picguard_check tool.
type CheckInput struct {
	Tool string         `json:"tool" jsonschema:"tool name being invoked"`
	Args map[string]any `json:"args,omitempty" jsonschema:"tool arguments, including the __pic proposal if any"`
}

// CheckOutput contains the policy decision.
type CheckOutput struct {
	Allowed bool   `json:"allowed"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	EvalMS  int64  `json:"eval_ms"`
}

// KeysInput carries no parameters.
type KeysInput struct{}

// KeyItem describes one trusted key entry.
type KeyItem struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// KeysOutput lists the loaded keyring contents.
type KeysOutput struct {
	Keys    []KeyItem `json:"keys"`
	Revoked []string  `json:"revoked"`
}

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	t0 := time.Now()

	err := guard.Evaluate(input.Tool, input.Args, guard.Config{
		Policy:          s.policy,
		Limits:          s.limits,
		Ring:            s.ring,
		VerifyEvidence:  s.cfg.VerifyEvidence,
		ProposalBaseDir: s.cfg.ProposalBaseDir,
		EvidenceRootDir: s.cfg.EvidenceRootDir,
		Debug:           s.cfg.Debug,
	})
	evalMS := time.Since(t0).Milliseconds()

	if err == nil {
		return nil, CheckOutput{Allowed: true, EvalMS: evalMS}, nil
	}

	ge, ok := guard.AsError(err)
	if !ok {
		ge = &guard.Error{Code: guard.CodeInternalError, Message: "internal verification error"}
	}
	out := CheckOutput{
		Allowed: false,
		Code:    string(ge.Code),
		Message: ge.Message,
		EvalMS:  evalMS,
	}
	return &mcpsdk.CallToolResult{IsError: true}, out, nil
}

func (s *Server) handleKeys(ctx context.Context, req *mcpsdk.CallToolRequest, input KeysInput) (*mcpsdk.CallToolResult, KeysOutput, error) {
	now := time.Now().UTC()

	out := KeysOutput{Revoked: s.ring.RevokedIDs()}
	for _, id := range s.ring.KeyIDs() {
		item := KeyItem{ID: id, Status: string(s.ring.Status(id, now))}
		if entry, ok := s.ring.Entry(id); ok && entry.ExpiresAt != nil {
			item.ExpiresAt = entry.ExpiresAt.Format(time.RFC3339)
		}
		out.Keys = append(out.Keys, item)
	}
	if out.Keys == nil {
		out.Keys = []KeyItem{}
	}
	if out.Revoked == nil {
		out.Revoked = []string{}
	}
	return nil, out, nil
}
