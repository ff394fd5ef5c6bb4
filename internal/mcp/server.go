// Package mcp exposes picguard verification over the Model Context
// Protocol, so MCP-speaking agents can check tool calls against policy
// before executing them.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/openpic/picguard/internal/keyring"
	"github.com/openpic/picguard/internal/policy"
)

// Config holds MCP server configuration.
type Config struct {
	PolicyPath      string
	KeyringPath     string
	VerifyEvidence  bool
	ProposalBaseDir string
	EvidenceRootDir string
	Debug           bool
}

// Server wraps the MCP SDK server with PIC proposal enforcement.
type Server struct {
	mcpServer *mcpsdk.Server
	cfg       Config
	policy    *policy.Policy
	limits    policy.Limits
	ring      *keyring.Ring
}

// New creates an MCP server with loaded policy and keyring.
func New(cfg Config) (*Server, error) {
	pol, limits, _, err := policy.LoadWithHash(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy config: %w", err)
	}
	ring, err := keyring.LoadDefault(cfg.KeyringPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyring: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		policy: pol,
		limits: limits,
		ring:   ring,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "picguard",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds the picguard tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "picguard_check",
		Description: "Check whether a tool call with an optional __pic proposal would be allowed by PIC policy, without executing anything.",
	}, s.handleCheck)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "picguard_keys",
		Description: "List the trusted signing keys currently loaded, with per-key status and revocations.",
	}, s.handleKeys)
}
