package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openpic/picguard/internal/mcp"
)

var (
	mcpPolicy         string
	mcpKeys           string
	mcpVerifyEvidence bool
	mcpBaseDir        string
	mcpEvidenceRoot   string
	mcpDebug          bool
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpPolicy, "policy", "", "Path to policy YAML")
	mcpCmd.Flags().StringVar(&mcpKeys, "keys", "", "Path to keyring JSON (default: PICGUARD_KEYS_PATH, then pic_keys.json)")
	mcpCmd.Flags().BoolVar(&mcpVerifyEvidence, "verify-evidence", false, "Verify evidence items during evaluation")
	mcpCmd.Flags().StringVar(&mcpBaseDir, "base-dir", "", "Base directory for file:// evidence refs")
	mcpCmd.Flags().StringVar(&mcpEvidenceRoot, "evidence-root", "", "Evidence root directory (overrides base-dir for refs)")
	mcpCmd.Flags().BoolVar(&mcpDebug, "debug", false, "Include diagnostic details in tool results")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: "Exposes proposal verification as MCP tools over stdin/stdout.\n" +
		"Add to an MCP client config to gate agent tool calls.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv, err := mcp.New(mcp.Config{
		PolicyPath:      mcpPolicy,
		KeyringPath:     keysPath(mcpKeys),
		VerifyEvidence:  mcpVerifyEvidence,
		ProposalBaseDir: mcpBaseDir,
		EvidenceRootDir: mcpEvidenceRoot,
		Debug:           mcpDebug,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return srv.Run(cmd.Context())
}
