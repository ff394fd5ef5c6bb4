package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openpic/picguard/internal/evidence"
	"github.com/openpic/picguard/internal/keyring"
)

var (
	evidenceKeys string
	evidenceRoot string
)

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.Flags().StringVar(&evidenceKeys, "keys", "", "Path to keyring JSON (default: PICGUARD_KEYS_PATH, then pic_keys.json)")
	evidenceCmd.Flags().StringVar(&evidenceRoot, "evidence-root", "", "Root directory for file:// evidence refs (default: proposal file directory)")
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence <proposal.json>",
	Short: "Verify the evidence items attached to a proposal",
	Long: "Resolves file:// references relative to the evidence root, checks\n" +
		"sha256 digests, and verifies Ed25519 signatures against the keyring.\n\n" +
		"Exit code 0 if every item verifies, 2 otherwise.",
	Args: cobra.ExactArgs(1),
	RunE: runEvidence,
}

func runEvidence(cmd *cobra.Command, args []string) error {
	raw, err := loadProposalFile(args[0])
	if err != nil {
		return err
	}

	ring, err := keyring.LoadDefault(keysPath(evidenceKeys))
	if err != nil {
		return fmt.Errorf("failed to load keyring: %w", err)
	}

	baseDir := filepath.Dir(args[0])
	report := evidence.NewSystem(ring).VerifyAll(raw, baseDir, evidenceRoot)

	for _, r := range report.Results {
		mark := "FAIL"
		if r.OK {
			mark = "ok"
		}
		fmt.Printf("[%s] %s: %s\n", mark, r.ID, r.Message)
	}
	if len(report.Results) == 0 {
		fmt.Println("No evidence items")
	}

	if !report.OK {
		fmt.Println("Evidence verification failed")
		os.Exit(2)
	}
	fmt.Println("Evidence verified")
	return nil
}
