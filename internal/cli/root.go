package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "picguard",
	Short: "Proposal-gated verification for AI agent tool calls",
	Long:  "Verifies PIC/1.0 action proposals before tool invocations are allowed to run.\nHigh-impact actions must carry claims backed by trusted provenance; evidence\nis checked against an Ed25519 key registry. Fail-closed by default.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// keysPath resolves the keyring path from the flag, then the
// PICGUARD_KEYS_PATH environment variable. Empty means the default
// resolution (pic_keys.json in the working directory, else empty ring).
func keysPath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("PICGUARD_KEYS_PATH")
}
