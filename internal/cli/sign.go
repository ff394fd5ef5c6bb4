package cli

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(signCmd)
}

var signCmd = &cobra.Command{
	Use:   "sign <private_key_base64> <file>",
	Short: "Sign a file with an Ed25519 private seed",
	Long: "Signs the raw file bytes and prints the base64 signature, suitable\n" +
		"for a sig evidence item referencing the same file.",
	Args: cobra.ExactArgs(2),
	RunE: runSign,
}

func runSign(cmd *cobra.Command, args []string) error {
	seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(args[0]))
	if err != nil {
		return fmt.Errorf("invalid base64 private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("invalid Ed25519 private key length: expected %d raw bytes, got %d", ed25519.SeedSize, len(seed))
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	sig := ed25519.Sign(ed25519.NewKeyFromSeed(seed), data)
	fmt.Println(base64.StdEncoding.EncodeToString(sig))
	return nil
}
