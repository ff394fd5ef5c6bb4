package cli

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var keygenID string

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenID, "id", "demo_signer_v1", "Key ID for the generated pair")
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 keypair for evidence signing",
	Long: "Prints the base64 public key, the base64 private seed, and a\n" +
		"ready-to-paste pic_keys.json snippet. The private seed must never\n" +
		"be committed or distributed.",
	RunE: runKeygen,
}

func runKeygen(cmd *cobra.Command, args []string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	pubB64 := base64.StdEncoding.EncodeToString(pub)
	seedB64 := base64.StdEncoding.EncodeToString(priv.Seed())

	fmt.Printf("key_id: %s\n\n", keygenID)
	fmt.Printf("PUBLIC_KEY_BASE64:\n%s\n\n", pubB64)
	fmt.Printf("PRIVATE_KEY_BASE64 (KEEP SECRET; DO NOT COMMIT):\n%s\n\n", seedB64)

	snippet, _ := json.MarshalIndent(map[string]any{
		"trusted_keys": map[string]string{keygenID: pubB64},
	}, "", "  ")
	fmt.Printf("pic_keys.json snippet:\n%s\n", string(snippet))
	return nil
}
