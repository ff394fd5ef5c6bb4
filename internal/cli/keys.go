package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openpic/picguard/internal/keyring"
)

var (
	keysFile         string
	keysWriteExample bool
)

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.Flags().StringVar(&keysFile, "keys", "", "Path to keyring JSON (default: PICGUARD_KEYS_PATH, then pic_keys.json)")
	keysCmd.Flags().BoolVar(&keysWriteExample, "write-example", false, "Print an example pic_keys.json and exit")
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Load the keyring and list trusted and revoked key IDs",
	RunE:  runKeys,
}

func runKeys(cmd *cobra.Command, args []string) error {
	if keysWriteExample {
		example := map[string]any{
			"trusted_keys": map[string]any{
				"demo_signer_v1": map[string]any{
					"public_key": "BASE64_OR_HEX_OR_PEM_ED25519_PUBLIC_KEY",
					"expires_at": "2027-01-01T00:00:00Z",
				},
			},
			"revoked_keys": []string{},
		}
		out, _ := json.MarshalIndent(example, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	path := keysPath(keysFile)
	source := "default (pic_keys.json)"
	switch {
	case keysFile != "":
		source = "--keys " + keysFile
	case os.Getenv("PICGUARD_KEYS_PATH") != "":
		source = "PICGUARD_KEYS_PATH=" + os.Getenv("PICGUARD_KEYS_PATH")
	}

	ring, err := keyring.LoadDefault(path)
	if err != nil {
		fmt.Printf("Keyring load failed\nSource: %s\n%v\n", source, err)
		os.Exit(1)
	}

	now := time.Now()
	fmt.Printf("Keyring loaded\nSource: %s\n", source)
	fmt.Printf("Trusted keys (%d):\n", ring.Len())
	for _, id := range ring.KeyIDs() {
		status := ring.Status(id, now)
		if entry, ok := ring.Entry(id); ok && entry.ExpiresAt != nil {
			fmt.Printf("  - %s [%s, expires %s]\n", id, status, entry.ExpiresAt.Format(time.RFC3339))
			continue
		}
		fmt.Printf("  - %s [%s]\n", id, status)
	}
	revoked := ring.RevokedIDs()
	fmt.Printf("Revoked keys (%d):\n", len(revoked))
	for _, id := range revoked {
		fmt.Printf("  - %s\n", id)
	}
	return nil
}
