package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openpic/picguard/internal/contract"
)

func init() {
	rootCmd.AddCommand(schemaCmd)
}

var schemaCmd = &cobra.Command{
	Use:   "schema <proposal.json>",
	Short: "Validate a proposal file against the JSON Schema",
	Long: "Checks structural validity only: required fields, enum values, types.\n" +
		"Exit code 0 if the proposal conforms, 2 if it does not.",
	Args: cobra.ExactArgs(1),
	RunE: runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	raw, err := loadProposalFile(args[0])
	if err != nil {
		return err
	}

	if err := contract.ValidateSchema(raw); err != nil {
		fmt.Println("Schema invalid")
		fmt.Println(err)
		os.Exit(2)
	}

	fmt.Println("Schema valid")
	return nil
}

func loadProposalFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proposal file: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return raw, nil
}
