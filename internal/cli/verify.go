package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openpic/picguard/internal/contract"
)

func init() {
	rootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify <proposal.json>",
	Short: "Validate a proposal against the schema and the causal contract",
	Long: "Runs schema validation first, then the full verifier: trust levels,\n" +
		"impact classification, and the high-impact claim requirement.\n\n" +
		"Exit code 0 on success, 2 on schema failure, 3 on contract failure.",
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	if _, err := contract.Parse(raw); err != nil {
		fmt.Println("Verifier failed")
		fmt.Println(err)
		os.Exit(3)
	}

	fmt.Println("Verifier passed")
	return nil
}
