package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	askCategory string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the master policies",
	Long: `Answers a question from the policy collection only. Claim documents are
never consulted. The answer cites the clauses it was drawn from.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askCategory, "category", "c", "", "restrict to one policy category")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if policyAdvisor == nil {
		return errors.New("policy advisor not configured")
	}

	answer, err := policyAdvisor.Ask(cmd.Context(), args[0], askCategory)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	if askJSON {
		return printJSON(cmd, answer)
	}

	cmd.Println(answer.Answer)
	if len(answer.Clauses) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, c := range answer.Clauses {
		cmd.Printf("  [%d] %s %s (%.2f)\n", i+1, c.Metadata.Category, c.Metadata.SourceDocumentID, c.Score)
	}
	return nil
}
