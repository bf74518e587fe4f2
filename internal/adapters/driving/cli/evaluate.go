package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

type evaluateOptions struct {
	clientID     string
	claimRef     string
	date         string
	category     string
	amount       float64
	incidentDate string
	text         string
	file         string
	json         bool
}

var evaluateFlags evaluateOptions

// stdin is replaced in tests.
var stdin io.Reader = os.Stdin

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a claim",
	Long: `Runs a claim through the six-stage investigation and prints the verdict.

The claim narrative is taken from --text, from --file, or from standard
input when it is not a terminal.

Examples:
  claimaudit evaluate --client C-1001 --ref CLM-77 --text "Rear-ended at a red light"
  cat narrative.txt | claimaudit evaluate --client C-1001 --ref CLM-77 --category Motor --amount 1200`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evaluateFlags.clientID, "client", "", "client identifier (required)")
	f.StringVar(&evaluateFlags.claimRef, "ref", "", "claim reference (required)")
	f.StringVar(&evaluateFlags.date, "date", "", "submission date YYYY-MM-DD (default today)")
	f.StringVar(&evaluateFlags.category, "category", "", "declared category")
	f.Float64Var(&evaluateFlags.amount, "amount", 0, "claimed amount")
	f.StringVar(&evaluateFlags.incidentDate, "incident-date", "", "incident date YYYY-MM-DD")
	f.StringVar(&evaluateFlags.text, "text", "", "claim narrative")
	f.StringVar(&evaluateFlags.file, "file", "", "read the claim narrative from a file")
	f.BoolVar(&evaluateFlags.json, "json", false, "output the result as JSON")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	if auditService == nil {
		return errors.New("audit service not configured")
	}

	text, err := claimText()
	if err != nil {
		return err
	}

	date := evaluateFlags.date
	if date == "" {
		date = time.Now().Format(domain.SubmissionDateLayout)
	}

	claim := domain.ClaimRequest{
		ClientID:       evaluateFlags.clientID,
		ClaimRef:       evaluateFlags.claimRef,
		SubmissionDate: date,
		ClaimText:      text,
		Category:       evaluateFlags.category,
		Amount:         evaluateFlags.amount,
		IncidentDate:   evaluateFlags.incidentDate,
	}

	result, evalErr := auditService.Evaluate(cmd.Context(), claim)
	if result == nil {
		return fmt.Errorf("evaluation failed: %w", evalErr)
	}

	if evaluateFlags.json {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
	} else {
		printResult(cmd, result)
	}

	if evalErr != nil {
		return fmt.Errorf("investigation %s failed: %w", result.InvestigationID, evalErr)
	}
	return nil
}

func claimText() (string, error) {
	switch {
	case evaluateFlags.text != "" && evaluateFlags.file != "":
		return "", errors.New("use either --text or --file, not both")
	case evaluateFlags.text != "":
		return evaluateFlags.text, nil
	case evaluateFlags.file != "":
		data, err := os.ReadFile(evaluateFlags.file)
		if err != nil {
			return "", fmt.Errorf("read claim file: %w", err)
		}
		return string(data), nil
	}

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errors.New("claim narrative required: use --text, --file or pipe it on stdin")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func printResult(cmd *cobra.Command, result *domain.InvestigationResult) {
	cmd.Printf("Investigation: %s\n", result.InvestigationID)
	cmd.Printf("Verdict:       %s\n", result.Verdict.Decision)
	cmd.Printf("Risk score:    %d\n", result.Verdict.RiskScore)
	if result.Verdict.Failure {
		cmd.Println("Forced by a stage failure.")
	}
	cmd.Println()
	cmd.Println(result.Verdict.Justification)
}
