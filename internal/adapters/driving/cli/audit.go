package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	auditJSON   bool
	auditClient string
	auditLimit  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
}

var auditShowCmd = &cobra.Command{
	Use:   "show [investigation-id]",
	Short: "Show an archived audit entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived investigations, newest first",
	RunE:  runAuditList,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit digest chain",
	Long: `Recomputes the digest of every audit entry and checks that each entry
links to its predecessor. Any mismatch means the trail was altered.`,
	RunE: runAuditVerify,
}

var auditProgressCmd = &cobra.Command{
	Use:   "progress [investigation-id]",
	Short: "Show the live progress of an investigation",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditProgress,
}

func init() {
	auditCmd.PersistentFlags().BoolVar(&auditJSON, "json", false, "output as JSON")
	auditListCmd.Flags().StringVar(&auditClient, "client", "", "only entries for this client")
	auditListCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "maximum number of entries")

	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditProgressCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	if auditService == nil {
		return errors.New("audit service not configured")
	}

	entry, err := auditService.AuditEntry(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get audit entry: %w", err)
	}
	if auditJSON {
		return printJSON(cmd, entry)
	}

	cmd.Printf("Investigation: %s\n", entry.InvestigationID)
	cmd.Printf("Client:        %s\n", entry.ClientID)
	cmd.Printf("Claim:         %s\n", entry.ClaimRef)
	cmd.Printf("Rule set:      %s\n", entry.RuleSetVersion)
	cmd.Printf("Started:       %s\n", entry.StartedAt.Format(time.RFC3339))
	cmd.Printf("Recorded:      %s\n", entry.RecordedAt.Format(time.RFC3339))
	cmd.Printf("Verdict:       %s (risk %d)\n", entry.Verdict.Decision, entry.Verdict.RiskScore)
	cmd.Printf("Digest:        %s\n", entry.Digest)
	cmd.Println()
	cmd.Println(entry.Verdict.Justification)
	if len(entry.Trace) > 0 {
		cmd.Println()
		cmd.Println("Trace:")
		for _, f := range entry.Trace {
			cmd.Printf("  [%s] %s\n", f.Stage, f.Summary)
		}
	}
	return nil
}

func runAuditList(cmd *cobra.Command, _ []string) error {
	if auditService == nil {
		return errors.New("audit service not configured")
	}

	entries, err := auditService.History(cmd.Context(), auditClient, auditLimit)
	if err != nil {
		return fmt.Errorf("failed to list audit entries: %w", err)
	}
	if auditJSON {
		return printJSON(cmd, entries)
	}
	if len(entries) == 0 {
		cmd.Println("No audit entries found.")
		return nil
	}
	for i := range entries {
		e := &entries[i]
		cmd.Printf("  %s  %-10s %-12s %-8s %s\n",
			e.RecordedAt.Format("2006-01-02 15:04"), e.ClientID, e.ClaimRef, e.Verdict.Decision, e.InvestigationID)
	}
	return nil
}

func runAuditVerify(cmd *cobra.Command, _ []string) error {
	if auditService == nil {
		return errors.New("audit service not configured")
	}

	n, err := auditService.VerifyTrail(cmd.Context())
	if err != nil {
		return fmt.Errorf("audit trail verification failed: %w", err)
	}
	cmd.Printf("Audit trail intact: %d entries verified.\n", n)
	return nil
}

func runAuditProgress(cmd *cobra.Command, args []string) error {
	if auditService == nil {
		return errors.New("audit service not configured")
	}

	p, err := auditService.Progress(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get progress: %w", err)
	}
	if auditJSON {
		return printJSON(cmd, p)
	}

	cmd.Printf("Investigation: %s\n", p.InvestigationID)
	cmd.Printf("Stage:         %s\n", p.Stage)
	if p.Archived {
		cmd.Println("Archived:      yes")
	}
	if p.Verdict != nil {
		cmd.Printf("Verdict:       %s\n", p.Verdict.Decision)
	}
	for _, f := range p.Findings {
		cmd.Printf("  [%s] %s\n", f.Stage, f.Summary)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
