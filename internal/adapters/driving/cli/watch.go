package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

var (
	watchOnce bool
	watchJSON bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the landing area and index new documents",
	Long: `Watches the policies/ and claims/ landing trees. Each settled file is
normalised, chunked, classified and written to its collection, then moved
into the archive. Failed files are moved to the failed area.

Use --once to run a single scan and exit.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "run a single scan and exit")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "print the ingestion status as JSON (with --once)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	ctx := cmd.Context()
	if !watchOnce {
		cmd.Println("Watching landing area. Press Ctrl+C to stop.")
		err := ingestionService.Run(ctx)
		if err != nil && !errors.Is(err, ctx.Err()) {
			return fmt.Errorf("ingestion stopped: %w", err)
		}
		return nil
	}

	if err := ingestionService.Tick(ctx); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	status := ingestionService.Status()
	if watchJSON {
		return printJSON(cmd, status)
	}
	printIngestionStatus(cmd, status)
	return nil
}

func printIngestionStatus(cmd *cobra.Command, status domain.IngestionStatus) {
	cmd.Printf("Archived: %d  Failed: %d  Skipped: %d\n", status.Archived, status.Failed, status.Skipped)
	if len(status.Active) == 0 {
		cmd.Println("No files in progress.")
		return
	}
	cmd.Println("In progress:")
	for _, f := range status.Active {
		cmd.Printf("  %s  %s\n", f.State, f.Path)
	}
}
