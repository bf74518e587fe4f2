package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

var tuiNoWatch bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive audit console",
	Long: `Launch the interactive terminal console.

The console browses the audit trail, verifies its digest chain, shows the
landing-area watcher and, when an LLM is configured, answers policy questions.
Unless --no-watch is given the watcher runs in the background while the
console is open.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Select
  r        - Refresh
  v        - Verify audit trail
  Esc      - Back
  q        - Quit`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().BoolVar(&tuiNoWatch, "no-watch", false, "do not run the landing-area watcher")
	rootCmd.AddCommand(tuiCmd)
}

// runApp is replaced in tests; it blocks until the console exits.
var runApp = func(app *tui.App) error {
	return app.Run()
}

func runTUI(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := tui.NewApp(&tui.Ports{
		Audit:     auditService,
		Ingestion: ingestionService,
		Advisor:   policyAdvisor,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if ingestionService != nil && !tuiNoWatch {
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := ingestionService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("ingestion stopped: %v", err)
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	if err := runApp(app.WithContext(ctx)); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
