// Package cli provides the claimaudit command line interface.
package cli

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

var verbose bool

// Services wired by main.
var (
	auditService     driving.AuditService
	policyAdvisor    driving.PolicyAdvisor
	ingestionService driving.IngestionService
	uploadService    driving.UploadService
	settingsService  driving.SettingsService

	metricsHandler http.Handler
	healthChecks   map[string]httpapi.HealthCheck
)

// Services holds the driving ports the commands call.
type Services struct {
	Audit     driving.AuditService
	Advisor   driving.PolicyAdvisor
	Ingestion driving.IngestionService
	Upload    driving.UploadService
	Settings  driving.SettingsService

	// Metrics is served on /metrics by the serve command. Optional.
	Metrics http.Handler

	// HealthChecks are reported on /healthz by the serve command. Optional.
	HealthChecks map[string]httpapi.HealthCheck
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	auditService = s.Audit
	policyAdvisor = s.Advisor
	ingestionService = s.Ingestion
	uploadService = s.Upload
	settingsService = s.Settings
	metricsHandler = s.Metrics
	healthChecks = s.HealthChecks
}

var rootCmd = &cobra.Command{
	Use:   "claimaudit",
	Short: "Audit insurance claims against master policies",
	Long: `claimaudit ingests master policies and claim documents from a landing
area, indexes them into separate policy and claim collections, and runs
each claim through a six-stage investigation that ends in an archived,
tamper-evident verdict.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
