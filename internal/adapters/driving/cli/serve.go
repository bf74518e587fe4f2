package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/httpapi"
)

var (
	serveAddr    string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API and, unless --no-watch is given, the landing-area
watcher alongside it.

Endpoints:
  POST /upload/policy                  multipart: category, file
  POST /upload/claim/:client_id/:type  multipart: file
  POST /ask/evaluate-claim             run an investigation
  POST /ask/policy                     ask a policy question
  GET  /investigations/:id/progress    live progress of an investigation
  GET  /audit/:id                      archived audit entry
  GET  /audit                          audit history
  GET  /ingestion                      watcher status
  GET  /healthz, /metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "do not run the landing-area watcher")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if auditService == nil {
		return errors.New("audit service not configured")
	}

	server, err := httpapi.NewServer(httpapi.Ports{
		Audit:     auditService,
		Upload:    uploadService,
		Advisor:   policyAdvisor,
		Ingestion: ingestionService,
	}, serveOptions()...)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return server.Run(ctx, serveAddr)
	})
	if ingestionService != nil && !serveNoWatch {
		g.Go(func() error {
			err := ingestionService.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("ingestion stopped: %w", err)
			}
			return nil
		})
	}

	cmd.Printf("HTTP API listening on %s\n", serveAddr)
	return g.Wait()
}

func serveOptions() []httpapi.Option {
	var opts []httpapi.Option
	if metricsHandler != nil {
		opts = append(opts, httpapi.WithMetricsHandler(metricsHandler))
	}
	names := make([]string, 0, len(healthChecks))
	for name := range healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, httpapi.WithHealthCheck(name, healthChecks[name]))
	}
	return opts
}
