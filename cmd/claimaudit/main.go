// Command claimaudit audits insurance claims against master policies.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/claimaudit/internal/adapters/driven/ai"
	"github.com/custodia-labs/claimaudit/internal/adapters/driven/config/file"
	"github.com/custodia-labs/claimaudit/internal/adapters/driven/config/sop"
	"github.com/custodia-labs/claimaudit/internal/adapters/driven/metrics"
	"github.com/custodia-labs/claimaudit/internal/adapters/driven/storage/breaker"
	"github.com/custodia-labs/claimaudit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/claimaudit/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/claimaudit/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/claimaudit/internal/adapters/driven/watcher"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/cli"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/core/services"
	"github.com/custodia-labs/claimaudit/internal/logger"
	"github.com/custodia-labs/claimaudit/internal/normalisers"
	"github.com/custodia-labs/claimaudit/internal/normalisers/docx"
	"github.com/custodia-labs/claimaudit/internal/normalisers/eml"
	"github.com/custodia-labs/claimaudit/internal/normalisers/html"
	"github.com/custodia-labs/claimaudit/internal/normalisers/markdown"
	"github.com/custodia-labs/claimaudit/internal/normalisers/pdf"
	"github.com/custodia-labs/claimaudit/internal/normalisers/plaintext"
	"github.com/custodia-labs/claimaudit/internal/postprocessors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("loading .env: %v", err)
	}

	configDir, err := file.DefaultDir()
	if err != nil {
		return err
	}
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if settings.Storage.LandingDir == "" || settings.Storage.DataDir == "" {
		if settings.Storage.LandingDir == "" {
			settings.Storage.LandingDir = filepath.Join(configDir, "landing")
		}
		if settings.Storage.DataDir == "" {
			settings.Storage.DataDir = filepath.Join(configDir, "data")
		}
		if err := settingsService.Save(settings); err != nil {
			return fmt.Errorf("save default directories: %w", err)
		}
	}

	// Settings commands must work before the AI providers are reachable.
	if isSettingsOnly(os.Args[1:]) {
		cli.SetServices(cli.Services{Settings: settingsService})
		return cli.Execute(ctx)
	}

	app, err := build(ctx, *settings)
	if err != nil {
		return err
	}
	defer app.close()

	app.services.Settings = settingsService
	cli.SetServices(app.services)
	return cli.Execute(ctx)
}

// application holds the wired services and what must be closed on exit.
type application struct {
	services cli.Services
	closers  []func() error
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Error("shutdown: %v", err)
		}
	}
}

func build(ctx context.Context, settings domain.AppSettings) (*application, error) {
	app := &application{}

	aiServices, err := ai.Init(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("initialise AI services: %w", err)
	}
	app.closers = append(app.closers, func() error { aiServices.Close(); return nil })
	for _, w := range aiServices.Warnings {
		logger.Warn("%s", w)
	}

	store, err := openKnowledgeStore(ctx, settings, aiServices.EmbeddingService.Dimensions())
	if err != nil {
		app.close()
		return nil, err
	}
	guarded := breaker.New(store, uint32(max(settings.Storage.BreakerFailures, 1)), settings.Storage.BreakerCooldown)
	app.closers = append(app.closers, guarded.Close)

	db, err := sqlite.NewStore(settings.Storage.DataDir)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	prompts, err := file.NewPromptStore("")
	if err != nil {
		app.close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	normaliserRegistry := normalisers.NewRegistry(
		plaintext.New(),
		markdown.New(),
		html.New(),
		docx.New(),
		eml.New(),
		pdf.New(),
	)

	chunkers := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(chunkers)
	chunker, err := chunkers.Build(settings.Chunker)
	if err != nil {
		app.close()
		return nil, err
	}

	kb := services.NewKnowledgeBase(guarded, aiServices.EmbeddingService)
	llm := aiServices.LLMService

	classifier := services.NewClassifier(kb, llm, settings.Audit.MinConfidence)
	classifier.SetPromptStore(prompts)

	graph := services.NewAuditGraph(kb, db.AuditStore(), sop.NewSource(settings.Audit.SOPFile), llm, settings.Audit,
		services.WithClassifier(classifier),
		services.WithGraphMetrics(m),
	)
	graph.SetPromptStore(prompts)

	fsWatcher := watcher.New()
	app.closers = append(app.closers, fsWatcher.Close)

	pipeline := services.NewIngestionPipeline(settings.Storage.LandingDir, normaliserRegistry, classifier,
		chunker, kb, db.Ledger(), settings.Ingestion,
		services.WithWatcher(fsWatcher),
		services.WithIngestionMetrics(m),
	)

	var advisor *services.PolicyAdvisor
	if llm != nil {
		advisor = services.NewPolicyAdvisor(kb, llm, settings.Audit.PolicyTopK)
		advisor.SetPromptStore(prompts)
	}

	app.services = cli.Services{
		Audit:     graph,
		Ingestion: pipeline,
		Upload:    services.NewLandingService(settings.Storage.LandingDir, normaliserRegistry, nil),
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		HealthChecks: map[string]httpapi.HealthCheck{
			"knowledge_store": func(ctx context.Context) error {
				_, err := guarded.Count(ctx, domain.CollectionPolicy)
				return err
			},
			"audit_trail": func(ctx context.Context) error {
				_, err := db.AuditStore().List(ctx, "", 1)
				return err
			},
		},
	}
	if advisor != nil {
		app.services.Advisor = advisor
	}
	return app, nil
}

func openKnowledgeStore(ctx context.Context, settings domain.AppSettings, dimensions int) (driven.KnowledgeStore, error) {
	switch settings.Storage.Backend {
	case domain.KnowledgeBackendPGVector:
		store, err := pgvector.New(ctx, settings.Storage.PostgresURL, dimensions)
		if err != nil {
			return nil, fmt.Errorf("open pgvector store: %w", err)
		}
		return store, nil
	default:
		if err := os.MkdirAll(settings.Storage.DataDir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		store, err := memory.OpenKnowledgeStore(filepath.Join(settings.Storage.DataDir, "knowledge.journal"))
		if err != nil {
			return nil, fmt.Errorf("open knowledge store: %w", err)
		}
		return store, nil
	}
}

// isSettingsOnly reports whether the command line runs a command that needs
// no AI services.
func isSettingsOnly(args []string) bool {
	for _, a := range args {
		switch a {
		case "settings", "version", "help", "--help", "-h":
			return true
		}
		if len(a) > 0 && a[0] != '-' {
			return false
		}
	}
	return len(args) == 0
}
