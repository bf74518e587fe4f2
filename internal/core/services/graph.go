package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

// Ensure AuditGraph implements the interface.
var _ driving.AuditService = (*AuditGraph)(nil)

var auditLog = logger.Named("audit")

// DefaultStageRetryInterval is the first delay between stage retries.
const DefaultStageRetryInterval = 200 * time.Millisecond

// AuditGraph runs investigations through the fixed stage sequence:
// Initialization, Policy Selection, History Investigation, Compliance
// Evaluation, Synthesis and Archive.
type AuditGraph struct {
	kb         *KnowledgeBase
	audit      driven.AuditStore
	rules      driven.RuleSource
	llm        driven.LLMService
	prompts    driven.PromptStore
	classifier *Classifier
	compliance *ComplianceEvaluator
	tracker    *ProgressTracker
	metrics    driven.Metrics
	settings   domain.AuditSettings

	now           func() time.Time
	newID         func() string
	retryInterval time.Duration
}

// GraphOption configures an AuditGraph.
type GraphOption func(*AuditGraph)

// WithClassifier detects the policy category of claims that arrive without one.
func WithClassifier(c *Classifier) GraphOption {
	return func(g *AuditGraph) { g.classifier = c }
}

// WithGraphMetrics records stage timings and verdicts.
func WithGraphMetrics(m driven.Metrics) GraphOption {
	return func(g *AuditGraph) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithGraphClock replaces the clock.
func WithGraphClock(now func() time.Time) GraphOption {
	return func(g *AuditGraph) { g.now = now }
}

// WithIDGenerator replaces the investigation ID generator.
func WithIDGenerator(newID func() string) GraphOption {
	return func(g *AuditGraph) { g.newID = newID }
}

// WithStageRetryInterval sets the first delay between stage retries.
func WithStageRetryInterval(d time.Duration) GraphOption {
	return func(g *AuditGraph) { g.retryInterval = d }
}

// NewAuditGraph creates the audit workflow. llm may be nil; compliance then
// uses the rule table alone and justifications are not narrated.
func NewAuditGraph(kb *KnowledgeBase, audit driven.AuditStore, rules driven.RuleSource,
	llm driven.LLMService, settings domain.AuditSettings, opts ...GraphOption) *AuditGraph {
	g := &AuditGraph{
		kb:            kb,
		audit:         audit,
		rules:         rules,
		llm:           llm,
		compliance:    NewComplianceEvaluator(llm),
		tracker:       NewProgressTracker(settings.ProgressRetention),
		metrics:       noopMetrics{},
		settings:      settings,
		now:           time.Now,
		newID:         uuid.NewString,
		retryInterval: DefaultStageRetryInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (g *AuditGraph) SetPromptStore(store driven.PromptStore) {
	g.prompts = store
	g.compliance.SetPromptStore(store)
}

// investigationRun is the state one Evaluate call owns.
type investigationRun struct {
	inv   *domain.Investigation
	rules domain.RuleSet
}

type stageFunc func(ctx context.Context, run *investigationRun) (domain.Finding, error)

// Evaluate runs one investigation to completion. Once Initialization
// succeeds the run ignores cancellation of ctx, so every started
// investigation reaches Archive.
func (g *AuditGraph) Evaluate(ctx context.Context, claim domain.ClaimRequest) (*domain.InvestigationResult, error) {
	claim = normaliseClaim(claim)
	if err := claim.Validate(); err != nil {
		return nil, err
	}
	rules, err := g.rules.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load SOP rules: %w", err)
	}

	run := &investigationRun{
		inv:   domain.NewInvestigation(g.newID(), claim, g.now()),
		rules: rules,
	}
	inv := run.inv
	_ = inv.AppendFinding(domain.Finding{
		Stage:      domain.StageInitialization,
		Summary:    fmt.Sprintf("investigation opened for client %s, claim %s", claim.ClientID, claim.ClaimRef),
		RecordedAt: g.now(),
	})
	g.tracker.Update(inv)
	g.metrics.StageCompleted(domain.StageInitialization, 0, nil)
	auditLog.Info("Investigation %s started for client %s (rules %s)", inv.ID, claim.ClientID, rules.Version)

	ctx = context.WithoutCancel(ctx)

	stages := []struct {
		stage domain.Stage
		fn    stageFunc
	}{
		{domain.StagePolicySelection, g.selectPolicy},
		{domain.StageHistoryInvestigation, g.investigateHistory},
		{domain.StageComplianceEvaluation, g.evaluateCompliance},
		{domain.StageSynthesis, g.synthesise},
	}

	var stageErr error
	for _, s := range stages {
		if err := g.runStage(ctx, run, s.stage, s.fn); err != nil {
			stageErr = err
			break
		}
	}

	if err := g.archive(ctx, run); err != nil {
		return nil, errors.Join(stageErr, err)
	}

	result := &domain.InvestigationResult{
		InvestigationID: inv.ID,
		Status:          inv.Status,
		Verdict:         *inv.Verdict,
	}
	auditLog.Info("Investigation %s %s: %s (risk %d)", inv.ID, inv.Status, inv.Verdict.Decision, inv.Verdict.RiskScore)
	return result, stageErr
}

func (g *AuditGraph) runStage(ctx context.Context, run *investigationRun, stage domain.Stage, fn stageFunc) error {
	inv := run.inv
	if err := inv.Advance(stage); err != nil {
		return err
	}
	g.tracker.Update(inv)
	auditLog.Debug("Investigation %s: %s", inv.ID, stage)

	start := time.Now()
	var finding domain.Finding
	attempt := 0
	op := func() error {
		attempt++
		f, err := fn(ctx, run)
		if err != nil {
			if domain.IsRetryable(err) {
				auditLog.Debug("Investigation %s: %s attempt %d: %v", inv.ID, stage, attempt, err)
				return err
			}
			return backoff.Permanent(err)
		}
		finding = f
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retryInterval
	b.MaxElapsedTime = 0
	b.Reset()
	err := backoff.Retry(op, backoff.WithMaxRetries(b, uint64(max(g.settings.StageRetries, 0))))
	g.metrics.StageCompleted(stage, time.Since(start), err)

	if err != nil {
		auditLog.Error("investigation %s failed at %s after %d attempts: %v", inv.ID, stage, attempt, err)
		_ = inv.Fail(stage, err, g.now())
		g.tracker.Update(inv)
		return fmt.Errorf("%s: %w", stage, err)
	}

	finding.Stage = stage
	finding.RecordedAt = g.now()
	if err := inv.AppendFinding(finding); err != nil {
		return err
	}
	if finding.Verdict != nil {
		if err := inv.SetVerdict(*finding.Verdict); err != nil {
			return err
		}
	}
	g.tracker.Update(inv)
	return nil
}

// archive appends the audit entry and seals the investigation.
func (g *AuditGraph) archive(ctx context.Context, run *investigationRun) error {
	inv := run.inv
	failed := inv.Status == domain.StageFailed
	if !failed {
		_ = inv.Advance(domain.StageArchive)
	}
	if inv.Verdict == nil {
		v := Decide(inv.Clauses(), inv.History(), inv.Requirements())
		_ = inv.SetVerdict(v)
	}
	_ = inv.AppendFinding(domain.Finding{
		Stage:      domain.StageArchive,
		Summary:    "archived with decision " + string(inv.Verdict.Decision),
		RecordedAt: g.now(),
	})
	if !failed {
		_ = inv.Advance(domain.StageTerminal)
	}

	start := time.Now()
	entry := domain.NewAuditEntry(inv, run.rules.Version, g.now())
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retryInterval
	b.MaxElapsedTime = 0
	b.Reset()
	err := backoff.Retry(func() error {
		err := g.audit.Append(ctx, entry)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrDuplicateInvestigation):
			auditLog.Debug("Investigation %s already archived", inv.ID)
			return nil
		case domain.IsRetryable(err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}, backoff.WithMaxRetries(b, uint64(max(g.settings.StageRetries, 0))))
	g.metrics.StageCompleted(domain.StageArchive, time.Since(start), err)

	inv.Seal()
	g.tracker.Update(inv)
	if err != nil {
		auditLog.Error("archive investigation %s: %v", inv.ID, err)
		return fmt.Errorf("archive investigation %s: %w", inv.ID, err)
	}
	g.metrics.VerdictRecorded(*inv.Verdict)
	return nil
}

// Progress returns the latest snapshot, falling back to the audit trail
// for investigations no longer tracked in memory.
func (g *AuditGraph) Progress(ctx context.Context, investigationID string) (*domain.Progress, error) {
	if p, ok := g.tracker.Get(investigationID); ok {
		return p, nil
	}
	entry, err := g.audit.Get(ctx, investigationID)
	if err != nil {
		return nil, err
	}
	verdict := entry.Verdict
	return &domain.Progress{
		InvestigationID: entry.InvestigationID,
		Stage:           entry.Status,
		Findings:        entry.Trace,
		Verdict:         &verdict,
		Archived:        true,
	}, nil
}

// AuditEntry returns the archived record of an investigation.
func (g *AuditGraph) AuditEntry(ctx context.Context, investigationID string) (*domain.AuditEntry, error) {
	return g.audit.Get(ctx, investigationID)
}

// History lists archived records, optionally for one client.
func (g *AuditGraph) History(ctx context.Context, clientID string, limit int) ([]domain.AuditEntry, error) {
	return g.audit.List(ctx, strings.TrimSpace(clientID), limit)
}

// VerifyTrail checks the audit digest chain.
func (g *AuditGraph) VerifyTrail(ctx context.Context) (int, error) {
	return g.audit.Verify(ctx)
}

func normaliseClaim(c domain.ClaimRequest) domain.ClaimRequest {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.ClaimRef = strings.TrimSpace(c.ClaimRef)
	c.SubmissionDate = strings.TrimSpace(c.SubmissionDate)
	c.IncidentDate = strings.TrimSpace(c.IncidentDate)
	c.Category = domain.NormaliseCategory(c.Category)
	return c
}

type noopMetrics struct{}

func (noopMetrics) FileTransition(domain.FileState)                   {}
func (noopMetrics) ChunksIndexed(domain.Collection, int)              {}
func (noopMetrics) StageCompleted(domain.Stage, time.Duration, error) {}
func (noopMetrics) VerdictRecorded(domain.Verdict)                    {}
