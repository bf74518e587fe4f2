package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimaudit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

type graphFixture struct {
	store   *flakyStore
	kb      *KnowledgeBase
	audit   *memory.AuditStore
	metrics *recordingMetrics
	graph   *AuditGraph
}

func newGraphFixture(t *testing.T, llm driven.LLMService, opts ...GraphOption) *graphFixture {
	t.Helper()
	store := newFlakyStore()
	kb := NewKnowledgeBase(store, &hashEmbedder{})
	audit := memory.NewAuditStore()
	metrics := newRecordingMetrics()
	settings := domain.DefaultAppSettings().Audit

	base := []GraphOption{
		WithStageRetryInterval(time.Millisecond),
		WithGraphMetrics(metrics),
		WithClassifier(NewClassifier(kb, nil, settings.MinConfidence)),
	}
	graph := NewAuditGraph(kb, audit, staticRules{rules: domain.DefaultRuleSet()}, llm, settings,
		append(base, opts...)...)
	return &graphFixture{store: store, kb: kb, audit: audit, metrics: metrics, graph: graph}
}

func (f *graphFixture) indexMotorPolicy(t *testing.T) {
	t.Helper()
	doc := &domain.Document{ID: "policy-motor", Category: "Motor", Collection: domain.CollectionPolicy}
	require.NoError(t, indexText(f.kb, doc,
		"Motor cover pays for vehicle damage caused by collision or accident on public roads.",
		"Motor claims for vehicle collision damage require a police report and repair estimate."))
}

func (f *graphFixture) indexPriorClaim(t *testing.T, id, client, date, text string) {
	t.Helper()
	doc := &domain.Document{
		ID: id, Category: "Motor", ClientID: client, SubmissionDate: date,
		Collection: domain.CollectionClaims,
	}
	require.NoError(t, indexText(f.kb, doc, text))
}

func motorClaim(client string) domain.ClaimRequest {
	return domain.ClaimRequest{
		ClientID:       client,
		ClaimRef:       "CLM-100",
		SubmissionDate: "2026-03-01",
		ClaimText:      "My vehicle suffered collision damage at a junction. The police report is attached.",
	}
}

func TestAuditGraph_Evaluate_ApprovesCoveredClaim(t *testing.T) {
	f := newGraphFixture(t, nil)
	f.indexMotorPolicy(t)

	result, err := f.graph.Evaluate(context.Background(), motorClaim("C1"))
	require.NoError(t, err)

	assert.Equal(t, domain.StageTerminal, result.Status)
	assert.Equal(t, domain.DecisionApproved, result.Verdict.Decision)
	assert.Equal(t, 0, result.Verdict.RiskScore)

	entry, err := f.audit.Get(context.Background(), result.InvestigationID)
	require.NoError(t, err)
	assert.Equal(t, "C1", entry.ClientID)
	assert.Equal(t, "builtin-1", entry.RuleSetVersion)

	// The Motor policy clauses reach Policy Selection's findings.
	var clauses []domain.QueryHit
	for _, finding := range entry.Trace {
		if finding.Stage == domain.StagePolicySelection {
			clauses = finding.Clauses
		}
	}
	require.NotEmpty(t, clauses)
	for _, c := range clauses {
		assert.Equal(t, "Motor", c.Metadata.Category)
		assert.Equal(t, domain.CollectionPolicy, c.Metadata.Collection)
	}
}

func TestAuditGraph_Evaluate_StageOrder(t *testing.T) {
	f := newGraphFixture(t, nil)
	f.indexMotorPolicy(t)

	result, err := f.graph.Evaluate(context.Background(), motorClaim("C1"))
	require.NoError(t, err)

	entry, err := f.audit.Get(context.Background(), result.InvestigationID)
	require.NoError(t, err)

	var labels []domain.Stage
	for _, finding := range entry.Trace {
		labels = append(labels, finding.Stage)
	}
	assert.Equal(t, domain.CanonicalStages(), labels)
	assert.Equal(t, domain.CanonicalStages(), f.metrics.stages)
	require.Len(t, f.metrics.verdicts, 1)
}

func TestAuditGraph_Evaluate_PoliceReportMissingInHistory(t *testing.T) {
	f := newGraphFixture(t, nil)
	f.indexMotorPolicy(t)
	f.indexPriorClaim(t, "prior-1", "C2", "2026-01-10",
		"Rear collision on the highway. Police report missing from the submission.")

	claim := motorClaim("C2")
	claim.Category = "motor"
	claim.ClaimText = "Vehicle collision in a parking lot, bumper damaged."

	result, err := f.graph.Evaluate(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionDenied, result.Verdict.Decision)
	assert.Contains(t, result.Verdict.Justification, "police report")
	assert.Equal(t, RiskViolation, result.Verdict.RiskScore)

	entry, err := f.audit.Get(context.Background(), result.InvestigationID)
	require.NoError(t, err)
	var police *domain.RequirementResult
	for _, finding := range entry.Trace {
		for i, r := range finding.Requirements {
			if r.RuleID == "police-report" {
				police = &finding.Requirements[i]
			}
		}
		if finding.Stage == domain.StageHistoryInvestigation {
			require.NotNil(t, finding.History)
			assert.Equal(t, 1, finding.History.PriorClaims)
			assert.Contains(t, finding.History.Flags, "police report missing")
		}
	}
	require.NotNil(t, police)
	assert.True(t, police.IsHardViolation())
}

func TestAuditGraph_Evaluate_SubmissionLimitCountsEveryPriorClaim(t *testing.T) {
	f := newGraphFixture(t, nil)
	f.indexMotorPolicy(t)

	// One prior claim with more chunks than the history search returns,
	// all of them close to the new claim's wording.
	texts := make([]string, domain.DefaultAppSettings().Audit.HistoryTopK+2)
	for i := range texts {
		texts[i] = fmt.Sprintf("My vehicle suffered collision damage at a junction, part %d.", i)
	}
	doc := &domain.Document{
		ID: "prior-long", Category: "Motor", ClientID: "C1", SubmissionDate: "2026-01-10",
		Collection: domain.CollectionClaims,
	}
	require.NoError(t, indexText(f.kb, doc, texts...))
	f.indexPriorClaim(t, "prior-nov", "C1", "2025-11-01", "Windscreen cracked by gravel.")
	f.indexPriorClaim(t, "prior-dec", "C1", "2025-12-01", "Side mirror broken in a car park.")
	f.indexPriorClaim(t, "prior-feb", "C1", "2026-02-01", "Hail dents on the roof.")

	result, err := f.graph.Evaluate(context.Background(), motorClaim("C1"))
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionDenied, result.Verdict.Decision)
	assert.Equal(t, RiskViolation, result.Verdict.RiskScore)

	entry, err := f.audit.Get(context.Background(), result.InvestigationID)
	require.NoError(t, err)
	var limit *domain.RequirementResult
	for _, finding := range entry.Trace {
		if finding.Stage == domain.StageHistoryInvestigation {
			require.NotNil(t, finding.History)
			assert.Equal(t, 4, finding.History.PriorClaims)
			assert.Equal(t, []string{"2025-11-01", "2025-12-01", "2026-01-10", "2026-02-01"},
				finding.History.PriorDates)
		}
		for i, r := range finding.Requirements {
			if r.RuleID == "submission-limit" {
				limit = &finding.Requirements[i]
			}
		}
	}
	require.NotNil(t, limit)
	assert.Equal(t, domain.RequirementViolated, limit.Status)
	assert.Contains(t, limit.Evidence, "5 claims within 365 days")
}

func TestAuditGraph_Evaluate_StoreUnavailableFailsAndArchives(t *testing.T) {
	f := newGraphFixture(t, nil)
	f.indexMotorPolicy(t)
	f.store.queryErr[domain.CollectionClaims] = domain.ErrStoreUnavailable

	result, err := f.graph.Evaluate(context.Background(), motorClaim("C3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.NotNil(t, result)
	assert.Equal(t, domain.StageFailed, result.Status)
	assert.True(t, result.Verdict.Failure)
	assert.Equal(t, domain.DecisionDenied, result.Verdict.Decision)

	// One attempt plus the configured retries.
	assert.Equal(t, domain.DefaultAppSettings().Audit.StageRetries+1,
		f.store.queryCalls[domain.CollectionClaims])

	entry, err := f.audit.Get(context.Background(), result.InvestigationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageFailed, entry.Status)
	assert.True(t, entry.Verdict.Failure)

	var labels []domain.Stage
	for _, finding := range entry.Trace {
		labels = append(labels, finding.Stage)
	}
	assert.Equal(t, []domain.Stage{
		domain.StageInitialization,
		domain.StagePolicySelection,
		domain.StageFailed,
		domain.StageArchive,
	}, labels)
}

func TestAuditGraph_Evaluate_NonRetryableErrorIsNotRetried(t *testing.T) {
	f := newGraphFixture(t, nil)
	f.store.queryErr[domain.CollectionPolicy] = errors.New("boom")

	result, err := f.graph.Evaluate(context.Background(), motorClaim("C4"))
	require.Error(t, err)
	assert.Equal(t, domain.StageFailed, result.Status)
	// One classifier lookup plus a single stage attempt.
	assert.Equal(t, 2, f.store.queryCalls[domain.CollectionPolicy])
}

func TestAuditGraph_Evaluate_ValidationLeavesNoEntry(t *testing.T) {
	f := newGraphFixture(t, nil)

	tests := []struct {
		name  string
		claim domain.ClaimRequest
	}{
		{"missing client", domain.ClaimRequest{ClaimRef: "x", SubmissionDate: "2026-01-01", ClaimText: "t"}},
		{"missing ref", domain.ClaimRequest{ClientID: "c", SubmissionDate: "2026-01-01", ClaimText: "t"}},
		{"empty text", domain.ClaimRequest{ClientID: "c", ClaimRef: "x", SubmissionDate: "2026-01-01", ClaimText: "  "}},
		{"bad date", domain.ClaimRequest{ClientID: "c", ClaimRef: "x", SubmissionDate: "01/01/2026", ClaimText: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.graph.Evaluate(context.Background(), tt.claim)
			assert.Nil(t, result)
			var ve *domain.ValidationError
			assert.ErrorAs(t, err, &ve)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	entries, err := f.audit.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditGraph_Evaluate_RuleSourceError(t *testing.T) {
	kb := NewKnowledgeBase(memory.NewKnowledgeStore(), &hashEmbedder{})
	audit := memory.NewAuditStore()
	graph := NewAuditGraph(kb, audit, staticRules{err: errors.New("bad yaml")}, nil,
		domain.DefaultAppSettings().Audit)

	_, err := graph.Evaluate(context.Background(), motorClaim("C1"))
	require.Error(t, err)
	entries, _ := audit.List(context.Background(), "", 0)
	assert.Empty(t, entries)
}

func TestAuditGraph_Evaluate_IgnoresCallerCancellation(t *testing.T) {
	f := newGraphFixture(t, nil)
	f.indexMotorPolicy(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.graph.Evaluate(ctx, motorClaim("C5"))
	require.NoError(t, err)
	_, err = f.audit.Get(context.Background(), result.InvestigationID)
	assert.NoError(t, err)
}

func TestAuditGraph_Evaluate_DuplicateArchiveKeepsFirstEntry(t *testing.T) {
	f := newGraphFixture(t, nil, WithIDGenerator(func() string { return "inv-fixed" }))
	f.indexMotorPolicy(t)

	first, err := f.graph.Evaluate(context.Background(), motorClaim("C6"))
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionApproved, first.Verdict.Decision)

	denied := motorClaim("C6")
	denied.ClaimText = "Collision damage. No police report was filed."
	second, err := f.graph.Evaluate(context.Background(), denied)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionDenied, second.Verdict.Decision)

	entries, err := f.audit.List(context.Background(), "C6", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.DecisionApproved, entries[0].Verdict.Decision)
}

func TestAuditGraph_Evaluate_InsufficientEvidence(t *testing.T) {
	f := newGraphFixture(t, nil)

	claim := motorClaim("C7")
	claim.Category = "Life"
	result, err := f.graph.Evaluate(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionDenied, result.Verdict.Decision)
	assert.True(t, strings.HasPrefix(result.Verdict.Justification, "insufficient evidence"))
	assert.False(t, result.Verdict.Failure)
}

func TestAuditGraph_Evaluate_SuspiciousHistoryFromLLM(t *testing.T) {
	llm := &mockLLM{
		generate: func(prompt string) (string, error) {
			if strings.Contains(prompt, "SUSPICIOUS") {
				return "SUSPICIOUS: yes\nPATTERN: three collisions in two months\nFLAGS: repeated incidents", nil
			}
			return "Denied after review.", nil
		},
	}
	f := newGraphFixture(t, llm)
	f.indexMotorPolicy(t)
	f.indexPriorClaim(t, "prior-2", "C8", "2026-02-01", "Front collision with a lamp post, police report attached.")

	claim := motorClaim("C8")
	claim.Category = "Motor"
	result, err := f.graph.Evaluate(context.Background(), claim)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionDenied, result.Verdict.Decision)
	assert.Equal(t, RiskSuspiciousHistory, result.Verdict.RiskScore)
	assert.Contains(t, result.Verdict.Justification, "claim history contradicts approval")
	assert.Contains(t, result.Verdict.Justification, "Denied after review.")
}

func TestAuditGraph_Progress(t *testing.T) {
	f := newGraphFixture(t, nil)
	f.indexMotorPolicy(t)

	result, err := f.graph.Evaluate(context.Background(), motorClaim("C9"))
	require.NoError(t, err)

	p, err := f.graph.Progress(context.Background(), result.InvestigationID)
	require.NoError(t, err)
	assert.True(t, p.Archived)
	assert.Equal(t, domain.StageTerminal, p.Stage)
	require.NotNil(t, p.Verdict)
	assert.Len(t, p.Findings, len(domain.CanonicalStages()))

	// Mutating the returned copy does not reach the tracker.
	p.Findings[0].Summary = "changed"
	again, err := f.graph.Progress(context.Background(), result.InvestigationID)
	require.NoError(t, err)
	assert.NotEqual(t, "changed", again.Findings[0].Summary)

	// A fresh graph over the same trail falls back to the archived entry.
	other := NewAuditGraph(f.kb, f.audit, staticRules{rules: domain.DefaultRuleSet()}, nil,
		domain.DefaultAppSettings().Audit)
	p, err = other.Progress(context.Background(), result.InvestigationID)
	require.NoError(t, err)
	assert.True(t, p.Archived)

	_, err = f.graph.Progress(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuditGraph_HistoryAndVerify(t *testing.T) {
	f := newGraphFixture(t, nil)
	f.indexMotorPolicy(t)

	for _, client := range []string{"A", "B", "A"} {
		_, err := f.graph.Evaluate(context.Background(), motorClaim(client))
		require.NoError(t, err)
	}

	entries, err := f.graph.History(context.Background(), "A", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	n, err := f.graph.VerifyTrail(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := f.graph.AuditEntry(context.Background(), entries[0].InvestigationID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.ClientID)
}
