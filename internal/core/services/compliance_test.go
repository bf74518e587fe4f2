package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

func resultFor(t *testing.T, results []domain.RequirementResult, id string) domain.RequirementResult {
	t.Helper()
	for _, r := range results {
		if r.RuleID == id && r.Source == sourceRule {
			return r
		}
	}
	t.Fatalf("no result for rule %s", id)
	return domain.RequirementResult{}
}

func TestComplianceEvaluator_RequiredDocument(t *testing.T) {
	rules := domain.DefaultRuleSet()
	tests := []struct {
		name  string
		claim domain.ClaimRequest
		hist  *domain.HistorySummary
		rule  string
		want  domain.RequirementStatus
	}{
		{
			name:  "police report present",
			claim: domain.ClaimRequest{Category: "Motor", ClaimText: "Collision on the highway, police report attached."},
			rule:  "police-report",
			want:  domain.RequirementSatisfied,
		},
		{
			name:  "police report absent",
			claim: domain.ClaimRequest{Category: "Motor", ClaimText: "Collision on the highway."},
			rule:  "police-report",
			want:  domain.RequirementViolated,
		},
		{
			name:  "claim declares report missing",
			claim: domain.ClaimRequest{Category: "Motor", ClaimText: "Minor scrape, no police report filed."},
			rule:  "police-report",
			want:  domain.RequirementViolated,
		},
		{
			name:  "history flags report missing",
			claim: domain.ClaimRequest{Category: "Motor", ClaimText: "Hail damage to the roof."},
			hist:  &domain.HistorySummary{Flags: []string{"Police report missing in 2 prior claims"}},
			rule:  "police-report",
			want:  domain.RequirementViolated,
		},
		{
			name:  "no trigger",
			claim: domain.ClaimRequest{Category: "Motor", ClaimText: "Hail damage to the roof."},
			rule:  "police-report",
			want:  domain.RequirementNotApplicable,
		},
		{
			name:  "other category",
			claim: domain.ClaimRequest{Category: "Medical", ClaimText: "Collision injuries treated."},
			rule:  "police-report",
			want:  domain.RequirementNotApplicable,
		},
		{
			name:  "unknown category",
			claim: domain.ClaimRequest{ClaimText: "Collision on the highway."},
			rule:  "police-report",
			want:  domain.RequirementNotApplicable,
		},
		{
			name:  "amount below threshold",
			claim: domain.ClaimRequest{Category: "Medical", ClaimText: "Clinic visit.", Amount: 2000},
			rule:  "vat-invoice",
			want:  domain.RequirementNotApplicable,
		},
		{
			name:  "amount above threshold without invoice",
			claim: domain.ClaimRequest{Category: "Medical", ClaimText: "Surgery.", Amount: 2500},
			rule:  "vat-invoice",
			want:  domain.RequirementViolated,
		},
		{
			name:  "amount above threshold with invoice",
			claim: domain.ClaimRequest{Category: "Medical", ClaimText: "Surgery, tax invoice enclosed.", Amount: 2500},
			rule:  "vat-invoice",
			want:  domain.RequirementSatisfied,
		},
	}

	e := NewComplianceEvaluator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.claim.SubmissionDate = "2024-06-01"
			results, err := e.Evaluate(context.Background(), rules, tt.claim, nil, tt.hist)
			require.NoError(t, err)
			require.Len(t, results, len(rules.Rules))
			assert.Equal(t, tt.want, resultFor(t, results, tt.rule).Status)
		})
	}
}

func TestComplianceEvaluator_SubmissionWindow(t *testing.T) {
	rules := domain.DefaultRuleSet()
	tests := []struct {
		incident string
		want     domain.RequirementStatus
	}{
		{"", domain.RequirementNotApplicable},
		{"2024-05-20", domain.RequirementSatisfied},
		{"2024-05-02", domain.RequirementSatisfied},
		{"2024-04-01", domain.RequirementViolated},
		{"2024-06-10", domain.RequirementViolated},
		{"not-a-date", domain.RequirementNotApplicable},
	}
	e := NewComplianceEvaluator(nil)
	for _, tt := range tests {
		t.Run(tt.incident, func(t *testing.T) {
			claim := domain.ClaimRequest{SubmissionDate: "2024-06-01", IncidentDate: tt.incident, ClaimText: "x"}
			results, err := e.Evaluate(context.Background(), rules, claim, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resultFor(t, results, "submission-window").Status)
		})
	}
}

func TestComplianceEvaluator_SubmissionLimit(t *testing.T) {
	rules := domain.DefaultRuleSet()
	claim := domain.ClaimRequest{SubmissionDate: "2024-06-01", ClaimText: "x"}
	e := NewComplianceEvaluator(nil)

	results, err := e.Evaluate(context.Background(), rules, claim, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RequirementNotApplicable, resultFor(t, results, "submission-limit").Status)

	two := &domain.HistorySummary{PriorClaims: 3, PriorDates: []string{"2023-01-10", "2024-01-10", "2024-03-01"}}
	results, err = e.Evaluate(context.Background(), rules, claim, nil, two)
	require.NoError(t, err)
	assert.Equal(t, domain.RequirementSatisfied, resultFor(t, results, "submission-limit").Status,
		"2023-01-10 falls outside the lookback")

	three := &domain.HistorySummary{PriorClaims: 3, PriorDates: []string{"2023-09-10", "2024-01-10", "2024-03-01"}}
	results, err = e.Evaluate(context.Background(), rules, claim, nil, three)
	require.NoError(t, err)
	got := resultFor(t, results, "submission-limit")
	assert.Equal(t, domain.RequirementViolated, got.Status)
	assert.Contains(t, got.Evidence, "4 claims")
}

func TestComplianceEvaluator_LLMJudgment(t *testing.T) {
	rules := domain.DefaultRuleSet()
	claim := domain.ClaimRequest{
		Category: "Motor", SubmissionDate: "2024-06-01",
		ClaimText: "Collision at a junction, police report attached.",
	}
	var messages []driven.ChatMessage
	llm := &mockLLM{chat: func(m []driven.ChatMessage) (string, error) {
		messages = m
		return "- VIOLATION police-report: report number looks forged\n" +
			"VIOLATION police-report: repeated\n" +
			"violation garage-estimate: no estimate attached\n" +
			"Overall the claim is fine otherwise.", nil
	}}

	results, err := NewComplianceEvaluator(llm).Evaluate(context.Background(), rules, claim, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, len(rules.Rules)+2)

	judged := results[len(rules.Rules):]
	assert.Equal(t, "police-report", judged[0].RuleID)
	assert.Equal(t, sourceLLM, judged[0].Source)
	assert.Equal(t, domain.RequirementViolated, judged[0].Status)
	assert.False(t, judged[0].Hard, "the deterministic check found the report")
	assert.Equal(t, "report number looks forged", judged[0].Evidence)

	assert.Equal(t, "garage-estimate", judged[1].RuleID)
	assert.False(t, judged[1].Hard)

	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[1].Content, "police-report")
	assert.Contains(t, messages[1].Content, "Collision at a junction")
}

func TestComplianceEvaluator_LLMHardWhenRuleUnsatisfied(t *testing.T) {
	rules := domain.DefaultRuleSet()
	claim := domain.ClaimRequest{Category: "Motor", SubmissionDate: "2024-06-01", ClaimText: "Hail damage."}
	llm := &mockLLM{chat: func([]driven.ChatMessage) (string, error) {
		return "VIOLATION police-report: the photos show a collision", nil
	}}

	results, err := NewComplianceEvaluator(llm).Evaluate(context.Background(), rules, claim, nil, nil)
	require.NoError(t, err)
	last := results[len(results)-1]
	assert.True(t, last.IsHardViolation())
}

func TestComplianceEvaluator_LLMErrors(t *testing.T) {
	rules := domain.DefaultRuleSet()
	claim := domain.ClaimRequest{Category: "Motor", SubmissionDate: "2024-06-01", ClaimText: "Hail damage."}

	t.Run("transient", func(t *testing.T) {
		llm := &mockLLM{chat: func([]driven.ChatMessage) (string, error) {
			return "", fmt.Errorf("chat: %w", domain.ErrTransientIO)
		}}
		_, err := NewComplianceEvaluator(llm).Evaluate(context.Background(), rules, claim, nil, nil)
		assert.ErrorIs(t, err, domain.ErrTransientIO)
	})

	t.Run("permanent keeps rule results", func(t *testing.T) {
		llm := &mockLLM{chat: func([]driven.ChatMessage) (string, error) {
			return "", errors.New("context length exceeded")
		}}
		results, err := NewComplianceEvaluator(llm).Evaluate(context.Background(), rules, claim, nil, nil)
		require.NoError(t, err)
		assert.Len(t, results, len(rules.Rules))
	})
}

func TestDecide(t *testing.T) {
	clauses := []domain.QueryHit{{ChunkID: "a"}, {ChunkID: "b"}}
	hardViolation := []domain.RequirementResult{
		{RuleID: "vat-invoice", Description: "VAT invoice needed", Hard: true,
			Status: domain.RequirementViolated, Evidence: "claim does not mention vat invoice"},
		{RuleID: "police-report", Description: "Police report needed", Hard: true,
			Status: domain.RequirementViolated, Evidence: "claim states no police report"},
	}
	softViolation := []domain.RequirementResult{
		{RuleID: "garage-estimate", Status: domain.RequirementViolated, Source: sourceLLM},
	}

	tests := []struct {
		name     string
		clauses  []domain.QueryHit
		history  *domain.HistorySummary
		reqs     []domain.RequirementResult
		decision domain.Decision
		contains string
		risk     int
	}{
		{
			name:     "covered and clean",
			clauses:  clauses,
			history:  &domain.HistorySummary{},
			decision: domain.DecisionApproved,
			contains: "covered by 2 policy clauses",
		},
		{
			name:     "nil history approves",
			clauses:  clauses,
			decision: domain.DecisionApproved,
		},
		{
			name:     "hard violation",
			clauses:  clauses,
			reqs:     hardViolation,
			decision: domain.DecisionDenied,
			contains: "SOP violation: Police report needed (claim states no police report); VAT invoice needed",
			risk:     RiskViolation,
		},
		{
			name:     "soft violation does not deny",
			clauses:  clauses,
			reqs:     softViolation,
			decision: domain.DecisionApproved,
			risk:     RiskViolation,
		},
		{
			name:     "no coverage",
			decision: domain.DecisionDenied,
			contains: "insufficient evidence: no policy coverage found",
		},
		{
			name:     "suspicious history",
			clauses:  clauses,
			history:  &domain.HistorySummary{Suspicious: true},
			decision: domain.DecisionDenied,
			contains: "claim history contradicts approval",
			risk:     RiskSuspiciousHistory,
		},
		{
			name:     "flags and violation",
			history:  &domain.HistorySummary{Suspicious: true, Flags: []string{"late filings"}},
			reqs:     hardViolation,
			decision: domain.DecisionDenied,
			contains: "SOP violation",
			risk:     RiskSuspiciousHistory + RiskViolation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Decide(tt.clauses, tt.history, tt.reqs)
			assert.Equal(t, tt.decision, v.Decision)
			assert.Contains(t, v.Justification, tt.contains)
			assert.Equal(t, tt.risk, v.RiskScore)
			assert.False(t, v.Failure)
		})
	}
}

func TestNarrate(t *testing.T) {
	v := domain.Verdict{Decision: domain.DecisionApproved, Justification: "covered by 1 policy clauses"}

	text, err := narrate(context.Background(), nil, nil, v, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, v.Justification, text)

	llm := &mockLLM{generate: func(string) (string, error) { return "  The collision is covered.  ", nil }}
	text, err = narrate(context.Background(), llm, nil, v, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "covered by 1 policy clauses. The collision is covered.", text)
	assert.Contains(t, llm.prompts[0], string(domain.DecisionApproved))

	failing := &mockLLM{generate: func(string) (string, error) { return "", errors.New("bad model") }}
	text, err = narrate(context.Background(), failing, nil, v, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, v.Justification, text)

	transient := &mockLLM{generate: func(string) (string, error) { return "", domain.ErrTransientIO }}
	_, err = narrate(context.Background(), transient, nil, v, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrTransientIO)
}
