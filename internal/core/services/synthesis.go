package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// Risk score weights.
const (
	RiskSuspiciousHistory = 25
	RiskViolation         = 40
)

// Decide applies the decision policy: any hard violation denies; otherwise
// policy coverage without contradicting history approves; anything else is
// denied for insufficient evidence.
func Decide(clauses []domain.QueryHit, history *domain.HistorySummary, requirements []domain.RequirementResult) domain.Verdict {
	v := domain.Verdict{RiskScore: RiskScore(history, requirements)}

	var hard []string
	for _, r := range violated(requirements) {
		if r.IsHardViolation() {
			hard = append(hard, fmt.Sprintf("%s (%s)", r.Description, r.Evidence))
		}
	}

	switch {
	case len(hard) > 0:
		v.Decision = domain.DecisionDenied
		v.Justification = "SOP violation: " + strings.Join(hard, "; ")
	case len(clauses) > 0 && !history.Contradicts():
		v.Decision = domain.DecisionApproved
		v.Justification = fmt.Sprintf("covered by %d policy clauses with no contradicting history", len(clauses))
	default:
		v.Decision = domain.DecisionDenied
		var reasons []string
		if len(clauses) == 0 {
			reasons = append(reasons, "no policy coverage found")
		}
		if history.Contradicts() {
			reasons = append(reasons, "claim history contradicts approval")
		}
		v.Justification = "insufficient evidence: " + strings.Join(reasons, "; ")
	}
	return v
}

// RiskScore adds RiskSuspiciousHistory for a suspicious history and
// RiskViolation when any requirement is violated.
func RiskScore(history *domain.HistorySummary, requirements []domain.RequirementResult) int {
	score := 0
	if history != nil && history.Suspicious {
		score += RiskSuspiciousHistory
	}
	if len(violated(requirements)) > 0 {
		score += RiskViolation
	}
	return min(score, 100)
}

// narrate asks the LLM for a short justification. The deterministic
// justification is kept when no LLM is set or the call fails.
func narrate(ctx context.Context, llm driven.LLMService, prompts driven.PromptStore, v domain.Verdict,
	clauses []domain.QueryHit, history *domain.HistorySummary, requirements []domain.RequirementResult) (string, error) {
	if llm == nil {
		return v.Justification, nil
	}
	var evidence strings.Builder
	fmt.Fprintf(&evidence, "Rule outcome: %s\n", v.Justification)
	fmt.Fprintf(&evidence, "Policy clauses:\n%s\n", formatClauses(clauses))
	fmt.Fprintf(&evidence, "History:\n%s\n", formatHistory(history))
	for _, r := range violated(requirements) {
		fmt.Fprintf(&evidence, "Violation %s: %s\n", r.RuleID, r.Evidence)
	}

	prompt := fmt.Sprintf(loadPrompt(prompts, driven.PromptSynthesis), v.Decision, evidence.String())
	text, err := llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 256, Temperature: 0.2})
	if err != nil {
		if errors.Is(err, domain.ErrTransientIO) {
			return "", fmt.Errorf("synthesis narrative: %w", err)
		}
		auditLog.Warn("narrative skipped: %v", err)
		return v.Justification, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return v.Justification, nil
	}
	return v.Justification + ". " + text, nil
}
