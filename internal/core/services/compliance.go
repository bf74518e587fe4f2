package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

const (
	sourceRule = "rule"
	sourceLLM  = "llm"
)

// ComplianceEvaluator checks a claim against the SOP rule table. Every rule
// is evaluated deterministically; an LLM, when configured, may add
// violations the rules cannot see.
type ComplianceEvaluator struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewComplianceEvaluator creates an evaluator. llm may be nil.
func NewComplianceEvaluator(llm driven.LLMService) *ComplianceEvaluator {
	return &ComplianceEvaluator{llm: llm}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (e *ComplianceEvaluator) SetPromptStore(store driven.PromptStore) {
	e.prompts = store
}

// Evaluate returns one result per rule, followed by any LLM-reported violations.
func (e *ComplianceEvaluator) Evaluate(ctx context.Context, rules domain.RuleSet, claim domain.ClaimRequest,
	clauses []domain.QueryHit, history *domain.HistorySummary) ([]domain.RequirementResult, error) {
	results := make([]domain.RequirementResult, 0, len(rules.Rules))
	for _, rule := range rules.Rules {
		results = append(results, evaluateRule(rule, claim, history))
	}
	if e.llm == nil {
		return results, nil
	}

	judged, err := e.judge(ctx, rules, claim, clauses, history, results)
	if err != nil {
		if errors.Is(err, domain.ErrTransientIO) {
			return nil, err
		}
		auditLog.Warn("llm judgment skipped for %s: %v", claim.ClaimRef, err)
		return results, nil
	}
	return append(results, judged...), nil
}

func evaluateRule(rule domain.SOPRule, claim domain.ClaimRequest, history *domain.HistorySummary) domain.RequirementResult {
	result := domain.RequirementResult{
		RuleID:      rule.ID,
		Description: rule.Description,
		Hard:        rule.Hard,
		Source:      sourceRule,
		Status:      domain.RequirementNotApplicable,
	}
	if claim.Category != "" && !rule.AppliesTo(claim.Category) {
		result.Evidence = "rule does not cover " + claim.Category
		return result
	}

	switch rule.Kind {
	case domain.RuleKindRequiredDocument:
		return requiredDocument(rule, claim, history, result)
	case domain.RuleKindSubmissionWindow:
		return submissionWindow(rule, claim, result)
	case domain.RuleKindSubmissionLimit:
		return submissionLimit(rule, claim, history, result)
	}
	return result
}

func requiredDocument(rule domain.SOPRule, claim domain.ClaimRequest, history *domain.HistorySummary,
	result domain.RequirementResult) domain.RequirementResult {
	if len(rule.Categories) > 0 && claim.Category == "" {
		result.Evidence = "claim category unknown"
		return result
	}
	text := strings.ToLower(claim.ClaimText)

	if marker := firstContained(text, rule.MissingMarkers); marker != "" {
		result.Status = domain.RequirementViolated
		result.Evidence = "claim states " + marker
		return result
	}
	if history != nil {
		for _, flag := range history.Flags {
			if marker := firstContained(strings.ToLower(flag), rule.MissingMarkers); marker != "" {
				result.Status = domain.RequirementViolated
				result.Evidence = "prior claims flagged: " + flag
				return result
			}
		}
	}

	if len(rule.Triggers) > 0 && firstContained(text, rule.Triggers) == "" {
		result.Evidence = "no trigger in claim text"
		return result
	}
	if rule.MinAmount > 0 && claim.Amount <= rule.MinAmount {
		result.Evidence = fmt.Sprintf("amount %.2f does not exceed %.2f", claim.Amount, rule.MinAmount)
		return result
	}
	if phrase := firstContained(text, rule.Evidence); phrase != "" {
		result.Status = domain.RequirementSatisfied
		result.Evidence = "claim mentions " + phrase
		return result
	}
	result.Status = domain.RequirementViolated
	result.Evidence = "claim does not mention " + rule.Evidence[0]
	return result
}

func submissionWindow(rule domain.SOPRule, claim domain.ClaimRequest, result domain.RequirementResult) domain.RequirementResult {
	if claim.IncidentDate == "" {
		result.Evidence = "no incident date given"
		return result
	}
	incident, err1 := time.Parse(domain.SubmissionDateLayout, claim.IncidentDate)
	submitted, err2 := time.Parse(domain.SubmissionDateLayout, claim.SubmissionDate)
	if err1 != nil || err2 != nil {
		result.Evidence = "unparseable dates"
		return result
	}
	days := int(submitted.Sub(incident).Hours() / 24)
	switch {
	case days < 0:
		result.Status = domain.RequirementViolated
		result.Evidence = "incident date is after the submission date"
	case days > rule.MaxDays:
		result.Status = domain.RequirementViolated
		result.Evidence = fmt.Sprintf("submitted %d days after the incident, limit %d", days, rule.MaxDays)
	default:
		result.Status = domain.RequirementSatisfied
		result.Evidence = fmt.Sprintf("submitted %d days after the incident", days)
	}
	return result
}

func submissionLimit(rule domain.SOPRule, claim domain.ClaimRequest, history *domain.HistorySummary,
	result domain.RequirementResult) domain.RequirementResult {
	if history == nil {
		result.Evidence = "no history available"
		return result
	}
	submitted, err := time.Parse(domain.SubmissionDateLayout, claim.SubmissionDate)
	if err != nil {
		result.Evidence = "unparseable submission date"
		return result
	}
	from := submitted.AddDate(0, 0, -rule.LookbackDays).Format(domain.SubmissionDateLayout)
	prior := 0
	for _, d := range history.PriorDates {
		if d >= from && d <= claim.SubmissionDate {
			prior++
		}
	}
	total := prior + 1
	if total > rule.MaxClaims {
		result.Status = domain.RequirementViolated
		result.Evidence = fmt.Sprintf("%d claims within %d days, limit %d", total, rule.LookbackDays, rule.MaxClaims)
		return result
	}
	result.Status = domain.RequirementSatisfied
	result.Evidence = fmt.Sprintf("%d claims within %d days", total, rule.LookbackDays)
	return result
}

func (e *ComplianceEvaluator) judge(ctx context.Context, rules domain.RuleSet, claim domain.ClaimRequest,
	clauses []domain.QueryHit, history *domain.HistorySummary,
	deterministic []domain.RequirementResult) ([]domain.RequirementResult, error) {
	var rb strings.Builder
	for _, r := range rules.Rules {
		fmt.Fprintf(&rb, "- %s: %s\n", r.ID, r.Description)
	}
	user := fmt.Sprintf(loadPrompt(e.prompts, driven.PromptCompliance),
		strings.TrimRight(rb.String(), "\n"), formatClauses(clauses), formatHistory(history), claim.ClaimText)

	reply, err := e.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: loadPrompt(e.prompts, driven.PromptComplianceSystem)},
		{Role: "user", Content: user},
	}, driven.ChatOptions{MaxTokens: 512})
	if err != nil {
		return nil, fmt.Errorf("compliance judgment: %w", err)
	}

	status := make(map[string]domain.RequirementStatus, len(deterministic))
	for _, r := range deterministic {
		status[r.RuleID] = r.Status
	}

	var out []domain.RequirementResult
	seen := make(map[string]bool)
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-* "))
		rest, ok := cutPrefixFold(line, "VIOLATION")
		if !ok {
			continue
		}
		id, reason, _ := strings.Cut(strings.TrimSpace(rest), ":")
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		res := domain.RequirementResult{
			RuleID:      id,
			Description: "reported by compliance judgment",
			Status:      domain.RequirementViolated,
			Source:      sourceLLM,
			Evidence:    strings.TrimSpace(reason),
		}
		if rule, ok := rules.Rule(id); ok {
			res.Description = rule.Description
			res.Hard = rule.Hard && status[id] != domain.RequirementSatisfied
		}
		out = append(out, res)
	}
	return out, nil
}

func formatHistory(h *domain.HistorySummary) string {
	if h == nil {
		return "(no history)"
	}
	flags := "none"
	if len(h.Flags) > 0 {
		flags = strings.Join(h.Flags, "; ")
	}
	return fmt.Sprintf("prior claims: %d\nsuspicious: %t\npattern: %s\nflags: %s",
		h.PriorClaims, h.Suspicious, h.Pattern, flags)
}

func firstContained(text string, phrases []string) string {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, strings.ToLower(p)) {
			return p
		}
	}
	return ""
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// violated returns the violated results sorted by rule id.
func violated(results []domain.RequirementResult) []domain.RequirementResult {
	var out []domain.RequirementResult
	for _, r := range results {
		if r.Status == domain.RequirementViolated {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}
