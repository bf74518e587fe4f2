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

const historyExcerptLen = 400

// selectPolicy retrieves the policy clauses relevant to the claim, filtered
// by the claim's category when one is given or can be detected.
func (g *AuditGraph) selectPolicy(ctx context.Context, run *investigationRun) (domain.Finding, error) {
	claim := &run.inv.Claim
	if claim.Category == "" && g.classifier != nil {
		c, err := g.classifier.Classify(ctx, claim.ClaimText, domain.ClassificationHint{Kind: domain.DocumentKindClaim})
		switch {
		case err == nil:
			claim.Category = c.Category
		case domain.IsRetryable(err):
			return domain.Finding{}, err
		default:
			auditLog.Debug("Investigation %s: category not detected: %v", run.inv.ID, err)
		}
	}

	hits, err := g.kb.Search(ctx, domain.CollectionPolicy, claim.ClaimText, g.settings.PolicyTopK,
		domain.MetadataFilter{Category: claim.Category})
	if err != nil {
		return domain.Finding{}, fmt.Errorf("select policy clauses: %w", err)
	}

	scope := claim.Category
	if scope == "" {
		scope = "any category"
	}
	return domain.Finding{
		Summary: fmt.Sprintf("%d policy clauses retrieved for %s", len(hits), scope),
		Clauses: hits,
	}, nil
}

// investigateHistory summarises the client's prior claims inside the
// history window that ends the day before submission.
func (g *AuditGraph) investigateHistory(ctx context.Context, run *investigationRun) (domain.Finding, error) {
	claim := run.inv.Claim
	submitted, err := time.Parse(domain.SubmissionDateLayout, claim.SubmissionDate)
	if err != nil {
		return domain.Finding{}, domain.NewValidationError("submission_date", "expected YYYY-MM-DD")
	}
	filter := domain.MetadataFilter{
		ClientID:      claim.ClientID,
		SubmittedFrom: submitted.AddDate(0, 0, -g.settings.HistoryWindowDays).Format(domain.SubmissionDateLayout),
		SubmittedTo:   submitted.AddDate(0, 0, -1).Format(domain.SubmissionDateLayout),
	}

	// Counts and flags cover every prior record in the window. The ranked
	// search only picks excerpts for the LLM.
	records, err := g.kb.Records(ctx, domain.CollectionClaims, filter)
	if err != nil {
		return domain.Finding{}, fmt.Errorf("list claim history: %w", err)
	}

	summary := summariseHistory(records, run.rules)
	summary.Pattern = fmt.Sprintf("%d prior claims between %s and %s", summary.PriorClaims,
		filter.SubmittedFrom, filter.SubmittedTo)

	if g.llm != nil && summary.PriorClaims > 0 {
		hits, err := g.kb.Search(ctx, domain.CollectionClaims, claim.ClaimText, g.settings.HistoryTopK, filter)
		if err != nil {
			return domain.Finding{}, fmt.Errorf("search claim history: %w", err)
		}
		if err := g.analyseHistory(ctx, claim.ClientID, hits, &summary); err != nil {
			if errors.Is(err, domain.ErrTransientIO) {
				return domain.Finding{}, err
			}
			auditLog.Warn("history analysis skipped for %s: %v", run.inv.ID, err)
		}
	}

	return domain.Finding{
		Summary: summary.Pattern,
		History: &summary,
	}, nil
}

// summariseHistory groups records by source document and flags required
// documents recorded as missing in earlier claims.
func summariseHistory(hits []domain.QueryHit, rules domain.RuleSet) domain.HistorySummary {
	dates := make(map[string]string)
	var flags []string
	flagged := make(map[string]bool)
	for _, h := range hits {
		dates[h.Metadata.SourceDocumentID] = h.Metadata.SubmissionDate
		text := strings.ToLower(h.Content)
		for _, rule := range rules.Rules {
			if rule.Kind != domain.RuleKindRequiredDocument {
				continue
			}
			if marker := firstContained(text, rule.MissingMarkers); marker != "" && !flagged[marker] {
				flagged[marker] = true
				flags = append(flags, marker)
			}
		}
	}

	priorDates := make([]string, 0, len(dates))
	for _, d := range dates {
		priorDates = append(priorDates, d)
	}
	sort.Strings(priorDates)

	return domain.HistorySummary{
		PriorClaims: len(dates),
		PriorDates:  priorDates,
		Flags:       flags,
	}
}

func (g *AuditGraph) analyseHistory(ctx context.Context, clientID string, hits []domain.QueryHit,
	summary *domain.HistorySummary) error {
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "- %s: %s\n", h.Metadata.SubmissionDate, truncate(strings.TrimSpace(h.Content), historyExcerptLen))
	}
	prompt := fmt.Sprintf(loadPrompt(g.prompts, driven.PromptHistoryAnalysis), clientID, b.String())
	reply, err := g.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 256})
	if err != nil {
		return fmt.Errorf("history analysis: %w", err)
	}

	fields := replyFields(reply)
	summary.Suspicious = strings.HasPrefix(strings.ToLower(fields["SUSPICIOUS"]), "y")
	if p := fields["PATTERN"]; p != "" {
		summary.Pattern = p
	}
	for _, f := range strings.Split(fields["FLAGS"], ";") {
		f = strings.TrimSpace(f)
		if f == "" || strings.EqualFold(f, "none") || containsFold(summary.Flags, f) {
			continue
		}
		summary.Flags = append(summary.Flags, f)
	}
	return nil
}

func (g *AuditGraph) evaluateCompliance(ctx context.Context, run *investigationRun) (domain.Finding, error) {
	inv := run.inv
	results, err := g.compliance.Evaluate(ctx, run.rules, inv.Claim, inv.Clauses(), inv.History())
	if err != nil {
		return domain.Finding{}, err
	}
	var satisfied, broken int
	for _, r := range results {
		switch r.Status {
		case domain.RequirementSatisfied:
			satisfied++
		case domain.RequirementViolated:
			broken++
		}
	}
	return domain.Finding{
		Summary:      fmt.Sprintf("%d requirements satisfied, %d violated (rules %s)", satisfied, broken, run.rules.Version),
		Requirements: results,
	}, nil
}

func (g *AuditGraph) synthesise(ctx context.Context, run *investigationRun) (domain.Finding, error) {
	inv := run.inv
	verdict := Decide(inv.Clauses(), inv.History(), inv.Requirements())
	justification, err := narrate(ctx, g.llm, g.prompts, verdict, inv.Clauses(), inv.History(), inv.Requirements())
	if err != nil {
		return domain.Finding{}, err
	}
	verdict.Justification = justification
	return domain.Finding{
		Summary: fmt.Sprintf("%s with risk score %d", verdict.Decision, verdict.RiskScore),
		Verdict: &verdict,
	}, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
