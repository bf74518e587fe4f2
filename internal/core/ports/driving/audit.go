package driving

import (
	"context"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// AuditService runs claim investigations and exposes their records.
type AuditService interface {
	// Evaluate runs one investigation to completion.
	// Validation failures return a *domain.ValidationError and no investigation.
	// A stage failure still archives a failure verdict; the result is returned
	// together with the stage error.
	Evaluate(ctx context.Context, claim domain.ClaimRequest) (*domain.InvestigationResult, error)

	// Progress returns the current stage and partial findings of an investigation.
	Progress(ctx context.Context, investigationID string) (*domain.Progress, error)

	// AuditEntry returns the archived record of an investigation.
	AuditEntry(ctx context.Context, investigationID string) (*domain.AuditEntry, error)

	// History lists archived records, optionally for one client.
	History(ctx context.Context, clientID string, limit int) ([]domain.AuditEntry, error)

	// VerifyTrail checks the audit digest chain and returns the entry count.
	VerifyTrail(ctx context.Context) (int, error)
}

// PolicyAdvisor answers questions from the policy collection only.
type PolicyAdvisor interface {
	// Ask returns an answer and the clauses it was drawn from.
	Ask(ctx context.Context, question, category string) (*PolicyAnswer, error)
}

// PolicyAnswer is a grounded answer to a policy question.
type PolicyAnswer struct {
	Answer  string            `json:"answer"`
	Clauses []domain.QueryHit `json:"clauses"`
}
