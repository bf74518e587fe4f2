package mcp

import (
	"context"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

// mockAuditService is a mock implementation of driving.AuditService.
type mockAuditService struct {
	result   *domain.InvestigationResult
	entry    *domain.AuditEntry
	entries  []domain.AuditEntry
	progress *domain.Progress
	err      error

	lastClaim  domain.ClaimRequest
	lastClient string
	lastLimit  int
}

func (m *mockAuditService) Evaluate(_ context.Context, claim domain.ClaimRequest) (*domain.InvestigationResult, error) {
	m.lastClaim = claim
	return m.result, m.err
}

func (m *mockAuditService) Progress(_ context.Context, _ string) (*domain.Progress, error) {
	return m.progress, m.err
}

func (m *mockAuditService) AuditEntry(_ context.Context, _ string) (*domain.AuditEntry, error) {
	return m.entry, m.err
}

func (m *mockAuditService) History(_ context.Context, clientID string, limit int) ([]domain.AuditEntry, error) {
	m.lastClient = clientID
	m.lastLimit = limit
	return m.entries, m.err
}

func (m *mockAuditService) VerifyTrail(_ context.Context) (int, error) {
	return len(m.entries), m.err
}

// mockAdvisor is a mock implementation of driving.PolicyAdvisor.
type mockAdvisor struct {
	answer *driving.PolicyAnswer
	err    error
}

func (m *mockAdvisor) Ask(_ context.Context, _, _ string) (*driving.PolicyAnswer, error) {
	return m.answer, m.err
}

// mockIngestion is a mock implementation of driving.IngestionService.
type mockIngestion struct {
	status domain.IngestionStatus
}

func (m *mockIngestion) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockIngestion) Tick(_ context.Context) error { return nil }

func (m *mockIngestion) Status() domain.IngestionStatus { return m.status }
