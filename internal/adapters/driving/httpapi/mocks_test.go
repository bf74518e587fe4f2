package httpapi

import (
	"context"
	"io"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

type mockAuditService struct {
	result   *domain.InvestigationResult
	entry    *domain.AuditEntry
	entries  []domain.AuditEntry
	progress *domain.Progress
	err      error

	lastClaim  domain.ClaimRequest
	lastID     string
	lastClient string
	lastLimit  int
}

func (m *mockAuditService) Evaluate(_ context.Context, claim domain.ClaimRequest) (*domain.InvestigationResult, error) {
	m.lastClaim = claim
	return m.result, m.err
}

func (m *mockAuditService) Progress(_ context.Context, id string) (*domain.Progress, error) {
	m.lastID = id
	return m.progress, m.err
}

func (m *mockAuditService) AuditEntry(_ context.Context, id string) (*domain.AuditEntry, error) {
	m.lastID = id
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

type mockUpload struct {
	path string
	err  error

	category string
	clientID string
	subType  string
	filename string
	body     string
}

func (m *mockUpload) UploadPolicy(_ context.Context, category, filename string, r io.Reader) (string, error) {
	m.category = category
	return m.read(filename, r)
}

func (m *mockUpload) UploadClaim(_ context.Context, clientID, submissionType, filename string, r io.Reader) (string, error) {
	m.clientID = clientID
	m.subType = submissionType
	return m.read(filename, r)
}

func (m *mockUpload) read(filename string, r io.Reader) (string, error) {
	m.filename = filename
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.body = string(data)
	return m.path, m.err
}

type mockAdvisor struct {
	answer *driving.PolicyAnswer
	err    error

	question string
	category string
}

func (m *mockAdvisor) Ask(_ context.Context, question, category string) (*driving.PolicyAnswer, error) {
	m.question = question
	m.category = category
	return m.answer, m.err
}

type mockIngestion struct {
	status domain.IngestionStatus
}

func (m *mockIngestion) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockIngestion) Tick(_ context.Context) error { return nil }

func (m *mockIngestion) Status() domain.IngestionStatus { return m.status }
