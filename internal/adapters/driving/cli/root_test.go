package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

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

type mockAdvisor struct {
	answer   *driving.PolicyAnswer
	err      error
	category string
}

func (m *mockAdvisor) Ask(_ context.Context, _, category string) (*driving.PolicyAnswer, error) {
	m.category = category
	return m.answer, m.err
}

type mockIngestion struct {
	status domain.IngestionStatus
	ticks  int
}

func (m *mockIngestion) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockIngestion) Tick(_ context.Context) error {
	m.ticks++
	return nil
}

func (m *mockIngestion) Status() domain.IngestionStatus { return m.status }

type mockUpload struct {
	category string
	clientID string
	subType  string
	filename string
	body     string
}

func (m *mockUpload) UploadPolicy(_ context.Context, category, filename string, r io.Reader) (string, error) {
	m.category = category
	m.filename = filename
	data, _ := io.ReadAll(r) //nolint:errcheck
	m.body = string(data)
	return "policies/" + category + "/2024-06-01_0930/" + filename, nil
}

func (m *mockUpload) UploadClaim(_ context.Context, clientID, submissionType, filename string, r io.Reader) (string, error) {
	m.clientID = clientID
	m.subType = submissionType
	m.filename = filename
	data, _ := io.ReadAll(r) //nolint:errcheck
	m.body = string(data)
	return "claims/" + clientID + "/" + submissionType + "/" + filename, nil
}

type mockSettings struct {
	settings    domain.AppSettings
	validateErr error
}

func (m *mockSettings) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettings) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettings) Validate() error { return m.validateErr }

func (m *mockSettings) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettings) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding = domain.EmbeddingSettings{Provider: p, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettings) SetLLMProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.LLM = domain.LLMSettings{Provider: p, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettings) ValidateEmbeddingConfig() error { return nil }

func (m *mockSettings) ValidateLLMConfig() error { return nil }

// testServices are the mocks installed by setupTestServices.
type testServices struct {
	audit     *mockAuditService
	advisor   *mockAdvisor
	ingestion *mockIngestion
	upload    *mockUpload
	settings  *mockSettings
}

func setupTestServices() (*testServices, func()) {
	recorded := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	ts := &testServices{
		audit: &mockAuditService{
			result: &domain.InvestigationResult{
				InvestigationID: "inv-1",
				Status:          domain.StageTerminal,
				Verdict: domain.Verdict{
					Decision:      domain.DecisionApproved,
					Justification: "Claim is covered under Section 2.",
					RiskScore:     15,
				},
			},
			entry: &domain.AuditEntry{
				InvestigationID: "inv-1",
				ClientID:        "C-1",
				ClaimRef:        "R-1",
				RuleSetVersion:  "2024.1",
				RecordedAt:      recorded,
				StartedAt:       recorded,
				Digest:          "abc123",
				Verdict:         domain.Verdict{Decision: domain.DecisionApproved, Justification: "covered"},
				Trace: []domain.Finding{
					{Stage: domain.StageTerminal, Summary: "verdict archived"},
				},
			},
			entries: []domain.AuditEntry{
				{InvestigationID: "inv-1", ClientID: "C-1", ClaimRef: "R-1", RecordedAt: recorded,
					Verdict: domain.Verdict{Decision: domain.DecisionApproved}},
				{InvestigationID: "inv-2", ClientID: "C-1", ClaimRef: "R-2", RecordedAt: recorded,
					Verdict: domain.Verdict{Decision: domain.DecisionDenied}},
			},
			progress: &domain.Progress{InvestigationID: "inv-1", Stage: domain.StageTerminal, Archived: true},
		},
		advisor: &mockAdvisor{answer: &driving.PolicyAnswer{
			Answer: "Theft is covered.",
			Clauses: []domain.QueryHit{
				{Content: "Section 4. Theft.", Score: 0.91, Metadata: domain.RecordMetadata{Category: "Motor", SourceDocumentID: "doc-7"}},
			},
		}},
		ingestion: &mockIngestion{status: domain.IngestionStatus{Archived: 4, Failed: 1}},
		upload:    &mockUpload{},
		settings:  &mockSettings{settings: domain.DefaultAppSettings()},
	}

	SetServices(Services{
		Audit:     ts.audit,
		Advisor:   ts.advisor,
		Ingestion: ts.ingestion,
		Upload:    ts.upload,
		Settings:  ts.settings,
	})

	return ts, func() { SetServices(Services{}) }
}

// execute runs rootCmd with args and returns its output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetEvaluateFlags() {
	evaluateFlags = evaluateOptions{}
	stdin = strings.NewReader("")
}
