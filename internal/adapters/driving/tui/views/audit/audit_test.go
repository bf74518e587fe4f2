package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

type mockAudit struct {
	entries   []domain.AuditEntry
	err       error
	verified  int
	verifyErr error
	limit     int
}

func (m *mockAudit) Evaluate(context.Context, domain.ClaimRequest) (*domain.InvestigationResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAudit) Progress(context.Context, string) (*domain.Progress, error) {
	return nil, domain.ErrNotFound
}

func (m *mockAudit) AuditEntry(context.Context, string) (*domain.AuditEntry, error) {
	return nil, domain.ErrNotFound
}

func (m *mockAudit) History(_ context.Context, _ string, limit int) ([]domain.AuditEntry, error) {
	m.limit = limit
	return m.entries, m.err
}

func (m *mockAudit) VerifyTrail(context.Context) (int, error) {
	return m.verified, m.verifyErr
}

func fixtures() []domain.AuditEntry {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return []domain.AuditEntry{
		{InvestigationID: "inv-1", ClientID: "C-1", ClaimRef: "CLM-1", RecordedAt: at,
			Verdict: domain.Verdict{Decision: domain.DecisionApproved, RiskScore: 10}},
		{InvestigationID: "inv-2", ClientID: "C-2", ClaimRef: "CLM-2", RecordedAt: at,
			Verdict: domain.Verdict{Decision: domain.DecisionDenied, RiskScore: 80}},
	}
}

func loaded(t *testing.T, m *mockAudit) *View {
	t.Helper()
	v := NewView(nil, m)
	v.SetDimensions(120, 40)
	cmd := v.Load()
	require.NotNil(t, cmd)
	v, _ = v.Update(cmd())
	return v
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_Load(t *testing.T) {
	m := &mockAudit{entries: fixtures()}
	v := loaded(t, m)

	assert.Equal(t, PageSize, m.limit)
	assert.Len(t, v.Entries(), 2)
	out := v.View()
	assert.Contains(t, out, "Audit Trail")
	assert.Contains(t, out, "inv-1")
	assert.Contains(t, out, "DENIED")
}

func TestView_LoadError(t *testing.T) {
	v := loaded(t, &mockAudit{err: domain.ErrStoreUnavailable})

	require.Error(t, v.Err())
	assert.Contains(t, v.View(), "Error:")
}

func TestView_Empty(t *testing.T) {
	v := loaded(t, &mockAudit{})
	assert.Contains(t, v.View(), "No investigations recorded.")
}

func TestView_NilService(t *testing.T) {
	v := NewView(nil, nil)
	v, _ = v.Update(v.Load()())
	assert.Error(t, v.Err())
}

func TestView_NavigateAndSelect(t *testing.T) {
	v := loaded(t, &mockAudit{entries: fixtures()})

	v, _ = v.Update(key("j"))
	assert.Equal(t, 1, v.Selected())
	v, _ = v.Update(key("j"))
	assert.Equal(t, 1, v.Selected())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	sel, ok := cmd().(messages.AuditSelected)
	require.True(t, ok)
	assert.Equal(t, "inv-2", sel.Entry.InvestigationID)
}

func TestView_Verify(t *testing.T) {
	v := loaded(t, &mockAudit{entries: fixtures(), verified: 2})

	_, cmd := v.Update(key("v"))
	require.NotNil(t, cmd)
	v, _ = v.Update(cmd())

	assert.Contains(t, v.View(), "Audit trail intact: 2 entries verified.")
}

func TestView_VerifyTampered(t *testing.T) {
	v := loaded(t, &mockAudit{entries: fixtures(), verifyErr: errors.New("digest mismatch at inv-2")})

	_, cmd := v.Update(key("v"))
	v, _ = v.Update(cmd())

	require.Error(t, v.Err())
	assert.Contains(t, v.View(), "digest mismatch")
}

func TestView_EscReturnsToMenu(t *testing.T) {
	v := loaded(t, &mockAudit{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}
