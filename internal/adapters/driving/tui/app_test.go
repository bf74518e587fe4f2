package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

type mockAudit struct {
	entries []domain.AuditEntry
}

func (m *mockAudit) Evaluate(context.Context, domain.ClaimRequest) (*domain.InvestigationResult, error) {
	return nil, domain.ErrNotFound
}

func (m *mockAudit) Progress(context.Context, string) (*domain.Progress, error) {
	return nil, domain.ErrNotFound
}

func (m *mockAudit) AuditEntry(context.Context, string) (*domain.AuditEntry, error) {
	return nil, domain.ErrNotFound
}

func (m *mockAudit) History(context.Context, string, int) ([]domain.AuditEntry, error) {
	return m.entries, nil
}

func (m *mockAudit) VerifyTrail(context.Context) (int, error) {
	return len(m.entries), nil
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(&Ports{Audit: &mockAudit{entries: []domain.AuditEntry{
		{InvestigationID: "inv-1", ClientID: "C-1", Verdict: domain.Verdict{Decision: domain.DecisionApproved}},
	}}})
	require.NoError(t, err)
	app.SetDimensions(120, 40)
	return app
}

// drain runs cmd and feeds the resulting message back into the app.
func drain(app *App, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	msg := cmd()
	if _, isBatch := msg.(tea.BatchMsg); isBatch || msg == nil {
		return
	}
	_, next := app.Update(msg)
	drain(app, next)
}

func TestNewApp_RequiresAudit(t *testing.T) {
	_, err := NewApp(&Ports{})
	require.ErrorIs(t, err, ErrMissingAuditService)

	_, err = NewApp(nil)
	require.ErrorIs(t, err, ErrMissingAuditService)
}

func TestApp_NotReady(t *testing.T) {
	app, err := NewApp(&Ports{Audit: &mockAudit{}})
	require.NoError(t, err)

	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
}

func TestApp_WindowSize(t *testing.T) {
	app, err := NewApp(&Ports{Audit: &mockAudit{}})
	require.NoError(t, err)

	_, _ = app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	assert.True(t, app.Ready())
	assert.Contains(t, app.View(), "Claim Audit")
}

func TestApp_OpenAuditAndDetail(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)

	assert.Equal(t, messages.ViewAudit, app.CurrentView())
	assert.Contains(t, app.View(), "inv-1")

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)

	assert.Equal(t, messages.ViewAuditDetail, app.CurrentView())
	assert.Contains(t, app.View(), "Investigation inv-1")

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(app, cmd)
	assert.Equal(t, messages.ViewAudit, app.CurrentView())
}

func TestApp_Help(t *testing.T) {
	app := newTestApp(t)

	_, _ = app.Update(messages.ViewChanged{View: messages.ViewHelp})
	assert.Contains(t, app.View(), "Verify the digest chain")

	_, _ = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_ErrorOccurred(t *testing.T) {
	app := newTestApp(t)
	_, _ = app.Update(messages.ViewChanged{View: messages.ViewIngestion})

	_, _ = app.Update(messages.ErrorOccurred{Err: domain.ErrStoreUnavailable})

	require.ErrorIs(t, app.Err(), domain.ErrStoreUnavailable)
	assert.Contains(t, app.View(), "Error:")
}

func TestApp_CtrlCQuits(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
