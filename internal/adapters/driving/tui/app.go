package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/views/audit"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/views/auditdetail"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/views/ingestion"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/views/menu"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports *Ports
	ctx   context.Context

	styles    *styles.Styles
	statusBar *status.Bar

	menuView        *menu.View
	auditView       *audit.View
	auditDetailView *auditdetail.View
	ingestionView   *ingestion.View
	askView         *ask.View

	currentView messages.ViewType
	err         error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if ports == nil {
		return nil, fmt.Errorf("creating app: %w", ErrMissingAuditService)
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	return &App{
		ports:           ports,
		ctx:             context.Background(),
		styles:          s,
		statusBar:       status.NewBar(s, keymap.DefaultKeyMap()),
		menuView:        menu.NewView(s, ports.Advisor != nil),
		auditView:       audit.NewView(s, ports.Audit),
		auditDetailView: auditdetail.NewView(s),
		ingestionView:   ingestion.NewView(s, ports.Ingestion),
		askView:         ask.NewView(s, ports.Advisor),
		currentView:     messages.ViewMenu,
	}, nil
}

// WithContext sets the context the program runs under.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.SetWindowTitle("claimaudit")
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message router
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case messages.ViewChanged:
		return a, a.navigate(msg.View)

	case messages.AuditSelected:
		a.auditDetailView.SetEntry(msg.Entry)
		a.currentView = messages.ViewAuditDetail
		return a, nil

	case messages.AuditLoaded:
		a.setErr(msg.Err)
		if msg.Err == nil {
			a.statusBar.SetMessage(fmt.Sprintf("%d entries", len(msg.Entries)))
		}
		a.auditView, cmd = a.auditView.Update(msg)
		return a, cmd

	case messages.TrailVerified:
		a.setErr(msg.Err)
		a.auditView, cmd = a.auditView.Update(msg)
		return a, cmd

	case messages.AnswerReceived:
		a.setErr(msg.Err)
		a.askView, cmd = a.askView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.setErr(msg.Err)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.currentView == messages.ViewHelp {
			if msg.Type == tea.KeyEsc || msg.String() == "q" {
				a.currentView = messages.ViewMenu
			}
			return a, nil
		}
	}

	// Everything else, including ingestion ticks, goes to the active view
	// or to the view that owns the message.
	switch msg.(type) {
	case messages.IngestionLoaded:
		a.ingestionView, cmd = a.ingestionView.Update(msg)
		return a, cmd
	}

	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewAudit:
		a.auditView, cmd = a.auditView.Update(msg)
	case messages.ViewAuditDetail:
		a.auditDetailView, cmd = a.auditDetailView.Update(msg)
	case messages.ViewIngestion:
		a.ingestionView, cmd = a.ingestionView.Update(msg)
	case messages.ViewAsk:
		a.askView, cmd = a.askView.Update(msg)
	}
	return a, cmd
}

func (a *App) navigate(to messages.ViewType) tea.Cmd {
	if a.currentView == messages.ViewIngestion && to != messages.ViewIngestion {
		a.ingestionView.Deactivate()
	}
	a.currentView = to
	a.statusBar.Clear()
	a.err = nil

	switch to {
	case messages.ViewAudit:
		a.statusBar.SetState(status.StateAudit)
		return a.auditView.Load()
	case messages.ViewIngestion:
		return a.ingestionView.Activate()
	case messages.ViewAsk:
		return a.askView.Init()
	}
	return nil
}

func (a *App) setErr(err error) {
	a.err = err
	if err != nil {
		a.statusBar.SetState(status.StateError)
		a.statusBar.SetMessage(err.Error())
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewAudit:
		body = a.auditView.View()
	case messages.ViewAuditDetail:
		body = a.auditDetailView.View()
	case messages.ViewIngestion:
		body = a.ingestionView.View()
	case messages.ViewAsk:
		body = a.askView.View()
	case messages.ViewHelp:
		body = helpText
	default:
		return a.menuView.View()
	}
	return body + "\n" + a.statusBar.View()
}

const helpText = `Help

Navigation:
  esc         Back
  ctrl+c      Quit

Audit trail:
  j/k, ↑/↓    Navigate investigations
  enter       Show verdict and trace
  r           Reload
  v           Verify the digest chain

Ingestion:
  r           Refresh now (refreshes every 2s)

Ask policy:
  (type)      Enter a question
  enter       Ask

[esc] back to menu`

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.statusBar.SetWidth(width)
	a.menuView.SetDimensions(width, height)
	a.auditView.SetDimensions(width, height-1)
	a.auditDetailView.SetDimensions(width, height-1)
	a.ingestionView.SetDimensions(width, height-1)
	a.askView.SetDimensions(width, height-1)
}
