// Package audit provides the audit trail list view for the TUI.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

// PageSize is how many recent entries the view loads.
const PageSize = 100

// View is the audit trail list view.
type View struct {
	styles *styles.Styles
	audit  driving.AuditService

	entries      []domain.AuditEntry
	selected     int
	scrollOffset int
	width        int
	height       int
	ready        bool
	loading      bool
	err          error
	verified     string
}

// NewView creates a new audit trail view.
func NewView(s *styles.Styles, audit driving.AuditService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles: s,
		audit:  audit,
	}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Load returns a command that fetches the most recent entries.
func (v *View) Load() tea.Cmd {
	v.loading = true
	v.err = nil
	audit := v.audit
	return func() tea.Msg {
		if audit == nil {
			return messages.AuditLoaded{Err: errors.New("audit service not available")}
		}
		entries, err := audit.History(context.Background(), "", PageSize)
		return messages.AuditLoaded{Entries: entries, Err: err}
	}
}

func (v *View) verify() tea.Cmd {
	audit := v.audit
	return func() tea.Msg {
		if audit == nil {
			return messages.TrailVerified{Err: errors.New("audit service not available")}
		}
		n, err := audit.VerifyTrail(context.Background())
		return messages.TrailVerified{Count: n, Err: err}
	}
}

// Update handles messages for the audit view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case messages.AuditLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.entries = msg.Entries
		v.selected = 0
		v.scrollOffset = 0

	case messages.TrailVerified:
		if msg.Err != nil {
			v.verified = ""
			v.err = msg.Err
			return v, nil
		}
		v.verified = fmt.Sprintf("Audit trail intact: %d entries verified.", msg.Count)

	case tea.KeyMsg:
		return v.handleKey(msg)
	}

	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
			v.ensureVisible()
		}
	case "down", "j":
		if v.selected < len(v.entries)-1 {
			v.selected++
			v.ensureVisible()
		}
	case "enter":
		if v.selected < len(v.entries) {
			entry := v.entries[v.selected]
			return v, func() tea.Msg { return messages.AuditSelected{Entry: entry} }
		}
	case "r":
		return v, v.Load()
	case "v":
		v.verified = ""
		return v, v.verify()
	case "esc":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case "q", "ctrl+c":
		return v, tea.Quit
	}
	return v, nil
}

func (v *View) visibleRows() int {
	rows := v.height - 10
	if rows < 3 {
		rows = 3
	}
	return rows
}

func (v *View) ensureVisible() {
	rows := v.visibleRows()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+rows {
		v.scrollOffset = v.selected - rows + 1
	}
}

// View renders the audit list.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Audit Trail"))
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading..."))
		b.WriteString("\n")
	case len(v.entries) == 0:
		b.WriteString(v.styles.Muted.Render("No investigations recorded."))
		b.WriteString("\n")
	default:
		end := min(v.scrollOffset+v.visibleRows(), len(v.entries))
		for i := v.scrollOffset; i < end; i++ {
			b.WriteString(v.renderRow(i, v.entries[i]))
			b.WriteString("\n")
		}
	}

	if v.verified != "" {
		b.WriteString("\n")
		b.WriteString(v.styles.Success.Render(v.verified))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[j/k] Navigate  [Enter] Details  [r] Refresh  [v] Verify  [Esc] Back"))
	return b.String()
}

func (v *View) renderRow(i int, e domain.AuditEntry) string {
	line := fmt.Sprintf("%s  %-12s %-14s %s  risk %3d  %s",
		e.RecordedAt.Format("2006-01-02 15:04"),
		e.ClientID, e.ClaimRef,
		v.styles.Decision(e.Verdict.Decision),
		e.Verdict.RiskScore,
		e.InvestigationID,
	)
	if i == v.selected {
		return "> " + line
	}
	return "  " + line
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Entries returns the loaded entries.
func (v *View) Entries() []domain.AuditEntry {
	return v.entries
}

// Selected returns the selected index.
func (v *View) Selected() int {
	return v.selected
}

// Err returns the last load or verification error.
func (v *View) Err() error {
	return v.err
}
