// Package auditdetail renders one audit entry and its stage trace.
package auditdetail

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// View is a scrollable detail view of an audit entry.
type View struct {
	styles       *styles.Styles
	entry        *domain.AuditEntry
	lines        []string
	scrollOffset int
	width        int
	height       int
	ready        bool
}

// NewView creates a new detail view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// SetEntry replaces the displayed entry.
func (v *View) SetEntry(e domain.AuditEntry) {
	v.entry = &e
	v.scrollOffset = 0
	v.lines = v.render(e)
}

// Update handles messages for the detail view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if v.scrollOffset > 0 {
				v.scrollOffset--
			}
		case "down", "j":
			if v.scrollOffset < v.maxScroll() {
				v.scrollOffset++
			}
		case "esc":
			return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewAudit} }
		case "q", "ctrl+c":
			return v, tea.Quit
		}
	}
	return v, nil
}

func (v *View) pageRows() int {
	rows := v.height - 4
	if rows < 5 {
		rows = 5
	}
	return rows
}

func (v *View) maxScroll() int {
	return max(len(v.lines)-v.pageRows(), 0)
}

// View renders the visible part of the entry.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}
	if v.entry == nil {
		return v.styles.Muted.Render("No entry selected.")
	}

	end := min(v.scrollOffset+v.pageRows(), len(v.lines))
	var b strings.Builder
	for _, line := range v.lines[v.scrollOffset:end] {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[j/k] Scroll  [Esc] Back"))
	return b.String()
}

func (v *View) render(e domain.AuditEntry) []string {
	s := v.styles
	lines := []string{
		s.Title.Render("Investigation " + e.InvestigationID),
		"",
		fmt.Sprintf("Client:     %s", e.ClientID),
		fmt.Sprintf("Claim:      %s", e.ClaimRef),
		fmt.Sprintf("Status:     %s", e.Status),
		fmt.Sprintf("Decision:   %s", s.Decision(e.Verdict.Decision)),
		fmt.Sprintf("Risk score: %d", e.Verdict.RiskScore),
	}
	if e.Verdict.Failure {
		lines = append(lines, s.Warning.Render("Forced by a stage failure."))
	}
	if e.RuleSetVersion != "" {
		lines = append(lines, fmt.Sprintf("Rules:      %s", e.RuleSetVersion))
	}
	lines = append(lines,
		fmt.Sprintf("Recorded:   %s", e.RecordedAt.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("Digest:     %s", e.Digest),
		"",
		s.Subtitle.Render("Justification"),
	)
	lines = append(lines, strings.Split(e.Verdict.Justification, "\n")...)
	lines = append(lines, "", s.Subtitle.Render("Trace"))

	for _, f := range e.Trace {
		lines = append(lines, fmt.Sprintf("[%s] %s", f.Stage, f.Summary))
		if f.Error != "" {
			lines = append(lines, s.Error.Render("  error: "+f.Error))
		}
		for _, c := range f.Clauses {
			lines = append(lines, s.Muted.Render(fmt.Sprintf("  clause %s (%.2f)", c.Metadata.SourceDocumentID, c.Score)))
		}
		if f.History != nil {
			lines = append(lines, fmt.Sprintf("  prior claims: %d  suspicious: %t", f.History.PriorClaims, f.History.Suspicious))
		}
		for _, r := range f.Requirements {
			line := fmt.Sprintf("  %s %s (%s)", r.RuleID, r.Status, r.Source)
			if r.IsHardViolation() {
				line = s.Error.Render(line)
			}
			lines = append(lines, line)
		}
	}
	return lines
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Entry returns the displayed entry.
func (v *View) Entry() *domain.AuditEntry {
	return v.entry
}

// ScrollOffset returns the first visible line.
func (v *View) ScrollOffset() int {
	return v.scrollOffset
}
