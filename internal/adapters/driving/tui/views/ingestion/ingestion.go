// Package ingestion shows the landing-area watcher state.
package ingestion

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

// RefreshInterval is how often the view polls the watcher while active.
const RefreshInterval = 2 * time.Second

type tickMsg struct{ gen int }

// View shows counters and in-flight files.
type View struct {
	styles    *styles.Styles
	ingestion driving.IngestionService

	status *domain.IngestionStatus
	gen    int
	width  int
	height int
	ready  bool
}

// NewView creates a new ingestion view. A nil service renders a notice.
func NewView(s *styles.Styles, ingestion driving.IngestionService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, ingestion: ingestion}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Activate loads a snapshot and starts polling. Earlier poll loops stop
// because their generation no longer matches.
func (v *View) Activate() tea.Cmd {
	v.gen++
	return tea.Batch(v.load(), v.tick())
}

// Deactivate stops polling.
func (v *View) Deactivate() {
	v.gen++
}

func (v *View) load() tea.Cmd {
	svc := v.ingestion
	if svc == nil {
		return nil
	}
	return func() tea.Msg {
		return messages.IngestionLoaded{Status: svc.Status()}
	}
}

func (v *View) tick() tea.Cmd {
	if v.ingestion == nil {
		return nil
	}
	gen := v.gen
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

// Update handles messages for the ingestion view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case tickMsg:
		if msg.gen != v.gen {
			return v, nil
		}
		return v, tea.Batch(v.load(), v.tick())

	case messages.IngestionLoaded:
		status := msg.Status
		v.status = &status

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return v, v.load()
		case "esc":
			v.Deactivate()
			return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
		case "q", "ctrl+c":
			return v, tea.Quit
		}
	}
	return v, nil
}

// View renders the watcher snapshot.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Ingestion"))
	b.WriteString("\n\n")

	switch {
	case v.ingestion == nil:
		b.WriteString(v.styles.Muted.Render("Ingestion is not running in this process."))
		b.WriteString("\n")
	case v.status == nil:
		b.WriteString(v.styles.Muted.Render("Loading..."))
		b.WriteString("\n")
	default:
		st := v.status
		b.WriteString(fmt.Sprintf("Archived: %d  Failed: %d  Skipped: %d\n\n", st.Archived, st.Failed, st.Skipped))
		if len(st.Active) == 0 {
			b.WriteString(v.styles.Muted.Render("No files in flight."))
			b.WriteString("\n")
		}
		for _, f := range st.Active {
			line := fmt.Sprintf("%-14s %-7s %s", v.styles.FileState(f.State), f.Kind, filepath.Base(f.Path))
			if f.Attempts > 0 {
				line += fmt.Sprintf("  attempts %d", f.Attempts)
			}
			b.WriteString(line)
			b.WriteString("\n")
			if f.LastError != "" {
				b.WriteString(v.styles.Error.Render("    " + f.LastError))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[r] Refresh  [Esc] Back"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Status returns the last snapshot, if any.
func (v *View) Status() *domain.IngestionStatus {
	return v.status
}
