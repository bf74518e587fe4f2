// Package input provides text input components for the TUI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/styles"
)

// QuestionInput wraps a bubbles textinput with a label.
type QuestionInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	label     string
}

// NewQuestionInput creates a focused input with the given label.
func NewQuestionInput(s *styles.Styles, label, placeholder string) *QuestionInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 60

	return &QuestionInput{
		textinput: ti,
		styles:    s,
		label:     label,
	}
}

// Init initialises the input.
func (q *QuestionInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (q *QuestionInput) Update(msg tea.Msg) (*QuestionInput, tea.Cmd) {
	var cmd tea.Cmd
	q.textinput, cmd = q.textinput.Update(msg)
	return q, cmd
}

// View renders the input.
func (q *QuestionInput) View() string {
	label := q.styles.Title.Render(q.label + " ")
	field := q.styles.InputField.Render(q.textinput.View())
	//nolint:misspell // lipgloss.Center is the correct constant from the library
	return lipgloss.JoinHorizontal(lipgloss.Center, label, field)
}

// Value returns the current input value.
func (q *QuestionInput) Value() string {
	return q.textinput.Value()
}

// SetValue sets the input value.
func (q *QuestionInput) SetValue(v string) {
	q.textinput.SetValue(v)
}

// Reset clears the input.
func (q *QuestionInput) Reset() {
	q.textinput.Reset()
}

// SetWidth sets the visible field width.
func (q *QuestionInput) SetWidth(width int) {
	if width > 10 {
		q.textinput.Width = width - 10
	}
}
