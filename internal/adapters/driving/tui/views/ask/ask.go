// Package ask lets the user question the policy collection.
package ask

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/claimaudit/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

// View holds the question input and the last answer.
type View struct {
	styles  *styles.Styles
	advisor driving.PolicyAdvisor
	input   *input.QuestionInput

	question string
	answer   *driving.PolicyAnswer
	err      error
	asking   bool
	width    int
	height   int
	ready    bool
}

// NewView creates a new ask view.
func NewView(s *styles.Styles, advisor driving.PolicyAdvisor) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:  s,
		advisor: advisor,
		input:   input.NewQuestionInput(s, "Ask:", "What does the motor policy say about towing?"),
	}
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

func (v *View) ask(question string) tea.Cmd {
	advisor := v.advisor
	return func() tea.Msg {
		if advisor == nil {
			return messages.AnswerReceived{Question: question, Err: errors.New("policy advisor not configured")}
		}
		answer, err := advisor.Ask(context.Background(), question, "")
		return messages.AnswerReceived{Question: question, Answer: answer, Err: err}
	}
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.AnswerReceived:
		v.asking = false
		v.question = msg.Question
		v.answer = msg.Answer
		v.err = msg.Err
		return v, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc:
			return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
		case tea.KeyCtrlC:
			return v, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(v.input.Value())
			if q == "" || v.asking {
				return v, nil
			}
			v.asking = true
			v.err = nil
			v.input.Reset()
			return v, v.ask(q)
		}
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// View renders the input and the last answer.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Ask Policy"))
	b.WriteString("\n\n")
	b.WriteString(v.input.View())
	b.WriteString("\n\n")

	switch {
	case v.asking:
		b.WriteString(v.styles.Muted.Render("Thinking..."))
		b.WriteString("\n")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
	case v.answer != nil:
		b.WriteString(v.styles.Subtitle.Render(v.question))
		b.WriteString("\n\n")
		b.WriteString(v.answer.Answer)
		b.WriteString("\n")
		if len(v.answer.Clauses) > 0 {
			b.WriteString("\n")
			b.WriteString(v.styles.Subtitle.Render("Sources"))
			b.WriteString("\n")
		}
		for i, c := range v.answer.Clauses {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d] %s %s (%.2f)",
				i+1, c.Metadata.Category, c.Metadata.SourceDocumentID, c.Score)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[Enter] Ask  [Esc] Back"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.input.SetWidth(width)
}

// Answer returns the last answer.
func (v *View) Answer() *driving.PolicyAnswer {
	return v.answer
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
