package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestQuestionInput_Typing(t *testing.T) {
	in := NewQuestionInput(nil, "Ask:", "question")

	in, _ = in.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("is hail covered")})

	assert.Equal(t, "is hail covered", in.Value())
	assert.Contains(t, in.View(), "Ask:")
}

func TestQuestionInput_Reset(t *testing.T) {
	in := NewQuestionInput(nil, "Ask:", "")
	in.SetValue("x")

	in.Reset()

	assert.Empty(t, in.Value())
}
