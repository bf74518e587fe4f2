package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
)

// Ensure PolicyAdvisor implements the interface.
var _ driving.PolicyAdvisor = (*PolicyAdvisor)(nil)

// NoClausesAnswer is returned when the policy collection has nothing relevant.
const NoClausesAnswer = "No policy clauses match this question."

// PolicyAdvisor answers questions from the policy collection only.
type PolicyAdvisor struct {
	kb      *KnowledgeBase
	llm     driven.LLMService
	prompts driven.PromptStore
	topK    int
}

// NewPolicyAdvisor creates an advisor retrieving topK clauses per question.
func NewPolicyAdvisor(kb *KnowledgeBase, llm driven.LLMService, topK int) *PolicyAdvisor {
	if topK <= 0 {
		topK = domain.DefaultAppSettings().Audit.PolicyTopK
	}
	return &PolicyAdvisor{kb: kb, llm: llm, topK: topK}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (a *PolicyAdvisor) SetPromptStore(store driven.PromptStore) {
	a.prompts = store
}

// Ask retrieves policy clauses for question and has the LLM answer from them.
func (a *PolicyAdvisor) Ask(ctx context.Context, question, category string) (*driving.PolicyAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.NewValidationError("question", "must not be empty")
	}
	if a.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	hits, err := a.kb.Search(ctx, domain.CollectionPolicy, question, a.topK,
		domain.MetadataFilter{Category: domain.NormaliseCategory(category)})
	if err != nil {
		return nil, fmt.Errorf("retrieve policy clauses: %w", err)
	}
	if len(hits) == 0 {
		return &driving.PolicyAnswer{Answer: NoClausesAnswer, Clauses: []domain.QueryHit{}}, nil
	}

	prompt := fmt.Sprintf(loadPrompt(a.prompts, driven.PromptPolicyAnswer), formatClauses(hits), question)
	answer, err := a.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 512, Temperature: 0.1})
	if err != nil {
		return nil, fmt.Errorf("answer policy question: %w", err)
	}
	return &driving.PolicyAnswer{Answer: strings.TrimSpace(answer), Clauses: hits}, nil
}
