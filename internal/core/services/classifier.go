package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

// Ensure Classifier accepts a prompt store.
var _ driven.PromptStoreAware = (*Classifier)(nil)

const (
	classifyTopK      = 8
	classifySampleLen = 1500
)

// DefaultCategories are the policy lines offered to the LLM when a policy
// document arrives without a category folder.
func DefaultCategories() []string {
	return []string{"Motor", "Life", "Medical"}
}

// Classifier places documents into a collection and policy category.
// It only reads from the knowledge store.
type Classifier struct {
	kb            *KnowledgeBase
	llm           driven.LLMService
	prompts       driven.PromptStore
	minConfidence float64
	categories    []string
}

// NewClassifier creates a classifier. llm may be nil; claims are then
// classified by the clause vote alone.
func NewClassifier(kb *KnowledgeBase, llm driven.LLMService, minConfidence float64) *Classifier {
	return &Classifier{
		kb:            kb,
		llm:           llm,
		minConfidence: minConfidence,
		categories:    DefaultCategories(),
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (c *Classifier) SetPromptStore(store driven.PromptStore) {
	c.prompts = store
}

// SetCategories replaces the category list offered for untagged policies.
func (c *Classifier) SetCategories(categories []string) {
	if len(categories) > 0 {
		c.categories = categories
	}
}

// Classify places text. A policy with a tagged category is trusted; claims
// are voted on by their nearest policy clauses.
func (c *Classifier) Classify(ctx context.Context, text string, hint domain.ClassificationHint) (domain.Classification, error) {
	if hint.Kind == domain.DocumentKindPolicy {
		return c.classifyPolicy(ctx, text, hint)
	}
	return c.classifyClaim(ctx, text)
}

func (c *Classifier) classifyPolicy(ctx context.Context, text string, hint domain.ClassificationHint) (domain.Classification, error) {
	if category := domain.NormaliseCategory(hint.Category); category != "" {
		return domain.Classification{
			Category:   category,
			Target:     domain.CollectionPolicy,
			Confidence: 1,
			Rationale:  "category taken from the landing folder",
		}, nil
	}
	if c.llm == nil {
		return domain.Classification{}, fmt.Errorf("%w: untagged policy and no LLM configured",
			domain.ErrClassificationUncertain)
	}

	fields, err := c.ask(ctx, c.categories, "(none)", text)
	if err != nil {
		return domain.Classification{}, err
	}
	category := c.known(fields["CATEGORY"], c.categories)
	if category == "" {
		return domain.Classification{}, fmt.Errorf("%w: LLM named unknown category %q",
			domain.ErrClassificationUncertain, fields["CATEGORY"])
	}
	confidence, ok := parseConfidence(fields["CONFIDENCE"])
	if !ok || confidence < c.minConfidence {
		return domain.Classification{}, fmt.Errorf("%w: LLM confidence %q below %.2f",
			domain.ErrClassificationUncertain, fields["CONFIDENCE"], c.minConfidence)
	}
	return domain.Classification{
		Category:   category,
		Target:     domain.CollectionPolicy,
		Confidence: confidence,
		Rationale:  fields["RATIONALE"],
	}, nil
}

func (c *Classifier) classifyClaim(ctx context.Context, text string) (domain.Classification, error) {
	hits, err := c.kb.Search(ctx, domain.CollectionPolicy, truncate(text, classifySampleLen),
		classifyTopK, domain.MetadataFilter{})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("search policy clauses: %w", err)
	}
	if len(hits) == 0 {
		return domain.Classification{}, fmt.Errorf("%w: no policy clauses indexed", domain.ErrClassificationUncertain)
	}

	category, share, order := vote(hits)
	if category == "" {
		return domain.Classification{}, fmt.Errorf("%w: no clause is similar to the claim",
			domain.ErrClassificationUncertain)
	}
	if share < c.minConfidence {
		return domain.Classification{}, fmt.Errorf("%w: vote share %.2f for %s below %.2f",
			domain.ErrClassificationUncertain, share, category, c.minConfidence)
	}

	result := domain.Classification{
		Category:   category,
		Target:     domain.CollectionClaims,
		Confidence: share,
		Rationale:  fmt.Sprintf("%.0f%% of clause similarity points to %s", share*100, category),
	}
	if c.llm == nil {
		return result, nil
	}

	fields, err := c.ask(ctx, order, formatClauses(hits), text)
	if err != nil {
		return domain.Classification{}, err
	}
	if !strings.EqualFold(fields["CATEGORY"], category) {
		return domain.Classification{}, fmt.Errorf("%w: LLM says %q, clauses say %s",
			domain.ErrClassificationUncertain, fields["CATEGORY"], category)
	}
	confidence, ok := parseConfidence(fields["CONFIDENCE"])
	if !ok || confidence < c.minConfidence {
		return domain.Classification{}, fmt.Errorf("%w: LLM confidence %q below %.2f",
			domain.ErrClassificationUncertain, fields["CONFIDENCE"], c.minConfidence)
	}
	result.Confidence = min(share, confidence)
	if r := fields["RATIONALE"]; r != "" {
		result.Rationale = r
	}
	return result, nil
}

func (c *Classifier) ask(ctx context.Context, categories []string, clauses, text string) (map[string]string, error) {
	prompt := fmt.Sprintf(loadPrompt(c.prompts, driven.PromptClassify),
		strings.Join(categories, ", "), clauses, truncate(text, classifySampleLen))
	reply, err := c.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: 128})
	if err != nil {
		if errors.Is(err, domain.ErrTransientIO) {
			return nil, fmt.Errorf("classify with llm: %w", err)
		}
		return nil, fmt.Errorf("%w: llm: %v", domain.ErrClassificationUncertain, err)
	}
	logger.Debug("classifier reply: %q", reply)
	return replyFields(reply), nil
}

func (c *Classifier) known(name string, categories []string) string {
	for _, cat := range categories {
		if strings.EqualFold(strings.TrimSpace(name), cat) {
			return cat
		}
	}
	return ""
}

// vote sums non-negative similarity per category. It returns the winner, its
// share of the total and every voted category in first-seen order.
func vote(hits []domain.QueryHit) (string, float64, []string) {
	weights := make(map[string]float64)
	var order []string
	var total float64
	for _, h := range hits {
		cat := h.Metadata.Category
		if cat == "" {
			continue
		}
		if _, ok := weights[cat]; !ok {
			order = append(order, cat)
		}
		w := max(h.Score, 0)
		weights[cat] += w
		total += w
	}
	if total == 0 {
		return "", 0, order
	}
	best := ""
	for _, cat := range order {
		if best == "" || weights[cat] > weights[best] {
			best = cat
		}
	}
	return best, weights[best] / total, order
}

func parseConfidence(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if f > 1 && f <= 100 {
		f /= 100
	}
	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

func formatClauses(hits []domain.QueryHit) string {
	if len(hits) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, h.Metadata.Category, strings.TrimSpace(h.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}
