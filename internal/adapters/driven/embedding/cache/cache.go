// Package cache memoises embeddings in a bounded LRU. Claim evaluations
// re-embed the same policy questions often, and ingestion retries re-embed
// the same chunks.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultSize is the number of cached vectors.
const DefaultSize = 4096

// EmbeddingService decorates another EmbeddingService with an LRU cache.
type EmbeddingService struct {
	next  driven.EmbeddingService
	cache *lru.Cache[string, []float32]
}

// New wraps next with a cache of the given size.
func New(next driven.EmbeddingService, size int) (*EmbeddingService, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &EmbeddingService{next: next, cache: c}, nil
}

func (s *EmbeddingService) key(text string) string {
	return s.next.ModelName() + "\x00" + text
}

// Embed returns a cached vector or delegates.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.cache.Get(s.key(text)); ok {
		return v, nil
	}
	v, err := s.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Add(s.key(text), v)
	return v, nil
}

// EmbedBatch only sends cache misses to the wrapped service.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if v, ok := s.cache.Get(s.key(text)); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := s.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vectors), len(missing))
	}
	for j, v := range vectors {
		out[slots[j]] = v
		s.cache.Add(s.key(missing[j]), v)
	}
	return out, nil
}

// Dimensions implements driven.EmbeddingService.
func (s *EmbeddingService) Dimensions() int { return s.next.Dimensions() }

// ModelName implements driven.EmbeddingService.
func (s *EmbeddingService) ModelName() string { return s.next.ModelName() }

// Ping implements driven.EmbeddingService.
func (s *EmbeddingService) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

// Close purges the cache and closes the wrapped service.
func (s *EmbeddingService) Close() error {
	s.cache.Purge()
	return s.next.Close()
}

// Len reports the number of cached vectors.
func (s *EmbeddingService) Len() int { return s.cache.Len() }
