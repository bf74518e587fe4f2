package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// KnowledgeBase pairs the embedding service with the knowledge store, so
// callers index and search text rather than vectors.
type KnowledgeBase struct {
	store    driven.KnowledgeStore
	embedder driven.EmbeddingService
}

// NewKnowledgeBase creates a knowledge base. embedder may be nil, in which
// case every call fails with domain.ErrEmbeddingUnavailable.
func NewKnowledgeBase(store driven.KnowledgeStore, embedder driven.EmbeddingService) *KnowledgeBase {
	return &KnowledgeBase{store: store, embedder: embedder}
}

// Index embeds every chunk of doc and upserts it into doc.Collection.
// It returns the number of chunks written before the first error.
func (kb *KnowledgeBase) Index(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) (int, error) {
	if kb.embedder == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}
	if !doc.Collection.IsValid() {
		return 0, fmt.Errorf("%w: document %s has no collection", domain.ErrInvalidInput, doc.ID)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := kb.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: embedder returned %d vectors for %d chunks",
			domain.ErrTransientIO, len(vectors), len(chunks))
	}

	meta := doc.Metadata()
	for i, c := range chunks {
		if err := kb.store.Upsert(ctx, doc.Collection, c, vectors[i], meta); err != nil {
			return i, fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return len(chunks), nil
}

// Search embeds text and returns the topK nearest records of collection.
func (kb *KnowledgeBase) Search(ctx context.Context, collection domain.Collection, text string,
	topK int, filter domain.MetadataFilter) ([]domain.QueryHit, error) {
	if kb.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	vector, err := kb.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := kb.store.Query(ctx, collection, vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return hits, nil
}

// Records returns every record of collection that passes filter, unranked.
// It needs no embedding service.
func (kb *KnowledgeBase) Records(ctx context.Context, collection domain.Collection,
	filter domain.MetadataFilter) ([]domain.QueryHit, error) {
	hits, err := kb.store.List(ctx, collection, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return hits, nil
}

// Count returns the number of records in collection.
func (kb *KnowledgeBase) Count(ctx context.Context, collection domain.Collection) (int, error) {
	return kb.store.Count(ctx, collection)
}
