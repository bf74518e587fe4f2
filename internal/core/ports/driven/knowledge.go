package driven

import (
	"context"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// KnowledgeStore holds embedding records in two isolated collections.
//
// Implementations enforce the collection boundary themselves: a write whose
// metadata names another collection is rejected, and a query never returns a
// record of another collection, whatever the filter says.
type KnowledgeStore interface {
	// Upsert stores a chunk vector. It is idempotent on chunk.ID.
	// Returns domain.ErrCrossCollectionWrite if meta.Collection != collection.
	Upsert(ctx context.Context, collection domain.Collection, chunk domain.Chunk,
		embedding []float32, meta domain.RecordMetadata) error

	// Query returns at most topK hits from collection, highest similarity
	// first, with ties broken by insertion order.
	Query(ctx context.Context, collection domain.Collection, vector []float32,
		topK int, filter domain.MetadataFilter) ([]domain.QueryHit, error)

	// List returns every record of collection that passes filter, in
	// insertion order. Hits carry no score. History checks use it so a
	// count never depends on similarity rank.
	List(ctx context.Context, collection domain.Collection,
		filter domain.MetadataFilter) ([]domain.QueryHit, error)

	// Count returns the number of records in collection.
	Count(ctx context.Context, collection domain.Collection) (int, error)

	// Close releases resources. Later calls fail with domain.ErrStoreUnavailable.
	Close() error
}
