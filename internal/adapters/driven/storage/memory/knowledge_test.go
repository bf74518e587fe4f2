package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

func policyMeta(category string) domain.RecordMetadata {
	return domain.RecordMetadata{Category: category, SourceDocumentID: "p1", Collection: domain.CollectionPolicy}
}

func claimMeta(client string) domain.RecordMetadata {
	return domain.RecordMetadata{
		Category:         "Motor",
		ClientID:         client,
		SubmissionDate:   "2024-01-10",
		SourceDocumentID: "c-" + client,
		Collection:       domain.CollectionClaims,
	}
}

func TestKnowledgeStore_ContaminationInvariant(t *testing.T) {
	ctx := context.Background()
	s := NewKnowledgeStore()

	vec := []float32{1, 0, 0}
	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "p-1", Content: "policy"}, vec, policyMeta("Motor")))
	require.NoError(t, s.Upsert(ctx, domain.CollectionClaims, domain.Chunk{ID: "c-1", Content: "claim"}, vec, claimMeta("A")))

	t.Run("queries stay inside the collection", func(t *testing.T) {
		hits, err := s.Query(ctx, domain.CollectionPolicy, vec, 10, domain.MetadataFilter{})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, domain.CollectionPolicy, hits[0].Metadata.Collection)

		hits, err = s.Query(ctx, domain.CollectionClaims, vec, 10, domain.MetadataFilter{})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, domain.CollectionClaims, hits[0].Metadata.Collection)
	})

	t.Run("filters cannot reach the other collection", func(t *testing.T) {
		hits, err := s.Query(ctx, domain.CollectionPolicy, vec, 10, domain.MetadataFilter{ClientID: "A"})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("cross-collection write rejected", func(t *testing.T) {
		err := s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "c-2"}, vec, claimMeta("B"))
		assert.ErrorIs(t, err, domain.ErrCrossCollectionWrite)

		n, err := s.Count(ctx, domain.CollectionPolicy)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestKnowledgeStore_ListIgnoresRank(t *testing.T) {
	ctx := context.Background()
	s := NewKnowledgeStore()

	near := []float32{1, 0, 0}
	far := []float32{0, 1, 0}
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Upsert(ctx, domain.CollectionClaims,
			domain.Chunk{ID: fmt.Sprintf("long-%d", i), Content: "long claim"}, near, claimMeta("A")))
	}
	other := claimMeta("A")
	other.SourceDocumentID = "c-A-2"
	other.SubmissionDate = "2024-02-01"
	require.NoError(t, s.Upsert(ctx, domain.CollectionClaims, domain.Chunk{ID: "short", Content: "short claim"}, far, other))
	require.NoError(t, s.Upsert(ctx, domain.CollectionClaims, domain.Chunk{ID: "b-1", Content: "other client"}, near, claimMeta("B")))
	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "p-1", Content: "policy"}, near, policyMeta("Motor")))

	// A ranked query of the same size misses the dissimilar record.
	hits, err := s.Query(ctx, domain.CollectionClaims, near, 5, domain.MetadataFilter{ClientID: "A"})
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "short", h.ChunkID)
	}

	listed, err := s.List(ctx, domain.CollectionClaims, domain.MetadataFilter{ClientID: "A"})
	require.NoError(t, err)
	require.Len(t, listed, 6)
	assert.Equal(t, "long-0", listed[0].ChunkID)
	assert.Equal(t, "short", listed[5].ChunkID)
	for _, h := range listed {
		assert.Equal(t, domain.CollectionClaims, h.Metadata.Collection)
		assert.Zero(t, h.Score)
	}

	listed, err = s.List(ctx, domain.CollectionClaims, domain.MetadataFilter{ClientID: "A", SubmittedFrom: "2024-01-15"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "short", listed[0].ChunkID)

	require.NoError(t, s.Close())
	_, err = s.List(ctx, domain.CollectionClaims, domain.MetadataFilter{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestKnowledgeStore_IdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewKnowledgeStore()
	chunk := domain.Chunk{ID: "p-1", Content: "Third party liability"}

	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, chunk, []float32{1, 2}, policyMeta("Motor")))
	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, chunk, []float32{1, 2}, policyMeta("Motor")))

	n, err := s.Count(ctx, domain.CollectionPolicy)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestKnowledgeStore_QueryOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewKnowledgeStore()

	// tie-a and tie-b score identically; tie-a was inserted first.
	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "far"}, []float32{0, 1}, policyMeta("Motor")))
	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "tie-a"}, []float32{1, 0}, policyMeta("Motor")))
	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "tie-b"}, []float32{2, 0}, policyMeta("Motor")))
	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "mid"}, []float32{1, 1}, policyMeta("Life")))

	hits, err := s.Query(ctx, domain.CollectionPolicy, []float32{1, 0}, 3, domain.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "tie-a", hits[0].ChunkID)
	assert.Equal(t, "tie-b", hits[1].ChunkID)
	assert.Equal(t, "mid", hits[2].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	hits, err = s.Query(ctx, domain.CollectionPolicy, []float32{1, 0}, 10, domain.MetadataFilter{Category: "Life"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "mid", hits[0].ChunkID)

	hits, err = s.Query(ctx, domain.CollectionPolicy, []float32{1, 0}, 0, domain.MetadataFilter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKnowledgeStore_Validation(t *testing.T) {
	ctx := context.Background()
	s := NewKnowledgeStore()

	err := s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "x"}, nil, policyMeta("Motor"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "x"}, []float32{1, 0}, policyMeta("Motor")))
	err = s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "y"}, []float32{1, 0, 0}, policyMeta("Motor"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	unknown := domain.Collection("evaluation_audit_log")
	meta := policyMeta("Motor")
	meta.Collection = unknown
	err = s.Upsert(ctx, unknown, domain.Chunk{ID: "z"}, []float32{1, 0}, meta)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestKnowledgeStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewKnowledgeStore()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Query(ctx, domain.CollectionPolicy, []float32{1}, 1, domain.MetadataFilter{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	err = s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "x"}, []float32{1}, policyMeta("Motor"))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = s.Count(ctx, domain.CollectionClaims)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestKnowledgeStore_Journal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "knowledge", "journal.jsonl")

	s, err := OpenKnowledgeStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "p-1", Content: "v1"}, []float32{1, 0}, policyMeta("Motor")))
	require.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: "p-1", Content: "v2"}, []float32{1, 0}, policyMeta("Motor")))
	require.NoError(t, s.Upsert(ctx, domain.CollectionClaims, domain.Chunk{ID: "c-1"}, []float32{0, 1}, claimMeta("A")))
	require.NoError(t, s.Close())

	reopened, err := OpenKnowledgeStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx, domain.CollectionPolicy)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := reopened.Query(ctx, domain.CollectionPolicy, []float32{1, 0}, 1, domain.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "v2", hits[0].Content)

	n, err = reopened.Count(ctx, domain.CollectionClaims)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestKnowledgeStore_ConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	s := NewKnowledgeStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("p-%d", n)
			assert.NoError(t, s.Upsert(ctx, domain.CollectionPolicy, domain.Chunk{ID: id}, []float32{1, float32(n)}, policyMeta("Motor")))
		}(i)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("c-%d", n%10)
			assert.NoError(t, s.Upsert(ctx, domain.CollectionClaims, domain.Chunk{ID: id}, []float32{float32(n), 1}, claimMeta("A")))
		}(i)
	}
	wg.Wait()

	n, err := s.Count(ctx, domain.CollectionPolicy)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	n, err = s.Count(ctx, domain.CollectionClaims)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}
