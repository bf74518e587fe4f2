package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// Ensure KnowledgeStore implements the interface.
var _ driven.KnowledgeStore = (*KnowledgeStore)(nil)

// KnowledgeStore is an in-memory implementation of driven.KnowledgeStore.
// Each collection is a separate record list with its own lock, and search is
// brute-force cosine similarity. With a journal path, every upsert is appended
// to a JSON lines file that is replayed on open.
type KnowledgeStore struct {
	mu          sync.RWMutex
	collections map[domain.Collection]*collection
	closed      bool

	jmu     sync.Mutex
	journal *os.File
}

type collection struct {
	mu      sync.RWMutex
	name    domain.Collection
	records []domain.EmbeddingRecord
	index   map[string]int
	seq     int64
}

type journalEntry struct {
	Collection domain.Collection     `json:"collection"`
	ChunkID    string                `json:"chunk_id"`
	Content    string                `json:"content"`
	Vector     []float32             `json:"vector"`
	Metadata   domain.RecordMetadata `json:"metadata"`
}

// NewKnowledgeStore creates an empty, non-persistent knowledge store.
func NewKnowledgeStore() *KnowledgeStore {
	s := &KnowledgeStore{collections: make(map[domain.Collection]*collection)}
	for _, name := range domain.Collections() {
		s.collections[name] = &collection{name: name, index: make(map[string]int)}
	}
	return s
}

// OpenKnowledgeStore creates a knowledge store backed by a journal file at
// path, replaying any records it already holds.
func OpenKnowledgeStore(path string) (*KnowledgeStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	s := NewKnowledgeStore()
	if err := s.replay(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	s.journal = f
	return s, nil
}

func (s *KnowledgeStore) replay(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		var e journalEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return fmt.Errorf("journal line %d: %w", line, err)
		}
		c, ok := s.collections[e.Collection]
		if !ok || e.Metadata.Collection != e.Collection {
			return fmt.Errorf("journal line %d: %w", line, domain.ErrCrossCollectionWrite)
		}
		c.put(e.ChunkID, e.Content, e.Vector, e.Metadata)
	}
	return scanner.Err()
}

// Upsert stores a chunk vector, replacing any record with the same chunk ID.
// A replaced record keeps its insertion order.
func (s *KnowledgeStore) Upsert(_ context.Context, name domain.Collection, chunk domain.Chunk,
	embedding []float32, meta domain.RecordMetadata) error {
	if meta.Collection != name {
		return fmt.Errorf("upsert %s into %s: %w", meta.Collection, name, domain.ErrCrossCollectionWrite)
	}
	if chunk.ID == "" || len(embedding) == 0 {
		return fmt.Errorf("upsert: chunk id and embedding required: %w", domain.ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreUnavailable
	}
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("unknown collection %q: %w", name, domain.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if dims := c.dimensions(); dims > 0 && dims != len(embedding) {
		return fmt.Errorf("embedding has %d dimensions, collection has %d: %w",
			len(embedding), dims, domain.ErrInvalidInput)
	}

	if s.journal != nil {
		line, err := json.Marshal(journalEntry{
			Collection: name,
			ChunkID:    chunk.ID,
			Content:    chunk.Content,
			Vector:     embedding,
			Metadata:   meta,
		})
		if err != nil {
			return fmt.Errorf("encoding journal entry: %w", err)
		}
		s.jmu.Lock()
		_, err = s.journal.Write(append(line, '\n'))
		s.jmu.Unlock()
		if err != nil {
			return fmt.Errorf("writing journal: %w", domain.ErrStoreUnavailable)
		}
	}

	c.put(chunk.ID, chunk.Content, embedding, meta)
	return nil
}

// Query returns the topK most similar records of one collection.
func (s *KnowledgeStore) Query(_ context.Context, name domain.Collection, vector []float32,
	topK int, filter domain.MetadataFilter) ([]domain.QueryHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreUnavailable
	}
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q: %w", name, domain.ErrInvalidInput)
	}
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	hits := make([]domain.QueryHit, 0, len(c.records))
	for _, rec := range c.records {
		if rec.Metadata.Collection != name || !filter.Matches(rec.Metadata) {
			continue
		}
		hits = append(hits, domain.QueryHit{
			ChunkID:  rec.ChunkID,
			Content:  rec.Content,
			Score:    cosineSimilarity(vector, rec.Vector),
			Metadata: rec.Metadata,
		})
	}

	// Records are held in insertion order, so a stable sort breaks ties by it.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// List returns every record of a collection that passes filter, oldest first.
func (s *KnowledgeStore) List(_ context.Context, name domain.Collection,
	filter domain.MetadataFilter) ([]domain.QueryHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreUnavailable
	}
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q: %w", name, domain.ErrInvalidInput)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var hits []domain.QueryHit
	for _, rec := range c.records {
		if rec.Metadata.Collection != name || !filter.Matches(rec.Metadata) {
			continue
		}
		hits = append(hits, domain.QueryHit{
			ChunkID:  rec.ChunkID,
			Content:  rec.Content,
			Metadata: rec.Metadata,
		})
	}
	return hits, nil
}

// Count returns the number of records in a collection.
func (s *KnowledgeStore) Count(_ context.Context, name domain.Collection) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, domain.ErrStoreUnavailable
	}
	c, ok := s.collections[name]
	if !ok {
		return 0, fmt.Errorf("unknown collection %q: %w", name, domain.ErrInvalidInput)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}

// Close marks the store unavailable and closes the journal.
func (s *KnowledgeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

// put inserts or replaces a record (caller must hold c.mu).
func (c *collection) put(id, content string, vector []float32, meta domain.RecordMetadata) {
	vec := make([]float32, len(vector))
	copy(vec, vector)

	if i, ok := c.index[id]; ok {
		c.records[i].Content = content
		c.records[i].Vector = vec
		c.records[i].Metadata = meta
		return
	}

	c.seq++
	c.index[id] = len(c.records)
	c.records = append(c.records, domain.EmbeddingRecord{
		ChunkID:  id,
		Content:  content,
		Vector:   vec,
		Metadata: meta,
		Seq:      c.seq,
	})
}

// dimensions returns the vector size of stored records (caller must hold c.mu).
func (c *collection) dimensions() int {
	if len(c.records) == 0 {
		return 0
	}
	return len(c.records[0].Vector)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
