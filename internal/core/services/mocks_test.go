package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/custodia-labs/claimaudit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// --- Mock implementations ---

const testDims = 64

// hashEmbedder is a bag-of-words embedder: texts sharing words are similar.
type hashEmbedder struct {
	err error
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, testDims)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 4 {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%testDims]++
	}
	return vec, nil
}

func (e *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *hashEmbedder) Dimensions() int              { return testDims }
func (e *hashEmbedder) ModelName() string            { return "hash" }
func (e *hashEmbedder) Ping(_ context.Context) error { return nil }
func (e *hashEmbedder) Close() error                 { return nil }

// mockLLM implements driven.LLMService with canned replies.
type mockLLM struct {
	mu       sync.Mutex
	generate func(prompt string) (string, error)
	chat     func(messages []driven.ChatMessage) (string, error)
	prompts  []string
}

func (m *mockLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.generate == nil {
		return "", nil
	}
	return m.generate(prompt)
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	if m.chat == nil {
		return "NO VIOLATIONS", nil
	}
	return m.chat(messages)
}

func (m *mockLLM) ModelName() string            { return "mock" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// staticRules implements driven.RuleSource.
type staticRules struct {
	rules domain.RuleSet
	err   error
}

func (s staticRules) Load(_ context.Context) (domain.RuleSet, error) {
	return s.rules, s.err
}

// flakyStore wraps a memory store and fails chosen operations.
type flakyStore struct {
	*memory.KnowledgeStore

	mu          sync.Mutex
	queryErr    map[domain.Collection]error
	upsertErr   error
	queryCalls  map[domain.Collection]int
	upsertCalls int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		KnowledgeStore: memory.NewKnowledgeStore(),
		queryErr:       make(map[domain.Collection]error),
		queryCalls:     make(map[domain.Collection]int),
	}
}

func (s *flakyStore) Upsert(ctx context.Context, c domain.Collection, chunk domain.Chunk,
	emb []float32, meta domain.RecordMetadata) error {
	s.mu.Lock()
	s.upsertCalls++
	err := s.upsertErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.KnowledgeStore.Upsert(ctx, c, chunk, emb, meta)
}

func (s *flakyStore) Query(ctx context.Context, c domain.Collection, vec []float32,
	topK int, filter domain.MetadataFilter) ([]domain.QueryHit, error) {
	s.mu.Lock()
	s.queryCalls[c]++
	err := s.queryErr[c]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.KnowledgeStore.Query(ctx, c, vec, topK, filter)
}

// List shares the query failure and call count of its collection.
func (s *flakyStore) List(ctx context.Context, c domain.Collection,
	filter domain.MetadataFilter) ([]domain.QueryHit, error) {
	s.mu.Lock()
	s.queryCalls[c]++
	err := s.queryErr[c]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.KnowledgeStore.List(ctx, c, filter)
}

// recordingMetrics implements driven.Metrics.
type recordingMetrics struct {
	mu          sync.Mutex
	transitions []domain.FileState
	chunks      map[domain.Collection]int
	stages      []domain.Stage
	verdicts    []domain.Verdict
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{chunks: make(map[domain.Collection]int)}
}

func (m *recordingMetrics) FileTransition(s domain.FileState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, s)
}

func (m *recordingMetrics) ChunksIndexed(c domain.Collection, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[c] += n
}

func (m *recordingMetrics) StageCompleted(s domain.Stage, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, s)
}

func (m *recordingMetrics) VerdictRecorded(v domain.Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts = append(m.verdicts, v)
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// indexText stores each text as one chunk of doc.
func indexText(kb *KnowledgeBase, doc *domain.Document, texts ...string) error {
	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{ID: doc.ID + "-" + string(rune('a'+i)), DocumentID: doc.ID, Content: t, Position: i}
	}
	_, err := kb.Index(context.Background(), doc, chunks)
	return err
}

// stubWatcher implements driven.FileWatcher over a channel the test feeds.
type stubWatcher struct {
	mu      sync.Mutex
	events  chan string
	started bool
}

func (w *stubWatcher) Watch(_ context.Context, _ ...string) (<-chan string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = true
	return w.events, nil
}

func (w *stubWatcher) watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *stubWatcher) Close() error { return nil }
