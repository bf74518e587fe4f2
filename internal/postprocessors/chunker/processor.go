// Package chunker provides a semantic text chunking processor.
//
// Text is split into sentences, and the lexical similarity between the
// sentence windows either side of every gap is measured. A gap whose
// similarity is a local minimum below mean - k*stddev becomes a cut. Segments
// are then packed under a hard token budget.
package chunker

import (
	"iter"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// DefaultWindowSentences is the number of sentences compared on each side of a gap.
const DefaultWindowSentences = 3

// DefaultMaxTokens is the default hard token budget per chunk.
const DefaultMaxTokens = 256

// DefaultSensitivity is the default k in the mean - k*stddev threshold.
const DefaultSensitivity = 0.5

// chunkNamespace seeds name-based chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c2b9e-3d0a-4c55-9a61-2e7b8d4f0c13")

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// Processor splits document content at topic shifts.
type Processor struct {
	window      int
	maxTokens   int
	sensitivity float64
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithWindow sets the number of sentences on each side of a gap.
func WithWindow(sentences int) Option {
	return func(p *Processor) {
		if sentences > 0 {
			p.window = sentences
		}
	}
}

// WithMaxTokens sets the hard per-chunk token budget.
func WithMaxTokens(tokens int) Option {
	return func(p *Processor) {
		if tokens > 0 {
			p.maxTokens = tokens
		}
	}
}

// WithSensitivity sets k in the cut threshold. Larger values cut less often.
func WithSensitivity(k float64) Option {
	return func(p *Processor) {
		if k >= 0 {
			p.sensitivity = k
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		window:      DefaultWindowSentences,
		maxTokens:   DefaultMaxTokens,
		sensitivity: DefaultSensitivity,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "semantic"
}

// MaxTokens returns the hard per-chunk token budget.
func (p *Processor) MaxTokens() int {
	return p.maxTokens
}

// Chunk returns the document's chunks as a single-pass sequence.
// Boundaries are computed on first iteration; chunks are built as they are
// consumed. Ranging over the sequence again yields nothing.
func (p *Processor) Chunk(doc *domain.Document) iter.Seq[domain.Chunk] {
	var consumed atomic.Bool

	return func(yield func(domain.Chunk) bool) {
		if doc == nil || !consumed.CompareAndSwap(false, true) {
			return
		}

		sentences := splitSentences(doc.Content)
		if len(sentences) == 0 {
			return
		}

		position := 0
		for _, seg := range p.segment(sentences) {
			for i, piece := range p.pack(seg.sentences) {
				score := 0.0
				if i == 0 {
					score = seg.score
				}
				chunk := domain.Chunk{
					ID:            ChunkID(doc.ID, position),
					DocumentID:    doc.ID,
					Content:       piece.text,
					Position:      position,
					BoundaryScore: score,
					TokenCount:    piece.tokens,
				}
				if !yield(chunk) {
					return
				}
				position++
			}
		}
	}
}

// ChunkID returns the stable ID of the chunk at position in a document.
func ChunkID(documentID string, position int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+":"+strconv.Itoa(position))).String()
}

// CountTokens returns the token count used for the budget.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

type segment struct {
	sentences []string

	// score is the similarity drop at the segment's leading cut.
	score float64
}

// segment groups sentences between semantic cuts.
func (p *Processor) segment(sentences []string) []segment {
	if len(sentences) <= p.window {
		return []segment{{sentences: sentences}}
	}

	vectors := make([]termVector, len(sentences))
	for i, s := range sentences {
		vectors[i] = termFrequencies(s)
	}

	// sims[i] compares the windows either side of the gap before sentence i+1.
	sims := make([]float64, len(sentences)-1)
	for i := range sims {
		gap := i + 1
		left := mergeVectors(vectors[max(0, gap-p.window):gap])
		right := mergeVectors(vectors[gap:min(len(vectors), gap+p.window)])
		sims[i] = cosine(left, right)
	}

	threshold := adaptiveThreshold(sims, p.sensitivity)

	segments := make([]segment, 0, 4)
	start, startScore := 0, 0.0
	for i, sim := range sims {
		if !isCut(sims, i, threshold) {
			continue
		}
		gap := i + 1
		segments = append(segments, segment{sentences: sentences[start:gap], score: startScore})
		start, startScore = gap, 1-sim
	}
	return append(segments, segment{sentences: sentences[start:], score: startScore})
}

// isCut reports whether gap i is a local similarity minimum below threshold.
func isCut(sims []float64, i int, threshold float64) bool {
	if sims[i] >= threshold {
		return false
	}
	if i > 0 && sims[i-1] < sims[i] {
		return false
	}
	if i < len(sims)-1 && sims[i+1] < sims[i] {
		return false
	}
	return true
}

type piece struct {
	text   string
	tokens int
}

// pack groups sentences greedily under the token budget. A sentence longer
// than the budget is split on word boundaries.
func (p *Processor) pack(sentences []string) []piece {
	var (
		pieces []piece
		buf    []string
		tokens int
	)

	flush := func() {
		if len(buf) > 0 {
			pieces = append(pieces, piece{text: strings.Join(buf, " "), tokens: tokens})
			buf, tokens = nil, 0
		}
	}

	for _, s := range sentences {
		words := strings.Fields(s)
		if len(words) == 0 {
			continue
		}

		if len(words) > p.maxTokens {
			flush()
			for len(words) > p.maxTokens {
				pieces = append(pieces, piece{text: strings.Join(words[:p.maxTokens], " "), tokens: p.maxTokens})
				words = words[p.maxTokens:]
			}
			buf, tokens = []string{strings.Join(words, " ")}, len(words)
			continue
		}

		if tokens+len(words) > p.maxTokens {
			flush()
		}
		buf = append(buf, strings.Join(words, " "))
		tokens += len(words)
	}
	flush()

	return pieces
}
