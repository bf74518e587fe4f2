package driven

import (
	"iter"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// Chunker splits a document's text into chunks.
type Chunker interface {
	// Name returns the chunker name for logging.
	Name() string

	// Chunk returns a lazy, single-pass sequence of chunks.
	// Ranging over the sequence a second time yields nothing.
	Chunk(doc *domain.Document) iter.Seq[domain.Chunk]
}
