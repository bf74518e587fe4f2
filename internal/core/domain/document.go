package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SubmissionDateLayout is the layout of claim submission dates.
const SubmissionDateLayout = "2006-01-02"

// Document is a policy or claim file taken from the landing area.
// The system never deletes a Document; archiving only changes its Path.
type Document struct {
	// ID is the document identity derived from path and content hash.
	ID string

	// Path is the current location of the file.
	Path string

	// ContentHash is the hex SHA-256 of the raw file bytes.
	ContentHash string

	// Kind is policy or claim, taken from the landing root.
	Kind DocumentKind

	// Category is the policy line (Motor, Life, Medical). Empty until classified.
	Category string

	// ClientID identifies the claimant. Claims only.
	ClientID string

	// SubmissionDate is the claim date in SubmissionDateLayout. Claims only.
	SubmissionDate string

	// SubmissionType is the claim type from the landing folder name. Claims only.
	SubmissionType string

	// Collection is the assigned target collection. Empty until classified.
	Collection Collection

	// Content is the full extracted text before chunking.
	Content string

	// DetectedAt is when the watcher first saw the file.
	DetectedAt time.Time
}

// DocumentIdentity derives a stable document ID from the full path and the
// content hash, so a changed file at the same path is a new document.
func DocumentIdentity(path, contentHash string) string {
	sum := sha256.Sum256([]byte(path + "\x00" + contentHash))
	return hex.EncodeToString(sum[:])
}

// Metadata returns the record metadata every chunk of d is indexed with.
func (d *Document) Metadata() RecordMetadata {
	meta := RecordMetadata{
		Category:         d.Category,
		SourceDocumentID: d.ID,
		Collection:       d.Collection,
	}
	if d.Collection == CollectionClaims {
		meta.ClientID = d.ClientID
		meta.SubmissionDate = d.SubmissionDate
	}
	return meta
}

// Chunk is a semantically coherent segment of a Document's text.
// Chunks are created during ingestion and never mutated.
type Chunk struct {
	// ID is stable for a given document identity and position.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// BoundaryScore is the similarity drop at the chunk's leading cut.
	// Zero for the first chunk.
	BoundaryScore float64

	// TokenCount is the number of tokens in Content.
	TokenCount int
}

// RecordMetadata is the fixed metadata schema of an embedding record.
type RecordMetadata struct {
	Category         string     `json:"category"`
	ClientID         string     `json:"client_id,omitempty"`
	SubmissionDate   string     `json:"submission_date,omitempty"`
	SourceDocumentID string     `json:"source_document_id"`
	Collection       Collection `json:"collection_name"`
}

// EmbeddingRecord is a chunk vector held by the knowledge store.
type EmbeddingRecord struct {
	ChunkID  string
	Content  string
	Vector   []float32
	Metadata RecordMetadata

	// Seq is the insertion order within the collection.
	Seq int64
}

// MetadataFilter narrows a knowledge store query. Zero fields match anything.
type MetadataFilter struct {
	Category string
	ClientID string

	// SubmittedFrom and SubmittedTo bound SubmissionDate inclusively.
	SubmittedFrom string
	SubmittedTo   string
}

// Matches reports whether meta passes the filter.
func (f MetadataFilter) Matches(meta RecordMetadata) bool {
	if f.Category != "" && f.Category != meta.Category {
		return false
	}
	if f.ClientID != "" && f.ClientID != meta.ClientID {
		return false
	}
	// ISO dates compare lexically.
	if f.SubmittedFrom != "" && meta.SubmissionDate < f.SubmittedFrom {
		return false
	}
	if f.SubmittedTo != "" && meta.SubmissionDate > f.SubmittedTo {
		return false
	}
	return true
}

// QueryHit is one ranked result of a knowledge store query.
type QueryHit struct {
	ChunkID  string         `json:"chunk_id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata RecordMetadata `json:"metadata"`
}

// Classification is the classifier's placement of a document.
type Classification struct {
	Category   string
	Target     Collection
	Confidence float64
	Rationale  string
}

// ClassificationHint carries what the landing path already says about a document.
type ClassificationHint struct {
	Kind     DocumentKind
	Category string
}
