package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file type no normaliser can read.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Compliance judgment and narrative synthesis fall back to rules only.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Nothing can be indexed or queried without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Knowledge Store Errors.

	// ErrStoreUnavailable indicates the knowledge store cannot serve requests.
	// Callers treat it as retryable.
	ErrStoreUnavailable = errors.New("knowledge store unavailable")

	// ErrCrossCollectionWrite indicates a record tagged for one collection
	// was written to the other.
	ErrCrossCollectionWrite = errors.New("cross-collection write")

	// ErrTransientIO indicates a short-lived I/O failure such as lock
	// contention or a network hiccup.
	ErrTransientIO = errors.New("transient I/O failure")

	// Ingestion Errors.

	// ErrClassificationUncertain indicates the classifier could not place a
	// document with enough confidence. The document is held as pending.
	ErrClassificationUncertain = errors.New("classification uncertain")

	// ErrLockNotAcquired indicates a landing file is still held by its writer.
	ErrLockNotAcquired = errors.New("file lock not acquired")

	// Audit Errors.

	// ErrDuplicateInvestigation indicates an audit entry already exists for
	// the investigation.
	ErrDuplicateInvestigation = errors.New("duplicate investigation")

	// ErrInvestigationSealed indicates an archived investigation was mutated.
	ErrInvestigationSealed = errors.New("investigation sealed")

	// ErrAuditChainBroken indicates a stored audit digest does not match its content.
	ErrAuditChainBroken = errors.New("audit chain broken")
)

// ValidationError reports a rejected input field.
// It unwraps to ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// IsRetryable reports whether err is worth retrying after a delay.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientIO) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrLockNotAcquired)
}
