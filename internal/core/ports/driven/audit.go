package driven

import (
	"context"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// AuditStore persists audit entries. There is no update or delete.
type AuditStore interface {
	// Append records entry. Returns domain.ErrDuplicateInvestigation if the
	// investigation already has an entry.
	Append(ctx context.Context, entry domain.AuditEntry) error

	// Get returns the entry for investigationID or domain.ErrNotFound.
	Get(ctx context.Context, investigationID string) (*domain.AuditEntry, error)

	// List returns entries in append order, newest last.
	// An empty clientID lists every client. limit <= 0 means no limit.
	List(ctx context.Context, clientID string, limit int) ([]domain.AuditEntry, error)

	// Verify recomputes the digest chain.
	// Returns domain.ErrAuditChainBroken at the first mismatch.
	Verify(ctx context.Context) (int, error)
}

// IngestionLedger remembers which file identities have been indexed.
type IngestionLedger interface {
	// Seen reports whether identity was already ingested.
	Seen(ctx context.Context, identity string) (bool, error)

	// Record stores a fully indexed file.
	Record(ctx context.Context, file domain.IngestedFile) error
}
