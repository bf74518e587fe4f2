package sqlite

import (
	"context"
	"fmt"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// ledgerStore implements driven.IngestionLedger.
type ledgerStore struct {
	store *Store
}

var _ driven.IngestionLedger = (*ledgerStore)(nil)

// Seen reports whether identity was already ingested.
func (s *ledgerStore) Seen(ctx context.Context, identity string) (bool, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM ingested_files WHERE identity = ?", identity).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking ledger: %w", err)
	}
	return n > 0, nil
}

// Record stores a fully indexed file.
func (s *ledgerStore) Record(ctx context.Context, file domain.IngestedFile) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO ingested_files (identity, path, content_hash, collection, category, client_id, chunks, archived_path, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			archived_path = excluded.archived_path,
			ingested_at = excluded.ingested_at
	`, file.Identity, file.Path, file.ContentHash, string(file.Collection), file.Category,
		file.ClientID, file.Chunks, file.ArchivedPath, file.IngestedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording ingested file: %w", err)
	}
	return nil
}
