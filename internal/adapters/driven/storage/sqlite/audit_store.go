package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// auditStore implements driven.AuditStore.
//
// Each row stores the entry as RFC 8785 canonical JSON. Its digest is the
// SHA-256 of the previous row's digest, a newline and the canonical payload.
type auditStore struct {
	store *Store
}

var _ driven.AuditStore = (*auditStore)(nil)

// Append records an entry. A second append for the same investigation fails
// with domain.ErrDuplicateInvestigation and leaves the first untouched.
func (s *auditStore) Append(ctx context.Context, entry domain.AuditEntry) error {
	if entry.InvestigationID == "" {
		return domain.NewValidationError("investigation_id", "must not be empty")
	}

	entry.Digest, entry.PrevDigest = "", ""
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshalling audit entry: %w", err)
	}
	payload, err := jcs.Transform(raw)
	if err != nil {
		return fmt.Errorf("canonicalising audit entry: %w", err)
	}

	s.store.appendMu.Lock()
	defer s.store.appendMu.Unlock()

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM audit_entries WHERE investigation_id = ?", entry.InvestigationID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking audit entry: %w", err)
	}
	if exists > 0 {
		return domain.ErrDuplicateInvestigation
	}

	var prev string
	err = tx.QueryRowContext(ctx, "SELECT digest FROM audit_entries ORDER BY seq DESC LIMIT 1").Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading chain head: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_entries (investigation_id, client_id, status, decision, payload, digest, prev_digest, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.InvestigationID, entry.ClientID, string(entry.Status), string(entry.Verdict.Decision),
		string(payload), chainDigest(prev, payload), prev, entry.RecordedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrDuplicateInvestigation
		}
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves an entry by investigation ID.
func (s *auditStore) Get(ctx context.Context, investigationID string) (*domain.AuditEntry, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT payload, digest, prev_digest FROM audit_entries WHERE investigation_id = ?", investigationID)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns entries in append order, keeping the newest limit entries.
func (s *auditStore) List(ctx context.Context, clientID string, limit int) ([]domain.AuditEntry, error) {
	query := "SELECT payload, digest, prev_digest FROM audit_entries"
	var args []any
	if clientID != "" {
		query += " WHERE client_id = ?"
		args = append(args, clientID)
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	// Reverse into append order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Verify walks the chain from the first entry and recomputes every digest.
func (s *auditStore) Verify(ctx context.Context) (int, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT investigation_id, payload, digest, prev_digest FROM audit_entries ORDER BY seq ASC")
	if err != nil {
		return 0, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var (
		count int
		head  string
	)
	for rows.Next() {
		var id, payload, digest, prev string
		if err := rows.Scan(&id, &payload, &digest, &prev); err != nil {
			return count, fmt.Errorf("scanning audit entry: %w", err)
		}
		if prev != head || chainDigest(prev, []byte(payload)) != digest {
			return count, fmt.Errorf("entry %s: %w", id, domain.ErrAuditChainBroken)
		}
		head = digest
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("iterating audit entries: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*domain.AuditEntry, error) {
	var payload, digest, prev string
	if err := row.Scan(&payload, &digest, &prev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning audit entry: %w", err)
	}

	var entry domain.AuditEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return nil, fmt.Errorf("unmarshaling audit entry: %w", err)
	}
	entry.Digest = digest
	entry.PrevDigest = prev
	return &entry, nil
}

func chainDigest(prev string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(prev))
	h.Write([]byte("\n"))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
