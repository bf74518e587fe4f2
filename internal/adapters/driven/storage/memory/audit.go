package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// Ensure stores implement the interfaces.
var (
	_ driven.AuditStore      = (*AuditStore)(nil)
	_ driven.IngestionLedger = (*Ledger)(nil)
)

// AuditStore is an in-memory implementation of driven.AuditStore.
// Entries are lost on exit; it does not compute digests.
type AuditStore struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
	index   map[string]int
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{index: make(map[string]int)}
}

// Append records an entry once per investigation.
func (s *AuditStore) Append(_ context.Context, entry domain.AuditEntry) error {
	if entry.InvestigationID == "" {
		return domain.NewValidationError("investigation_id", "must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[entry.InvestigationID]; ok {
		return domain.ErrDuplicateInvestigation
	}
	s.index[entry.InvestigationID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}

// Get retrieves an entry by investigation ID.
func (s *AuditStore) Get(_ context.Context, investigationID string) (*domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[investigationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	entry := s.entries[i]
	return &entry, nil
}

// List returns entries in append order.
func (s *AuditStore) List(_ context.Context, clientID string, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditEntry
	for _, e := range s.entries {
		if clientID != "" && e.ClientID != clientID {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Verify returns the entry count; there is no chain to check in memory.
func (s *AuditStore) Verify(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Ledger is an in-memory implementation of driven.IngestionLedger.
type Ledger struct {
	mu    sync.RWMutex
	files map[string]domain.IngestedFile
}

// NewLedger creates a new in-memory ingestion ledger.
func NewLedger() *Ledger {
	return &Ledger{files: make(map[string]domain.IngestedFile)}
}

// Seen reports whether identity was recorded.
func (l *Ledger) Seen(_ context.Context, identity string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.files[identity]
	return ok, nil
}

// Record stores an ingested file.
func (l *Ledger) Record(_ context.Context, file domain.IngestedFile) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[file.Identity] = file
	return nil
}
