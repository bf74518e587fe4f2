package services

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
)

// DefaultProgressRetention is used when the configured retention is not positive.
const DefaultProgressRetention = 512

// ProgressTracker keeps snapshots of recent investigations for progress
// queries. It never holds the live investigation.
type ProgressTracker struct {
	cache *lru.Cache[string, domain.Progress]
}

// NewProgressTracker creates a tracker holding at most size investigations.
func NewProgressTracker(size int) *ProgressTracker {
	if size <= 0 {
		size = DefaultProgressRetention
	}
	cache, err := lru.New[string, domain.Progress](size)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &ProgressTracker{cache: cache}
}

// Update stores a snapshot of inv.
func (t *ProgressTracker) Update(inv *domain.Investigation) {
	snap := inv.Snapshot()
	t.cache.Add(snap.ID, domain.Progress{
		InvestigationID: snap.ID,
		Stage:           snap.Status,
		Findings:        snap.Findings,
		Verdict:         snap.Verdict,
		Archived:        inv.Sealed(),
	})
}

// Get returns a copy of the latest snapshot for id.
func (t *ProgressTracker) Get(id string) (*domain.Progress, bool) {
	p, ok := t.cache.Get(id)
	if !ok {
		return nil, false
	}
	findings := make([]domain.Finding, len(p.Findings))
	copy(findings, p.Findings)
	p.Findings = findings
	if p.Verdict != nil {
		v := *p.Verdict
		p.Verdict = &v
	}
	return &p, true
}

// Len returns the number of tracked investigations.
func (t *ProgressTracker) Len() int {
	return t.cache.Len()
}
