// Package breaker wraps a knowledge store with a circuit breaker so an
// unreachable backend fails fast instead of stalling every caller.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.KnowledgeStore = (*Store)(nil)

// Store guards a KnowledgeStore with a gobreaker circuit.
type Store struct {
	next driven.KnowledgeStore
	cb   *gobreaker.CircuitBreaker
}

// New wraps next. The circuit opens after failures consecutive unavailable
// errors and half-opens after cooldown.
func New(next driven.KnowledgeStore, failures uint32, cooldown time.Duration) *Store {
	if failures == 0 {
		failures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "knowledge-store",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Validation and contamination errors say nothing about backend health.
			return err == nil || !errors.Is(err, domain.ErrStoreUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit %s: %s -> %s", name, from, to)
		},
	}
	return &Store{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the current circuit state.
func (s *Store) State() gobreaker.State {
	return s.cb.State()
}

// Upsert implements driven.KnowledgeStore.
func (s *Store) Upsert(ctx context.Context, collection domain.Collection, chunk domain.Chunk,
	embedding []float32, meta domain.RecordMetadata) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.Upsert(ctx, collection, chunk, embedding, meta)
	})
	return mapError(err)
}

// Query implements driven.KnowledgeStore.
func (s *Store) Query(ctx context.Context, collection domain.Collection, vector []float32,
	topK int, filter domain.MetadataFilter) ([]domain.QueryHit, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.Query(ctx, collection, vector, topK, filter)
	})
	if err != nil {
		return nil, mapError(err)
	}
	hits, _ := out.([]domain.QueryHit)
	return hits, nil
}

// List implements driven.KnowledgeStore.
func (s *Store) List(ctx context.Context, collection domain.Collection,
	filter domain.MetadataFilter) ([]domain.QueryHit, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.List(ctx, collection, filter)
	})
	if err != nil {
		return nil, mapError(err)
	}
	hits, _ := out.([]domain.QueryHit)
	return hits, nil
}

// Count implements driven.KnowledgeStore.
func (s *Store) Count(ctx context.Context, collection domain.Collection) (int, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.Count(ctx, collection)
	})
	if err != nil {
		return 0, mapError(err)
	}
	n, _ := out.(int)
	return n, nil
}

// Close closes the wrapped store.
func (s *Store) Close() error {
	return s.next.Close()
}

func mapError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
