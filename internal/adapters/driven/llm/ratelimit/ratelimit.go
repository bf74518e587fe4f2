// Package ratelimit throttles calls to an LLM service with a token bucket.
// Several investigations run concurrently and each runs several LLM stages,
// so without throttling a burst of claims trips provider quotas.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultCooldown is how long calls pause after the provider reports overload.
const DefaultCooldown = 10 * time.Second

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerSecond is the sustained rate. Zero disables throttling.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
	// Cooldown is the pause after an unavailable response.
	Cooldown time.Duration
}

// LLMService wraps another LLMService with a token bucket and an
// overload cooldown.
type LLMService struct {
	next     driven.LLMService
	limiter  *rate.Limiter
	cooldown time.Duration

	mu      sync.Mutex
	retryAt time.Time
}

// New wraps next.
func New(next driven.LLMService, cfg Config) *LLMService {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &LLMService{
		next:     next,
		limiter:  rate.NewLimiter(limit, cfg.BurstSize),
		cooldown: cfg.Cooldown,
	}
}

// wait blocks until a call is allowed, honouring any cooldown first.
func (s *LLMService) wait(ctx context.Context) error {
	s.mu.Lock()
	retryAt := s.retryAt
	s.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return s.limiter.Wait(ctx)
}

func (s *LLMService) record(err error) {
	if !errors.Is(err, domain.ErrLLMUnavailable) {
		return
	}
	s.mu.Lock()
	s.retryAt = time.Now().Add(s.cooldown)
	s.mu.Unlock()
}

// Generate implements driven.LLMService.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	out, err := s.next.Generate(ctx, prompt, opts)
	s.record(err)
	return out, err
}

// Chat implements driven.LLMService.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	out, err := s.next.Chat(ctx, messages, opts)
	s.record(err)
	return out, err
}

// ModelName implements driven.LLMService.
func (s *LLMService) ModelName() string { return s.next.ModelName() }

// Ping bypasses the limiter.
func (s *LLMService) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

// Close implements driven.LLMService.
func (s *LLMService) Close() error { return s.next.Close() }
