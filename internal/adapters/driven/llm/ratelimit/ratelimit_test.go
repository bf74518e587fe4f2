package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
)

type stubLLM struct {
	err   error
	calls int
}

func (s *stubLLM) Generate(context.Context, string, driven.GenerateOptions) (string, error) {
	s.calls++
	return "ok", s.err
}

func (s *stubLLM) Chat(context.Context, []driven.ChatMessage, driven.ChatOptions) (string, error) {
	s.calls++
	return "ok", s.err
}

func (s *stubLLM) ModelName() string          { return "stub" }
func (s *stubLLM) Ping(context.Context) error { return nil }
func (s *stubLLM) Close() error               { return nil }

func TestUnlimitedPassesThrough(t *testing.T) {
	next := &stubLLM{}
	s := New(next, Config{})
	for i := 0; i < 20; i++ {
		out, err := s.Generate(context.Background(), "p", driven.GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
	assert.Equal(t, 20, next.calls)
	assert.Equal(t, "stub", s.ModelName())
}

func TestWaitRespectsContext(t *testing.T) {
	next := &stubLLM{}
	s := New(next, Config{RequestsPerSecond: 0.001, BurstSize: 1})

	_, err := s.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Chat(ctx, nil, driven.ChatOptions{})
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestCooldownAfterUnavailable(t *testing.T) {
	next := &stubLLM{err: domain.ErrLLMUnavailable}
	s := New(next, Config{Cooldown: time.Hour})

	_, err := s.Generate(context.Background(), "p", driven.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Generate(ctx, "p", driven.GenerateOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, next.calls)
}
