package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/jobdigest/internal/model"
)

// Limiter enforces a minimum delay between requests to the same provider.
type Limiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time // key: provider name
	minDelay time.Duration
}

// NewLimiter creates a limiter that spaces consecutive requests to the same
// provider by at least minDelay. A zero minDelay never blocks.
func NewLimiter(minDelay time.Duration) *Limiter {
	return &Limiter{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until enough time has passed since the last request to provider.
// Returns an error if the context is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	if l.minDelay <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	last, ok := l.lastCall[provider]
	now := time.Now()
	if !ok || now.Sub(last) >= l.minDelay {
		l.lastCall[provider] = now
		l.mu.Unlock()
		return nil
	}
	// Reserve the next slot before releasing the lock so concurrent callers
	// queue behind each other instead of all waking at once.
	next := last.Add(l.minDelay)
	l.lastCall[provider] = next
	l.mu.Unlock()

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", provider, ctx.Err())
	case <-timer.C:
	}
	return nil
}

// RateLimitedSearcher is a decorator that waits on a shared Limiter before
// delegating to the wrapped JobSearcher.
type RateLimitedSearcher struct {
	inner    model.JobSearcher
	limiter  *Limiter
	provider string
}

// NewRateLimitedSearcher wraps a JobSearcher with provider-level rate limiting.
// All searchers targeting the same provider should share one Limiter.
func NewRateLimitedSearcher(inner model.JobSearcher, limiter *Limiter, provider string) *RateLimitedSearcher {
	return &RateLimitedSearcher{
		inner:    inner,
		limiter:  limiter,
		provider: provider,
	}
}

// Search waits for the limiter, then delegates to the wrapped searcher.
func (s *RateLimitedSearcher) Search(ctx context.Context, q model.SearchQuery) ([]model.Job, error) {
	if err := s.limiter.Wait(ctx, s.provider); err != nil {
		return nil, err
	}
	return s.inner.Search(ctx, q)
}
