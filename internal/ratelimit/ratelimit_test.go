package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/amishk599/jobdigest/internal/model"
)

func TestWait_SameProvider_EnforcesMinDelay(t *testing.T) {
	limiter := NewLimiter(100 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "jsearch"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "jsearch"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// allow 20ms for timer jitter
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentProviders_NoCrossBlocking(t *testing.T) {
	limiter := NewLimiter(200 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "jsearch"); err != nil {
		t.Fatalf("jsearch wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "other"); err != nil {
		t.Fatalf("other wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected near-instant wait, got %v", elapsed)
	}
}

func TestWait_ZeroDelayNeverBlocks(t *testing.T) {
	limiter := NewLimiter(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(ctx, "jsearch"); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("zero delay should not block, took %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(5 * time.Second)

	if err := limiter.Wait(context.Background(), "jsearch"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, "jsearch"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

type recordingSearcher struct {
	called bool
}

func (s *recordingSearcher) Search(_ context.Context, _ model.SearchQuery) ([]model.Job, error) {
	s.called = true
	return nil, nil
}

func TestRateLimitedSearcher_WaitsBeforeDelegating(t *testing.T) {
	limiter := NewLimiter(100 * time.Millisecond)
	inner := &recordingSearcher{}
	searcher := NewRateLimitedSearcher(inner, limiter, "jsearch")
	ctx := context.Background()
	q := model.SearchQuery{Role: "backend", Location: "Pune", Page: 1}

	if _, err := searcher.Search(ctx, q); err != nil {
		t.Fatalf("first search: %v", err)
	}
	if !inner.called {
		t.Fatal("inner searcher was not called on first search")
	}

	inner.called = false

	start := time.Now()
	if _, err := searcher.Search(ctx, q); err != nil {
		t.Fatalf("second search: %v", err)
	}
	elapsed := time.Since(start)

	if !inner.called {
		t.Fatal("inner searcher was not called on second search")
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second search, got %v", elapsed)
	}
}
