// Package runlock guards poll cycles against overlapping runs, within one
// process and optionally across hosts.
package runlock

import (
	"context"
	"sync"
)

// Locker is a non-blocking mutual exclusion primitive. When ok is true the
// caller holds the lock and must call release exactly once.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// Local is an in-process lock.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local { return &Local{} }

func (l *Local) TryLock(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, true, nil
}

type chain []Locker

// Chain acquires each locker in order and releases them in reverse. If any
// locker is busy or fails, the ones already held are released.
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

func (c chain) TryLock(ctx context.Context) (func(), bool, error) {
	held := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}

	for _, l := range c {
		release, ok, err := l.TryLock(ctx)
		if err != nil || !ok {
			releaseAll()
			return nil, false, err
		}
		held = append(held, release)
	}
	return releaseAll, true, nil
}
