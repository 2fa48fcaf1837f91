package lock

import (
	"context"
	"sync"
)

type keyedSlot struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex for single-instance deployments.
// Waiting honors context cancellation.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*keyedSlot
}

// NewLocalLocker creates a new LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*keyedSlot)}
}

// WithLock runs fn while holding key
func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	slot := l.acquireSlot(key)
	defer l.releaseSlot(key, slot)

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		return unavailable(key, ctx.Err())
	}
	defer func() { <-slot.sem }()

	return fn()
}

func (l *LocalLocker) acquireSlot(key string) *keyedSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &keyedSlot{sem: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalLocker) releaseSlot(key string, slot *keyedSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

// Held returns the number of keys with a holder or waiter (for testing/monitoring)
func (l *LocalLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

var _ Locker = (*LocalLocker)(nil)
