package memory

import (
	"context"
	"sync"
)

// OfferLocker serializes work per offer inside one process.
type OfferLocker struct {
	mu    sync.Mutex
	locks map[int64]*offerLock
}

type offerLock struct {
	ch   chan struct{}
	refs int
}

func NewOfferLocker() *OfferLocker {
	return &OfferLocker{locks: make(map[int64]*offerLock)}
}

func (l *OfferLocker) WithOfferLock(ctx context.Context, offerID int64, fn func(ctx context.Context) error) error {
	lock := l.acquireRef(offerID)
	defer l.releaseRef(offerID, lock)

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock.ch }()

	return fn(ctx)
}

func (l *OfferLocker) acquireRef(offerID int64) *offerLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[offerID]
	if !ok {
		lock = &offerLock{ch: make(chan struct{}, 1)}
		l.locks[offerID] = lock
	}
	lock.refs++
	return lock
}

func (l *OfferLocker) releaseRef(offerID int64, lock *offerLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, offerID)
	}
}
