package attribution

import (
	"context"
	"sync"
	"time"
)

// linkLocks hands out one exclusive lock per link ID so that all mutations of
// a link's association set are serialized while independent links recalculate
// concurrently. Entries are reference-counted and removed once the last
// waiter releases, so the table does not grow with the number of links ever
// seen.
type linkLocks struct {
	mu    sync.Mutex
	locks map[uint]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newLinkLocks() *linkLocks {
	return &linkLocks{locks: make(map[uint]*lockEntry)}
}

// sharedLocks is the process-wide lock table. Every Recalculator uses it so
// per-link serialization holds no matter how many service instances exist.
var sharedLocks = newLinkLocks()

// Acquire blocks until the link's lock is free, the timeout expires, or ctx
// is done. On success it returns a release function that must be called
// exactly once.
func (l *linkLocks) Acquire(ctx context.Context, linkID uint, timeout time.Duration) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[linkID]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[linkID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			l.put(linkID, entry)
		}, nil
	case <-timer.C:
		l.put(linkID, entry)
		return nil, &LockTimeoutError{LinkID: linkID, Waited: time.Since(start).Round(time.Millisecond)}
	case <-ctx.Done():
		l.put(linkID, entry)
		return nil, ctx.Err()
	}
}

// put drops one reference and evicts the entry when nobody holds or waits
func (l *linkLocks) put(linkID uint, entry *lockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, linkID)
	}
	l.mu.Unlock()
}
