package turn

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locks serializes work per world. Entries are dropped once no caller holds
// or waits on them.
type Locks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func NewLocks() *Locks {
	return &Locks{entries: make(map[int64]*lockEntry)}
}

// Lock blocks until the world is free or ctx is done. The returned func
// releases the lock and must be called exactly once.
func (l *Locks) Lock(ctx context.Context, worldID int64) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[worldID]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[worldID] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.drop(worldID, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.drop(worldID, e)
		})
	}, nil
}

func (l *Locks) drop(worldID int64, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, worldID)
	}
}

func (l *Locks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
