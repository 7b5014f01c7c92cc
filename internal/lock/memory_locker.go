package lock

import (
	"context"
	"sync"
)

// MemoryLocker implements Locker with per-key mutexes. Used when Redis is
// not configured; sufficient for a single-process deployment.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*memoryEntry)}
}

// Acquire blocks until the key's mutex is held or ctx is done.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &memoryEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	locked := make(chan struct{})
	go func() {
		entry.mu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
		return func() { l.release(key, entry) }, nil
	case <-ctx.Done():
		// The goroutine may still grab the mutex later; hand it straight
		// back so the entry cannot leak a held lock.
		go func() {
			<-locked
			l.release(key, entry)
		}()
		return nil, ctx.Err()
	}
}

func (l *MemoryLocker) release(key string, entry *memoryEntry) {
	entry.mu.Unlock()

	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}
