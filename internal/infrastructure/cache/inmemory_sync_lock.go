package cache

import (
	"context"
	"sync"
	"time"
)

type lockEntry struct {
	token     uint64
	expiresAt time.Time
}

// InMemoryLocker implements Locker for a single process. Locks are not
// shared with other instances.
type InMemoryLocker struct {
	mu      sync.Mutex
	entries map[string]lockEntry
	seq     uint64
	now     func() time.Time
}

// NewInMemoryLocker creates an in-memory locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{
		entries: make(map[string]lockEntry),
		now:     time.Now,
	}
}

// Acquire takes the lock if nobody holds it or the holder's lease expired
func (l *InMemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, held := l.entries[key]; held && now.Before(e.expiresAt) {
		return nil, ErrLockHeld
	}

	l.seq++
	token := l.seq
	l.entries[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, held := l.entries[key]; held && e.token == token {
			delete(l.entries, key)
		}
		return nil
	}, nil
}

// Held reports whether key is currently locked
func (l *InMemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, held := l.entries[key]
	return held && l.now().Before(e.expiresAt)
}

var _ Locker = (*InMemoryLocker)(nil)
