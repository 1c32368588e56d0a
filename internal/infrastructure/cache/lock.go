package cache

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned when another owner holds the lock
var ErrLockHeld = errors.New("cache: lock is held by another owner")

// ReleaseFunc releases an acquired lock. Releasing a lock that expired or
// was taken over by another owner is a no-op.
type ReleaseFunc func(ctx context.Context) error

// Locker hands out named, expiring mutual exclusion locks
type Locker interface {
	// Acquire takes the lock named key for at most ttl. It returns
	// ErrLockHeld when the lock is already taken.
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}
