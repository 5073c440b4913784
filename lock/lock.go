package lock

import (
	"errors"
	"time"
)

// ErrNotAcquired is returned when another holder owns the key. Callers are
// expected to retry later, not wait.
var ErrNotAcquired = errors.New("lock is held by another run")

// Handle identifies one successful acquisition. Release with the same
// handle only removes the lock if it is still ours.
type Handle struct {
	Key   string
	Token string
}

// Locker is a distributed, TTL scoped mutual exclusion primitive.
// Acquisition is non blocking: a held key fails immediately with
// ErrNotAcquired.
type Locker interface {
	TryAcquire(key string, ttl time.Duration) (*Handle, error)
	Release(handle *Handle) error
}
