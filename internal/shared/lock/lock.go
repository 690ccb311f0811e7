// Package lock defines the mutual-exclusion port used around dataset
// refreshes and an in-process implementation of it.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotAcquired is returned when the key is already held
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrNotHeld is returned when releasing a lock that expired or was taken over
	ErrNotHeld = errors.New("lock not held")
)

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out named locks that expire after ttl.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Local is a Locker for a single process.
type Local struct {
	mu    sync.Mutex
	held  map[string]localEntry
	seq   uint64
	clock func() time.Time
}

type localEntry struct {
	token   uint64
	expires time.Time
}

// NewLocal creates an in-process Locker
func NewLocal() *Local {
	return &Local{
		held:  make(map[string]localEntry),
		clock: time.Now,
	}
}

// Acquire takes key unless another holder has it and its ttl has not run out.
func (l *Local) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[key]; ok && (e.expires.IsZero() || now.Before(e.expires)) {
		return nil, ErrNotAcquired
	}

	l.seq++
	e := localEntry{token: l.seq}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	l.held[key] = e

	return &localLock{owner: l, key: key, token: e.token}, nil
}

type localLock struct {
	owner *Local
	key   string
	token uint64
}

func (h *localLock) Release(ctx context.Context) error {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()

	e, ok := h.owner.held[h.key]
	if !ok || e.token != h.token {
		return ErrNotHeld
	}
	delete(h.owner.held, h.key)
	return nil
}
