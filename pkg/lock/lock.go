package lock

import (
	"context"

	"github.com/pkg/errors"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// context finished.
var ErrLockTimeout = errors.New("timed out waiting for lock")

// Manager creates and manages locks. Locks produced for a given name
// are re-entrant per Manager, so nested read-modify-write spans in one
// process do not deadlock on themselves.
type Manager interface {
	// Create creates an unlocked Lock for a specific name.
	Create(ctx context.Context, name string) (Lock, error)
}

// Lock is a handle to an exclusive lock shared between processes. Two Locks
// for the same name produced by the same Manager are re-entrant. See Manager
// for details.
type Lock interface {
	// Acquire attempts to acquire the lock, blocking until the lock has been
	// successfully acquired or ctx is done.
	//
	// The returned channel is closed once the lock is released.
	Acquire(ctx context.Context) (<-chan struct{}, error)

	// Unlock unlocks the lock, if the lock is held.
	//
	// Unlock is idempotent.
	Unlock(ctx context.Context) error

	// IsLocked returns whether the lock is held by the process/manager.
	IsLocked() bool
}

// With runs fn while holding the named lock.
func With(ctx context.Context, m Manager, name string, fn func() error) error {
	l, err := m.Create(ctx, name)
	if err != nil {
		return err
	}

	if _, err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Unlock(context.Background())

	return fn()
}
