// Package file implements lock.Manager with advisory file locks, so that
// separate processes touching the same file serialize their updates.
package file

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solfarm/multisig-cli/pkg/lock"
)

const defaultRetryDelay = 50 * time.Millisecond

// held tracks a lock file owned by the manager along with the number of
// Lock handles currently holding it.
type held struct {
	fl     *flock.Flock
	count  int
	lostCh chan struct{}
}

type LockManager struct {
	log        *logrus.Entry
	retryDelay time.Duration

	mu   sync.Mutex
	held map[string]*held
}

// NewLockManager returns a manager that polls for contended locks every
// retryDelay. A non-positive retryDelay uses a default.
func NewLockManager(retryDelay time.Duration) *LockManager {
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	return &LockManager{
		log:        logrus.StandardLogger().WithField("type", "lock/file"),
		retryDelay: retryDelay,
		held:       make(map[string]*held),
	}
}

// Create implements lock.Manager. name is the path of the lock file.
func (lm *LockManager) Create(_ context.Context, name string) (lock.Lock, error) {
	if name == "" {
		return nil, errors.New("lock file path is required")
	}

	return &Lock{
		log: lm.log.WithField("path", name),
		lm:  lm,
		key: name,
	}, nil
}

type Lock struct {
	log *logrus.Entry
	lm  *LockManager
	key string

	mu     sync.Mutex
	locked bool
}

// Acquire implements lock.Lock.
func (l *Lock) Acquire(ctx context.Context) (<-chan struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return nil, errors.New("cannot call Acquire twice on the same lock")
	}

	fl := flock.New(l.key)
	for {
		lostCh, ok, err := l.tryAcquire(fl)
		if err != nil {
			return nil, err
		}
		if ok {
			l.locked = true
			return lostCh, nil
		}

		timer := time.NewTimer(l.lm.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, errors.Wrapf(lock.ErrLockTimeout, "%s", l.key)
			}
			return nil, errors.Wrapf(ctx.Err(), "interrupted waiting for %s", l.key)
		case <-timer.C:
		}
	}
}

// tryAcquire joins the lock if this manager already holds it, and otherwise
// makes one non-blocking attempt at the lock file. The manager mutex is never
// held while waiting.
func (l *Lock) tryAcquire(fl *flock.Flock) (<-chan struct{}, bool, error) {
	l.lm.mu.Lock()
	defer l.lm.mu.Unlock()

	if h, ok := l.lm.held[l.key]; ok {
		h.count++
		return h.lostCh, true, nil
	}

	ok, err := fl.TryLock()
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to lock %s", l.key)
	}
	if !ok {
		return nil, false, nil
	}

	l.log.Debug("Lock acquired")

	h := &held{fl: fl, count: 1, lostCh: make(chan struct{})}
	l.lm.held[l.key] = h
	return h.lostCh, true, nil
}

// Unlock implements lock.Lock.
func (l *Lock) Unlock(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		return nil
	}
	l.locked = false

	l.lm.mu.Lock()
	defer l.lm.mu.Unlock()

	h, ok := l.lm.held[l.key]
	if !ok {
		return nil
	}

	h.count--
	if h.count > 0 {
		return nil
	}

	delete(l.lm.held, l.key)
	close(h.lostCh)

	if err := h.fl.Unlock(); err != nil {
		return errors.Wrapf(err, "failed to unlock %s", l.key)
	}

	l.log.Debug("Lock released")
	return nil
}

// IsLocked implements lock.Lock.
func (l *Lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.locked
}
