package config

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solfarm/multisig-cli/pkg/lock"
)

// Store serializes read-modify-write cycles on a configuration file through
// an exclusive lock on "<path>.lock".
type Store struct {
	log         *logrus.Entry
	path        string
	locks       lock.Manager
	lockTimeout time.Duration
}

func NewStore(path string, locks lock.Manager, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.StandardLogger().WithField("type", "msig/config")
	}

	return &Store{
		log:         log.WithField("path", path),
		path:        path,
		locks:       locks,
		lockTimeout: DefaultLockTimeout,
	}
}

// SetLockTimeout bounds how long the store waits for another process to
// release the lock. It does not bound the work done while holding it.
func (s *Store) SetLockTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.lockTimeout = timeout
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the configuration without taking the lock.
func (s *Store) Load() (*Configuration, error) {
	return Load(s.path)
}

// Init writes a default configuration. An existing file is only replaced when
// force is set.
func (s *Store) Init(ctx context.Context, force bool) error {
	return s.withLock(ctx, func() error {
		if _, err := os.Stat(s.path); err == nil && !force {
			return errors.Wrapf(ErrConfigIO, "%s already exists", s.path)
		}

		if err := Default().Save(s.path); err != nil {
			return err
		}

		s.log.Info("Wrote default configuration")
		return nil
	})
}

// Update loads the configuration, applies fn and saves the result, all while
// holding the lock. Nothing is written when fn fails.
func (s *Store) Update(ctx context.Context, fn func(c *Configuration) error) error {
	return s.withLock(ctx, func() error {
		c, err := Load(s.path)
		if err != nil {
			return err
		}

		if err := fn(c); err != nil {
			return err
		}

		if err := c.Save(s.path); err != nil {
			return err
		}

		s.log.Debug("Saved configuration")
		return nil
	})
}

// Export writes the configuration as JSON next to the source file and
// returns the written path.
func (s *Store) Export(ctx context.Context) (string, error) {
	target := ExportPath(s.path)
	if target == s.path {
		return "", errors.Wrapf(ErrConfigIO, "%s is already json", s.path)
	}

	err := s.withLock(ctx, func() error {
		c, err := Load(s.path)
		if err != nil {
			return err
		}
		return c.Save(target)
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	l, err := s.locks.Create(ctx, s.path+lockFileSuffix)
	if err != nil {
		return err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	if _, err := l.Acquire(acquireCtx); err != nil {
		return err
	}
	defer l.Unlock(context.Background())

	return fn()
}
