package file

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solfarm/multisig-cli/pkg/lock"
)

func TestLock(t *testing.T) {
	for _, tc := range []struct {
		name string
		f    func(t *testing.T, path string)
	}{
		{name: "Happy", f: testHappy},
		{name: "Reentrant", f: testReentrant},
		{name: "MultipleManagers", f: testMultipleManagers},
		{name: "DoubleAcquire", f: testDoubleAcquire},
		{name: "DoubleUnlock", f: testDoubleUnlock},
		{name: "With", f: testWith},
		{name: "Cancelled", f: testCancelled},
		{name: "ManagerNotBlocked", f: testManagerNotBlocked},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tc.f(t, filepath.Join(t.TempDir(), "config.yaml.lock"))
		})
	}
}

func testHappy(t *testing.T, path string) {
	m := NewLockManager(time.Millisecond)

	l, err := m.Create(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, l.IsLocked())

	lostCh, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, l.IsLocked())

	require.NoError(t, l.Unlock(context.Background()))
	assert.False(t, l.IsLocked())

	select {
	case <-lostCh:
	default:
		t.Fatal("lost channel should be closed after unlock")
	}
}

func testReentrant(t *testing.T, path string) {
	m := NewLockManager(time.Millisecond)

	outer, err := m.Create(context.Background(), path)
	require.NoError(t, err)
	inner, err := m.Create(context.Background(), path)
	require.NoError(t, err)

	outerLost, err := outer.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = inner.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, inner.Unlock(context.Background()))
	select {
	case <-outerLost:
		t.Fatal("outer lock released early")
	default:
	}

	require.NoError(t, outer.Unlock(context.Background()))
	<-outerLost
}

func testMultipleManagers(t *testing.T, path string) {
	m1 := NewLockManager(time.Millisecond)
	m2 := NewLockManager(time.Millisecond)

	l1, err := m1.Create(context.Background(), path)
	require.NoError(t, err)
	l2, err := m2.Create(context.Background(), path)
	require.NoError(t, err)

	_, err = l1.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l2.Acquire(ctx)
	assert.ErrorIs(t, err, lock.ErrLockTimeout)
	assert.False(t, l2.IsLocked())

	require.NoError(t, l1.Unlock(context.Background()))

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = l2.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, l2.Unlock(context.Background()))
}

func testDoubleAcquire(t *testing.T, path string) {
	m := NewLockManager(time.Millisecond)

	l, err := m.Create(context.Background(), path)
	require.NoError(t, err)

	_, err = l.Acquire(context.Background())
	require.NoError(t, err)
	_, err = l.Acquire(context.Background())
	assert.Error(t, err)

	require.NoError(t, l.Unlock(context.Background()))
}

func testDoubleUnlock(t *testing.T, path string) {
	m := NewLockManager(time.Millisecond)

	l, err := m.Create(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, l.Unlock(context.Background()))

	_, err = l.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, l.Unlock(context.Background()))
	require.NoError(t, l.Unlock(context.Background()))
}

func testWith(t *testing.T, path string) {
	m := NewLockManager(time.Millisecond)

	var called bool
	err := lock.With(context.Background(), m, path, func() error {
		called = true

		other := NewLockManager(time.Millisecond)
		l, err := other.Create(context.Background(), path)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = l.Acquire(ctx)
		assert.ErrorIs(t, err, lock.ErrLockTimeout)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	_, err = m.Create(context.Background(), "")
	assert.Error(t, err)
}

func testCancelled(t *testing.T, path string) {
	holder, err := NewLockManager(time.Millisecond).Create(context.Background(), path)
	require.NoError(t, err)
	_, err = holder.Acquire(context.Background())
	require.NoError(t, err)
	defer holder.Unlock(context.Background())

	l, err := NewLockManager(time.Millisecond).Create(context.Background(), path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, lock.ErrLockTimeout)
	assert.False(t, l.IsLocked())
}

func testManagerNotBlocked(t *testing.T, path string) {
	holder, err := NewLockManager(time.Millisecond).Create(context.Background(), path)
	require.NoError(t, err)
	_, err = holder.Acquire(context.Background())
	require.NoError(t, err)
	defer holder.Unlock(context.Background())

	m := NewLockManager(time.Millisecond)
	waiting, err := m.Create(context.Background(), path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := waiting.Acquire(ctx)
		done <- err
	}()

	// A contended path must not stall other paths of the same manager.
	other, err := m.Create(context.Background(), path+".other")
	require.NoError(t, err)

	otherCtx, otherCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer otherCancel()
	_, err = other.Acquire(otherCtx)
	require.NoError(t, err)
	require.NoError(t, other.Unlock(context.Background()))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
