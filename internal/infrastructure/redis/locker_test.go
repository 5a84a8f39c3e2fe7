package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := NewLocker(mr.Addr(), "", 0, ttl, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, mr
}

func TestLocker_LockAndRelease(t *testing.T) {
	l, mr := newTestLocker(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "ord-1")
	require.NoError(t, err)

	assert.True(t, mr.Exists(keyPrefix+"ord-1"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"ord-1"))

	unlock()
	assert.False(t, mr.Exists(keyPrefix+"ord-1"))
}

func TestLocker_ContendedLockRespectsContext(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "ord-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "ord-1")
	assert.ErrorIs(t, err, domain.ErrLockUnavailable)

	// Other orders are unaffected.
	unlockOther, err := l.Lock(context.Background(), "ord-2")
	require.NoError(t, err)
	unlockOther()

	unlock()
	unlock, err = l.Lock(context.Background(), "ord-1")
	require.NoError(t, err)
	unlock()
}

func TestLocker_WaiterAcquiresAfterRelease(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "ord-1")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		second, err := l.Lock(ctx, "ord-1")
		if err == nil {
			second()
		}
		acquired <- err
	}()

	time.Sleep(100 * time.Millisecond)
	unlock()

	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestLocker_ReleaseKeepsLeaseOfNewHolder(t *testing.T) {
	l, mr := newTestLocker(t, time.Second)

	stale, err := l.Lock(context.Background(), "ord-1")
	require.NoError(t, err)

	// The first lease expires and another holder takes over.
	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(keyPrefix+"ord-1"))

	current, err := l.Lock(context.Background(), "ord-1")
	require.NoError(t, err)
	token, err := mr.Get(keyPrefix + "ord-1")
	require.NoError(t, err)

	stale()
	got, err := mr.Get(keyPrefix + "ord-1")
	require.NoError(t, err)
	assert.Equal(t, token, got)

	current()
	assert.False(t, mr.Exists(keyPrefix+"ord-1"))
}

func TestNewLocker_UnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewLocker(addr, "", 0, time.Minute, zap.NewNop())
	assert.Error(t, err)
}
