package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKeys(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "lock:plan:"+id.String(), PlanKey(id))
	assert.Equal(t, "lock:execution:"+id.String(), ExecutionKey(id))
	assert.NotEqual(t, PlanKey(id), ExecutionKey(id))
}

// exerciseSerialization runs read-modify-write cycles that would lose
// updates without mutual exclusion
func exerciseSerialization(t *testing.T, l Locker) {
	t.Helper()
	const workers = 20
	key := PlanKey(uuid.New())
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), key, func() error {
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, workers, counter)
}

func TestLocalLocker(t *testing.T) {
	t.Run("serializes holders of the same key", func(t *testing.T) {
		l := NewLocalLocker()
		exerciseSerialization(t, l)
		assert.Equal(t, 0, l.Held())
	})

	t.Run("propagates fn error and releases", func(t *testing.T) {
		l := NewLocalLocker()
		key := ExecutionKey(uuid.New())
		err := l.WithLock(context.Background(), key, func() error { return assert.AnError })
		assert.ErrorIs(t, err, assert.AnError)

		require.NoError(t, l.WithLock(context.Background(), key, func() error { return nil }))
	})

	t.Run("cancelled wait is lock unavailable", func(t *testing.T) {
		l := NewLocalLocker()
		key := PlanKey(uuid.New())
		held := make(chan struct{})
		release := make(chan struct{})
		go func() {
			_ = l.WithLock(context.Background(), key, func() error {
				close(held)
				<-release
				return nil
			})
		}()
		<-held

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := l.WithLock(ctx, key, func() error { return nil })
		close(release)

		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.CodeLockUnavailable))
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		l := NewLocalLocker()
		a, b := PlanKey(uuid.New()), PlanKey(uuid.New())
		err := l.WithLock(context.Background(), a, func() error {
			return l.WithLock(context.Background(), b, func() error { return nil })
		})
		assert.NoError(t, err)
	})
}

func newTestRedisLocker(t *testing.T, opts Options) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, opts, zap.NewNop()), mr
}

func TestRedisLocker(t *testing.T) {
	t.Run("runs fn and releases the key", func(t *testing.T) {
		l, mr := newTestRedisLocker(t, Options{})
		key := ExecutionKey(uuid.New())

		ran := false
		err := l.WithLock(context.Background(), key, func() error {
			ran = true
			assert.True(t, mr.Exists(key))
			return nil
		})

		require.NoError(t, err)
		assert.True(t, ran)
		assert.False(t, mr.Exists(key))
	})

	t.Run("serializes holders of the same key", func(t *testing.T) {
		l, _ := newTestRedisLocker(t, Options{Tries: 200, RetryDelay: 5 * time.Millisecond})
		exerciseSerialization(t, l)
	})

	t.Run("held key is lock unavailable after retries", func(t *testing.T) {
		l, mr := newTestRedisLocker(t, Options{Tries: 2, RetryDelay: 5 * time.Millisecond})
		key := PlanKey(uuid.New())
		require.NoError(t, mr.Set(key, "someone-else"))

		called := false
		err := l.WithLock(context.Background(), key, func() error {
			called = true
			return nil
		})

		require.Error(t, err)
		assert.False(t, called)
		assert.True(t, shared.IsKind(err, shared.CodeLockUnavailable))
	})

	t.Run("fn error is returned unchanged", func(t *testing.T) {
		l, _ := newTestRedisLocker(t, Options{})
		sentinel := errors.New("save failed")
		err := l.WithLock(context.Background(), PlanKey(uuid.New()), func() error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
	})
}
