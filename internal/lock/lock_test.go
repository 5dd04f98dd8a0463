package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisLocker(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisLocker(client, 30*time.Second, zap.NewNop())
}

func TestRedisLocker_Exclusive(t *testing.T) {
	mr, l := setupRedisLocker(t)

	release, err := l.Lock(context.Background(), "elder-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("risk:lock:elder-1"))
	assert.Equal(t, 30*time.Second, mr.TTL("risk:lock:elder-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "elder-1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	// other subjects are independent
	releaseOther, err := l.Lock(context.Background(), "elder-2")
	require.NoError(t, err)
	releaseOther()

	release()
	release()
	assert.False(t, mr.Exists("risk:lock:elder-1"))

	release, err = l.Lock(context.Background(), "elder-1")
	require.NoError(t, err)
	release()
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	mr, l := setupRedisLocker(t)

	staleRelease, err := l.Lock(context.Background(), "cg-1")
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)
	require.False(t, mr.Exists("risk:lock:cg-1"))

	release, err := l.Lock(context.Background(), "cg-1")
	require.NoError(t, err)

	staleRelease()
	assert.True(t, mr.Exists("risk:lock:cg-1"), "stale holder must not delete the new lock")
	release()
	assert.False(t, mr.Exists("risk:lock:cg-1"))
}

func TestRedisLocker_RequiresSubject(t *testing.T) {
	_, l := setupRedisLocker(t)
	_, err := l.Lock(context.Background(), "")
	assert.Error(t, err)
}

func TestMemoryLocker_Serialises(t *testing.T) {
	l := NewMemoryLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), "elder-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestMemoryLocker_ContextCancel(t *testing.T) {
	l := NewMemoryLocker()
	release, err := l.Lock(context.Background(), "elder-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "elder-1")
	assert.ErrorIs(t, err, ErrNotAcquired)
}
