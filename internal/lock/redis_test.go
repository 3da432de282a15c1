package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, wait time.Duration) (*RedisManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	m := NewRedisManager(rdb, wait)
	m.Backoff = 5 * time.Millisecond
	return m, mr
}

func TestSKUKeys_SortedAndDistinct(t *testing.T) {
	assert.Equal(t, []string{"lock:sku:2", "lock:sku:7", "lock:sku:10"}, SKUKeys([]int64{10, 2, 7, 2, 10}))
	assert.Empty(t, SKUKeys(nil))
}

func TestAcquireRelease(t *testing.T) {
	m, mr := newManager(t, 50*time.Millisecond)
	ctx := context.Background()

	l, err := m.Acquire(ctx, SKUKeys([]int64{1, 2}), time.Second)
	require.NoError(t, err)
	assert.Len(t, l.Keys, 2)
	got, err := mr.Get("lock:sku:1")
	require.NoError(t, err)
	assert.Equal(t, l.Token, got)

	require.NoError(t, m.Release(ctx, l))
	assert.False(t, mr.Exists("lock:sku:1"))
	assert.False(t, mr.Exists("lock:sku:2"))
}

func TestAcquire_TimesOutAndRollsBack(t *testing.T) {
	m, mr := newManager(t, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, mr.Set("lock:sku:2", "someone-else"))

	_, err := m.Acquire(ctx, SKUKeys([]int64{1, 2}), time.Second)
	require.ErrorIs(t, err, ErrLockTimeout)

	// key 1 was taken before key 2 failed and must not leak
	assert.False(t, mr.Exists("lock:sku:1"))
	got, _ := mr.Get("lock:sku:2")
	assert.Equal(t, "someone-else", got)
}

func TestRelease_DoesNotDeleteForeignOwner(t *testing.T) {
	m, mr := newManager(t, 30*time.Millisecond)
	ctx := context.Background()

	l, err := m.Acquire(ctx, SKUKeys([]int64{5}), time.Second)
	require.NoError(t, err)

	// lock expired and was re-taken by another checkout
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:sku:5", "other-token"))

	require.NoError(t, m.Release(ctx, l))
	got, _ := mr.Get("lock:sku:5")
	assert.Equal(t, "other-token", got)
}

func TestRelease_ExpiredIsNotAnError(t *testing.T) {
	m, mr := newManager(t, 30*time.Millisecond)
	ctx := context.Background()

	l, err := m.Acquire(ctx, SKUKeys([]int64{9}), 100*time.Millisecond)
	require.NoError(t, err)
	mr.FastForward(time.Second)

	assert.NoError(t, m.Release(ctx, l))
	assert.NoError(t, m.Release(ctx, nil))
}

func TestAcquire_MutualExclusion(t *testing.T) {
	m, _ := newManager(t, 2*time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := m.Acquire(ctx, SKUKeys([]int64{3, 4}), time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, m.Release(ctx, l))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}
