package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// compare-and-delete: only the owner token may release
var releaseScript = redis.NewScript(`
local n = 0
for i, k in ipairs(KEYS) do
  if redis.call("GET", k) == ARGV[1] then
    n = n + redis.call("DEL", k)
  end
end
return n
`)

type RedisManager struct {
	rdb *redis.Client

	// Wait bounds how long Acquire keeps retrying a contended key.
	Wait    time.Duration
	Backoff time.Duration
}

func NewRedisManager(rdb *redis.Client, wait time.Duration) *RedisManager {
	return &RedisManager{rdb: rdb, Wait: wait, Backoff: 25 * time.Millisecond}
}

// Acquire takes every key or none. Keys are taken in the given order; pass
// the output of SKUKeys. A key still held by another owner after Wait
// yields ErrLockTimeout and the keys taken so far are released.
func (m *RedisManager) Acquire(ctx context.Context, keys []string, ttl time.Duration) (*Lock, error) {
	l := &Lock{Token: uuid.NewString()}
	deadline := time.Now().Add(m.Wait)

	for _, k := range keys {
		if err := m.acquireOne(ctx, k, l.Token, ttl, deadline); err != nil {
			if len(l.Keys) > 0 {
				// the caller's ctx may be the reason we failed
				_ = m.Release(context.WithoutCancel(ctx), l)
			}
			return nil, err
		}
		l.Keys = append(l.Keys, k)
	}
	return l, nil
}

func (m *RedisManager) acquireOne(ctx context.Context, key, token string, ttl time.Duration, deadline time.Time) error {
	for {
		ok, err := m.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Add(m.Backoff).Before(deadline) {
			return ErrLockTimeout
		}
		t := time.NewTimer(m.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Release deletes the keys still owned by l. Keys that already expired
// are skipped silently.
func (m *RedisManager) Release(ctx context.Context, l *Lock) error {
	if l == nil || len(l.Keys) == 0 {
		return nil
	}
	err := releaseScript.Run(ctx, m.rdb, l.Keys, l.Token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
