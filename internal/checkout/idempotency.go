package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
)

// Idempotency remembers which payment a client-supplied key produced.
type Idempotency interface {
	// Begin claims the key. When started is false the key was claimed
	// before: paymentID is its result, or 0 while that call still runs.
	Begin(ctx context.Context, userID int64, key string) (paymentID int64, started bool, err error)
	Finish(ctx context.Context, userID int64, key string, paymentID int64) error
	Abort(ctx context.Context, userID int64, key string) error
}

const idemPending = "pending"

type RedisIdempotency struct {
	rdb        *redis.Client
	PendingTTL time.Duration
	TTL        time.Duration
}

func NewRedisIdempotency(rdb *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{rdb: rdb, PendingTTL: redisx.TTLIdempotencyPending, TTL: redisx.TTLIdempotency}
}

func idemKey(userID int64, key string) string { return fmt.Sprintf(redisx.KeyIdemCheckout, userID, key) }

func (r *RedisIdempotency) Begin(ctx context.Context, userID int64, key string) (int64, bool, error) {
	k := idemKey(userID, key)
	ok, err := r.rdb.SetNX(ctx, k, idemPending, r.PendingTTL).Result()
	if err != nil {
		return 0, false, err
	}
	if ok {
		return 0, true, nil
	}

	v, err := r.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; let the caller retry
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if v == idemPending {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency key %s: %w", k, err)
	}
	return id, false, nil
}

func (r *RedisIdempotency) Finish(ctx context.Context, userID int64, key string, paymentID int64) error {
	return r.rdb.Set(ctx, idemKey(userID, key), paymentID, r.TTL).Err()
}

func (r *RedisIdempotency) Abort(ctx context.Context, userID int64, key string) error {
	return r.rdb.Del(ctx, idemKey(userID, key)).Err()
}
