package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
)

// claimScript pops up to ARGV[2] jobs due at or before ARGV[1] (unix ms).
// Popping and reading happen in one script so two workers never run the
// same job.
var claimScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
local out = {}
for _, id in ipairs(ids) do
  redis.call("ZREM", KEYS[1], id)
  local body = redis.call("HGET", KEYS[2], id)
  if body then
    redis.call("HDEL", KEYS[2], id)
    table.insert(out, body)
  end
end
return out
`)

type RedisScheduler struct {
	rdb     *redis.Client
	delayed string
	data    string
	now     func() time.Time
}

func NewRedisScheduler(rdb *redis.Client, queue string) *RedisScheduler {
	return &RedisScheduler{
		rdb:     rdb,
		delayed: fmt.Sprintf(redisx.KeyJobsDelayed, queue),
		data:    fmt.Sprintf(redisx.KeyJobsData, queue),
		now:     time.Now,
	}
}

// Schedule enqueues a cancel-payment job. Scheduling the same payment again
// replaces the earlier job.
func (s *RedisScheduler) Schedule(ctx context.Context, paymentID int64, delay time.Duration) (string, error) {
	job := Job{
		ID:      JobID(paymentID),
		Name:    JobCancelPayment,
		Payload: Payload{PaymentID: paymentID},
		DueAt:   s.now().Add(delay),
	}
	return job.ID, s.put(ctx, job)
}

func (s *RedisScheduler) put(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.data, job.ID, b)
		p.ZAdd(ctx, s.delayed, redis.Z{Score: float64(job.DueAt.UnixMilli()), Member: job.ID})
		return nil
	})
	return err
}

// Cancel removes the payment's job. A missing job is not an error.
func (s *RedisScheduler) Cancel(ctx context.Context, paymentID int64) error {
	id := JobID(paymentID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, s.delayed, id)
		p.HDel(ctx, s.data, id)
		return nil
	})
	return err
}

// Claim removes and returns at most limit jobs that are due.
func (s *RedisScheduler) Claim(ctx context.Context, limit int) ([]Job, error) {
	now := strconv.FormatInt(s.now().UnixMilli(), 10)
	bodies, err := claimScript.Run(ctx, s.rdb, []string{s.delayed, s.data}, now, limit).StringSlice()
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(bodies))
	for _, b := range bodies {
		var j Job
		if err := json.Unmarshal([]byte(b), &j); err != nil {
			return jobs, fmt.Errorf("decode job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Retry puts a failed job back with its attempt count bumped.
func (s *RedisScheduler) Retry(ctx context.Context, job Job, delay time.Duration) error {
	job.Attempts++
	job.DueAt = s.now().Add(delay)
	return s.put(ctx, job)
}

// Pending returns the ids of jobs not yet claimed.
func (s *RedisScheduler) Pending(ctx context.Context) ([]string, error) {
	return s.rdb.ZRange(ctx, s.delayed, 0, -1).Result()
}
