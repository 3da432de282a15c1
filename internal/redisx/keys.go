package redisx

import "time"

const (
	// Per-SKU inventory lock: lock:sku:{sku_id} -> owner token
	KeySKULock = "lock:sku:%d"

	// Checkout idempotency: idem:checkout:{user_id}:{key} -> "pending" | payment_id
	KeyIdemCheckout = "idem:checkout:%d:%s"

	// Delayed jobs per queue: zset of job ids scored by due time (unix ms)
	KeyJobsDelayed = "jobs:%s:delayed"
	// Job bodies per queue: hash job_id -> json
	KeyJobsData = "jobs:%s:data"

	// Per-user realtime channel: user:{user_id}:events
	KeyUserEvents = "user:%d:events"

	// Dedup event processing: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency        = 24 * time.Hour
	TTLIdempotencyPending = 30 * time.Second
	TTLDedup              = 48 * time.Hour
)
