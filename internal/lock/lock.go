// Package lock serializes checkouts that touch the same SKUs.
package lock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
)

var ErrLockTimeout = apperr.New(apperr.Unavailable, "LOCK_TIMEOUT", "Inventory is busy, please retry")

// Lock is a held set of keys. Token identifies the owner so that a lock
// which expired and was re-taken by someone else is never deleted.
type Lock struct {
	Keys  []string
	Token string
}

type Manager interface {
	Acquire(ctx context.Context, keys []string, ttl time.Duration) (*Lock, error)
	Release(ctx context.Context, l *Lock) error
}

// SKUKeys returns the distinct lock keys for the given SKUs in ascending id
// order. Every caller acquiring in this order rules out lock cycles.
func SKUKeys(skuIDs []int64) []string {
	ids := make([]int64, 0, len(skuIDs))
	seen := make(map[int64]bool, len(skuIDs))
	for _, id := range skuIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = fmt.Sprintf(redisx.KeySKULock, id)
	}
	return keys
}
