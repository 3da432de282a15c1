package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

// Sweeper cancels payments that stayed PENDING well past their timeout.
// It covers payments whose scheduled job was never enqueued or got lost.
type Sweeper struct {
	Service  *Service
	Interval time.Duration
	// Age is how old a PENDING payment must be; keep it above the
	// payment timeout so the scheduled job normally wins.
	Age   time.Duration
	Batch int
}

func (sw *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(sw.Interval)
	defer t.Stop()
	log := sw.Service.Log
	log.Info("payment sweeper started", zap.Duration("interval", sw.Interval), zap.Duration("age", sw.Age))

	for {
		select {
		case <-ctx.Done():
			log.Info("payment sweeper stopped")
			return
		case <-t.C:
			n, err := sw.SweepOnce(ctx)
			if err != nil {
				log.Error("sweep stale payments", zap.Error(err))
			}
			if n > 0 {
				log.Info("stale payments cancelled", zap.Int("count", n))
			}
		}
	}
}

// SweepOnce cancels one batch of stale payments and returns how many it
// cancelled. Payments that settled in the meantime are skipped. A payment
// that fails to cancel does not hold up the rest of the batch; the failures
// are joined into the returned error.
func (sw *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	batch := sw.Batch
	if batch <= 0 {
		batch = 100
	}
	ids, err := sw.Service.Store.ListStalePayments(ctx, sw.Service.now().Add(-sw.Age), batch)
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, id := range ids {
		_, err := sw.Service.CancelPayment(ctx, id)
		switch {
		case err == nil:
			n++
		case errors.Is(err, orders.ErrPaymentAlreadyProcessed):
		default:
			sw.Service.Log.Warn("cancel stale payment", zap.Int64("payment_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("payment %d: %w", id, err))
		}
	}
	return n, errors.Join(errs...)
}
