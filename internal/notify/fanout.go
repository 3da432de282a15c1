package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kfk "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
)

// Fanout consumes payment.notifications and forwards each event to the
// user's live channel. With Dedup set, a redelivered envelope (same
// event id) is forwarded only once.
type Fanout struct {
	Out   Notifier
	Dedup *redis.Client // optional
	Log   *zap.Logger
}

func (f *Fanout) Handle(ctx context.Context, m kafka.Message) error {
	var env orders.Envelope
	if err := kfk.UnmarshalEnvelope(m.Value, &env); err != nil {
		// poison message; committing it is the only way past it
		f.Log.Error("bad envelope", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventPaymentNotification {
		return nil
	}
	p, err := kfk.UnwrapPayload[orders.PaymentNotificationPayload](env.Payload)
	if err != nil {
		f.Log.Error("bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	key := fmt.Sprintf(redisx.KeyDedup, "fanout", env.EventID)
	if f.Dedup != nil && env.EventID != "" {
		first, err := f.Dedup.SetNX(ctx, key, "1", redisx.TTLDedup).Result()
		if err != nil {
			return err
		}
		if !first {
			f.Log.Debug("duplicate notification", zap.String("event_id", env.EventID))
			return nil
		}
	}

	if err := f.Out.Notify(ctx, p.UserID, Event{PaymentID: p.PaymentID, Status: p.Status, Message: p.Message}); err != nil {
		if f.Dedup != nil {
			// let the redelivery through
			_ = f.Dedup.Del(context.WithoutCancel(ctx), key).Err()
		}
		return err
	}
	return nil
}
