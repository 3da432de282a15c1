// Package notify delivers payment outcomes to the paying user's live
// connections. The API publishes to Kafka keyed by user id; the worker
// fans each event out to the user's Redis channel, which SSE handlers
// subscribe to.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
)

type Event struct {
	PaymentID int64                `json:"paymentId"`
	Status    orders.PaymentStatus `json:"status"`
	Message   string               `json:"message"`
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, e Event) error
}

// Publisher is the part of kafka.Producer the notifier needs.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, key []byte, eventType string, v any) error
}

type KafkaNotifier struct {
	Pub      Publisher
	Producer string
}

func (n *KafkaNotifier) Notify(ctx context.Context, userID int64, e Event) error {
	env, err := orders.NewEnvelope(orders.EventPaymentNotification, n.Producer, e.PaymentID, orders.PaymentNotificationPayload{
		UserID:    userID,
		PaymentID: e.PaymentID,
		Status:    e.Status,
		Message:   e.Message,
	})
	if err != nil {
		return err
	}
	return n.Pub.PublishJSON(ctx, orders.TopicPaymentNotifications, orders.PartitionKey(userID), env.EventType, env)
}

// RedisNotifier publishes straight to the user's channel.
type RedisNotifier struct{ rdb *redis.Client }

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier { return &RedisNotifier{rdb: rdb} }

func (n *RedisNotifier) Notify(ctx context.Context, userID int64, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, Channel(userID), b).Err()
}

func Channel(userID int64) string { return fmt.Sprintf(redisx.KeyUserEvents, userID) }
