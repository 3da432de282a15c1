// Package checkout turns cart items into orders and reverses pending ones.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/lock"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/scheduler"
)

var (
	ErrEmptyCheckout      = apperr.New(apperr.Invalid, "EMPTY_CHECKOUT", "Checkout must contain at least one cart item per shop")
	ErrCheckoutInProgress = apperr.New(apperr.Conflict, "CHECKOUT_IN_PROGRESS", "A checkout with this idempotency key is still running")
)

type Store interface {
	LoadCartLines(ctx context.Context, userID int64, cartItemIDs []int64) ([]orders.CartLine, error)
	CreateCheckout(ctx context.Context, p orders.CheckoutParams) ([]orders.Order, error)
	CancelOrder(ctx context.Context, orderID, userID int64) (orders.Cancellation, error)
	CancelPayment(ctx context.Context, paymentID int64) (orders.Cancellation, error)
	ListOrders(ctx context.Context, userID int64, p orders.ListParams) (orders.OrderPage, error)
	GetOrder(ctx context.Context, userID, orderID int64) (orders.Order, error)
	GetPayment(ctx context.Context, paymentID int64) (orders.Payment, error)
	ListStalePayments(ctx context.Context, before time.Time, limit int) ([]int64, error)
}

// Publisher is the part of kafka.Producer used for domain events.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, key []byte, eventType string, v any) error
}

type OrderRequest struct {
	ShopID      int64           `json:"shopId" validate:"required,gt=0"`
	Receiver    orders.Receiver `json:"receiver" validate:"required"`
	CartItemIDs []int64         `json:"cartItemIds" validate:"required,min=1,dive,gt=0"`
}

type Service struct {
	Store       Store
	Locks       lock.Manager
	Scheduler   scheduler.Scheduler
	Events      Publisher   // optional
	Idempotency Idempotency // optional
	Log         *zap.Logger

	Now            func() time.Time
	LockTTL        time.Duration
	PaymentTimeout time.Duration
	ServiceName    string
}

// PlaceOrders creates one order per request group, all sharing one
// payment, and schedules that payment's auto-cancel. With a non-empty
// idempotency key a repeated call returns the orders of the first one.
func (s *Service) PlaceOrders(ctx context.Context, userID int64, reqs []OrderRequest, idemKey string) ([]orders.Order, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyCheckout
	}
	for _, r := range reqs {
		if len(r.CartItemIDs) == 0 {
			return nil, ErrEmptyCheckout
		}
	}
	if idemKey == "" || s.Idempotency == nil {
		return s.placeOrders(ctx, userID, reqs)
	}

	paymentID, started, err := s.Idempotency.Begin(ctx, userID, idemKey)
	if err != nil {
		return nil, err
	}
	if !started {
		if paymentID == 0 {
			return nil, ErrCheckoutInProgress
		}
		p, err := s.Store.GetPayment(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		return p.Orders, nil
	}

	created, err := s.placeOrders(ctx, userID, reqs)
	if err != nil {
		if aerr := s.Idempotency.Abort(context.WithoutCancel(ctx), userID, idemKey); aerr != nil {
			s.Log.Warn("clear idempotency key", zap.String("key", idemKey), zap.Error(aerr))
		}
		return nil, err
	}
	if ferr := s.Idempotency.Finish(context.WithoutCancel(ctx), userID, idemKey, created[0].PaymentID); ferr != nil {
		s.Log.Warn("store idempotency key", zap.String("key", idemKey), zap.Error(ferr))
	}
	return created, nil
}

func (s *Service) placeOrders(ctx context.Context, userID int64, reqs []OrderRequest) ([]orders.Order, error) {
	var ids []int64
	for _, r := range reqs {
		ids = append(ids, r.CartItemIDs...)
	}

	lines, err := s.Store.LoadCartLines(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	if len(lines) != len(ids) {
		return nil, fmt.Errorf("requested %d cart items, found %d: %w", len(ids), len(lines), orders.ErrCartItemNotFound)
	}
	byID := make(map[int64]orders.CartLine, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}

	decs := orders.Decrements(lines)
	for _, d := range decs {
		if d.Available < d.Quantity {
			return nil, fmt.Errorf("sku %d: %w", d.SKUID, orders.ErrOutOfStock)
		}
	}
	now := s.now()
	for _, l := range lines {
		if !l.Product.Purchasable(now) {
			return nil, fmt.Errorf("product %d: %w", l.Product.ID, orders.ErrProductNotFound)
		}
	}

	groups := make([]orders.CheckoutGroup, 0, len(reqs))
	for _, r := range reqs {
		g := orders.CheckoutGroup{ShopID: r.ShopID, Receiver: r.Receiver}
		for _, id := range r.CartItemIDs {
			l := byID[id]
			if l.SKU.CreatedByID != r.ShopID {
				return nil, fmt.Errorf("sku %d, shop %d: %w", l.SKU.ID, r.ShopID, orders.ErrSKUNotBelongToShop)
			}
			g.Lines = append(g.Lines, l)
		}
		groups = append(groups, g)
	}

	skuIDs := make([]int64, len(decs))
	for i, d := range decs {
		skuIDs[i] = d.SKUID
	}
	lk, err := s.Locks.Acquire(ctx, lock.SKUKeys(skuIDs), s.LockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.Locks.Release(context.WithoutCancel(ctx), lk); err != nil {
			s.Log.Warn("release sku locks", zap.Strings("keys", lk.Keys), zap.Error(err))
		}
	}()

	created, err := s.Store.CreateCheckout(ctx, orders.CheckoutParams{UserID: userID, Groups: groups, Stock: decs})
	if err != nil {
		return nil, err
	}
	paymentID := created[0].PaymentID
	log := s.Log.With(zap.Int64("payment_id", paymentID), zap.Int64("user_id", userID))

	if _, err := s.Scheduler.Schedule(ctx, paymentID, s.PaymentTimeout); err != nil {
		// committed already; the stale payment sweeper picks it up
		log.Error("schedule payment timeout", zap.Error(err))
	}

	var total int64
	orderIDs := make([]int64, 0, len(created))
	for _, o := range created {
		total += o.Total()
		orderIDs = append(orderIDs, o.ID)
	}
	s.publish(ctx, orders.TopicOrdersPlaced, orders.EventOrdersPlaced, paymentID, orders.OrdersPlacedPayload{
		PaymentID:   paymentID,
		UserID:      userID,
		OrderIDs:    orderIDs,
		TotalAmount: total,
	})
	log.Info("orders placed", zap.Int64s("order_ids", orderIDs), zap.Int64("total", total))
	return created, nil
}

// CancelOrder is the user path: the order must belong to userID and still
// await payment. The whole payment is cancelled with it.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID int64) (orders.Order, error) {
	c, err := s.Store.CancelOrder(ctx, orderID, userID)
	if err != nil {
		return orders.Order{}, err
	}
	s.afterCancel(ctx, c, orders.ReasonUserCancelled)
	o, _ := c.Find(orderID)
	return o, nil
}

// CancelPayment is the timeout path. It returns ErrPaymentAlreadyProcessed
// when the payment settled first.
func (s *Service) CancelPayment(ctx context.Context, paymentID int64) (orders.Cancellation, error) {
	c, err := s.Store.CancelPayment(ctx, paymentID)
	if err != nil {
		return orders.Cancellation{}, err
	}
	s.afterCancel(ctx, c, orders.ReasonPaymentTimeout)
	return c, nil
}

func (s *Service) afterCancel(ctx context.Context, c orders.Cancellation, reason string) {
	log := s.Log.With(zap.Int64("payment_id", c.PaymentID), zap.String("reason", reason))
	if err := s.Scheduler.Cancel(ctx, c.PaymentID); err != nil {
		// a late job re-checks the payment status and does nothing
		log.Warn("cancel payment timeout job", zap.Error(err))
	}
	s.publish(ctx, orders.TopicOrderCancelled, orders.EventOrderCancelled, c.PaymentID, orders.OrderCancelledPayload{
		PaymentID: c.PaymentID,
		OrderIDs:  c.OrderIDs(),
		Reason:    reason,
	})
	log.Info("orders cancelled", zap.Int64s("order_ids", c.OrderIDs()))
}

// HandleJob runs a fired cancel-payment job. A payment that is gone or
// already settled makes the job a no-op.
func (s *Service) HandleJob(ctx context.Context, job scheduler.Job) error {
	if job.Name != scheduler.JobCancelPayment {
		s.Log.Warn("unknown job", zap.String("job", job.Name), zap.String("job_id", job.ID))
		return nil
	}
	_, err := s.CancelPayment(ctx, job.Payload.PaymentID)
	if errors.Is(err, orders.ErrPaymentAlreadyProcessed) || errors.Is(err, orders.ErrPaymentNotFound) {
		s.Log.Debug("payment timeout no-op", zap.Int64("payment_id", job.Payload.PaymentID), zap.Error(err))
		return nil
	}
	return err
}

func (s *Service) ListOrders(ctx context.Context, userID int64, p orders.ListParams) (orders.OrderPage, error) {
	return s.Store.ListOrders(ctx, userID, p)
}

func (s *Service) GetOrder(ctx context.Context, userID, orderID int64) (orders.Order, error) {
	return s.Store.GetOrder(ctx, userID, orderID)
}

func (s *Service) publish(ctx context.Context, topic, eventType string, paymentID int64, payload any) {
	if s.Events == nil {
		return
	}
	env, err := orders.NewEnvelope(eventType, s.ServiceName, paymentID, payload)
	if err == nil {
		err = s.Events.PublishJSON(ctx, topic, orders.PartitionKey(paymentID), eventType, env)
	}
	if err != nil {
		s.Log.Warn("publish event", zap.String("event_type", eventType), zap.Int64("payment_id", paymentID), zap.Error(err))
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
