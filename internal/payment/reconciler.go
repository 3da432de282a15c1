// Package payment settles pending payments from gateway webhooks.
package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/notify"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/scheduler"
)

type Store interface {
	PaymentTransactionExists(ctx context.Context, id int64) (bool, error)
	GetPayment(ctx context.Context, paymentID int64) (orders.Payment, error)
	ConfirmPayment(ctx context.Context, pt orders.PaymentTransaction, paymentID int64) ([]orders.Order, error)
}

type Reconciler struct {
	Store     Store
	Scheduler scheduler.Scheduler
	Notifier  notify.Notifier
	Log       *zap.Logger

	CodePrefix string
	// Location interprets the gateway's zone-less transactionDate.
	Location *time.Location
}

// Receive applies one webhook. Every rejection happens before any write;
// the final confirmation re-checks duplicates and payment state inside
// its own transaction.
func (r *Reconciler) Receive(ctx context.Context, w Webhook) error {
	log := r.Log.With(zap.Int64("transaction_id", w.ID), zap.String("gateway", w.Gateway))

	exists, err := r.Store.PaymentTransactionExists(ctx, w.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("transaction %d: %w", w.ID, orders.ErrPaymentTransactionAlreadyExists)
	}

	paymentID, err := ExtractPaymentID(w.Code, w.Content, r.CodePrefix)
	if err != nil {
		return err
	}
	log = log.With(zap.Int64("payment_id", paymentID))

	p, err := r.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Status != orders.PaymentPending {
		return orders.ErrPaymentAlreadyProcessed
	}
	if transfer, expected := int64(w.TransferAmount), p.Total(); transfer != expected {
		log.Warn("amount mismatch", zap.Int64("transfer", transfer), zap.Int64("expected", expected))
		return &AmountMismatchError{TransferAmount: transfer, ExpectedAmount: expected}
	}

	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	pt, err := w.Transaction(loc)
	if err != nil {
		return err
	}
	confirmed, err := r.Store.ConfirmPayment(ctx, pt, paymentID)
	if err != nil {
		return err
	}
	log.Info("payment confirmed", zap.Int("orders", len(confirmed)))

	if err := r.Scheduler.Cancel(ctx, paymentID); err != nil {
		// the job re-checks status when it fires
		log.Warn("cancel payment timeout job", zap.Error(err))
	}

	if len(p.Orders) == 0 {
		return nil
	}
	ev := notify.Event{PaymentID: paymentID, Status: orders.PaymentSuccess, Message: "Payment received successfully"}
	if err := r.Notifier.Notify(ctx, p.Orders[0].UserID, ev); err != nil {
		log.Error("notify payment success", zap.Error(err))
	}
	return nil
}
