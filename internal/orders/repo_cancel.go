package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// CancelOrder cancels a user's PENDING_PAYMENT order. Orders sharing a
// payment are settled together, so every pending sibling is cancelled, its
// stock restored and the payment marked FAILED.
func (r *Repo) CancelOrder(ctx context.Context, orderID, userID int64) (Cancellation, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Cancellation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var paymentID int64
	var status string
	err = tx.QueryRow(ctx, `
		SELECT payment_id, status FROM orders
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, orderID, userID,
	).Scan(&paymentID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cancellation{}, ErrOrderNotFound
	}
	if err != nil {
		return Cancellation{}, err
	}
	if !CanTransition(OrderStatus(status), StatusCancelled) {
		return Cancellation{}, ErrCannotCancelOrder
	}

	pstatus, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return Cancellation{}, err
	}
	// re-read under the payment lock; a webhook may have confirmed it meanwhile
	if err := tx.QueryRow(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID,
	).Scan(&status); err != nil {
		return Cancellation{}, err
	}
	if !CanTransition(OrderStatus(status), StatusCancelled) || pstatus.Terminal() {
		return Cancellation{}, ErrCannotCancelOrder
	}

	c, err := compensate(ctx, tx, paymentID, &userID)
	if err != nil {
		return Cancellation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Cancellation{}, err
	}
	return c, nil
}

// CancelPayment is the timeout path: if the payment is still PENDING its
// orders are cancelled, their stock restored and the payment marked FAILED.
// A payment that already settled yields ErrPaymentAlreadyProcessed.
func (r *Repo) CancelPayment(ctx context.Context, paymentID int64) (Cancellation, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Cancellation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	status, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return Cancellation{}, err
	}
	if status.Terminal() {
		return Cancellation{}, ErrPaymentAlreadyProcessed
	}

	c, err := compensate(ctx, tx, paymentID, nil)
	if err != nil {
		return Cancellation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Cancellation{}, err
	}
	return c, nil
}

// compensate must run with the payment row locked.
func compensate(ctx context.Context, tx pgx.Tx, paymentID int64, actor *int64) (Cancellation, error) {
	rows, err := tx.Query(ctx, `
		UPDATE orders SET status = $2, updated_by_id = COALESCE($4, updated_by_id), updated_at = now()
		WHERE payment_id = $1 AND status = $3 AND deleted_at IS NULL
		RETURNING `+orderColumns,
		paymentID, string(StatusCancelled), string(StatusPendingPayment), actor)
	if err != nil {
		return Cancellation{}, err
	}
	cancelled, err := collectOrders(rows)
	if err != nil {
		return Cancellation{}, err
	}
	if err := attachItems(ctx, tx, cancelled); err != nil {
		return Cancellation{}, err
	}

	var items []ProductSKUSnapshot
	for _, o := range cancelled {
		items = append(items, o.Items...)
	}
	for _, rs := range Restorations(items) {
		if _, err := tx.Exec(ctx, `
			UPDATE skus SET stock = stock + $2, updated_at = clock_timestamp()
			WHERE id = $1`, rs.SKUID, rs.Quantity); err != nil {
			return Cancellation{}, err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`,
		paymentID, string(PaymentFailed),
	); err != nil {
		return Cancellation{}, err
	}
	return Cancellation{PaymentID: paymentID, Orders: cancelled}, nil
}

// ListStalePayments returns PENDING payments created before the cutoff,
// oldest first.
func (r *Repo) ListStalePayments(ctx context.Context, before time.Time, limit int) ([]int64, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id FROM payments
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at, id
		LIMIT $3`, string(PaymentPending), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
