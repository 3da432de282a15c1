package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (r *Repo) PaymentTransactionExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payment_transactions WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// ConfirmPayment records the gateway transaction and moves the payment to
// SUCCESS and its PENDING_PAYMENT orders to PENDING_PICKUP, all in one
// transaction. The transaction id primary key makes a replayed webhook fail
// with ErrPaymentTransactionAlreadyExists.
func (r *Repo) ConfirmPayment(ctx context.Context, pt PaymentTransaction, paymentID int64) ([]Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO payment_transactions(id, gateway, transaction_date, account_number, sub_account,
			amount_in, amount_out, accumulated, code, transaction_content, reference_number, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pt.ID, pt.Gateway, pt.TransactionDate, pt.AccountNumber, pt.SubAccount,
		pt.AmountIn, pt.AmountOut, pt.Accumulated, pt.Code, pt.Content, pt.ReferenceNumber, pt.Body,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("transaction %d: %w", pt.ID, ErrPaymentTransactionAlreadyExists)
		}
		return nil, err
	}

	status, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if status.Terminal() {
		return nil, ErrPaymentAlreadyProcessed
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`,
		paymentID, string(PaymentSuccess),
	); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE payment_id = $1 AND status = $3 AND deleted_at IS NULL
		RETURNING `+orderColumns,
		paymentID, string(StatusPendingPickup), string(StatusPendingPayment))
	if err != nil {
		return nil, err
	}
	confirmed, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}
	if err := attachItems(ctx, tx, confirmed); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return confirmed, nil
}

// lockPayment takes the payment row lock. Every writer that touches a
// payment's orders or stock goes through it first.
func lockPayment(ctx context.Context, tx pgx.Tx, paymentID int64) (PaymentStatus, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1 FOR UPDATE`, paymentID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrPaymentNotFound
	}
	if err != nil {
		return "", err
	}
	return PaymentStatus(status), nil
}
