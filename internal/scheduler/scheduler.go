// Package scheduler runs cancel-payment jobs after a delay. Jobs live in
// Redis so they survive API restarts and are executed by cmd/worker.
package scheduler

import (
	"context"
	"fmt"
	"time"
)

const (
	QueuePayment        = "payment"
	JobCancelPayment    = "cancel-payment"
	jobIDPaymentPattern = "payment-id-%d"
)

type Payload struct {
	PaymentID int64 `json:"paymentId"`
}

type Job struct {
	ID       string    `json:"jobId"`
	Name     string    `json:"name"`
	Payload  Payload   `json:"payload"`
	DueAt    time.Time `json:"dueAt"`
	Attempts int       `json:"attempts"`
}

// JobID is deterministic so a payment has at most one pending job and can
// be cancelled knowing only its id.
func JobID(paymentID int64) string { return fmt.Sprintf(jobIDPaymentPattern, paymentID) }

type Scheduler interface {
	Schedule(ctx context.Context, paymentID int64, delay time.Duration) (string, error)
	Cancel(ctx context.Context, paymentID int64) error
}
