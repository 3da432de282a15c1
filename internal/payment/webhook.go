package payment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

const TransactionDateLayout = "2006-01-02 15:04:05"

var (
	ErrCannotGetPaymentID     = apperr.New(apperr.Invalid, "CANNOT_GET_PAYMENT_ID", "Cannot get payment id")
	ErrInvalidTransactionDate = apperr.New(apperr.Invalid, "INVALID_TRANSACTION_DATE", "transactionDate must look like 2006-01-02 15:04:05")
	ErrAmountMismatch         = apperr.New(apperr.Invalid, "AMOUNT_MISMATCH", "Transfer amount does not match expected amount")
)

// Webhook is the gateway's transfer notification.
type Webhook struct {
	ID              int64               `json:"id" validate:"required,gt=0"`
	Gateway         string              `json:"gateway" validate:"required"`
	TransactionDate string              `json:"transactionDate" validate:"required"`
	AccountNumber   *string             `json:"accountNumber"`
	Code            *string             `json:"code"`
	Content         *string             `json:"content"`
	TransferType    orders.TransferType `json:"transferType" validate:"required,oneof=in out"`
	TransferAmount  Amount              `json:"transferAmount" validate:"gte=0"`
	Accumulated     Amount              `json:"accumulated"`
	SubAccount      *string             `json:"subAccount"`
	ReferenceCode   *string             `json:"referenceCode"`
	Description     string              `json:"description"`
}

// Transaction maps the webhook onto the stored row. The amount lands in
// AmountIn or AmountOut depending on the transfer direction.
func (w Webhook) Transaction(loc *time.Location) (orders.PaymentTransaction, error) {
	at, err := time.ParseInLocation(TransactionDateLayout, w.TransactionDate, loc)
	if err != nil {
		return orders.PaymentTransaction{}, fmt.Errorf("%q: %w", w.TransactionDate, ErrInvalidTransactionDate)
	}
	pt := orders.PaymentTransaction{
		ID:              w.ID,
		Gateway:         w.Gateway,
		TransactionDate: at,
		AccountNumber:   w.AccountNumber,
		SubAccount:      w.SubAccount,
		Accumulated:     int64(w.Accumulated),
		Code:            w.Code,
		Content:         w.Content,
		ReferenceNumber: w.ReferenceCode,
		Body:            w.Description,
	}
	switch w.TransferType {
	case orders.TransferIn:
		pt.AmountIn = int64(w.TransferAmount)
	case orders.TransferOut:
		pt.AmountOut = int64(w.TransferAmount)
	}
	return pt, nil
}

// ExtractPaymentID reads the digits right after prefix, trying code
// before content. "DH42" and "thanh toan DH42 shop" both give 42.
func ExtractPaymentID(code, content *string, prefix string) (int64, error) {
	for _, s := range []*string{code, content} {
		if s == nil {
			continue
		}
		if id, ok := idAfter(*s, prefix); ok {
			return id, nil
		}
	}
	return 0, ErrCannotGetPaymentID
}

func idAfter(s, prefix string) (int64, bool) {
	i := strings.Index(s, prefix)
	if i < 0 || prefix == "" {
		return 0, false
	}
	rest := s[i+len(prefix):]
	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(rest[:n], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// AmountMismatchError matches ErrAmountMismatch with errors.Is and keeps
// both amounts for the caller.
type AmountMismatchError struct {
	TransferAmount int64
	ExpectedAmount int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("Transfer amount %d does not match expected amount %d", e.TransferAmount, e.ExpectedAmount)
}

func (e *AmountMismatchError) Is(target error) bool  { return target == ErrAmountMismatch }
func (e *AmountMismatchError) Kind() apperr.Kind     { return apperr.Invalid }
func (e *AmountMismatchError) Code() string          { return ErrAmountMismatch.Code() }
func (e *AmountMismatchError) PublicMessage() string { return e.Error() }
