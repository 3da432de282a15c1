package orders

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrdersPlaced        = "OrdersPlaced"
	EventOrderCancelled      = "OrderCancelled"
	EventPaymentNotification = "PaymentNotification"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // payment id
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer string, paymentID int64, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: strconv.FormatInt(paymentID, 10),
		Payload:       b,
	}, nil
}

type OrdersPlacedPayload struct {
	PaymentID   int64   `json:"payment_id"`
	UserID      int64   `json:"user_id"`
	OrderIDs    []int64 `json:"order_ids"`
	TotalAmount int64   `json:"total_amount"`
}

type OrderCancelledPayload struct {
	PaymentID int64   `json:"payment_id"`
	OrderIDs  []int64 `json:"order_ids"`
	Reason    string  `json:"reason"` // USER_CANCELLED | PAYMENT_TIMEOUT
}

type PaymentNotificationPayload struct {
	UserID    int64         `json:"user_id"`
	PaymentID int64         `json:"payment_id"`
	Status    PaymentStatus `json:"status"`
	Message   string        `json:"message"`
}

const (
	ReasonUserCancelled  = "USER_CANCELLED"
	ReasonPaymentTimeout = "PAYMENT_TIMEOUT"
)
