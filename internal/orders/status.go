package orders

type OrderStatus string

const (
	StatusPendingPayment  OrderStatus = "PENDING_PAYMENT"
	StatusPendingPickup   OrderStatus = "PENDING_PICKUP"
	StatusPendingDelivery OrderStatus = "PENDING_DELIVERY"
	StatusDelivered       OrderStatus = "DELIVERED"
	StatusReturned        OrderStatus = "RETURNED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPendingPayment:  {StatusPendingPickup: true, StatusCancelled: true},
	StatusPendingPickup:   {StatusPendingDelivery: true},
	StatusPendingDelivery: {StatusDelivered: true},
	StatusDelivered:       {StatusReturned: true},
	StatusReturned:        {},
	StatusCancelled:       {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

func (s OrderStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Terminal payment states are never left again.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

type TransferType string

const (
	TransferIn  TransferType = "in"
	TransferOut TransferType = "out"
)
