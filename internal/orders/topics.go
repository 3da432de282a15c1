package orders

import "strconv"

const (
	TopicOrdersPlaced         = "order.placed"
	TopicOrderCancelled       = "order.cancelled"
	TopicPaymentNotifications = "payment.notifications"
)

// PartitionKey keeps every event of one payment (or one user room) on the
// same partition so consumers see them in order.
func PartitionKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }
