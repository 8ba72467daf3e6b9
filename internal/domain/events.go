package domain

import "time"

// Routing keys published to the order/payment topic exchange.
const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
	EventOrderShipped   = "order.shipped"

	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"

	EventNotifyOrderConfirmation = "notification.order_confirmation"
)

type OrderEvent struct {
	OrderID    string      `json:"orderId"`
	BuyerID    string      `json:"buyerId"`
	Status     OrderStatus `json:"status"`
	Total      int64       `json:"total"`
	Reason     string      `json:"reason,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

type PaymentEvent struct {
	PaymentID   string        `json:"paymentId"`
	OrderID     string        `json:"orderId"`
	Amount      int64         `json:"amount"`
	Status      PaymentStatus `json:"status"`
	ProviderRef string        `json:"providerRef,omitempty"`
	OccurredAt  time.Time     `json:"occurredAt"`
}

// NotificationRequest is handed to the notification fan-out service; delivery
// is fire-and-forget from the saga's point of view.
type NotificationRequest struct {
	Template   string    `json:"template"`
	BuyerID    string    `json:"buyerId"`
	OrderID    string    `json:"orderId"`
	OccurredAt time.Time `json:"occurredAt"`
}
