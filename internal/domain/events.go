package domain

import "time"

const (
	EventOrderCreated     = "order_created"
	EventPaymentSubmitted = "payment_submitted"
	EventPaymentSettled   = "payment_settled"
	EventOrderCancelled   = "order_cancelled"
)

// OrderEvent is the payload written to the outbox on every order state change.
type OrderEvent struct {
	OrderID    int64       `json:"order_id"`
	UserID     int64       `json:"user_id"`
	EventType  string      `json:"event_type"`
	FromStatus OrderStatus `json:"from_status,omitempty"`
	Status     OrderStatus `json:"status"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type FaultFlag struct {
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}
