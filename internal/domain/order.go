package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// AllOrderStatuses is the closed set of values the status column may hold.
var AllOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusFailed,
	OrderStatusCancelled,
}

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated: {OrderStatusPending, OrderStatusCancelled},
	OrderStatusFailed:  {OrderStatusPending, OrderStatusCancelled},
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed},
}

// CanTransitionTo reports whether an order in status from may move to status to.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Sources returns every status that may transition into to.
func Sources(to OrderStatus) []OrderStatus {
	var from []OrderStatus
	for _, s := range AllOrderStatuses {
		if CanTransitionTo(s, to) {
			from = append(from, s)
		}
	}
	return from
}

func (s OrderStatus) Valid() bool {
	for _, v := range AllOrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// Deletable statuses are the ones an admin may remove without breaking
// an in-flight or settled payment.
func (s OrderStatus) Deletable() bool {
	return s == OrderStatusCreated || s == OrderStatusFailed || s == OrderStatusCancelled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem holds the product name and unit price as they were when the
// order was created.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ItemsTotal sums the snapshotted line totals.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}
