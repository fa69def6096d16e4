package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the session-scoped product -> quantity mapping. Keys are product
// ids formatted as decimal strings.
type Cart struct {
	SessionID string         `json:"session_id"`
	Lines     map[string]int `json:"lines"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type CartSummaryItem struct {
	Product   *Product        `json:"product"`
	Quantity  int             `json:"qty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartSummary struct {
	Items    []CartSummaryItem `json:"items"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	TotalQty int               `json:"total_qty"`
}
