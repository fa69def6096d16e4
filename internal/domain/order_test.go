package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusCreated, OrderStatusPending, true},
		{OrderStatusFailed, OrderStatusPending, true},
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusCreated, OrderStatusCancelled, true},
		{OrderStatusFailed, OrderStatusCancelled, true},

		{OrderStatusPending, OrderStatusPending, false},
		{OrderStatusPending, OrderStatusCreated, false},
		{OrderStatusFailed, OrderStatusCreated, false},
		{OrderStatusCreated, OrderStatusPaid, false},
		{OrderStatusPending, OrderStatusCancelled, false},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusPaid, OrderStatusFailed, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, from := range AllOrderStatuses {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range AllOrderStatuses {
			assert.False(t, CanTransitionTo(from, to), "%s must be terminal", from)
		}
	}
}

func TestSources(t *testing.T) {
	assert.ElementsMatch(t, []OrderStatus{OrderStatusCreated, OrderStatusFailed}, Sources(OrderStatusPending))
	assert.ElementsMatch(t, []OrderStatus{OrderStatusPending}, Sources(OrderStatusPaid))
	assert.Empty(t, Sources(OrderStatusCreated))
}

func TestOrderStatus_Valid(t *testing.T) {
	for _, s := range AllOrderStatuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, OrderStatus("processing").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestOrder_ItemsTotal(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
		{UnitPrice: decimal.RequireFromString("5.00"), Quantity: 1},
	}}

	assert.True(t, decimal.RequireFromString("25.00").Equal(o.ItemsTotal()))
}

func TestProduct_MainImage(t *testing.T) {
	p := &Product{Images: []ProductImage{
		{Filename: "a.jpg"},
		{Filename: "b.jpg", IsMain: true},
		{Filename: "c.jpg", IsMain: true},
	}}

	main, details := p.MainImage()
	assert.Equal(t, "b.jpg", main.Filename)
	assert.Equal(t, []string{"a.jpg", "c.jpg"}, []string{details[0].Filename, details[1].Filename})
}

func TestProduct_MainImage_FallsBackToFirst(t *testing.T) {
	p := &Product{Images: []ProductImage{{Filename: "a.jpg"}, {Filename: "b.jpg"}}}

	main, details := p.MainImage()
	assert.Equal(t, "a.jpg", main.Filename)
	assert.Len(t, details, 1)

	empty := &Product{}
	main, details = empty.MainImage()
	assert.Nil(t, main)
	assert.Nil(t, details)
}
