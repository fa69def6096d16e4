package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/internal/orders"
)

type OrdersHandler struct {
	orders       OrderService
	settleOnRead bool
	timeout      time.Duration
}

// NewOrdersHandler builds the shopper-facing order routes. With settleOnRead
// the detail view settles a pending payment before rendering it.
func NewOrdersHandler(svc OrderService, settleOnRead bool, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:       svc,
		settleOnRead: settleOnRead,
		timeout:      timeout,
	}
}

func orderURL(id int64) string {
	return fmt.Sprintf("/orders/%d", id)
}

// Checkout turns the session cart into an order. An empty cart sends the
// shopper back to the cart unchanged.
func (h *OrdersHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := currentSession(r)
	order, err := h.orders.CreateFromCart(ctx, sess, sess.UserID)
	if errors.Is(err, orders.ErrEmptyCart) {
		redirect(w, r, "/cart")
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, orderURL(order.ID))
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.orders.ListForUser(ctx, currentSession(r).UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if list == nil {
		list = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, list)
}

// GetOrder renders one of the caller's orders. The settlement delay is not
// bounded by the handler timeout: it runs on the request context itself.
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	order, err := h.orders.GetForUser(ctx, id, currentSession(r).UserID)
	cancel()
	if err != nil {
		handleError(w, r, err)
		return
	}

	if h.settleOnRead && order.Status == domain.OrderStatusPending {
		settled, err := h.orders.SettleIfPending(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		order = settled
	}

	respondJSON(w, http.StatusOK, order)
}

// SubmitPayment flips the order to pending and redirects to its status page.
func (h *OrdersHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, err := h.orders.GetForUser(ctx, id, currentSession(r).UserID); err != nil {
		handleError(w, r, err)
		return
	}
	order, err := h.orders.SubmitPayment(ctx, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	slog.DebugContext(ctx, "payment requested", "order_id", id, "status", order.Status)
	redirect(w, r, orderURL(id))
}
