package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/chaos-shop/internal/apperr"
	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/internal/repository"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var ErrInvalidPrice = fmt.Errorf("price must be a non-negative decimal: %w", apperr.ErrValidation)

type AdminHandler struct {
	orders      OrderService
	catalog     ProductCatalog
	settlements SettlementHistory
	timeout     time.Duration
}

func NewAdminHandler(orders OrderService, c ProductCatalog, settlements SettlementHistory, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		orders:      orders,
		catalog:     c,
		settlements: settlements,
		timeout:     timeout,
	}
}

func adminOrderURL(id int64) string {
	return fmt.Sprintf("/admin/orders/%d", id)
}

// orderFilterFromQuery reads q, status, date_from, date_to (YYYY-MM-DD,
// both inclusive), page and per_page. Unparseable dates are ignored.
func orderFilterFromQuery(r *http.Request) repository.OrderFilter {
	query := r.URL.Query()
	f := repository.OrderFilter{
		Query:  strings.TrimSpace(query.Get("q")),
		Status: domain.OrderStatus(strings.TrimSpace(query.Get("status"))),
	}
	if from, err := time.Parse(dateLayout, strings.TrimSpace(query.Get("date_from"))); err == nil {
		f.From = from
	}
	if to, err := time.Parse(dateLayout, strings.TrimSpace(query.Get("date_to"))); err == nil {
		f.To = to.AddDate(0, 0, 1)
	}
	f.Page, _ = strconv.Atoi(query.Get("page"))
	f.PerPage, _ = strconv.Atoi(query.Get("per_page"))
	return f
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.orders.List(ctx, orderFilterFromQuery(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if page.Orders == nil {
		page.Orders = []*domain.Order{}
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.Get(ctx, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// DeleteOrder removes a created, failed or cancelled order. A missing order
// goes back to the list; a protected one goes back to its detail page.
func (h *AdminHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		redirect(w, r, "/admin/orders")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	err = h.orders.Delete(ctx, id)
	switch {
	case err == nil, errors.Is(err, repository.ErrOrderNotFound):
		redirect(w, r, "/admin/orders")
	case errors.Is(err, repository.ErrOrderNotDeletable):
		redirect(w, r, adminOrderURL(id))
	default:
		handleError(w, r, err)
	}
}

func (h *AdminHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, err := h.orders.Cancel(ctx, id); err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, adminOrderURL(id))
}

// ListSettlements returns the audit trail of settlement attempts.
func (h *AdminHandler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	records, err := h.settlements.ListByOrder(ctx, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.SettlementRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

// UpdatePrice changes the catalog price. Orders already placed keep the
// price they were created with.
func (h *AdminHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(r.PostFormValue("price")))
	if err != nil || price.IsNegative() {
		handleError(w, r, ErrInvalidPrice)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.UpdatePrice(ctx, id, price); err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, fmt.Sprintf("/products/%d", id))
}
