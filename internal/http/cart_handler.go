package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const qtyFieldPrefix = "qty_"

type CartHandler struct {
	cart    CartService
	timeout time.Duration
}

func NewCartHandler(cart CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.cart.Summary(ctx, currentSession(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// AddItem reads product_id and an optional qty (default 1). Malformed
// input leaves the cart untouched.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirect(w, r, "/cart")
		return
	}
	productID, err := parseID(r.PostFormValue("product_id"))
	if err != nil {
		slog.InfoContext(r.Context(), "cart add ignored", "error", err)
		redirect(w, r, "/cart")
		return
	}
	qty := 1
	if raw := strings.TrimSpace(r.PostFormValue("qty")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			slog.InfoContext(r.Context(), "cart add ignored", "product_id", productID, "qty", raw)
			redirect(w, r, "/cart")
			return
		}
		qty = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.AddItem(ctx, currentSession(r), productID, qty); err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, "/cart")
}

// UpdateQuantities applies every qty_<product_id> field. A quantity that
// does not parse counts as 1; fields with a malformed id are skipped.
func (h *CartHandler) UpdateQuantities(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirect(w, r, "/cart")
		return
	}

	keys := make([]string, 0, len(r.PostForm))
	for k := range r.PostForm {
		if strings.HasPrefix(k, qtyFieldPrefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := currentSession(r)
	for _, k := range keys {
		productID, err := parseID(strings.TrimPrefix(k, qtyFieldPrefix))
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(strings.TrimSpace(r.PostForm.Get(k)))
		if err != nil {
			qty = 1
		}
		if err := h.cart.SetQty(ctx, sess, productID, qty); err != nil {
			handleError(w, r, err)
			return
		}
	}
	redirect(w, r, "/cart")
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := parseID(r.PostFormValue("product_id"))
	if err != nil {
		redirect(w, r, "/cart")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.RemoveItem(ctx, currentSession(r), productID); err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, "/cart")
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Clear(ctx, currentSession(r)); err != nil {
		handleError(w, r, err)
		return
	}
	redirect(w, r, "/cart")
}
