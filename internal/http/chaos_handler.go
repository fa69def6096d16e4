package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/chaos-shop/internal/faults"
)

type ChaosHandler struct {
	flags   FlagAdmin
	timeout time.Duration
}

func NewChaosHandler(flags FlagAdmin, timeout time.Duration) *ChaosHandler {
	return &ChaosHandler{flags: flags, timeout: timeout}
}

func (h *ChaosHandler) GetFlags(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	flags, err := h.flags.Snapshot(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flags)
}

// SetFlags writes every recognized flag from the form. A flag missing from
// the form is an unchecked checkbox and is written as false.
func (h *ChaosHandler) SetFlags(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for _, name := range faults.Known {
		if err := h.flags.SetFlag(ctx, name, checked(r.PostForm.Get(name))); err != nil {
			handleError(w, r, err)
			return
		}
	}
	redirect(w, r, "/admin/chaos")
}

// checked treats any non-empty checkbox value as on, except explicit
// boolean false values.
func checked(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return true
}
