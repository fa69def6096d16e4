package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fjod/chaos-shop/internal/apperr"
	"github.com/go-chi/chi/v5"
)

var ErrInvalidID = fmt.Errorf("id must be a positive integer: %w", apperr.ErrValidation)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps a classified error to its HTTP status. Internal errors
// are logged and their text is not sent to the client.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	kind := apperr.Kind(err)

	switch kind {
	case apperr.KindInternal:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", getRequestID(r.Context()), "error", err)
		respondError(w, status, kind, "internal server error")
		return
	case apperr.KindSimulatedFault, apperr.KindTimeout:
		slog.WarnContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", getRequestID(r.Context()), "error", err)
	}
	respondError(w, status, kind, err.Error())
}

func redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func urlID(r *http.Request, param string) (int64, error) {
	return parseID(chi.URLParam(r, param))
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q: %w", raw, ErrInvalidID)
	}
	return id, nil
}
