package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/fjod/chaos-shop/internal/session"
	"github.com/google/uuid"
)

const (
	SessionCookie = "session_id"

	// Demo identity headers. Authentication is out of scope; every caller
	// without X-User-ID is user 1.
	UserIDHeader = "X-User-ID"
	AdminHeader  = "X-Admin"

	defaultUserID int64 = 1
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// SessionMiddleware resolves the session cookie, issuing a new one when
// the request has none, and stores the session in the context.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := &session.Session{UserID: defaultUserID}

		if c, err := r.Cookie(SessionCookie); err == nil && uuid.Validate(c.Value) == nil {
			sess.ID = c.Value
		} else {
			sess.ID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		if raw := r.Header.Get(UserIDHeader); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				sess.UserID = id
			}
		}
		if admin, err := strconv.ParseBool(strings.TrimSpace(r.Header.Get(AdminHeader))); err == nil {
			sess.IsAdmin = admin
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly rejects callers whose session is not flagged as admin.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil || !sess.IsAdmin {
			respondError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// currentSession never returns nil so handlers mounted without the
// session middleware still see the demo user.
func currentSession(r *http.Request) *session.Session {
	if sess := session.FromContext(r.Context()); sess != nil {
		return sess
	}
	return &session.Session{UserID: defaultUserID}
}
