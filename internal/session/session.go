// Package session carries the per-request session explicitly through the
// context so cart and order code never reaches for global state.
package session

import "context"

type Session struct {
	ID      string
	UserID  int64
	IsAdmin bool
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
