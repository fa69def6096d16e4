package cache

import (
	"context"
	"errors"

	"github.com/fjod/chaos-shop/internal/domain"
)

// CartStore keeps the per-session cart. Carts are ephemeral: they expire
// with the session and are never written to the order database.
type CartStore interface {
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)
	Set(ctx context.Context, sessionID string, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
