package http

import (
	"context"
	"net/http"

	"github.com/fjod/chaos-shop/internal/catalog"
	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/internal/repository"
	"github.com/fjod/chaos-shop/internal/session"
	"github.com/shopspring/decimal"
)

// Contracts the handlers depend on. The concrete implementations live in
// orders, cart, catalog, faults and audit.

type OrderService interface {
	CreateFromCart(ctx context.Context, sess *session.Session, userID int64) (*domain.Order, error)
	SubmitPayment(ctx context.Context, orderID int64) (*domain.Order, error)
	SettleIfPending(ctx context.Context, orderID int64) (*domain.Order, error)
	Cancel(ctx context.Context, orderID int64) (*domain.Order, error)
	Get(ctx context.Context, orderID int64) (*domain.Order, error)
	GetForUser(ctx context.Context, orderID, userID int64) (*domain.Order, error)
	ListForUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	List(ctx context.Context, f repository.OrderFilter) (*repository.OrderPage, error)
	Delete(ctx context.Context, orderID int64) error
}

type CartService interface {
	AddItem(ctx context.Context, sess *session.Session, productID int64, qty int) error
	SetQty(ctx context.Context, sess *session.Session, productID int64, qty int) error
	RemoveItem(ctx context.Context, sess *session.Session, productID int64) error
	Clear(ctx context.Context, sess *session.Session) error
	Summary(ctx context.Context, sess *session.Session) (*domain.CartSummary, error)
}

type ProductCatalog interface {
	ListProducts(ctx context.Context, f catalog.Filter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error
}

type ImageServer interface {
	Serve(w http.ResponseWriter, r *http.Request, filename string) error
}

type FlagAdmin interface {
	Snapshot(ctx context.Context) (map[string]bool, error)
	SetFlag(ctx context.Context, name string, enabled bool) error
}

type SettlementHistory interface {
	ListByOrder(ctx context.Context, orderID int64) ([]domain.SettlementRecord, error)
}
