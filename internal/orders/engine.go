// Package orders drives the order lifecycle: creation from a cart snapshot,
// payment submission, and simulated settlement.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/fjod/chaos-shop/internal/apperr"
	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/internal/repository"
	"github.com/fjod/chaos-shop/internal/session"
	"github.com/google/uuid"
)

var (
	ErrEmptyCart         = fmt.Errorf("cart is empty: %w", apperr.ErrValidation)
	ErrInvalidTransition = fmt.Errorf("order status does not allow this action: %w", apperr.ErrValidation)
)

// CartReader is the slice of the cart the engine needs.
type CartReader interface {
	Summary(ctx context.Context, sess *session.Session) (*domain.CartSummary, error)
	Clear(ctx context.Context, sess *session.Session) error
}

// AuditRecorder stores settlement outcomes. Failures never affect the order.
type AuditRecorder interface {
	RecordSettlement(ctx context.Context, rec domain.SettlementRecord) error
}

type Settings struct {
	SuccessRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		SuccessRate: 0.7,
		MinDelay:    time.Second,
		MaxDelay:    3 * time.Second,
	}
}

type Engine struct {
	repo     repository.OrderRepository
	cart     CartReader
	audit    AuditRecorder
	settings Settings

	mu    sync.Mutex // guards rng
	rng   *rand.Rand
	sleep func(time.Duration)
}

type Option func(*Engine)

// WithRand replaces the random source used for delay and outcome.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

func WithAudit(a AuditRecorder) Option {
	return func(e *Engine) { e.audit = a }
}

func NewEngine(repo repository.OrderRepository, cart CartReader, s Settings, opts ...Option) *Engine {
	def := DefaultSettings()
	if s.SuccessRate < 0 || s.SuccessRate > 1 {
		s.SuccessRate = def.SuccessRate
	}
	if s.MinDelay < 0 {
		s.MinDelay = 0
	}
	if s.MaxDelay < s.MinDelay {
		s.MaxDelay = s.MinDelay
	}

	e := &Engine{
		repo:     repo,
		cart:     cart,
		settings: s,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateFromCart snapshots the session cart into a new order. The cart is
// cleared only after the order is committed.
func (e *Engine) CreateFromCart(ctx context.Context, sess *session.Session, userID int64) (*domain.Order, error) {
	summary, err := e.cart.Summary(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if len(summary.Items) == 0 {
		return nil, ErrEmptyCart
	}

	order := &domain.Order{
		UserID:      userID,
		TotalAmount: summary.Subtotal,
		Status:      domain.OrderStatusCreated,
		Items:       make([]domain.OrderItem, 0, len(summary.Items)),
	}
	for _, line := range summary.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			UnitPrice:   line.Product.Price,
			Quantity:    line.Quantity,
		})
	}

	if err := e.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := e.cart.Clear(ctx, sess); err != nil {
		// the order exists; a stale cart is the lesser problem
		slog.ErrorContext(ctx, "failed to clear cart after checkout", "order_id", order.ID, "session", sess.ID, "error", err)
	}

	slog.InfoContext(ctx, "order created",
		"order_id", order.ID, "user_id", userID, "items", len(order.Items), "total", order.TotalAmount.StringFixed(2))
	return order, nil
}

// SubmitPayment moves a created or failed order to pending. Orders in any
// other status are returned unchanged. Settlement happens later.
func (e *Engine) SubmitPayment(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionTo(order.Status, domain.OrderStatusPending) {
		return order, nil
	}

	ok, err := e.repo.TransitionStatus(ctx, orderID,
		domain.Sources(domain.OrderStatusPending), domain.OrderStatusPending, domain.EventPaymentSubmitted)
	if err != nil {
		return nil, fmt.Errorf("submit payment: %w", err)
	}
	if ok {
		slog.InfoContext(ctx, "payment submitted", "order_id", orderID, "from", order.Status)
	}
	return e.repo.GetOrder(ctx, orderID)
}

// SettleIfPending resolves a pending payment after a simulated processing
// delay. Only one concurrent caller's outcome is applied; the others return
// the winner's state. The delay is not cancellable and the write uses a
// context detached from the caller's cancellation.
func (e *Engine) SettleIfPending(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return order, nil
	}

	delay, roll := e.draw()
	e.sleep(delay)

	outcome := domain.OrderStatusFailed
	if roll < e.settings.SuccessRate {
		outcome = domain.OrderStatusPaid
	}

	commitCtx := context.WithoutCancel(ctx)
	ok, err := e.repo.TransitionStatus(commitCtx, orderID,
		[]domain.OrderStatus{domain.OrderStatusPending}, outcome, domain.EventPaymentSettled)
	if err != nil {
		return nil, fmt.Errorf("settle payment: %w", err)
	}

	if ok {
		slog.InfoContext(ctx, "payment settled", "order_id", orderID, "outcome", outcome, "roll", roll, "delay", delay)
		e.record(commitCtx, domain.SettlementRecord{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			Outcome:     outcome,
			Roll:        roll,
			SuccessRate: e.settings.SuccessRate,
			Delay:       delay,
			Simulated:   true,
			SettledAt:   time.Now().UTC(),
		})
	} else {
		slog.InfoContext(ctx, "settlement lost race, discarding outcome", "order_id", orderID, "discarded", outcome)
	}

	return e.repo.GetOrder(commitCtx, orderID)
}

// Cancel is the admin action for orders that were never paid.
func (e *Engine) Cancel(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}
	if !domain.CanTransitionTo(order.Status, domain.OrderStatusCancelled) {
		return nil, fmt.Errorf("cancel %s order %d: %w", order.Status, orderID, ErrInvalidTransition)
	}

	ok, err := e.repo.TransitionStatus(ctx, orderID,
		domain.Sources(domain.OrderStatusCancelled), domain.OrderStatusCancelled, domain.EventOrderCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	updated, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ok && updated.Status != domain.OrderStatusCancelled {
		return nil, fmt.Errorf("cancel %s order %d: %w", updated.Status, orderID, ErrInvalidTransition)
	}
	slog.InfoContext(ctx, "order cancelled", "order_id", orderID)
	return updated, nil
}

func (e *Engine) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	return e.repo.GetOrder(ctx, orderID)
}

func (e *Engine) ListForUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return e.repo.ListOrdersByUser(ctx, userID)
}

func (e *Engine) List(ctx context.Context, f repository.OrderFilter) (*repository.OrderPage, error) {
	return e.repo.ListOrders(ctx, f)
}

func (e *Engine) Delete(ctx context.Context, orderID int64) error {
	if err := e.repo.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "order deleted", "order_id", orderID)
	return nil
}

// GetForUser returns the order only if it belongs to userID.
func (e *Engine) GetForUser(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	order, err := e.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", orderID, apperr.ErrForbidden)
	}
	return order, nil
}

func (e *Engine) draw() (time.Duration, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delay := e.settings.MinDelay
	if span := e.settings.MaxDelay - e.settings.MinDelay; span > 0 {
		delay += time.Duration(e.rng.Int63n(int64(span) + 1))
	}
	return delay, e.rng.Float64()
}

func (e *Engine) record(ctx context.Context, rec domain.SettlementRecord) {
	if e.audit == nil {
		return
	}
	if err := e.audit.RecordSettlement(ctx, rec); err != nil {
		slog.WarnContext(ctx, "failed to record settlement", "order_id", rec.OrderID, "error", err)
	}
}
