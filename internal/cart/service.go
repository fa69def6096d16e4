// Package cart is the session-scoped shopping cart. Lines live in the
// session store only; the catalog is consulted when the cart is summarized.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/fjod/chaos-shop/internal/cache"
	"github.com/fjod/chaos-shop/internal/catalog"
	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/internal/session"
	"github.com/shopspring/decimal"
)

type Service struct {
	store   cache.CartStore
	catalog catalog.Reader
	now     func() time.Time
}

func NewService(store cache.CartStore, reader catalog.Reader) *Service {
	return &Service{
		store:   store,
		catalog: reader,
		now:     time.Now,
	}
}

// AddItem increments the line by qty, which may be negative. A resulting
// quantity of zero or less removes the line. The product is not checked.
func (s *Service) AddItem(ctx context.Context, sess *session.Session, productID int64, qty int) error {
	return s.mutate(ctx, sess, func(lines map[string]int) {
		key := lineKey(productID)
		n := lines[key] + qty
		if n <= 0 {
			delete(lines, key)
			return
		}
		lines[key] = n
	})
}

// SetQty replaces the line quantity; zero or less removes the line.
func (s *Service) SetQty(ctx context.Context, sess *session.Session, productID int64, qty int) error {
	return s.mutate(ctx, sess, func(lines map[string]int) {
		key := lineKey(productID)
		if qty <= 0 {
			delete(lines, key)
			return
		}
		lines[key] = qty
	})
}

func (s *Service) RemoveItem(ctx context.Context, sess *session.Session, productID int64) error {
	return s.mutate(ctx, sess, func(lines map[string]int) {
		delete(lines, lineKey(productID))
	})
}

func (s *Service) Clear(ctx context.Context, sess *session.Session) error {
	if err := s.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Lines returns the stored product -> quantity mapping, including lines
// whose product no longer exists.
func (s *Service) Lines(ctx context.Context, sess *session.Session) (map[int64]int, error) {
	c, err := s.load(ctx, sess)
	if err != nil {
		return nil, err
	}
	lines := make(map[int64]int, len(c.Lines))
	for key, qty := range c.Lines {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			slog.WarnContext(ctx, "dropping malformed cart line", "session", sess.ID, "key", key)
			continue
		}
		lines[id] = qty
	}
	return lines, nil
}

// Summary joins the cart with the catalog in one lookup. Lines whose product
// is gone are left out of the summary but stay in the stored cart.
func (s *Service) Summary(ctx context.Context, sess *session.Session) (*domain.CartSummary, error) {
	lines, err := s.Lines(ctx, sess)
	if err != nil {
		return nil, err
	}

	summary := &domain.CartSummary{Items: []domain.CartSummaryItem{}, Subtotal: decimal.Zero}
	if len(lines) == 0 {
		return summary, nil
	}

	ids := make([]int64, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products, err := s.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}

	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			slog.DebugContext(ctx, "cart line references missing product", "session", sess.ID, "product_id", id)
			continue
		}
		qty := lines[id]
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(qty)))
		summary.Items = append(summary.Items, domain.CartSummaryItem{
			Product:   p,
			Quantity:  qty,
			LineTotal: lineTotal,
		})
		summary.Subtotal = summary.Subtotal.Add(lineTotal)
		summary.TotalQty += qty
	}

	return summary, nil
}

func (s *Service) load(ctx context.Context, sess *session.Session) (*domain.Cart, error) {
	c, err := s.store.Get(ctx, sess.ID)
	if errors.Is(err, cache.ErrCacheMiss) {
		return &domain.Cart{SessionID: sess.ID, Lines: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

func (s *Service) mutate(ctx context.Context, sess *session.Session, apply func(lines map[string]int)) error {
	c, err := s.load(ctx, sess)
	if err != nil {
		return err
	}

	apply(c.Lines)

	if len(c.Lines) == 0 {
		return s.Clear(ctx, sess)
	}

	c.SessionID = sess.ID
	c.UpdatedAt = s.now()
	if err := s.store.Set(ctx, sess.ID, c); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func lineKey(productID int64) string {
	return strconv.FormatInt(productID, 10)
}
