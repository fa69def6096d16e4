package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/internal/repository"
	"github.com/fjod/chaos-shop/internal/session"
)

// memRepo is an in-memory OrderRepository with the same compare-and-swap
// semantics as the Postgres implementation.
type memRepo struct {
	m         sync.Mutex
	orders    map[int64]*domain.Order
	nextID    int64
	events    []domain.OrderEvent
	createErr error
}

func newMemRepo() *memRepo {
	return &memRepo{orders: map[int64]*domain.Order{}}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

func (r *memRepo) CreateOrder(_ context.Context, order *domain.Order) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	order.ID = r.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
		order.Items[i].OrderID = order.ID
	}
	r.orders[order.ID] = cloneOrder(order)
	r.events = append(r.events, domain.OrderEvent{OrderID: order.ID, EventType: domain.EventOrderCreated, Status: order.Status})
	return nil
}

func (r *memRepo) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.m.Lock()
	defer r.m.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *memRepo) ListOrdersByUser(_ context.Context, userID int64) ([]*domain.Order, error) {
	r.m.Lock()
	defer r.m.Unlock()
	var out []*domain.Order
	for id := r.nextID; id > 0; id-- {
		if o, ok := r.orders[id]; ok && o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (r *memRepo) ListOrders(_ context.Context, f repository.OrderFilter) (*repository.OrderPage, error) {
	r.m.Lock()
	defer r.m.Unlock()
	page := &repository.OrderPage{Page: 1, PerPage: 10}
	for id := r.nextID; id > 0; id-- {
		o, ok := r.orders[id]
		if !ok || (f.Status != "" && o.Status != f.Status) {
			continue
		}
		page.Orders = append(page.Orders, cloneOrder(o))
	}
	page.Total = len(page.Orders)
	return page, nil
}

func (r *memRepo) TransitionStatus(ctx context.Context, id int64, from []domain.OrderStatus, to domain.OrderStatus, eventType string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.m.Lock()
	defer r.m.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if o.Status == s {
			r.events = append(r.events, domain.OrderEvent{
				OrderID: id, EventType: eventType, FromStatus: o.Status, Status: to,
			})
			o.Status = to
			o.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) DeleteOrder(_ context.Context, id int64) error {
	r.m.Lock()
	defer r.m.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if !o.Status.Deletable() {
		return repository.ErrOrderNotDeletable
	}
	delete(r.orders, id)
	return nil
}

func (r *memRepo) put(o *domain.Order) {
	r.m.Lock()
	defer r.m.Unlock()
	r.nextID++
	o.ID = r.nextID
	r.orders[o.ID] = cloneOrder(o)
}

func (r *memRepo) eventsOfType(t string) int {
	r.m.Lock()
	defer r.m.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType == t {
			n++
		}
	}
	return n
}

type mockCart struct {
	m        sync.Mutex
	summary  *domain.CartSummary
	err      error
	clearErr error
	cleared  int
}

func (c *mockCart) Summary(context.Context, *session.Session) (*domain.CartSummary, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if c.summary == nil {
		return &domain.CartSummary{}, nil
	}
	return c.summary, nil
}

func (c *mockCart) Clear(context.Context, *session.Session) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.cleared++
	if c.clearErr == nil {
		c.summary = nil
	}
	return c.clearErr
}

type mockAudit struct {
	m       sync.Mutex
	records []domain.SettlementRecord
	err     error
}

func (a *mockAudit) RecordSettlement(_ context.Context, rec domain.SettlementRecord) error {
	a.m.Lock()
	defer a.m.Unlock()
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, rec)
	return nil
}

var errDB = errors.New("connection reset by peer")
