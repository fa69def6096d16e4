package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/fjod/chaos-shop/internal/catalog"
	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/internal/repository"
	"github.com/fjod/chaos-shop/internal/session"
	"github.com/shopspring/decimal"
)

type mockOrders struct {
	m         sync.Mutex
	orders    map[int64]*domain.Order
	createErr error
	deleteErr error
	cancelErr error

	createdFor []*session.Session
	settled    []int64
	submitted  []int64
	deleted    []int64
	lastFilter repository.OrderFilter
}

func newMockOrders(orders ...*domain.Order) *mockOrders {
	m := &mockOrders{orders: map[int64]*domain.Order{}}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrders) CreateFromCart(_ context.Context, sess *session.Session, userID int64) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.createdFor = append(m.createdFor, sess)
	if m.createErr != nil {
		return nil, m.createErr
	}
	o := &domain.Order{ID: 42, UserID: userID, Status: domain.OrderStatusCreated}
	m.orders[o.ID] = o
	return o, nil
}

func (m *mockOrders) SubmitPayment(_ context.Context, id int64) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	m.submitted = append(m.submitted, id)
	if domain.CanTransitionTo(o.Status, domain.OrderStatusPending) {
		o.Status = domain.OrderStatusPending
	}
	return o, nil
}

func (m *mockOrders) SettleIfPending(_ context.Context, id int64) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	m.settled = append(m.settled, id)
	if o.Status == domain.OrderStatusPending {
		o.Status = domain.OrderStatusPaid
	}
	return o, nil
}

func (m *mockOrders) Cancel(_ context.Context, id int64) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	o.Status = domain.OrderStatusCancelled
	return o, nil
}

func (m *mockOrders) Get(_ context.Context, id int64) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *mockOrders) GetForUser(ctx context.Context, id, userID int64) (*domain.Order, error) {
	o, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, errForbiddenOrder
	}
	return o, nil
}

func (m *mockOrders) ListForUser(_ context.Context, userID int64) ([]*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrders) List(_ context.Context, f repository.OrderFilter) (*repository.OrderPage, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.lastFilter = f
	return &repository.OrderPage{Page: 1, PerPage: 10}, nil
}

func (m *mockOrders) Delete(_ context.Context, id int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type cartCall struct {
	op        string
	productID int64
	qty       int
}

type mockCart struct {
	m       sync.Mutex
	calls   []cartCall
	err     error
	summary *domain.CartSummary
	session *session.Session
}

func (c *mockCart) record(sess *session.Session, call cartCall) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.session = sess
	c.calls = append(c.calls, call)
	return c.err
}

func (c *mockCart) AddItem(_ context.Context, sess *session.Session, productID int64, qty int) error {
	return c.record(sess, cartCall{"add", productID, qty})
}

func (c *mockCart) SetQty(_ context.Context, sess *session.Session, productID int64, qty int) error {
	return c.record(sess, cartCall{"set", productID, qty})
}

func (c *mockCart) RemoveItem(_ context.Context, sess *session.Session, productID int64) error {
	return c.record(sess, cartCall{"remove", productID, 0})
}

func (c *mockCart) Clear(_ context.Context, sess *session.Session) error {
	return c.record(sess, cartCall{op: "clear"})
}

func (c *mockCart) Summary(_ context.Context, sess *session.Session) (*domain.CartSummary, error) {
	if err := c.record(sess, cartCall{op: "summary"}); err != nil {
		return nil, err
	}
	if c.summary == nil {
		return &domain.CartSummary{Items: []domain.CartSummaryItem{}}, nil
	}
	return c.summary, nil
}

type mockCatalog struct {
	m          sync.Mutex
	products   map[int64]*domain.Product
	listErr    error
	lastFilter catalog.Filter
	prices     map[int64]decimal.Decimal
}

func newMockCatalog(products ...*domain.Product) *mockCatalog {
	c := &mockCatalog{products: map[int64]*domain.Product{}, prices: map[int64]decimal.Decimal{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *mockCatalog) ListProducts(_ context.Context, f catalog.Filter) ([]*domain.Product, error) {
	c.m.Lock()
	defer c.m.Unlock()
	c.lastFilter = f
	if c.listErr != nil {
		return nil, c.listErr
	}
	var out []*domain.Product
	for id := int64(1); id <= int64(len(c.products)); id++ {
		if p, ok := c.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	c.m.Lock()
	defer c.m.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (c *mockCatalog) UpdatePrice(_ context.Context, id int64, price decimal.Decimal) error {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.products[id]; !ok {
		return catalog.ErrProductNotFound
	}
	c.prices[id] = price
	return nil
}

type mockImages struct {
	err    error
	served []string
}

func (i *mockImages) Serve(w http.ResponseWriter, _ *http.Request, filename string) error {
	if i.err != nil {
		return i.err
	}
	i.served = append(i.served, filename)
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("jpeg"))
	return nil
}

type mockFlags struct {
	m      sync.Mutex
	values map[string]bool
	writes []string
}

func (f *mockFlags) Snapshot(context.Context) (map[string]bool, error) {
	f.m.Lock()
	defer f.m.Unlock()
	out := make(map[string]bool, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func (f *mockFlags) SetFlag(_ context.Context, name string, enabled bool) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.values == nil {
		f.values = map[string]bool{}
	}
	f.values[name] = enabled
	f.writes = append(f.writes, name)
	return nil
}

type mockSettlements struct {
	records map[int64][]domain.SettlementRecord
}

func (s *mockSettlements) ListByOrder(_ context.Context, orderID int64) ([]domain.SettlementRecord, error) {
	return s.records[orderID], nil
}
