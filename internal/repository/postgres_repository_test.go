package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newTestOrder(userID int64) *domain.Order {
	items := []domain.OrderItem{
		{ProductID: 1, ProductName: "Linen Summer Shirt", UnitPrice: decimal.RequireFromString("29.90"), Quantity: 2},
		{ProductID: 3, ProductName: "Kids Rain Jacket", UnitPrice: decimal.RequireFromString("39.50"), Quantity: 1},
	}
	o := &domain.Order{UserID: userID, Items: items}
	o.TotalAmount = o.ItemsTotal()
	return o
}

func outboxEvents(t *testing.T, repo *Repository) []domain.OrderEvent {
	t.Helper()
	events, err := repo.GetUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)

	out := make([]domain.OrderEvent, len(events))
	for i, e := range events {
		require.NoError(t, json.Unmarshal(e.Payload, &out[i]))
		assert.Equal(t, e.EventType, out[i].EventType)
	}
	return out
}

func TestCreateOrder_Success(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder(7)

	require.NoError(t, repo.CreateOrder(ctx, order))
	assert.NotZero(t, order.ID)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)

	fetched, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), fetched.UserID)
	assert.Equal(t, "99.30", fetched.TotalAmount.StringFixed(2))
	assert.Equal(t, domain.OrderStatusCreated, fetched.Status)
	require.Len(t, fetched.Items, 2)
	assert.Equal(t, "Linen Summer Shirt", fetched.Items[0].ProductName)
	assert.True(t, fetched.TotalAmount.Equal(fetched.ItemsTotal()))

	events := outboxEvents(t, repo)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderCreated, events[0].EventType)
	assert.Equal(t, order.ID, events[0].OrderID)
}

func TestGetOrder_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetOrder(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestStatusCheckConstraint(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	order := newTestOrder(1)
	order.Status = "processing"

	err := repo.CreateOrder(context.Background(), order)
	assert.ErrorContains(t, err, "orders_status_check")
}

func TestTransitionStatus_Guard(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder(1)
	require.NoError(t, repo.CreateOrder(ctx, order))

	ok, err := repo.TransitionStatus(ctx, order.ID,
		[]domain.OrderStatus{domain.OrderStatusPending}, domain.OrderStatusPaid, domain.EventPaymentSettled)
	require.NoError(t, err)
	assert.False(t, ok, "created order must not settle")

	ok, err = repo.TransitionStatus(ctx, order.ID,
		domain.Sources(domain.OrderStatusPending), domain.OrderStatusPending, domain.EventPaymentSubmitted)
	require.NoError(t, err)
	assert.True(t, ok)

	fetched, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, fetched.Status)

	events := outboxEvents(t, repo)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventPaymentSubmitted, events[1].EventType)
	assert.Equal(t, domain.OrderStatusCreated, events[1].FromStatus)
	assert.Equal(t, domain.OrderStatusPending, events[1].Status)

	ok, err = repo.TransitionStatus(ctx, 999999,
		[]domain.OrderStatus{domain.OrderStatusCreated}, domain.OrderStatusPending, domain.EventPaymentSubmitted)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransitionStatus_ConcurrentSettleOneWinner(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	order := newTestOrder(1)
	require.NoError(t, repo.CreateOrder(ctx, order))
	ok, err := repo.TransitionStatus(ctx, order.ID,
		domain.Sources(domain.OrderStatusPending), domain.OrderStatusPending, domain.EventPaymentSubmitted)
	require.NoError(t, err)
	require.True(t, ok)

	const writers = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []domain.OrderStatus
	)
	for i := 0; i < writers; i++ {
		to := domain.OrderStatusPaid
		if i%2 == 1 {
			to = domain.OrderStatusFailed
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.TransitionStatus(ctx, order.ID,
				[]domain.OrderStatus{domain.OrderStatusPending}, to, domain.EventPaymentSettled)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins = append(wins, to)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, wins, 1)
	fetched, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, wins[0], fetched.Status)

	settled := 0
	for _, e := range outboxEvents(t, repo) {
		if e.EventType == domain.EventPaymentSettled {
			settled++
		}
	}
	assert.Equal(t, 1, settled)
}

func TestDeleteOrder(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	deletable := newTestOrder(1)
	require.NoError(t, repo.CreateOrder(ctx, deletable))
	pending := newTestOrder(1)
	require.NoError(t, repo.CreateOrder(ctx, pending))
	_, err := repo.TransitionStatus(ctx, pending.ID,
		domain.Sources(domain.OrderStatusPending), domain.OrderStatusPending, domain.EventPaymentSubmitted)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.DeleteOrder(ctx, pending.ID), ErrOrderNotDeletable)
	assert.ErrorIs(t, repo.DeleteOrder(ctx, 424242), ErrOrderNotFound)

	require.NoError(t, repo.DeleteOrder(ctx, deletable.ID))
	_, err = repo.GetOrder(ctx, deletable.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	var items int
	require.NoError(t, repo.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, deletable.ID).Scan(&items))
	assert.Zero(t, items)
}

func TestListOrders(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	var ids []int64
	for i := 0; i < 12; i++ {
		o := newTestOrder(int64(100 + i%3))
		require.NoError(t, repo.CreateOrder(ctx, o))
		ids = append(ids, o.ID)
	}
	_, err := repo.TransitionStatus(ctx, ids[0],
		domain.Sources(domain.OrderStatusPending), domain.OrderStatusPending, domain.EventPaymentSubmitted)
	require.NoError(t, err)

	page, err := repo.ListOrders(ctx, OrderFilter{PerPage: 7})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 10, page.PerPage, "unsupported page size falls back to 10")
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Orders, 10)
	assert.Equal(t, ids[11], page.Orders[0].ID, "newest first")
	assert.Len(t, page.Orders[0].Items, 2)

	second, err := repo.ListOrders(ctx, OrderFilter{Page: 2, PerPage: 10})
	require.NoError(t, err)
	assert.Len(t, second.Orders, 2)

	byUser, err := repo.ListOrders(ctx, OrderFilter{Query: "101", PerPage: 50})
	require.NoError(t, err)
	assert.Equal(t, 4, byUser.Total)

	byStatusText, err := repo.ListOrders(ctx, OrderFilter{Query: "pend"})
	require.NoError(t, err)
	require.Equal(t, 1, byStatusText.Total)
	assert.Equal(t, ids[0], byStatusText.Orders[0].ID)

	byStatus, err := repo.ListOrders(ctx, OrderFilter{Status: domain.OrderStatusCreated})
	require.NoError(t, err)
	assert.Equal(t, 11, byStatus.Total)

	future, err := repo.ListOrders(ctx, OrderFilter{From: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Zero(t, future.Total)
	assert.Empty(t, future.Orders)

	mine, err := repo.ListOrdersByUser(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, mine, 4)
}

func TestFlags(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, found, err := repo.GetFlag(ctx, "broken_images")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.UpsertFlag(ctx, "broken_images", true))
	require.NoError(t, repo.UpsertFlag(ctx, "broken_images", true))
	require.NoError(t, repo.UpsertFlag(ctx, "slow_images", false))

	enabled, found, err := repo.GetFlag(ctx, "broken_images")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, enabled)

	flags, err := repo.ListFlags(ctx)
	require.NoError(t, err)
	require.Len(t, flags, 2)
	assert.Equal(t, "broken_images", flags[0].Name)
	assert.False(t, flags[1].Enabled)
}

func TestOutbox_MarkProcessed(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.CreateOrder(ctx, newTestOrder(1)))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
