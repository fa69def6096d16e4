package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, total_amount, status, created_at, updated_at`

// CreateOrder inserts the order, its items and an order_created outbox event
// in one transaction. ID and timestamps are filled in on success.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if order.Status == "" {
		order.Status = domain.OrderStatusCreated
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, total_amount, status, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		order.UserID,
		order.TotalAmount,
		order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.UnitPrice,
			item.Quantity,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", item.ProductID, err)
		}
	}

	err = insertEvent(ctx, tx, domain.OrderEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		EventType:  domain.EventOrderCreated,
		Status:     order.Status,
		OccurredAt: order.CreatedAt,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	err := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id,
	).Scan(
		&order.ID,
		&order.UserID,
		&order.TotalAmount,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	if err := r.attachItems(ctx, []*domain.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (r *Repository) ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	orders, err := r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

var perPageOptions = map[int]bool{10: true, 20: true, 50: true, 100: true}

// ListOrders is the admin view over all orders. A numeric query matches the
// order id or user id; anything else matches the status.
func (r *Repository) ListOrders(ctx context.Context, f OrderFilter) (*OrderPage, error) {
	if !perPageOptions[f.PerPage] {
		f.PerPage = 10
	}
	if f.Page < 1 {
		f.Page = 1
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		if n, err := strconv.ParseInt(q, 10, 64); err == nil && n >= 0 {
			p := arg(n)
			where = append(where, "(id = "+p+" OR user_id = "+p+")")
		} else {
			where = append(where, "status ILIKE "+arg("%"+q+"%"))
		}
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < "+arg(f.To))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	page := &OrderPage{Page: f.Page, PerPage: f.PerPage}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+clause, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	page.Pages = (page.Total + f.PerPage - 1) / f.PerPage

	limit := arg(f.PerPage)
	offset := arg((f.Page - 1) * f.PerPage)
	orders, err := r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders`+clause+
			` ORDER BY created_at DESC, id DESC LIMIT `+limit+` OFFSET `+offset,
		args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	page.Orders = orders
	return page, nil
}

// TransitionStatus moves the order to status to only if its current status
// is one of from, and records the change in the outbox in the same
// transaction. It reports false when the guard did not match, which is how a
// losing concurrent writer finds out.
func (r *Repository) TransitionStatus(ctx context.Context, id int64, from []domain.OrderStatus, to domain.OrderStatus, eventType string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	expected := make([]string, len(from))
	for i, s := range from {
		expected[i] = string(s)
	}

	var (
		userID    int64
		prev      domain.OrderStatus
		updatedAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		`WITH prev AS (
			SELECT id, status FROM orders WHERE id = $1 FOR UPDATE
		)
		UPDATE orders o
		SET status = $3, updated_at = NOW()
		FROM prev
		WHERE o.id = prev.id AND prev.status = ANY($2::text[])
		RETURNING o.user_id, prev.status, o.updated_at`,
		id, pq.Array(expected), to,
	).Scan(&userID, &prev, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}

	err = insertEvent(ctx, tx, domain.OrderEvent{
		OrderID:    id,
		UserID:     userID,
		EventType:  eventType,
		FromStatus: prev,
		Status:     to,
		OccurredAt: updatedAt,
	})
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit status change: %w", err)
	}
	return true, nil
}

// DeleteOrder removes an order in a deletable status; items go with it.
func (r *Repository) DeleteOrder(ctx context.Context, id int64) error {
	var deletable []string
	for _, s := range domain.AllOrderStatuses {
		if s.Deletable() {
			deletable = append(deletable, string(s))
		}
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM orders WHERE id = $1 AND status = ANY($2::text[])`, id, pq.Array(deletable))
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrOrderNotDeletable
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.TotalAmount,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

// attachItems loads the items of all given orders in one query.
func (r *Repository) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*domain.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []domain.OrderItem{}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, unit_price, quantity
		 FROM order_items WHERE order_id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.UnitPrice,
			&item.Quantity,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}
