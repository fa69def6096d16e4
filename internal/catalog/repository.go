// Package catalog is the product read path. Its listing and image paths are
// the ones the fault registry can degrade.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/chaos-shop/internal/apperr"
	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/internal/faults"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var ErrProductNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)

const listLimit = 30

// Filter narrows the product listing; empty fields are ignored.
type Filter struct {
	Gender string
	Season string
}

// Reader is the contract the cart and order engine depend on.
type Reader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
}

type Repository struct {
	db     *sql.DB
	faults faults.Checker
}

func NewRepository(dbPath string, checker faults.Checker) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// every connection to :memory: is a separate database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return &Repository{db: db, faults: checker}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const productColumns = `id, name, gender, season, price, stock, COALESCE(description, ''), active, created_at`

// ListProducts returns active products, newest first. With slow_product_list
// enabled it takes an unindexed, randomly ordered query path instead and the
// filter is ignored.
func (r *Repository) ListProducts(ctx context.Context, f Filter) ([]*domain.Product, error) {
	var (
		query string
		args  []any
	)

	if r.faults.IsEnabled(ctx, faults.SlowProductList) {
		slog.InfoContext(ctx, "chaos: slow product list query")
		query = `SELECT ` + productColumns + `
			FROM products
			WHERE active = 1
			  AND LOWER(name) LIKE '%shirt%'
			ORDER BY RANDOM()`
	} else {
		var b strings.Builder
		b.WriteString(`SELECT ` + productColumns + ` FROM products WHERE active = 1`)
		if f.Gender != "" {
			b.WriteString(` AND gender = ?`)
			args = append(args, f.Gender)
		}
		if f.Season != "" {
			b.WriteString(` AND season = ?`)
			args = append(args, f.Season)
		}
		b.WriteString(` ORDER BY created_at DESC, id DESC LIMIT ?`)
		args = append(args, listLimit)
		query = b.String()
	}

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	if err := r.attachImages(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns the product with its images.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	products, err := r.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrProductNotFound
	}

	product := products[0]
	images, err := r.imagesForProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	product.Images = images
	return product, nil
}

// ProductsByIDs fetches the given products in one query. Missing ids are
// simply absent from the result.
func (r *Repository) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	result := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders, args := inClause(ids)
	products, err := r.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

// UpdatePrice changes the catalog price. Existing orders keep their snapshot.
func (r *Repository) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET price = ? WHERE id = ?`, price.StringFixed(2), id)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct removes a product and its images. Carts may still reference it.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_images WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete images: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return tx.Commit()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Gender,
			&p.Season,
			&p.Price,
			&p.Stock,
			&p.Description,
			&p.Active,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
