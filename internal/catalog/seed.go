package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile is the fixture layout. Prices are strings so they parse exactly.
type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name        string      `yaml:"name"`
	Gender      string      `yaml:"gender"`
	Season      string      `yaml:"season"`
	Price       string      `yaml:"price"`
	Stock       int         `yaml:"stock"`
	Description string      `yaml:"description"`
	Active      *bool       `yaml:"active"`
	Images      []seedImage `yaml:"images"`
}

type seedImage struct {
	Filename string `yaml:"filename"`
	Main     bool   `yaml:"main"`
}

// Seed loads products from a YAML fixture. Products whose name already
// exists are skipped, so running it twice is harmless. It returns the
// number of products inserted.
func (r *Repository) Seed(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	return r.seed(ctx, raw)
}

func (r *Repository) seed(ctx context.Context, raw []byte) (int, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for i, p := range f.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return 0, fmt.Errorf("product %d (%s): invalid price %q: %w", i, p.Name, p.Price, err)
		}

		var existing int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM products WHERE name = ?`, p.Name).Scan(&existing)
		if err == nil {
			slog.DebugContext(ctx, "seed: product exists, skipping", "name", p.Name, "id", existing)
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("lookup product %s: %w", p.Name, err)
		}

		active := true
		if p.Active != nil {
			active = *p.Active
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO products (name, gender, season, price, stock, description, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.Name, p.Gender, p.Season, price.StringFixed(2), p.Stock, p.Description, active)
		if err != nil {
			return 0, fmt.Errorf("insert product %s: %w", p.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("read product id: %w", err)
		}

		for _, img := range p.Images {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO product_images (product_id, filename, is_main) VALUES (?, ?, ?)`,
				id, img.Filename, img.Main); err != nil {
				return 0, fmt.Errorf("insert image %s: %w", img.Filename, err)
			}
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return inserted, nil
}
