package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/fjod/chaos-shop/internal/faults"
)

// attachImages loads images for the listed products with one batched query,
// or with one query per product when nplus1_images is enabled.
func (r *Repository) attachImages(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	if r.faults.IsEnabled(ctx, faults.NPlus1Images) {
		slog.InfoContext(ctx, "chaos: n+1 image lookups", "products", len(products))
		for _, p := range products {
			images, err := r.imagesForProduct(ctx, p.ID)
			if err != nil {
				return err
			}
			p.Images = images
		}
		return nil
	}

	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	byProduct, err := r.imagesForProducts(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range products {
		p.Images = byProduct[p.ID]
	}
	return nil
}

func (r *Repository) imagesForProduct(ctx context.Context, productID int64) ([]domain.ProductImage, error) {
	byProduct, err := r.queryImages(ctx,
		`SELECT id, product_id, filename, is_main FROM product_images WHERE product_id = ? ORDER BY id`,
		productID)
	if err != nil {
		return nil, err
	}
	return byProduct[productID], nil
}

func (r *Repository) imagesForProducts(ctx context.Context, ids []int64) (map[int64][]domain.ProductImage, error) {
	placeholders, args := inClause(ids)
	return r.queryImages(ctx,
		`SELECT id, product_id, filename, is_main FROM product_images WHERE product_id IN (`+placeholders+`) ORDER BY id`,
		args...)
}

func (r *Repository) queryImages(ctx context.Context, query string, args ...any) (map[int64][]domain.ProductImage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]domain.ProductImage)
	for rows.Next() {
		var img domain.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.Filename, &img.IsMain); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		result[img.ProductID] = append(result[img.ProductID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}
