package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/chaos-shop/internal/domain"
)

// GetFlag reads one chaos flag; found is false when it was never written.
func (r *Repository) GetFlag(ctx context.Context, name string) (bool, bool, error) {
	var enabled bool
	err := r.db.QueryRowContext(ctx, `SELECT enabled FROM chaos_flags WHERE name = $1`, name).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("query flag %s: %w", name, err)
	}
	return enabled, true, nil
}

func (r *Repository) UpsertFlag(ctx context.Context, name string, enabled bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chaos_flags (name, enabled, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (name) DO UPDATE
		 SET enabled = EXCLUDED.enabled, updated_at = NOW()`,
		name, enabled)
	if err != nil {
		return fmt.Errorf("upsert flag %s: %w", name, err)
	}
	return nil
}

func (r *Repository) ListFlags(ctx context.Context) ([]domain.FaultFlag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, enabled, updated_at FROM chaos_flags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	var flags []domain.FaultFlag
	for rows.Next() {
		var f domain.FaultFlag
		if err := rows.Scan(&f.Name, &f.Enabled, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		flags = append(flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return flags, nil
}
