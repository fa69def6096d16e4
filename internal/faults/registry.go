// Package faults is the chaos control plane: a durable registry of named
// boolean switches that request paths consult before deciding to misbehave.
package faults

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/chaos-shop/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	SlowProductList = "slow_product_list"
	NPlus1Images    = "nplus1_images"
	SlowImages      = "slow_images"
	BrokenImages    = "broken_images"
	ImagePermission = "image_permission_error"
)

const lookupTimeout = 2 * time.Second

// Known lists the recognized flags in the order the admin panel shows them.
var Known = []string{
	SlowProductList,
	NPlus1Images,
	SlowImages,
	BrokenImages,
	ImagePermission,
}

func IsKnown(name string) bool {
	for _, k := range Known {
		if k == name {
			return true
		}
	}
	return false
}

// FlagStore persists flags. Lookups of a never-written name report found=false.
type FlagStore interface {
	GetFlag(ctx context.Context, name string) (enabled bool, found bool, err error)
	UpsertFlag(ctx context.Context, name string, enabled bool) error
	ListFlags(ctx context.Context) ([]domain.FaultFlag, error)
}

// Checker is the read side consumers depend on.
type Checker interface {
	IsEnabled(ctx context.Context, name string) bool
}

type Registry struct {
	store FlagStore
	sfg   singleflight.Group // collapses concurrent reads of the same flag
}

func NewRegistry(store FlagStore) *Registry {
	return &Registry{store: store}
}

// IsEnabled never fails: a missing flag or a storage error reads as false.
// The shared lookup is detached from the caller that started it, so one
// cancelled request cannot switch a flag off for the others waiting on it.
func (r *Registry) IsEnabled(ctx context.Context, name string) bool {
	v, err, _ := r.sfg.Do(name, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		enabled, found, err := r.store.GetFlag(lookupCtx, name)
		if err != nil {
			return false, err
		}
		return found && enabled, nil
	})
	if err != nil {
		slog.WarnContext(ctx, "fault flag lookup failed, treating as disabled", "flag", name, "error", err)
		return false
	}
	return v.(bool)
}

// SetFlag upserts the flag; the write is committed before it returns.
func (r *Registry) SetFlag(ctx context.Context, name string, enabled bool) error {
	if err := r.store.UpsertFlag(ctx, name, enabled); err != nil {
		return fmt.Errorf("set flag %s: %w", name, err)
	}
	slog.InfoContext(ctx, "fault flag updated", "flag", name, "enabled", enabled)
	return nil
}

// Snapshot returns the current value of every recognized flag.
func (r *Registry) Snapshot(ctx context.Context) (map[string]bool, error) {
	stored, err := r.store.ListFlags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	flags := make(map[string]bool, len(Known))
	for _, k := range Known {
		flags[k] = false
	}
	for _, f := range stored {
		if IsKnown(f.Name) {
			flags[f.Name] = f.Enabled
		}
	}
	return flags, nil
}
