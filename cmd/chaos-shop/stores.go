package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/chaos-shop/internal/catalog"
	"github.com/fjod/chaos-shop/internal/config"
	"github.com/fjod/chaos-shop/internal/faults"
	"github.com/fjod/chaos-shop/internal/repository"
)

// openOrderStore connects to Postgres and applies pending migrations.
func openOrderStore(cfg *config.Config) (*repository.Repository, error) {
	creds := cfg.Postgres.Credentials()

	repo, err := repository.NewRepository(creds)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := repo.RunMigrations(creds); err != nil {
		repo.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	slog.Info("order database ready", "host", creds.Host, "db", creds.DBName)
	return repo, nil
}

// openCatalog opens the SQLite catalog, migrates it and loads the seed
// fixture when one is configured.
func openCatalog(ctx context.Context, cfg *config.Config, checker faults.Checker) (*catalog.Repository, error) {
	repo, err := catalog.NewRepository(cfg.Catalog.DBPath, checker)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := repo.RunMigrations(cfg.Catalog.MigrationsPath); err != nil {
		repo.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	if cfg.Catalog.SeedFile != "" {
		n, err := repo.Seed(ctx, cfg.Catalog.SeedFile)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		slog.Info("catalog seeded", "file", cfg.Catalog.SeedFile, "inserted", n)
	}
	return repo, nil
}

type noFaults struct{}

func (noFaults) IsEnabled(context.Context, string) bool { return false }
