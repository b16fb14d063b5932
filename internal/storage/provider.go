// Package storage selects the article store backend named in configuration.
// The application depends only on article.Store, so the backend can change
// from memory to Postgres or SQLite without touching the HTTP layer.
package storage

import (
	"context"
	"fmt"

	"github.com/JakeFAU/blog-ssr/internal/article"
	"github.com/JakeFAU/blog-ssr/internal/config"
	"github.com/JakeFAU/blog-ssr/internal/storage/memory"
	"github.com/JakeFAU/blog-ssr/internal/storage/postgres"
	"github.com/JakeFAU/blog-ssr/internal/storage/sqlite"
)

// Open constructs the configured article store.
func Open(
	ctx context.Context,
	cfg config.StoreConfig,
	ids article.IDGenerator,
	clock article.Clock,
) (article.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return memory.NewArticleStore(ids, clock), nil
	case config.BackendPostgres:
		store, err := postgres.NewArticleStore(ctx, postgres.Config{
			DSN:             cfg.DSN,
			Table:           cfg.Table,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
		}, ids, clock)
		if err != nil {
			return nil, fmt.Errorf("postgres article store: %w", err)
		}
		return store, nil
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.DSN, ids, clock)
		if err != nil {
			return nil, fmt.Errorf("sqlite article store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
