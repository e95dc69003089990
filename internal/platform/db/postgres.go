package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New opens a pool tagged with application so pg_stat_activity shows which
// process (server, worker, replenishctl) holds a connection.
func New(ctx context.Context, dsn, application string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	if application != "" {
		config.ConnConfig.RuntimeParams["application_name"] = "replenishment-" + application
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, Classify(fmt.Errorf("platform/db: new pool: %w", err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, Classify(fmt.Errorf("platform/db: ping: %w", err))
	}

	return pool, nil
}
