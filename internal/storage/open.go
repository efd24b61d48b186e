package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Store is a backend that both persists events and answers analysis queries.
type Store interface {
	EventStore
	QueryExecutor
}

// OpenConfig selects and configures a backend.
type OpenConfig struct {
	Backend    string // "clickhouse" or "postgres"
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
	Logger     *logrus.Logger
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg OpenConfig) (Store, error) {
	switch Dialect(cfg.Backend) {
	case DialectClickHouse:
		if cfg.ClickHouse.Logger == nil {
			cfg.ClickHouse.Logger = cfg.Logger
		}
		return NewClickHouseStore(ctx, cfg.ClickHouse)
	case DialectPostgres:
		if cfg.Postgres.Logger == nil {
			cfg.Postgres.Logger = cfg.Logger
		}
		return NewPostgresStore(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
