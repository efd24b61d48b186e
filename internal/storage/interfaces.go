package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
)

// EventStore defines the append-only persistent store for pair events
type EventStore interface {
	// InsertEvent appends one normalized event; there is no update or delete path
	InsertEvent(ctx context.Context, ev *models.PairEvent) error

	// EnsureSchema creates the events table when it does not exist
	EnsureSchema(ctx context.Context) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// QueryExecutor runs read-only SQL against the events table
type QueryExecutor interface {
	// Query executes a single SELECT and returns each row as a column->value map
	Query(ctx context.Context, sql string) ([]map[string]any, error)

	// Dialect names the SQL dialect the executor speaks
	Dialect() Dialect
}

// EventPublisher fans a persisted event out to live consumers
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *models.PairEvent) error
}

// Dialect is the SQL flavour of the backing store
type Dialect string

const (
	DialectClickHouse Dialect = "clickhouse"
	DialectPostgres   Dialect = "postgres"
)
