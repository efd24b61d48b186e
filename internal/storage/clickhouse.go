package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/sirupsen/logrus"
)

// ClickHouseConfig holds connection settings for the ClickHouse event store
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore writes events through the native protocol and serves
// read-only analysis queries through the database/sql wrapper.
type ClickHouseStore struct {
	conn   driver.Conn
	db     *sql.DB
	logger *logrus.Logger
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	opts := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	db := clickhouse.OpenDB(opts)
	if err := db.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse (sql): %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, db: db, logger: cfg.Logger}, nil
}

const clickhouseSchema = `
CREATE TABLE IF NOT EXISTS ` + constants.EventsTable + ` (
	id               UUID DEFAULT generateUUIDv4(),
	block_number     UInt64,
	transaction_hash String,
	log_index        UInt32,
	event_name       LowCardinality(String),
	pair_address     String,
	token0_address   Nullable(String),
	token1_address   Nullable(String),
	timestamp        DateTime('UTC'),
	data_json        String,
	created_at       DateTime('UTC') DEFAULT now()
) ENGINE = MergeTree
ORDER BY (pair_address, block_number)
`

func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, clickhouseSchema); err != nil {
		return fmt.Errorf("failed to create %s: %w", constants.EventsTable, err)
	}
	return nil
}

func (c *ClickHouseStore) InsertEvent(ctx context.Context, ev *models.PairEvent) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
		INSERT INTO ` + constants.EventsTable + ` (
			block_number, transaction_hash, log_index, event_name, pair_address,
			token0_address, token1_address, timestamp, data_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = c.conn.Exec(ctx, query,
		ev.BlockNumber,
		ev.TransactionHash,
		uint32(ev.LogIndex),
		ev.EventName.String(),
		ev.PairAddress,
		ev.Token0Address,
		ev.Token1Address,
		ev.Timestamp.UTC(),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Query runs sqlQuery with readonly=1 so the server refuses writes
// regardless of what the statement text contains.
func (c *ClickHouseStore) Query(ctx context.Context, sqlQuery string) ([]map[string]any, error) {
	ctx = clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{
		"readonly": 1,
	}))

	rows, err := c.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func (c *ClickHouseStore) Dialect() Dialect { return DialectClickHouse }

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	c.logger.Debug("closing ClickHouse connections")
	dbErr := c.db.Close()
	if err := c.conn.Close(); err != nil {
		return err
	}
	return dbErr
}
