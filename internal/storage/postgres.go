package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresConfig holds connection settings for the Postgres event store
type PostgresConfig struct {
	DSN    string
	Logger *logrus.Logger
}

// eventRow maps the uniswap_events table for gorm.
type eventRow struct {
	ID              uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	BlockNumber     uint64         `gorm:"column:block_number;not null;index"`
	TransactionHash string         `gorm:"column:transaction_hash;not null"`
	LogIndex        uint           `gorm:"column:log_index;not null"`
	EventName       string         `gorm:"column:event_name;not null;index"`
	PairAddress     string         `gorm:"column:pair_address;not null;index"`
	Token0Address   *string        `gorm:"column:token0_address"`
	Token1Address   *string        `gorm:"column:token1_address"`
	Timestamp       time.Time      `gorm:"column:timestamp;type:timestamp without time zone;not null;index"`
	DataJSON        datatypes.JSON `gorm:"column:data_json;type:jsonb"`
	CreatedAt       time.Time      `gorm:"column:created_at;type:timestamp without time zone;autoCreateTime"`
}

func (eventRow) TableName() string { return constants.EventsTable }

// PostgresStore persists events with gorm and runs analysis queries inside
// read-only transactions.
type PostgresStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	s := &PostgresStore{db: db, logger: cfg.Logger}
	if err := s.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	cfg.Logger.Info("connected to Postgres")
	return s, nil
}

func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(&eventRow{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", constants.EventsTable, err)
	}
	return nil
}

func (p *PostgresStore) InsertEvent(ctx context.Context, ev *models.PairEvent) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	row := &eventRow{
		BlockNumber:     ev.BlockNumber,
		TransactionHash: ev.TransactionHash,
		LogIndex:        ev.LogIndex,
		EventName:       ev.EventName.String(),
		PairAddress:     ev.PairAddress,
		Token0Address:   ev.Token0Address,
		Token1Address:   ev.Token1Address,
		Timestamp:       ev.Timestamp.UTC(),
		DataJSON:        datatypes.JSON(data),
	}
	if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (p *PostgresStore) Query(ctx context.Context, sqlQuery string) ([]map[string]any, error) {
	var out []map[string]any
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := tx.Raw(sqlQuery).Rows()
		if err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
		defer rows.Close()

		out, err = scanRows(rows)
		return err
	}, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) Dialect() Dialect { return DialectPostgres }

func (p *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	p.logger.Debug("closing Postgres connection")
	return sqlDB.Close()
}
