package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisCache keeps the most recent mirrored events, fans them out over
// Pub/Sub and memoizes analysis query results.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, logger: logger}
}

// AddRecentEvent pushes ev onto the capped recent list.
func (r *RedisCache) AddRecentEvent(ctx context.Context, ev *models.PairEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentEvents, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentEvents, 0, constants.MaxRecentEvents-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add recent event: %w", err)
	}
	return nil
}

// GetRecentEvents returns up to limit events, newest first.
func (r *RedisCache) GetRecentEvents(ctx context.Context, limit int64) ([]*models.PairEvent, error) {
	if limit <= 0 {
		return []*models.PairEvent{}, nil
	}
	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentEvents, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent events: %w", err)
	}

	out := make([]*models.PairEvent, 0, len(vals))
	for _, v := range vals {
		var ev models.PairEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			r.logger.WithError(err).Debug("skipping malformed recent event")
			continue
		}
		out = append(out, &ev)
	}
	return out, nil
}

// GetQueryResult returns cached rows for sqlQuery. The bool is false on a miss.
func (r *RedisCache) GetQueryResult(ctx context.Context, sqlQuery string) ([]map[string]any, bool, error) {
	val, err := r.client.Get(ctx, queryKey(sqlQuery)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get query result: %w", err)
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(val), &rows); err != nil {
		return nil, false, fmt.Errorf("unmarshal query result: %w", err)
	}
	return rows, true, nil
}

// SetQueryResult caches rows for sqlQuery for ttl.
func (r *RedisCache) SetQueryResult(ctx context.Context, sqlQuery string, rows []map[string]any, ttl time.Duration) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal query result: %w", err)
	}
	if err := r.client.Set(ctx, queryKey(sqlQuery), data, ttl).Err(); err != nil {
		return fmt.Errorf("set query result: %w", err)
	}
	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func queryKey(sqlQuery string) string {
	sum := sha256.Sum256([]byte(sqlQuery))
	return constants.RedisKeyQueryPrefix + hex.EncodeToString(sum[:])
}
