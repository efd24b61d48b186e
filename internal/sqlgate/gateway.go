// Package sqlgate is the only path from analyst-authored SQL to the event
// store. It strips trailing terminators, rejects mutating keywords, accepts
// only a single SELECT (or WITH ... SELECT) statement and runs it read-only.
package sqlgate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyQuery     = errors.New("query is empty")
	ErrForbiddenQuery = errors.New("query is not allowed")
)

// denied matches the mutating keywords anywhere in the text, including
// inside identifiers and string literals.
var denied = regexp.MustCompile(`(?i)drop|delete|update|insert|truncate|alter`)

var leadingKeyword = regexp.MustCompile(`(?i)^(select|with)\b`)

// ResultCache memoizes query results. *cache.RedisCache satisfies it.
type ResultCache interface {
	GetQueryResult(ctx context.Context, sql string) ([]map[string]any, bool, error)
	SetQueryResult(ctx context.Context, sql string, rows []map[string]any, ttl time.Duration) error
}

// Gateway validates and executes read-only SQL.
type Gateway struct {
	executor storage.QueryExecutor
	cache    ResultCache
	cacheTTL time.Duration
	logger   *logrus.Logger
}

// Config holds configuration for the gateway
type Config struct {
	Executor storage.QueryExecutor
	Cache    ResultCache // optional
	CacheTTL time.Duration
	Logger   *logrus.Logger
}

func New(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Gateway{
		executor: cfg.Executor,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger,
	}
}

// Dialect reports the SQL dialect of the underlying store.
func (g *Gateway) Dialect() storage.Dialect {
	return g.executor.Dialect()
}

// Prepare returns the statement that would be executed for query, or the
// reason it is refused.
func Prepare(query string) (string, error) {
	q := strings.TrimSpace(query)
	for strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	}
	if q == "" {
		return "", ErrEmptyQuery
	}
	if kw := denied.FindString(q); kw != "" {
		return "", fmt.Errorf("%w: contains %q", ErrForbiddenQuery, strings.ToUpper(kw))
	}
	if !leadingKeyword.MatchString(q) {
		return "", fmt.Errorf("%w: only SELECT statements are accepted", ErrForbiddenQuery)
	}
	if strings.Contains(q, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrForbiddenQuery)
	}
	return q, nil
}

// Execute prepares query and runs it. Validation errors wrap ErrEmptyQuery
// or ErrForbiddenQuery; anything else came from the store.
func (g *Gateway) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	q, err := Prepare(query)
	if err != nil {
		g.logger.WithError(err).WithField("query", query).Warn("rejected query")
		return nil, err
	}

	if g.cache != nil {
		rows, ok, err := g.cache.GetQueryResult(ctx, q)
		if err != nil {
			g.logger.WithError(err).Warn("query cache read failed")
		} else if ok {
			g.logger.WithField("rows", len(rows)).Debug("query cache hit")
			return rows, nil
		}
	}

	start := time.Now()
	rows, err := g.executor.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"rows":     len(rows),
		"duration": time.Since(start),
	}).Debug("query executed")

	if g.cache != nil && g.cacheTTL > 0 {
		if err := g.cache.SetQueryResult(ctx, q, rows, g.cacheTTL); err != nil {
			g.logger.WithError(err).Warn("query cache write failed")
		}
	}
	return rows, nil
}

// IsValidationError reports whether err means the query was refused before
// reaching the store.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyQuery) || errors.Is(err, ErrForbiddenQuery)
}
