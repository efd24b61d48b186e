// ============================================================================
// cmd/mirror/main.go - Uniswap V2 pair event mirror
// ============================================================================
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/cache"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/config"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/mirror"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	bootLogger := config.NewLogger("info")
	config.LoadDotEnv(bootLogger)

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	if err := cfg.ValidateMirror(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	client, err := chain.Dial(ctx, cfg.RPCUrl)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to RPC")
	}
	defer client.Close()

	store, err := storage.Open(ctx, storage.OpenConfig{
		Backend: cfg.StoreBackend,
		ClickHouse: storage.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		},
		Postgres: storage.PostgresConfig{DSN: cfg.PostgresDSN},
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to open event store")
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Fatal("failed to create events table")
	}

	// Redis fan-out is optional
	var publisher storage.EventPublisher
	if cfg.RedisAddr != "" {
		rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		rc := cache.NewRedisCacheFromClient(rclient, logger)
		if err := rc.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unavailable, live fan-out disabled")
			_ = rc.Close()
		} else {
			publisher = rc
			defer rc.Close()
		}
	}

	push := chain.SupportsSubscriptions(cfg.RPCUrl)
	logger.WithFields(logrus.Fields{
		"pairs":    len(cfg.PairAddresses),
		"window":   cfg.BackfillBlocks,
		"backend":  cfg.StoreBackend,
		"push":     push,
		"interval": cfg.PollInterval,
	}).Info("starting uniswap event mirror")

	m := mirror.New(mirror.Config{
		Backend:        client,
		Store:          store,
		Publisher:      publisher,
		Pairs:          cfg.Pairs(),
		IncludeSync:    cfg.IncludeSync,
		BackfillBlocks: cfg.BackfillBlocks,
		Push:           push,
		PollInterval:   cfg.PollInterval,
		Logger:         logger,
	})

	if _, err := m.Start(ctx); err != nil {
		logger.WithError(err).Fatal("mirror failed to start")
	}

	logger.Info("mirror running, press Ctrl+C to stop")
	<-sigCh
	logger.Info("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := m.Stop(stopCtx); err != nil {
		logger.WithError(err).Warn("subscriptions did not stop in time")
	}
}
