package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/ai"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/cache"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/config"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/server"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/sqlgate"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// main is the entry point for the API server
// It initializes all dependencies and starts the HTTP server with graceful shutdown
func main() {
	bootLogger := config.NewLogger("info")
	config.LoadDotEnv(bootLogger)

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

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

	checks := map[string]server.Pinger{"store": store}

	// Redis backs the recent-events endpoint and the query cache (optional)
	var (
		recent     server.RecentEvents
		queryCache sqlgate.ResultCache
	)
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), logger)
		if err := rc.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unavailable, recent events and query cache disabled")
			_ = rc.Close()
		} else {
			recent, queryCache = rc, rc
			checks["redis"] = rc
			defer rc.Close()
		}
	}

	gateway := sqlgate.New(sqlgate.Config{
		Executor: store,
		Cache:    queryCache,
		CacheTTL: cfg.QueryCacheTTL,
		Logger:   logger,
	})

	// A missing key is reported per request as a configuration error
	classifierLLM, narratorLLM := buildLLMs(cfg, logger)

	// Live reserves for pool analysis need an RPC endpoint
	var reserves ai.ReservesReader
	if cfg.RPCUrl != "" {
		client, err := chain.Dial(ctx, cfg.RPCUrl)
		if err != nil {
			logger.WithError(err).Warn("rpc unavailable, pool analysis without live reserves")
		} else {
			defer client.Close()
			reserves = chain.NewPairReader(client)
		}
	}

	narrator := ai.NewNarrator(ai.NarratorConfig{LLM: narratorLLM, Logger: logger})
	router := ai.NewRouter(ai.RouterConfig{
		Classifier: ai.NewClassifier(ai.ClassifierConfig{LLM: classifierLLM, Dialect: store.Dialect(), Logger: logger}),
		Queries:    gateway,
		Narrator:   narrator,
		Reserves:   reserves,
		Pairs:      cfg.Pairs(),
		Logger:     logger,
	})

	h := &server.Handlers{
		Router:   router,
		Narrator: narrator,
		Queries:  gateway,
		Recent:   recent,
		Checks:   checks,
		DevMode:  cfg.DevMode,
		Logger:   logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer waitCancel()
	if err := srv.WaitClosed(waitCtx); err != nil {
		logger.WithError(err).Warn("server did not close cleanly")
	}
}

// buildLLMs returns the classifier and narrator models. Both are nil when no
// API key is configured.
func buildLLMs(cfg *config.Config, logger *logrus.Logger) (llms.Model, llms.Model) {
	llmCfg := ai.LLMConfig{APIKey: cfg.LLMAPIKey, BaseURL: cfg.LLMBaseURL, Model: cfg.LLMModel}
	classifier, err := ai.NewLLM(llmCfg)
	if err != nil {
		logger.WithError(err).Warn("language model disabled")
		return nil, nil
	}

	if cfg.NarratorModel == "" || cfg.NarratorModel == cfg.LLMModel {
		return classifier, classifier
	}
	llmCfg.Model = cfg.NarratorModel
	narrator, err := ai.NewLLM(llmCfg)
	if err != nil {
		logger.WithError(err).Warn("narrator model disabled")
		return classifier, nil
	}
	return classifier, narrator
}
