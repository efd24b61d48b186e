// ============================================================================
// cmd/subscriber/main.go - Example Subscriber (Consumer)
// ============================================================================
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/cache"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/config"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
)

var (
	swapColor = color.New(color.FgCyan)
	mintColor = color.New(color.FgGreen)
	burnColor = color.New(color.FgRed)
	syncColor = color.New(color.FgHiBlack)
)

func main() {
	channels := flag.String("channels", constants.PubSubChannelAll, "comma separated channels or patterns (e.g. events:pair:*)")
	flag.Parse()

	logger := config.NewLogger("info")
	config.LoadDotEnv(logger)
	cfg := config.Load()
	logger = config.NewLogger(cfg.LogLevel)

	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	rc := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: addr}), logger)
	defer rc.Close()
	if err := rc.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}

	for _, ch := range strings.Split(*channels, ",") {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		go func(channel string) {
			if err := rc.Subscribe(ctx, channel, printEvent); err != nil && ctx.Err() == nil {
				logger.WithError(err).WithField("channel", channel).Error("subscription ended")
			}
		}(ch)
	}

	logger.Info("subscriber running, press Ctrl+C to stop")
	<-sigChan
	logger.Info("shutting down subscriber")
}

func printEvent(ev *models.PairEvent) {
	c := syncColor
	switch ev.EventName {
	case models.EventSwap:
		c = swapColor
	case models.EventMint:
		c = mintColor
	case models.EventBurn:
		c = burnColor
	}
	c.Printf("%-4s block=%d pair=%s tx=%s log=%d\n",
		ev.EventName, ev.BlockNumber, ev.PairAddress, short(ev.TransactionHash), ev.LogIndex)
}

func short(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:10] + "…"
}
