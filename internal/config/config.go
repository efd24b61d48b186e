package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/ethereum/go-ethereum/common"
)

// Store backends
const (
	BackendClickHouse = "clickhouse"
	BackendPostgres   = "postgres"
)

type Config struct {
	// Chain settings
	RPCUrl         string
	PairAddresses  []string
	BackfillBlocks uint64
	PollInterval   time.Duration
	IncludeSync    bool

	// Event store
	StoreBackend string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Postgres settings
	PostgresDSN string

	// Redis settings (optional)
	RedisAddr     string
	QueryCacheTTL time.Duration

	// Language model settings
	LLMAPIKey     string
	LLMBaseURL    string
	LLMModel      string
	NarratorModel string

	// API settings
	APIAddr string
	APIKey  string
	DevMode bool

	LogLevel string
}

func Load() *Config {
	return &Config{
		// Chain
		RPCUrl:         getEnv("RPC_URL", ""),
		PairAddresses:  splitList(getEnv("PAIR_ADDRESSES", "")),
		BackfillBlocks: uint64(getIntEnv("BACKFILL_BLOCKS", constants.DefaultBackfillBlocks)),
		PollInterval:   getDurationEnv("POLL_INTERVAL", constants.DefaultPollInterval),
		IncludeSync:    getBoolEnv("MIRROR_INCLUDE_SYNC", false),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendClickHouse)),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "uniswap"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Postgres
		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		QueryCacheTTL: getDurationEnv("QUERY_CACHE_TTL", constants.DefaultQueryCacheTTL),

		// LLM
		LLMAPIKey:     getEnv("LLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
		LLMBaseURL:    getEnv("LLM_BASE_URL", constants.DefaultLLMBaseURL),
		LLMModel:      getEnv("LLM_MODEL", constants.DefaultLLMModel),
		NarratorModel: getEnv("NARRATOR_MODEL", ""),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the structural settings shared by every binary.
// Credentials are checked where they are used.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendClickHouse:
		if c.ClickHouseAddr == "" {
			return fmt.Errorf("CLICKHOUSE_ADDR is required for the clickhouse backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	for _, p := range c.PairAddresses {
		if !common.IsHexAddress(p) {
			return fmt.Errorf("invalid pair address %q", p)
		}
	}
	return nil
}

// ValidateMirror additionally checks what the event mirror needs to start.
func (c *Config) ValidateMirror() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.RPCUrl == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if len(c.PairAddresses) == 0 {
		return fmt.Errorf("PAIR_ADDRESSES must list at least one pair")
	}
	if c.BackfillBlocks == 0 {
		return fmt.Errorf("BACKFILL_BLOCKS must be > 0")
	}
	return nil
}

// Pairs returns the configured pair addresses in configuration order.
func (c *Config) Pairs() []common.Address {
	out := make([]common.Address, 0, len(c.PairAddresses))
	for _, p := range c.PairAddresses {
		out = append(out, common.HexToAddress(p))
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
