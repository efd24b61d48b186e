package constants

import "time"

// Table holding mirrored pair events
const EventsTable = "uniswap_events"

// Redis keys
const (
	RedisKeyRecentEvents = "events:recent"
	RedisKeyQueryPrefix  = "sql:"
)

// Redis Pub/Sub channels
const (
	PubSubChannelAll        = "events:all"
	PubSubChannelPairPrefix = "events:pair:"
	PubSubChannelKindPrefix = "events:kind:"
)

// Limits
const (
	MaxRecentEvents        = 200
	DefaultBackfillBlocks  = 1000
	DefaultPollInterval    = 12 * time.Second
	DefaultQueryCacheTTL   = 30 * time.Second
	DefaultAnalysisRowCap  = 100
	DefaultMaxLLMTokens    = 1024
	DefaultNarratorTokens  = 512
	DefaultLLMModel        = "gpt-4o-mini"
	DefaultLLMBaseURL      = "https://api.openai.com/v1"
	NarrationFallbackReply = "I found the data but couldn't generate a natural language response."
)
