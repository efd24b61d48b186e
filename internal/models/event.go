// ============================================================================
// models/event.go
// ============================================================================
package models

import (
	"fmt"
	"time"
)

// EventKind is the name of a pair contract event.
type EventKind string

const (
	EventSwap EventKind = "Swap"
	EventMint EventKind = "Mint"
	EventBurn EventKind = "Burn"
	EventSync EventKind = "Sync"
)

// MirroredKinds are the kinds backfilled and watched by default.
var MirroredKinds = []EventKind{EventSwap, EventMint, EventBurn}

// AllKinds lists every kind that may be stored.
var AllKinds = []EventKind{EventSwap, EventMint, EventBurn, EventSync}

func (k EventKind) String() string { return string(k) }

// Valid reports whether k is one of the four known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventSwap, EventMint, EventBurn, EventSync:
		return true
	}
	return false
}

// ParseEventKind matches s exactly (kinds are case-sensitive in the table).
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown event kind %q", s)
	}
	return k, nil
}

// PairEvent is one normalized row of the uniswap_events table.
type PairEvent struct {
	BlockNumber     uint64         `json:"block_number"`
	TransactionHash string         `json:"transaction_hash"`
	LogIndex        uint           `json:"log_index"`
	EventName       EventKind      `json:"event_name"`
	PairAddress     string         `json:"pair_address"`
	Token0Address   *string        `json:"token0_address"`
	Token1Address   *string        `json:"token1_address"`
	Timestamp       time.Time      `json:"timestamp"` // block time, UTC
	Data            map[string]any `json:"data_json"`
}
