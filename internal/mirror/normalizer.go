package mirror

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingBlockNumber = errors.New("log has no block number")
	ErrRemovedLog         = errors.New("log was removed by a reorg")
)

// Normalizer turns raw pair logs into stored events. Backfill and live
// delivery both go through it.
type Normalizer struct {
	backend   chain.Backend
	store     storage.EventStore
	publisher storage.EventPublisher
	metadata  PairMetadata
	logger    *logrus.Logger
}

// NormalizerConfig holds configuration for the normalizer
type NormalizerConfig struct {
	Backend   chain.Backend
	Store     storage.EventStore
	Publisher storage.EventPublisher // optional
	Metadata  PairMetadata
	Logger    *logrus.Logger
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Metadata == nil {
		cfg.Metadata = PairMetadata{}
	}
	return &Normalizer{
		backend:   cfg.Backend,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		metadata:  cfg.Metadata,
		logger:    cfg.Logger,
	}
}

// Handle normalizes and stores one log, logging any failure.
func (n *Normalizer) Handle(ctx context.Context, kind models.EventKind, pair common.Address, log types.Log) {
	if err := n.Process(ctx, kind, pair, log); err != nil {
		entry := n.logger.WithError(err).WithFields(logrus.Fields{
			"pair":  pair.Hex(),
			"event": kind,
			"tx":    log.TxHash.Hex(),
			"block": log.BlockNumber,
		})
		if errors.Is(err, ErrMissingBlockNumber) || errors.Is(err, ErrRemovedLog) {
			entry.Warn("skipping log")
			return
		}
		entry.Error("failed to process log")
	}
}

// Process normalizes and stores one log and returns what went wrong, if
// anything. Nothing is inserted when an error is returned before the insert.
func (n *Normalizer) Process(ctx context.Context, kind models.EventKind, pair common.Address, log types.Log) error {
	if log.BlockNumber == 0 {
		return ErrMissingBlockNumber
	}
	if log.Removed {
		return ErrRemovedLog
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown event kind %q", kind)
	}

	ts, err := n.blockTime(ctx, log.BlockNumber)
	if err != nil {
		return err
	}

	args, err := chain.DecodeLog(kind, log)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	token0, token1 := n.metadata.Lookup(pair)
	ev := &models.PairEvent{
		BlockNumber:     log.BlockNumber,
		TransactionHash: log.TxHash.Hex(),
		LogIndex:        log.Index,
		EventName:       kind,
		PairAddress:     pair.Hex(),
		Token0Address:   token0,
		Token1Address:   token1,
		Timestamp:       ts,
		Data:            jsonSafeArgs(args),
	}

	if err := n.store.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"pair":  ev.PairAddress,
		"event": kind,
		"block": ev.BlockNumber,
		"tx":    ev.TransactionHash,
	}).Debug("stored event")

	if n.publisher != nil {
		if err := n.publisher.PublishEvent(ctx, ev); err != nil {
			n.logger.WithError(err).Warn("failed to publish event")
		}
	}
	return nil
}

func (n *Normalizer) blockTime(ctx context.Context, number uint64) (time.Time, error) {
	header, err := n.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch block %d: %w", number, err)
	}
	if header == nil || header.Time == 0 {
		return time.Time{}, fmt.Errorf("block %d has no timestamp", number)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

// jsonSafeArgs converts decoded arguments into values that survive a JSON
// round trip without losing precision.
func jsonSafeArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = jsonSafe(v)
	}
	return out
}

func jsonSafe(v any) any {
	switch t := v.(type) {
	case *big.Int:
		if t == nil {
			return nil
		}
		return t.String()
	case common.Address:
		return t.Hex()
	case common.Hash:
		return t.Hex()
	case []byte:
		return hexutil.Encode(t)
	case uint64:
		return new(big.Int).SetUint64(t).String()
	case int64:
		return big.NewInt(t).String()
	default:
		return v
	}
}
