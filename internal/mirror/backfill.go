package mirror

import (
	"context"
	"fmt"
	"math/big"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Backfiller replays historical pair logs over a fixed look-back window.
type Backfiller struct {
	backend    chain.Backend
	normalizer *Normalizer
	pairs      []common.Address
	kinds      []models.EventKind
	window     uint64
	logger     *logrus.Logger
}

// BackfillerConfig holds configuration for the backfiller
type BackfillerConfig struct {
	Backend    chain.Backend
	Normalizer *Normalizer
	Pairs      []common.Address
	Kinds      []models.EventKind // defaults to models.MirroredKinds
	Window     uint64
	Logger     *logrus.Logger
}

// BackfillReport summarizes one backfill run.
type BackfillReport struct {
	Head     uint64
	From     uint64
	LogsSeen int
	Inserted int
	// Failed lists "pair/kind" entries whose log query failed.
	Failed []string
}

func NewBackfiller(cfg BackfillerConfig) *Backfiller {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = models.MirroredKinds
	}
	return &Backfiller{
		backend:    cfg.Backend,
		normalizer: cfg.Normalizer,
		pairs:      cfg.Pairs,
		kinds:      cfg.Kinds,
		window:     cfg.Window,
		logger:     cfg.Logger,
	}
}

// Run requests every (pair, kind) over [head-window, head] in a single call
// each and normalizes the logs in the order the node returned them. Only a
// failure to read the chain head is returned; everything else is recorded in
// the report.
func (b *Backfiller) Run(ctx context.Context) (*BackfillReport, error) {
	head, err := b.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain head: %w", err)
	}

	var from uint64
	if head > b.window {
		from = head - b.window
	}
	report := &BackfillReport{Head: head, From: from}

	b.logger.WithFields(logrus.Fields{
		"from":  from,
		"to":    head,
		"pairs": len(b.pairs),
		"kinds": b.kinds,
	}).Info("starting backfill")

	for _, pair := range b.pairs {
		for _, kind := range b.kinds {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			seen, inserted, err := b.backfillOne(ctx, pair, kind, from, head)
			report.LogsSeen += seen
			report.Inserted += inserted
			if err != nil {
				b.logger.WithError(err).WithFields(logrus.Fields{
					"pair":  pair.Hex(),
					"event": kind,
				}).Error("backfill failed")
				report.Failed = append(report.Failed, pair.Hex()+"/"+kind.String())
			}
		}
	}

	b.logger.WithFields(logrus.Fields{
		"logs":     report.LogsSeen,
		"inserted": report.Inserted,
		"failed":   len(report.Failed),
	}).Info("backfill complete")

	return report, nil
}

func (b *Backfiller) backfillOne(ctx context.Context, pair common.Address, kind models.EventKind, from, to uint64) (int, int, error) {
	q, err := filterQuery(pair, kind)
	if err != nil {
		return 0, 0, err
	}
	q.FromBlock = new(big.Int).SetUint64(from)
	q.ToBlock = new(big.Int).SetUint64(to)

	logs, err := b.backend.FilterLogs(ctx, q)
	if err != nil {
		return 0, 0, fmt.Errorf("filter logs: %w", err)
	}

	inserted := 0
	for _, l := range logs {
		if err := b.normalizer.Process(ctx, kind, pair, l); err != nil {
			b.logger.WithError(err).WithFields(logrus.Fields{
				"pair":  pair.Hex(),
				"event": kind,
				"tx":    l.TxHash.Hex(),
			}).Warn("skipping log")
			continue
		}
		inserted++
	}
	return len(logs), inserted, nil
}

// filterQuery selects logs of one kind emitted by one pair.
func filterQuery(pair common.Address, kind models.EventKind) (ethereum.FilterQuery, error) {
	id, err := chain.EventID(kind)
	if err != nil {
		return ethereum.FilterQuery{}, err
	}
	return ethereum.FilterQuery{
		Addresses: []common.Address{pair},
		Topics:    [][]common.Hash{{id}},
	}, nil
}
