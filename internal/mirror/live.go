package mirror

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// Subscription is a running live watch for one (pair, kind).
type Subscription struct {
	Pair common.Address
	Kind models.EventKind

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Cancel stops the watch and unregisters it from the node. It is safe to
// call more than once.
func (s *Subscription) Cancel() { s.cancel() }

// Done is closed once the watch has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the watch stopped. It is nil while running and after a
// plain Cancel.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

// Subscriber installs live watches. Endpoints that can push logs get a node
// subscription; the rest are polled on a ticker.
type Subscriber struct {
	backend      chain.Backend
	normalizer   *Normalizer
	push         bool
	pollInterval time.Duration
	logger       *logrus.Logger
}

// SubscriberConfig holds configuration for the live subscriber
type SubscriberConfig struct {
	Backend      chain.Backend
	Normalizer   *Normalizer
	Push         bool // use SubscribeFilterLogs instead of polling
	PollInterval time.Duration
	Logger       *logrus.Logger
}

func NewSubscriber(cfg SubscriberConfig) *Subscriber {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	return &Subscriber{
		backend:      cfg.Backend,
		normalizer:   cfg.Normalizer,
		push:         cfg.Push,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
	}
}

// Subscribe starts watching kind on pair. When polling, fromBlock is the
// first block requested.
func (s *Subscriber) Subscribe(ctx context.Context, pair common.Address, kind models.EventKind, fromBlock uint64) (*Subscription, error) {
	q, err := filterQuery(pair, kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{Pair: pair, Kind: kind, cancel: cancel, done: make(chan struct{})}
	log := s.logger.WithFields(logrus.Fields{"pair": pair.Hex(), "event": kind})

	if !s.push {
		go func() {
			log.WithField("interval", s.pollInterval).Info("polling for live events")
			sub.finish(s.poll(ctx, sub, fromBlock))
		}()
		return sub, nil
	}

	ch := make(chan types.Log, 64)
	nodeSub, err := s.backend.SubscribeFilterLogs(ctx, q, ch)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s/%s: %w", pair.Hex(), kind, err)
	}
	log.Info("subscribed to live events")

	go func() {
		defer nodeSub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				sub.finish(nil)
				return
			case err := <-nodeSub.Err():
				if err != nil {
					log.WithError(err).Error("live subscription ended")
				}
				sub.finish(err)
				return
			case l := <-ch:
				s.normalizer.Handle(ctx, kind, pair, l)
			}
		}
	}()
	return sub, nil
}

// SubscribeAll installs one watch per (pair, kind). Watches that fail to
// install are logged and skipped.
func (s *Subscriber) SubscribeAll(ctx context.Context, pairs []common.Address, kinds []models.EventKind, fromBlock uint64) []*Subscription {
	subs := make([]*Subscription, 0, len(pairs)*len(kinds))
	for _, pair := range pairs {
		for _, kind := range kinds {
			sub, err := s.Subscribe(ctx, pair, kind, fromBlock)
			if err != nil {
				s.logger.WithError(err).Error("failed to install live subscription")
				continue
			}
			subs = append(subs, sub)
		}
	}
	return subs
}

// poll asks for new logs every tick. A failed tick keeps the cursor, so the
// next tick requests the same range again.
func (s *Subscriber) poll(ctx context.Context, sub *Subscription, cursor uint64) error {
	q, err := filterQuery(sub.Pair, sub.Kind)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			head, err := s.backend.BlockNumber(ctx)
			if err != nil {
				s.logger.WithError(err).Error("poll error")
				continue
			}
			if head < cursor {
				continue
			}

			q.FromBlock = new(big.Int).SetUint64(cursor)
			q.ToBlock = new(big.Int).SetUint64(head)
			logs, err := s.backend.FilterLogs(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.WithError(err).WithFields(logrus.Fields{
					"from": cursor,
					"to":   head,
				}).Error("poll error")
				continue
			}

			if len(logs) > 0 {
				s.logger.WithFields(logrus.Fields{
					"pair":  sub.Pair.Hex(),
					"event": sub.Kind,
					"count": len(logs),
				}).Debug("found new logs")
			}
			for _, l := range logs {
				s.normalizer.Handle(ctx, sub.Kind, sub.Pair, l)
			}
			cursor = head + 1
		}
	}
}
