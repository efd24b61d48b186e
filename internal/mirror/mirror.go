// ============================================================================
// mirror/mirror.go - load metadata, backfill, then watch live
// ============================================================================
package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Mirror copies pair events from the chain into the event store.
type Mirror struct {
	cfg Config

	mu   sync.Mutex
	subs []*Subscription
}

// Config holds configuration for the mirror
type Config struct {
	Backend        chain.Backend
	Store          storage.EventStore
	Publisher      storage.EventPublisher // optional
	Pairs          []common.Address
	IncludeSync    bool
	BackfillBlocks uint64
	Push           bool
	PollInterval   time.Duration
	Logger         *logrus.Logger
}

func New(cfg Config) *Mirror {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Mirror{cfg: cfg}
}

// Kinds returns the event kinds this mirror stores.
func (m *Mirror) Kinds() []models.EventKind {
	if m.cfg.IncludeSync {
		return models.AllKinds
	}
	return models.MirroredKinds
}

// Start loads pair metadata, runs the backfill and installs live watches
// that continue right after the backfilled head. Watches run until Stop or
// until ctx is cancelled.
func (m *Mirror) Start(ctx context.Context) (*BackfillReport, error) {
	meta := LoadPairMetadata(ctx, chain.NewPairReader(m.cfg.Backend), m.cfg.Pairs, m.cfg.Logger)

	normalizer := NewNormalizer(NormalizerConfig{
		Backend:   m.cfg.Backend,
		Store:     m.cfg.Store,
		Publisher: m.cfg.Publisher,
		Metadata:  meta,
		Logger:    m.cfg.Logger,
	})

	report, err := NewBackfiller(BackfillerConfig{
		Backend:    m.cfg.Backend,
		Normalizer: normalizer,
		Pairs:      m.cfg.Pairs,
		Kinds:      m.Kinds(),
		Window:     m.cfg.BackfillBlocks,
		Logger:     m.cfg.Logger,
	}).Run(ctx)
	if err != nil {
		return report, fmt.Errorf("backfill: %w", err)
	}

	subscriber := NewSubscriber(SubscriberConfig{
		Backend:      m.cfg.Backend,
		Normalizer:   normalizer,
		Push:         m.cfg.Push,
		PollInterval: m.cfg.PollInterval,
		Logger:       m.cfg.Logger,
	})
	subs := subscriber.SubscribeAll(ctx, m.cfg.Pairs, m.Kinds(), report.Head+1)

	m.mu.Lock()
	m.subs = subs
	m.mu.Unlock()

	m.cfg.Logger.WithField("subscriptions", len(subs)).Info("mirror running")
	return report, nil
}

// Subscriptions returns the live watches installed by Start.
func (m *Mirror) Subscriptions() []*Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Subscription(nil), m.subs...)
}

// Stop cancels every live watch and waits for them to finish or for ctx.
func (m *Mirror) Stop(ctx context.Context) error {
	subs := m.Subscriptions()
	for _, s := range subs {
		s.Cancel()
	}
	for _, s := range subs {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.cfg.Logger.Info("mirror stopped")
	return nil
}
