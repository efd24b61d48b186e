package mirror

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var (
	pairA  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	pairB  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	token0 = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	router = common.HexToAddress("0x7a250d5630b4cf539739df2c5dacb4c659f2488d")
)

// fakeBackend is an in-memory chain. Methods not overridden panic through
// the nil embedded Backend.
type fakeBackend struct {
	chain.Backend

	mu          sync.Mutex
	head        uint64
	logs        []types.Log
	headerErr   error
	filterErr   map[common.Hash]error
	filterCalls []ethereum.FilterQuery
	tokens      map[common.Address]PairTokens

	subCh  chan<- types.Log
	subbed *fakeSub
}

func newFakeBackend(head uint64) *fakeBackend {
	return &fakeBackend{head: head, filterErr: map[common.Hash]error{}, tokens: map[common.Address]PairTokens{}}
}

func (b *fakeBackend) setHead(h uint64) {
	b.mu.Lock()
	b.head = h
	b.mu.Unlock()
}

func (b *fakeBackend) addLogs(logs ...types.Log) {
	b.mu.Lock()
	b.logs = append(b.logs, logs...)
	b.mu.Unlock()
}

func (b *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head, nil
}

func (b *fakeBackend) HeaderByNumber(_ context.Context, n *big.Int) (*types.Header, error) {
	if b.headerErr != nil {
		return nil, b.headerErr
	}
	return &types.Header{Number: n, Time: 1700000000 + n.Uint64()}, nil
}

func (b *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filterCalls = append(b.filterCalls, q)

	topic := q.Topics[0][0]
	if err := b.filterErr[topic]; err != nil {
		return nil, err
	}

	var out []types.Log
	for _, l := range b.logs {
		if l.Address != q.Addresses[0] || l.Topics[0] != topic {
			continue
		}
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (b *fakeBackend) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subCh = ch
	b.subbed = &fakeSub{errc: make(chan error, 1)}
	return b.subbed, nil
}

func (b *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	m, err := chain.PairABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	t, ok := b.tokens[*msg.To]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	switch m.Name {
	case "token0":
		return m.Outputs.Pack(t.Token0)
	case "token1":
		return m.Outputs.Pack(t.Token1)
	}
	return nil, errors.New("execution reverted")
}

type fakeSub struct {
	errc         chan error
	unsubscribed atomic.Bool
}

func (s *fakeSub) Unsubscribe()      { s.unsubscribed.Store(true) }
func (s *fakeSub) Err() <-chan error { return s.errc }

// memStore records inserted events.
type memStore struct {
	mu        sync.Mutex
	events    []*models.PairEvent
	failBlock uint64
}

func (s *memStore) InsertEvent(_ context.Context, ev *models.PairEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBlock != 0 && ev.BlockNumber == s.failBlock {
		return errors.New("connection reset")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) EnsureSchema(context.Context) error { return nil }
func (s *memStore) Ping(context.Context) error         { return nil }
func (s *memStore) Close() error                       { return nil }

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type memPublisher struct {
	mu        sync.Mutex
	published []*models.PairEvent
	err       error
}

func (p *memPublisher) PublishEvent(_ context.Context, ev *models.PairEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, ev)
	return nil
}

// pairLog builds a log of kind emitted by pair at block. values are the
// non-indexed arguments in ABI order.
func pairLog(t *testing.T, kind models.EventKind, pair common.Address, block uint64, values ...any) types.Log {
	t.Helper()
	ev := chain.PairABI.Events[kind.String()]
	data, err := ev.Inputs.NonIndexed().Pack(values...)
	require.NoError(t, err)

	topics := []common.Hash{ev.ID}
	for _, in := range ev.Inputs {
		if in.Indexed {
			topics = append(topics, common.BytesToHash(router.Bytes()))
		}
	}
	return types.Log{
		Address:     pair,
		Topics:      topics,
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
	}
}

func swapLog(t *testing.T, pair common.Address, block uint64) types.Log {
	return pairLog(t, models.EventSwap, pair, block, big.NewInt(100), big.NewInt(0), big.NewInt(0), big.NewInt(95))
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}
