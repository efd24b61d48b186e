package mirror

import (
	"context"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PairTokens holds the two constituent tokens of a pair.
type PairTokens struct {
	Token0 common.Address
	Token1 common.Address
}

// PairMetadata maps a pair address to its tokens. It is built once at
// startup and only read afterwards.
type PairMetadata map[common.Address]PairTokens

// Lookup returns the token addresses for pair as hex strings, or nils when
// the pair was never loaded.
func (m PairMetadata) Lookup(pair common.Address) (token0, token1 *string) {
	t, ok := m[pair]
	if !ok {
		return nil, nil
	}
	t0, t1 := t.Token0.Hex(), t.Token1.Hex()
	return &t0, &t1
}

// LoadPairMetadata reads token0 and token1 for every pair. A pair that fails
// is logged and left out; the others still load.
func LoadPairMetadata(ctx context.Context, reader *chain.PairReader, pairs []common.Address, logger *logrus.Logger) PairMetadata {
	if logger == nil {
		logger = logrus.New()
	}

	meta := make(PairMetadata, len(pairs))
	for _, pair := range pairs {
		var tokens PairTokens

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			t, err := reader.Token0(gctx, pair)
			tokens.Token0 = t
			return err
		})
		g.Go(func() error {
			t, err := reader.Token1(gctx, pair)
			tokens.Token1 = t
			return err
		})

		if err := g.Wait(); err != nil {
			logger.WithError(err).WithField("pair", pair.Hex()).Error("failed to load pair metadata")
			continue
		}

		meta[pair] = tokens
		logger.WithFields(logrus.Fields{
			"pair":   pair.Hex(),
			"token0": tokens.Token0.Hex(),
			"token1": tokens.Token1.Hex(),
		}).Info("loaded pair metadata")
	}
	return meta
}
