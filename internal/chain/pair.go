package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Reserves is the result of getReserves on a pair.
type Reserves struct {
	Reserve0           *big.Int `json:"reserve0"`
	Reserve1           *big.Int `json:"reserve1"`
	BlockTimestampLast uint32   `json:"block_timestamp_last"`
}

// PairReader reads view values from pair contracts.
type PairReader struct {
	backend Backend
}

func NewPairReader(backend Backend) *PairReader {
	return &PairReader{backend: backend}
}

// Token0 returns the pair's token0 address.
func (r *PairReader) Token0(ctx context.Context, pair common.Address) (common.Address, error) {
	return r.callAddress(ctx, pair, "token0")
}

// Token1 returns the pair's token1 address.
func (r *PairReader) Token1(ctx context.Context, pair common.Address) (common.Address, error) {
	return r.callAddress(ctx, pair, "token1")
}

// Reserves returns the pair's current reserves.
func (r *PairReader) Reserves(ctx context.Context, pair common.Address) (*Reserves, error) {
	out, err := r.call(ctx, pair, "getReserves")
	if err != nil {
		return nil, err
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("getReserves on %s: unexpected %d outputs", pair.Hex(), len(out))
	}
	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	ts, ok2 := out[2].(uint32)
	if !ok0 || !ok1 || !ok2 {
		return nil, fmt.Errorf("getReserves on %s: unexpected output types", pair.Hex())
	}
	return &Reserves{Reserve0: r0, Reserve1: r1, BlockTimestampLast: ts}, nil
}

func (r *PairReader) callAddress(ctx context.Context, pair common.Address, method string) (common.Address, error) {
	out, err := r.call(ctx, pair, method)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("%s on %s: unexpected %d outputs", method, pair.Hex(), len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s on %s: output is %T, not an address", method, pair.Hex(), out[0])
	}
	return addr, nil
}

func (r *PairReader) call(ctx context.Context, pair common.Address, method string) ([]any, error) {
	data, err := PairABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &pair, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, pair.Hex(), err)
	}
	out, err := PairABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s on %s: %w", method, pair.Hex(), err)
	}
	return out, nil
}
