package ai

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// StandardAnalysisResult is the output of a canned pool or price analysis.
type StandardAnalysisResult struct {
	AnalysisType string           `json:"analysisType"`
	DisplayMode  string           `json:"displayMode"`
	SQLQuery     string           `json:"sqlQuery"`
	Rows         []map[string]any `json:"rows"`
	Summary      *PriceSummary    `json:"summary,omitempty"`
	Reserves     []PoolReserves   `json:"reserves,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// PriceSummary aggregates execution prices of the sampled swaps.
type PriceSummary struct {
	Count int    `json:"count"`
	Min   string `json:"min"`
	Max   string `json:"max"`
	Mean  string `json:"mean"`
}

// PoolReserves is a live getReserves reading for one pair.
type PoolReserves struct {
	Pair               string `json:"pair"`
	Reserve0           string `json:"reserve0,omitempty"`
	Reserve1           string `json:"reserve1,omitempty"`
	BlockTimestampLast uint32 `json:"blockTimestampLast,omitempty"`
	// SpotPrice is reserve1 / reserve0.
	SpotPrice string `json:"spotPrice,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ReservesReader reads live reserves. *chain.PairReader satisfies it.
type ReservesReader interface {
	Reserves(ctx context.Context, pair common.Address) (*chain.Reserves, error)
}

// priceQuery returns the most recent swaps with their raw amounts.
func priceQuery(dialect storage.Dialect) string {
	if dialect == storage.DialectClickHouse {
		return fmt.Sprintf(`SELECT block_number, transaction_hash, pair_address, timestamp,
  JSONExtractString(data_json, 'amount0In') AS amount0_in,
  JSONExtractString(data_json, 'amount1In') AS amount1_in,
  JSONExtractString(data_json, 'amount0Out') AS amount0_out,
  JSONExtractString(data_json, 'amount1Out') AS amount1_out
FROM %s
WHERE event_name = 'Swap'
ORDER BY block_number DESC, log_index DESC
LIMIT %d`, constants.EventsTable, constants.DefaultAnalysisRowCap)
	}
	return fmt.Sprintf(`SELECT block_number, transaction_hash, pair_address, timestamp,
  data_json->>'amount0In' AS amount0_in,
  data_json->>'amount1In' AS amount1_in,
  data_json->>'amount0Out' AS amount0_out,
  data_json->>'amount1Out' AS amount1_out
FROM %s
WHERE event_name = 'Swap'
ORDER BY block_number DESC, log_index DESC
LIMIT %d`, constants.EventsTable, constants.DefaultAnalysisRowCap)
}

// poolQuery summarizes activity per pair. The statement is valid in both
// dialects.
func poolQuery() string {
	return fmt.Sprintf(`SELECT pair_address, token0_address, token1_address,
  COUNT(*) AS event_count,
  SUM(CASE WHEN event_name = 'Swap' THEN 1 ELSE 0 END) AS swap_count,
  SUM(CASE WHEN event_name = 'Mint' THEN 1 ELSE 0 END) AS mint_count,
  SUM(CASE WHEN event_name = 'Burn' THEN 1 ELSE 0 END) AS burn_count,
  MAX(block_number) AS last_block,
  MAX(timestamp) AS last_event_at
FROM %s
GROUP BY pair_address, token0_address, token1_address
ORDER BY event_count DESC
LIMIT %d`, constants.EventsTable, constants.DefaultAnalysisRowCap)
}

// ExecutionPrice is the price a swap executed at, in token1 per token0 when
// token0 was sold and token0 per token1 otherwise. ok is false when the
// amounts do not describe a one-directional trade.
func ExecutionPrice(amount0In, amount1In, amount0Out, amount1Out string) (decimal.Decimal, bool) {
	a0in, err0 := decimal.NewFromString(amount0In)
	a1in, err1 := decimal.NewFromString(amount1In)
	a0out, err2 := decimal.NewFromString(amount0Out)
	a1out, err3 := decimal.NewFromString(amount1Out)
	if err0 != nil || err1 != nil || err2 != nil || err3 != nil {
		return decimal.Zero, false
	}

	switch {
	case a0in.IsPositive() && a1out.IsPositive():
		return a1out.Div(a0in), true
	case a1in.IsPositive() && a0out.IsPositive():
		return a0out.Div(a1in), true
	}
	return decimal.Zero, false
}

// withExecutionPrices adds an execution_price column to every row it can
// price and summarizes the priced rows.
func withExecutionPrices(rows []map[string]any) *PriceSummary {
	var (
		prices []decimal.Decimal
		lo, hi decimal.Decimal
		sum    = decimal.Zero
	)
	for _, row := range rows {
		p, ok := ExecutionPrice(str(row["amount0_in"]), str(row["amount1_in"]), str(row["amount0_out"]), str(row["amount1_out"]))
		if !ok {
			row["execution_price"] = nil
			continue
		}
		row["execution_price"] = p.StringFixed(8)
		if len(prices) == 0 || p.LessThan(lo) {
			lo = p
		}
		if len(prices) == 0 || p.GreaterThan(hi) {
			hi = p
		}
		sum = sum.Add(p)
		prices = append(prices, p)
	}

	summary := &PriceSummary{Count: len(prices)}
	if len(prices) > 0 {
		summary.Min = lo.StringFixed(8)
		summary.Max = hi.StringFixed(8)
		summary.Mean = sum.Div(decimal.NewFromInt(int64(len(prices)))).StringFixed(8)
	}
	return summary
}

// readReserves reads every pair concurrently. A failed pair carries its
// error instead of failing the whole read.
func readReserves(ctx context.Context, reader ReservesReader, pairs []common.Address) []PoolReserves {
	out := make([]PoolReserves, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	for i, pair := range pairs {
		g.Go(func() error {
			entry := PoolReserves{Pair: pair.Hex()}
			res, err := reader.Reserves(gctx, pair)
			if err != nil {
				entry.Error = err.Error()
			} else {
				r0 := decimal.NewFromBigInt(res.Reserve0, 0)
				r1 := decimal.NewFromBigInt(res.Reserve1, 0)
				entry.Reserve0 = r0.String()
				entry.Reserve1 = r1.String()
				entry.BlockTimestampLast = res.BlockTimestampLast
				if r0.IsPositive() {
					entry.SpotPrice = r1.Div(r0).StringFixed(8)
				}
			}
			out[i] = entry
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
