package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

var (
	pairA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	pairB = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func newTestRouter(llm *fakeLLM, q *fakeQueries, res ReservesReader) *Router {
	return NewRouter(RouterConfig{
		Classifier: NewClassifier(ClassifierConfig{LLM: llm, Dialect: q.dialect, Logger: quietLogger()}),
		Queries:    q,
		Narrator:   NewNarrator(NarratorConfig{LLM: llm, Logger: quietLogger()}),
		Reserves:   res,
		Pairs:      []common.Address{pairA, pairB},
		Logger:     quietLogger(),
	})
}

func TestRoute_ContractOp(t *testing.T) {
	tests := map[string]string{"swap": "swap", "add": "addLiquidity", "remove": "removeLiquidity"}
	for op, want := range tests {
		t.Run(op, func(t *testing.T) {
			llm := &fakeLLM{replies: []fakeReply{toolCallReply(FunctionContractOp, `{"contractOpType":"`+op+`","lpTokens":"5"}`)}}
			q := &fakeQueries{dialect: storage.DialectPostgres}

			res, err := newTestRouter(llm, q, nil).Route(context.Background(), "do it")
			require.NoError(t, err)
			require.NotNil(t, res.Operation)
			assert.Equal(t, want, res.Operation.Type)
			assert.Equal(t, "5", res.Operation.Params.LPTokens)
			assert.Nil(t, res.SQLQuery)
			assert.Empty(t, q.seen)
		})
	}
}

func TestRoute_CustomAnalysisNarrated(t *testing.T) {
	llm := &fakeLLM{replies: []fakeReply{
		toolCallReply(FunctionCustomAnalysis, `{"sqlQuery":"SELECT COUNT(*) AS count FROM uniswap_events WHERE event_name = 'Swap'"}`),
		textReply("There were 12 swaps."),
	}}
	q := &fakeQueries{dialect: storage.DialectPostgres, rows: []map[string]any{{"count": int64(12)}}}

	res, err := newTestRouter(llm, q, nil).Route(context.Background(), "how many swaps?")
	require.NoError(t, err)

	require.NotNil(t, res.SQLQuery)
	assert.Equal(t, []string{*res.SQLQuery}, q.seen)
	assert.Equal(t, "Query executed successfully.", *res.CustomAnalysisResult)
	assert.Equal(t, q.rows, res.CustomAnalysisData)
	assert.Equal(t, "There were 12 swaps.", *res.NaturalResponse)

	// narration saw the question and the rows
	human := llm.messages[1][1].Parts[0].(llms.TextContent).Text
	assert.Contains(t, human, "how many swaps?")
	assert.Contains(t, human, `"count":12`)
}

func TestRoute_CustomAnalysisQueryFailure(t *testing.T) {
	llm := &fakeLLM{replies: []fakeReply{toolCallReply(FunctionCustomAnalysis, `{"sqlQuery":"SELECT nope FROM uniswap_events"}`)}}
	q := &fakeQueries{dialect: storage.DialectPostgres, err: errors.New(`column "nope" does not exist`)}

	res, err := newTestRouter(llm, q, nil).Route(context.Background(), "broken")
	require.NoError(t, err)

	assert.Equal(t, `Error executing SQL query: column "nope" does not exist`, *res.CustomAnalysisResult)
	assert.Nil(t, res.CustomAnalysisData)
	assert.Nil(t, res.NaturalResponse)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"customAnalysisData":null`)
}

func TestRoute_NarrationFailureFallsBack(t *testing.T) {
	llm := &fakeLLM{replies: []fakeReply{
		toolCallReply(FunctionCustomAnalysis, `{"sqlQuery":"SELECT 1"}`),
		{err: errors.New("upstream timeout")},
	}}
	q := &fakeQueries{dialect: storage.DialectPostgres}

	res, err := newTestRouter(llm, q, nil).Route(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, constants.NarrationFallbackReply, *res.NaturalResponse)
	assert.NotNil(t, res.CustomAnalysisData)
	assert.Empty(t, res.CustomAnalysisData)
}

func TestRoute_PriceAnalysis(t *testing.T) {
	llm := &fakeLLM{replies: []fakeReply{toolCallReply(FunctionStandardAnalysis, `{"analysisType":"price","displayMode":"table"}`)}}
	q := &fakeQueries{dialect: storage.DialectClickHouse, rows: []map[string]any{
		{"amount0_in": "100", "amount1_in": "0", "amount0_out": "0", "amount1_out": "95"},
		{"amount0_in": "0", "amount1_in": "50", "amount0_out": "200", "amount1_out": "0"},
		{"amount0_in": "0", "amount1_in": "0", "amount0_out": "0", "amount1_out": "0"},
	}}

	res, err := newTestRouter(llm, q, nil).Route(context.Background(), "show prices")
	require.NoError(t, err)
	sa := res.StandardAnalysis
	require.NotNil(t, sa)

	assert.Contains(t, q.seen[0], "JSONExtractString")
	assert.Empty(t, sa.Error)
	assert.Equal(t, "0.95000000", sa.Rows[0]["execution_price"])
	assert.Equal(t, "4.00000000", sa.Rows[1]["execution_price"])
	assert.Nil(t, sa.Rows[2]["execution_price"])
	require.NotNil(t, sa.Summary)
	assert.Equal(t, 2, sa.Summary.Count)
	assert.Equal(t, "0.95000000", sa.Summary.Min)
	assert.Equal(t, "4.00000000", sa.Summary.Max)
	assert.Equal(t, "2.47500000", sa.Summary.Mean)
}

func TestRoute_PoolAnalysisWithReserves(t *testing.T) {
	llm := &fakeLLM{replies: []fakeReply{toolCallReply(FunctionStandardAnalysis, `{"analysisType":"pool","displayMode":"chart"}`)}}
	q := &fakeQueries{dialect: storage.DialectPostgres, rows: []map[string]any{{"pair_address": pairA.Hex(), "event_count": int64(3)}}}
	res := fakeReserves{pairA: reserves(5000, 10000)}

	out, err := newTestRouter(llm, q, res).Route(context.Background(), "pool info")
	require.NoError(t, err)
	sa := out.StandardAnalysis
	require.NotNil(t, sa)

	assert.Equal(t, "chart", sa.DisplayMode)
	assert.Len(t, sa.Rows, 1)
	require.Len(t, sa.Reserves, 2)
	assert.Equal(t, pairA.Hex(), sa.Reserves[0].Pair)
	assert.Equal(t, "5000", sa.Reserves[0].Reserve0)
	assert.Equal(t, "2.00000000", sa.Reserves[0].SpotPrice)
	assert.Equal(t, "execution reverted", sa.Reserves[1].Error)
}

func TestRoute_PoolAnalysisQueryFailure(t *testing.T) {
	llm := &fakeLLM{replies: []fakeReply{toolCallReply(FunctionStandardAnalysis, `{"analysisType":"pool","displayMode":"table"}`)}}
	q := &fakeQueries{dialect: storage.DialectPostgres, err: errors.New("connection refused")}

	out, err := newTestRouter(llm, q, nil).Route(context.Background(), "pool info")
	require.NoError(t, err)
	assert.Equal(t, "connection refused", out.StandardAnalysis.Error)
}

func TestNarrateText(t *testing.T) {
	n := NewNarrator(NarratorConfig{LLM: &fakeLLM{replies: []fakeReply{textReply("  Reserves grew.  ")}}, Logger: quietLogger()})
	got, err := n.NarrateText(context.Background(), "explain")
	require.NoError(t, err)
	assert.Equal(t, "Reserves grew.", got)

	_, err = n.NarrateText(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingInstruction)

	_, err = NewNarrator(NarratorConfig{}).NarrateText(context.Background(), "explain")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCannedQueriesPassDenylist(t *testing.T) {
	for _, q := range []string{priceQuery(storage.DialectPostgres), priceQuery(storage.DialectClickHouse), poolQuery()} {
		assert.NotRegexp(t, `(?i)drop|delete|update|insert|truncate|alter`, q)
	}
}
