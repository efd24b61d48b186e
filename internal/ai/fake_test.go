package ai

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

type fakeReply struct {
	resp *llms.ContentResponse
	err  error
}

// fakeLLM replays canned replies in order and records every request.
type fakeLLM struct {
	mu       sync.Mutex
	replies  []fakeReply
	messages [][]llms.MessageContent
	options  []llms.CallOptions
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	f.messages = append(f.messages, messages)
	f.options = append(f.options, opts)

	if len(f.replies) == 0 {
		return nil, errors.New("no reply scripted")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.resp, r.err
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func toolCallReply(name, args string) fakeReply {
	return fakeReply{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:   "call_1",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		}},
	}}}}
}

func textReply(content string) fakeReply {
	return fakeReply{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}}
}

// fakeQueries records executed SQL and answers from a table.
type fakeQueries struct {
	mu      sync.Mutex
	dialect storage.Dialect
	rows    []map[string]any
	err     error
	seen    []string
}

func (q *fakeQueries) Execute(_ context.Context, query string) ([]map[string]any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen = append(q.seen, query)
	return q.rows, q.err
}

func (q *fakeQueries) Dialect() storage.Dialect { return q.dialect }

type fakeReserves map[common.Address]*chain.Reserves

func (f fakeReserves) Reserves(_ context.Context, pair common.Address) (*chain.Reserves, error) {
	r, ok := f[pair]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return r, nil
}

func reserves(r0, r1 int64) *chain.Reserves {
	return &chain.Reserves{Reserve0: big.NewInt(r0), Reserve1: big.NewInt(r1), BlockTimestampLast: 1700000000}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}
