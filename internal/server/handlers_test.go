package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/ai"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/sqlgate"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

const testAPIKey = "test-api-key"

// scriptedLLM answers GenerateContent from a fixed list.
type scriptedLLM struct {
	replies []*llms.ContentResponse
	err     error
}

func (s *scriptedLLM) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return nil, errors.New("no reply scripted")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func (s *scriptedLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func toolCall(name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{Type: "function", FunctionCall: &llms.FunctionCall{Name: name, Arguments: args}}},
	}}}
}

func text(s string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s}}}
}

type stubExecutor struct {
	rows    []map[string]any
	err     error
	queries []string
}

func (e *stubExecutor) Query(_ context.Context, q string) ([]map[string]any, error) {
	e.queries = append(e.queries, q)
	return e.rows, e.err
}

func (e *stubExecutor) Dialect() storage.Dialect { return storage.DialectPostgres }

type stubRecent struct{ items []*models.PairEvent }

func (s *stubRecent) GetRecentEvents(_ context.Context, limit int64) ([]*models.PairEvent, error) {
	if int64(len(s.items)) > limit {
		return s.items[:limit], nil
	}
	return s.items, nil
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	srv  *Server
	exec *stubExecutor
	h    *Handlers
}

func newTestEnv(t *testing.T, llm llms.Model, apiKey string) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	exec := &stubExecutor{}
	gw := sqlgate.New(sqlgate.Config{Executor: exec, Logger: logger})

	h := &Handlers{
		Router: ai.NewRouter(ai.RouterConfig{
			Classifier: ai.NewClassifier(ai.ClassifierConfig{LLM: llm, Dialect: gw.Dialect(), Logger: logger}),
			Queries:    gw,
			Narrator:   ai.NewNarrator(ai.NarratorConfig{LLM: llm, Logger: logger}),
			Logger:     logger,
		}),
		Narrator: ai.NewNarrator(ai.NarratorConfig{LLM: llm, Logger: logger}),
		Queries:  gw,
		DevMode:  true,
		Logger:   logger,
	}

	srv, err := NewServer(ServerDeps{
		Handlers: h,
		Config:   ServerConfig{Addr: ":0", DevMode: true, APIKey: apiKey, AIRate: 100, AIBurst: 100},
	})
	require.NoError(t, err)
	return &testEnv{srv: srv, exec: exec, h: h}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)

	rec := httptest.NewRecorder()
	env.srv.e.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, "")
	rec, body := env.do(t, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	env.h.Checks = map[string]Pinger{
		"store": pingFunc(func(context.Context) error { return nil }),
		"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}
	rec, body = env.do(t, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "connection refused", body["checks"].(map[string]any)["redis"])
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t, nil, "another-key")
	rec, _ := env.do(t, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExecuteSQL(t *testing.T) {
	env := newTestEnv(t, nil, testAPIKey)
	env.exec.rows = []map[string]any{{"count": int64(3)}}

	rec, body := env.do(t, http.MethodPost, "/v1/sql", SQLRequest{Query: "SELECT COUNT(*) AS count FROM uniswap_events;;"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{map[string]any{"count": float64(3)}}, body["data"])
	assert.Equal(t, []string{"SELECT COUNT(*) AS count FROM uniswap_events"}, env.exec.queries)
}

func TestExecuteSQL_Errors(t *testing.T) {
	env := newTestEnv(t, nil, testAPIKey)

	rec, body := env.do(t, http.MethodGet, "/v1/sql", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", body["error"])

	rec, body = env.do(t, http.MethodPost, "/v1/sql", SQLRequest{Query: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Query is required", body["error"])

	rec, body = env.do(t, http.MethodPost, "/v1/sql", SQLRequest{Query: "SELECT * FROM uniswap_events; DROP TABLE x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "not allowed")
	assert.Empty(t, env.exec.queries)

	env.exec.err = errors.New("connection refused")
	rec, body = env.do(t, http.MethodPost, "/v1/sql", SQLRequest{Query: "SELECT 1"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to execute query", body["error"])
}

func TestInstructions_MissingInstruction(t *testing.T) {
	env := newTestEnv(t, &scriptedLLM{}, testAPIKey)
	rec, body := env.do(t, http.MethodPost, "/v1/instructions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Instruction is required", body["error"])
}

func TestInstructions_NotConfigured(t *testing.T) {
	env := newTestEnv(t, nil, testAPIKey)
	rec, body := env.do(t, http.MethodPost, "/v1/instructions", InstructionRequest{Instruction: "swap 1 A"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ai.ErrNotConfigured.Error(), body["error"])
}

func TestInstructions_NotUnderstood(t *testing.T) {
	env := newTestEnv(t, &scriptedLLM{replies: []*llms.ContentResponse{text("Sorry?")}}, testAPIKey)
	rec, body := env.do(t, http.MethodPost, "/v1/instructions", InstructionRequest{Instruction: "sing a song"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Could not understand the instruction", body["error"])
}

func TestInstructions_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, &scriptedLLM{err: errors.New("502 bad gateway")}, testAPIKey)
	rec, _ := env.do(t, http.MethodPost, "/v1/instructions", InstructionRequest{Instruction: "swap"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestInstructions_ContractOp(t *testing.T) {
	llm := &scriptedLLM{replies: []*llms.ContentResponse{toolCall(ai.FunctionContractOp, `{"contractOpType":"swap","amountA":"1.5"}`)}}
	env := newTestEnv(t, llm, testAPIKey)

	rec, body := env.do(t, http.MethodPost, "/v1/instructions", InstructionRequest{Instruction: "swap 1.5 token A"})
	require.Equal(t, http.StatusOK, rec.Code)

	result := body["result"].(map[string]any)
	assert.Equal(t, ai.FunctionContractOp, result["function"])
	op := body["operation"].(map[string]any)
	assert.Equal(t, "swap", op["type"])
	assert.Equal(t, "1.5", op["params"].(map[string]any)["amountA"])
	assert.Nil(t, body["sqlQuery"])
}

func TestInstructions_CustomAnalysis(t *testing.T) {
	llm := &scriptedLLM{replies: []*llms.ContentResponse{
		toolCall(ai.FunctionCustomAnalysis, `{"sqlQuery":"SELECT COUNT(*) AS count FROM uniswap_events"}`),
		text("There are 3 events."),
	}}
	env := newTestEnv(t, llm, testAPIKey)
	env.exec.rows = []map[string]any{{"count": int64(3)}}

	rec, body := env.do(t, http.MethodPost, "/v1/instructions", InstructionRequest{Instruction: "how many events?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SELECT COUNT(*) AS count FROM uniswap_events", body["sqlQuery"])
	assert.Equal(t, "Query executed successfully.", body["customAnalysisResult"])
	assert.Equal(t, "There are 3 events.", body["naturalResponse"])
	assert.Len(t, body["customAnalysisData"], 1)
}

func TestInstructions_ForbiddenCustomQueryStill200(t *testing.T) {
	llm := &scriptedLLM{replies: []*llms.ContentResponse{
		toolCall(ai.FunctionCustomAnalysis, `{"sqlQuery":"DELETE FROM uniswap_events"}`),
	}}
	env := newTestEnv(t, llm, testAPIKey)

	rec, body := env.do(t, http.MethodPost, "/v1/instructions", InstructionRequest{Instruction: "wipe it"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["customAnalysisResult"], "Error executing SQL query:")
	assert.Nil(t, body["customAnalysisData"])
	assert.Empty(t, env.exec.queries)
}

func TestNarrate(t *testing.T) {
	env := newTestEnv(t, &scriptedLLM{replies: []*llms.ContentResponse{text("All good.")}}, testAPIKey)

	rec, body := env.do(t, http.MethodPost, "/v1/narrate", InstructionRequest{Instruction: "explain [{\"n\":1}]"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "All good.", body["result"])

	rec, _ = env.do(t, http.MethodPut, "/v1/narrate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecentEvents(t *testing.T) {
	env := newTestEnv(t, nil, testAPIKey)

	rec, _ := env.do(t, http.MethodGet, "/v1/events/recent", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.h.Recent = &stubRecent{items: []*models.PairEvent{
		{BlockNumber: 2, EventName: models.EventSwap},
		{BlockNumber: 1, EventName: models.EventMint},
	}}
	rec, body := env.do(t, http.MethodGet, "/v1/events/recent?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["items"], 1)

	rec, _ = env.do(t, http.MethodGet, "/v1/events/recent?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil, testAPIKey)
	rec, body := env.do(t, http.MethodGet, "/v2/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", body["error"])
}
