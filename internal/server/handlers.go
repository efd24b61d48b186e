package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/ai"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/sqlgate"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// QueryExecutor runs analyst SQL through the gateway
type QueryExecutor interface {
	Execute(ctx context.Context, query string) ([]map[string]any, error)
}

// RecentEvents reads the capped list of recently mirrored events
type RecentEvents interface {
	GetRecentEvents(ctx context.Context, limit int64) ([]*models.PairEvent, error)
}

// Pinger is anything the health check can probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Router   *ai.Router        // Instruction classification and analysis
	Narrator *ai.Narrator      // Stand-alone narration
	Queries  QueryExecutor     // SQL gateway
	Recent   RecentEvents      // Redis recent events (optional)
	Checks   map[string]Pinger // Dependencies reported by /health
	DevMode  bool              // Enable detailed error responses in development
	Logger   *logrus.Logger    // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) methodNotAllowed(c echo.Context) error {
	return h.err(c, http.StatusMethodNotAllowed, "Method not allowed", nil)
}

// Health reports whether the configured dependencies answer
func (h *Handlers) Health(c echo.Context) error {
	if len(h.Checks) == 0 {
		return c.JSON(http.StatusOK, HealthResponse{OK: true})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{OK: true, Checks: make(map[string]string, len(h.Checks))}
	for name, p := range h.Checks {
		if err := p.Ping(ctx); err != nil {
			resp.OK = false
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	code := http.StatusOK
	if !resp.OK {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

// RecentEvents returns the most recent mirrored events with optional limit parameter
// Accepts limit query parameter (default: 50, range: 1-200)
func (h *Handlers) RecentEvents(c echo.Context) error {
	if h.Recent == nil {
		return h.err(c, http.StatusServiceUnavailable, "recent events cache is not configured", nil)
	}

	limit := 50
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 200 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Recent.GetRecentEvents(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get events", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, RecentEventsResponse{Items: items})
}

// ExecuteSQL runs one read-only query against the events table
func (h *Handlers) ExecuteSQL(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return h.methodNotAllowed(c)
	}

	var req SQLRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if strings.TrimSpace(req.Query) == "" {
		return h.err(c, http.StatusBadRequest, "Query is required", map[string]any{"query": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	rows, err := h.Queries.Execute(ctx, req.Query)
	if err != nil {
		if sqlgate.IsValidationError(err) {
			return h.err(c, http.StatusBadRequest, err.Error(), nil)
		}
		h.Logger.WithError(err).Error("sql execution failed")
		return h.err(c, http.StatusInternalServerError, "failed to execute query", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, SQLResponse{Data: rows})
}

// Instructions classifies free text and runs the chosen branch
func (h *Handlers) Instructions(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return h.methodNotAllowed(c)
	}

	var req InstructionRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return h.err(c, http.StatusBadRequest, "Instruction is required", map[string]any{"instruction": "required"})
	}
	if h.Router == nil {
		return h.err(c, http.StatusInternalServerError, ai.ErrNotConfigured.Error(), nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	res, err := h.Router.Route(ctx, req.Instruction)
	if err != nil {
		return h.aiError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Narrate explains free text (typically serialized results) in prose
func (h *Handlers) Narrate(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return h.methodNotAllowed(c)
	}

	var req InstructionRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return h.err(c, http.StatusBadRequest, "Instruction is required", map[string]any{"instruction": "required"})
	}
	if h.Narrator == nil {
		return h.err(c, http.StatusInternalServerError, ai.ErrNotConfigured.Error(), nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	out, err := h.Narrator.NarrateText(ctx, req.Instruction)
	if err != nil {
		return h.aiError(c, err)
	}
	return c.JSON(http.StatusOK, NarrateResponse{Result: out})
}

// aiError maps classifier and narrator errors onto HTTP statuses
func (h *Handlers) aiError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ai.ErrMissingInstruction):
		return h.err(c, http.StatusBadRequest, "Instruction is required", nil)
	case errors.Is(err, ai.ErrNotUnderstood):
		return h.err(c, http.StatusBadRequest, "Could not understand the instruction", map[string]any{"err": err.Error()})
	case errors.Is(err, ai.ErrNotConfigured):
		return h.err(c, http.StatusInternalServerError, err.Error(), nil)
	default:
		h.Logger.WithError(err).Error("language model request failed")
		return h.err(c, http.StatusInternalServerError, "failed to process request", map[string]any{"err": err.Error()})
	}
}
