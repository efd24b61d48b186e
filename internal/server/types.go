package server

import "github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK     bool              `json:"ok"`               // Service health status
	Checks map[string]string `json:"checks,omitempty"` // Per-dependency status
}

// RecentEventsResponse wraps the recent events list
type RecentEventsResponse struct {
	Items []*models.PairEvent `json:"items"`
}

// SQLRequest carries one analyst query
type SQLRequest struct {
	Query string `json:"query"`
}

// SQLResponse carries the rows of a query
type SQLResponse struct {
	Data []map[string]any `json:"data"`
}

// InstructionRequest is the body of the instruction and narration endpoints
type InstructionRequest struct {
	Instruction string `json:"instruction"`
}

// NarrateResponse carries the narrated text
type NarrateResponse struct {
	Result string `json:"result"`
}
