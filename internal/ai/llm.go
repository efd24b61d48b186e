package ai

import (
	"errors"
	"fmt"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	ErrMissingInstruction = errors.New("instruction is required")
	ErrNotUnderstood      = errors.New("could not understand the instruction")
	ErrNotConfigured      = errors.New("language model API key is not configured")
)

// LLMConfig selects an OpenAI-compatible chat endpoint (OpenAI, OpenRouter or
// a self-hosted gateway).
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewLLM builds a chat model client. It returns ErrNotConfigured when no API
// key is set.
func NewLLM(cfg LLMConfig) (llms.Model, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.DefaultLLMBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = constants.DefaultLLMModel
	}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return llm, nil
}
