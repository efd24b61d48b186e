package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// Narrator turns query results into prose.
type Narrator struct {
	llm       llms.Model
	maxTokens int
	logger    *logrus.Logger
}

// NarratorConfig holds configuration for the narrator
type NarratorConfig struct {
	LLM       llms.Model
	MaxTokens int
	Logger    *logrus.Logger
}

func NewNarrator(cfg NarratorConfig) *Narrator {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = constants.DefaultNarratorTokens
	}
	return &Narrator{llm: cfg.LLM, maxTokens: cfg.MaxTokens, logger: cfg.Logger}
}

// Narrate answers question from rows. It never fails: any problem yields the
// fallback sentence.
func (n *Narrator) Narrate(ctx context.Context, question, sqlQuery string, rows []map[string]any) string {
	if n.llm == nil {
		return constants.NarrationFallbackReply
	}

	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		n.logger.WithError(err).Warn("failed to marshal rows for narration")
		return constants.NarrationFallbackReply
	}

	prompt := fmt.Sprintf(`Original question: %s
SQL query: %s
Query results: %s

If the result set is empty, say that no data was found for the question.
Please provide a natural language answer to the original question based on these results.`,
		question, sqlQuery, rowsJSON)

	answer, err := n.generate(ctx, prompt)
	if err != nil {
		n.logger.WithError(err).Warn("failed to generate natural response")
		return constants.NarrationFallbackReply
	}
	if answer == "" {
		return constants.NarrationFallbackReply
	}
	return answer
}

// NarrateText sends free text straight to the narration prompt.
func (n *Narrator) NarrateText(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrMissingInstruction
	}
	if n.llm == nil {
		return "", ErrNotConfigured
	}

	answer, err := n.generate(ctx, text, llms.WithTemperature(0.7))
	if err != nil {
		return "", fmt.Errorf("LLM narration failed: %w", err)
	}
	if answer == "" {
		return "No response generated", nil
	}
	return answer, nil
}

func (n *Narrator) generate(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, narratorSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	opts = append(opts, llms.WithMaxTokens(n.maxTokens))

	resp, err := n.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
