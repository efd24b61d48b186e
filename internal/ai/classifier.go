package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/constants"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// Tool names offered to the model.
const (
	FunctionContractOp       = "performContractOp"
	FunctionStandardAnalysis = "performStandardAnalysis"
	FunctionCustomAnalysis   = "customDataAnalysis"
)

// ContractOpArgs are the arguments of performContractOp.
type ContractOpArgs struct {
	ContractOpType string `json:"contractOpType"` // swap | add | remove
	AmountA        string `json:"amountA,omitempty"`
	AmountB        string `json:"amountB,omitempty"`
	LPTokens       string `json:"lpTokens,omitempty"`
}

// StandardAnalysisArgs are the arguments of performStandardAnalysis.
type StandardAnalysisArgs struct {
	AnalysisType string `json:"analysisType"` // pool | price
	DisplayMode  string `json:"displayMode"`  // table | chart
}

// CustomAnalysisArgs are the arguments of customDataAnalysis.
type CustomAnalysisArgs struct {
	SQLQuery string `json:"sqlQuery"`
}

// Classification is the model's choice. Exactly one of the argument
// pointers is set, matching Function.
type Classification struct {
	Function  string
	Arguments json.RawMessage

	ContractOp       *ContractOpArgs
	StandardAnalysis *StandardAnalysisArgs
	CustomAnalysis   *CustomAnalysisArgs
}

// Classifier asks a chat model to map free text onto one of three tools.
type Classifier struct {
	llm       llms.Model
	dialect   storage.Dialect
	maxTokens int
	logger    *logrus.Logger
}

// ClassifierConfig holds configuration for the classifier
type ClassifierConfig struct {
	LLM       llms.Model // nil means no API key was configured
	Dialect   storage.Dialect
	MaxTokens int
	Logger    *logrus.Logger
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = constants.DefaultMaxLLMTokens
	}
	return &Classifier{
		llm:       cfg.LLM,
		dialect:   cfg.Dialect,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

// Classify returns the tool the model picked for instruction.
func (c *Classifier) Classify(ctx context.Context, instruction string) (*Classification, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, ErrMissingInstruction
	}
	if c.llm == nil {
		return nil, ErrNotConfigured
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, classifierSystemPrompt(c.dialect)),
		llms.TextParts(llms.ChatMessageTypeHuman, instruction),
	}

	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTools(classifierTools(c.dialect)),
		llms.WithMaxTokens(c.maxTokens),
		llms.WithTemperature(0),
	)
	if err != nil {
		return nil, fmt.Errorf("LLM classification failed: %w", err)
	}

	name, args, ok := firstFunctionCall(resp)
	if !ok {
		c.logger.WithField("instruction", instruction).Warn("model returned no function call")
		return nil, ErrNotUnderstood
	}

	cl, err := parseFunctionCall(name, args)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"function":  cl.Function,
		"arguments": string(cl.Arguments),
	}).Debug("classified instruction")
	return cl, nil
}

// firstFunctionCall returns the first tool call of the response, falling
// back to the legacy function_call field.
func firstFunctionCall(resp *llms.ContentResponse) (string, string, bool) {
	if resp == nil {
		return "", "", false
	}
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall != nil && tc.FunctionCall.Name != "" {
				return tc.FunctionCall.Name, tc.FunctionCall.Arguments, true
			}
		}
		if choice.FuncCall != nil && choice.FuncCall.Name != "" {
			return choice.FuncCall.Name, choice.FuncCall.Arguments, true
		}
	}
	return "", "", false
}

func parseFunctionCall(name, rawArgs string) (*Classification, error) {
	if strings.TrimSpace(rawArgs) == "" {
		rawArgs = "{}"
	}
	cl := &Classification{Function: name, Arguments: json.RawMessage(rawArgs)}

	switch name {
	case FunctionContractOp:
		var a ContractOpArgs
		if err := json.Unmarshal([]byte(rawArgs), &a); err != nil {
			return nil, fmt.Errorf("%w: bad %s arguments: %v", ErrNotUnderstood, name, err)
		}
		switch a.ContractOpType {
		case "swap", "add", "remove":
		default:
			return nil, fmt.Errorf("%w: unknown contractOpType %q", ErrNotUnderstood, a.ContractOpType)
		}
		cl.ContractOp = &a

	case FunctionStandardAnalysis:
		var a StandardAnalysisArgs
		if err := json.Unmarshal([]byte(rawArgs), &a); err != nil {
			return nil, fmt.Errorf("%w: bad %s arguments: %v", ErrNotUnderstood, name, err)
		}
		if a.AnalysisType != "pool" && a.AnalysisType != "price" {
			return nil, fmt.Errorf("%w: unknown analysisType %q", ErrNotUnderstood, a.AnalysisType)
		}
		if a.DisplayMode == "" {
			a.DisplayMode = "table"
		}
		if a.DisplayMode != "table" && a.DisplayMode != "chart" {
			return nil, fmt.Errorf("%w: unknown displayMode %q", ErrNotUnderstood, a.DisplayMode)
		}
		cl.StandardAnalysis = &a

	case FunctionCustomAnalysis:
		var a CustomAnalysisArgs
		if err := json.Unmarshal([]byte(rawArgs), &a); err != nil {
			return nil, fmt.Errorf("%w: bad %s arguments: %v", ErrNotUnderstood, name, err)
		}
		a.SQLQuery = sanitizeSQL(a.SQLQuery)
		if a.SQLQuery == "" {
			return nil, fmt.Errorf("%w: empty sqlQuery", ErrNotUnderstood)
		}
		cl.CustomAnalysis = &a

	default:
		return nil, fmt.Errorf("%w: unknown function %q", ErrNotUnderstood, name)
	}
	return cl, nil
}

// sanitizeSQL strips markdown code fences the model sometimes wraps SQL in.
func sanitizeSQL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if strings.HasPrefix(strings.ToLower(s), "sql") {
			s = s[3:]
		}
		if idx := strings.Index(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func classifierTools(dialect storage.Dialect) []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        FunctionContractOp,
				Description: "Perform a contract operation on Uniswap V2",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"contractOpType": map[string]any{
							"type":        "string",
							"enum":        []string{"swap", "add", "remove"},
							"description": "The type of contract operation to perform",
						},
						"amountA": map[string]any{
							"type":        "string",
							"description": "Amount of token A (for swap or add liquidity)",
						},
						"amountB": map[string]any{
							"type":        "string",
							"description": "Amount of token B (for add liquidity)",
						},
						"lpTokens": map[string]any{
							"type":        "string",
							"description": "Amount of LP tokens to remove (for remove liquidity)",
						},
					},
					"required": []string{"contractOpType"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        FunctionStandardAnalysis,
				Description: "Perform a standard analysis on Uniswap V2 data",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"analysisType": map[string]any{
							"type":        "string",
							"enum":        []string{"pool", "price"},
							"description": "The type of analysis to perform",
						},
						"displayMode": map[string]any{
							"type":        "string",
							"enum":        []string{"table", "chart"},
							"description": "How to display the analysis results",
						},
					},
					"required": []string{"analysisType", "displayMode"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        FunctionCustomAnalysis,
				Description: "Perform a custom data analysis using SQL",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"sqlQuery": map[string]any{
							"type": "string",
							"description": fmt.Sprintf("The SQL query to execute for custom analysis. Use standard SQL syntax that works with %s. "+
								"Include appropriate WHERE clauses, aggregation functions, and ORDER BY clauses. Limit results to a reasonable number.",
								dialectName(dialect)),
						},
					},
					"required": []string{"sqlQuery"},
				},
			},
		},
	}
}
