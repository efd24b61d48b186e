package ai

import (
	"context"
	"encoding/json"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// QueryRunner executes validated read-only SQL. *sqlgate.Gateway satisfies it.
type QueryRunner interface {
	Execute(ctx context.Context, query string) ([]map[string]any, error)
	Dialect() storage.Dialect
}

// Operation is a contract action handed back to the caller to sign and send.
type Operation struct {
	Type   string         `json:"type"` // swap | addLiquidity | removeLiquidity
	Params ContractOpArgs `json:"params"`
}

// FunctionCall echoes the model's choice.
type FunctionCall struct {
	Function  string          `json:"function"`
	Arguments json.RawMessage `json:"arguments"`
}

// RouteResult is the response of one routed instruction. Fields that do not
// apply to the chosen function are null.
type RouteResult struct {
	Result               FunctionCall            `json:"result"`
	Operation            *Operation              `json:"operation"`
	StandardAnalysis     *StandardAnalysisResult `json:"standardAnalysis,omitempty"`
	CustomAnalysisResult *string                 `json:"customAnalysisResult"`
	CustomAnalysisData   []map[string]any        `json:"customAnalysisData"`
	SQLQuery             *string                 `json:"sqlQuery"`
	NaturalResponse      *string                 `json:"naturalResponse"`
}

// Router classifies instructions and carries out the analysis branches.
type Router struct {
	classifier *Classifier
	queries    QueryRunner
	narrator   *Narrator
	reserves   ReservesReader
	pairs      []common.Address
	logger     *logrus.Logger
}

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Classifier *Classifier
	Queries    QueryRunner
	Narrator   *Narrator
	Reserves   ReservesReader // optional, enables live reserves in pool analysis
	Pairs      []common.Address
	Logger     *logrus.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Router{
		classifier: cfg.Classifier,
		queries:    cfg.Queries,
		narrator:   cfg.Narrator,
		reserves:   cfg.Reserves,
		pairs:      cfg.Pairs,
		logger:     cfg.Logger,
	}
}

// Route classifies instruction and executes the chosen branch. Errors are
// only returned for classification failures; a failing custom query is
// reported inside the result.
func (r *Router) Route(ctx context.Context, instruction string) (*RouteResult, error) {
	cl, err := r.classifier.Classify(ctx, instruction)
	if err != nil {
		return nil, err
	}

	res := &RouteResult{Result: FunctionCall{Function: cl.Function, Arguments: cl.Arguments}}

	switch {
	case cl.ContractOp != nil:
		res.Operation = &Operation{Type: operationType(cl.ContractOp.ContractOpType), Params: *cl.ContractOp}

	case cl.StandardAnalysis != nil:
		res.StandardAnalysis = r.standardAnalysis(ctx, *cl.StandardAnalysis)

	case cl.CustomAnalysis != nil:
		r.customAnalysis(ctx, instruction, cl.CustomAnalysis.SQLQuery, res)
	}

	r.logger.WithField("function", cl.Function).Info("routed instruction")
	return res, nil
}

func operationType(op string) string {
	switch op {
	case "swap":
		return "swap"
	case "add":
		return "addLiquidity"
	default:
		return "removeLiquidity"
	}
}

func (r *Router) customAnalysis(ctx context.Context, instruction, sqlQuery string, res *RouteResult) {
	res.SQLQuery = &sqlQuery

	rows, err := r.queries.Execute(ctx, sqlQuery)
	if err != nil {
		r.logger.WithError(err).WithField("sql", sqlQuery).Warn("custom analysis query failed")
		msg := "Error executing SQL query: " + err.Error()
		res.CustomAnalysisResult = &msg
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	msg := "Query executed successfully."
	res.CustomAnalysisResult = &msg
	res.CustomAnalysisData = rows

	narrative := r.narrator.Narrate(ctx, instruction, sqlQuery, rows)
	res.NaturalResponse = &narrative
}

func (r *Router) standardAnalysis(ctx context.Context, args StandardAnalysisArgs) *StandardAnalysisResult {
	out := &StandardAnalysisResult{AnalysisType: args.AnalysisType, DisplayMode: args.DisplayMode}

	if args.AnalysisType == "price" {
		out.SQLQuery = priceQuery(r.queries.Dialect())
		rows, err := r.queries.Execute(ctx, out.SQLQuery)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.Summary = withExecutionPrices(rows)
		out.Rows = rows
		return out
	}

	out.SQLQuery = poolQuery()

	// history from the store and live reserves from the chain are independent
	var g errgroup.Group
	g.Go(func() error {
		rows, err := r.queries.Execute(ctx, out.SQLQuery)
		if err != nil {
			return err
		}
		out.Rows = rows
		return nil
	})
	if r.reserves != nil && len(r.pairs) > 0 {
		g.Go(func() error {
			out.Reserves = readReserves(ctx, r.reserves, r.pairs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		out.Error = err.Error()
	}
	return out
}
