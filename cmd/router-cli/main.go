package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/ai"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/chain"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/config"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/sqlgate"
	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/storage"
	"github.com/fatih/color"
)

var (
	header = color.New(color.FgCyan, color.Bold)
	sqlOut = color.New(color.FgYellow)
	errOut = color.New(color.FgRed)
)

func main() {
	// Flags
	queryFlag := flag.String("q", "", "Route a single instruction and exit")
	modelFlag := flag.String("model", "", "Override LLM_MODEL")
	flag.Parse()

	logger := config.NewLogger("warn")
	config.LoadDotEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if *modelFlag != "" {
		cfg.LLMModel = *modelFlag
	}

	llm, err := ai.NewLLM(ai.LLMConfig{APIKey: cfg.LLMAPIKey, BaseURL: cfg.LLMBaseURL, Model: cfg.LLMModel})
	if err != nil {
		logger.WithError(err).Fatal("LLM_API_KEY is required for the router")
	}

	// Context + signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down router...")
		cancel()
	}()

	store, err := storage.Open(ctx, storage.OpenConfig{
		Backend: cfg.StoreBackend,
		ClickHouse: storage.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		},
		Postgres: storage.PostgresConfig{DSN: cfg.PostgresDSN},
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to open event store")
	}
	defer store.Close()

	var reserves ai.ReservesReader
	if cfg.RPCUrl != "" {
		if client, err := chain.Dial(ctx, cfg.RPCUrl); err == nil {
			defer client.Close()
			reserves = chain.NewPairReader(client)
		}
	}

	router := ai.NewRouter(ai.RouterConfig{
		Classifier: ai.NewClassifier(ai.ClassifierConfig{LLM: llm, Dialect: store.Dialect(), Logger: logger}),
		Queries:    sqlgate.New(sqlgate.Config{Executor: store, Logger: logger}),
		Narrator:   ai.NewNarrator(ai.NarratorConfig{LLM: llm, Logger: logger}),
		Reserves:   reserves,
		Pairs:      cfg.Pairs(),
		Logger:     logger,
	})

	// Single-shot mode
	if *queryFlag != "" {
		if err := runSingle(ctx, router, *queryFlag); err != nil {
			logger.WithError(err).Fatal("instruction failed")
		}
		return
	}

	// REPL mode
	runREPL(ctx, router)
}

func runSingle(ctx context.Context, router *ai.Router, q string) error {
	res, err := router.Route(ctx, q)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func runREPL(ctx context.Context, router *ai.Router) {
	header.Println("Uniswap Instruction Router")
	fmt.Println("Describe a swap, ask for a price or pool analysis, or ask a question about the mirrored events.")
	fmt.Println("Empty line to exit.")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		q, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("error reading input:", err)
			return
		}
		q = strings.TrimSpace(q)
		if q == "" {
			fmt.Println("bye")
			return
		}

		// Short cooldown to avoid hammering the LLM if user spams enter.
		time.Sleep(200 * time.Millisecond)

		res, err := router.Route(ctx, q)
		if err != nil {
			errOut.Println("error:", err)
			continue
		}
		printResult(res)
		fmt.Println()
	}
}

func printResult(res *ai.RouteResult) {
	header.Printf("\n%s\n", res.Result.Function)

	switch {
	case res.Operation != nil:
		fmt.Printf("operation: %s\n", res.Operation.Type)
		printJSON(res.Operation.Params)
	case res.StandardAnalysis != nil:
		sa := res.StandardAnalysis
		fmt.Printf("analysis: %s (%s)\n", sa.AnalysisType, sa.DisplayMode)
		if sa.SQLQuery != "" {
			sqlOut.Println(sa.SQLQuery)
		}
		if sa.Error != "" {
			errOut.Println(sa.Error)
		}
		if sa.Summary != nil {
			printJSON(sa.Summary)
		}
		if len(sa.Reserves) > 0 {
			printJSON(sa.Reserves)
		}
		fmt.Printf("%d rows\n", len(sa.Rows))
	default:
		if res.SQLQuery != nil {
			sqlOut.Println(*res.SQLQuery)
		}
		if res.CustomAnalysisResult != nil {
			if res.CustomAnalysisData == nil {
				errOut.Println(*res.CustomAnalysisResult)
			} else {
				fmt.Println(*res.CustomAnalysisResult)
			}
		}
		if res.NaturalResponse != nil {
			fmt.Printf("\nAnswer:\n%s\n", *res.NaturalResponse)
		}
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(b))
}
