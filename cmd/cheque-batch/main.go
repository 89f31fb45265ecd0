package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/archive"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/batch"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/common"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/extract"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/fields"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/llm"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/report"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// cheque-batch runs one extraction batch synchronously from the command
// line, without the HTTP server: useful for reprocessing an archive or
// smoke-testing endpoint credentials.
func main() {
	var (
		zips = flag.String("zip", "", "comma-separated ZIP archives of cheque scans (required)")
		out  = flag.String("out", "", "output CSV path (optional, defaults next to the first archive)")
	)
	flag.Parse()

	if *zips == "" {
		printError("Error: --zip is required\n")
		os.Exit(1)
	}
	paths := strings.Split(*zips, ",")
	if *out == "" {
		*out = filepath.Join(filepath.Dir(paths[0]), "cheque_extraction_results.csv")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	archives := make([][]byte, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(strings.TrimSpace(path))
		if err != nil {
			printError("Error: read %s: %v\n", path, err)
			os.Exit(1)
		}
		archives = append(archives, content)
	}

	units, err := archive.Unpack(archives)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if len(units) == 0 {
		printError("Error: no processable cheque images found\n")
		os.Exit(1)
	}
	logger.Info("batch.start", "units", len(units), "concurrency_limit", cfg.Batch.ConcurrencyLimit)

	policy := llm.NewBackoffPolicy(cfg.Endpoint.MaxRetries, cfg.Endpoint.BaseDelay, cfg.Endpoint.BackoffFactor)
	client := llm.NewClient(llm.Config{
		URL:           cfg.Endpoint.URL,
		APIKey:        cfg.Endpoint.APIKey,
		AuthHeader:    cfg.Endpoint.AuthHeader,
		Model:         cfg.Endpoint.Model,
		Timeout:       cfg.Endpoint.Timeout,
		SkipTLSVerify: cfg.Endpoint.SkipTLSVerify,
	}, policy, logger)
	extractor := extract.NewExtractor(client, fields.Cheque, cfg.Endpoint.ShapeRetries, cfg.Endpoint.ShapeDelay, logger)
	executor := batch.NewExecutor(cfg.Batch.ConcurrencyLimit, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outcomes := executor.Run(ctx, units, extractor, nil)
	table := report.Aggregate(outcomes, fields.Cheque)
	if err := report.WriteCSV(table, *out); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	failures := 0
	for _, outcome := range outcomes {
		if outcome.Failed() {
			failures++
		}
	}
	fmt.Printf("Processed %d documents (%d failed). Report: %s\n", len(outcomes), failures, *out)
}
