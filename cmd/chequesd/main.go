package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/batch"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/common"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/extract"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/fields"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/jobs"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/llm"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		logger.Error("create output dir", "dir", cfg.Output.Dir, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

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
	registry := jobs.NewRegistry()
	orchestrator := jobs.NewOrchestrator(registry, executor, extractor, fields.Cheque, cfg.Output.Dir, logger)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: server.New(orchestrator, logger).Router(),
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr, "concurrency_limit", cfg.Batch.ConcurrencyLimit)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("stopped")
}
