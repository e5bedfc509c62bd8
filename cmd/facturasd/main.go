// facturasd serves the invoice-extraction pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panabill/invoice-extractor/internal/batch"
	"github.com/panabill/invoice-extractor/internal/common"
	"github.com/panabill/invoice-extractor/internal/convert"
	"github.com/panabill/invoice-extractor/internal/export"
	"github.com/panabill/invoice-extractor/internal/llm/openai"
	"github.com/panabill/invoice-extractor/internal/pipeline"
	"github.com/panabill/invoice-extractor/internal/reconcile"
	"github.com/panabill/invoice-extractor/internal/repository"
	"github.com/panabill/invoice-extractor/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Config{Path: cfg.Storage.DBPath}, logger)
	if err != nil {
		logger.Error("failed to open batch log", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	converter := convert.NewWhispererClient(convert.WhispererConfig{
		APIKey:       cfg.Whisperer.APIKey,
		BaseURL:      cfg.Whisperer.BaseURL,
		Timeout:      cfg.Whisperer.Timeout,
		PollInterval: cfg.Whisperer.PollInterval,
	}, logger)
	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	proc := pipeline.NewProcessor(logger, converter, extractor,
		pipeline.Policy{
			MaxAttempts: cfg.Batch.MaxAttempts,
			BaseDelay:   cfg.Batch.RetryBaseDelay,
		},
		reconcile.Options{})

	store := batch.NewStore()
	orch := batch.NewOrchestrator(logger, proc, store,
		repository.NewBatchLog(db), cfg.Batch.DocPacing)

	srv := server.New(logger, store, orch, export.NewService(logger), cfg.Server.UploadDir)
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("bye")
}
