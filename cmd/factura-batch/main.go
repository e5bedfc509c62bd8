// factura-batch processes every PDF invoice in a directory and writes the
// consolidated XLSX next to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/panabill/invoice-extractor/constants"
	"github.com/panabill/invoice-extractor/internal/batch"
	"github.com/panabill/invoice-extractor/internal/common"
	"github.com/panabill/invoice-extractor/internal/convert"
	"github.com/panabill/invoice-extractor/internal/export"
	"github.com/panabill/invoice-extractor/internal/llm/openai"
	"github.com/panabill/invoice-extractor/internal/pipeline"
	"github.com/panabill/invoice-extractor/internal/reconcile"
	"github.com/panabill/invoice-extractor/internal/repository"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir    = flag.String("dir", "", "directory of PDF invoices to process (required)")
		out    = flag.String("out", "", "output XLSX path (default: <dir>/facturas_consolidadas_<timestamp>.xlsx)")
		inmem  = flag.Bool("inmem", false, "use an in-memory batch log instead of the configured database")
		strict = flag.Bool("strict-presence", false, "treat explicit zeros as present values during reconciliation")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	docs, err := collectDocuments(*dir)
	if err != nil {
		logger.Error("failed to scan input directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		printError("No PDF files found in %s\n", *dir)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath := cfg.Storage.DBPath
	if *inmem {
		dbPath = ":memory:"
	}
	db, err := repository.Open(ctx, repository.Config{Path: dbPath}, logger)
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
		reconcile.Options{StrictPresence: *strict})

	store := batch.NewStore()
	orch := batch.NewOrchestrator(logger, proc, store,
		repository.NewBatchLog(db), cfg.Batch.DocPacing)

	sum, runErr := orch.Run(ctx, docs)
	if runErr != nil {
		logger.Warn("batch interrupted", "error", runErr)
	}

	if sum.Succeeded > 0 {
		if err := writeConsolidated(store, *dir, *out, logger); err != nil {
			logger.Error("failed to write consolidated workbook", "error", err)
			os.Exit(1)
		}
	}

	fmt.Printf("\nProcessed %d invoices: %d succeeded, %d failed (%.1fs)\n",
		sum.Total, sum.Succeeded, sum.Failed, sum.Elapsed.Seconds())
	for _, o := range sum.Outcomes {
		if o.Succeeded() {
			fmt.Printf("  OK    %s\n", o.Filename)
		} else {
			fmt.Printf("  FAIL  %s  (%s: %s)\n", o.Filename, o.FailureKind, o.Reason)
		}
	}
	if sum.Failed > 0 {
		os.Exit(1)
	}
}

// collectDocuments lists the PDFs of dir (non-recursive), case-insensitive on
// extension, in deterministic name order.
func collectDocuments(dir string) ([]pipeline.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if constants.IsAllowedExt(filepath.Ext(e.Name())) {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	docs := make([]pipeline.Document, 0, len(names))
	for _, name := range names {
		docs = append(docs, pipeline.NewDocument(filepath.Join(dir, name), name))
	}
	return docs, nil
}

func writeConsolidated(store *batch.Store, dir, out string, logger *slog.Logger) error {
	var entries []export.Entry
	for _, o := range store.Succeeded() {
		rec, ok := store.Record(o.DocID)
		if !ok {
			continue
		}
		entries = append(entries, export.Entry{
			Filename:    o.Filename,
			ProcessedAt: o.ProcessedAt,
			Record:      rec,
		})
	}

	svc := export.NewService(logger)
	data, err := svc.WriteConsolidatedXLSX(entries)
	if err != nil {
		return err
	}
	if out == "" {
		out = filepath.Join(dir, export.ConsolidatedFilename(time.Now()))
	}
	return svc.SaveXLSX(out, data)
}
