package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/panabill/invoice-extractor/constants"
	"github.com/panabill/invoice-extractor/internal/common"
	"github.com/panabill/invoice-extractor/internal/convert"
	"github.com/panabill/invoice-extractor/internal/flatten"
	"github.com/panabill/invoice-extractor/internal/llm"
	"github.com/panabill/invoice-extractor/internal/reconcile"
	"github.com/panabill/invoice-extractor/internal/schema"
)

// previewLen caps how much converted text is kept on a Result for display.
const previewLen = 2000

// Document is one invoice file moving through the pipeline.
type Document struct {
	ID       uuid.UUID
	Path     string
	Filename string
}

func NewDocument(path, filename string) Document {
	return Document{ID: uuid.New(), Path: path, Filename: filename}
}

// Result carries everything the pipeline produced for one document.
type Result struct {
	Record      *flatten.FlatRecord
	Extraction  *schema.ExtractionResult
	TextPreview string
	ConvertTime time.Duration
}

// Processor runs one document through convert -> extract -> reconcile ->
// flatten. Stages are retried per Policy; retryable failures are service and
// timeout errors, everything else fails fast.
type Processor struct {
	Logger    *slog.Logger
	Converter convert.TextConverter
	Extractor llm.InvoiceExtractor
	Policy    Policy
	Opts      reconcile.Options
}

func NewProcessor(logger *slog.Logger, conv convert.TextConverter, ext llm.InvoiceExtractor, policy Policy, opts reconcile.Options) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Converter: conv, Extractor: ext, Policy: policy, Opts: opts}
}

// Process produces one flat record for doc, or a *common.ConvertError /
// *common.ExtractError naming the failed stage. A failure never yields a
// partial record.
func (p *Processor) Process(ctx context.Context, doc Document) (*Result, error) {
	start := time.Now()
	p.Logger.Info("pipeline.process.start",
		"doc_id", doc.ID.String(), "file", doc.Filename)

	conv, err := p.convertWithRetry(ctx, doc)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(conv.Text)
	if len(text) < constants.MinConvertedTextLen {
		err := common.NewConvertError(common.ConvertTextTooShort,
			fmt.Errorf("converted text is %d chars, need at least %d",
				len(text), constants.MinConvertedTextLen))
		p.Logger.Error("pipeline.process.text_too_short",
			"doc_id", doc.ID.String(), "file", doc.Filename, "text_len", len(text))
		return nil, err
	}

	extraction, err := p.extractWithRetry(ctx, doc, text)
	if err != nil {
		return nil, err
	}

	fields := reconcile.Reconcile(extraction, p.Opts)
	record := flatten.Flatten(fields)

	filled, total := record.FilledCount()
	p.Logger.Info("pipeline.process.ok",
		"doc_id", doc.ID.String(),
		"file", doc.Filename,
		"nis", fields.NIS,
		"invoice", fields.InvoiceNumber,
		"gran_total", fields.GrandTotal.Float(),
		"filled_columns", fmt.Sprintf("%d/%d", filled, total),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	preview := text
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	return &Result{
		Record:      record,
		Extraction:  extraction,
		TextPreview: preview,
		ConvertTime: conv.Duration,
	}, nil
}

func (p *Processor) convertWithRetry(ctx context.Context, doc Document) (convert.ConversionResult, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		res, err := p.Converter.Convert(ctx, doc.Path)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !convertRetryable(err) {
			return convert.ConversionResult{}, err
		}
		delay, retry := p.Policy.Next(attempt)
		if !retry {
			break
		}
		p.Logger.Warn("pipeline.convert.retry",
			"doc_id", doc.ID.String(), "attempt", attempt,
			"delay_ms", delay.Milliseconds(), "error", err)
		if err := sleepCtx(ctx, delay); err != nil {
			return convert.ConversionResult{}, common.NewConvertError(common.ConvertTimeout, err)
		}
	}
	return convert.ConversionResult{}, lastErr
}

func (p *Processor) extractWithRetry(ctx context.Context, doc Document, text string) (*schema.ExtractionResult, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		extraction, _, err := p.Extractor.Extract(ctx, text)
		if err == nil {
			return extraction, nil
		}
		lastErr = err
		if !extractRetryable(err) {
			return nil, err
		}
		delay, retry := p.Policy.Next(attempt)
		if !retry {
			break
		}
		p.Logger.Warn("pipeline.extract.retry",
			"doc_id", doc.ID.String(), "attempt", attempt,
			"delay_ms", delay.Milliseconds(), "error", err)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, common.NewExtractError(common.ExtractTimeout, err)
		}
	}
	return nil, lastErr
}

// convertRetryable: a missing or unsupported file will not fix itself.
func convertRetryable(err error) bool {
	ce, ok := common.AsConvertError(err)
	if !ok {
		return false
	}
	return ce.Reason == common.ConvertServiceError || ce.Reason == common.ConvertTimeout
}

// extractRetryable: malformed output is worth another completion, a schema
// bug is not going away by retrying but service hiccups and truncated JSON
// often do.
func extractRetryable(err error) bool {
	xe, ok := common.AsExtractError(err)
	if !ok {
		return false
	}
	switch xe.Reason {
	case common.ExtractServiceError, common.ExtractTimeout,
		common.ExtractNoJSON, common.ExtractBadJSON:
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
