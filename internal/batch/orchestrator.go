package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/panabill/invoice-extractor/constants"
	"github.com/panabill/invoice-extractor/internal/common"
	"github.com/panabill/invoice-extractor/internal/pipeline"
	"github.com/panabill/invoice-extractor/internal/repository"
)

// Summary tallies one finished run.
type Summary struct {
	BatchID   uuid.UUID
	Total     int
	Succeeded int
	Failed    int
	Outcomes  []Outcome
	Elapsed   time.Duration
}

// Orchestrator feeds documents through the processor one at a time. One
// document failing never stops the run; only context cancellation does, and
// cancellation is checked between documents, not mid-document.
type Orchestrator struct {
	Logger    *slog.Logger
	Processor *pipeline.Processor
	Store     *Store
	Log       *repository.BatchLog // optional; nil disables persistence
	DocPacing time.Duration        // wait between consecutive documents
}

func NewOrchestrator(logger *slog.Logger, proc *pipeline.Processor, store *Store, blog *repository.BatchLog, pacing time.Duration) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Logger: logger, Processor: proc, Store: store, Log: blog, DocPacing: pacing}
}

// Run processes docs in order and returns the run summary. The returned error
// is only ever the context's; per-document failures live in the outcomes.
func (o *Orchestrator) Run(ctx context.Context, docs []pipeline.Document) (Summary, error) {
	start := time.Now()
	sum := Summary{Total: len(docs)}

	if o.Log != nil {
		id, err := o.Log.StartRun(ctx, len(docs))
		if err != nil {
			o.Logger.Error("batch.run.log_start_failed", "error", err)
		} else {
			sum.BatchID = id
		}
	}
	o.Logger.Info("batch.run.start", "batch_id", sum.BatchID.String(), "total", len(docs))

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			o.Logger.Warn("batch.run.cancelled",
				"batch_id", sum.BatchID.String(), "processed", i, "total", len(docs))
			o.finish(ctx, &sum, start)
			return sum, err
		}
		if i > 0 && o.DocPacing > 0 {
			if err := sleepCtx(ctx, o.DocPacing); err != nil {
				o.finish(ctx, &sum, start)
				return sum, err
			}
		}

		out := o.processOne(ctx, sum.BatchID, doc)
		sum.Outcomes = append(sum.Outcomes, out)
		if out.Succeeded() {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}

	o.finish(ctx, &sum, start)
	o.Logger.Info("batch.run.done",
		"batch_id", sum.BatchID.String(),
		"succeeded", sum.Succeeded, "failed", sum.Failed,
		"elapsed_ms", sum.Elapsed.Milliseconds())
	return sum, nil
}

func (o *Orchestrator) processOne(ctx context.Context, batchID uuid.UUID, doc pipeline.Document) Outcome {
	out := Outcome{
		DocID:       doc.ID,
		Filename:    doc.Filename,
		ProcessedAt: time.Now().UTC(),
	}

	res, err := o.Processor.Process(ctx, doc)
	switch {
	case err == nil:
		out.Status = constants.DocStatusSucceeded
		o.Store.Put(out, res.Record, res.TextPreview)
	default:
		out.Status = constants.DocStatusFailed
		out.FailureKind, out.Reason = classifyFailure(err)
		o.Logger.Error("batch.doc.failed",
			"doc_id", doc.ID.String(), "file", doc.Filename,
			"failure", string(out.FailureKind), "reason", out.Reason, "error", err)
		o.Store.Put(out, nil, "")
	}

	if o.Log != nil {
		row := repository.DocumentRow{
			ID:          out.DocID,
			BatchID:     batchID,
			Filename:    out.Filename,
			Status:      out.Status,
			FailureKind: out.FailureKind,
			Reason:      out.Reason,
			ProcessedAt: out.ProcessedAt,
		}
		if err := o.Log.RecordDocument(ctx, row); err != nil {
			o.Logger.Error("batch.doc.log_failed",
				"doc_id", doc.ID.String(), "error", err)
		}
	}
	return out
}

func (o *Orchestrator) finish(ctx context.Context, sum *Summary, start time.Time) {
	sum.Elapsed = time.Since(start)
	if o.Log != nil && sum.BatchID != uuid.Nil {
		// finish must land even when ctx is already cancelled
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := o.Log.FinishRun(fctx, sum.BatchID, sum.Succeeded, sum.Failed); err != nil {
			o.Logger.Error("batch.run.log_finish_failed", "error", err)
		}
	}
}

func classifyFailure(err error) (constants.FailureKind, string) {
	if ce, ok := common.AsConvertError(err); ok {
		return constants.FailureConversion, string(ce.Reason)
	}
	if xe, ok := common.AsExtractError(err); ok {
		return constants.FailureExtraction, string(xe.Reason)
	}
	return constants.FailurePersist, err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
