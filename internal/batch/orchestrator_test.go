package batch

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panabill/invoice-extractor/constants"
	"github.com/panabill/invoice-extractor/internal/common"
	"github.com/panabill/invoice-extractor/internal/convert"
	"github.com/panabill/invoice-extractor/internal/pipeline"
	"github.com/panabill/invoice-extractor/internal/reconcile"
	"github.com/panabill/invoice-extractor/internal/schema"
)

// scriptedConverter keys its behavior off the document filename so a batch
// can mix successes and failures.
type scriptedConverter struct{}

func (scriptedConverter) Convert(_ context.Context, path string) (convert.ConversionResult, error) {
	switch {
	case strings.Contains(path, "short"):
		return convert.ConversionResult{Text: "x"}, nil
	case strings.Contains(path, "unreadable"):
		return convert.ConversionResult{}, common.NewConvertError(common.ConvertFileNotFound, fmt.Errorf("no such file"))
	default:
		return convert.ConversionResult{Text: strings.Repeat("FACTURA ", 20)}, nil
	}
}

type scriptedExtractor struct{}

func (scriptedExtractor) Extract(_ context.Context, text string) (*schema.ExtractionResult, []byte, error) {
	doc := &schema.ExtractionResult{}
	doc.Summary.InvoiceNumber = schema.NewText("INV-1")
	doc.Summary.GrandTotal = schema.AmountFromFloat(99.50)
	return doc, nil, nil
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string) (*schema.ExtractionResult, []byte, error) {
	return nil, []byte("no soy json"), common.NewExtractError(common.ExtractSchemaMismatch, fmt.Errorf("bad shape"))
}

func newOrchestrator(ext interface {
	Extract(context.Context, string) (*schema.ExtractionResult, []byte, error)
}) (*Orchestrator, *Store) {
	proc := pipeline.NewProcessor(nil, scriptedConverter{}, ext,
		pipeline.Policy{MaxAttempts: 1}, reconcile.Options{})
	store := NewStore()
	return NewOrchestrator(nil, proc, store, nil, 0), store
}

func docs(names ...string) []pipeline.Document {
	out := make([]pipeline.Document, 0, len(names))
	for _, n := range names {
		out = append(out, pipeline.NewDocument("/tmp/"+n, n))
	}
	return out
}

func TestRunContinuesPastFailures(t *testing.T) {
	orch, store := newOrchestrator(scriptedExtractor{})

	sum, err := orch.Run(context.Background(),
		docs("good1.pdf", "short.pdf", "unreadable.pdf", "good2.pdf"))
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 2, sum.Failed)
	require.Len(t, sum.Outcomes, 4)

	// order preserved
	assert.Equal(t, "good1.pdf", sum.Outcomes[0].Filename)
	assert.Equal(t, constants.DocStatusSucceeded, sum.Outcomes[0].Status)

	assert.Equal(t, constants.DocStatusFailed, sum.Outcomes[1].Status)
	assert.Equal(t, constants.FailureConversion, sum.Outcomes[1].FailureKind)
	assert.Equal(t, string(common.ConvertTextTooShort), sum.Outcomes[1].Reason)

	assert.Equal(t, constants.FailureConversion, sum.Outcomes[2].FailureKind)
	assert.Equal(t, string(common.ConvertFileNotFound), sum.Outcomes[2].Reason)

	assert.Equal(t, constants.DocStatusSucceeded, sum.Outcomes[3].Status)

	// succeeded docs have records, failed ones do not
	_, ok := store.Record(sum.Outcomes[0].DocID)
	assert.True(t, ok)
	_, ok = store.Record(sum.Outcomes[1].DocID)
	assert.False(t, ok)
}

func TestRunReportsExtractionFailures(t *testing.T) {
	orch, store := newOrchestrator(failingExtractor{})

	sum, err := orch.Run(context.Background(), docs("good1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, constants.FailureExtraction, sum.Outcomes[0].FailureKind)
	assert.Equal(t, string(common.ExtractSchemaMismatch), sum.Outcomes[0].Reason)
	assert.Empty(t, store.Succeeded())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	orch, _ := newOrchestrator(scriptedExtractor{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := orch.Run(ctx, docs("good1.pdf", "good2.pdf"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sum.Outcomes)
}

func TestStoreKeepsProcessingOrder(t *testing.T) {
	orch, store := newOrchestrator(scriptedExtractor{})

	sum, err := orch.Run(context.Background(), docs("b.pdf", "a.pdf", "c.pdf"))
	require.NoError(t, err)

	var names []string
	for _, o := range store.Outcomes() {
		names = append(names, o.Filename)
	}
	assert.Equal(t, []string{"b.pdf", "a.pdf", "c.pdf"}, names)
	assert.Len(t, store.Succeeded(), sum.Succeeded)
}
