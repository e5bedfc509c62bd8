package llm

import (
	"context"

	"github.com/panabill/invoice-extractor/internal/schema"
)

// InvoiceExtractor is Stage 2: ASCII text -> structured extraction result.
// On failure it returns a *common.ExtractError and whatever raw bytes the
// service produced (for debugging display only, never persisted as data).
type InvoiceExtractor interface {
	Extract(ctx context.Context, asciiText string) (*schema.ExtractionResult, []byte, error)
}
