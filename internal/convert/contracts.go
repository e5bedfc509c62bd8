package convert

import (
	"context"
	"time"
)

// TextConverter is Stage 1: invoice file -> layout-preserving ASCII text.
// Implementations return a *common.ConvertError so the orchestrator can log
// a distinguishable reason per document.
type TextConverter interface {
	Convert(ctx context.Context, path string) (ConversionResult, error)
}

type ConversionResult struct {
	Text     string
	Duration time.Duration
}
