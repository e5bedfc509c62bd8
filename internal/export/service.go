// Package export produces the XLSX deliverables: one workbook per document
// and the consolidated workbook covering a whole run.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/panabill/invoice-extractor/internal/common"
	"github.com/panabill/invoice-extractor/internal/flatten"
)

// SheetName is the sheet every workbook writes its rows to.
const SheetName = "Resumen_Consolidado"

// Extra columns the consolidated workbook appends after the invoice columns.
const (
	colSourceFile  = "archivo_origen"
	colProcessedAt = "fecha_procesamiento"
)

// Entry pairs a flat record with the file it came from.
type Entry struct {
	Filename    string
	ProcessedAt time.Time
	Record      *flatten.FlatRecord
}

// Service turns flat records into XLSX bytes.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// WriteDocumentXLSX renders one record as a single-row workbook.
func (s *Service) WriteDocumentXLSX(rec *flatten.FlatRecord) ([]byte, error) {
	start := time.Now()

	f, sheet, err := newWorkbook()
	if err != nil {
		return nil, err
	}
	defer closeWorkbook(f, s.logger)

	headers := flatten.Columns()
	if err := writeRow(f, sheet, 1, toAnys(headers)); err != nil {
		return nil, err
	}
	if err := writeRow(f, sheet, 2, rec.Values()); err != nil {
		return nil, err
	}
	widenColumns(f, sheet, len(headers))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.document.ok",
		"columns", len(headers),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// WriteConsolidatedXLSX renders every entry as one row, appending the source
// filename and processing timestamp so rows stay traceable after merging.
func (s *Service) WriteConsolidatedXLSX(entries []Entry) ([]byte, error) {
	start := time.Now()

	f, sheet, err := newWorkbook()
	if err != nil {
		return nil, err
	}
	defer closeWorkbook(f, s.logger)

	headers := append(flatten.Columns(), colSourceFile, colProcessedAt)
	if err := writeRow(f, sheet, 1, toAnys(headers)); err != nil {
		return nil, err
	}
	for i, e := range entries {
		values := append(e.Record.Values(),
			e.Filename,
			e.ProcessedAt.UTC().Format("2006-01-02 15:04:05"),
		)
		if err := writeRow(f, sheet, i+2, values); err != nil {
			return nil, err
		}
	}
	widenColumns(f, sheet, len(headers))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.consolidated.ok",
		"rows", len(entries),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// ConsolidatedFilename returns the timestamped name the batch CLI writes.
func ConsolidatedFilename(at time.Time) string {
	return fmt.Sprintf("facturas_consolidadas_%s.xlsx", at.Format("20060102_150405"))
}

// SaveXLSX writes workbook bytes to path, creating parent directories.
func (s *Service) SaveXLSX(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return common.NewAppError("EXPORT_SAVE", "create output directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return common.NewAppError("EXPORT_SAVE", "write workbook file", err)
	}
	s.logger.Info("export.saved", "path", path, "bytes", len(data))
	return nil
}

func newWorkbook() (*excelize.File, string, error) {
	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(SheetName); index == -1 {
		if _, err := f.NewSheet(SheetName); err != nil {
			return nil, "", err
		}
	}
	idx, _ := f.GetSheetIndex(SheetName)
	f.SetActiveSheet(idx)
	// drop the default sheet so the workbook opens on ours
	if SheetName != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}
	return f, SheetName, nil
}

func closeWorkbook(f *excelize.File, logger *slog.Logger) {
	if err := f.Close(); err != nil {
		logger.Warn("export.workbook_close_error", "error", err)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func widenColumns(f *excelize.File, sheet string, n int) {
	first, _ := excelize.ColumnNumberToName(1)
	last, _ := excelize.ColumnNumberToName(n)
	_ = f.SetColWidth(sheet, first, last, 18)
}

func toAnys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
