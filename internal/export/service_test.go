package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/panabill/invoice-extractor/internal/flatten"
	"github.com/panabill/invoice-extractor/internal/reconcile"
	"github.com/panabill/invoice-extractor/internal/schema"
)

func record(invoice, nis string, total float64) *flatten.FlatRecord {
	return flatten.Flatten(reconcile.Fields{
		InvoiceNumber: invoice,
		NIS:           nis,
		GrandTotal:    schema.AmountFromFloat(total),
		EnergyDetail:  "[]",
	})
}

func openSheet(t *testing.T, data []byte) ([][]string, func()) {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	return rows, func() { _ = f.Close() }
}

func TestWriteDocumentXLSX(t *testing.T) {
	svc := NewService(nil)
	data, err := svc.WriteDocumentXLSX(record("123456789", "6012355002", 1549.19))
	require.NoError(t, err)

	rows, done := openSheet(t, data)
	defer done()

	require.Len(t, rows, 2)
	assert.Equal(t, flatten.Columns(), rows[0][:46])
	assert.Equal(t, "123456789", rows[1][0])
	assert.Equal(t, "6012355002", rows[1][1])
	assert.Equal(t, "1549.19", rows[1][9])
}

func TestWriteConsolidatedXLSX(t *testing.T) {
	svc := NewService(nil)
	t1 := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 1, 10, 35, 0, 0, time.UTC)

	data, err := svc.WriteConsolidatedXLSX([]Entry{
		{Filename: "mayo.pdf", ProcessedAt: t1, Record: record("INV-1", "111", 10.5)},
		{Filename: "junio.pdf", ProcessedAt: t2, Record: record("INV-2", "222", 20.5)},
	})
	require.NoError(t, err)

	rows, done := openSheet(t, data)
	defer done()

	require.Len(t, rows, 3)
	header := rows[0]
	require.Len(t, header, 48)
	assert.Equal(t, "archivo_origen", header[46])
	assert.Equal(t, "fecha_procesamiento", header[47])

	assert.Equal(t, "INV-1", rows[1][0])
	assert.Equal(t, "mayo.pdf", rows[1][46])
	assert.Equal(t, "2024-06-01 10:30:00", rows[1][47])
	assert.Equal(t, "INV-2", rows[2][0])
	assert.Equal(t, "junio.pdf", rows[2][46])
}

func TestConsolidatedFilename(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 30, 45, 0, time.UTC)
	assert.Equal(t, "facturas_consolidadas_20240601_103045.xlsx", ConsolidatedFilename(at))
}

func TestSaveXLSXCreatesDirectories(t *testing.T) {
	svc := NewService(nil)
	path := filepath.Join(t.TempDir(), "nested", "out.xlsx")
	require.NoError(t, svc.SaveXLSX(path, []byte("payload")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}
