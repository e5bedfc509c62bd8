package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panabill/invoice-extractor/internal/batch"
	"github.com/panabill/invoice-extractor/internal/common"
	"github.com/panabill/invoice-extractor/internal/convert"
	"github.com/panabill/invoice-extractor/internal/export"
	"github.com/panabill/invoice-extractor/internal/pipeline"
	"github.com/panabill/invoice-extractor/internal/reconcile"
	"github.com/panabill/invoice-extractor/internal/schema"
)

type stubConverter struct{}

func (stubConverter) Convert(_ context.Context, path string) (convert.ConversionResult, error) {
	if !strings.HasSuffix(path, ".pdf") {
		return convert.ConversionResult{}, common.NewConvertError(common.ConvertUnsupportedType, fmt.Errorf("bad path"))
	}
	return convert.ConversionResult{Text: strings.Repeat("FACTURA DE ENERGIA ", 10)}, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, string) (*schema.ExtractionResult, []byte, error) {
	doc := &schema.ExtractionResult{}
	doc.Summary.InvoiceNumber = schema.NewText("INV-7")
	doc.Summary.NIS = schema.NewText("6012355002")
	doc.Summary.GrandTotal = schema.AmountFromFloat(1549.19)
	return doc, nil, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	proc := pipeline.NewProcessor(nil, stubConverter{}, stubExtractor{},
		pipeline.Policy{MaxAttempts: 1}, reconcile.Options{})
	store := batch.NewStore()
	orch := batch.NewOrchestrator(nil, proc, store, nil, 0)
	srv := New(nil, store, orch, export.NewService(nil), t.TempDir())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func uploadPDF(t *testing.T, ts *httptest.Server, filename string) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/v1/documents", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body struct {
		Documents []struct {
			ID string `json:"id"`
		} `json:"documents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Documents, 1)
	return body.Documents[0].ID
}

func runBatch(t *testing.T, ts *httptest.Server) map[string]any {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/batches", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadProcessAndInspect(t *testing.T) {
	ts := newTestServer(t)
	id := uploadPDF(t, ts, "factura_mayo.pdf")

	sum := runBatch(t, ts)
	assert.EqualValues(t, 1, sum["total"])
	assert.EqualValues(t, 1, sum["succeeded"])
	assert.EqualValues(t, 0, sum["failed"])

	resp, err := http.Get(ts.URL + "/v1/documents/" + id)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "SUCCEEDED", doc["status"])
	assert.Equal(t, "factura_mayo.pdf", doc["filename"])

	fields := doc["fields"].(map[string]any)
	assert.Equal(t, "INV-7", fields["Número de factura"])
	assert.Equal(t, "6012355002", fields["NIS"])
	assert.InDelta(t, 1549.19, fields["Gran total"].(float64), 1e-9)
	assert.NotEmpty(t, doc["text_preview"])
}

func TestUploadRejectsNonPDF(t *testing.T) {
	ts := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("hola"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/v1/documents", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestRunBatchWithoutDocuments(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/v1/batches", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDownloadWorkbooks(t *testing.T) {
	ts := newTestServer(t)
	id := uploadPDF(t, ts, "factura_mayo.pdf")
	_ = runBatch(t, ts)

	resp, err := http.Get(ts.URL + "/v1/documents/" + id + "/xlsx")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))

	resp2, err := http.Get(ts.URL + "/v1/exports/consolidated")
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Contains(t, resp2.Header.Get("Content-Disposition"), "facturas_consolidadas_")
}

func TestGetUnknownDocument(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/documents/not-a-uuid")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/documents/3f2c3e0a-8f4e-4e1a-9b77-000000000001")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
