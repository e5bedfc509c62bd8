// Package server exposes the extraction pipeline over HTTP: upload PDFs,
// trigger a run, inspect outcomes, download workbooks.
package server

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/panabill/invoice-extractor/constants"
	"github.com/panabill/invoice-extractor/internal/batch"
	"github.com/panabill/invoice-extractor/internal/export"
	"github.com/panabill/invoice-extractor/internal/flatten"
	"github.com/panabill/invoice-extractor/internal/pipeline"
)

const maxUploadBytes = 32 << 20

type Server struct {
	logger    *slog.Logger
	store     *batch.Store
	orch      *batch.Orchestrator
	exporter  *export.Service
	uploadDir string

	mu      sync.Mutex
	pending []pipeline.Document
	running bool
}

func New(logger *slog.Logger, store *batch.Store, orch *batch.Orchestrator, exporter *export.Service, uploadDir string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:    logger,
		store:     store,
		orch:      orch,
		exporter:  exporter,
		uploadDir: uploadDir,
	}
}

// Router wires every route. Paths are versioned the same way across the API.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/documents", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/v1/documents", s.handleListDocuments).Methods(http.MethodGet)
	r.HandleFunc("/v1/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	r.HandleFunc("/v1/documents/{id}/xlsx", s.handleDocumentXLSX).Methods(http.MethodGet)
	r.HandleFunc("/v1/batches", s.handleRunBatch).Methods(http.MethodPost)
	r.HandleFunc("/v1/exports/consolidated", s.handleConsolidatedXLSX).Methods(http.MethodGet)
	r.Use(s.logMiddleware)
	return r
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http.request",
			"method", r.Method, "path", r.URL.Path,
			"elapsed_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts one or more PDFs under the "files" form field and
// queues them for the next run.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse multipart form: %v", err))
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files in upload; use form field 'files'")
		return
	}

	var queued []map[string]string
	for _, fh := range files {
		if !constants.IsAllowedExt(filepath.Ext(fh.Filename)) {
			writeError(w, http.StatusUnsupportedMediaType,
				fmt.Sprintf("unsupported file type: %s", fh.Filename))
			return
		}
		doc, err := s.saveUpload(fh)
		if err != nil {
			s.logger.Error("http.upload.save_failed", "file", fh.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		s.mu.Lock()
		s.pending = append(s.pending, doc)
		s.mu.Unlock()
		queued = append(queued, map[string]string{
			"id":       doc.ID.String(),
			"filename": doc.Filename,
			"status":   string(constants.DocStatusQueued),
		})
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"documents": queued})
}

func (s *Server) saveUpload(fh *multipart.FileHeader) (pipeline.Document, error) {
	src, err := fh.Open()
	if err != nil {
		return pipeline.Document{}, err
	}
	defer func() { _ = src.Close() }()

	doc := pipeline.NewDocument("", filepath.Base(fh.Filename))
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return pipeline.Document{}, err
	}
	doc.Path = filepath.Join(s.uploadDir, doc.ID.String()+".pdf")

	dst, err := os.Create(doc.Path)
	if err != nil {
		return pipeline.Document{}, err
	}
	defer func() { _ = dst.Close() }()
	if _, err := io.Copy(dst, src); err != nil {
		return pipeline.Document{}, err
	}
	return doc, nil
}

// handleRunBatch drains the pending queue through the orchestrator. The call
// is synchronous; a second call while a run is active gets 409.
func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "a batch is already running")
		return
	}
	docs := s.pending
	s.pending = nil
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if len(docs) == 0 {
		writeError(w, http.StatusBadRequest, "no documents queued")
		return
	}

	sum, err := s.orch.Run(r.Context(), docs)
	resp := map[string]any{
		"batch_id":  sum.BatchID.String(),
		"total":     sum.Total,
		"succeeded": sum.Succeeded,
		"failed":    sum.Failed,
		"outcomes":  outcomesJSON(sum.Outcomes),
	}
	if err != nil {
		resp["error"] = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	pending := make([]map[string]any, 0, len(s.pending))
	for _, d := range s.pending {
		pending = append(pending, map[string]any{
			"id":       d.ID.String(),
			"filename": d.Filename,
			"status":   string(constants.DocStatusQueued),
		})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"pending":   pending,
		"processed": outcomesJSON(s.store.Outcomes()),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	out, ok := s.store.Outcome(id)
	if !ok {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	resp := map[string]any{
		"id":           out.DocID.String(),
		"filename":     out.Filename,
		"status":       string(out.Status),
		"failure_kind": string(out.FailureKind),
		"reason":       out.Reason,
		"processed_at": out.ProcessedAt.Format(time.RFC3339),
	}
	if rec, ok := s.store.Record(id); ok {
		cols := flatten.Columns()
		values := rec.Values()
		fields := make(map[string]any, len(cols))
		for i, col := range cols {
			fields[col] = values[i]
		}
		resp["fields"] = fields
	}
	if preview, ok := s.store.Preview(id); ok {
		resp["text_preview"] = preview
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDocumentXLSX(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, ok := s.store.Record(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no record for document")
		return
	}
	data, err := s.exporter.WriteDocumentXLSX(rec)
	if err != nil {
		s.logger.Error("http.export.document_failed", "doc_id", id.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	out, _ := s.store.Outcome(id)
	name := strings.TrimSuffix(out.Filename, filepath.Ext(out.Filename)) + ".xlsx"
	writeXLSX(w, name, data)
}

func (s *Server) handleConsolidatedXLSX(w http.ResponseWriter, _ *http.Request) {
	var entries []export.Entry
	for _, out := range s.store.Succeeded() {
		rec, ok := s.store.Record(out.DocID)
		if !ok {
			continue
		}
		entries = append(entries, export.Entry{
			Filename:    out.Filename,
			ProcessedAt: out.ProcessedAt,
			Record:      rec,
		})
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "no processed documents to export")
		return
	}
	data, err := s.exporter.WriteConsolidatedXLSX(entries)
	if err != nil {
		s.logger.Error("http.export.consolidated_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeXLSX(w, export.ConsolidatedFilename(time.Now()), data)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return uuid.Nil, false
	}
	return id, true
}

func outcomesJSON(outs []batch.Outcome) []map[string]any {
	res := make([]map[string]any, 0, len(outs))
	for _, o := range outs {
		res = append(res, map[string]any{
			"id":           o.DocID.String(),
			"filename":     o.Filename,
			"status":       string(o.Status),
			"failure_kind": string(o.FailureKind),
			"reason":       o.Reason,
			"processed_at": o.ProcessedAt.Format(time.RFC3339),
		})
	}
	return res
}
