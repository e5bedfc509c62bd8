package convert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panabill/invoice-extractor/internal/common"
)

func writeTempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "factura.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))
	return path
}

// whisperStub emulates the submit/poll/retrieve flow. pollsUntilDone controls
// how many status calls report "processing" before "processed".
func whisperStub(t *testing.T, pollsUntilDone int, resultText string) *httptest.Server {
	t.Helper()
	polls := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("unstract-key"))
		switch r.URL.Path {
		case "/whisper":
			assert.Equal(t, "form", r.URL.Query().Get("mode"))
			assert.Equal(t, "layout_preserving", r.URL.Query().Get("output_mode"))
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"whisper_hash":"abc123"}`))
		case "/whisper-status":
			assert.Equal(t, "abc123", r.URL.Query().Get("whisper_hash"))
			status := "processed"
			if polls < pollsUntilDone {
				status = "processing"
				polls++
			}
			_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
		case "/whisper-retrieve":
			body, _ := json.Marshal(map[string]string{"result_text": resultText})
			_, _ = w.Write(body)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestClient(baseURL string) *WhispererClient {
	return NewWhispererClient(WhispererConfig{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		Timeout:      5 * time.Second,
		PollInterval: 5 * time.Millisecond,
	}, nil)
}

func TestConvertHappyPath(t *testing.T) {
	srv := whisperStub(t, 2, "FACTURA | NIS: 6012355 002\nGRAN TOTAL B/. 1.549,19")
	defer srv.Close()

	res, err := newTestClient(srv.URL).Convert(context.Background(), writeTempPDF(t))
	require.NoError(t, err)
	assert.Contains(t, res.Text, "GRAN TOTAL")
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestConvertRejectsUnsupportedExtension(t *testing.T) {
	_, err := newTestClient("http://unused").Convert(context.Background(), "/tmp/factura.png")
	require.Error(t, err)
	ce, ok := common.AsConvertError(err)
	require.True(t, ok)
	assert.Equal(t, common.ConvertUnsupportedType, ce.Reason)
}

func TestConvertMissingFile(t *testing.T) {
	_, err := newTestClient("http://unused").Convert(
		context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	ce, ok := common.AsConvertError(err)
	require.True(t, ok)
	assert.Equal(t, common.ConvertFileNotFound, ce.Reason)
}

func TestConvertServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Convert(context.Background(), writeTempPDF(t))
	require.Error(t, err)
	ce, ok := common.AsConvertError(err)
	require.True(t, ok)
	assert.Equal(t, common.ConvertServiceError, ce.Reason)
}

func TestConvertProcessingTimeout(t *testing.T) {
	// status never leaves "processing"; the conversion budget has to trip
	srv := whisperStub(t, int(^uint(0)>>1), "")
	defer srv.Close()

	c := NewWhispererClient(WhispererConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		Timeout:      50 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}, nil)
	_, err := c.Convert(context.Background(), writeTempPDF(t))
	require.Error(t, err)
	ce, ok := common.AsConvertError(err)
	require.True(t, ok)
	assert.Equal(t, common.ConvertTimeout, ce.Reason)
}

func TestConvertRejectsUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/whisper":
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"whisper_hash":"abc123"}`))
		case "/whisper-status":
			_, _ = w.Write([]byte(`{"status":"error"}`))
		}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Convert(context.Background(), writeTempPDF(t))
	require.Error(t, err)
	ce, ok := common.AsConvertError(err)
	require.True(t, ok)
	assert.Equal(t, common.ConvertServiceError, ce.Reason)
}
