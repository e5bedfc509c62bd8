package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/panabill/invoice-extractor/constants"
	"github.com/panabill/invoice-extractor/internal/common"
)

// WhispererConfig configures the LLMWhisperer V2 client.
type WhispererConfig struct {
	APIKey       string
	BaseURL      string        // default https://llmwhisperer-api.us-central.unstract.com/api/v2
	Timeout      time.Duration // whole-conversion budget, default 5m
	PollInterval time.Duration // default 3s
}

// WhispererClient converts a PDF to ASCII-art text through the LLMWhisperer
// V2 API: submit the file, poll until processed, retrieve the text. The
// whisper parameters are tuned for invoice tables (form mode, layout
// preserving, ruled lines marked).
type WhispererClient struct {
	cfg    WhispererConfig
	http   *http.Client
	logger *slog.Logger
}

func NewWhispererClient(cfg WhispererConfig, logger *slog.Logger) *WhispererClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://llmwhisperer-api.us-central.unstract.com/api/v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WhispererClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *WhispererClient) Convert(ctx context.Context, path string) (ConversionResult, error) {
	reqID := uuid.New().String()
	start := time.Now()

	if !constants.IsAllowedExt(filepath.Ext(path)) {
		return ConversionResult{}, common.NewConvertError(common.ConvertUnsupportedType,
			fmt.Errorf("extension %q", filepath.Ext(path)))
	}
	pdf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ConversionResult{}, common.NewConvertError(common.ConvertFileNotFound, err)
		}
		return ConversionResult{}, common.NewConvertError(common.ConvertServiceError, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.logger.Info("convert.whisper.start",
		"req_id", reqID, "file", filepath.Base(path), "bytes", len(pdf))

	hash, err := c.submit(ctx, pdf)
	if err != nil {
		return ConversionResult{}, c.classify(reqID, start, err)
	}

	if err := c.waitProcessed(ctx, hash); err != nil {
		return ConversionResult{}, c.classify(reqID, start, err)
	}

	text, err := c.retrieve(ctx, hash)
	if err != nil {
		return ConversionResult{}, c.classify(reqID, start, err)
	}

	elapsed := time.Since(start)
	c.logger.Info("convert.whisper.ok",
		"req_id", reqID, "chars", len(text), "elapsed_ms", elapsed.Milliseconds())
	return ConversionResult{Text: text, Duration: elapsed}, nil
}

// classify maps transport errors onto the conversion failure taxonomy.
func (c *WhispererClient) classify(reqID string, start time.Time, err error) error {
	reason := common.ConvertServiceError
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		reason = common.ConvertTimeout
	}
	c.logger.Error("convert.whisper.failed",
		"req_id", reqID, "reason", string(reason), "error", err,
		"elapsed_ms", time.Since(start).Milliseconds())
	return common.NewConvertError(reason, err)
}

func (c *WhispererClient) submit(ctx context.Context, pdf []byte) (string, error) {
	q := url.Values{
		"mode":                      {"form"},
		"output_mode":               {"layout_preserving"},
		"mark_vertical_lines":       {"true"},
		"mark_horizontal_lines":     {"true"},
		"line_splitter_tolerance":   {"0.4"},
		"horizontal_stretch_factor": {"1.0"},
	}
	endpoint := c.cfg.BaseURL + "/whisper?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(pdf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("unstract-key", c.cfg.APIKey)

	raw, status, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status != http.StatusAccepted && status != http.StatusOK {
		return "", fmt.Errorf("whisper submit status %d: %s", status, truncateBody(raw))
	}
	var body struct {
		WhisperHash string `json:"whisper_hash"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.WhisperHash == "" {
		return "", fmt.Errorf("whisper submit: missing whisper_hash in %s", truncateBody(raw))
	}
	return body.WhisperHash, nil
}

func (c *WhispererClient) waitProcessed(ctx context.Context, hash string) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.cfg.BaseURL+"/whisper-status?whisper_hash="+url.QueryEscape(hash), nil)
		if err != nil {
			return err
		}
		req.Header.Set("unstract-key", c.cfg.APIKey)
		raw, status, err := c.do(req)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("whisper status %d: %s", status, truncateBody(raw))
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return fmt.Errorf("whisper status decode: %w", err)
		}
		switch body.Status {
		case "processed":
			return nil
		case "processing", "accepted", "delivered":
			// keep polling
		default:
			return fmt.Errorf("whisper status %q", body.Status)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *WhispererClient) retrieve(ctx context.Context, hash string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/whisper-retrieve?whisper_hash="+url.QueryEscape(hash), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("unstract-key", c.cfg.APIKey)
	raw, status, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("whisper retrieve status %d: %s", status, truncateBody(raw))
	}
	// V2 responses carry result_text either at the top level or under
	// "extraction" depending on the delivery mode.
	var body struct {
		ResultText string `json:"result_text"`
		Extraction struct {
			ResultText string `json:"result_text"`
		} `json:"extraction"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("whisper retrieve decode: %w", err)
	}
	if body.ResultText != "" {
		return body.ResultText, nil
	}
	if body.Extraction.ResultText != "" {
		return body.Extraction.ResultText, nil
	}
	return "", fmt.Errorf("whisper retrieve: empty result_text")
}

func (c *WhispererClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.logger.Warn("convert.whisper.body_close_error", "error", cerr)
		}
	}(resp.Body)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func truncateBody(b []byte) string {
	const max = 300
	if len(b) > max {
		return string(b[:max]) + "…"
	}
	return string(b)
}
