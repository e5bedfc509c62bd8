package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/panabill/invoice-extractor/internal/common"
	"github.com/panabill/invoice-extractor/internal/llm"
	"github.com/panabill/invoice-extractor/internal/schema"
)

// Extract implements llm.InvoiceExtractor over chat/completions. The reply is
// carved down to its JSON object, validated against the invoice schema, and
// decoded into the lenient section types. Any failure returns an ExtractError
// with the raw bytes attached for debugging display only.
func (c *Client) Extract(ctx context.Context, asciiText string) (*schema.ExtractionResult, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(asciiText),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(asciiText)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		reason := common.ExtractServiceError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			reason = common.ExtractTimeout
		}
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, nil, common.NewExtractError(reason, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, raw, common.NewExtractError(common.ExtractServiceError,
			fmt.Errorf("decode completion response: %w", err))
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, raw, common.NewExtractError(common.ExtractServiceError,
			fmt.Errorf("no choices in completion response"))
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	carved, ok := llm.CarveJSONObject(content)
	if !ok {
		c.logger.Error("llm.extract.no_json",
			"req_id", rid, "content_len", len(content),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, []byte(content), common.NewExtractError(common.ExtractNoJSON,
			fmt.Errorf("reply contains no JSON object"))
	}
	payload := []byte(carved)
	if !json.Valid(payload) {
		c.logger.Error("llm.extract.invalid_json",
			"req_id", rid, "payload_len", len(payload),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, payload, common.NewExtractError(common.ExtractBadJSON,
			fmt.Errorf("carved reply is not valid JSON"))
	}

	if err := schema.ValidateJSONAgainstSchema(schema.BuildInvoiceJSONSchema(), payload); err != nil {
		c.logger.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, payload, common.NewExtractError(common.ExtractSchemaMismatch, err)
	}

	doc, err := schema.Decode(payload)
	if err != nil {
		c.logger.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, payload, common.NewExtractError(common.ExtractBadJSON, err)
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"nis", doc.Summary.NIS.Or(doc.ClientInfo.NIS).String(),
		"invoice", doc.Summary.InvoiceNumber.Or(doc.InvoiceData.InvoiceNumber).String(),
		"line_items", len(doc.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, payload, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.logger.Warn("llm.extract.body_close_error", "error", cerr)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}
