package openai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/payment-receipts/internal/llm"
)

// ExtractFields implements llm.FieldExtractor with a single vision chat/completions call.
// Every failure, including a context deadline, is reported as llm.ErrExtractionFailed.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	if strings.TrimSpace(req.ImageURL) == "" {
		return llm.Result{}, llm.Failf("image url is required")
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"inline_image", strings.HasPrefix(req.ImageURL, "data:"),
		"content_hash", req.ContentHash,
	)

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, c.buildBody(req), headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Result{}, llm.Failf("openai request: %w", err)
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Result{}, llm.Failf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Result{}, llm.Failf("no choices in openai response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	data, normalized, err := llm.ParseExtraction(content, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.parse_failed",
			"req_id", rid, "error", err, "content_len", len(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Result{}, err
	}

	model := cc.Model
	if model == "" {
		model = c.cfg.Model
	}
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"has_reference", data.ReferenceNumber != nil,
		"has_amount", data.Amount != nil,
		"has_receiver_number", data.Receiver.Number != nil,
		"has_sender_number", data.Sender.Number != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Result{Data: data, Normalized: normalized, Model: model}, nil
}

func (c *Client) buildBody(req llm.ExtractRequest) map[string]any {
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"messages": []map[string]any{
			{"role": "system", "content": llm.SystemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.BuildExtractionPrompt()},
				{"type": "image_url", "image_url": map[string]any{
					"url":    req.ImageURL,
					"detail": c.cfg.ImageDetail,
				}},
			}},
		},
	}
	if c.cfg.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}
	return body
}
