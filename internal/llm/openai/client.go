package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// ExtractFields implements extract.PromptExtractor over text-only
// chat/completions. A hard failure (network, auth, empty completion)
// returns (nil, error) so the caller can fall back to pattern extraction;
// a malformed completion is salvaged, never an error.
func (c *Client) ExtractFields(ctx context.Context, text string, fieldNames []string) (*extract.Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	if len(fieldNames) == 0 {
		fieldNames = c.store.Names()
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(text),
		"fields", len(fieldNames),
	)

	prompt := llm.BuildExtractionPrompt(c.store, text, fieldNames)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.PostJSON(ctx, c.http, endpoint, body, headers, rid, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
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
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("no choices in chat response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	fields := llm.ParseReply(content, fieldNames, c.logger)
	for name, value := range fields {
		fields[name] = c.normalizer.Normalize(name, value)
	}
	confidence := c.scorer.Score(fieldNames, fields)

	extracted := 0
	for _, v := range fields {
		if v != nil {
			extracted++
		}
	}
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"extracted", extracted,
		"requested", len(fieldNames),
		"confidence", confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &extract.Result{
		Fields:     fields,
		Confidence: &confidence,
		Method:     constants.MethodPrompt,
		RawReply:   []byte(content),
	}, nil
}
