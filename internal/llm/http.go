package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostJSON posts a JSON body to a full URL and returns the raw response
// body. It assumes no particular provider; callers pick the URL and any
// auth headers. reqID correlates transport logs with extraction logs; an
// empty id gets a fresh one. Non-2xx responses come back as an error
// carrying the status and an excerpt of the body, which OpenAI-compatible
// gateways use for their error JSON.
func PostJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, reqID string, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	if reqID == "" {
		reqID = uuid.New().String()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("llm.http.request", "req_id", reqID, "url", url, "bytes", len(payload))
	start := time.Now()

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("llm.http.send_failed",
			"req_id", reqID, "url", url,
			"elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("llm.http.body_close", "req_id", reqID, "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	logger.Info("llm.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return raw, fmt.Errorf("http status %d: %s", resp.StatusCode, bodyExcerpt(raw))
	}
	return raw, nil
}

// bodyExcerpt keeps error strings readable when a gateway responds with a
// page of HTML instead of error JSON.
func bodyExcerpt(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
