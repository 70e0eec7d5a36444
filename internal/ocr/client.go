package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// Block is one recognized text region with its quadrilateral and score.
type Block struct {
	Text  string      `json:"text"`
	Box   [][]float64 `json:"box"` // 4 corner points, [x,y]
	Score float64     `json:"score"`
}

// RecognizedText is the flattened OCR output: full text plus per-block
// geometry when the service provides it. Downstream code only ever sees
// this shape; the service's polymorphic data field is resolved here at
// the boundary.
type RecognizedText struct {
	Text   string
	Blocks []Block
}

type Config struct {
	BaseURL string        // e.g. http://127.0.0.1:1224
	Timeout time.Duration // per-request; PDFs and large scans are slow

	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI for PDFs, default 300
}

// Client talks to an umi-OCR compatible HTTP service.
type Client struct {
	cfg    Config
	http   *http.Client
	runner Runner
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		runner: execRunner{logger: logger},
		logger: logger,
	}
}

type recognizeRequest struct {
	Base64  string         `json:"base64"`
	Options map[string]any `json:"options"`
}

type recognizeReply struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

// codeOK is the service's success status.
const codeOK = 100

// Recognize sends image bytes to the OCR service and flattens the reply.
func (c *Client) Recognize(ctx context.Context, imageBytes []byte) (RecognizedText, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("ocr.recognize.start",
		"req_id", rid,
		"url", c.cfg.BaseURL,
		"bytes", len(imageBytes),
	)

	body := recognizeRequest{
		Base64: base64.StdEncoding.EncodeToString(imageBytes),
		Options: map[string]any{
			"det_limit_side_len": 1024,
			"cls":                true,
			"rec":                true,
		},
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return RecognizedText{}, fmt.Errorf("encode ocr request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/ocr"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bs))
	if err != nil {
		return RecognizedText{}, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("ocr.recognize.send_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return RecognizedText{}, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Warn("ocr.recognize.body_close_error", "req_id", rid, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ocr.recognize.http_error", "req_id", rid, "status", resp.StatusCode,
			"elapsed_ms", time.Since(start).Milliseconds())
		return RecognizedText{}, fmt.Errorf("ocr status %d", resp.StatusCode)
	}

	var reply recognizeReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return RecognizedText{}, fmt.Errorf("decode ocr reply: %w", err)
	}
	if reply.Code != codeOK {
		c.logger.Error("ocr.recognize.service_error", "req_id", rid, "code", reply.Code,
			"data", string(reply.Data))
		return RecognizedText{}, fmt.Errorf("ocr service code %d: %s", reply.Code, string(reply.Data))
	}

	rec, err := flattenData(reply.Data)
	if err != nil {
		return RecognizedText{}, err
	}

	c.logger.Info("ocr.recognize.ok",
		"req_id", rid,
		"chars", len([]rune(rec.Text)),
		"blocks", len(rec.Blocks),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// RecognizeFile reads a document from disk and recognizes it, rasterizing
// PDFs first. Only extensions in constants.AllowedExtensions are accepted.
func (c *Client) RecognizeFile(ctx context.Context, path string) (RecognizedText, error) {
	imageBytes, err := c.DocumentImage(ctx, path)
	if err != nil {
		return RecognizedText{}, err
	}
	return c.Recognize(ctx, imageBytes)
}

// DocumentImage loads a document as raster image bytes: images are read
// as-is, PDFs are rendered first. Only extensions in
// constants.AllowedExtensions are accepted.
func (c *Client) DocumentImage(ctx context.Context, path string) ([]byte, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		return c.rasterizeFirstPage(ctx, path)
	case constants.IMAGE:
		imageBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		return imageBytes, nil
	default:
		return nil, fmt.Errorf("unsupported extension: %q", ext)
	}
}

// wireBlock tolerates both "text" and "content" key variants.
type wireBlock struct {
	Text    string      `json:"text"`
	Content string      `json:"content"`
	Box     [][]float64 `json:"box"`
	Score   float64     `json:"score"`
}

// flattenData resolves the service's polymorphic data field: a plain
// string, a list of blocks (or strings), or a nested dict carrying "res",
// "text", or "content".
func flattenData(data json.RawMessage) (RecognizedText, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return RecognizedText{Text: s}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		return flattenBlocks(items), nil
	}

	var nested struct {
		Res     []json.RawMessage `json:"res"`
		Text    string            `json:"text"`
		Content string            `json:"content"`
	}
	if err := json.Unmarshal(data, &nested); err == nil {
		if len(nested.Res) > 0 {
			return flattenBlocks(nested.Res), nil
		}
		if nested.Text != "" {
			return RecognizedText{Text: nested.Text}, nil
		}
		if nested.Content != "" {
			return RecognizedText{Text: nested.Content}, nil
		}
	}
	return RecognizedText{}, fmt.Errorf("unrecognized ocr data shape")
}

func flattenBlocks(items []json.RawMessage) RecognizedText {
	var blocks []Block
	var lines []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			lines = append(lines, s)
			continue
		}
		var wb wireBlock
		if err := json.Unmarshal(item, &wb); err != nil {
			continue
		}
		text := wb.Text
		if text == "" {
			text = wb.Content
		}
		if text == "" {
			continue
		}
		lines = append(lines, text)
		blocks = append(blocks, Block{Text: text, Box: wb.Box, Score: wb.Score})
	}
	return RecognizedText{Text: strings.Join(lines, "\n"), Blocks: blocks}
}
