package drawing

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/signature"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func f64Ptr(f float64) *float64 { return &f }

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type stubRecognizer struct {
	imageBytes   []byte
	rec          ocr.RecognizedText
	recognizeErr error
	cropSize     image.Point
}

func (s *stubRecognizer) Recognize(_ context.Context, imageBytes []byte) (ocr.RecognizedText, error) {
	if s.recognizeErr != nil {
		return ocr.RecognizedText{}, s.recognizeErr
	}
	if img, _, err := image.Decode(bytes.NewReader(imageBytes)); err == nil {
		s.cropSize = img.Bounds().Size()
	}
	return s.rec, nil
}

func (s *stubRecognizer) DocumentImage(_ context.Context, _ string) ([]byte, error) {
	return s.imageBytes, nil
}

type stubExtractor struct {
	res *extract.Result
}

func (s stubExtractor) Extract(_ context.Context, _ string, _ []string) *extract.Result {
	return s.res
}

type matchCall struct {
	name string
	size image.Point
}

type stubMatcher struct {
	calls []matchCall
}

func (s *stubMatcher) MatchOrEnroll(_ context.Context, img image.Image, printedName string) (signature.MatchResult, error) {
	s.calls = append(s.calls, matchCall{name: printedName, size: img.Bounds().Size()})
	return signature.MatchResult{
		UserID:      "auto_20260101_000000_1",
		PrintedName: printedName,
		Confidence:  1.0,
		AutoAdded:   true,
	}, nil
}

func TestProcessVerifiesSignatures(t *testing.T) {
	// blank sheet: the detector falls back to (750,640)-(1000,800),
	// widened by the crop margin to (740,630)-(1000,800)
	rec := &stubRecognizer{
		imageBytes: whitePNG(t, 1000, 800),
		rec: ocr.RecognizedText{
			Text: "设计人:张三",
			Blocks: []ocr.Block{
				{Text: "设计人:张三", Box: [][]float64{{10, 20}, {100, 20}, {100, 50}, {10, 50}}, Score: 0.95},
				{Text: "", Box: [][]float64{{120, 18}, {200, 18}, {200, 52}, {120, 52}}},
			},
		},
	}
	extractor := stubExtractor{res: &extract.Result{
		Fields:     map[string]*string{"设计人": strPtr("张三")},
		Confidence: f64Ptr(0.9),
		Method:     constants.MethodPrompt,
	}}
	matcher := &stubMatcher{}

	p := NewProcessor(signature.NewDetector(nil, testLogger()), rec, extractor, matcher, testLogger())
	res, err := p.Process(context.Background(), "drawing.png")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.Strategy != "proportion" {
		t.Fatalf("Strategy = %q, want %q", res.Strategy, "proportion")
	}
	wantRegion := signature.Rect{Left: 750, Top: 640, Right: 1000, Bottom: 800}
	if res.Region != wantRegion {
		t.Fatalf("Region = %+v, want %+v", res.Region, wantRegion)
	}
	if rec.cropSize != image.Pt(260, 170) {
		t.Fatalf("crop size = %v, want (260,170)", rec.cropSize)
	}
	if res.CellCount != 2 {
		t.Fatalf("CellCount = %d, want 2", res.CellCount)
	}

	if len(res.Matches) != 1 {
		t.Fatalf("len(Matches) = %d, want 1", len(res.Matches))
	}
	m := res.Matches[0]
	if m.PrintedName != "张三" || !m.Outcome.AutoAdded {
		t.Fatalf("match = %+v", m)
	}
	wantSig := signature.Rect{Left: 860, Top: 648, Right: 940, Bottom: 682}
	if m.Region != wantSig {
		t.Fatalf("match region = %+v, want %+v", m.Region, wantSig)
	}
	if len(matcher.calls) != 1 || matcher.calls[0].size != image.Pt(80, 34) {
		t.Fatalf("matcher calls = %+v", matcher.calls)
	}

	marker, ok := res.Fields["设计人_签名验证"]
	if !ok || marker == nil || *marker != "🆕 自动建库" {
		t.Fatalf("verification marker = %v", marker)
	}
	if res.Method != constants.MethodPrompt || res.Confidence == nil || *res.Confidence != 0.9 {
		t.Fatalf("method/confidence = %v/%v", res.Method, res.Confidence)
	}
}

func TestProcessWithoutMatcher(t *testing.T) {
	rec := &stubRecognizer{
		imageBytes: whitePNG(t, 1000, 800),
		rec:        ocr.RecognizedText{Text: "项目名称:测试工程"},
	}
	extractor := stubExtractor{res: &extract.Result{
		Fields: map[string]*string{"项目名称": strPtr("测试工程")},
		Method: constants.MethodPattern,
	}}

	p := NewProcessor(signature.NewDetector(nil, testLogger()), rec, extractor, nil, testLogger())
	res, err := p.Process(context.Background(), "drawing.png")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Matches) != 0 {
		t.Fatalf("len(Matches) = %d, want 0", len(res.Matches))
	}
	for name := range res.Fields {
		if name == "项目名称_签名验证" {
			t.Fatal("unexpected verification marker without a matcher")
		}
	}
}

func TestProcessRecognizeError(t *testing.T) {
	rec := &stubRecognizer{
		imageBytes:   whitePNG(t, 400, 300),
		recognizeErr: errors.New("service down"),
	}
	p := NewProcessor(signature.NewDetector(nil, testLogger()), rec, stubExtractor{res: &extract.Result{}}, nil, testLogger())

	if _, err := p.Process(context.Background(), "drawing.png"); err == nil {
		t.Fatal("Process succeeded, want error")
	}
}
