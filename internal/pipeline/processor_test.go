package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/drawing"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func f64Ptr(f float64) *float64 { return &f }

type stubRecognizer struct {
	text string
	err  error
}

func (r *stubRecognizer) RecognizeFile(ctx context.Context, path string) (ocr.RecognizedText, error) {
	if r.err != nil {
		return ocr.RecognizedText{}, r.err
	}
	return ocr.RecognizedText{Text: r.text}, nil
}

type stubExtractor struct {
	res  *extract.Result
	text string
}

func (e *stubExtractor) Extract(ctx context.Context, text string, fieldNames []string) *extract.Result {
	e.text = text
	return e.res
}

type stubDrawings struct {
	res    *drawing.Result
	err    error
	called bool
}

func (d *stubDrawings) Process(ctx context.Context, imagePath string) (*drawing.Result, error) {
	d.called = true
	return d.res, d.err
}

type memArchive struct {
	recs []*entity.ExtractionRecord
	err  error
}

func (a *memArchive) Insert(ctx context.Context, rec *entity.ExtractionRecord) error {
	if a.err != nil {
		return a.err
	}
	a.recs = append(a.recs, rec)
	return nil
}

func (a *memArchive) List(ctx context.Context, from, to *time.Time) ([]*entity.ExtractionRecord, error) {
	return a.recs, nil
}

func (a *memArchive) GetByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionRecord, error) {
	return nil, common.NotFoundError("extraction")
}

func (a *memArchive) Ping(ctx context.Context) error { return nil }
func (a *memArchive) Close() error                   { return nil }

func TestProcessFileInvoice(t *testing.T) {
	rec := &stubRecognizer{text: "发票号码: NO-100\n合计金额: 520.00"}
	ext := &stubExtractor{res: &extract.Result{
		Fields:     map[string]*string{"发票号码": strPtr("NO-100"), "合计金额": strPtr("520.00")},
		Confidence: f64Ptr(0.92),
		Method:     constants.MethodPrompt,
	}}
	arch := &memArchive{}
	p := NewProcessor(rec, ext, nil, arch, testLogger())

	got, err := p.ProcessFile(context.Background(), "/in/inv.pdf", entity.KindInvoice)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if got.Status != string(constants.JobStatusExtractOK) {
		t.Errorf("Status = %q, want %q", got.Status, constants.JobStatusExtractOK)
	}
	if got.Method != string(constants.MethodPrompt) {
		t.Errorf("Method = %q, want prompt", got.Method)
	}
	if got.Confidence == nil || *got.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", got.Confidence)
	}
	if got.OCRChars == 0 {
		t.Error("OCRChars = 0, want recognized text length")
	}
	if ext.text == "" {
		t.Error("extractor never received text")
	}
	if len(arch.recs) != 1 {
		t.Fatalf("archived %d records, want 1", len(arch.recs))
	}
	fields, err := arch.recs[0].Fields()
	if err != nil {
		t.Fatalf("Fields() error = %v", err)
	}
	if v := fields["发票号码"]; v == nil || *v != "NO-100" {
		t.Errorf("archived fields[发票号码] = %v, want NO-100", v)
	}
}

func TestProcessFileDefaultsToInvoice(t *testing.T) {
	rec := &stubRecognizer{text: "some text"}
	ext := &stubExtractor{res: &extract.Result{
		Fields: map[string]*string{},
		Method: constants.MethodPattern,
	}}
	p := NewProcessor(rec, ext, nil, nil, testLogger())

	got, err := p.ProcessFile(context.Background(), "/in/doc.png", "")
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if got.Kind != entity.KindInvoice {
		t.Errorf("Kind = %q, want invoice", got.Kind)
	}
}

func TestProcessFileRejectsUnknownKind(t *testing.T) {
	p := NewProcessor(&stubRecognizer{}, &stubExtractor{}, nil, nil, testLogger())

	_, err := p.ProcessFile(context.Background(), "/in/doc.png", "receipt")
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("ProcessFile(receipt) error = %v, want ErrInvalidInput", err)
	}
}

func TestProcessFileArchivesFailure(t *testing.T) {
	rec := &stubRecognizer{err: errors.New("service down")}
	arch := &memArchive{}
	p := NewProcessor(rec, &stubExtractor{}, nil, arch, testLogger())

	got, err := p.ProcessFile(context.Background(), "/in/bad.pdf", entity.KindInvoice)
	if err == nil {
		t.Fatal("ProcessFile() returned nil error for failed OCR")
	}
	if got.Status != string(constants.JobStatusFailed) {
		t.Errorf("Status = %q, want %q", got.Status, constants.JobStatusFailed)
	}
	if got.ErrorMessage == nil {
		t.Error("ErrorMessage = nil, want the OCR failure")
	}
	if len(arch.recs) != 1 {
		t.Errorf("archived %d records, want the failed run archived", len(arch.recs))
	}
}

func TestProcessFileEmptyDocumentFails(t *testing.T) {
	rec := &stubRecognizer{text: "   \n  "}
	arch := &memArchive{}
	p := NewProcessor(rec, &stubExtractor{}, nil, arch, testLogger())

	_, err := p.ProcessFile(context.Background(), "/in/blank.png", entity.KindInvoice)
	if err == nil {
		t.Fatal("ProcessFile() accepted a document with no text")
	}
	if len(arch.recs) != 1 || arch.recs[0].Status != string(constants.JobStatusFailed) {
		t.Errorf("failed run not archived: %+v", arch.recs)
	}
}

func TestProcessFileDrawing(t *testing.T) {
	drawings := &stubDrawings{res: &drawing.Result{
		Fields:     map[string]*string{"设计人": strPtr("张三"), "设计人_签名验证": strPtr("🆕 自动建库")},
		Confidence: f64Ptr(0.8),
		Method:     constants.MethodMerged,
		OCRText:    "设计 张三",
	}}
	arch := &memArchive{}
	p := NewProcessor(&stubRecognizer{}, &stubExtractor{}, drawings, arch, testLogger())

	got, err := p.ProcessFile(context.Background(), "/in/plan.png", entity.KindDrawing)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if !drawings.called {
		t.Fatal("drawing processor was not invoked")
	}
	if got.Kind != entity.KindDrawing {
		t.Errorf("Kind = %q, want drawing", got.Kind)
	}
	if got.Method != string(constants.MethodMerged) {
		t.Errorf("Method = %q, want merged", got.Method)
	}
	if got.OCRChars != 5 {
		t.Errorf("OCRChars = %d, want 5", got.OCRChars)
	}
}

func TestProcessFileDrawingUnconfigured(t *testing.T) {
	p := NewProcessor(&stubRecognizer{}, &stubExtractor{}, nil, nil, testLogger())

	_, err := p.ProcessFile(context.Background(), "/in/plan.png", entity.KindDrawing)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("ProcessFile(drawing) error = %v, want ErrInvalidInput", err)
	}
}
