// Package pipeline chains recognition, field extraction and archiving
// for one document.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/drawing"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// Recognizer is the slice of the OCR client the pipeline needs.
type Recognizer interface {
	RecognizeFile(ctx context.Context, path string) (ocr.RecognizedText, error)
}

// FieldExtractor resolves schema fields from normalized text.
type FieldExtractor interface {
	Extract(ctx context.Context, text string, fieldNames []string) *extract.Result
}

// DrawingProcessor runs the drawing flow end to end.
type DrawingProcessor interface {
	Process(ctx context.Context, imagePath string) (*drawing.Result, error)
}

// Processor coordinates recognize -> extract, then archives the outcome.
// Failed runs are archived too, with the error message on the row.
type Processor struct {
	recognizer Recognizer
	extractor  FieldExtractor
	drawings   DrawingProcessor
	archive    repository.Archive
	logger     *slog.Logger
}

// NewProcessor wires the pipeline. drawings and archive may be nil:
// without drawings only invoice documents are accepted, without archive
// outcomes are returned but not persisted.
func NewProcessor(recognizer Recognizer, extractor FieldExtractor, drawings DrawingProcessor, archive repository.Archive, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		recognizer: recognizer,
		extractor:  extractor,
		drawings:   drawings,
		archive:    archive,
		logger:     logger,
	}
}

// ProcessFile runs one document through the pipeline and returns the
// archived record. kind selects the flow: invoices go through plain
// recognize+extract, drawings through title-block processing.
func (p *Processor) ProcessFile(ctx context.Context, path, kind string) (*entity.ExtractionRecord, error) {
	start := time.Now()
	switch kind {
	case "":
		kind = entity.KindInvoice
	case entity.KindInvoice, entity.KindDrawing:
	default:
		return nil, common.InvalidInputErrorf("unsupported document kind %q", kind)
	}

	rec := &entity.ExtractionRecord{
		SourcePath: path,
		Kind:       kind,
		Method:     string(constants.MethodPattern),
		Status:     string(constants.JobStatusRunning),
	}

	var err error
	if kind == entity.KindDrawing {
		err = p.runDrawing(ctx, path, rec)
	} else {
		err = p.runInvoice(ctx, path, rec)
	}
	if err != nil {
		return p.fail(ctx, rec, err)
	}

	rec.Status = string(constants.JobStatusExtractOK)
	if p.archive != nil {
		if err := p.archive.Insert(ctx, rec); err != nil {
			return rec, fmt.Errorf("archive: %w", err)
		}
	}
	p.logger.Info("pipeline.process.ok",
		"path", path, "kind", kind, "method", rec.Method,
		"ocr_chars", rec.OCRChars,
		"elapsed_ms", time.Since(start).Milliseconds())
	return rec, nil
}

func (p *Processor) runInvoice(ctx context.Context, path string, rec *entity.ExtractionRecord) error {
	recognized, err := p.recognizer.RecognizeFile(ctx, path)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	text := ocr.Normalize(recognized.Text)
	rec.OCRChars = utf8.RuneCountInString(text)
	if text == "" {
		return fmt.Errorf("ocr: document produced no text")
	}
	p.logger.Debug("pipeline.ocr.ok",
		"path", path, "chars", rec.OCRChars,
		"heuristic_confidence", ocr.HeuristicConfidence(text))

	res := p.extractor.Extract(ctx, text, nil)
	return p.applyResult(rec, res.Fields, res.Confidence, res.Method)
}

func (p *Processor) runDrawing(ctx context.Context, path string, rec *entity.ExtractionRecord) error {
	if p.drawings == nil {
		return common.InvalidInputError("drawing pipeline is not configured")
	}
	res, err := p.drawings.Process(ctx, path)
	if err != nil {
		return fmt.Errorf("drawing: %w", err)
	}
	rec.OCRChars = utf8.RuneCountInString(res.OCRText)
	return p.applyResult(rec, res.Fields, res.Confidence, res.Method)
}

func (p *Processor) applyResult(rec *entity.ExtractionRecord, fields map[string]*string, confidence *float64, method constants.Method) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	rec.FieldsJSON = raw
	rec.Confidence = confidence
	rec.Method = string(method)
	return nil
}

// fail archives the failed run best-effort and reports the cause.
func (p *Processor) fail(ctx context.Context, rec *entity.ExtractionRecord, cause error) (*entity.ExtractionRecord, error) {
	rec.Status = string(constants.JobStatusFailed)
	msg := cause.Error()
	rec.ErrorMessage = &msg
	if p.archive != nil {
		if err := p.archive.Insert(ctx, rec); err != nil {
			p.logger.Error("pipeline.archive.failed", "path", rec.SourcePath, "error", err)
		}
	}
	p.logger.Error("pipeline.process.failed", "path", rec.SourcePath, "kind", rec.Kind, "error", cause)
	return rec, cause
}
