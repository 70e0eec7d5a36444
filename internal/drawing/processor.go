package drawing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/signature"
)

// Recognizer is the slice of the OCR client the processor needs.
type Recognizer interface {
	Recognize(ctx context.Context, imageBytes []byte) (ocr.RecognizedText, error)
	DocumentImage(ctx context.Context, path string) ([]byte, error)
}

// FieldExtractor resolves schema fields from recognized text.
type FieldExtractor interface {
	Extract(ctx context.Context, text string, fieldNames []string) *extract.Result
}

// SignatureMatcher verifies a signature crop against the gallery,
// enrolling it when unknown.
type SignatureMatcher interface {
	MatchOrEnroll(ctx context.Context, img image.Image, printedName string) (signature.MatchResult, error)
}

// Match reports one verified signature inside the title block.
type Match struct {
	PrintedName string                `json:"printed_name"`
	Region      signature.Rect        `json:"region"`
	Outcome     signature.MatchResult `json:"outcome"`
}

// Result is the full output of drawing processing.
type Result struct {
	Region     signature.Rect     `json:"region"`
	Strategy   string             `json:"strategy"`
	Fields     map[string]*string `json:"fields"`
	Confidence *float64           `json:"confidence,omitempty"`
	Method     constants.Method   `json:"method"`
	OCRText    string             `json:"ocr_text"`
	CellCount  int                `json:"cell_count"`
	Matches    []Match            `json:"signature_matches,omitempty"`
}

// Processor runs the drawing flow: locate the title block, recognize
// and extract its fields, then verify the handwritten signatures.
type Processor struct {
	detector  *signature.Detector
	ocr       Recognizer
	extractor FieldExtractor
	matcher   SignatureMatcher
	logger    *slog.Logger
}

// NewProcessor wires the drawing flow. The matcher is optional; without
// it signatures are located but not verified.
func NewProcessor(detector *signature.Detector, rec Recognizer, extractor FieldExtractor, matcher SignatureMatcher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		detector:  detector,
		ocr:       rec,
		extractor: extractor,
		matcher:   matcher,
		logger:    logger,
	}
}

// cropMargin widens the detected region before cropping so border
// strokes survive the cut.
const cropMargin = 10

// Process handles one drawing document end to end.
func (p *Processor) Process(ctx context.Context, imagePath string) (*Result, error) {
	start := time.Now()

	imageBytes, err := p.ocr.DocumentImage(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode drawing: %w", err)
	}

	rect, strategyName := p.detector.Detect(ctx, img)
	b := img.Bounds()
	expanded := signature.Rect{
		Left:   maxInt(rect.Left-cropMargin, 0),
		Top:    maxInt(rect.Top-cropMargin, 0),
		Right:  minInt(rect.Right+cropMargin, b.Dx()),
		Bottom: minInt(rect.Bottom+cropMargin, b.Dy()),
	}

	cropPNG, err := signature.EncodePNG(signature.Crop(img, expanded))
	if err != nil {
		return nil, err
	}
	rec, err := p.ocr.Recognize(ctx, cropPNG)
	if err != nil {
		return nil, fmt.Errorf("recognize title block: %w", err)
	}
	text := ocr.Normalize(rec.Text)

	res := p.extractor.Extract(ctx, text, nil)
	if res.Fields == nil {
		res.Fields = make(map[string]*string)
	}

	cells := Cells(expanded, rec)
	pairs := PairNames(cells)

	var matches []Match
	if p.matcher != nil {
		for _, pair := range pairs {
			outcome, err := p.matcher.MatchOrEnroll(ctx, signature.Crop(img, pair.Region), pair.Name)
			if err != nil {
				p.logger.Warn("drawing.signature.match_failed",
					"printed_name", pair.Name, "error", err)
				continue
			}
			matches = append(matches, Match{PrintedName: pair.Name, Region: pair.Region, Outcome: outcome})
			annotate(res.Fields, pair, outcome)
		}
	}

	p.logger.Info("drawing.process.ok",
		"path", imagePath,
		"strategy", strategyName,
		"cells", len(cells),
		"pairs", len(pairs),
		"matches", len(matches),
		"elapsed_ms", time.Since(start).Milliseconds())

	return &Result{
		Region:     rect,
		Strategy:   strategyName,
		Fields:     res.Fields,
		Confidence: res.Confidence,
		Method:     res.Method,
		OCRText:    text,
		CellCount:  len(cells),
		Matches:    matches,
	}, nil
}

// verifiedSuffix marks fields whose signatory has been checked against
// the gallery.
const verifiedSuffix = "_签名验证"

func annotate(fields map[string]*string, pair Pair, outcome signature.MatchResult) {
	field := annotationTarget(fields, pair)
	if field == "" {
		return
	}
	var marker string
	if outcome.AutoAdded {
		marker = "🆕 自动建库"
	} else {
		marker = fmt.Sprintf("✅ 已匹配 (%.2f)", outcome.Confidence)
	}
	fields[field+verifiedSuffix] = &marker
}

// annotationTarget picks the field a verification marker attaches to:
// the role keyword itself when it is a field, then a field containing
// the printed name, then any field naming a signatory role.
func annotationTarget(fields map[string]*string, pair Pair) string {
	if _, ok := fields[pair.Keyword]; ok {
		return pair.Keyword
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.Contains(name, pair.Name) {
			return name
		}
	}
	for _, name := range names {
		for _, k := range signatoryKeywords {
			if strings.Contains(name, k) {
				return name
			}
		}
	}
	return ""
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
