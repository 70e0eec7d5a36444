package signature

import (
	"context"
	"image"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// Rect is an axis-aligned region in original image coordinates,
// exclusive on the right and bottom edges.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the horizontal extent of the rect.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the vertical extent of the rect.
func (r Rect) Height() int { return r.Bottom - r.Top }

func (r Rect) clamp(w, h int) Rect {
	return Rect{
		Left:   clampInt(r.Left, 0, w),
		Top:    clampInt(r.Top, 0, h),
		Right:  clampInt(r.Right, 0, w),
		Bottom: clampInt(r.Bottom, 0, h),
	}
}

// TextRecognizer is the slice of the OCR client the density strategy
// needs.
type TextRecognizer interface {
	Recognize(ctx context.Context, imageBytes []byte) (ocr.RecognizedText, error)
}

// Search window for the signature table: engineering drawings place it
// in the bottom-right corner of the sheet.
const (
	roiRightShare  = 0.5
	roiBottomShare = 0.4
)

func roiOrigin(w, h int) (int, int) {
	return int(float64(w) * (1 - roiRightShare)), int(float64(h) * (1 - roiBottomShare))
}

type strategy interface {
	name() string
	attempt(ctx context.Context, img image.Image) (Rect, bool)
}

// Detector locates the signature table by trying strategies in order
// of specificity. The final proportion strategy cannot fail, so Detect
// always returns a usable rect.
type Detector struct {
	strategies []strategy
	logger     *slog.Logger
}

// NewDetector builds the strategy cascade. The recognizer is optional;
// without it the text-density strategy is skipped.
func NewDetector(recognizer TextRecognizer, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	strategies := []strategy{lineStrategy{}, contourStrategy{}}
	if recognizer != nil {
		strategies = append(strategies, densityStrategy{ocr: recognizer})
	}
	strategies = append(strategies, proportionStrategy{})
	return &Detector{strategies: strategies, logger: logger}
}

// Detect returns the signature region and the name of the strategy
// that produced it.
func (d *Detector) Detect(ctx context.Context, img image.Image) (Rect, string) {
	b := img.Bounds()
	for _, s := range d.strategies {
		rect, ok := s.attempt(ctx, img)
		if !ok {
			continue
		}
		rect = rect.clamp(b.Dx(), b.Dy())
		if rect.Width() <= 0 || rect.Height() <= 0 {
			continue
		}
		d.logger.Info("signature.region.detected",
			"strategy", s.name(),
			"left", rect.Left, "top", rect.Top,
			"right", rect.Right, "bottom", rect.Bottom)
		return rect, s.name()
	}
	rect := proportionRect(b.Dx(), b.Dy())
	return rect, "proportion"
}

// lineStrategy finds the table frame: long horizontal and vertical
// edge runs inside the search window, outermost runs forming the rect.
type lineStrategy struct{}

const (
	minRunLength  = 100
	maxRunGap     = 10
	minSegments   = 4
	edgeMagnitude = 255.0
)

func (lineStrategy) name() string { return "lines" }

func (lineStrategy) attempt(_ context.Context, img image.Image) (Rect, bool) {
	g := ToGray(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	roiX, roiY := roiOrigin(w, h)
	roi := cropGray(g, roiX, roiY, w, h)
	edges := sobelEdges(roi)

	horizontal := edgeRuns(edges, true)
	vertical := edgeRuns(edges, false)
	if len(horizontal)+len(vertical) <= minSegments ||
		len(horizontal) < 2 || len(vertical) < 2 {
		return Rect{}, false
	}
	sort.Slice(horizontal, func(i, j int) bool { return horizontal[i].pos < horizontal[j].pos })
	sort.Slice(vertical, func(i, j int) bool { return vertical[i].pos < vertical[j].pos })

	rect := Rect{
		Left:   roiX + vertical[0].pos,
		Top:    roiY + horizontal[0].pos,
		Right:  roiX + vertical[len(vertical)-1].pos,
		Bottom: roiY + horizontal[len(horizontal)-1].pos,
	}
	if rect.Width() <= 0 || rect.Height() <= 0 {
		return Rect{}, false
	}
	return rect, true
}

// sobelEdges marks pixels whose gradient magnitude clears the edge
// threshold.
func sobelEdges(g *image.Gray) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	at := func(x, y int) float64 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return float64(g.Pix[y*g.Stride+x])
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			if math.Hypot(gx, gy) >= edgeMagnitude {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// run is a straight edge segment: pos is the row for horizontal runs
// or the column for vertical ones.
type run struct {
	pos    int
	length int
}

// edgeRuns collects runs of edge pixels at least minRunLength long,
// bridging gaps up to maxRunGap.
func edgeRuns(edges *image.Gray, horizontal bool) []run {
	w, h := edges.Rect.Dx(), edges.Rect.Dy()
	outer, inner := h, w
	if !horizontal {
		outer, inner = w, h
	}
	at := func(o, i int) bool {
		if horizontal {
			return edges.Pix[o*edges.Stride+i] != 0
		}
		return edges.Pix[i*edges.Stride+o] != 0
	}
	var runs []run
	for o := 0; o < outer; o++ {
		start, last := -1, -1
		flush := func() {
			if start >= 0 && last-start+1 >= minRunLength {
				runs = append(runs, run{pos: o, length: last - start + 1})
			}
			start, last = -1, -1
		}
		for i := 0; i < inner; i++ {
			if !at(o, i) {
				continue
			}
			if start < 0 {
				start, last = i, i
				continue
			}
			if i-last-1 <= maxRunGap {
				last = i
				continue
			}
			flush()
			start, last = i, i
		}
		flush()
	}
	return runs
}

// contourStrategy looks for a connected blob shaped and placed like a
// signature table in the bottom-right of the sheet.
type contourStrategy struct{}

const (
	contourBinLevel  = 127
	contourCloseSize = 5
	contourMinWidth  = 200
	contourMinHeight = 100
	contourMinAspect = 1.5
	contourMaxAspect = 5.0
)

func (contourStrategy) name() string { return "contours" }

func (contourStrategy) attempt(_ context.Context, img image.Image) (Rect, bool) {
	g := ToGray(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	roiX, roiY := roiOrigin(w, h)
	roi := cropGray(g, roiX, roiY, w, h)
	mask := morphClose(binarize(roi, contourBinLevel, true), contourCloseSize)

	best := Rect{}
	bestScore := -1.0
	for _, box := range componentBounds(mask) {
		rect := Rect{
			Left:   roiX + box.Left,
			Top:    roiY + box.Top,
			Right:  roiX + box.Right,
			Bottom: roiY + box.Bottom,
		}
		bw, bh := rect.Width(), rect.Height()
		aspect := float64(bw) / float64(maxInt(bh, 1))
		if float64(rect.Top) <= float64(h)*0.7 || float64(rect.Left) <= float64(w)*0.6 ||
			bw < contourMinWidth || bh < contourMinHeight ||
			aspect < contourMinAspect || aspect > contourMaxAspect {
			continue
		}
		score := placementScore(rect, w, h)
		if score > bestScore {
			best, bestScore = rect, score
		}
	}
	if bestScore < 0 {
		return Rect{}, false
	}
	return best, true
}

// placementScore rates a candidate by corner proximity and by how
// close it is to the typical table size, capped at 1.0.
func placementScore(r Rect, imgW, imgH int) float64 {
	score := 0.0
	x, y := float64(r.Left), float64(r.Top)
	w, h := float64(r.Width()), float64(r.Height())
	fw, fh := float64(imgW), float64(imgH)

	switch {
	case x > fw*0.8:
		score += 0.3
	case x > fw*0.7:
		score += 0.2
	}
	switch {
	case y > fh*0.9:
		score += 0.3
	case y > fh*0.8:
		score += 0.2
	}

	idealW, idealH := fw*0.3, fh*0.2
	score += (math.Min(w/idealW, idealW/w) + math.Min(h/idealH, idealH/h)) * 0.1
	return math.Min(score, 1.0)
}

// componentBounds returns bounding boxes of 8-connected white blobs.
func componentBounds(mask *image.Gray) []Rect {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	visited := make([]bool, w*h)
	var boxes []Rect
	var queue []int
	for start := 0; start < w*h; start++ {
		if visited[start] || mask.Pix[(start/w)*mask.Stride+start%w] == 0 {
			continue
		}
		minX, minY, maxX, maxY := start%w, start/w, start%w, start/w
		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			cur := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			cx, cy := cur%w, cur/w
			if cx < minX {
				minX = cx
			}
			if cx > maxX {
				maxX = cx
			}
			if cy < minY {
				minY = cy
			}
			if cy > maxY {
				maxY = cy
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := cx+dx, cy+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					idx := ny*w + nx
					if visited[idx] || mask.Pix[ny*mask.Stride+nx] == 0 {
						continue
					}
					visited[idx] = true
					queue = append(queue, idx)
				}
			}
		}
		boxes = append(boxes, Rect{Left: minX, Top: minY, Right: maxX + 1, Bottom: maxY + 1})
	}
	return boxes
}

// densityStrategy accepts the whole search window when OCR recovers a
// meaningful amount of text from it.
type densityStrategy struct {
	ocr TextRecognizer
}

const densityMinChars = 10

func (densityStrategy) name() string { return "ocr_density" }

func (s densityStrategy) attempt(ctx context.Context, img image.Image) (Rect, bool) {
	b := img.Bounds()
	roiX, roiY := roiOrigin(b.Dx(), b.Dy())
	window := Rect{Left: roiX, Top: roiY, Right: b.Dx(), Bottom: b.Dy()}
	pngBytes, err := EncodePNG(Crop(img, window))
	if err != nil {
		return Rect{}, false
	}
	rec, err := s.ocr.Recognize(ctx, pngBytes)
	if err != nil {
		return Rect{}, false
	}
	if utf8.RuneCountInString(strings.TrimSpace(rec.Text)) <= densityMinChars {
		return Rect{}, false
	}
	return window, true
}

// proportionStrategy is the unconditional fallback: the bottom-right
// corner by sheet convention.
type proportionStrategy struct{}

func (proportionStrategy) name() string { return "proportion" }

func (proportionStrategy) attempt(_ context.Context, img image.Image) (Rect, bool) {
	b := img.Bounds()
	return proportionRect(b.Dx(), b.Dy()), true
}

func proportionRect(w, h int) Rect {
	return Rect{
		Left:   int(float64(w) * 0.75),
		Top:    int(float64(h) * 0.8),
		Right:  w,
		Bottom: h,
	}
}
