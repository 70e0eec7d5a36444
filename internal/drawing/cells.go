// Package drawing processes engineering drawing title blocks: it locates
// the signature table, recovers the printed fields, and verifies the
// handwritten signatures next to them against the gallery.
package drawing

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/signature"
)

// Cell is one table cell candidate inside the title block, in original
// image coordinates.
type Cell struct {
	Text       string
	Box        signature.Rect
	CenterX    float64
	CenterY    float64
	Confidence float64
}

// signatoryKeywords mark cells that carry a printed name. The same
// keywords identify the schema fields a verification marker attaches to.
var signatoryKeywords = []string{"姓名", "设计人", "审核人", "审定人", "校核人", "绘图人"}

// Cells builds cell candidates for a recognized title-block crop.
// OCR blocks are used directly when the service reports geometry;
// plain text falls back to uniform row slices across the region.
func Cells(region signature.Rect, rec ocr.RecognizedText) []Cell {
	if len(rec.Blocks) > 0 {
		if cells := cellsFromBlocks(region, rec.Blocks); len(cells) > 0 {
			return cells
		}
	}
	return cellsFromLines(region, rec.Text)
}

func cellsFromBlocks(region signature.Rect, blocks []ocr.Block) []Cell {
	var cells []Cell
	for _, b := range blocks {
		if len(b.Box) == 0 {
			continue
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, pt := range b.Box {
			if len(pt) < 2 {
				continue
			}
			minX = math.Min(minX, pt[0])
			maxX = math.Max(maxX, pt[0])
			minY = math.Min(minY, pt[1])
			maxY = math.Max(maxY, pt[1])
		}
		if math.IsInf(minX, 1) {
			continue
		}
		box := signature.Rect{
			Left:   region.Left + int(minX),
			Top:    region.Top + int(minY),
			Right:  region.Left + int(maxX),
			Bottom: region.Top + int(maxY),
		}
		cells = append(cells, Cell{
			Text:       strings.TrimSpace(b.Text),
			Box:        box,
			CenterX:    float64(box.Left+box.Right) / 2,
			CenterY:    float64(box.Top+box.Bottom) / 2,
			Confidence: b.Score,
		})
	}
	return cells
}

// cellsFromLines slices the region into uniform rows, one per text
// line. Blank lines keep their slot so rows below stay aligned.
func cellsFromLines(region signature.Rect, text string) []Cell {
	lines := strings.Split(text, "\n")
	cellHeight := region.Height() / maxInt(len(lines), 1)
	var cells []Cell
	for idx, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cellY := region.Top + idx*cellHeight
		cells = append(cells, Cell{
			Text: line,
			Box: signature.Rect{
				Left:   region.Left,
				Top:    cellY,
				Right:  region.Right,
				Bottom: cellY + cellHeight,
			},
			CenterX:    float64(region.Left+region.Right) / 2,
			CenterY:    float64(cellY) + float64(cellHeight)/2,
			Confidence: 0.8,
		})
	}
	return cells
}

// Pair links a printed name to the region expected to hold its
// handwritten signature.
type Pair struct {
	Keyword string
	Name    string
	Region  signature.Rect
}

const (
	maxNameRunes      = 10
	maxSignatureRunes = 3
	rowTolerance      = 50.0
)

// PairNames finds printed names and the signature cell belonging to
// each: the nearest cell to the right on roughly the same row whose
// text is short enough to be handwriting rather than a label.
func PairNames(cells []Cell) []Pair {
	var pairs []Pair
	for i := range cells {
		keyword := matchKeyword(cells[i].Text)
		if keyword == "" {
			continue
		}
		name := nameAfterColon(cells[i].Text)
		if name == "" || utf8.RuneCountInString(name) > maxNameRunes {
			continue
		}
		if sig, ok := nearestSignatureCell(cells, i); ok {
			pairs = append(pairs, Pair{Keyword: keyword, Name: name, Region: sig.Box})
		}
	}
	return pairs
}

func matchKeyword(text string) string {
	for _, k := range signatoryKeywords {
		if strings.Contains(text, k) {
			return k
		}
	}
	return ""
}

// nameAfterColon extracts the printed name from a label cell. OCR
// output mixes ASCII and fullwidth colons.
func nameAfterColon(text string) string {
	text = strings.ReplaceAll(text, "：", ":")
	idx := strings.LastIndex(text, ":")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(text[idx+1:])
}

func nearestSignatureCell(cells []Cell, nameIdx int) (Cell, bool) {
	name := cells[nameIdx]
	var best Cell
	bestDist := math.Inf(1)
	found := false
	for j := range cells {
		if j == nameIdx {
			continue
		}
		c := cells[j]
		if c.CenterX <= name.CenterX {
			continue
		}
		if math.Abs(c.CenterY-name.CenterY) >= rowTolerance {
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(c.Text)) > maxSignatureRunes {
			continue
		}
		if dist := c.CenterX - name.CenterX; dist < bestDist {
			best, bestDist, found = c, dist, true
		}
	}
	return best, found
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
