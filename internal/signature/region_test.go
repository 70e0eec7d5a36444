package signature

import (
	"context"
	"image"
	"io"
	"log/slog"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func whiteGray(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

func paint(g *image.Gray, x0, y0, x1, y1 int) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			g.Pix[y*g.Stride+x] = 0
		}
	}
}

// frame draws a rectangle border with the given line thickness.
func frame(g *image.Gray, x0, y0, x1, y1, thickness int) {
	paint(g, x0, y0, x1, y0+thickness-1)
	paint(g, x0, y1-thickness+1, x1, y1)
	paint(g, x0, y0, x0+thickness-1, y1)
	paint(g, x1-thickness+1, y0, x1, y1)
}

type stubRecognizer struct {
	text string
	err  error
}

func (s stubRecognizer) Recognize(_ context.Context, _ []byte) (ocr.RecognizedText, error) {
	if s.err != nil {
		return ocr.RecognizedText{}, s.err
	}
	return ocr.RecognizedText{Text: s.text}, nil
}

func near(got, want, tolerance int) bool {
	d := got - want
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

func TestDetectFindsTableFrame(t *testing.T) {
	img := whiteGray(1000, 800)
	frame(img, 650, 600, 950, 761, 2)

	d := NewDetector(nil, testLogger())
	rect, strategy := d.Detect(context.Background(), img)

	if strategy != "lines" {
		t.Fatalf("strategy = %q, want %q", strategy, "lines")
	}
	if !near(rect.Left, 650, 4) || !near(rect.Top, 600, 4) ||
		!near(rect.Right, 950, 4) || !near(rect.Bottom, 761, 4) {
		t.Fatalf("rect = %+v, want about (650,600)-(950,761)", rect)
	}
}

func TestDetectFindsSolidBlob(t *testing.T) {
	img := whiteGray(1000, 800)
	// filled ellipse: no straight edge long enough for the line
	// strategy, but a well-placed blob for the contour strategy
	cx, cy, a, b := 830.0, 680.0, 150.0, 60.0
	for y := 0; y < 800; y++ {
		for x := 0; x < 1000; x++ {
			dx := (float64(x) - cx) / a
			dy := (float64(y) - cy) / b
			if dx*dx+dy*dy <= 1 {
				img.Pix[y*img.Stride+x] = 0
			}
		}
	}

	d := NewDetector(nil, testLogger())
	rect, strategy := d.Detect(context.Background(), img)

	if strategy != "contours" {
		t.Fatalf("strategy = %q, want %q", strategy, "contours")
	}
	if !near(rect.Left, 680, 4) || !near(rect.Top, 620, 4) ||
		!near(rect.Right, 981, 4) || !near(rect.Bottom, 741, 4) {
		t.Fatalf("rect = %+v, want about (680,620)-(981,741)", rect)
	}
}

func TestDetectUsesTextDensity(t *testing.T) {
	img := whiteGray(1000, 800)
	d := NewDetector(stubRecognizer{text: "设计人张三审核人李四绘图人王五"}, testLogger())

	rect, strategy := d.Detect(context.Background(), img)

	if strategy != "ocr_density" {
		t.Fatalf("strategy = %q, want %q", strategy, "ocr_density")
	}
	want := Rect{Left: 500, Top: 480, Right: 1000, Bottom: 800}
	if rect != want {
		t.Fatalf("rect = %+v, want %+v", rect, want)
	}
}

func TestDetectFallsBackToProportion(t *testing.T) {
	img := whiteGray(1000, 800)

	d := NewDetector(stubRecognizer{text: "短"}, testLogger())
	rect, strategy := d.Detect(context.Background(), img)

	if strategy != "proportion" {
		t.Fatalf("strategy = %q, want %q", strategy, "proportion")
	}
	want := Rect{Left: 750, Top: 640, Right: 1000, Bottom: 800}
	if rect != want {
		t.Fatalf("rect = %+v, want %+v", rect, want)
	}
}

func TestDetectNeverFails(t *testing.T) {
	for _, size := range [][2]int{{10, 10}, {1, 1}, {3000, 40}} {
		img := whiteGray(size[0], size[1])
		d := NewDetector(nil, testLogger())
		rect, _ := d.Detect(context.Background(), img)
		if rect.Width() <= 0 || rect.Height() <= 0 {
			t.Fatalf("size %v: rect = %+v, want positive extent", size, rect)
		}
		if rect.Left < 0 || rect.Top < 0 || rect.Right > size[0] || rect.Bottom > size[1] {
			t.Fatalf("size %v: rect = %+v outside image", size, rect)
		}
	}
}
