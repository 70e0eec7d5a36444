package signature

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// canvasSize is the side of the square canvas every signature crop is
// normalized onto before feature extraction.
const canvasSize = 128

// Preprocess normalizes a signature crop for feature extraction:
// grayscale, Otsu binarization, a small closing pass to drop speckle,
// then the ink bounding box centered on a white square canvas. Crops
// larger than the canvas are scaled down preserving aspect ratio.
// A crop with no ink yields a blank canvas.
func Preprocess(img image.Image) *image.Gray {
	g := ToGray(img)
	bin := binarize(g, otsuLevel(g), false)
	bin = morphClose(bin, 2)

	canvas := image.NewGray(image.Rect(0, 0, canvasSize, canvasSize))
	for i := range canvas.Pix {
		canvas.Pix[i] = 255
	}

	x0, y0, x1, y1, ok := inkBounds(bin)
	if !ok {
		return canvas
	}
	ink := cropGray(bin, x0, y0, x1, y1)

	w, h := ink.Rect.Dx(), ink.Rect.Dy()
	if w > canvasSize || h > canvasSize {
		scale := float64(canvasSize) / float64(w)
		if s := float64(canvasSize) / float64(h); s < scale {
			scale = s
		}
		sw := maxInt(1, int(float64(w)*scale))
		sh := maxInt(1, int(float64(h)*scale))
		scaled := image.NewGray(image.Rect(0, 0, sw, sh))
		xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), ink, ink.Bounds(), xdraw.Src, nil)
		ink, w, h = scaled, sw, sh
	}

	offX := (canvasSize - w) / 2
	offY := (canvasSize - h) / 2
	for y := 0; y < h; y++ {
		copy(canvas.Pix[(offY+y)*canvas.Stride+offX:(offY+y)*canvas.Stride+offX+w],
			ink.Pix[y*ink.Stride:y*ink.Stride+w])
	}
	return canvas
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
