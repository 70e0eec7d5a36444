package signature

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"

	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
)

// inkLevel is the gray intensity below which a pixel counts as ink.
const inkLevel = 128

// DecodeFile loads an image from disk. PNG, JPEG and BMP are supported.
func DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// EncodePNG renders an image to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ToGray converts any image to 8-bit grayscale.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// Crop copies the intersection of r with the image into a new image.
func Crop(img image.Image, r Rect) image.Image {
	b := img.Bounds()
	x0 := b.Min.X + clampInt(r.Left, 0, b.Dx())
	y0 := b.Min.Y + clampInt(r.Top, 0, b.Dy())
	x1 := b.Min.X + clampInt(r.Right, 0, b.Dx())
	y1 := b.Min.Y + clampInt(r.Bottom, 0, b.Dy())
	if x1 <= x0 || y1 <= y0 {
		return image.NewGray(image.Rect(0, 0, 1, 1))
	}
	dst := image.NewRGBA(image.Rect(0, 0, x1-x0, y1-y0))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(x0, y0), draw.Src)
	return dst
}

func cropGray(g *image.Gray, x0, y0, x1, y1 int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	x0 = clampInt(x0, 0, w)
	y0 = clampInt(y0, 0, h)
	x1 = clampInt(x1, 0, w)
	y1 = clampInt(y1, 0, h)
	if x1 <= x0 || y1 <= y0 {
		return image.NewGray(image.Rect(0, 0, 1, 1))
	}
	dst := image.NewGray(image.Rect(0, 0, x1-x0, y1-y0))
	for y := y0; y < y1; y++ {
		copy(dst.Pix[(y-y0)*dst.Stride:(y-y0)*dst.Stride+(x1-x0)], g.Pix[y*g.Stride+x0:y*g.Stride+x1])
	}
	return dst
}

// otsuLevel picks a global binarization threshold from the gray histogram
// by maximizing between-class variance.
func otsuLevel(g *image.Gray) uint8 {
	var hist [256]int
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, p := range row {
			hist[p]++
		}
	}
	total := w * h
	if total == 0 {
		return inkLevel
	}
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}
	var (
		sumBack float64
		back    int
		bestVar float64
		bestTh  int
	)
	for t := 0; t < 256; t++ {
		back += hist[t]
		if back == 0 {
			continue
		}
		fore := total - back
		if fore == 0 {
			break
		}
		sumBack += float64(t) * float64(hist[t])
		meanBack := sumBack / float64(back)
		meanFore := (sumAll - sumBack) / float64(fore)
		between := float64(back) * float64(fore) * (meanBack - meanFore) * (meanBack - meanFore)
		if between > bestVar {
			bestVar = between
			bestTh = t
		}
	}
	return uint8(bestTh)
}

// binarize maps pixels above the threshold to white and the rest to black.
// When inverted, dark pixels become white foreground instead.
func binarize(g *image.Gray, level uint8, inverted bool) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x, p := range src {
			white := p > level
			if inverted {
				white = !white
			}
			if white {
				out[x] = 255
			}
		}
	}
	return dst
}

// dilate grows white regions with a k x k window anchored top-left.
func dilate(g *image.Gray, k int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var best uint8
			for dy := 0; dy < k && y+dy < h; dy++ {
				row := g.Pix[(y+dy)*g.Stride:]
				for dx := 0; dx < k && x+dx < w; dx++ {
					if row[x+dx] > best {
						best = row[x+dx]
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = best
		}
	}
	return dst
}

// erode shrinks white regions with the reflected window of dilate.
func erode(g *image.Gray, k int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			best := uint8(255)
			for dy := 0; dy < k && y-dy >= 0; dy++ {
				row := g.Pix[(y-dy)*g.Stride:]
				for dx := 0; dx < k && x-dx >= 0; dx++ {
					if row[x-dx] < best {
						best = row[x-dx]
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = best
		}
	}
	return dst
}

// morphClose fills holes in white regions smaller than the window.
func morphClose(g *image.Gray, k int) *image.Gray {
	return erode(dilate(g, k), k)
}

// inkBounds returns the bounding box of ink pixels, exclusive on the
// right and bottom. ok is false when the image has no ink.
func inkBounds(g *image.Gray) (minX, minY, maxX, maxY int, ok bool) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	minX, minY = w, h
	maxX, maxY = -1, -1
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, p := range row {
			if p >= inkLevel {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return 0, 0, 0, 0, false
	}
	return minX, minY, maxX + 1, maxY + 1, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
