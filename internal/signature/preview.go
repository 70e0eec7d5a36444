package signature

import (
	"bytes"
	"fmt"
	"image"

	"github.com/fogleman/gg"
)

// RenderPreview draws the detected region onto a copy of the image and
// returns it as PNG, labeled with the strategy that found it.
func RenderPreview(img image.Image, rect Rect, label string) ([]byte, error) {
	dc := gg.NewContextForImage(img)
	dc.SetRGB(0, 0.8, 0)
	dc.SetLineWidth(3)
	dc.DrawRectangle(float64(rect.Left), float64(rect.Top),
		float64(rect.Width()), float64(rect.Height()))
	dc.Stroke()

	labelY := float64(rect.Top) - 8
	if labelY < 12 {
		labelY = float64(rect.Top) + 16
	}
	dc.DrawString(fmt.Sprintf("signature [%s]", label), float64(rect.Left), labelY)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
