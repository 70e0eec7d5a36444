package signature

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// FeatureExtractor turns a signature crop into a comparable vector.
// Implementations must be deterministic for identical input so that a
// signature always matches itself.
type FeatureExtractor interface {
	Extract(ctx context.Context, img image.Image) (Vector, error)
}

const (
	hogCell = 8
	hogBins = 8
	lbpBins = 256
)

// descriptorExtractor computes a handcrafted descriptor on the
// normalized canvas: per-cell gradient orientation histograms, a local
// binary pattern histogram and six layout statistics.
type descriptorExtractor struct{}

// NewDescriptorExtractor returns the in-process descriptor pipeline.
func NewDescriptorExtractor() FeatureExtractor {
	return descriptorExtractor{}
}

func (descriptorExtractor) Extract(_ context.Context, img image.Image) (Vector, error) {
	canvas := Preprocess(img)
	features := make(Vector, 0, hogFeatureLen(canvasSize)+lbpBins+6)
	features = append(features, hogFeatures(canvas)...)
	features = append(features, lbpFeatures(canvas)...)
	features = append(features, statFeatures(canvas)...)
	return features, nil
}

func hogFeatureLen(side int) int {
	cells := (side - hogCell + hogCell - 1) / hogCell
	return cells * cells * hogBins
}

// hogFeatures walks the canvas in 8x8 cells and accumulates an 8-bin
// orientation histogram per cell, weighted by gradient magnitude.
func hogFeatures(g *image.Gray) Vector {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	var out Vector
	for cy := 0; cy < h-hogCell; cy += hogCell {
		for cx := 0; cx < w-hogCell; cx += hogCell {
			var hist [hogBins]float64
			for y := cy; y < cy+hogCell; y++ {
				for x := cx; x < cx+hogCell; x++ {
					gx, gy := sobelAt(g, x, y, cx, cy, cx+hogCell, cy+hogCell)
					mag := math.Hypot(gx, gy)
					if mag == 0 {
						continue
					}
					dir := math.Atan2(gy, gx)
					bin := int((dir + math.Pi) / (2 * math.Pi) * hogBins)
					if bin >= hogBins {
						bin = hogBins - 1
					}
					if bin < 0 {
						bin = 0
					}
					hist[bin] += mag
				}
			}
			for _, v := range hist {
				out = append(out, float32(v))
			}
		}
	}
	return out
}

// sobelAt evaluates the 3x3 Sobel kernels at (x, y) with neighbors
// clamped to the cell window, mirroring per-cell gradient extraction.
func sobelAt(g *image.Gray, x, y, x0, y0, x1, y1 int) (gx, gy float64) {
	at := func(px, py int) float64 {
		px = clampInt(px, x0, x1-1)
		py = clampInt(py, y0, y1-1)
		return float64(g.Pix[py*g.Stride+px])
	}
	gx = at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
		at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
	gy = at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
		at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
	return gx, gy
}

// lbpNeighbors is the clockwise neighbor order used to build the
// 8-bit local binary pattern code.
var lbpNeighbors = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1}, {0, 1},
	{1, 1}, {1, 0}, {1, -1}, {0, -1},
}

// lbpFeatures computes a normalized 256-bin local binary pattern
// histogram over the interior pixels of the canvas.
func lbpFeatures(g *image.Gray) Vector {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	var hist [lbpBins]float64
	total := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := g.Pix[y*g.Stride+x]
			code := 0
			for k, n := range lbpNeighbors {
				if g.Pix[(y+n[0])*g.Stride+(x+n[1])] >= center {
					code |= 1 << k
				}
			}
			hist[code]++
			total++
		}
	}
	out := make(Vector, lbpBins)
	if total == 0 {
		return out
	}
	for i, v := range hist {
		out[i] = float32(v / float64(total))
	}
	return out
}

// statFeatures summarizes the canvas: mean, standard deviation, min,
// max, ink density and the aspect ratio of the ink bounding box.
func statFeatures(g *image.Gray) Vector {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	n := float64(w * h)
	var sum, sumSq float64
	minV, maxV := 255.0, 0.0
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, p := range row {
			v := float64(p)
			sum += v
			sumSq += v * v
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}

	ink := 0
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, p := range row {
			if p < inkLevel {
				ink++
			}
		}
	}

	aspect := 1.0
	if x0, y0, x1, y1, ok := inkBounds(g); ok {
		aspect = float64(x1-1-x0) / (float64(y1-1-y0) + 1e-6)
	}

	return Vector{
		float32(mean),
		float32(math.Sqrt(variance)),
		float32(minV),
		float32(maxV),
		float32(float64(ink) / n),
		float32(aspect),
	}
}

// remoteExtractor delegates feature extraction to an embedding HTTP
// service. The preprocessed canvas is shipped as base64 PNG and the
// service answers with a dense embedding.
type remoteExtractor struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

type embedRequest struct {
	Base64 string `json:"base64"`
}

type embedReply struct {
	Embedding []float32 `json:"embedding"`
}

func (r *remoteExtractor) Extract(ctx context.Context, img image.Image) (Vector, error) {
	pngBytes, err := EncodePNG(Preprocess(img))
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(embedRequest{Base64: base64.StdEncoding.EncodeToString(pngBytes)})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		r.logger.Error("signature.embed.send_error", "error", err)
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Error("signature.embed.http_error", "status", resp.StatusCode)
		return nil, fmt.Errorf("embed service returned status %d", resp.StatusCode)
	}
	var reply embedReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode embed reply: %w", err)
	}
	if len(reply.Embedding) == 0 {
		return nil, fmt.Errorf("embed service returned empty embedding")
	}
	r.logger.Debug("signature.embed.ok",
		"dims", len(reply.Embedding),
		"elapsed_ms", time.Since(start).Milliseconds())
	return Vector(reply.Embedding), nil
}

// NewExtractor selects the feature pipeline. A configured embedding
// service is probed once; when it is absent or unreachable the
// in-process descriptor is used and callers see no difference.
func NewExtractor(ctx context.Context, embedURL string, logger *slog.Logger) FeatureExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if embedURL == "" {
		return NewDescriptorExtractor()
	}
	client := &http.Client{Timeout: 30 * time.Second}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, embedURL+"/", nil)
	if err == nil {
		if resp, perr := client.Do(req); perr == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				logger.Info("signature.embed.enabled", "url", embedURL)
				return &remoteExtractor{url: embedURL, http: client, logger: logger}
			}
		}
	}
	logger.Warn("signature.embed.unavailable", "url", embedURL)
	return NewDescriptorExtractor()
}
