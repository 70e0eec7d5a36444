package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultCandidates are the endpoints a local umi-OCR install usually
// listens on.
var DefaultCandidates = []string{
	"http://127.0.0.1:1224",
	"http://localhost:1224",
}

// Detector probes candidate OCR endpoints and remembers the last healthy
// one for a short window so repeated lookups stay cheap.
type Detector struct {
	candidates []string
	ttl        time.Duration
	http       *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	lastURL string
	expires time.Time
}

func NewDetector(candidates []string, ttl time.Duration, logger *slog.Logger) *Detector {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		candidates: candidates,
		ttl:        ttl,
		http:       &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// Resolve picks the service URL: an explicit configured URL wins, else the
// detector probes its candidates.
func (d *Detector) Resolve(ctx context.Context, explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	return d.Best(ctx)
}

// Best returns the first healthy endpoint, reusing the cached result
// within the TTL window.
func (d *Detector) Best(ctx context.Context) (string, error) {
	d.mu.Lock()
	if d.lastURL != "" && time.Now().Before(d.expires) {
		url := d.lastURL
		d.mu.Unlock()
		return url, nil
	}
	d.mu.Unlock()

	for _, candidate := range d.candidates {
		if d.Healthy(ctx, candidate) {
			d.mu.Lock()
			d.lastURL = candidate
			d.expires = time.Now().Add(d.ttl)
			d.mu.Unlock()
			d.logger.Info("ocr.probe.ok", "url", candidate)
			return candidate, nil
		}
		d.logger.Debug("ocr.probe.down", "url", candidate)
	}
	return "", fmt.Errorf("no ocr service reachable (tried %d candidates)", len(d.candidates))
}

// Healthy checks one endpoint: a 200 on the root path, or an /api/ocr
// answer of 200/405 (service running but rejecting the empty request).
func (d *Detector) Healthy(ctx context.Context, baseURL string) bool {
	base := strings.TrimRight(baseURL, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return false
	}
	if resp, err := d.http.Do(req); err == nil {
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return true
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/ocr", nil)
	if err != nil {
		return false
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusMethodNotAllowed
}
