package signature

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// DefaultMatchThreshold is the minimum cosine similarity for a stored
// signer to count as a match.
const DefaultMatchThreshold = 0.7

// Gallery is the persistence surface the matcher needs. Enroll must
// attach the sample to an existing signer when either the user id or
// the printed name is already known, and report the canonical signer.
type Gallery interface {
	Signers(ctx context.Context) ([]entity.Signer, error)
	Samples(ctx context.Context) ([]entity.SignatureSample, error)
	Enroll(ctx context.Context, userID, printedName string, features []float32, autoAdded bool) (entity.Signer, error)
}

// Candidate is one gallery signer that cleared the match threshold.
type Candidate struct {
	UserID      string  `json:"user_id"`
	PrintedName string  `json:"printed_name"`
	SampleCount int     `json:"sample_count"`
	Similarity  float64 `json:"similarity"`
}

// MatchResult reports the outcome of MatchOrEnroll.
type MatchResult struct {
	UserID      string  `json:"user_id"`
	PrintedName string  `json:"matched_name"`
	Confidence  float64 `json:"confidence"`
	AutoAdded   bool    `json:"auto_added"`
}

// Matcher compares signature crops against the gallery.
type Matcher struct {
	gallery   Gallery
	extractor FeatureExtractor
	threshold float64
	logger    *slog.Logger
	enrolled  atomic.Int64
}

// NewMatcher wires a matcher over the gallery. A non-positive
// threshold falls back to the default.
func NewMatcher(gallery Gallery, extractor FeatureExtractor, threshold float64, logger *slog.Logger) *Matcher {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{gallery: gallery, extractor: extractor, threshold: threshold, logger: logger}
}

// Match ranks gallery signers against the crop. A signer scores the
// maximum similarity over all of its stored samples; signers below the
// threshold are dropped.
func (m *Matcher) Match(ctx context.Context, img image.Image) ([]Candidate, error) {
	probe, err := m.extractor.Extract(ctx, img)
	if err != nil {
		return nil, err
	}
	return m.matchVector(ctx, probe)
}

func (m *Matcher) matchVector(ctx context.Context, probe Vector) ([]Candidate, error) {
	samples, err := m.gallery.Samples(ctx)
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	signers, err := m.gallery.Signers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load signers: %w", err)
	}
	byUser := make(map[string]entity.Signer, len(signers))
	for _, s := range signers {
		byUser[s.UserID] = s
	}

	best := make(map[string]float64)
	for _, sample := range samples {
		sim := float64(probe.CosineSimilarity(Vector(sample.Features)))
		if sim > best[sample.UserID] {
			best[sample.UserID] = sim
		}
	}

	var out []Candidate
	for userID, sim := range best {
		if sim < m.threshold {
			continue
		}
		signer, ok := byUser[userID]
		if !ok {
			continue
		}
		out = append(out, Candidate{
			UserID:      userID,
			PrintedName: signer.PrintedName,
			SampleCount: signer.SampleCount,
			Similarity:  sim,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].UserID < out[j].UserID
	})
	m.logger.Debug("signature.match.done", "candidates", len(out), "gallery_size", len(signers))
	return out, nil
}

// MatchOrEnroll matches the crop and, when no signer clears the
// threshold, enrolls it under a generated user id with the printed
// name recovered from the drawing. The enrolled sample reports full
// confidence.
func (m *Matcher) MatchOrEnroll(ctx context.Context, img image.Image, printedName string) (MatchResult, error) {
	probe, err := m.extractor.Extract(ctx, img)
	if err != nil {
		return MatchResult{}, err
	}
	candidates, err := m.matchVector(ctx, probe)
	if err != nil {
		return MatchResult{}, err
	}
	if len(candidates) > 0 {
		top := candidates[0]
		m.logger.Info("signature.match.existing",
			"user_id", top.UserID, "printed_name", top.PrintedName,
			"similarity", top.Similarity)
		return MatchResult{
			UserID:      top.UserID,
			PrintedName: top.PrintedName,
			Confidence:  top.Similarity,
		}, nil
	}

	userID := fmt.Sprintf("auto_%s_%d", time.Now().Format("20060102_150405"), m.enrolled.Add(1))
	signer, err := m.gallery.Enroll(ctx, userID, printedName, probe, true)
	if err != nil {
		return MatchResult{}, fmt.Errorf("auto enroll: %w", err)
	}
	m.logger.Info("signature.enroll.auto",
		"user_id", signer.UserID, "printed_name", printedName)
	return MatchResult{
		UserID:      signer.UserID,
		PrintedName: printedName,
		Confidence:  1.0,
		AutoAdded:   true,
	}, nil
}

// Enroll stores a labeled sample, creating the signer when needed.
func (m *Matcher) Enroll(ctx context.Context, img image.Image, userID, printedName string) (entity.Signer, error) {
	probe, err := m.extractor.Extract(ctx, img)
	if err != nil {
		return entity.Signer{}, err
	}
	signer, err := m.gallery.Enroll(ctx, userID, printedName, probe, false)
	if err != nil {
		return entity.Signer{}, err
	}
	m.logger.Info("signature.enroll.ok",
		"user_id", signer.UserID, "printed_name", signer.PrintedName,
		"sample_count", signer.SampleCount)
	return signer, nil
}
