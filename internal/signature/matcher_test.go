package signature

import (
	"context"
	"strings"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// memGallery mirrors the gallery contract in memory: enroll attaches
// to an existing signer matched by user id or printed name.
type memGallery struct {
	signers []entity.Signer
	samples []entity.SignatureSample
}

func (g *memGallery) Signers(_ context.Context) ([]entity.Signer, error) {
	return g.signers, nil
}

func (g *memGallery) Samples(_ context.Context) ([]entity.SignatureSample, error) {
	return g.samples, nil
}

func (g *memGallery) Enroll(_ context.Context, userID, printedName string, features []float32, autoAdded bool) (entity.Signer, error) {
	for i := range g.signers {
		if g.signers[i].UserID == userID || g.signers[i].PrintedName == printedName {
			g.signers[i].SampleCount++
			g.samples = append(g.samples, entity.SignatureSample{
				UserID:      g.signers[i].UserID,
				SampleIndex: g.signers[i].SampleCount,
				Features:    features,
			})
			return g.signers[i], nil
		}
	}
	signer := entity.Signer{UserID: userID, PrintedName: printedName, SampleCount: 1, AutoAdded: autoAdded}
	g.signers = append(g.signers, signer)
	g.samples = append(g.samples, entity.SignatureSample{UserID: userID, SampleIndex: 1, Features: features})
	return signer, nil
}

func TestMatcherFindsEnrolledSignature(t *testing.T) {
	img := scribble(300, 160,
		Rect{Left: 30, Top: 70, Right: 270, Bottom: 82},
		Rect{Left: 140, Top: 30, Right: 152, Bottom: 130})

	gallery := &memGallery{}
	m := NewMatcher(gallery, NewDescriptorExtractor(), 0, testLogger())
	if _, err := m.Enroll(context.Background(), img, "u-1", "张三"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	candidates, err := m.Match(context.Background(), img)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(candidates))
	}
	if candidates[0].UserID != "u-1" || candidates[0].PrintedName != "张三" {
		t.Fatalf("candidate = %+v", candidates[0])
	}
	if candidates[0].Similarity < 0.99 {
		t.Fatalf("similarity = %v, want >= 0.99", candidates[0].Similarity)
	}
}

func TestMatcherFiltersBelowThreshold(t *testing.T) {
	horizontal := scribble(300, 300, Rect{Left: 60, Top: 145, Right: 240, Bottom: 160})
	vertical := scribble(300, 300, Rect{Left: 145, Top: 60, Right: 160, Bottom: 240})

	gallery := &memGallery{}
	m := NewMatcher(gallery, NewDescriptorExtractor(), 0.7, testLogger())
	if _, err := m.Enroll(context.Background(), vertical, "u-1", "李四"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	candidates, err := m.Match(context.Background(), horizontal)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("len(candidates) = %d, want 0", len(candidates))
	}
}

func TestMatchOrEnrollAutoAdds(t *testing.T) {
	img := scribble(300, 160,
		Rect{Left: 40, Top: 60, Right: 260, Bottom: 74},
		Rect{Left: 90, Top: 100, Right: 210, Bottom: 112})

	gallery := &memGallery{}
	m := NewMatcher(gallery, NewDescriptorExtractor(), 0.7, testLogger())

	first, err := m.MatchOrEnroll(context.Background(), img, "王五")
	if err != nil {
		t.Fatalf("MatchOrEnroll: %v", err)
	}
	if !first.AutoAdded {
		t.Fatal("first pass should auto-enroll")
	}
	if !strings.HasPrefix(first.UserID, "auto_") {
		t.Fatalf("UserID = %q, want auto_ prefix", first.UserID)
	}
	if first.Confidence != 1.0 {
		t.Fatalf("Confidence = %v, want 1.0", first.Confidence)
	}
	if len(gallery.signers) != 1 {
		t.Fatalf("gallery signers = %d, want 1", len(gallery.signers))
	}

	// the same signature must now match instead of enrolling again
	second, err := m.MatchOrEnroll(context.Background(), img, "王五")
	if err != nil {
		t.Fatalf("MatchOrEnroll: %v", err)
	}
	if second.AutoAdded {
		t.Fatal("second pass enrolled a duplicate")
	}
	if second.UserID != first.UserID {
		t.Fatalf("UserID = %q, want %q", second.UserID, first.UserID)
	}
	if second.Confidence < 0.99 {
		t.Fatalf("Confidence = %v, want >= 0.99", second.Confidence)
	}
	if len(gallery.signers) != 1 {
		t.Fatalf("gallery signers = %d, want 1", len(gallery.signers))
	}
}

func TestEnrollAppendsSampleForKnownName(t *testing.T) {
	imgA := scribble(300, 160, Rect{Left: 30, Top: 70, Right: 270, Bottom: 82})
	imgB := scribble(300, 160, Rect{Left: 30, Top: 40, Right: 270, Bottom: 52},
		Rect{Left: 30, Top: 100, Right: 270, Bottom: 112})

	gallery := &memGallery{}
	m := NewMatcher(gallery, NewDescriptorExtractor(), 0.7, testLogger())

	if _, err := m.Enroll(context.Background(), imgA, "u-7", "赵六"); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	signer, err := m.Enroll(context.Background(), imgB, "u-7", "赵六")
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if signer.SampleCount != 2 {
		t.Fatalf("SampleCount = %d, want 2", signer.SampleCount)
	}
	if len(gallery.samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(gallery.samples))
	}
}
