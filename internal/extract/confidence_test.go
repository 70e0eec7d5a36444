package extract

import (
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

func scorerStore(t *testing.T) *schema.Store {
	t.Helper()
	s := schema.NewStore(testLogger())
	s.Add(schema.FieldDefinition{Name: "A", FieldType: constants.FieldTypeDate, Required: true})
	s.Add(schema.FieldDefinition{Name: "B", FieldType: constants.FieldTypeText})
	return s
}

func TestScoreRequiredAndOptionalMix(t *testing.T) {
	// A required and extracted+valid, B optional and null:
	// er=0.5, vr=1.0, rr=1.0 -> 0.5*0.4 + 1.0*0.4 + 1.0*0.2 = 0.8
	scorer := NewScorer(scorerStore(t))

	values := map[string]*string{
		"A": strPtr("2024-01-15"),
		"B": nil,
	}
	if got := scorer.Score([]string{"A", "B"}, values); got != 0.8 {
		t.Fatalf("Score = %v, want 0.8", got)
	}
}

func TestScoreAllExtractedAndValid(t *testing.T) {
	scorer := NewScorer(scorerStore(t))

	values := map[string]*string{
		"A": strPtr("2024-01-15"),
		"B": strPtr("某某公司"),
	}
	// er=1.0, vr=1.0, rr=1.0 -> 1.0
	if got := scorer.Score([]string{"A", "B"}, values); got != 1.0 {
		t.Fatalf("Score = %v, want 1.0", got)
	}
}

func TestScoreNothingExtracted(t *testing.T) {
	scorer := NewScorer(scorerStore(t))

	values := map[string]*string{"A": nil, "B": nil}
	if got := scorer.Score([]string{"A", "B"}, values); got != 0.0 {
		t.Fatalf("Score = %v, want 0.0", got)
	}
}

func TestScoreZeroRequestedFields(t *testing.T) {
	scorer := NewScorer(scorerStore(t))

	if got := scorer.Score(nil, map[string]*string{}); got != 0.0 {
		t.Fatalf("Score(no fields) = %v, want 0.0", got)
	}
}

func TestScoreNoRequiredFieldsPenalizes(t *testing.T) {
	// required_total == 0 gives required_rate 0, not 1. Kept as the
	// established scoring behavior.
	s := schema.NewStore(testLogger())
	s.Add(schema.FieldDefinition{Name: "X", FieldType: constants.FieldTypeText})
	scorer := NewScorer(s)

	values := map[string]*string{"X": strPtr("hello")}
	// er=1.0, vr=1.0, rr=0.0 -> 0.8
	if got := scorer.Score([]string{"X"}, values); got != 0.8 {
		t.Fatalf("Score = %v, want 0.8", got)
	}
}

func TestScoreInvalidValueLowersValidationRate(t *testing.T) {
	scorer := NewScorer(scorerStore(t))

	values := map[string]*string{
		"A": strPtr("not-a-date"),
		"B": strPtr("某某公司"),
	}
	// er=1.0, vr=0.5, rr=1.0 -> 0.4 + 0.2 + 0.2 = 0.8
	if got := scorer.Score([]string{"A", "B"}, values); got != 0.8 {
		t.Fatalf("Score = %v, want 0.8", got)
	}
}

func TestScoreUnknownFieldsSkipped(t *testing.T) {
	scorer := NewScorer(scorerStore(t))

	// "ghost" counts toward requested but can never extract or validate.
	values := map[string]*string{
		"A":     strPtr("2024-01-15"),
		"ghost": strPtr("anything"),
	}
	// er=1/2, vr=1/1, rr=1/1 -> 0.2 + 0.4 + 0.2 = 0.8
	if got := scorer.Score([]string{"A", "ghost"}, values); got != 0.8 {
		t.Fatalf("Score = %v, want 0.8", got)
	}
}

func TestScoreBounds(t *testing.T) {
	scorer := NewScorer(scorerStore(t))

	inputs := []map[string]*string{
		{},
		{"A": nil},
		{"A": strPtr("x")},
		{"A": strPtr("2024-01-15"), "B": strPtr("ok")},
		{"A": strPtr(""), "B": strPtr("null")},
	}
	for _, values := range inputs {
		got := scorer.Score([]string{"A", "B"}, values)
		if got < 0.0 || got > 1.0 {
			t.Fatalf("Score(%v) = %v, out of [0,1]", values, got)
		}
	}
}
