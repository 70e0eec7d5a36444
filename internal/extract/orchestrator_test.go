package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

// stubPrompt returns a canned result or error.
type stubPrompt struct {
	result *Result
	err    error
	calls  int
}

func (s *stubPrompt) ExtractFields(_ context.Context, _ string, _ []string) (*Result, error) {
	s.calls++
	return s.result, s.err
}

func orchestratorStore(t *testing.T) *schema.Store {
	t.Helper()
	s := schema.NewStore(testLogger())
	s.Add(schema.FieldDefinition{
		Name:      "发票号码",
		FieldType: constants.FieldTypeText,
		Patterns:  []string{`发票号码[:：]\s*(\w+)`},
		Required:  true,
	})
	s.Add(schema.FieldDefinition{
		Name:      "合计金额",
		FieldType: constants.FieldTypeAmount,
		Patterns:  []string{`合计[:：]\s*￥?(\S+)`},
	})
	return s
}

func newTestOrchestrator(t *testing.T, prompt PromptExtractor) *Orchestrator {
	t.Helper()
	store := orchestratorStore(t)
	pattern := NewPatternExtractor(store, testLogger())
	return NewOrchestrator(prompt, pattern, store, 0.7, testLogger())
}

func TestOrchestratorHighConfidencePromptWins(t *testing.T) {
	conf := 0.9
	prompt := &stubPrompt{result: &Result{
		Fields:     map[string]*string{"发票号码": strPtr("AI123"), "合计金额": strPtr("10.00")},
		Confidence: &conf,
	}}
	o := newTestOrchestrator(t, prompt)

	got := o.Extract(context.Background(), "发票号码：REGEX456", nil)
	if got.Method != constants.MethodPrompt {
		t.Fatalf("Method = %q, want %q", got.Method, constants.MethodPrompt)
	}
	if *got.Fields["发票号码"] != "AI123" {
		t.Fatalf("发票号码 = %q, want AI123", *got.Fields["发票号码"])
	}
	if got.Confidence == nil || *got.Confidence != 0.9 {
		t.Fatalf("Confidence = %v, want 0.9", got.Confidence)
	}
}

func TestOrchestratorLowConfidenceMergesWithPromptPrecedence(t *testing.T) {
	conf := 0.4
	prompt := &stubPrompt{result: &Result{
		Fields:     map[string]*string{"发票号码": strPtr("AI123"), "合计金额": nil},
		Confidence: &conf,
	}}
	o := newTestOrchestrator(t, prompt)

	text := "发票号码：REGEX456 合计：￥99"
	got := o.Extract(context.Background(), text, nil)

	if got.Method != constants.MethodMerged {
		t.Fatalf("Method = %q, want %q", got.Method, constants.MethodMerged)
	}
	// Prompt value survives even though the pattern also matched.
	if *got.Fields["发票号码"] != "AI123" {
		t.Fatalf("发票号码 = %q, want AI123", *got.Fields["发票号码"])
	}
	// Pattern fills the prompt's gap.
	if got.Fields["合计金额"] == nil || *got.Fields["合计金额"] != "99.00" {
		t.Fatalf("合计金额 = %v, want 99.00", got.Fields["合计金额"])
	}
	// Confidence stays the prompt path's score.
	if got.Confidence == nil || *got.Confidence != 0.4 {
		t.Fatalf("Confidence = %v, want 0.4", got.Confidence)
	}
}

func TestOrchestratorPromptFailureFallsBackToPattern(t *testing.T) {
	prompt := &stubPrompt{err: errors.New("connection refused")}
	o := newTestOrchestrator(t, prompt)

	got := o.Extract(context.Background(), "发票号码：REGEX456", nil)
	if got.Method != constants.MethodPattern {
		t.Fatalf("Method = %q, want %q", got.Method, constants.MethodPattern)
	}
	if got.Confidence != nil {
		t.Fatalf("Confidence = %v, want nil", *got.Confidence)
	}
	if got.Fields["发票号码"] == nil || *got.Fields["发票号码"] != "REGEX456" {
		t.Fatalf("发票号码 = %v, want REGEX456", got.Fields["发票号码"])
	}
}

func TestOrchestratorEmptyPromptResultFallsBack(t *testing.T) {
	prompt := &stubPrompt{result: &Result{Fields: map[string]*string{}}}
	o := newTestOrchestrator(t, prompt)

	got := o.Extract(context.Background(), "发票号码：REGEX456", nil)
	if got.Method != constants.MethodPattern {
		t.Fatalf("Method = %q, want %q", got.Method, constants.MethodPattern)
	}
}

func TestOrchestratorNilPromptUsesPatternOnly(t *testing.T) {
	store := orchestratorStore(t)
	pattern := NewPatternExtractor(store, testLogger())
	o := NewOrchestrator(nil, pattern, store, 0, testLogger())

	got := o.Extract(context.Background(), "发票号码：REGEX456", nil)
	if got.Method != constants.MethodPattern {
		t.Fatalf("Method = %q, want %q", got.Method, constants.MethodPattern)
	}
	if got.Fields["发票号码"] == nil || *got.Fields["发票号码"] != "REGEX456" {
		t.Fatalf("发票号码 = %v, want REGEX456", got.Fields["发票号码"])
	}
}

func TestOrchestratorThresholdBoundaryIsInclusive(t *testing.T) {
	conf := 0.7
	prompt := &stubPrompt{result: &Result{
		Fields:     map[string]*string{"发票号码": strPtr("AI123")},
		Confidence: &conf,
	}}
	o := newTestOrchestrator(t, prompt)

	got := o.Extract(context.Background(), "", nil)
	if got.Method != constants.MethodPrompt {
		t.Fatalf("Method at threshold = %q, want %q", got.Method, constants.MethodPrompt)
	}
}
