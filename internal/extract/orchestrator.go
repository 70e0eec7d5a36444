package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

// DefaultConfidenceThreshold is the cutoff below which the prompt path is
// supplemented with pattern extraction.
const DefaultConfidenceThreshold = 0.7

// Orchestrator runs the prompt path first and decides, from its
// confidence, whether pattern extraction must supplement or replace it.
// It never returns an error: pattern extraction is the terminal fallback
// and always yields a field map.
type Orchestrator struct {
	prompt    PromptExtractor
	pattern   *PatternExtractor
	store     *schema.Store
	threshold float64
	logger    *slog.Logger
}

// NewOrchestrator wires the two extraction paths together. A nil prompt
// extractor disables the LLM path entirely; threshold <= 0 selects the
// default.
func NewOrchestrator(prompt PromptExtractor, pattern *PatternExtractor, store *schema.Store, threshold float64, logger *slog.Logger) *Orchestrator {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		prompt:    prompt,
		pattern:   pattern,
		store:     store,
		threshold: threshold,
		logger:    logger,
	}
}

// Extract resolves the requested fields from recognized text. With no
// explicit field names the store's full field list is used.
func (o *Orchestrator) Extract(ctx context.Context, text string, fieldNames []string) *Result {
	if len(fieldNames) == 0 && o.store != nil {
		fieldNames = o.store.Names()
	}

	if o.prompt == nil {
		return o.extractPatternOnly(text, fieldNames)
	}

	promptResult, err := o.prompt.ExtractFields(ctx, text, fieldNames)
	if err != nil || promptResult == nil || len(promptResult.Fields) == 0 {
		o.logger.Warn("extract.prompt.failed", "error", err)
		return o.extractPatternOnly(text, fieldNames)
	}

	confidence := 0.0
	if promptResult.Confidence != nil {
		confidence = *promptResult.Confidence
	}
	if confidence >= o.threshold {
		promptResult.Method = constants.MethodPrompt
		return promptResult
	}

	// Low confidence: patterns fill the gaps, prompt values win.
	o.logger.Warn("extract.prompt.low_confidence",
		"confidence", confidence,
		"threshold", o.threshold)
	patternFields := o.pattern.Extract(text, fieldNames)
	for name, value := range patternFields {
		if isNullValue(value) {
			continue
		}
		if existing, ok := promptResult.Fields[name]; !ok || isNullValue(existing) {
			promptResult.Fields[name] = value
			o.logger.Info("extract.merge.filled", "field", name)
		}
	}
	promptResult.Method = constants.MethodMerged
	return promptResult
}

func (o *Orchestrator) extractPatternOnly(text string, fieldNames []string) *Result {
	return &Result{
		Fields: o.pattern.Extract(text, fieldNames),
		Method: constants.MethodPattern,
	}
}
