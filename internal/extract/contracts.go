package extract

import (
	"context"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// Result is the outcome of one extraction run over recognized text.
type Result struct {
	// Fields maps field name to its normalized value; nil means "not
	// found", which is distinct from an empty string.
	Fields map[string]*string
	// Confidence is present for the prompt path and absent (nil) for
	// pure pattern extraction.
	Confidence *float64
	Method     constants.Method
	// RawReply keeps the prompt path's raw LLM reply for audit.
	RawReply []byte
}

// PromptExtractor is the LLM-backed path: recognized text -> fields plus a
// blended confidence. A hard failure (network, auth, unsalvageable reply)
// returns a nil result and an error; the orchestrator falls back to
// pattern extraction.
type PromptExtractor interface {
	ExtractFields(ctx context.Context, text string, fieldNames []string) (*Result, error)
}
