package constants

// Method records which extraction path produced a result.
type Method string

// Stable values (persisted on archive rows, exposed by the API).
const (
	MethodPrompt  Method = "prompt"  // LLM path accepted as-is
	MethodMerged  Method = "merged"  // LLM path, gaps filled by patterns
	MethodPattern Method = "pattern" // pattern path only (LLM failed or disabled)
)
