package llm

// BuildFieldsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map constraining a reply to exactly the requested field names,
// each a string or null. We use it locally to validate model output before
// trusting it.
func BuildFieldsJSONSchema(fieldNames []string) map[string]any {
	props := make(map[string]any, len(fieldNames))
	for _, name := range fieldNames {
		props[name] = map[string]any{"type": []any{"string", "null"}}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}
