package llm

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var reJSONFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ParseReply recovers a field map from a model reply. It tries, in order:
// a fenced ```json block, the whole reply as a JSON object, and finally a
// per-field line-scrape salvage. It never fails; unmatched fields come
// back nil.
func ParseReply(reply string, fieldNames []string, logger *slog.Logger) map[string]*string {
	if logger == nil {
		logger = slog.Default()
	}

	obj, ok := DecodeReplyObject(reply)
	if !ok {
		logger.Warn("llm.reply.decode_failed", "reply_len", len(reply))
		return SalvageFields(reply, fieldNames)
	}

	schemaMap := BuildFieldsJSONSchema(fieldNames)
	if err := validateObject(schemaMap, obj); err != nil {
		// Strict validation failed; sanitize the object and try once more
		// before giving up on the structured reply.
		cleaned, dropped := SanitizeReplyObject(obj, fieldNames)
		if vErr := validateObject(schemaMap, cleaned); vErr != nil {
			logger.Warn("llm.reply.schema_validation_failed",
				"error", err,
				"retry_error", vErr)
			return SalvageFields(reply, fieldNames)
		}
		if len(dropped) > 0 {
			logger.Warn("llm.reply.lenient_sanitize_applied", "dropped", dropped)
		}
		obj = cleaned
	}

	return coerceFields(obj, fieldNames)
}

// DecodeReplyObject extracts the fenced JSON object from a reply, falling
// back to decoding the whole reply as one.
func DecodeReplyObject(reply string) (map[string]any, bool) {
	candidate := strings.TrimSpace(reply)
	if m := reJSONFence.FindStringSubmatch(reply); m != nil {
		candidate = m[1]
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// SanitizeReplyObject coerces scalar values to strings and removes keys
// outside the requested field set, so a sloppy but well-meant reply can
// still pass strict validation. It reports what it dropped.
func SanitizeReplyObject(obj map[string]any, fieldNames []string) (map[string]any, []string) {
	requested := make(map[string]struct{}, len(fieldNames))
	for _, name := range fieldNames {
		requested[name] = struct{}{}
	}

	cleaned := make(map[string]any, len(obj))
	var dropped []string
	for k, v := range obj {
		if _, ok := requested[k]; !ok {
			dropped = append(dropped, k+"(unknown)")
			continue
		}
		switch t := v.(type) {
		case nil:
			cleaned[k] = nil
		case string:
			cleaned[k] = t
		case float64:
			cleaned[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			cleaned[k] = strconv.FormatBool(t)
		default:
			// arrays and nested objects cannot carry a field value
			dropped = append(dropped, k+"(type)")
		}
	}
	return cleaned, dropped
}

// SalvageFields scrapes per-field values line by line from an unparseable
// reply. The pattern tolerates quoting and both colon variants.
func SalvageFields(text string, fieldNames []string) map[string]*string {
	fields := make(map[string]*string, len(fieldNames))
	for _, name := range fieldNames {
		fields[name] = nil
		re, err := regexp.Compile(regexp.QuoteMeta(name) + `["\s:：]+([^",\n]+)`)
		if err != nil {
			continue
		}
		if m := re.FindStringSubmatch(text); m != nil {
			value := strings.TrimSpace(m[1])
			if value != "" && value != "null" && value != "None" {
				fields[name] = &value
			}
		}
	}
	return fields
}

// coerceFields converts a validated reply object into the extraction field
// map. Fields the reply omitted stay nil.
func coerceFields(obj map[string]any, fieldNames []string) map[string]*string {
	fields := make(map[string]*string, len(fieldNames))
	for _, name := range fieldNames {
		fields[name] = nil
		v, ok := obj[name]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = strings.TrimSpace(t)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			continue
		}
		if s == "" || s == "null" || s == "None" {
			continue
		}
		fields[name] = &s
	}
	return fields
}
