package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

var (
	reDateCJK  = regexp.MustCompile(`(\d{4})[-/年](\d{1,2})[-/月](\d{1,2})日?`)
	reDateUS   = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	reNumeric  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	reDigitRun = regexp.MustCompile(`\d+`)
)

// Normalizer canonicalizes raw extracted values according to their field's
// declared type. It is lenient: when a value does not fit its type it is
// returned trimmed rather than rejected.
type Normalizer struct {
	store  *schema.Store
	logger *slog.Logger
}

// NewNormalizer creates a normalizer over the given schema store. A nil
// store disables type lookup; values then pass through untouched.
func NewNormalizer(store *schema.Store, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{store: store, logger: logger}
}

// Normalize canonicalizes raw for the named field. Nil, empty, and the
// literal strings "null"/"None" all normalize to nil.
func (n *Normalizer) Normalize(fieldName string, raw *string) *string {
	if isNullValue(raw) {
		return nil
	}
	if n.store == nil {
		return raw
	}
	def, ok := n.store.Get(fieldName)
	if !ok {
		return raw
	}

	normalized := NormalizeValue(def.FieldType, *raw)

	// Pattern mismatch after normalization is advisory only.
	if patterns := def.CompiledPatterns(); len(patterns) > 0 {
		matched := false
		for _, re := range patterns {
			if re.MatchString(normalized) {
				matched = true
				break
			}
		}
		if !matched {
			n.logger.Warn("normalize.pattern.mismatch", "field", fieldName, "value", normalized)
		}
	}

	return &normalized
}

// NormalizeValue applies type-specific canonicalization to a single value.
func NormalizeValue(fieldType constants.FieldType, raw string) string {
	trimmed := strings.TrimSpace(raw)

	switch fieldType {
	case constants.FieldTypeDate:
		return normalizeDate(trimmed)
	case constants.FieldTypeAmount:
		return normalizeAmount(trimmed)
	case constants.FieldTypeNumber:
		return normalizeNumber(trimmed)
	default:
		return trimmed
	}
}

// normalizeDate reformats recognized dates to zero-padded YYYY-MM-DD. Input
// without a recognizable date is returned unchanged.
func normalizeDate(value string) string {
	if m := reDateCJK.FindStringSubmatch(value); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	}
	if m := reDateUS.FindStringSubmatch(value); m != nil { // MM/DD/YYYY
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	}
	return value
}

// normalizeAmount strips separators and currency glyphs, then formats the
// first numeric substring with exactly two decimals.
func normalizeAmount(value string) string {
	cleaned := strings.NewReplacer(",", "", "￥", "", "¥", "").Replace(value)
	numStr := reNumeric.FindString(cleaned)
	if numStr == "" {
		return value
	}
	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return value
	}
	return fmt.Sprintf("%.2f", num)
}

// normalizeNumber keeps the first run of digits.
func normalizeNumber(value string) string {
	cleaned := strings.ReplaceAll(value, ",", "")
	if digits := reDigitRun.FindString(cleaned); digits != "" {
		return digits
	}
	return value
}

func isNullValue(raw *string) bool {
	if raw == nil {
		return true
	}
	switch strings.TrimSpace(*raw) {
	case "", "null", "None":
		return true
	}
	return false
}
