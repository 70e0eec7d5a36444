package extract

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

var (
	reDateSane   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	reNumberSane = regexp.MustCompile(`^\d+(?:\.\d+)?`)
)

// Scorer blends extraction coverage, per-type validation pass rate, and
// required-field satisfaction into a single confidence in [0,1].
type Scorer struct {
	store *schema.Store
}

// NewScorer creates a scorer over the given schema store.
func NewScorer(store *schema.Store) *Scorer {
	return &Scorer{store: store}
}

// Score computes the confidence for one extraction run.
//
//	extraction_rate = non-null / requested
//	validation_rate = validated / max(extracted, 1)
//	required_rate   = required_satisfied / max(required_total, 1)
//	confidence      = round(0.4*er + 0.4*vr + 0.2*rr, 3)
//
// Zero requested fields scores 0.0. Field names absent from the store count
// toward the requested total but are never extracted, validated, or
// required. Zero required fields yields required_rate 0, not 1.
func (s *Scorer) Score(fieldNames []string, values map[string]*string) float64 {
	if len(fieldNames) == 0 {
		return 0.0
	}

	totalFields := len(fieldNames)
	var extracted, validated, requiredSatisfied, requiredTotal int

	for _, name := range fieldNames {
		def, ok := s.store.Get(name)
		if !ok {
			continue
		}
		if def.Required {
			requiredTotal++
		}

		value := values[name]
		if isNullValue(value) {
			continue
		}
		extracted++
		if typeSane(def.FieldType, *value) {
			validated++
		}
		if def.Required {
			requiredSatisfied++
		}
	}

	extractionRate := float64(extracted) / float64(totalFields)
	validationRate := float64(validated) / float64(max(extracted, 1))
	requiredRate := float64(requiredSatisfied) / float64(max(requiredTotal, 1))

	confidence := extractionRate*0.4 + validationRate*0.4 + requiredRate*0.2
	return math.Round(confidence*1000) / 1000
}

// typeSane is the per-type sanity check used for the validation rate.
func typeSane(fieldType constants.FieldType, value string) bool {
	switch fieldType {
	case constants.FieldTypeDate:
		return reDateSane.MatchString(value)
	case constants.FieldTypeAmount, constants.FieldTypeNumber:
		return reNumberSane.MatchString(strings.ReplaceAll(value, ",", ""))
	case constants.FieldTypeText:
		return utf8.RuneCountInString(strings.TrimSpace(value)) >= 2
	default:
		return utf8.RuneCountInString(strings.TrimSpace(value)) >= 1
	}
}
