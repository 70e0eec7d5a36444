package constants

import (
	"strings"
)

// FieldType drives normalization and per-type validation of extracted values.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeNumber FieldType = "number"
	FieldTypeDate   FieldType = "date"
	FieldTypeAmount FieldType = "amount"
	FieldTypeCustom FieldType = "custom"
)

var allFieldTypes = []FieldType{
	FieldTypeText,
	FieldTypeNumber,
	FieldTypeDate,
	FieldTypeAmount,
	FieldTypeCustom,
}

func FieldTypeStrings() []string {
	result := make([]string, len(allFieldTypes))
	for i, ft := range allFieldTypes {
		result[i] = string(ft)
	}
	return result
}

// ParseFieldType maps free-form input onto a known field type.
// Unknown input degrades to FieldTypeCustom so a stale config never blocks extraction.
func ParseFieldType(input string) (FieldType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, ft := range allFieldTypes {
		if normalized == string(ft) {
			return ft, true
		}
	}
	return FieldTypeCustom, false
}
