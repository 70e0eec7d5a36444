package ocr

import (
	"regexp"
)

var (
	reDateish   = regexp.MustCompile(`\d{4}[-/年]\d{1,2}[-/月]\d{1,2}日?`)
	reCurrency  = regexp.MustCompile(`[￥¥]|人民币|元`)
	reAmountish = regexp.MustCompile(`\d{1,3}(,\d{3})*\.\d{2}|\d+\.\d{2}`)
)

// HeuristicConfidence estimates recognition quality from decoded text
// characteristics. Very simple: invoice-looking artifacts (date-ish,
// currency-ish, amount-ish) each add a boost over a 0.2 base.
func HeuristicConfidence(txt string) float32 {
	score := float32(0.2) // base
	if reDateish.MatchString(txt) {
		score += 0.2
	}
	if reCurrency.MatchString(txt) {
		score += 0.15
	}
	if reAmountish.MatchString(txt) {
		score += 0.15
	}
	if len([]rune(txt)) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
