package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

// PatternExtractor extracts fields by trying each field's regular
// expressions in order against the recognized text. The first capturing
// group of the first matching pattern wins.
type PatternExtractor struct {
	store      *schema.Store
	normalizer *Normalizer
	logger     *slog.Logger
}

// NewPatternExtractor creates a pattern extractor. A nil store switches the
// extractor to the hard-coded fallback set for the six canonical invoice
// fields.
func NewPatternExtractor(store *schema.Store, logger *slog.Logger) *PatternExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PatternExtractor{
		store:      store,
		normalizer: NewNormalizer(store, logger),
		logger:     logger,
	}
}

// Extract returns one entry per requested field; nil marks "not found".
// Missing patterns or failed matches are never an error.
func (p *PatternExtractor) Extract(text string, fieldNames []string) map[string]*string {
	if len(fieldNames) == 0 && p.store != nil {
		fieldNames = p.store.Names()
	}
	if len(fieldNames) == 0 {
		fieldNames = fallbackFieldNames()
	}

	result := make(map[string]*string, len(fieldNames))
	for _, name := range fieldNames {
		result[name] = p.extractOne(text, name)
	}
	return result
}

func (p *PatternExtractor) extractOne(text, name string) *string {
	if p.store == nil {
		return p.extractFallback(text, name)
	}

	def, ok := p.store.Get(name)
	if !ok || len(def.Patterns) == 0 {
		p.logger.Warn("pattern.field.unconfigured", "field", name)
		return nil
	}

	for _, re := range def.CompiledPatterns() {
		m := re.FindStringSubmatch(text)
		if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			value := strings.TrimSpace(m[1])
			p.logger.Debug("pattern.match", "field", name, "value", value)
			return p.normalizer.Normalize(name, &value)
		}
	}
	return nil
}

func (p *PatternExtractor) extractFallback(text, name string) *string {
	fb, ok := fallbackFields[name]
	if !ok {
		return nil
	}
	for _, re := range fb.patterns {
		m := re.FindStringSubmatch(text)
		if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			value := NormalizeValue(fb.fieldType, m[1])
			if isNullValue(&value) {
				return nil
			}
			return &value
		}
	}
	return nil
}

// fallbackField is a minimal pattern set for one canonical invoice field,
// used when no schema store is available. The duplication with the seeded
// defaults is intentional redundancy, not dead code.
type fallbackField struct {
	fieldType constants.FieldType
	patterns  []*regexp.Regexp
}

var fallbackOrder = []string{"发票号码", "开票日期", "销售方名称", "购买方名称", "合计金额", "税额"}

var fallbackFields = map[string]fallbackField{
	"发票号码": {
		fieldType: constants.FieldTypeText,
		patterns: compileAll(
			`发票号码[:：]?\s*(\w+)`,
			`No\.?\s*[:：]?\s*(\w+)`,
			`Invoice\s*No\.?[:：]?\s*(\w+)`,
			`(\d{8,12})`,
		),
	},
	"开票日期": {
		fieldType: constants.FieldTypeDate,
		patterns: compileAll(
			`开票日期[:：]?\s*(\d{4}[-/年]\d{1,2}[-/月]\d{1,2}日?)`,
			`Date[:：]?\s*(\d{4}[-/]\d{1,2}[-/]\d{1,2})`,
			`(\d{4}[-/年]\d{1,2}[-/月]\d{1,2}日?)`,
		),
	},
	"销售方名称": {
		fieldType: constants.FieldTypeText,
		patterns: compileAll(
			`销售方[:：]?\s*([^开票方购买方收款方付款方\s]{2,20})`,
			`收款人[:：]?\s*([^开票方购买方收款方付款方\s]{2,20})`,
			`Seller[:：]?\s*([^\n]{2,30})`,
		),
	},
	"购买方名称": {
		fieldType: constants.FieldTypeText,
		patterns: compileAll(
			`购买方[:：]?\s*([^开票方购买方收款方付款方\s]{2,20})`,
			`付款人[:：]?\s*([^开票方购买方收款方付款方\s]{2,20})`,
			`Buyer[:：]?\s*([^\n]{2,30})`,
		),
	},
	"合计金额": {
		fieldType: constants.FieldTypeAmount,
		patterns: compileAll(
			`价税合计[:：]?\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
			`合计金额[:：]?\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
			`Total[:：]?\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
			`￥(\d+(?:,\d{3})*(?:\.\d{2})?)`,
		),
	},
	"税额": {
		fieldType: constants.FieldTypeAmount,
		patterns: compileAll(
			`税额[:：]?\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
			`增值税[:：]?\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
			`Tax[:：]?\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
		),
	},
}

func fallbackFieldNames() []string {
	names := make([]string, len(fallbackOrder))
	copy(names, fallbackOrder)
	return names
}

func compileAll(patterns ...string) []*regexp.Regexp {
	result := make([]*regexp.Regexp, len(patterns))
	for i, pattern := range patterns {
		result[i] = regexp.MustCompile("(?i)" + pattern)
	}
	return result
}
