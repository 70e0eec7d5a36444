package llm

import (
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

// BuildExtractionPrompt composes the extraction instruction for one document:
// a role statement, one bullet per requested field with a type-specific
// format hint, a strict fenced-JSON output directive, and the OCR text in a
// delimited block.
func BuildExtractionPrompt(store *schema.Store, ocrText string, fieldNames []string) string {
	if len(fieldNames) == 0 && store != nil {
		fieldNames = store.Names()
	}

	var descriptions []string
	var jsonFields []string
	for _, name := range fieldNames {
		def, ok := store.Get(name)
		if !ok {
			continue
		}
		descriptions = append(descriptions, "- "+name+"："+def.AIPrompt+formatHint(def.FieldType))
		jsonFields = append(jsonFields, `  "`+name+`": "识别到的`+def.Description+`或null"`)
	}

	var b strings.Builder
	b.WriteString("你是一个专业的文档信息识别专家，擅长从OCR识别的文本中准确提取关键字段信息。\n\n")
	b.WriteString("# 任务说明\n")
	b.WriteString("请从以下OCR识别的文本中提取指定的字段信息。文本可能包含识别错误、格式混乱或噪声，请运用你的专业知识进行准确识别和修正。\n\n")
	b.WriteString("# 需要提取的字段\n")
	b.WriteString(strings.Join(descriptions, "\n"))
	b.WriteString("\n\n# 提取要求\n")
	b.WriteString("1. **准确性优先**：如果信息不完整或模糊，请基于上下文进行合理推断\n")
	b.WriteString("2. **格式标准化**：\n")
	b.WriteString("   - 日期格式统一为：YYYY-MM-DD\n")
	b.WriteString("   - 金额和数字格式统一为：纯数字（不含逗号和货币符号），金额保留两位小数\n")
	b.WriteString("   - 文本字段保持原始格式，去除多余空格\n")
	b.WriteString("3. **数据验证**：提取的数据应该符合基本的业务逻辑（如日期合理、金额为正数等）\n")
	b.WriteString("4. **缺失处理**：如果某个字段确实无法识别，设为null\n\n")
	b.WriteString("# 输出格式要求\n")
	b.WriteString("请严格按照以下JSON格式输出，不要添加任何其他文字：\n\n")
	b.WriteString("```json\n{\n")
	b.WriteString(strings.Join(jsonFields, ",\n"))
	b.WriteString("\n}\n```\n\n")
	b.WriteString("# OCR识别文本\n```\n")
	b.WriteString(ocrText)
	b.WriteString("\n```\n\n")
	b.WriteString("请仔细分析以上文本，提取出准确的字段信息，并严格按照JSON格式输出。")
	return b.String()
}

func formatHint(fieldType constants.FieldType) string {
	switch fieldType {
	case constants.FieldTypeDate:
		return "（格式：YYYY-MM-DD）"
	case constants.FieldTypeAmount:
		return "（只返回数字，不包含货币符号）"
	case constants.FieldTypeNumber:
		return "（只返回数字）"
	default:
		return ""
	}
}
