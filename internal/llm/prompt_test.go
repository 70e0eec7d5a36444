package llm

import (
	"strings"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

func promptStore(t *testing.T) *schema.Store {
	t.Helper()
	s := schema.NewStore(testLogger())
	s.Add(schema.FieldDefinition{
		Name:        "开票日期",
		Description: "发票开具日期",
		FieldType:   constants.FieldTypeDate,
		AIPrompt:    "提取发票上的开票日期",
	})
	s.Add(schema.FieldDefinition{
		Name:        "合计金额",
		Description: "价税合计金额",
		FieldType:   constants.FieldTypeAmount,
		AIPrompt:    "提取价税合计金额",
	})
	s.Add(schema.FieldDefinition{
		Name:        "备注",
		Description: "备注信息",
		FieldType:   constants.FieldTypeText,
		AIPrompt:    "提取备注",
	})
	return s
}

func TestBuildExtractionPromptFieldBullets(t *testing.T) {
	store := promptStore(t)

	prompt := BuildExtractionPrompt(store, "some text", []string{"开票日期", "合计金额"})

	if !strings.Contains(prompt, "- 开票日期：提取发票上的开票日期（格式：YYYY-MM-DD）") {
		t.Fatalf("missing date bullet with format hint:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- 合计金额：提取价税合计金额（只返回数字，不包含货币符号）") {
		t.Fatalf("missing amount bullet with format hint:\n%s", prompt)
	}
	if strings.Contains(prompt, "备注") {
		t.Fatal("prompt mentions a field that was not requested")
	}
}

func TestBuildExtractionPromptIncludesOCRText(t *testing.T) {
	store := promptStore(t)
	text := "发票号码：1100224150\n开票日期：2024年01月15日"

	prompt := BuildExtractionPrompt(store, text, nil)
	if !strings.Contains(prompt, text) {
		t.Fatal("OCR text missing from prompt")
	}
	if !strings.Contains(prompt, "```json") {
		t.Fatal("strict JSON fence directive missing")
	}
}

func TestBuildExtractionPromptDefaultsToAllFields(t *testing.T) {
	store := promptStore(t)

	prompt := BuildExtractionPrompt(store, "t", nil)
	for _, name := range store.Names() {
		if !strings.Contains(prompt, name) {
			t.Fatalf("prompt missing field %s", name)
		}
	}
}

func TestBuildExtractionPromptSkipsUnknownNames(t *testing.T) {
	store := promptStore(t)

	prompt := BuildExtractionPrompt(store, "t", []string{"开票日期", "ghost"})
	if strings.Contains(prompt, "ghost") {
		t.Fatal("unknown field leaked into prompt")
	}
}

func TestBuildFieldsJSONSchemaShape(t *testing.T) {
	m := BuildFieldsJSONSchema([]string{"a", "b"})

	if m["additionalProperties"] != false {
		t.Fatal("additionalProperties must be false")
	}
	props := m["properties"].(map[string]any)
	if len(props) != 2 {
		t.Fatalf("properties size = %d, want 2", len(props))
	}
	if err := ValidateJSONAgainstSchema(m, []byte(`{"a": "x", "b": null}`)); err != nil {
		t.Fatalf("valid object rejected: %v", err)
	}
	if err := ValidateJSONAgainstSchema(m, []byte(`{"a": 1}`)); err == nil {
		t.Fatal("numeric value accepted, want rejection")
	}
	if err := ValidateJSONAgainstSchema(m, []byte(`{"c": "x"}`)); err == nil {
		t.Fatal("unknown key accepted, want rejection")
	}
}
