package llm

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testFieldNames = []string{"发票号码", "开票日期", "合计金额"}

func TestParseReplyFencedJSON(t *testing.T) {
	reply := "好的，提取结果如下：\n```json\n{\"发票号码\": \"1100224150\", \"开票日期\": \"2024-01-15\", \"合计金额\": null}\n```\n以上。"

	got := ParseReply(reply, testFieldNames, testLogger())
	if got["发票号码"] == nil || *got["发票号码"] != "1100224150" {
		t.Fatalf("发票号码 = %v, want 1100224150", got["发票号码"])
	}
	if got["开票日期"] == nil || *got["开票日期"] != "2024-01-15" {
		t.Fatalf("开票日期 = %v, want 2024-01-15", got["开票日期"])
	}
	if got["合计金额"] != nil {
		t.Fatalf("合计金额 = %q, want nil", *got["合计金额"])
	}
}

func TestParseReplyBareJSON(t *testing.T) {
	reply := `{"发票号码": "99887766", "开票日期": null, "合计金额": "339.00"}`

	got := ParseReply(reply, testFieldNames, testLogger())
	if got["发票号码"] == nil || *got["发票号码"] != "99887766" {
		t.Fatalf("发票号码 = %v, want 99887766", got["发票号码"])
	}
	if got["合计金额"] == nil || *got["合计金额"] != "339.00" {
		t.Fatalf("合计金额 = %v, want 339.00", got["合计金额"])
	}
}

func TestParseReplySanitizesNumbersAndUnknownKeys(t *testing.T) {
	// Numbers instead of strings plus a stray key: strict validation fails,
	// the sanitize retry must recover both values.
	reply := "```json\n{\"发票号码\": \"123\", \"合计金额\": 339.5, \"开票日期\": null, \"备注\": \"extra\"}\n```"

	got := ParseReply(reply, testFieldNames, testLogger())
	if got["合计金额"] == nil || *got["合计金额"] != "339.5" {
		t.Fatalf("合计金额 = %v, want 339.5", got["合计金额"])
	}
	if got["发票号码"] == nil || *got["发票号码"] != "123" {
		t.Fatalf("发票号码 = %v, want 123", got["发票号码"])
	}
	if _, ok := got["备注"]; ok {
		t.Fatal("unknown key survived sanitize")
	}
}

func TestParseReplySalvageFromBrokenJSON(t *testing.T) {
	reply := "解析结果 发票号码: 1100224150,\n开票日期：2024-01-15\n合计金额: null"

	got := ParseReply(reply, testFieldNames, testLogger())
	if got["发票号码"] == nil || *got["发票号码"] != "1100224150" {
		t.Fatalf("发票号码 = %v, want 1100224150", got["发票号码"])
	}
	if got["开票日期"] == nil || *got["开票日期"] != "2024-01-15" {
		t.Fatalf("开票日期 = %v, want 2024-01-15", got["开票日期"])
	}
	if got["合计金额"] != nil {
		t.Fatalf("合计金额 = %q, want nil", *got["合计金额"])
	}
}

func TestParseReplyNeverPanicsOnGarbage(t *testing.T) {
	for _, reply := range []string{"", "not json at all", "```json\n```", strings.Repeat("x", 10000)} {
		got := ParseReply(reply, testFieldNames, testLogger())
		if len(got) != len(testFieldNames) {
			t.Fatalf("ParseReply(%q) size = %d, want %d", reply[:min(len(reply), 20)], len(got), len(testFieldNames))
		}
		for name, v := range got {
			if v != nil {
				t.Fatalf("field %s = %q, want nil for garbage input", name, *v)
			}
		}
	}
}

func TestDecodeReplyObjectPrefersFence(t *testing.T) {
	reply := `{"outside": true} ` + "```json\n{\"inside\": \"yes\"}\n```"

	obj, ok := DecodeReplyObject(reply)
	if !ok {
		t.Fatal("DecodeReplyObject failed")
	}
	if _, hasOutside := obj["outside"]; hasOutside {
		t.Fatal("decoded text outside the fence")
	}
	if obj["inside"] != "yes" {
		t.Fatalf("inside = %v, want yes", obj["inside"])
	}
}

func TestSalvageFieldsSkipsNullLiterals(t *testing.T) {
	text := "发票号码: null\n开票日期: None\n合计金额: 12.00"

	got := SalvageFields(text, testFieldNames)
	if got["发票号码"] != nil || got["开票日期"] != nil {
		t.Fatal("null literals must salvage to nil")
	}
	if got["合计金额"] == nil || *got["合计金额"] != "12.00" {
		t.Fatalf("合计金额 = %v, want 12.00", got["合计金额"])
	}
}
