package schema

import (
	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// InvoiceDefaults returns the built-in invoice field schema used when no
// configuration file is present or parseable.
func InvoiceDefaults() []FieldDefinition {
	return []FieldDefinition{
		{
			Name:        "发票号码",
			Description: "发票的唯一标识号码",
			FieldType:   constants.FieldTypeText,
			Patterns: []string{
				`发票号码[:：]\s*(\w+)`,
				`No\.?\s*[:：]?\s*(\w+)`,
				`发票代码[:：]\s*(\w+)`,
				`票据号码[:：]\s*(\w+)`,
			},
			AIPrompt: "提取发票号码或票据号码",
			Required: true,
		},
		{
			Name:        "开票日期",
			Description: "发票开具日期",
			FieldType:   constants.FieldTypeDate,
			Patterns: []string{
				`开票日期[:：]\s*(\d{4}[-/年]\d{1,2}[-/月]\d{1,2}[日]?)`,
				`日期[:：]\s*(\d{4}[-/年]\d{1,2}[-/月]\d{1,2}[日]?)`,
				`Date[:：]\s*(\d{4}[-/年]\d{1,2}[-/月]\d{1,2}[日]?)`,
			},
			AIPrompt: "提取开票日期，格式为YYYY-MM-DD",
			Required: true,
		},
		{
			Name:        "销售方名称",
			Description: "开票方公司名称",
			FieldType:   constants.FieldTypeText,
			Patterns: []string{
				`销售方[:：]\s*([^开票方购买方收款方付款方\s]{2,50})`,
				`收款人[:：]\s*([^开票方购买方收款方付款方\s]{2,50})`,
				`Seller[:：]\s*([^\n]{2,100})`,
				`开票方[:：]\s*([^\n]{2,100})`,
			},
			AIPrompt: "提取销售方或开票方的公司名称",
			Required: true,
		},
		{
			Name:        "购买方名称",
			Description: "购买方公司名称",
			FieldType:   constants.FieldTypeText,
			Patterns: []string{
				`购买方[:：]\s*([^开票方购买方收款方付款方\s]{2,50})`,
				`付款人[:：]\s*([^开票方购买方收款方付款方\s]{2,50})`,
				`Buyer[:：]\s*([^\n]{2,100})`,
				`受票方[:：]\s*([^\n]{2,100})`,
			},
			AIPrompt: "提取购买方或受票方的公司名称",
			Required: true,
		},
		{
			Name:        "合计金额",
			Description: "价税合计总金额",
			FieldType:   constants.FieldTypeAmount,
			Patterns: []string{
				`价税合计[:：]\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
				`合计金额[:：]\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
				`Total[:：]\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
				`金额[:：]\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
			},
			AIPrompt: "提取价税合计或总金额，只返回数字",
			Required: true,
		},
		{
			Name:        "税额",
			Description: "增值税税额",
			FieldType:   constants.FieldTypeAmount,
			Patterns: []string{
				`税额[:：]\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
				`增值税[:：]\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
				`Tax[:：]\s*￥?\s*(\d+(?:,\d{3})*(?:\.\d{2})?)`,
			},
			AIPrompt: "提取增值税税额，只返回数字",
			Required: false,
		},
	}
}

// DrawingDefaults returns the built-in title-block schema for engineering
// drawings. These fields carry no patterns; extraction is prompt-only.
func DrawingDefaults() []FieldDefinition {
	defs := []FieldDefinition{
		{
			Name:        "项目名称",
			Description: "该图纸的图签部分显示的项目名称",
			FieldType:   constants.FieldTypeText,
			AIPrompt:    "提取该图纸所显示的 项目工程名称",
			Required:    false,
		},
	}

	// Signatory roles share one definition shape.
	for _, role := range []string{"审定人", "审核人", "校核人", "设计人", "绘图人", "项目负责人", "专业负责人"} {
		defs = append(defs, FieldDefinition{
			Name:        role,
			Description: "图纸图签部分显示的 " + role + " 字段后填写的 姓名",
			FieldType:   constants.FieldTypeText,
			AIPrompt:    "提取图纸图签部分显示的 " + role + " 字段后填写的 第一个姓名，若姓名为空，该字段可以为空",
			Required:    true,
		})
	}

	defs = append(defs,
		FieldDefinition{
			Name:        "项目编号",
			Description: "图纸图签部分显示的 项目编号 字段后填写的 信息",
			FieldType:   constants.FieldTypeText,
			AIPrompt:    "提取图纸图签部分显示的 项目编号 字段后填写的 信息（仅包含字母、数字和“-”），若为空，该字段可以为空",
			Required:    true,
		},
		FieldDefinition{
			Name:        "图纸编号",
			Description: "图纸图签部分显示的 图纸编号 字段后填写的 信息",
			FieldType:   constants.FieldTypeText,
			AIPrompt:    "提取图纸图签部分显示的 图纸编号 字段后填写的 信息（仅包含字母、数字和“-”），若为空，该字段可以为空",
			Required:    true,
		},
		FieldDefinition{
			Name:        "设计阶段",
			Description: "图纸图签部分显示的 设计阶段 字段后填写的 信息",
			FieldType:   constants.FieldTypeText,
			AIPrompt:    "提取图纸图签部分显示的 设计阶段 字段后填写的 信息，若为空，该字段可以为空",
			Required:    true,
		},
		FieldDefinition{
			Name:        "专业",
			Description: "图纸图签部分显示的 专业 字段后填写的 信息",
			FieldType:   constants.FieldTypeText,
			AIPrompt:    "提取图纸图签部分显示的 专业 字段后填写的 信息，若为空，该字段可以为空",
			Required:    true,
		},
		FieldDefinition{
			Name:        "出图日期",
			Description: "图纸图签部分显示的 出图日期 字段后填写的 信息",
			FieldType:   constants.FieldTypeDate,
			AIPrompt:    "提取图纸图签部分显示的 出图日期 字段后填写的 日期，若为空，该字段可以为空",
			Required:    false,
		},
		FieldDefinition{
			Name:        "图纸比例",
			Description: "图纸图签部分显示的 图纸比例 字段后填写的 信息",
			FieldType:   constants.FieldTypeText,
			AIPrompt:    "提取图纸图签部分显示的 图纸比例 字段后填写的 信息，若为空，该字段可以为空",
			Required:    false,
		},
	)

	return defs
}
