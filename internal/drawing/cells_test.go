package drawing

import (
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/signature"
)

func TestCellsFromBlocks(t *testing.T) {
	region := signature.Rect{Left: 100, Top: 200, Right: 500, Bottom: 400}
	rec := ocr.RecognizedText{
		Text: "设计人:王五",
		Blocks: []ocr.Block{
			{Text: " 设计人:王五 ", Box: [][]float64{{5, 10}, {45, 10}, {45, 30}, {5, 30}}, Score: 0.9},
			{Text: "no box"},
			{Text: "bad point", Box: [][]float64{{3}}},
		},
	}

	cells := Cells(region, rec)
	if len(cells) != 1 {
		t.Fatalf("len(cells) = %d, want 1", len(cells))
	}
	c := cells[0]
	if c.Text != "设计人:王五" {
		t.Fatalf("Text = %q", c.Text)
	}
	wantBox := signature.Rect{Left: 105, Top: 210, Right: 145, Bottom: 230}
	if c.Box != wantBox {
		t.Fatalf("Box = %+v, want %+v", c.Box, wantBox)
	}
	if c.CenterX != 125 || c.CenterY != 220 {
		t.Fatalf("center = (%v,%v), want (125,220)", c.CenterX, c.CenterY)
	}
	if c.Confidence != 0.9 {
		t.Fatalf("Confidence = %v, want 0.9", c.Confidence)
	}
}

func TestCellsFromLines(t *testing.T) {
	region := signature.Rect{Left: 100, Top: 200, Right: 500, Bottom: 280}
	rec := ocr.RecognizedText{Text: "设计人:张三\n\n审核人:李四"}

	cells := Cells(region, rec)
	if len(cells) != 2 {
		t.Fatalf("len(cells) = %d, want 2", len(cells))
	}
	// three line slots of height 80/3 = 26; the blank middle line
	// keeps its slot so the third line lands at 252
	first, second := cells[0], cells[1]
	if first.Box.Top != 200 || first.Box.Bottom != 226 {
		t.Fatalf("first box = %+v", first.Box)
	}
	if second.Box.Top != 252 || second.Box.Bottom != 278 {
		t.Fatalf("second box = %+v", second.Box)
	}
	if first.Box.Left != 100 || first.Box.Right != 500 {
		t.Fatalf("first box spans %d..%d, want region width", first.Box.Left, first.Box.Right)
	}
	if first.Confidence != 0.8 {
		t.Fatalf("Confidence = %v, want 0.8", first.Confidence)
	}
	if second.CenterY != 265 {
		t.Fatalf("second CenterY = %v, want 265", second.CenterY)
	}
}

func TestPairNamesPicksNearestRightCell(t *testing.T) {
	cells := []Cell{
		{Text: "设计人:张三", Box: signature.Rect{Left: 0, Top: 0, Right: 100, Bottom: 40}, CenterX: 50, CenterY: 20},
		{Text: "刘", Box: signature.Rect{Left: 120, Top: 0, Right: 200, Bottom: 40}, CenterX: 160, CenterY: 25},
		{Text: "", Box: signature.Rect{Left: 300, Top: 0, Right: 400, Bottom: 40}, CenterX: 350, CenterY: 20},
		{Text: "很长很长的非签名文字", CenterX: 250, CenterY: 20},
		{Text: "王", CenterX: 160, CenterY: 75},
	}

	pairs := PairNames(cells)
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}
	p := pairs[0]
	if p.Keyword != "设计人" || p.Name != "张三" {
		t.Fatalf("pair = %+v", p)
	}
	want := signature.Rect{Left: 120, Top: 0, Right: 200, Bottom: 40}
	if p.Region != want {
		t.Fatalf("Region = %+v, want %+v", p.Region, want)
	}
}

func TestPairNamesRules(t *testing.T) {
	sig := Cell{Text: "", CenterX: 300, CenterY: 20}

	tests := []struct {
		name  string
		label string
		pairs int
	}{
		{"fullwidth colon", "审核人：李四", 1},
		{"missing colon", "审核人李四", 0},
		{"empty name", "审核人:", 0},
		{"name too long", "审核人:这个名字实在是太长太长了", 0},
		{"generic keyword", "姓名:钱七", 1},
		{"no keyword", "比例:1:100", 0},
	}
	for _, tt := range tests {
		cells := []Cell{{Text: tt.label, CenterX: 50, CenterY: 20}, sig}
		if got := len(PairNames(cells)); got != tt.pairs {
			t.Errorf("%s: pairs = %d, want %d", tt.name, got, tt.pairs)
		}
	}
}

func TestPairNamesIgnoresLeftCells(t *testing.T) {
	cells := []Cell{
		{Text: "设计人:张三", CenterX: 200, CenterY: 20},
		{Text: "", CenterX: 100, CenterY: 20},
	}
	if pairs := PairNames(cells); len(pairs) != 0 {
		t.Fatalf("len(pairs) = %d, want 0", len(pairs))
	}
}
