package pdf

import (
	"math"
	"testing"

	"github.com/ledongthuc/pdf"
)

func TestIsPostScriptCode(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"/pgsave save def", true},
		{"null def", true},
		{"marker @stx inline", true},
		{"/BuRL link", true},
		{"The definition of convexity", false},
		{"normal sentence with def inside", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isPostScriptCode(tt.text); got != tt.want {
			t.Errorf("isPostScriptCode(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestHasExcessiveNonPrintable(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"clean text", "hello world", false},
		{"allowed whitespace", "line\none\ttab", false},
		{"mostly control chars", "\x01\x02\x03\x04a", true},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasExcessiveNonPrintable(tt.text); got != tt.want {
				t.Errorf("hasExcessiveNonPrintable(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRowToBlock(t *testing.T) {
	// Letter page, baseline at 720pt, 12pt font starting 72pt from the left.
	row := &pdf.Row{
		Content: pdf.TextHorizontal{
			{S: "Hello ", X: 72, Y: 720, FontSize: 12},
			{S: "world", X: 110, Y: 720, FontSize: 12},
		},
	}

	block, ok := rowToBlock(row, 3, 0, 792)
	if !ok {
		t.Fatal("rowToBlock rejected a valid row")
	}
	if block.ID != "p3_l0" {
		t.Errorf("id = %q", block.ID)
	}
	if block.Text != "Hello world" {
		t.Errorf("text = %q", block.Text)
	}
	if block.Page != 3 {
		t.Errorf("page = %d", block.Page)
	}
	if block.BBox.X != 1.0 {
		t.Errorf("bbox x = %v, want 1.0", block.BBox.X)
	}
	// top = 792 - 720 - 12 = 60pt
	if want := 60.0 / 72.0; math.Abs(block.BBox.Y-want) > 1e-9 {
		t.Errorf("bbox y = %v, want %v", block.BBox.Y, want)
	}
	if want := 12.0 * 1.2 / 72.0; math.Abs(block.BBox.Height-want) > 1e-9 {
		t.Errorf("bbox height = %v, want %v", block.BBox.Height, want)
	}
}

func TestRowToBlockRejectsEmpty(t *testing.T) {
	if _, ok := rowToBlock(&pdf.Row{}, 1, 0, 792); ok {
		t.Error("empty row should be rejected")
	}
	row := &pdf.Row{Content: pdf.TextHorizontal{{S: "   ", X: 0, Y: 0, FontSize: 10}}}
	if _, ok := rowToBlock(row, 1, 0, 792); ok {
		t.Error("whitespace-only row should be rejected")
	}
}

func TestRowToBlockRejectsGarbage(t *testing.T) {
	row := &pdf.Row{Content: pdf.TextHorizontal{
		{S: "/pgsave save def", X: 0, Y: 700, FontSize: 10},
	}}
	if _, ok := rowToBlock(row, 1, 0, 792); ok {
		t.Error("operator garbage should be rejected")
	}
}
