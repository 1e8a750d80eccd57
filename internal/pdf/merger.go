package pdf

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// BlockMerger groups positioned line blocks into paragraph level units.
// Merging never crosses a page boundary; within a page it follows a
// top-to-bottom, left-to-right reading order. Multi column layouts are a
// known limitation of that order.
type BlockMerger struct{}

// NewBlockMerger creates a merger
func NewBlockMerger() *BlockMerger {
	return &BlockMerger{}
}

// 垂直和水平合并阈值,相对于两个块的平均高度
const (
	mergeMaxGapRatio     = 0.5
	mergeOverlapRatio    = 0.1
	mergeVerticalSlack   = 0.1
	mergeIndentTolerance = 0.5
)

// Merge 将单个 chunk 的文本块合并为段落
func (m *BlockMerger) Merge(blocks []Block) []MergedBlock {
	if len(blocks) == 0 {
		return nil
	}

	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sortBlocks(sorted)

	var merged []MergedBlock
	var acc strings.Builder
	var sourceIDs []string
	var prev Block
	accPage := 0

	flush := func() {
		if len(sourceIDs) == 0 {
			return
		}
		merged = append(merged, MergedBlock{
			ID:        "merged_" + sourceIDs[0],
			Text:      acc.String(),
			SourceIDs: sourceIDs,
			Page:      accPage,
		})
		acc.Reset()
		sourceIDs = nil
	}

	for _, b := range sorted {
		text := preprocessText(b.Text)
		if len(sourceIDs) == 0 {
			acc.WriteString(text)
			sourceIDs = []string{b.ID}
			accPage = b.Page
			prev = b
			continue
		}
		if shouldMerge(prev, b) {
			joinText(&acc, text)
			sourceIDs = append(sourceIDs, b.ID)
		} else {
			flush()
			acc.WriteString(text)
			sourceIDs = []string{b.ID}
			accPage = b.Page
		}
		prev = b
	}
	flush()

	return merged
}

// sortBlocks orders blocks by page, then top-to-bottom, then left-to-right
func sortBlocks(blocks []Block) {
	slices.SortStableFunc(blocks, func(a, b Block) int {
		if a.Page != b.Page {
			return a.Page - b.Page
		}
		if a.BBox.Y != b.BBox.Y {
			if a.BBox.Y < b.BBox.Y {
				return -1
			}
			return 1
		}
		if a.BBox.X != b.BBox.X {
			if a.BBox.X < b.BBox.X {
				return -1
			}
			return 1
		}
		return 0
	})
}

// shouldMerge decides whether next continues prev's paragraph
func shouldMerge(prev, next Block) bool {
	if prev.Page != next.Page {
		return false
	}

	avgH := (prev.BBox.Height + next.BBox.Height) / 2

	// 垂直距离:允许轻微重叠,拒绝过大的行距
	gap := next.BBox.Y - prev.BBox.Bottom()
	if gap <= -mergeVerticalSlack*avgH || gap >= mergeMaxGapRatio*avgH {
		return false
	}

	// 水平重叠,或左边缘接近(容忍缩进)
	overlap := min(prev.BBox.Right(), next.BBox.Right()) - max(prev.BBox.X, next.BBox.X)
	minWidth := min(prev.BBox.Width, next.BBox.Width)
	leftDelta := prev.BBox.X - next.BBox.X
	if leftDelta < 0 {
		leftDelta = -leftDelta
	}
	if overlap < mergeOverlapRatio*minWidth && leftDelta > mergeIndentTolerance*avgH {
		return false
	}

	// 句子结束标点视为段落边界
	trimmed := strings.TrimSpace(prev.Text)
	if strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?") {
		return false
	}

	return true
}

// joinText appends text to the accumulator, collapsing a trailing hyphenated
// word break ("exam-" + "ple" becomes "example") or inserting a single space.
func joinText(acc *strings.Builder, text string) {
	current := acc.String()
	if tail, ok := stripHyphenBreak(current); ok {
		acc.Reset()
		acc.WriteString(tail)
		acc.WriteString(text)
		return
	}
	if current != "" && text != "" {
		acc.WriteString(" ")
	}
	acc.WriteString(text)
}

// stripHyphenBreak reports whether s ends with a letter followed by a hyphen
// and returns s without the trailing hyphen.
func stripHyphenBreak(s string) (string, bool) {
	if !strings.HasSuffix(s, "-") {
		return s, false
	}
	runes := []rune(strings.TrimSuffix(s, "-"))
	if len(runes) == 0 || !unicode.IsLetter(runes[len(runes)-1]) {
		return s, false
	}
	return string(runes), true
}

// preprocessText collapses whitespace runs to single spaces and applies NFC
// normalization so decomposed Hangul from the extraction service compares and
// renders consistently.
func preprocessText(text string) string {
	fields := strings.Fields(text)
	return norm.NFC.String(strings.Join(fields, " "))
}
