package pdf

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"layout-translator/internal/logger"
)

// NativeExtractor 直接从文本型 PDF 中提取定位文本行,不依赖外部识别服务。
// 坐标换算为英寸、左上角原点,页码为文档内的全局页码。
type NativeExtractor struct{}

// NewNativeExtractor creates an extractor for text PDFs
func NewNativeExtractor() *NativeExtractor {
	return &NativeExtractor{}
}

// defaultLineFontSize substitutes for rows without usable font metrics
const defaultLineFontSize = 10.0

// Extract 提取 chunk 页范围内的文本块
func (e *NativeExtractor) Extract(ctx context.Context, pdfPath string, chunk Chunk) ([]Block, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		if os.IsNotExist(err) {
			return nil, NewPDFError(ErrPDFNotFound, "file does not exist", err)
		}
		return nil, NewPDFError(ErrPDFInvalid, "cannot access file", err)
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "cannot open PDF file", err)
	}
	defer f.Close()

	totalPages := r.NumPage()
	if chunk.StartPage < 1 || chunk.EndPage > totalPages {
		return nil, NewPDFError(ErrExtractFailed,
			fmt.Sprintf("chunk pages %d-%d out of range 1-%d", chunk.StartPage, chunk.EndPage, totalPages), nil)
	}

	var blocks []Block
	for pageNum := chunk.StartPage; pageNum <= chunk.EndPage; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		pageH := pageHeight(page)
		rows, err := page.GetTextByRow()
		if err != nil {
			logger.Warn("failed to read page text, skipping page",
				logger.Int("page", pageNum),
				logger.Err(err))
			continue
		}

		lineIdx := 0
		for _, row := range rows {
			block, ok := rowToBlock(row, pageNum, lineIdx, pageH)
			if !ok {
				continue
			}
			blocks = append(blocks, block)
			lineIdx++
		}
	}

	logger.Debug("native extraction completed",
		logger.Int("startPage", chunk.StartPage),
		logger.Int("endPage", chunk.EndPage),
		logger.Int("blocks", len(blocks)))

	return blocks, nil
}

// pageHeight reads the page's MediaBox height in points
func pageHeight(page pdf.Page) float64 {
	mb := page.V.Key("MediaBox")
	if mb.Kind() != pdf.Array || mb.Len() < 4 {
		return 792 // letter height when the box is missing
	}
	return mb.Index(3).Float64() - mb.Index(1).Float64()
}

// rowToBlock converts one text row to a positioned Block. The library
// reports baseline coordinates in points with a bottom-left origin.
func rowToBlock(row *pdf.Row, pageNum, lineIdx int, pageH float64) (Block, bool) {
	if len(row.Content) == 0 {
		return Block{}, false
	}

	var sb strings.Builder
	var minX, maxX, baselineY float64
	var totalFontSize float64
	count := 0

	for _, t := range row.Content {
		if t.S == "" || isPostScriptCode(t.S) {
			continue
		}
		sb.WriteString(t.S)
		if count == 0 {
			minX, maxX, baselineY = t.X, t.X, t.Y
		} else {
			minX = min(minX, t.X)
			maxX = max(maxX, t.X)
		}
		totalFontSize += t.FontSize
		count++
	}

	text := strings.TrimSpace(sb.String())
	if text == "" || count == 0 || isPostScriptCode(text) || hasExcessiveNonPrintable(text) {
		return Block{}, false
	}

	fontSize := totalFontSize / float64(count)
	if fontSize <= 0 {
		fontSize = defaultLineFontSize
	}

	// 宽度近似:右端坐标是最后一段文字的起点,再补一个字号
	widthPts := maxX - minX + fontSize
	if estimated := float64(len(text)) * fontSize * 0.5; estimated > widthPts {
		widthPts = estimated
	}
	heightPts := fontSize * 1.2
	topPts := pageH - baselineY - fontSize

	return Block{
		ID:   fmt.Sprintf("p%d_l%d", pageNum, lineIdx),
		Text: text,
		BBox: BoundingBox{
			X:      minX / PointsPerInch,
			Y:      topPts / PointsPerInch,
			Width:  widthPts / PointsPerInch,
			Height: heightPts / PointsPerInch,
		},
		Page: pageNum,
	}, true
}

// isPostScriptCode filters operator garbage that some PDFs leak into their
// text streams.
func isPostScriptCode(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	if strings.Contains(lower, "null def") {
		return true
	}
	if strings.Contains(text, "@stx") || strings.Contains(text, "@etx") {
		return true
	}
	if strings.Contains(lower, "/burl") || strings.Contains(lower, "burl@") {
		return true
	}
	return false
}

// hasExcessiveNonPrintable reports whether more than 10% of the characters
// are control or non-printable.
func hasExcessiveNonPrintable(text string) bool {
	if text == "" {
		return false
	}
	nonPrintable := 0
	for _, r := range text {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintable++
		}
		if r >= 0x7F && r <= 0x9F {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(text)) > 0.1
}
