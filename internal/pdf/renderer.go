package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"layout-translator/internal/logger"
)

const (
	// DefaultFontName is the fallback when no usable font file is provided
	DefaultFontName = "Helvetica"
	// DefaultFontSize in points
	DefaultFontSize = 10.0
	// RedactionMargin expands redaction rectangles, in points
	RedactionMargin = 1.0
	// RasterScale upsamples the page background to preserve image fidelity
	RasterScale = 2.0
	// lineSpacing multiplies font size to get line height
	lineSpacing = 1.2
)

// FontRegistry resolves a requested font on an fpdf document. Resolution is
// idempotent per document and never fails: an unusable font file resolves to
// the built-in default.
type FontRegistry struct {
	name string
	path string
}

// NewFontRegistry creates a registry for the requested font name and TTF path
func NewFontRegistry(name, path string) *FontRegistry {
	return &FontRegistry{name: name, path: path}
}

// Resolve registers the configured font on doc and returns the font name to
// pass to SetFont. Each rendered page uses a fresh document, so no state is
// kept across calls.
func (r *FontRegistry) Resolve(doc *fpdf.Fpdf) string {
	if r.name == "" || r.path == "" {
		return DefaultFontName
	}
	if _, err := os.Stat(r.path); err != nil {
		logger.Warn("font file not found, using default",
			logger.String("path", r.path))
		return DefaultFontName
	}
	doc.AddUTF8Font(r.name, "", r.path)
	if doc.Err() {
		logger.Warn("font registration failed, using default",
			logger.String("font", r.name),
			logger.String("path", r.path))
		doc.ClearError()
		return DefaultFontName
	}
	return r.name
}

// Rasterizer renders one page of a PDF to a PNG image at the given scale.
type Rasterizer interface {
	RasterizePage(pdfPath string, page int, scale float64) ([]byte, error)
}

// LayoutRenderer 将翻译后的段落按原始坐标重新排版到页面上:
// 先以白色矩形遮盖原文区域,再以光栅化的页面为背景,最后绘制译文。
type LayoutRenderer struct {
	rasterizer Rasterizer
	fonts      *FontRegistry
	fontSize   float64
}

// LayoutRendererConfig holds configuration for creating a LayoutRenderer
type LayoutRendererConfig struct {
	Rasterizer Rasterizer
	FontName   string
	FontPath   string
	FontSize   float64
}

// NewLayoutRenderer creates a renderer
func NewLayoutRenderer(cfg LayoutRendererConfig) *LayoutRenderer {
	fontSize := cfg.FontSize
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	return &LayoutRenderer{
		rasterizer: cfg.Rasterizer,
		fonts:      NewFontRegistry(cfg.FontName, cfg.FontPath),
		fontSize:   fontSize,
	}
}

// frameOrigin converts a bounding box in inches (top-left origin) to the
// bottom-left draw origin in points for a page of the given height.
func frameOrigin(bbox BoundingBox, pageHeightPts float64) (x, y float64) {
	x = bbox.X * PointsPerInch
	y = pageHeightPts - (bbox.Y*PointsPerInch + bbox.Height*PointsPerInch)
	return x, y
}

// expandRect grows a rectangle by margin on every side, clamped to the page
func expandRect(x, y, w, h, margin, pageW, pageH float64) (float64, float64, float64, float64) {
	x -= margin
	y -= margin
	w += 2 * margin
	h += 2 * margin
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > pageW {
		w = pageW - x
	}
	if y+h > pageH {
		h = pageH - y
	}
	return x, y, w, h
}

// pageSize reads the dimensions of a 1-based page, in points
func pageSize(pdfPath string, page int) (w, h float64, err error) {
	dims, err := api.PageDimsFile(pdfPath)
	if err != nil {
		return 0, 0, NewPDFError(ErrPDFInvalid, "failed to read page dimensions", err)
	}
	if page < 1 || page > len(dims) {
		return 0, 0, &PDFError{
			Code:    ErrRenderFailed,
			Message: fmt.Sprintf("page out of range: %d of %d", page, len(dims)),
			Page:    page,
		}
	}
	d := dims[page-1]
	return d.Width, d.Height, nil
}

// RenderPage 渲染单页:返回该页的 PDF 字节。任何错误仅影响本页。
func (r *LayoutRenderer) RenderPage(pdfPath string, page int, blocks []TranslatedBlock) ([]byte, error) {
	pageW, pageH, err := pageSize(pdfPath, page)
	if err != nil {
		return nil, err
	}

	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetAutoPageBreak(false, 0)
	fontName := r.fonts.Resolve(doc)
	doc.AddPageFormat("P", fpdf.SizeType{Wd: pageW, Ht: pageH})

	r.drawBackground(doc, pdfPath, page, pageW, pageH)
	r.redactRegions(doc, blocks, pageW, pageH)
	r.drawBlocks(doc, blocks, fontName, pageH)

	if doc.Err() {
		return nil, &PDFError{
			Code:    ErrRenderFailed,
			Message: "page rendering failed",
			Page:    page,
			Cause:   doc.Error(),
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, &PDFError{Code: ErrRenderFailed, Message: "failed to serialize page", Page: page, Cause: err}
	}
	return buf.Bytes(), nil
}

// drawBackground rasterizes the original page and places it full-bleed.
// A raster failure degrades to a plain white background.
func (r *LayoutRenderer) drawBackground(doc *fpdf.Fpdf, pdfPath string, page int, pageW, pageH float64) {
	if r.rasterizer == nil {
		return
	}
	img, err := r.rasterizer.RasterizePage(pdfPath, page, RasterScale)
	if err != nil {
		logger.Warn("page rasterization failed, rendering on white background",
			logger.Int("page", page),
			logger.Err(err))
		return
	}
	name := fmt.Sprintf("bg_p%d", page)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
	doc.ImageOptions(name, 0, 0, pageW, pageH, false, opts, 0, "")
}

// redactRegions covers every block's original text with opaque white in one
// pass over the page.
func (r *LayoutRenderer) redactRegions(doc *fpdf.Fpdf, blocks []TranslatedBlock, pageW, pageH float64) {
	doc.SetFillColor(255, 255, 255)
	for _, b := range blocks {
		x := b.BBox.X * PointsPerInch
		yTop := b.BBox.Y * PointsPerInch
		w := b.BBox.Width * PointsPerInch
		h := b.BBox.Height * PointsPerInch
		x, yTop, w, h = expandRect(x, yTop, w, h, RedactionMargin, pageW, pageH)
		doc.Rect(x, yTop, w, h, "F")
	}
}

// drawBlocks wraps and draws each translated paragraph inside its original
// bounding box. A block that cannot be drawn is skipped.
func (r *LayoutRenderer) drawBlocks(doc *fpdf.Fpdf, blocks []TranslatedBlock, fontName string, pageH float64) {
	doc.SetFont(fontName, "", r.fontSize)
	doc.SetTextColor(0, 0, 0)
	lineH := r.fontSize * lineSpacing

	for _, b := range blocks {
		if b.TranslatedText == "" {
			continue
		}
		wPts := b.BBox.Width * PointsPerInch
		if wPts <= 0 {
			logger.Warn("block has no width, skipping",
				logger.String("blockID", b.ID),
				logger.Int("page", b.Page))
			continue
		}

		frameX, frameY := frameOrigin(b.BBox, pageH)
		hPts := b.BBox.Height * PointsPerInch
		// fpdf 的原点在左上角,将底左 frame 原点换算回顶边
		yTop := pageH - frameY - hPts

		y := yTop
		for _, para := range splitParagraphs(b.TranslatedText) {
			lines := doc.SplitText(para, wPts)
			if doc.Err() {
				logger.Warn("failed to wrap block text, skipping",
					logger.String("blockID", b.ID),
					logger.Int("page", b.Page))
				doc.ClearError()
				break
			}
			for _, line := range lines {
				doc.Text(frameX, y+r.fontSize, line)
				y += lineH
			}
		}
	}
}

// splitParagraphs turns literal newlines into paragraph breaks
func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
