// Package pdf implements the layout preserving translation pipeline:
// extraction of positioned text, spatial merging into paragraphs, batch
// translation, and re-rendering translated text at the original positions.
package pdf

import (
	"errors"
	"fmt"

	"layout-translator/internal/llm"
	"layout-translator/internal/types"
)

// PointsPerInch converts between PDF points and inches
const PointsPerInch = 72.0

// BoundingBox is an axis-aligned rectangle in inches with a top-left origin:
// X grows rightward, Y grows downward from the top of the page.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Union returns the smallest box covering both b and other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	x0 := min(b.X, other.X)
	y0 := min(b.Y, other.Y)
	x1 := max(b.X+b.Width, other.X+other.Width)
	y1 := max(b.Y+b.Height, other.Y+other.Height)
	return BoundingBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Right returns the x coordinate of the right edge
func (b BoundingBox) Right() float64 { return b.X + b.Width }

// Bottom returns the y coordinate of the bottom edge
func (b BoundingBox) Bottom() float64 { return b.Y + b.Height }

// Block 是从页面提取的一个定位文本片段
type Block struct {
	ID   string      `json:"id"`
	Text string      `json:"text"`
	BBox BoundingBox `json:"bbox"`
	Page int         `json:"page"` // 1-based
}

// MergedBlock is a paragraph produced by spatially merging adjacent blocks.
// SourceIDs preserves, in merge order, the ids of the blocks it was built from.
type MergedBlock struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	SourceIDs []string `json:"source_ids"`
	Page      int      `json:"page"`
}

// TranslatedBlock carries a translated paragraph and the region it must be
// rendered into. BBox is the union of the source blocks' boxes.
type TranslatedBlock struct {
	ID             string      `json:"id"`
	OriginalText   string      `json:"original_text"`
	TranslatedText string      `json:"translated_text"`
	BBox           BoundingBox `json:"bbox"`
	Page           int         `json:"page"`
}

// Chunk is a contiguous page range processed as one unit. Pages are 1-based
// and the range is inclusive.
type Chunk struct {
	ID        int `json:"id"`
	StartPage int `json:"start_page"`
	EndPage   int `json:"end_page"`
}

// PageCount returns the number of pages in the chunk
func (c Chunk) PageCount() int { return c.EndPage - c.StartPage + 1 }

// BlockIndex maps block id to the extracted block, for bbox lookups after
// merging and translation.
type BlockIndex map[string]Block

// NewBlockIndex builds an index over extracted blocks
func NewBlockIndex(blocks []Block) BlockIndex {
	idx := make(BlockIndex, len(blocks))
	for _, b := range blocks {
		idx[b.ID] = b
	}
	return idx
}

// 错误代码
const (
	ErrPDFNotFound     = "PDF_NOT_FOUND"
	ErrPDFInvalid      = "PDF_INVALID"
	ErrExtractFailed   = "EXTRACT_FAILED"
	ErrTranslateFailed = "TRANSLATE_FAILED"
	ErrRenderFailed    = "RENDER_FAILED"
	ErrExportFailed    = "EXPORT_FAILED"
	ErrCacheFailed     = "CACHE_FAILED"
	ErrAPIFailed       = "API_FAILED"
	ErrCancelled       = "CANCELLED"
)

// PDFError 表示处理过程中的错误
type PDFError struct {
	Code    string
	Message string
	Details string
	Page    int // 0 when not page-scoped
	Cause   error
}

// Error implements the error interface
func (e *PDFError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Page > 0 {
		msg = fmt.Sprintf("%s (page %d)", msg, e.Page)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// NewPDFError creates a new PDFError
func NewPDFError(code, message string, cause error) *PDFError {
	return &PDFError{Code: code, Message: message, Cause: cause}
}

// IsFatal reports whether err should abort the whole run rather than be
// absorbed at unit or page scope. Fatal errors are a missing model or
// deployment, and configuration errors.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *llm.Error
	if errors.As(err, &se) && se.Kind == llm.KindNotFound {
		return true
	}
	var ae *types.AppError
	if errors.As(err, &ae) && ae.Code == types.ErrConfig {
		return true
	}
	return false
}
