package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"layout-translator/internal/logger"
)

// Exporter 将稀疏页面图组装为输出文档。缺失的页面被静默省略,
// 因此输出的页数可能少于原文档。
type Exporter struct{}

// NewExporter creates an exporter
func NewExporter() *Exporter {
	return &Exporter{}
}

// Save writes the rendered pages, in page order, to outputPath.
func (e *Exporter) Save(pageMap map[int][]byte, totalPages int, outputPath string) error {
	pages := orderedPages(pageMap, totalPages)
	if len(pages) == 0 {
		return NewPDFError(ErrExportFailed, "no rendered pages to export", nil)
	}

	if len(pages) < totalPages {
		logger.Warn("exporting incomplete document",
			logger.Int("renderedPages", len(pages)),
			logger.Int("totalPages", totalPages))
	}

	tmpDir, err := os.MkdirTemp("", "pdfexport")
	if err != nil {
		return NewPDFError(ErrExportFailed, "failed to create temp directory", err)
	}
	defer os.RemoveAll(tmpDir)

	files := make([]string, 0, len(pages))
	for _, page := range pages {
		path := filepath.Join(tmpDir, fmt.Sprintf("page_%04d.pdf", page))
		if err := os.WriteFile(path, pageMap[page], 0644); err != nil {
			return NewPDFError(ErrExportFailed, "failed to write page file", err)
		}
		files = append(files, path)
	}

	if err := api.MergeCreateFile(files, outputPath, false, nil); err != nil {
		return NewPDFError(ErrExportFailed, "failed to merge pages", err)
	}

	logger.Info("document exported",
		logger.String("path", outputPath),
		logger.Int("pages", len(pages)))
	return nil
}

// orderedPages returns the page numbers present in the map in ascending
// order, restricted to 1..totalPages.
func orderedPages(pageMap map[int][]byte, totalPages int) []int {
	var pages []int
	for p := 1; p <= totalPages; p++ {
		if _, ok := pageMap[p]; ok {
			pages = append(pages, p)
		}
	}
	return pages
}
