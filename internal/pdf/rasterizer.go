package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"layout-translator/internal/logger"
)

// rasterBaseDPI is the rendering resolution at scale 1.0
const rasterBaseDPI = 72

// PopplerRasterizer renders pages to PNG by shelling out to pdftoppm.
// When the binary is unavailable every page degrades to a plain white
// background of the page's size.
type PopplerRasterizer struct {
	binary string
}

// NewPopplerRasterizer locates pdftoppm on PATH; binary is empty when absent
func NewPopplerRasterizer() *PopplerRasterizer {
	path, err := exec.LookPath("pdftoppm")
	if err != nil {
		logger.Warn("pdftoppm not found, page backgrounds will be blank")
		return &PopplerRasterizer{}
	}
	return &PopplerRasterizer{binary: path}
}

// Available reports whether pdftoppm was found
func (r *PopplerRasterizer) Available() bool {
	return r.binary != ""
}

// RasterizePage renders one 1-based page of pdfPath to PNG bytes
func (r *PopplerRasterizer) RasterizePage(pdfPath string, page int, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 1.0
	}

	if r.binary == "" {
		return r.whitePage(pdfPath, page, scale)
	}

	tmpDir, err := os.MkdirTemp("", "pdfraster")
	if err != nil {
		return nil, NewPDFError(ErrRenderFailed, "failed to create temp directory", err)
	}
	defer os.RemoveAll(tmpDir)

	outPrefix := filepath.Join(tmpDir, "page")
	dpi := int(float64(rasterBaseDPI) * scale)
	cmd := exec.Command(r.binary,
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-png",
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		pdfPath, outPrefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, &PDFError{
			Code:    ErrRenderFailed,
			Message: "pdftoppm failed",
			Details: string(out),
			Page:    page,
			Cause:   err,
		}
	}

	data, err := os.ReadFile(outPrefix + ".png")
	if err != nil {
		return nil, NewPDFError(ErrRenderFailed, "failed to read rasterized page", err)
	}
	return data, nil
}

// whitePage produces a white PNG matching the page's dimensions
func (r *PopplerRasterizer) whitePage(pdfPath string, page int, scale float64) ([]byte, error) {
	w, h, err := pageSize(pdfPath, page)
	if err != nil {
		return nil, err
	}
	return whitePNG(int(w*scale), int(h*scale))
}

// whitePNG encodes a solid white image of the given pixel size
func whitePNG(w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	white := color.RGBA{255, 255, 255, 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, white)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
