package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"layout-translator/internal/logger"
)

const (
	// azureAPIVersion is the Document Intelligence REST API version
	azureAPIVersion = "2024-02-29-preview"
	// azureModelID is the layout model used for line extraction
	azureModelID = "prebuilt-read"
	// azurePollInterval is the delay between analyze-result polls
	azurePollInterval = 2 * time.Second
	// azurePollTimeout bounds one chunk's analysis
	azurePollTimeout = 5 * time.Minute
)

// AzureExtractor 通过 Azure Document Intelligence 识别扫描版 PDF 的文本行。
// 每个 chunk 的页范围先裁剪为子文档提交,返回的页码换算回原文档的全局页码。
type AzureExtractor struct {
	endpoint string
	key      string
	client   *http.Client
}

// NewAzureExtractor creates an extractor backed by a Document Intelligence
// resource
func NewAzureExtractor(endpoint, key string) *AzureExtractor {
	return &AzureExtractor{
		endpoint: endpoint,
		key:      key,
		client:   &http.Client{},
	}
}

// analyzeResponse is the subset of the analyze-result payload the pipeline
// consumes
type analyzeResponse struct {
	Status        string `json:"status"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	AnalyzeResult struct {
		Pages []struct {
			PageNumber int     `json:"pageNumber"`
			Unit       string  `json:"unit"`
			Width      float64 `json:"width"`
			Height     float64 `json:"height"`
			Lines      []struct {
				Content string    `json:"content"`
				Polygon []float64 `json:"polygon"`
			} `json:"lines"`
		} `json:"pages"`
	} `json:"analyzeResult"`
}

// Extract 提取 chunk 页范围内的文本块
func (e *AzureExtractor) Extract(ctx context.Context, pdfPath string, chunk Chunk) ([]Block, error) {
	subset, cleanup, err := e.trimChunk(pdfPath, chunk)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	operationURL, err := e.submit(ctx, subset)
	if err != nil {
		return nil, err
	}

	result, err := e.poll(ctx, operationURL)
	if err != nil {
		return nil, err
	}

	return e.toBlocks(result, chunk), nil
}

// trimChunk writes the chunk's pages to a temporary sub-document
func (e *AzureExtractor) trimChunk(pdfPath string, chunk Chunk) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "dichunk")
	if err != nil {
		return "", nil, NewPDFError(ErrExtractFailed, "failed to create temp directory", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	subset := filepath.Join(tmpDir, fmt.Sprintf("chunk_%d.pdf", chunk.ID))
	pageRange := []string{fmt.Sprintf("%d-%d", chunk.StartPage, chunk.EndPage)}
	if err := api.TrimFile(pdfPath, subset, pageRange, nil); err != nil {
		cleanup()
		return "", nil, NewPDFError(ErrExtractFailed, "failed to trim chunk pages", err)
	}
	return subset, cleanup, nil
}

// submit posts the sub-document for analysis and returns the operation URL
func (e *AzureExtractor) submit(ctx context.Context, subsetPath string) (string, error) {
	data, err := os.ReadFile(subsetPath)
	if err != nil {
		return "", NewPDFError(ErrExtractFailed, "failed to read chunk file", err)
	}

	reqBody, err := json.Marshal(map[string]string{
		"base64Source": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", NewPDFError(ErrExtractFailed, "failed to encode analyze request", err)
	}

	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		e.endpoint, azureModelID, azureAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", NewPDFError(ErrExtractFailed, "failed to create analyze request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", e.key)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", NewPDFError(ErrAPIFailed, "analyze request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", &PDFError{
			Code:    ErrAPIFailed,
			Message: fmt.Sprintf("analyze request rejected with status %d", resp.StatusCode),
			Details: string(body),
		}
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", NewPDFError(ErrAPIFailed, "analyze response missing Operation-Location", nil)
	}
	return operationURL, nil
}

// poll waits for the analysis to complete
func (e *AzureExtractor) poll(ctx context.Context, operationURL string) (*analyzeResponse, error) {
	pollCtx, cancel := context.WithTimeout(ctx, azurePollTimeout)
	defer cancel()

	for {
		req, err := http.NewRequestWithContext(pollCtx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, NewPDFError(ErrAPIFailed, "failed to create poll request", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", e.key)

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, NewPDFError(ErrAPIFailed, "poll request failed", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, NewPDFError(ErrAPIFailed, "failed to read poll response", err)
		}

		var result analyzeResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, NewPDFError(ErrAPIFailed, "failed to parse poll response", err)
		}

		switch result.Status {
		case "succeeded":
			return &result, nil
		case "failed":
			detail := ""
			if result.Error != nil {
				detail = result.Error.Message
			}
			return nil, &PDFError{Code: ErrAPIFailed, Message: "document analysis failed", Details: detail}
		}

		if err := sleepContext(pollCtx, azurePollInterval); err != nil {
			return nil, NewPDFError(ErrAPIFailed, "analysis timed out", err)
		}
	}
}

// toBlocks converts analyze-result lines to Blocks with global page numbers
func (e *AzureExtractor) toBlocks(result *analyzeResponse, chunk Chunk) []Block {
	var blocks []Block
	for _, page := range result.AnalyzeResult.Pages {
		globalPage := chunk.StartPage + page.PageNumber - 1
		if globalPage > chunk.EndPage {
			logger.Warn("analysis returned page beyond chunk range",
				logger.Int("page", page.PageNumber))
			continue
		}
		for _, line := range page.Lines {
			if line.Content == "" {
				continue
			}
			bbox, ok := polygonToBBox(line.Polygon)
			if !ok {
				continue
			}
			blocks = append(blocks, Block{
				ID:   uuid.NewString(),
				Text: line.Content,
				BBox: bbox,
				Page: globalPage,
			})
		}
	}
	return blocks
}

// polygonToBBox computes the axis-aligned box of a [x1 y1 x2 y2 ...] polygon
func polygonToBBox(polygon []float64) (BoundingBox, bool) {
	if len(polygon) < 4 || len(polygon)%2 != 0 {
		return BoundingBox{}, false
	}
	minX, minY := polygon[0], polygon[1]
	maxX, maxY := polygon[0], polygon[1]
	for i := 2; i < len(polygon); i += 2 {
		minX = min(minX, polygon[i])
		maxX = max(maxX, polygon[i])
		minY = min(minY, polygon[i+1])
		maxY = max(maxY, polygon[i+1])
	}
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
