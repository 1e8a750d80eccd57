package pdf

import (
	"context"
	"sync"

	"layout-translator/internal/logger"
)

// Extractor 提取一个 chunk 页范围内的定位文本块
type Extractor interface {
	Extract(ctx context.Context, pdfPath string, chunk Chunk) ([]Block, error)
}

// Translator 将合并单元翻译为定位段落
type Translator interface {
	Translate(ctx context.Context, units []MergedBlock, index BlockIndex) ([]TranslatedBlock, error)
}

// PageRenderer 渲染单页并返回其 PDF 字节
type PageRenderer interface {
	RenderPage(pdfPath string, page int, blocks []TranslatedBlock) ([]byte, error)
}

// DocumentChunker 将文档划分为页范围
type DocumentChunker interface {
	Split(pdfPath string) ([]Chunk, int, error)
}

// DocumentExporter 组装最终文档
type DocumentExporter interface {
	Save(pageMap map[int][]byte, totalPages int, outputPath string) error
}

// RunReport summarizes one pipeline run: what was produced and what was
// dropped along the way.
type RunReport struct {
	mu            sync.Mutex
	TotalPages    int
	RenderedPages int
	SkippedPages  []int
	SkippedUnits  []string
	CachedAtStart int
}

// AddSkippedUnit records a merged unit dropped during translation
func (r *RunReport) AddSkippedUnit(unitID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SkippedUnits = append(r.SkippedUnits, unitID)
}

// addSkippedPage records a page that failed to render
func (r *RunReport) addSkippedPage(page int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SkippedPages = append(r.SkippedPages, page)
}

// Orchestrator 按 chunk 驱动整条流水线:提取、合并、翻译、渲染,
// 最后把所有 chunk 的页面汇总交给导出器。
type Orchestrator struct {
	chunker     DocumentChunker
	extractor   Extractor
	merger      *BlockMerger
	translator  Translator
	renderer    PageRenderer
	exporter    DocumentExporter
	concurrency int
	progress    ProgressCallback
	report      *RunReport
}

// OrchestratorConfig holds the collaborators for a pipeline run
type OrchestratorConfig struct {
	Chunker     DocumentChunker
	Extractor   Extractor
	Translator  Translator
	Renderer    PageRenderer
	Exporter    DocumentExporter
	Concurrency int
	Progress    ProgressCallback
	// Report, when set, is the report the run accumulates into. Callbacks
	// wired before the run (such as a translator's skip callback) can write
	// to the same instance.
	Report *RunReport
}

// DefaultPipelineConcurrency bounds parallel chunk processing
const DefaultPipelineConcurrency = 3

// NewOrchestrator creates an orchestrator
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultPipelineConcurrency
	}
	report := cfg.Report
	if report == nil {
		report = &RunReport{}
	}
	return &Orchestrator{
		chunker:     cfg.Chunker,
		extractor:   cfg.Extractor,
		merger:      NewBlockMerger(),
		translator:  cfg.Translator,
		renderer:    cfg.Renderer,
		exporter:    cfg.Exporter,
		concurrency: concurrency,
		progress:    cfg.Progress,
		report:      report,
	}
}

// Report returns the report the next Run accumulates into
func (o *Orchestrator) Report() *RunReport {
	return o.report
}

// ProcessChunk 处理单个 chunk,返回该范围内成功渲染的页面。
// 任一阶段产出为空则直接返回空结果;渲染失败只跳过对应页面。
func (o *Orchestrator) ProcessChunk(ctx context.Context, pdfPath string, chunk Chunk, report *RunReport) (map[int][]byte, error) {
	blocks, err := o.extractor.Extract(ctx, pdfPath, chunk)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		logger.Debug("chunk contained no text",
			logger.Int("startPage", chunk.StartPage),
			logger.Int("endPage", chunk.EndPage))
		return map[int][]byte{}, nil
	}

	index := NewBlockIndex(blocks)
	merged := o.merger.Merge(blocks)
	if len(merged) == 0 {
		return map[int][]byte{}, nil
	}

	translated, err := o.translator.Translate(ctx, merged, index)
	if err != nil {
		return nil, err
	}
	if len(translated) == 0 {
		return map[int][]byte{}, nil
	}

	byPage := make(map[int][]TranslatedBlock)
	for _, tb := range translated {
		byPage[tb.Page] = append(byPage[tb.Page], tb)
	}

	pageMap := make(map[int][]byte, len(byPage))
	for page, pageBlocks := range byPage {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rendered, err := o.renderer.RenderPage(pdfPath, page, pageBlocks)
		if err != nil {
			logger.Warn("page rendering failed, skipping page",
				logger.Int("page", page),
				logger.Err(err))
			if report != nil {
				report.addSkippedPage(page)
			}
			continue
		}
		pageMap[page] = rendered
	}
	return pageMap, nil
}

// Run 执行完整的翻译流水线并导出结果文档
func (o *Orchestrator) Run(ctx context.Context, inputPath, outputPath string) (*RunReport, error) {
	chunks, totalPages, err := o.chunker.Split(inputPath)
	if err != nil {
		return nil, err
	}

	report := o.report
	report.mu.Lock()
	report.TotalPages = totalPages
	report.mu.Unlock()
	logger.Info("starting translation run",
		logger.String("input", inputPath),
		logger.Int("totalPages", totalPages),
		logger.Int("chunks", len(chunks)),
		logger.Int("concurrency", o.concurrency))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type chunkResult struct {
		pageMap map[int][]byte
		err     error
	}
	results := make([]chunkResult, len(chunks))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency)
	var completed int
	var progressMu sync.Mutex

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk Chunk) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				results[i] = chunkResult{err: runCtx.Err()}
				return
			}
			if runCtx.Err() != nil {
				results[i] = chunkResult{err: runCtx.Err()}
				return
			}

			pageMap, err := o.ProcessChunk(runCtx, inputPath, chunk, report)
			results[i] = chunkResult{pageMap: pageMap, err: err}
			if err != nil && IsFatal(err) {
				cancel()
				return
			}

			progressMu.Lock()
			completed++
			done := completed
			progressMu.Unlock()
			if o.progress != nil {
				o.progress(done, len(chunks))
			}
		}(i, chunk)
	}
	wg.Wait()

	// chunk 顺序即页面顺序;先报告致命错误
	pageMap := make(map[int][]byte)
	for i, res := range results {
		if res.err != nil {
			if IsFatal(res.err) {
				return nil, res.err
			}
			logger.Warn("chunk processing failed, its pages are omitted",
				logger.Int("startPage", chunks[i].StartPage),
				logger.Int("endPage", chunks[i].EndPage),
				logger.Err(res.err))
			continue
		}
		for page, data := range res.pageMap {
			pageMap[page] = data
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.RenderedPages = len(pageMap)
	if len(pageMap) == 0 {
		return report, NewPDFError(ErrExportFailed, "no pages were translated", nil)
	}

	if err := o.exporter.Save(pageMap, totalPages, outputPath); err != nil {
		return report, err
	}

	logger.Info("translation run completed",
		logger.String("output", outputPath),
		logger.Int("renderedPages", report.RenderedPages),
		logger.Int("skippedPages", len(report.SkippedPages)),
		logger.Int("skippedUnits", len(report.SkippedUnits)))

	return report, nil
}
