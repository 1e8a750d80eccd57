package pdf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"layout-translator/internal/llm"
)

type fakeChunker struct {
	chunks     []Chunk
	totalPages int
	err        error
}

func (f *fakeChunker) Split(pdfPath string) ([]Chunk, int, error) {
	return f.chunks, f.totalPages, f.err
}

type fakeExtractor struct {
	mu     sync.Mutex
	blocks map[int][]Block // keyed by chunk id
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, pdfPath string, chunk Chunk) ([]Block, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.blocks[chunk.ID], nil
}

type fakeTranslator struct {
	err error
}

func (f *fakeTranslator) Translate(ctx context.Context, units []MergedBlock, index BlockIndex) ([]TranslatedBlock, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []TranslatedBlock
	for _, u := range units {
		first := index[u.SourceIDs[0]]
		out = append(out, TranslatedBlock{
			ID:             u.ID,
			OriginalText:   u.Text,
			TranslatedText: "T:" + u.Text,
			BBox:           first.BBox,
			Page:           u.Page,
		})
	}
	return out, nil
}

type fakeRenderer struct {
	failPages map[int]bool
}

func (f *fakeRenderer) RenderPage(pdfPath string, page int, blocks []TranslatedBlock) ([]byte, error) {
	if f.failPages[page] {
		return nil, &PDFError{Code: ErrRenderFailed, Message: "boom", Page: page}
	}
	return []byte(fmt.Sprintf("rendered page %d", page)), nil
}

type fakeExporter struct {
	saved      map[int][]byte
	totalPages int
	outputPath string
	err        error
}

func (f *fakeExporter) Save(pageMap map[int][]byte, totalPages int, outputPath string) error {
	f.saved = pageMap
	f.totalPages = totalPages
	f.outputPath = outputPath
	return f.err
}

func chunkBlocks(chunk Chunk, linesPerPage int) []Block {
	var blocks []Block
	for p := chunk.StartPage; p <= chunk.EndPage; p++ {
		for l := 0; l < linesPerPage; l++ {
			blocks = append(blocks, Block{
				ID:   fmt.Sprintf("p%d_l%d", p, l),
				Text: fmt.Sprintf("page %d line %d.", p, l),
				BBox: box(1.0, float64(l), 3.0, 0.2),
				Page: p,
			})
		}
	}
	return blocks
}

func TestRunHappyPath(t *testing.T) {
	chunks := []Chunk{
		{ID: 0, StartPage: 1, EndPage: 2},
		{ID: 1, StartPage: 3, EndPage: 4},
	}
	extractor := &fakeExtractor{blocks: map[int][]Block{
		0: chunkBlocks(chunks[0], 2),
		1: chunkBlocks(chunks[1], 2),
	}}
	exporter := &fakeExporter{}
	o := NewOrchestrator(OrchestratorConfig{
		Chunker:    &fakeChunker{chunks: chunks, totalPages: 4},
		Extractor:  extractor,
		Translator: &fakeTranslator{},
		Renderer:   &fakeRenderer{},
		Exporter:   exporter,
	})

	report, err := o.Run(context.Background(), "in.pdf", "out.pdf")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RenderedPages != 4 {
		t.Errorf("rendered pages = %d, want 4", report.RenderedPages)
	}
	if len(exporter.saved) != 4 || exporter.totalPages != 4 {
		t.Errorf("exported %d pages of %d", len(exporter.saved), exporter.totalPages)
	}
	if exporter.outputPath != "out.pdf" {
		t.Errorf("output path = %q", exporter.outputPath)
	}
	if extractor.calls != 2 {
		t.Errorf("extractor calls = %d, want 2", extractor.calls)
	}
}

func TestRunSkipsFailedPages(t *testing.T) {
	chunks := []Chunk{{ID: 0, StartPage: 1, EndPage: 3}}
	extractor := &fakeExtractor{blocks: map[int][]Block{0: chunkBlocks(chunks[0], 1)}}
	exporter := &fakeExporter{}
	o := NewOrchestrator(OrchestratorConfig{
		Chunker:    &fakeChunker{chunks: chunks, totalPages: 3},
		Extractor:  extractor,
		Translator: &fakeTranslator{},
		Renderer:   &fakeRenderer{failPages: map[int]bool{2: true}},
		Exporter:   exporter,
	})

	report, err := o.Run(context.Background(), "in.pdf", "out.pdf")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RenderedPages != 2 {
		t.Errorf("rendered pages = %d, want 2", report.RenderedPages)
	}
	if len(report.SkippedPages) != 1 || report.SkippedPages[0] != 2 {
		t.Errorf("skipped pages = %v, want [2]", report.SkippedPages)
	}
	if _, ok := exporter.saved[2]; ok {
		t.Error("failed page must not be exported")
	}
}

func TestRunFatalErrorAborts(t *testing.T) {
	chunks := []Chunk{
		{ID: 0, StartPage: 1, EndPage: 2},
		{ID: 1, StartPage: 3, EndPage: 4},
	}
	extractor := &fakeExtractor{blocks: map[int][]Block{
		0: chunkBlocks(chunks[0], 1),
		1: chunkBlocks(chunks[1], 1),
	}}
	exporter := &fakeExporter{}
	fatal := &llm.Error{Kind: llm.KindNotFound, StatusCode: 404, Message: "model gone"}
	o := NewOrchestrator(OrchestratorConfig{
		Chunker:    &fakeChunker{chunks: chunks, totalPages: 4},
		Extractor:  extractor,
		Translator: &fakeTranslator{err: fatal},
		Renderer:   &fakeRenderer{},
		Exporter:   exporter,
	})

	_, err := o.Run(context.Background(), "in.pdf", "out.pdf")
	if err == nil {
		t.Fatal("expected fatal error")
	}
	var se *llm.Error
	if !errors.As(err, &se) || se.Kind != llm.KindNotFound {
		t.Errorf("unexpected error: %v", err)
	}
	if exporter.saved != nil {
		t.Error("no output must be written on fatal abort")
	}
}

func TestRunNonFatalChunkErrorContinues(t *testing.T) {
	chunks := []Chunk{
		{ID: 0, StartPage: 1, EndPage: 1},
		{ID: 1, StartPage: 2, EndPage: 2},
	}
	// Chunk 0 extracts fine; chunk 1 has no entry so it yields no blocks.
	extractor := &fakeExtractor{blocks: map[int][]Block{0: chunkBlocks(chunks[0], 1)}}
	exporter := &fakeExporter{}
	o := NewOrchestrator(OrchestratorConfig{
		Chunker:    &fakeChunker{chunks: chunks, totalPages: 2},
		Extractor:  extractor,
		Translator: &fakeTranslator{},
		Renderer:   &fakeRenderer{},
		Exporter:   exporter,
	})

	report, err := o.Run(context.Background(), "in.pdf", "out.pdf")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RenderedPages != 1 {
		t.Errorf("rendered pages = %d, want 1", report.RenderedPages)
	}
}

func TestRunNoPagesFails(t *testing.T) {
	chunks := []Chunk{{ID: 0, StartPage: 1, EndPage: 1}}
	o := NewOrchestrator(OrchestratorConfig{
		Chunker:    &fakeChunker{chunks: chunks, totalPages: 1},
		Extractor:  &fakeExtractor{},
		Translator: &fakeTranslator{},
		Renderer:   &fakeRenderer{},
		Exporter:   &fakeExporter{},
	})

	_, err := o.Run(context.Background(), "in.pdf", "out.pdf")
	if err == nil {
		t.Fatal("expected error when nothing was translated")
	}
	var pe *PDFError
	if !errors.As(err, &pe) || pe.Code != ErrExportFailed {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	chunks := []Chunk{{ID: 0, StartPage: 1, EndPage: 1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(OrchestratorConfig{
		Chunker:    &fakeChunker{chunks: chunks, totalPages: 1},
		Extractor:  &fakeExtractor{blocks: map[int][]Block{0: chunkBlocks(chunks[0], 1)}},
		Translator: &fakeTranslator{},
		Renderer:   &fakeRenderer{},
		Exporter:   &fakeExporter{},
	})

	_, err := o.Run(ctx, "in.pdf", "out.pdf")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestProcessChunkEmptyStages(t *testing.T) {
	o := NewOrchestrator(OrchestratorConfig{
		Extractor:  &fakeExtractor{},
		Translator: &fakeTranslator{},
		Renderer:   &fakeRenderer{},
	})

	pageMap, err := o.ProcessChunk(context.Background(), "in.pdf", Chunk{ID: 0, StartPage: 1, EndPage: 2}, nil)
	if err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	if len(pageMap) != 0 {
		t.Errorf("pageMap = %v, want empty", pageMap)
	}
}

func TestRunSharedReportCollectsSkippedUnits(t *testing.T) {
	chunks := []Chunk{{ID: 0, StartPage: 1, EndPage: 1}}
	report := &RunReport{}

	// A translator skip callback wired to the same report the run uses.
	translator := &skippingTranslator{report: report}
	o := NewOrchestrator(OrchestratorConfig{
		Chunker:    &fakeChunker{chunks: chunks, totalPages: 1},
		Extractor:  &fakeExtractor{blocks: map[int][]Block{0: chunkBlocks(chunks[0], 2)}},
		Translator: translator,
		Renderer:   &fakeRenderer{},
		Exporter:   &fakeExporter{},
		Report:     report,
	})

	got, err := o.Run(context.Background(), "in.pdf", "out.pdf")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != report {
		t.Error("Run must return the report it was configured with")
	}
	if len(got.SkippedUnits) != 1 || got.SkippedUnits[0] != "merged_p1_l0" {
		t.Errorf("skipped units = %v, want [merged_p1_l0]", got.SkippedUnits)
	}
	if got.RenderedPages != 1 || got.TotalPages != 1 {
		t.Errorf("report pages = %d/%d", got.RenderedPages, got.TotalPages)
	}
}

// skippingTranslator drops the first unit, reporting it skipped, and
// translates the rest.
type skippingTranslator struct {
	report *RunReport
	inner  fakeTranslator
}

func (s *skippingTranslator) Translate(ctx context.Context, units []MergedBlock, index BlockIndex) ([]TranslatedBlock, error) {
	if len(units) == 0 {
		return nil, nil
	}
	s.report.AddSkippedUnit(units[0].ID)
	return s.inner.Translate(ctx, units[1:], index)
}

func TestRunDeterministicPageMap(t *testing.T) {
	// Many chunks processed concurrently must still produce one entry per page.
	var chunks []Chunk
	blocks := map[int][]Block{}
	for i := 0; i < 8; i++ {
		c := Chunk{ID: i, StartPage: i + 1, EndPage: i + 1}
		chunks = append(chunks, c)
		blocks[i] = chunkBlocks(c, 1)
	}
	exporter := &fakeExporter{}
	o := NewOrchestrator(OrchestratorConfig{
		Chunker:     &fakeChunker{chunks: chunks, totalPages: 8},
		Extractor:   &fakeExtractor{blocks: blocks},
		Translator:  &fakeTranslator{},
		Renderer:    &fakeRenderer{},
		Exporter:    exporter,
		Concurrency: 4,
	})

	report, err := o.Run(context.Background(), "in.pdf", "out.pdf")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RenderedPages != 8 {
		t.Errorf("rendered pages = %d, want 8", report.RenderedPages)
	}
	for p := 1; p <= 8; p++ {
		want := fmt.Sprintf("rendered page %d", p)
		if string(exporter.saved[p]) != want {
			t.Errorf("page %d = %q, want %q", p, exporter.saved[p], want)
		}
	}
}
