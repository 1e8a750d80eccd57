// pdftranslate translates a PDF document while preserving its layout:
// text is extracted with its positions, merged into paragraphs, translated
// in batches and re-rendered at the original coordinates.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"layout-translator/internal/config"
	"layout-translator/internal/llm"
	"layout-translator/internal/logger"
	"layout-translator/internal/pdf"
	"layout-translator/internal/settings"
)

func main() {
	var (
		inputPath    = flag.String("input", "", "input PDF file (required)")
		outputPath   = flag.String("output", "", "output PDF file (default: <input>.translated.pdf)")
		configPath   = flag.String("config", config.DefaultConfigFileName, "config file path")
		sourceLang   = flag.String("source-lang", "", "source language (default from config)")
		targetLang   = flag.String("target-lang", "", "target language (default from config)")
		tone         = flag.String("tone", "", "translation tone: formal or friendly")
		glossaryPath = flag.String("glossary", "", "CSV glossary file with source,target term pairs")
		extractor    = flag.String("extractor", "native", "extraction backend: native or azure")
		fontName     = flag.String("font-name", "", "font name for rendered text")
		fontPath     = flag.String("font-path", "", "TTF font file for rendered text")
		fontSize     = flag.Float64("font-size", 0, "font size in points")
		chunkSize    = flag.Int("chunk-size", 0, "pages per extraction chunk")
		concurrency  = flag.Int("concurrency", 0, "concurrent chunk pipelines")
		cachePath    = flag.String("cache", "", "translation cache file (empty disables caching)")
		logLevel     = flag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: pdftranslate -input <file.pdf> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{Level: parseLogLevel(*logLevel), EnableConsole: true}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	opts := options{
		inputPath:    *inputPath,
		outputPath:   *outputPath,
		configPath:   *configPath,
		sourceLang:   *sourceLang,
		targetLang:   *targetLang,
		tone:         *tone,
		glossaryPath: *glossaryPath,
		extractor:    *extractor,
		fontName:     *fontName,
		fontPath:     *fontPath,
		fontSize:     *fontSize,
		chunkSize:    *chunkSize,
		concurrency:  *concurrency,
		cachePath:    *cachePath,
	}
	if err := run(opts); err != nil {
		logger.Error("translation failed", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

// options collects the resolved command line flags
type options struct {
	inputPath    string
	outputPath   string
	configPath   string
	sourceLang   string
	targetLang   string
	tone         string
	glossaryPath string
	extractor    string
	fontName     string
	fontPath     string
	fontSize     float64
	chunkSize    int
	concurrency  int
	cachePath    string
}

func run(opts options) error {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := config.NewManager(opts.configPath)
	if err != nil {
		return err
	}
	if err := manager.Load(); err != nil {
		return err
	}
	cfg := manager.Get()

	// flag 覆盖配置文件
	if opts.sourceLang != "" {
		cfg.SourceLanguage = opts.sourceLang
	}
	if opts.targetLang != "" {
		cfg.TargetLanguage = opts.targetLang
	}
	if opts.fontName != "" {
		cfg.FontName = opts.fontName
	}
	if opts.fontPath != "" {
		cfg.FontPath = opts.fontPath
	}
	if opts.fontSize > 0 {
		cfg.FontSize = opts.fontSize
	}
	if opts.chunkSize > 0 {
		cfg.ChunkSize = opts.chunkSize
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}
	if err := manager.Validate(); err != nil {
		return err
	}

	outputPath := opts.outputPath
	if outputPath == "" {
		outputPath = defaultOutputPath(opts.inputPath)
	}

	client := llm.NewChatClient(llm.ChatClientConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})

	var cache *pdf.TranslationCache
	if opts.cachePath != "" {
		cache = pdf.NewTranslationCache(opts.cachePath, cfg.TargetLanguage)
		if err := cache.Load(); err != nil {
			logger.Warn("failed to load translation cache, starting empty", logger.Err(err))
		}
	}

	// 跳过的单元直接写入流水线自身的报告
	report := &pdf.RunReport{}
	translator := pdf.NewBatchTranslator(pdf.BatchTranslatorConfig{
		Client:         client,
		SourceLanguage: cfg.SourceLanguage,
		TargetLanguage: cfg.TargetLanguage,
		BatchSize:      cfg.BatchSize,
		MaxRetries:     cfg.MaxRetries,
		Cache:          cache,
		OnSkip: func(u pdf.MergedBlock, err error) {
			report.AddSkippedUnit(u.ID)
		},
	})

	applyLocalSettings(translator, opts.tone, opts.glossaryPath)

	var extract pdf.Extractor
	switch opts.extractor {
	case "azure":
		if cfg.AzureDIEndpoint == "" || cfg.AzureDIKey == "" {
			return fmt.Errorf("azure extractor requires AZURE_DI_ENDPOINT and AZURE_DI_KEY")
		}
		extract = pdf.NewAzureExtractor(cfg.AzureDIEndpoint, cfg.AzureDIKey)
	case "native":
		extract = pdf.NewNativeExtractor()
	default:
		return fmt.Errorf("unknown extractor %q, expected native or azure", opts.extractor)
	}

	renderer := pdf.NewLayoutRenderer(pdf.LayoutRendererConfig{
		Rasterizer: pdf.NewPopplerRasterizer(),
		FontName:   cfg.FontName,
		FontPath:   cfg.FontPath,
		FontSize:   cfg.FontSize,
	})

	orchestrator := pdf.NewOrchestrator(pdf.OrchestratorConfig{
		Chunker:     pdf.NewChunker(cfg.ChunkSize),
		Extractor:   extract,
		Translator:  translator,
		Renderer:    renderer,
		Exporter:    pdf.NewExporter(),
		Concurrency: cfg.Concurrency,
		Report:      report,
		Progress: func(completed, total int) {
			fmt.Printf("chunks: %d/%d\n", completed, total)
		},
	})

	start := time.Now()
	runReport, err := orchestrator.Run(ctx, opts.inputPath, outputPath)
	if cache != nil {
		if serr := cache.Save(); serr != nil {
			logger.Warn("failed to save translation cache", logger.Err(serr))
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("Translated %d of %d pages to %s in %s\n",
		runReport.RenderedPages, runReport.TotalPages, outputPath, time.Since(start).Round(time.Second))
	if len(runReport.SkippedPages) > 0 {
		fmt.Printf("Skipped pages: %v\n", runReport.SkippedPages)
	}
	if len(runReport.SkippedUnits) > 0 {
		fmt.Printf("Skipped %d paragraphs; see log for details\n", len(runReport.SkippedUnits))
	}
	return nil
}

// applyLocalSettings merges persisted tone/glossary settings with flags and
// pushes them into the translator.
func applyLocalSettings(translator *pdf.BatchTranslator, tone, glossaryPath string) {
	sm, err := settings.NewManager()
	var local settings.LocalSettings
	if err == nil {
		local = sm.Get()
	} else {
		local = settings.LocalSettings{Tone: settings.ToneFormal}
	}

	if tone != "" {
		local.Tone = tone
	}
	if glossaryPath != "" {
		local.GlossaryPath = glossaryPath
	}

	var glossary map[string]string
	if local.GlossaryPath != "" {
		glossary, err = settings.LoadGlossary(local.GlossaryPath)
		if err != nil {
			logger.Warn("failed to load glossary", logger.Err(err))
		}
	}

	translator.UpdateSettings(local.Tone, glossary)
}

// defaultOutputPath derives <name>.translated.pdf from the input path
func defaultOutputPath(inputPath string) string {
	const ext = ".pdf"
	base := inputPath
	if len(base) > len(ext) && base[len(base)-len(ext):] == ext {
		base = base[:len(base)-len(ext)]
	}
	return base + ".translated" + ext
}
