package pdf

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"layout-translator/internal/llm"
	"layout-translator/internal/logger"
	"layout-translator/internal/settings"
)

const (
	// BatchSeparator joins translated segments in the service response
	BatchSeparator = "|||"
	// DefaultBatchSize is the number of merged units per request
	DefaultBatchSize = 40
	// DefaultMaxRetries bounds batch retry attempts
	DefaultMaxRetries = 3
	// fallbackMaxRetries bounds the per-unit fallback path
	fallbackMaxRetries = 3
)

// segmentPrefix strips the "{n}. " numbering from response segments
var segmentPrefix = regexp.MustCompile(`^\d+\.\s*`)

// ProgressCallback 报告已完成/总单元数
type ProgressCallback func(completed, total int)

// SkipCallback is invoked for every unit dropped after its retries are
// exhausted.
type SkipCallback func(unit MergedBlock, err error)

// BatchTranslator 将合并后的段落分批发送给翻译服务并解析结构化响应。
// 批次失败时降级为单块翻译,单块仍失败则跳过该块。
type BatchTranslator struct {
	client     llm.Client
	sourceLang string
	targetLang string
	batchSize  int
	maxRetries int
	cache      *TranslationCache
	onSkip     SkipCallback

	mu           sync.RWMutex
	tone         string
	glossary     map[string]string
	batchPrompt  string
	singlePrompt string
}

// BatchTranslatorConfig holds configuration options for creating a BatchTranslator
type BatchTranslatorConfig struct {
	Client         llm.Client
	SourceLanguage string
	TargetLanguage string
	BatchSize      int
	MaxRetries     int
	Cache          *TranslationCache
	OnSkip         SkipCallback
}

// NewBatchTranslator creates a new BatchTranslator with the given configuration
func NewBatchTranslator(cfg BatchTranslatorConfig) *BatchTranslator {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	sourceLang := cfg.SourceLanguage
	if sourceLang == "" {
		sourceLang = "English"
	}
	targetLang := cfg.TargetLanguage
	if targetLang == "" {
		targetLang = "Korean"
	}

	b := &BatchTranslator{
		client:     cfg.Client,
		sourceLang: sourceLang,
		targetLang: targetLang,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		cache:      cfg.Cache,
		onSkip:     cfg.OnSkip,
		tone:       settings.ToneFormal,
	}
	b.rebuildPrompts()
	return b
}

// UpdateSettings 更新语气与术语表并重新生成系统提示词
func (b *BatchTranslator) UpdateSettings(tone string, glossary map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tone = tone
	b.glossary = glossary
	b.rebuildPrompts()
}

// rebuildPrompts regenerates both system prompts; callers hold b.mu or have
// exclusive access.
func (b *BatchTranslator) rebuildPrompts() {
	base := fmt.Sprintf(`You are a professional translator specializing in academic and scientific documents.
Your task is to translate text extracted from PDF documents from %s to %s.

CRITICAL RULES:
1. Translate the text content from %s to %s accurately.
2. Preserve any mathematical formulas, symbols, or special characters exactly as they are.
3. Do not add any explanations or notes - output only the translated text.`,
		b.sourceLang, b.targetLang, b.sourceLang, b.targetLang)

	base += "\n" + toneDirective(b.tone)
	if appendix := glossaryAppendix(b.glossary); appendix != "" {
		base += "\n" + appendix
	}

	batchFormat := fmt.Sprintf(`
BATCH FORMAT:
The input is a numbered list, one item per line: "1. text".
Return the translations as the same numbered list, concatenated with the literal separator "%s":
"1. translation %s 2. translation %s ...".
Every input item must appear exactly once in the output. Do not merge, drop or reorder items.`,
		BatchSeparator, BatchSeparator, BatchSeparator)

	b.batchPrompt = base + batchFormat
	b.singlePrompt = base
}

// toneDirective returns the register instruction for the configured tone
func toneDirective(tone string) string {
	if tone == settings.ToneFriendly {
		return "4. Use a friendly, informal register appropriate for general readers."
	}
	return "4. Use a formal, polite register appropriate for professional documents."
}

// glossaryAppendix renders the advisory term mapping, one pair per line
func glossaryAppendix(glossary map[string]string) string {
	if len(glossary) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("GLOSSARY (use these translations for the listed terms):\n")
	for _, src := range sortedKeys(glossary) {
		fmt.Fprintf(&sb, "- '%s': '%s'\n", src, glossary[src])
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Translate 翻译全部合并单元,index 用于恢复锚定的边界框。
// 失败的单元被跳过,只有致命错误会中止整个调用。
func (b *BatchTranslator) Translate(ctx context.Context, units []MergedBlock, index BlockIndex) ([]TranslatedBlock, error) {
	return b.TranslateWithProgress(ctx, units, index, nil)
}

// TranslateWithProgress 带进度回调的翻译
func (b *BatchTranslator) TranslateWithProgress(ctx context.Context, units []MergedBlock, index BlockIndex, progress ProgressCallback) ([]TranslatedBlock, error) {
	if len(units) == 0 {
		return nil, nil
	}

	results := make([]TranslatedBlock, 0, len(units))
	completed := 0
	total := len(units)

	report := func(n int) {
		completed += n
		if progress != nil {
			progress(completed, total)
		}
	}

	// 命中缓存的单元直接输出,空白单元直接丢弃,其余进入批次
	var pending []MergedBlock
	empty := 0
	for _, u := range units {
		if strings.TrimSpace(u.Text) == "" {
			empty++
			report(1)
			continue
		}
		if b.cache != nil {
			if cached, ok := b.cache.Get(u.Text); ok {
				if tb, ok := b.anchor(u, cached, index); ok {
					results = append(results, tb)
				}
				report(1)
				continue
			}
		}
		pending = append(pending, u)
	}

	batches := makeBatches(pending, b.batchSize)
	logger.Info("starting batch translation",
		logger.Int("totalUnits", total),
		logger.Int("cachedUnits", total-len(pending)-empty),
		logger.Int("emptyUnits", empty),
		logger.Int("batchCount", len(batches)))

	for batchIdx, batch := range batches {
		translations, err := b.translateBatchWithRetry(ctx, batch, batchIdx)
		if err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("batch translation failed, falling back to per-unit translation",
				logger.Int("batchIndex", batchIdx+1),
				logger.Int("unitsInBatch", len(batch)),
				logger.Err(err))
			translations, err = b.translateUnitsIndividually(ctx, batch)
			if err != nil {
				return nil, err
			}
		}

		for i, u := range batch {
			text, ok := translations[i]
			if !ok {
				continue
			}
			if b.cache != nil {
				b.cache.Set(u.Text, text)
			}
			if tb, ok := b.anchor(u, text, index); ok {
				results = append(results, tb)
			}
		}
		report(len(batch))
	}

	logger.Info("batch translation completed",
		logger.Int("totalUnits", total),
		logger.Int("translatedUnits", len(results)))

	return results, nil
}

// makeBatches splits units into fixed-size groups preserving order
func makeBatches(units []MergedBlock, size int) [][]MergedBlock {
	var batches [][]MergedBlock
	for start := 0; start < len(units); start += size {
		end := min(start+size, len(units))
		batches = append(batches, units[start:end])
	}
	return batches
}

// translateBatchWithRetry sends one batch, retrying per error category, and
// returns translations keyed by position in the batch.
func (b *BatchTranslator) translateBatchWithRetry(ctx context.Context, batch []MergedBlock, batchIdx int) (map[int]string, error) {
	b.mu.RLock()
	systemPrompt := b.batchPrompt
	b.mu.RUnlock()

	user := formatBatchRequest(batch)

	var lastErr error
	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := b.client.Complete(ctx, systemPrompt, user)
		if err == nil {
			segments, perr := parseBatchResponse(raw, len(batch))
			if perr == nil {
				out := make(map[int]string, len(segments))
				for i, s := range segments {
					out[i] = s
				}
				return out, nil
			}
			err = perr
		}
		lastErr = err

		policy, retryable := b.policyFor(err)
		if !retryable {
			return nil, err
		}
		if attempt < b.maxRetries {
			delay := policy.DelayFor(attempt - 1)
			logger.Debug("retrying batch after delay",
				logger.Int("batchIndex", batchIdx+1),
				logger.Int("attempt", attempt),
				logger.String("delay", delay.String()),
				logger.Err(err))
			if serr := sleepContext(ctx, delay); serr != nil {
				return nil, serr
			}
		}
	}
	return nil, lastErr
}

// parseMismatchError marks a response whose segment count differs from the batch
type parseMismatchError struct {
	got, want int
}

func (e *parseMismatchError) Error() string {
	return fmt.Sprintf("batch response segment count mismatch: got %d, want %d", e.got, e.want)
}

// policyFor selects the backoff policy for err; the second return value is
// false for errors that must not be retried at batch scope.
func (b *BatchTranslator) policyFor(err error) (RetryPolicy, bool) {
	var pm *parseMismatchError
	if errors.As(err, &pm) {
		return RetryPolicy{MaxAttempts: b.maxRetries, BaseDelay: time.Second, Multiplier: 1.5}, true
	}
	switch llm.KindOf(err) {
	case llm.KindRateLimited:
		return RetryPolicy{MaxAttempts: b.maxRetries, BaseDelay: 2 * time.Second, Multiplier: 2}, true
	case llm.KindTimeout:
		return RetryPolicy{MaxAttempts: b.maxRetries, BaseDelay: time.Second, Multiplier: 1.5}, true
	case llm.KindService:
		return RetryPolicy{MaxAttempts: b.maxRetries, BaseDelay: time.Second, Multiplier: 2}, true
	default:
		// bad request, not found, anything unexpected
		return RetryPolicy{}, false
	}
}

// sortedKeys returns the glossary's source terms in deterministic order
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatBatchRequest serializes a batch as a 1-based numbered list
func formatBatchRequest(batch []MergedBlock) string {
	var sb strings.Builder
	for i, u := range batch {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, u.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseBatchResponse splits a response on the separator and strips numbering.
// The segment count must equal expected exactly; partial results are never
// accepted.
func parseBatchResponse(raw string, expected int) ([]string, error) {
	parts := strings.Split(raw, BatchSeparator)
	if len(parts) != expected {
		return nil, &parseMismatchError{got: len(parts), want: expected}
	}
	segments := make([]string, len(parts))
	for i, p := range parts {
		segments[i] = segmentPrefix.ReplaceAllString(strings.TrimSpace(p), "")
	}
	return segments, nil
}

// translateUnitsIndividually is the per-unit fallback path. Units that still
// fail after their retries are skipped; only fatal errors propagate.
func (b *BatchTranslator) translateUnitsIndividually(ctx context.Context, batch []MergedBlock) (map[int]string, error) {
	b.mu.RLock()
	systemPrompt := b.singlePrompt
	b.mu.RUnlock()

	policy := RetryPolicy{MaxAttempts: fallbackMaxRetries, BaseDelay: 500 * time.Millisecond, Multiplier: 2}

	out := make(map[int]string, len(batch))
	for i, u := range batch {
		text, err := b.translateSingleUnit(ctx, systemPrompt, u, policy)
		if err != nil {
			if IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("dropping unit after fallback retries",
				logger.String("unitID", u.ID),
				logger.Int("page", u.Page),
				logger.Err(err))
			if b.onSkip != nil {
				b.onSkip(u, err)
			}
			continue
		}
		out[i] = text
	}
	return out, nil
}

// translateSingleUnit translates one merged unit with its own bounded retries
func (b *BatchTranslator) translateSingleUnit(ctx context.Context, systemPrompt string, u MergedBlock, policy RetryPolicy) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, err := b.client.Complete(ctx, systemPrompt, u.Text)
		if err == nil {
			return strings.TrimSpace(raw), nil
		}
		lastErr = err
		if _, retryable := b.policyFor(err); !retryable {
			return "", err
		}
		if attempt < policy.MaxAttempts {
			if serr := sleepContext(ctx, policy.DelayFor(attempt-1)); serr != nil {
				return "", serr
			}
		}
	}
	return "", lastErr
}

// anchor builds the TranslatedBlock for a unit, recovering its bounding box
// as the union of the source blocks' boxes. A unit whose first source block
// is missing from the index is dropped with a warning.
func (b *BatchTranslator) anchor(u MergedBlock, translated string, index BlockIndex) (TranslatedBlock, bool) {
	if len(u.SourceIDs) == 0 {
		logger.Warn("merged unit has no source blocks", logger.String("unitID", u.ID))
		return TranslatedBlock{}, false
	}
	first, ok := index[u.SourceIDs[0]]
	if !ok {
		logger.Warn("source block missing from index, dropping unit",
			logger.String("unitID", u.ID),
			logger.String("blockID", u.SourceIDs[0]))
		return TranslatedBlock{}, false
	}
	bbox := first.BBox
	for _, id := range u.SourceIDs[1:] {
		src, ok := index[id]
		if !ok {
			logger.Warn("source block missing from index",
				logger.String("unitID", u.ID),
				logger.String("blockID", id))
			continue
		}
		bbox = bbox.Union(src.BBox)
	}
	return TranslatedBlock{
		ID:             u.ID,
		OriginalText:   u.Text,
		TranslatedText: translated,
		BBox:           bbox,
		Page:           u.Page,
	}, true
}
