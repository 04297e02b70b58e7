package potlai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZaguanLabs/potlai/catalog"
	"github.com/ZaguanLabs/potlai/glossary"
	"github.com/ZaguanLabs/potlai/protect"
)

// Defaults for Orchestrator configuration.
const (
	DefaultModel           = "gpt-4o-mini"
	DefaultTargetLang      = "uk"
	DefaultMaxRetry        = 3
	DefaultBatchSize       = 5
	DefaultTemperature     = 0.3
	DefaultMaxOutputTokens = 1024
	DefaultCooldown        = 30 * time.Second
	DefaultRequestTimeout  = 120 * time.Second
	DefaultSentinel        = "ERROR"
)

// Orchestrator is the translation engine. It is safe for concurrent use;
// usage is accounted per Session.
type Orchestrator struct {
	client           CompletionClient
	glossary         *glossary.Table
	model            string
	targetLang       string
	template         PromptTemplate
	mode             ResponseMode
	maxRetry         int
	batchSize        int
	maxConcurrent    int
	dispatch         DispatchMode
	temperature      float32
	maxOutputTokens  int
	cooldown         *Cooldown
	requestTimeout   time.Duration
	validate         bool
	onlyUntranslated bool
	sentinel         string
	cache            TranslationCache
	recorder         UsageRecorder
	tokenizer        Tokenizer
	logger           zerolog.Logger
	progress         func(done, total int)

	system       string // rendered system message
	promptDigest string

	tokenizerOnce sync.Once
	tokenizerErr  error
}

// Option is a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithModel sets the model identifier sent to the backend.
func WithModel(model string) Option {
	return func(o *Orchestrator) {
		o.model = model
	}
}

// WithTargetLang sets the target language code.
func WithTargetLang(lang string) Option {
	return func(o *Orchestrator) {
		o.targetLang = NormalizeLocale(lang)
	}
}

// WithGlossary sets the glossary injected into every prompt.
func WithGlossary(terms *glossary.Table) Option {
	return func(o *Orchestrator) {
		o.glossary = terms
	}
}

// WithPromptTemplate replaces the built-in system prompt.
func WithPromptTemplate(p PromptTemplate) Option {
	return func(o *Orchestrator) {
		o.template = p
	}
}

// WithResponseMode fixes how replies are read.
func WithResponseMode(mode ResponseMode) Option {
	return func(o *Orchestrator) {
		o.mode = mode
	}
}

// WithMaxRetry sets the total number of attempts per unit.
func WithMaxRetry(n int) Option {
	return func(o *Orchestrator) {
		o.maxRetry = n
	}
}

// WithBatchSize sets the group size used by DispatchChunked.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) {
		o.batchSize = n
	}
}

// WithMaxConcurrent bounds in-flight requests in DispatchConcurrent; 0 means
// unbounded.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		o.maxConcurrent = n
	}
}

// WithDispatch selects the batch scheduling strategy.
func WithDispatch(mode DispatchMode) Option {
	return func(o *Orchestrator) {
		o.dispatch = mode
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(o *Orchestrator) {
		o.temperature = t
	}
}

// WithMaxOutputTokens sets the completion token budget per request.
func WithMaxOutputTokens(n int) Option {
	return func(o *Orchestrator) {
		o.maxOutputTokens = n
	}
}

// WithCooldown sets the rate-limit cooldown period.
func WithCooldown(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.cooldown = NewCooldown(d)
	}
}

// WithRequestTimeout bounds every completion request; 0 disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.requestTimeout = d
	}
}

// WithValidation toggles the protected span check on replies.
func WithValidation(enabled bool) Option {
	return func(o *Orchestrator) {
		o.validate = enabled
	}
}

// WithOnlyUntranslated leaves catalog entries that already have a
// non-fuzzy translation untouched.
func WithOnlyUntranslated(enabled bool) Option {
	return func(o *Orchestrator) {
		o.onlyUntranslated = enabled
	}
}

// WithSentinel sets the target written for failed units.
func WithSentinel(s string) Option {
	return func(o *Orchestrator) {
		o.sentinel = s
	}
}

// WithCache sets the translation cache.
func WithCache(cache TranslationCache) Option {
	return func(o *Orchestrator) {
		o.cache = cache
	}
}

// WithUsageRecorder persists session totals on Close.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithTokenizer overrides the tokenizer used by the usage estimate.
func WithTokenizer(t Tokenizer) Option {
	return func(o *Orchestrator) {
		o.tokenizer = t
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithProgress registers a callback invoked after every finished batch
// entry. Calls are serialized.
func WithProgress(fn func(done, total int)) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// NewOrchestrator creates an Orchestrator for client.
func NewOrchestrator(client CompletionClient, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		client:          client,
		model:           DefaultModel,
		targetLang:      DefaultTargetLang,
		template:        DefaultPromptTemplate(),
		mode:            ModeRaw,
		maxRetry:        DefaultMaxRetry,
		batchSize:       DefaultBatchSize,
		dispatch:        DispatchConcurrent,
		temperature:     DefaultTemperature,
		maxOutputTokens: DefaultMaxOutputTokens,
		cooldown:        NewCooldown(DefaultCooldown),
		requestTimeout:  DefaultRequestTimeout,
		validate:        true,
		sentinel:        DefaultSentinel,
		logger:          zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.client == nil {
		return nil, errors.New("completion client is required")
	}
	if o.maxRetry < 1 {
		return nil, fmt.Errorf("max retry must be at least 1, got %d", o.maxRetry)
	}
	if o.batchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", o.batchSize)
	}
	if o.mode != ModeRaw && o.mode != ModeJSON {
		return nil, fmt.Errorf("unknown response mode %q", o.mode)
	}
	if o.dispatch != DispatchConcurrent && o.dispatch != DispatchChunked {
		return nil, fmt.Errorf("unknown dispatch mode %q", o.dispatch)
	}
	if err := o.template.Validate(); err != nil {
		return nil, err
	}
	if o.glossary == nil {
		o.glossary = glossary.New(nil)
	}

	o.system = o.template.Render(o.targetLang, o.glossary, o.mode)
	o.promptDigest = HashText(o.system)[:16]
	return o, nil
}

// Model returns the model identifier.
func (o *Orchestrator) Model() string {
	return o.model
}

// TargetLang returns the target language code.
func (o *Orchestrator) TargetLang() string {
	return o.targetLang
}

// SystemPrompt returns the rendered system message.
func (o *Orchestrator) SystemPrompt() string {
	return o.system
}

// Cooldown returns the shared rate-limit cooldown.
func (o *Orchestrator) Cooldown() *Cooldown {
	return o.cooldown
}

// TranslateText translates a single chunk of text in its own session.
func (o *Orchestrator) TranslateText(ctx context.Context, text string) (string, Telemetry, error) {
	sess := o.OpenSession()
	out, err := sess.Translate(ctx, text)
	tel := sess.Close(ctx)
	if err != nil {
		tel.Failed = 1
		return "", tel, err
	}
	tel.Translated = 1
	return out, tel, nil
}

// unit maps a batch entry back to its catalog entry. Form -1 is the
// singular msgstr; form 1 stands for every plural form past the first.
type unit struct {
	entry int
	form  int
}

// TranslateCatalog translates a copy of f in its own session. The result
// has the same entries in the same order with the header copied verbatim.
// Failed entries get the sentinel and the fuzzy flag. The error is non-nil
// only when ctx ended before the batch finished.
func (o *Orchestrator) TranslateCatalog(ctx context.Context, f *catalog.File) (*catalog.File, Telemetry, error) {
	if f == nil {
		return nil, Telemetry{}, errors.New("catalog is nil")
	}

	out := f.Clone()
	entries, units, skipped := o.catalogUnits(out)

	sess := o.OpenSession()
	results := sess.TranslateBatch(ctx, entries)
	tel := sess.Close(ctx)
	tel.Skipped = skipped

	nplurals := out.NPlurals()
	failed := make(map[int]bool)
	for i, res := range results {
		u := units[i]
		e := out.Entries[u.entry]
		switch u.form {
		case -1:
			e.MsgStr = res.Target
		case 0:
			e.MsgStrPlural[0] = res.Target
		default:
			for n := 1; n < nplurals; n++ {
				e.MsgStrPlural[n] = res.Target
			}
		}
		if res.Status == StatusFailed {
			failed[u.entry] = true
		}
	}
	for _, u := range units {
		e := out.Entries[u.entry]
		e.SetFlag(catalog.FuzzyFlag, failed[u.entry])
	}
	for _, res := range results {
		switch res.Status {
		case StatusTranslated:
			tel.Translated++
		case StatusFailed:
			tel.Failed++
		case StatusSkipped:
			tel.Skipped++
		}
	}

	return out, tel, ctx.Err()
}

func (o *Orchestrator) catalogUnits(f *catalog.File) ([]Entry, []unit, int) {
	var entries []Entry
	var units []unit
	skipped := 0
	nplurals := f.NPlurals()

	add := func(idx, form int, id, source string) {
		entries = append(entries, Entry{Index: len(entries), ID: id, Source: source})
		units = append(units, unit{entry: idx, form: form})
	}

	for i, e := range f.Entries {
		if e.Obsolete || e.MsgID == "" {
			skipped++
			continue
		}
		if o.onlyUntranslated && e.IsTranslated() && !e.HasFlag(catalog.FuzzyFlag) {
			skipped++
			continue
		}
		if !e.IsPlural() {
			add(i, -1, e.Key(), e.MsgID)
			continue
		}
		if e.MsgStrPlural == nil {
			e.MsgStrPlural = make(map[int]string)
		}
		add(i, 0, e.Key()+"[0]", e.MsgID)
		if nplurals > 1 {
			add(i, 1, e.Key()+"[1]", e.MsgIDPlural)
		}
	}
	return entries, units, skipped
}

// EstimateUsage returns the local prompt token estimate of translating text.
// No request is made.
func (o *Orchestrator) EstimateUsage(text string) (int, error) {
	tok, err := o.loadTokenizer()
	if err != nil {
		return 0, err
	}
	return estimateMessages(tok, o.system, text), nil
}

// EstimateCatalog sums EstimateUsage over the units TranslateCatalog would
// send.
func (o *Orchestrator) EstimateCatalog(f *catalog.File) (int, error) {
	tok, err := o.loadTokenizer()
	if err != nil {
		return 0, err
	}
	entries, _, _ := o.catalogUnits(f.Clone())
	total := 0
	for _, e := range entries {
		if passthrough(e.Source, o.validate) {
			continue
		}
		total += estimateMessages(tok, o.system, e.Source)
	}
	return total, nil
}

func (o *Orchestrator) loadTokenizer() (Tokenizer, error) {
	o.tokenizerOnce.Do(func() {
		if o.tokenizer == nil {
			o.tokenizer, o.tokenizerErr = NewTiktokenTokenizer(o.model)
		}
	})
	return o.tokenizer, o.tokenizerErr
}

func (o *Orchestrator) completionOptions() CompletionOptions {
	return CompletionOptions{
		Temperature:     o.temperature,
		MaxOutputTokens: o.maxOutputTokens,
		JSON:            o.mode == ModeJSON,
	}
}

func (o *Orchestrator) cacheKey(source string) string {
	return CacheKey(HashText(source), o.targetLang, o.model, o.promptDigest)
}

// passthrough reports whether source is echoed without a request.
func passthrough(source string, validate bool) bool {
	return strings.TrimSpace(source) == "" || (validate && protect.OnlyProtected(source))
}
