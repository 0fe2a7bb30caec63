package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kverner/storymark/internal/annotation"
	"github.com/kverner/storymark/internal/fuzzy"
	"github.com/kverner/storymark/internal/observe"
	"github.com/kverner/storymark/internal/parse"
	"github.com/kverner/storymark/internal/prompt"
	"github.com/kverner/storymark/internal/reconcile"
	"github.com/kverner/storymark/pkg/llm"
)

// Orchestration errors.
var (
	// ErrBusy is returned when a generation request arrives while another
	// is still outstanding on the same orchestrator.
	ErrBusy = errors.New("session: a request is already in flight")

	// ErrReconcileBusy is returned when a merge is attempted while another
	// merge holds the collection.
	ErrReconcileBusy = errors.New("session: another session is reconciling this collection")
)

// Generation sampling defaults. The output must follow a strict grammar, so
// sessions run cool.
const (
	DefaultTemperature = 0.3
	DefaultTopP        = 0.8
)

// GenerationParams are the sampling knobs forwarded to the provider.
type GenerationParams struct {
	// Temperature defaults to 0.3 if zero.
	Temperature float64

	// TopP defaults to 0.8 if zero.
	TopP float64

	// MaxTokens caps completion tokens; zero means provider default.
	MaxTokens int

	// ThinkingBudget is the reasoning token budget; zero disables it.
	ThinkingBudget int
}

func (p GenerationParams) withDefaults() GenerationParams {
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	if p.TopP == 0 {
		p.TopP = DefaultTopP
	}
	return p
}

// OrchestratorConfig configures an [Orchestrator].
type OrchestratorConfig struct {
	// Provider performs model calls.
	Provider llm.Provider

	// Store is the annotation collection the orchestrator reads from and,
	// on Apply, writes back to.
	Store annotation.Store

	// Filter is the active view filter; only admitted annotations enter
	// model context. Nil admits everything.
	Filter annotation.FilterFunc

	// Document is the authoritative source text, snapshotted once at
	// construction.
	Document string

	// Generation are the sampling parameters for every request.
	Generation GenerationParams

	// MaxRetries and BaseDelay configure the retry budget per request.
	// Zero values take the session defaults.
	MaxRetries int
	BaseDelay  time.Duration

	// MaxContextChars overrides the full-document size gate; zero keeps
	// the default.
	MaxContextChars int

	// FuzzyThreshold and MinIDLength tune response validation; zero keeps
	// the defaults.
	FuzzyThreshold float64
	MinIDLength    int

	// Metrics receives session telemetry. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Request describes one generation run.
type Request struct {
	// Grammar selects the task and the response record shape.
	Grammar prompt.Grammar

	// Query is the user question for the chat grammar, ignored otherwise.
	Query string

	// Options are the prompt construction knobs.
	Options prompt.Options

	// OnChunk receives streamed fragments; nil disables streaming.
	OnChunk func(text string)

	// OnState observes session state transitions. May be nil.
	OnState func(State)
}

// Output is the result of a completed generation run, before any merge.
type Output struct {
	// Grammar echoes the request grammar.
	Grammar prompt.Grammar

	// Raw is the full accumulated response text.
	Raw string

	// Response carries finish reason, safety flags and token usage.
	Response *llm.CompletionResponse

	// Parsed holds validated records and per-record rejections.
	Parsed parse.Result
}

// Orchestrator drives the full pipeline for one annotation collection:
// prompt, provider call, parse. Apply merges a parsed result into the store
// after the user confirms it; merges are serialised per orchestrator so two
// sessions can never reconcile the same collection concurrently.
type Orchestrator struct {
	provider llm.Provider
	store    annotation.Store
	filter   annotation.FilterFunc
	document string
	gen      GenerationParams
	builder  *prompt.Builder

	maxRetries  int
	baseDelay   time.Duration
	parserOpts  []parse.Option
	metrics     *observe.Metrics
	log         *slog.Logger
	reconcileSem *semaphore.Weighted

	mu      sync.Mutex
	current *Session
}

// NewOrchestrator creates an Orchestrator from cfg. The store's vocabulary
// is captured for prompt construction and response validation.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	var builderOpts []prompt.BuilderOption
	if cfg.MaxContextChars > 0 {
		builderOpts = append(builderOpts, prompt.WithMaxContextChars(cfg.MaxContextChars))
	}

	return &Orchestrator{
		provider:     cfg.Provider,
		store:        cfg.Store,
		filter:       cfg.Filter,
		document:     cfg.Document,
		gen:          cfg.Generation.withDefaults(),
		builder:      prompt.NewBuilder(cfg.Store.Vocabulary(), builderOpts...),
		maxRetries:   cfg.MaxRetries,
		baseDelay:    cfg.BaseDelay,
		parserOpts:   parserOptions(cfg.FuzzyThreshold, cfg.MinIDLength),
		metrics:      metrics,
		log:          log,
		reconcileSem: semaphore.NewWeighted(1),
	}
}

func parserOptions(fuzzyThreshold float64, minIDLength int) []parse.Option {
	var opts []parse.Option
	if fuzzyThreshold > 0 {
		opts = append(opts, parse.WithResolver(fuzzy.New(fuzzy.WithThreshold(fuzzyThreshold))))
	}
	if minIDLength > 0 {
		opts = append(opts, parse.WithMinIDLength(minIDLength))
	}
	return opts
}

// Tunables are the orchestrator settings safe to adjust between requests.
// Zero values restore the respective defaults.
type Tunables struct {
	FuzzyThreshold float64
	MinIDLength    int
	MaxRetries     int
	BaseDelay      time.Duration
}

// Retune swaps the validation thresholds and retry budget used by subsequent
// work. A run already holding its session keeps the retry budget it started
// with; response parsing picks up the new thresholds because it happens after
// the model call returns.
func (o *Orchestrator) Retune(tn Tunables) {
	o.mu.Lock()
	o.parserOpts = parserOptions(tn.FuzzyThreshold, tn.MinIDLength)
	o.maxRetries = tn.MaxRetries
	o.baseDelay = tn.BaseDelay
	o.mu.Unlock()

	o.log.Info("orchestrator retuned",
		"fuzzy_threshold", tn.FuzzyThreshold,
		"min_id_length", tn.MinIDLength,
		"max_retries", tn.MaxRetries,
		"base_delay", tn.BaseDelay,
	)
}

// Generate runs one request end-to-end and returns the parsed output.
// Fatal configuration failures (no vocabulary, no document, oversized
// context) surface before any model call. The call blocks until the model
// responds, the retry budget is exhausted, or Stop is called.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Output, error) {
	snapshot := o.store.List(o.filter)

	text, err := o.buildPrompt(snapshot, req)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.current != nil {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	sess := New(Config{
		Provider:   o.provider,
		MaxRetries: o.maxRetries,
		BaseDelay:  o.baseDelay,
		OnChunk:    req.OnChunk,
		OnState:    req.OnState,
		Metrics:    o.metrics,
		Logger:     o.log,
	})
	o.current = sess
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.current = nil
		o.mu.Unlock()
	}()

	o.log.Info("starting generation session",
		"grammar", req.Grammar.String(),
		"provider", o.provider.Name(),
		"annotations", len(snapshot),
		"prompt_chars", len(text),
	)
	o.metrics.ActiveSessions.Add(ctx, 1)
	start := time.Now()
	defer func() {
		o.metrics.ActiveSessions.Add(ctx, -1)
		o.metrics.SessionDuration.Record(ctx, time.Since(start).Seconds())
	}()

	resp, err := sess.Run(ctx, llm.CompletionRequest{
		Messages:       []llm.Message{{Role: "user", Content: text}},
		Temperature:    o.gen.Temperature,
		TopP:           o.gen.TopP,
		MaxTokens:      o.gen.MaxTokens,
		ThinkingBudget: o.gen.ThinkingBudget,
	})
	if err != nil {
		return nil, err
	}

	parsed := o.parseResponse(snapshot, req.Grammar, resp.Content)
	for _, rej := range parsed.Rejections {
		o.metrics.RecordRejection(ctx, string(rej.Reason))
	}
	o.log.Info("generation session finished",
		"grammar", req.Grammar.String(),
		"records", len(parsed.Records),
		"rejections", len(parsed.Rejections),
	)

	return &Output{
		Grammar:  req.Grammar,
		Raw:      resp.Content,
		Response: resp,
		Parsed:   parsed,
	}, nil
}

// Stop cancels the in-flight session, if any.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	sess := o.current
	o.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

// Apply merges a generation output into the store. It is invoked only after
// the user confirms the results, never automatically, and at most one merge
// runs per collection at a time.
func (o *Orchestrator) Apply(out *Output) (reconcile.Result, error) {
	if !o.reconcileSem.TryAcquire(1) {
		return reconcile.Result{}, ErrReconcileBusy
	}
	defer o.reconcileSem.Release(1)

	ctx := context.Background()
	start := time.Now()
	result := reconcile.New(o.store).Merge(out.Parsed.Records)
	o.metrics.ReconcileDuration.Record(ctx, time.Since(start).Seconds())
	for _, outcome := range result.Outcomes {
		o.metrics.RecordOutcome(ctx, out.Grammar.String(), outcome.Disposition.String())
	}
	o.log.Info("reconciliation complete",
		"grammar", out.Grammar.String(),
		"accepted", result.Accepted,
		"skipped", result.Skipped,
		"rejected", result.Rejected,
	)
	return result, nil
}

func (o *Orchestrator) buildPrompt(snapshot []annotation.Annotation, req Request) (string, error) {
	switch req.Grammar {
	case prompt.GrammarAnnotation:
		return o.builder.Annotation(o.document, req.Options)
	case prompt.GrammarNotes:
		return o.builder.Notes(snapshot, o.document, req.Options)
	case prompt.GrammarStoryboard:
		return o.builder.Storyboard(snapshot, o.document, req.Options)
	case prompt.GrammarChat:
		return o.builder.Chat(snapshot, o.document, req.Query, req.Options)
	default:
		return "", fmt.Errorf("session: unknown grammar %v", req.Grammar)
	}
}

func (o *Orchestrator) parseResponse(snapshot []annotation.Annotation, grammar prompt.Grammar, raw string) parse.Result {
	ids := make([]string, 0, len(snapshot))
	for _, a := range snapshot {
		if !a.Divider {
			ids = append(ids, a.ID)
		}
	}
	o.mu.Lock()
	opts := o.parserOpts
	o.mu.Unlock()
	parser := parse.NewParser(o.store.Vocabulary(), ids, o.document, opts...)

	switch grammar {
	case prompt.GrammarAnnotation:
		return parser.Annotations(raw)
	case prompt.GrammarNotes:
		return parser.Notes(raw)
	case prompt.GrammarStoryboard:
		return parser.Storyboard(raw)
	case prompt.GrammarChat:
		return parser.References(raw)
	default:
		return parse.Result{}
	}
}
