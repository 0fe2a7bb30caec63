// Command storymark runs AI generation sessions against an annotation
// collection exported by the desktop application: new annotations, notes for
// existing annotations, storyboard ordering, or free-form chat about the
// transcript. Results are printed for review and merged back into the
// collection only with -apply.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kverner/storymark/internal/annotation"
	"github.com/kverner/storymark/internal/config"
	"github.com/kverner/storymark/internal/health"
	"github.com/kverner/storymark/internal/observe"
	"github.com/kverner/storymark/internal/prompt"
	"github.com/kverner/storymark/internal/resilience"
	"github.com/kverner/storymark/internal/session"
	"github.com/kverner/storymark/pkg/llm"
	"github.com/kverner/storymark/pkg/llm/anyllm"
	"github.com/kverner/storymark/pkg/llm/gemini"
	"github.com/kverner/storymark/pkg/llm/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	mode := flag.String("mode", "", "session kind: annotate, notes, storyboard, or chat")
	annotationsPath := flag.String("annotations", "", "path to the exported annotation collection (JSON)")
	transcriptPath := flag.String("transcript", "", "path to the transcript text file")
	outPath := flag.String("out", "", "where to write the merged collection (default: overwrite -annotations)")
	query := flag.String("query", "", "question for chat mode")
	apply := flag.Bool("apply", false, "merge accepted records back into the collection")
	commentary := flag.Bool("commentary", false, "generate detailed commentary in notes mode")
	dividers := flag.Bool("dividers", false, "allow the storyboard session to create dividers")
	headers := flag.Bool("headers", false, "allow the storyboard session to attach headers")
	confirmLarge := flag.Bool("confirm-large-context", false, "proceed even when the transcript exceeds the context size gate")
	metricsAddr := flag.String("metrics-addr", "", "optional address for the /metrics and health endpoints")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "storymark: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "storymark: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	grammar, err := grammarForMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storymark: %v\n", err)
		return 2
	}
	if *annotationsPath == "" || *transcriptPath == "" {
		fmt.Fprintln(os.Stderr, "storymark: -annotations and -transcript are required")
		return 2
	}
	if grammar == prompt.GrammarChat && *query == "" {
		fmt.Fprintln(os.Stderr, "storymark: chat mode requires -query")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry. Shutdown flushes the Prometheus bridge on exit.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "storymark"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	store, err := annotation.LoadFile(*annotationsPath)
	if err != nil {
		slog.Error("failed to load annotation collection", "err", err)
		return 1
	}
	transcript, err := os.ReadFile(*transcriptPath)
	if err != nil {
		slog.Error("failed to read transcript", "path", *transcriptPath, "err", err)
		return 1
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	provider, err := reg.Create(cfg.Provider)
	if err != nil {
		slog.Error("failed to create model provider", "name", cfg.Provider.Name, "err", err)
		return 1
	}
	// Breaker plus metrics around every model call.
	provider = observe.InstrumentProvider(
		resilience.NewProviderFallback(provider, resilience.FallbackConfig{}),
		observe.DefaultMetrics(),
	)

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, provider)
	}

	orch := session.NewOrchestrator(session.OrchestratorConfig{
		Provider: provider,
		Store:    store,
		Document: string(transcript),
		Generation: session.GenerationParams{
			Temperature:    cfg.Generation.Temperature,
			TopP:           cfg.Generation.TopP,
			MaxTokens:      cfg.Generation.MaxTokens,
			ThinkingBudget: cfg.Generation.ThinkingBudget,
		},
		MaxRetries:      cfg.Retry.MaxRetries,
		BaseDelay:       cfg.Retry.BaseDelay,
		MaxContextChars: cfg.Generation.MaxContextChars,
		FuzzyThreshold:  cfg.Matching.FuzzyThreshold,
		MinIDLength:     cfg.Matching.MinIDLength,
		Logger:          logger,
	})

	// Edits to the matching or retry sections take effect mid-run: parsing
	// happens after the model call, so retuned thresholds apply even to the
	// request already in flight.
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		d := config.Diff(old, updated)
		if !d.MatchingChanged && !d.RetryChanged {
			return
		}
		orch.Retune(session.Tunables{
			FuzzyThreshold: updated.Matching.FuzzyThreshold,
			MinIDLength:    updated.Matching.MinIDLength,
			MaxRetries:     updated.Retry.MaxRetries,
			BaseDelay:      updated.Retry.BaseDelay,
		})
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	opts := prompt.Options{
		Selectivity:         selectivityFor(cfg.Generation.Selectivity),
		IncludeFullContext:  cfg.Generation.IncludeFullContext,
		ConfirmLargeContext: *confirmLarge,
		GenerateCommentary:  *commentary,
		CommentaryLength:    cfg.Generation.CommentaryLength,
		UseDividers:         *dividers,
		UseHeaders:          *headers,
	}

	out, err := orch.Generate(ctx, session.Request{
		Grammar: grammar,
		Query:   *query,
		Options: opts,
		OnChunk: func(text string) { fmt.Print(text) },
	})
	fmt.Println()
	if err != nil {
		var emptyErr *llm.EmptyError
		switch {
		case errors.As(err, &emptyErr):
			slog.Error("model produced no output", "explanation", emptyErr.Explain())
		case errors.Is(err, session.ErrRetryExhausted):
			slog.Error("giving up after repeated transient failures", "err", err)
		case errors.Is(err, session.ErrCancelled):
			slog.Info("session cancelled")
		default:
			slog.Error("generation failed", "err", err)
		}
		return 1
	}

	for _, rej := range out.Parsed.Rejections {
		slog.Warn("record rejected",
			"reason", rej.Reason,
			"detail", rej.Detail,
			"hint", rej.Hint,
		)
	}
	slog.Info("session complete",
		"mode", *mode,
		"records", len(out.Parsed.Records),
		"rejections", len(out.Parsed.Rejections),
	)

	if grammar == prompt.GrammarChat || !*apply {
		return 0
	}

	result, err := orch.Apply(out)
	if err != nil {
		slog.Error("failed to merge records", "err", err)
		return 1
	}
	slog.Info("merged into collection",
		"accepted", result.Accepted,
		"skipped", result.Skipped,
		"rejected", result.Rejected,
	)

	target := *outPath
	if target == "" {
		target = *annotationsPath
	}
	if err := annotation.SaveFile(target, store); err != nil {
		slog.Error("failed to save collection", "path", target, "err", err)
		return 1
	}
	slog.Info("collection saved", "path", target)
	return 0
}

// grammarForMode maps the -mode flag onto a response grammar.
func grammarForMode(mode string) (prompt.Grammar, error) {
	switch mode {
	case "annotate":
		return prompt.GrammarAnnotation, nil
	case "notes":
		return prompt.GrammarNotes, nil
	case "storyboard":
		return prompt.GrammarStoryboard, nil
	case "chat":
		return prompt.GrammarChat, nil
	default:
		return 0, fmt.Errorf("unknown -mode %q (want annotate, notes, storyboard, or chat)", mode)
	}
}

func selectivityFor(s config.Selectivity) prompt.Selectivity {
	switch s {
	case config.SelectivityVerySelective:
		return prompt.SelectivityVerySelective
	case config.SelectivityComplete:
		return prompt.SelectivityComplete
	default:
		return prompt.SelectivityBalanced
	}
}

// registerBuiltinProviders wires the provider factories that ship with
// storymark into reg. Gemini and OpenAI use their native SDKs; the remaining
// backends go through any-llm-go.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	reg.Register("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []gemini.Option
		if entry.Model != "" {
			opts = append(opts, gemini.WithModel(entry.Model))
		}
		return gemini.New(ctx, entry.APIKey, opts...)
	})

	reg.Register("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, name := range []string{"anthropic", "deepseek", "mistral", "groq"} {
		reg.Register(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(entry.Name, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.Register("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})
}

// serveMetrics exposes Prometheus metrics and health probes for long-running
// invocations (for example under a watch loop or a desktop sidecar).
func serveMetrics(addr string, provider llm.Provider) {
	h := health.New(health.Checker{
		Name: "provider",
		Check: func(ctx context.Context) error {
			if provider == nil {
				return errors.New("no provider configured")
			}
			return nil
		},
	})

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	h.Register(mux)

	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics endpoint stopped", "err", err)
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
