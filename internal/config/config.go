// Package config provides the configuration schema, loader, provider
// registry, and file watcher for the storymark AI pipeline.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Selectivity names the record-volume levels offered to the model.
type Selectivity string

const (
	SelectivityVerySelective Selectivity = "very-selective"
	SelectivityBalanced      Selectivity = "balanced"
	SelectivityComplete      Selectivity = "complete"
)

// IsValid reports whether s is a recognised selectivity level.
func (s Selectivity) IsValid() bool {
	switch s {
	case SelectivityVerySelective, SelectivityBalanced, SelectivityComplete:
		return true
	}
	return false
}

// Config is the root configuration structure for storymark.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Defaults to "info".
	LogLevel LogLevel `yaml:"log_level"`

	Provider   ProviderEntry    `yaml:"provider"`
	Generation GenerationConfig `yaml:"generation"`
	Matching   MatchingConfig   `yaml:"matching"`
	Retry      RetryConfig      `yaml:"retry"`
}

// ProviderEntry selects and configures the model backend. The Name field is
// used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "gemini", "openai", "anthropic", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gemini-2.5-pro", "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// GenerationConfig holds the sampling and prompt-construction knobs shared
// by all session kinds.
type GenerationConfig struct {
	// Temperature controls output randomness. Defaults to 0.3; the
	// response must follow a strict grammar, so sessions run cool.
	Temperature float64 `yaml:"temperature"`

	// TopP is the nucleus-sampling parameter. Defaults to 0.8.
	TopP float64 `yaml:"top_p"`

	// MaxTokens caps completion tokens. Zero means provider default.
	MaxTokens int `yaml:"max_tokens"`

	// ThinkingBudget is the reasoning token budget for models that support
	// dedicated thinking phases. Zero disables it.
	ThinkingBudget int `yaml:"thinking_budget"`

	// Selectivity controls how many annotations a generation run asks for.
	// Defaults to "balanced".
	Selectivity Selectivity `yaml:"selectivity"`

	// IncludeFullContext embeds the full transcript into notes, storyboard
	// and chat prompts.
	IncludeFullContext bool `yaml:"include_full_context"`

	// CommentaryLength caps generated commentary at 1, 2 or 3 sentences;
	// 0 means unbounded.
	CommentaryLength int `yaml:"commentary_length"`

	// MaxContextChars is the transcript size above which embedding the
	// full text requires explicit confirmation. Defaults to 500000.
	MaxContextChars int `yaml:"max_context_chars"`
}

// MatchingConfig tunes fuzzy response validation. The defaults are carried
// over unchanged from long-standing behaviour; they are tunable, not
// load-bearing.
type MatchingConfig struct {
	// FuzzyThreshold is the similarity a candidate must strictly exceed.
	// Defaults to 0.3.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// MinIDLength is the identifier length a candidate must exceed before
	// fuzzy resolution is attempted. Defaults to 6.
	MinIDLength int `yaml:"min_id_length"`
}

// RetryConfig controls retry behaviour for transient model failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Defaults to 2 (3 attempts total).
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the backoff before the first retry, doubling per
	// attempt. Defaults to 2s.
	BaseDelay time.Duration `yaml:"base_delay"`
}

// Defaults applied by [Validate] for unset values.
const (
	DefaultTemperature     = 0.3
	DefaultTopP            = 0.8
	DefaultMaxContextChars = 500_000
	DefaultFuzzyThreshold  = 0.3
	DefaultMinIDLength     = 6
	DefaultMaxRetries      = 2
	DefaultBaseDelay       = 2 * time.Second
)
