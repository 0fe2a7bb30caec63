package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known model provider names. Used by [Validate]
// to warn about unrecognised names without rejecting third-party providers.
var ValidProviderNames = []string{
	"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates the result and
// applies defaults. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults. It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Provider.Name == "" {
		errs = append(errs, errors.New("provider.name is required"))
	} else if !slices.Contains(ValidProviderNames, cfg.Provider.Name) {
		slog.Warn("unknown provider name - may be a typo or third-party provider",
			"name", cfg.Provider.Name,
			"known", ValidProviderNames,
		)
	}

	g := &cfg.Generation
	if g.Temperature < 0 || g.Temperature > 2 {
		errs = append(errs, fmt.Errorf("generation.temperature %.2f is out of range [0, 2]", g.Temperature))
	}
	if g.Temperature == 0 {
		g.Temperature = DefaultTemperature
	}
	if g.TopP < 0 || g.TopP > 1 {
		errs = append(errs, fmt.Errorf("generation.top_p %.2f is out of range [0, 1]", g.TopP))
	}
	if g.TopP == 0 {
		g.TopP = DefaultTopP
	}
	if g.Selectivity == "" {
		g.Selectivity = SelectivityBalanced
	} else if !g.Selectivity.IsValid() {
		errs = append(errs, fmt.Errorf("generation.selectivity %q is invalid; valid values: very-selective, balanced, complete", g.Selectivity))
	}
	switch g.CommentaryLength {
	case 0, 1, 2, 3:
	default:
		errs = append(errs, fmt.Errorf("generation.commentary_length %d is invalid; valid values: 0 (unbounded), 1, 2, 3", g.CommentaryLength))
	}
	if g.MaxContextChars < 0 {
		errs = append(errs, fmt.Errorf("generation.max_context_chars %d is negative", g.MaxContextChars))
	}
	if g.MaxContextChars == 0 {
		g.MaxContextChars = DefaultMaxContextChars
	}

	m := &cfg.Matching
	if m.FuzzyThreshold < 0 || m.FuzzyThreshold >= 1 {
		errs = append(errs, fmt.Errorf("matching.fuzzy_threshold %.2f is out of range [0, 1)", m.FuzzyThreshold))
	}
	if m.FuzzyThreshold == 0 {
		m.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if m.MinIDLength < 0 {
		errs = append(errs, fmt.Errorf("matching.min_id_length %d is negative", m.MinIDLength))
	}
	if m.MinIDLength == 0 {
		m.MinIDLength = DefaultMinIDLength
	}

	r := &cfg.Retry
	if r.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries %d is negative", r.MaxRetries))
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = DefaultMaxRetries
	}
	if r.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry.base_delay %v is negative", r.BaseDelay))
	}
	if r.BaseDelay == 0 {
		r.BaseDelay = DefaultBaseDelay
	}

	return errors.Join(errs...)
}
