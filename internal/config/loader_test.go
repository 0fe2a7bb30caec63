package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kverner/storymark/internal/config"
)

func TestValidate_MissingProviderName(t *testing.T) {
	t.Parallel()
	yaml := `
generation:
  temperature: 0.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing provider name, got nil")
	}
	if !strings.Contains(err.Error(), "provider.name") {
		t.Errorf("error should mention provider.name, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: verbose
provider:
  name: gemini
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_TemperatureOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
provider:
  name: gemini
generation:
  temperature: 3.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range temperature, got nil")
	}
	if !strings.Contains(err.Error(), "temperature") {
		t.Errorf("error should mention temperature, got: %v", err)
	}
}

func TestValidate_TopPOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
provider:
  name: gemini
generation:
  top_p: 1.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range top_p, got nil")
	}
}

func TestValidate_InvalidSelectivity(t *testing.T) {
	t.Parallel()
	yaml := `
provider:
  name: gemini
generation:
  selectivity: everything
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid selectivity, got nil")
	}
	if !strings.Contains(err.Error(), "selectivity") {
		t.Errorf("error should mention selectivity, got: %v", err)
	}
}

func TestValidate_InvalidCommentaryLength(t *testing.T) {
	t.Parallel()
	yaml := `
provider:
  name: gemini
generation:
  commentary_length: 7
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid commentary_length, got nil")
	}
}

func TestValidate_FuzzyThresholdOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
provider:
  name: gemini
matching:
  fuzzy_threshold: 1.0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for fuzzy_threshold of 1.0, got nil")
	}
	if !strings.Contains(err.Error(), "fuzzy_threshold") {
		t.Errorf("error should mention fuzzy_threshold, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: bananas
generation:
  temperature: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "provider.name") {
		t.Errorf("error should mention provider.name, got: %v", err)
	}
	if !strings.Contains(errStr, "temperature") {
		t.Errorf("error should mention temperature, got: %v", err)
	}
}

func TestValidate_UnknownProviderNameIsWarningOnly(t *testing.T) {
	t.Parallel()
	yaml := `
provider:
  name: my-custom-proxy
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error for third-party provider name: %v", err)
	}
	if cfg.Provider.Name != "my-custom-proxy" {
		t.Errorf("provider.name: got %q", cfg.Provider.Name)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("provider:\n  name: gemini\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Name != "gemini" {
		t.Errorf("provider.name: got %q", cfg.Provider.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	if !slices.Contains(config.ValidProviderNames, "gemini") {
		t.Error("ValidProviderNames should contain \"gemini\"")
	}
}
