package config

import "fmt"

// ConfigDiff describes what changed between two configs. The watcher callback
// uses it to decide which changes can be applied live; a provider change
// always requires constructing a new backend.
type ConfigDiff struct {
	LogLevelChanged   bool
	NewLogLevel       LogLevel
	ProviderChanged   bool
	GenerationChanged bool
	MatchingChanged   bool
	RetryChanged      bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.ProviderChanged || d.GenerationChanged ||
		d.MatchingChanged || d.RetryChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	if old.Provider.Name != new.Provider.Name ||
		old.Provider.APIKey != new.Provider.APIKey ||
		old.Provider.BaseURL != new.Provider.BaseURL ||
		old.Provider.Model != new.Provider.Model ||
		!equalOptions(old.Provider.Options, new.Provider.Options) {
		d.ProviderChanged = true
	}

	if old.Generation != new.Generation {
		d.GenerationChanged = true
	}
	if old.Matching != new.Matching {
		d.MatchingChanged = true
	}
	if old.Retry != new.Retry {
		d.RetryChanged = true
	}

	return d
}

// equalOptions compares the free-form provider option maps. Values are
// compared by their string form since YAML scalars dominate in practice.
func equalOptions(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || fmt.Sprint(va) != fmt.Sprint(vb) {
			return false
		}
	}
	return true
}
