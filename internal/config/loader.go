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

// ValidProviderNames lists known model backend names. [Validate] warns about
// unrecognised names rather than rejecting them, so third-party backends
// still load.
var ValidProviderNames = []string{
	"openai", "anthropic", "ollama", "gemini", "mistral",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
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

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.API.Concurrency == 0 {
		cfg.API.Concurrency = 4
	}
	if cfg.API.MaxRetries == 0 {
		cfg.API.MaxRetries = 3
	}
	if cfg.Extraction.MinConfidence == 0 {
		cfg.Extraction.MinConfidence = 0.8
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = "data/items"
	}
	if cfg.Paths.CacheDir == "" {
		cfg.Paths.CacheDir = ".cache"
	}
	if cfg.Paths.ItemIndex == "" {
		cfg.Paths.ItemIndex = "data/index/items.yaml"
	}
	if cfg.Paths.CurrencyIndex == "" {
		cfg.Paths.CurrencyIndex = "data/index/currencies.yaml"
	}
	if cfg.Walk.Mode == "" {
		cfg.Walk.Mode = "strict"
	}
	if cfg.Walk.MaxDepth == 0 {
		cfg.Walk.MaxDepth = 10
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Walk.Mode != "" && !cfg.Walk.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("walk.mode %q is invalid; valid values: strict, lenient", cfg.Walk.Mode))
	}
	if cfg.Walk.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("walk.max_depth %d must not be negative", cfg.Walk.MaxDepth))
	}
	if cfg.Walk.Limit < 0 {
		errs = append(errs, fmt.Errorf("walk.limit %d must not be negative", cfg.Walk.Limit))
	}
	if cfg.API.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("api.concurrency %d must not be negative", cfg.API.Concurrency))
	}
	if cfg.Extraction.MinConfidence < 0 || cfg.Extraction.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("extraction.min_confidence %.2f is out of range [0, 1]", cfg.Extraction.MinConfidence))
	}

	validateProviderName(cfg.Extraction.Provider.Name)
	for i, entry := range cfg.Extraction.Fallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("extraction.fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName(entry.Name)
	}

	if cfg.Extraction.Provider.Name == "" {
		slog.Warn("no extraction provider configured; populate runs will fail at the extraction stage")
	}
	if cfg.Database.PostgresDSN == "" {
		slog.Debug("database.postgres_dsn is empty; skipping the Postgres export store")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not in
// [ValidProviderNames].
func validateProviderName(name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party backend",
		"name", name,
		"known", ValidProviderNames,
	)
}
