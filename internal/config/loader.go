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

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"classifier": {"energy"},
	"recognizer": {"whisper", "whisper-native"},
	"translator": {"openai", "ollama", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path, applies defaults, and
// returns a validated [Config].
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
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_ms %d must be positive", cfg.Audio.FrameMs))
	}
	if cfg.Audio.FrameMs > 0 && cfg.Audio.TrailingSilenceMs < cfg.Audio.FrameMs {
		errs = append(errs, fmt.Errorf("audio.trailing_silence_ms %d must be at least one frame (%d ms)",
			cfg.Audio.TrailingSilenceMs, cfg.Audio.FrameMs))
	}
	if cfg.Audio.Aggressiveness < 0 || cfg.Audio.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("audio.aggressiveness %d is out of range [0, 3]", cfg.Audio.Aggressiveness))
	}
	if cfg.Audio.MaxUtteranceMs < 0 {
		errs = append(errs, fmt.Errorf("audio.max_utterance_ms %d must not be negative", cfg.Audio.MaxUtteranceMs))
	}

	// Providers
	validateProviderName("classifier", cfg.Providers.Classifier.Name)
	validateProviderName("recognizer", cfg.Providers.Recognizer.Name)
	validateProviderName("translator", cfg.Providers.Translator.Name)

	if cfg.Providers.Recognizer.Name == "" {
		errs = append(errs, errors.New("providers.recognizer is required"))
	}
	if cfg.Providers.Translator.Name == "" {
		errs = append(errs, errors.New("providers.translator is required"))
	}
	if cfg.Providers.Translator.Name == "openai" && cfg.Providers.Translator.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		slog.Warn("providers.translator.api_key is empty and OPENAI_API_KEY is unset; translation will fail")
	}

	// Poses
	if cfg.Poses.PostgresDSN == "" {
		errs = append(errs, errors.New("poses.postgres_dsn is required"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
