package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/vaani/internal/similarity"
	"github.com/MrWong99/vaani/pkg/types"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp"},
	"stt": {"whisper", "whisper-native", "openai"},
	"tts": {"google", "elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. ${VAR} references in the file are expanded from the environment
// before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// references, applies defaults, and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
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
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.Mode != "" && !cfg.Server.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("server.mode %q is invalid; valid values: voice, text, server", cfg.Server.Mode))
	}

	// Providers
	errs = append(errs, validateEntry("llm", "providers.llm", cfg.Providers.LLM)...)
	errs = append(errs, validateEntry("stt", "providers.stt", cfg.Providers.STT)...)
	errs = append(errs, validateEntry("tts", "providers.tts", cfg.Providers.TTS)...)

	// Persona
	if _, ok := types.ParseGender(cfg.Persona.VoiceGender); !ok {
		errs = append(errs, fmt.Errorf("persona.voice_gender %q is invalid; valid values: male, female, neutral", cfg.Persona.VoiceGender))
	}

	// Conversation
	if cfg.Conversation.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("conversation.max_tokens %d must be positive", cfg.Conversation.MaxTokens))
	}
	if t := cfg.Conversation.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("conversation.temperature %.2f is out of range [0, 2]", *t))
	}
	for i, k := range cfg.Conversation.ExitKeywords {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, fmt.Errorf("conversation.exit_keywords[%d] is empty", i))
		}
	}

	// Cache
	if th := cfg.Cache.Threshold; th < 0 || th > 1 {
		errs = append(errs, fmt.Errorf("cache.threshold %.2f is out of range [0, 1]", th))
	}
	if _, err := similarity.ScorerByName(cfg.Cache.Scorer); err != nil {
		errs = append(errs, fmt.Errorf("cache.scorer %q is invalid; valid values: ratio, jaro-winkler", cfg.Cache.Scorer))
	}

	// Language
	if c := cfg.Language.MinConfidence; c < 0 || c > 1 {
		errs = append(errs, fmt.Errorf("language.min_confidence %.2f is out of range [0, 1]", c))
	}
	for code, loc := range cfg.Language.Locales {
		if strings.TrimSpace(code) == "" || strings.TrimSpace(loc) == "" {
			errs = append(errs, fmt.Errorf("language.locales entry %q: %q must have a code and a locale", code, loc))
		}
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if th := cfg.Audio.SilenceThreshold; th < 0 || th >= 1 {
		errs = append(errs, fmt.Errorf("audio.silence_threshold %.3f is out of range [0, 1)", th))
	}
	if cfg.Audio.Timeout < 0 || cfg.Audio.PhraseLimit < 0 || cfg.Audio.SilenceDuration < 0 {
		errs = append(errs, errors.New("audio durations must not be negative"))
	}

	return errors.Join(errs...)
}

// validateEntry checks a provider entry and its fallbacks.
func validateEntry(kind, path string, e ProviderEntry) []error {
	var errs []error
	if e.Name == "" {
		errs = append(errs, fmt.Errorf("%s.name is required", path))
	}
	validateProviderName(kind, e.Name)
	for i, fb := range e.Fallbacks {
		fbPath := fmt.Sprintf("%s.fallbacks[%d]", path, i)
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("%s: nested fallbacks are not supported", fbPath))
		}
		errs = append(errs, validateEntry(kind, fbPath, ProviderEntry{Name: fb.Name})...)
	}
	return errs
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
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
