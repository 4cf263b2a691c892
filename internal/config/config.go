// Package config provides the configuration schema, loader, and provider
// registry for the Vaani voice assistant.
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

// Mode selects the front end started by the binary.
type Mode string

const (
	// ModeVoice records from the microphone and plays replies on the speaker.
	ModeVoice Mode = "voice"

	// ModeText reads typed lines from stdin.
	ModeText Mode = "text"

	// ModeServer serves the HTTP and WebSocket API.
	ModeServer Mode = "server"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeVoice, ModeText, ModeServer:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr       = ":8080"
	DefaultSessionTTL       = 30 * time.Minute
	DefaultTurnLimit        = 6
	DefaultMaxTokens        = 150
	DefaultTemperature      = 0.7
	DefaultCacheThreshold   = 0.8
	DefaultFallbackLanguage = "en"
	DefaultSampleRate       = 16000
	DefaultListenTimeout    = 5 * time.Second
	DefaultPhraseLimit      = 10 * time.Second
	DefaultSilenceDuration  = 800 * time.Millisecond
	DefaultSilenceThreshold = 0.015
	DefaultPersona          = "You are Bharat Bhai, a friendly and helpful customer support assistant. " +
		"Keep answers short and conversational, and always reply in the language the user asks for."
)

// Config is the root configuration structure for Vaani.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Persona      PersonaConfig      `yaml:"persona"`
	Conversation ConversationConfig `yaml:"conversation"`
	Cache        CacheConfig        `yaml:"cache"`
	Language     LanguageConfig     `yaml:"language"`
	Audio        AudioConfig        `yaml:"audio"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the API listens on in server mode.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// Mode selects the front end. Default: voice.
	Mode Mode `yaml:"mode"`

	// SessionTTL expires idle API sessions. Negative keeps them until exit.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// ProvidersConfig declares which provider implementation to use for each
// turn stage. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "google").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-3.5-turbo", "whisper-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// PersonaConfig describes who the assistant is and how it sounds.
type PersonaConfig struct {
	// Prompt is the system message at the head of every conversation.
	Prompt string `yaml:"prompt"`

	// VoiceGender is male, female, or neutral. Default: male.
	VoiceGender string `yaml:"voice_gender"`

	// VoiceName pins a provider-specific voice.
	VoiceName string `yaml:"voice_name"`
}

// ConversationConfig tunes the turn loop.
type ConversationConfig struct {
	// TurnLimit resets the history to the persona after this many turns.
	// Negative disables the reset.
	TurnLimit int `yaml:"turn_limit"`

	// MaxTokens caps each reply.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the sampling temperature. Nil uses the default.
	Temperature *float64 `yaml:"temperature"`

	// ExitKeywords end the conversation. Default: exit, quit.
	ExitKeywords []string `yaml:"exit_keywords"`
}

// CacheConfig tunes the similarity cache.
type CacheConfig struct {
	// Threshold is the minimum similarity for a hit, in (0, 1].
	Threshold float64 `yaml:"threshold"`

	// Scorer is "ratio" (default) or "jaro-winkler".
	Scorer string `yaml:"scorer"`
}

// LanguageConfig tunes language resolution.
type LanguageConfig struct {
	// Fallback is used when the language cannot be determined. Default: en.
	Fallback string `yaml:"fallback"`

	// MinConfidence rejects detector guesses below this confidence.
	MinConfidence float64 `yaml:"min_confidence"`

	// DetectLanguages restricts text detection to these ISO 639-1 codes.
	// Empty means the languages of Locales plus Fallback.
	DetectLanguages []string `yaml:"detect_languages"`

	// Hint is passed to the transcription service. Empty auto-detects.
	Hint string `yaml:"hint"`

	// Locales overrides or extends the language to synthesis locale map.
	Locales map[string]string `yaml:"locales"`
}

// AudioConfig tunes capture and playback in voice mode.
type AudioConfig struct {
	SampleRate       int           `yaml:"sample_rate"`
	Timeout          time.Duration `yaml:"timeout"`
	PhraseLimit      time.Duration `yaml:"phrase_limit"`
	SilenceDuration  time.Duration `yaml:"silence_duration"`
	SilenceThreshold float64       `yaml:"silence_threshold"`

	// Playback disables speaker output when set to false. Nil means enabled.
	Playback *bool `yaml:"playback"`
}

// PlaybackEnabled reports whether replies should be played on the speaker.
func (a AudioConfig) PlaybackEnabled() bool {
	return a.Playback == nil || *a.Playback
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = ModeVoice
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = DefaultSessionTTL
	}
	if cfg.Persona.Prompt == "" {
		cfg.Persona.Prompt = DefaultPersona
	}
	if cfg.Persona.VoiceGender == "" {
		cfg.Persona.VoiceGender = "male"
	}
	if cfg.Conversation.TurnLimit == 0 {
		cfg.Conversation.TurnLimit = DefaultTurnLimit
	}
	if cfg.Conversation.MaxTokens == 0 {
		cfg.Conversation.MaxTokens = DefaultMaxTokens
	}
	if cfg.Conversation.Temperature == nil {
		t := DefaultTemperature
		cfg.Conversation.Temperature = &t
	}
	if len(cfg.Conversation.ExitKeywords) == 0 {
		cfg.Conversation.ExitKeywords = []string{"exit", "quit"}
	}
	if cfg.Cache.Threshold == 0 {
		cfg.Cache.Threshold = DefaultCacheThreshold
	}
	if cfg.Language.Fallback == "" {
		cfg.Language.Fallback = DefaultFallbackLanguage
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.Timeout == 0 {
		cfg.Audio.Timeout = DefaultListenTimeout
	}
	if cfg.Audio.PhraseLimit == 0 {
		cfg.Audio.PhraseLimit = DefaultPhraseLimit
	}
	if cfg.Audio.SilenceDuration == 0 {
		cfg.Audio.SilenceDuration = DefaultSilenceDuration
	}
	if cfg.Audio.SilenceThreshold == 0 {
		cfg.Audio.SilenceThreshold = DefaultSilenceThreshold
	}
}
