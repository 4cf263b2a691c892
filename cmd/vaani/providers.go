package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/vaani/internal/app"
	"github.com/MrWong99/vaani/internal/config"
	"github.com/MrWong99/vaani/internal/observe"
	"github.com/MrWong99/vaani/internal/resilience"
	"github.com/MrWong99/vaani/pkg/provider/llm"
	"github.com/MrWong99/vaani/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/vaani/pkg/provider/llm/openai"
	"github.com/MrWong99/vaani/pkg/provider/stt"
	oastt "github.com/MrWong99/vaani/pkg/provider/stt/openai"
	"github.com/MrWong99/vaani/pkg/provider/stt/whisper"
	"github.com/MrWong99/vaani/pkg/provider/tts"
	"github.com/MrWong99/vaani/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/vaani/pkg/provider/tts/google"
	"github.com/MrWong99/vaani/pkg/types"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// ctx bounds the dial of providers that connect at construction time.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oallm.WithTimeout(d))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends go through any-llm and share the same pattern:
	// optional APIKey + optional BaseURL. Local servers (ollama, llamacpp)
	// only need the address.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "ollama",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oastt.WithTimeout(d))
		}
		return oastt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("google", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []google.Option
		if entry.APIKey != "" {
			opts = append(opts, google.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, google.WithEndpoint(entry.BaseURL))
		}
		if path := optString(entry.Options, "credentials_file"); path != "" {
			opts = append(opts, google.WithCredentialsFile(path))
		}
		if rate := optFloat(entry.Options, "speaking_rate"); rate > 0 {
			opts = append(opts, google.WithSpeakingRate(rate))
		}
		return google.New(ctx, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if id := optString(entry.Options, "voice_male"); id != "" {
			opts = append(opts, elevenlabs.WithVoice(types.GenderMale, id))
		}
		if id := optString(entry.Options, "voice_female"); id != "" {
			opts = append(opts, elevenlabs.WithVoice(types.GenderFemale, id))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates the providers named in cfg. A stage with
// fallbacks is wrapped in its resilience group so every backend gets its own
// circuit breaker. The returned closers release providers that hold
// connections or native resources.
func buildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*app.Providers, []func() error, error) {
	var closers []func() error
	track := func(p any) {
		if c, ok := p.(io.Closer); ok {
			closers = append(closers, c.Close)
		}
	}
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	fbCfg := fallbackConfig(metrics)
	ps := &app.Providers{
		LLMName: label(cfg.Providers.LLM),
		STTName: label(cfg.Providers.STT),
		TTSName: label(cfg.Providers.TTS),
	}

	// ── LLM ───────────────────────────────────────────────────────────────────
	llmEntry := cfg.Providers.LLM
	primaryLLM, err := createOne("llm", llmEntry, reg.CreateLLM, track)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	ps.LLM = primaryLLM
	if len(llmEntry.Fallbacks) > 0 {
		g := resilience.NewLLMFallback(primaryLLM, llmEntry.Name, fbCfg)
		for _, fb := range llmEntry.Fallbacks {
			p, err := createOne("llm", fb, reg.CreateLLM, track)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			g.AddFallback(fb.Name, p)
		}
		ps.LLM = g
	}

	// ── STT ───────────────────────────────────────────────────────────────────
	sttEntry := cfg.Providers.STT
	primarySTT, err := createOne("stt", sttEntry, reg.CreateSTT, track)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	ps.STT = primarySTT
	if len(sttEntry.Fallbacks) > 0 {
		g := resilience.NewSTTFallback(primarySTT, sttEntry.Name, fbCfg)
		for _, fb := range sttEntry.Fallbacks {
			p, err := createOne("stt", fb, reg.CreateSTT, track)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			g.AddFallback(fb.Name, p)
		}
		ps.STT = g
	}

	// ── TTS ───────────────────────────────────────────────────────────────────
	ttsEntry := cfg.Providers.TTS
	primaryTTS, err := createOne("tts", ttsEntry, reg.CreateTTS, track)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	ps.TTS = primaryTTS
	if len(ttsEntry.Fallbacks) > 0 {
		g := resilience.NewTTSFallback(primaryTTS, ttsEntry.Name, fbCfg)
		for _, fb := range ttsEntry.Fallbacks {
			p, err := createOne("tts", fb, reg.CreateTTS, track)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			g.AddFallback(fb.Name, p)
		}
		ps.TTS = g
	}

	return ps, closers, nil
}

// createOne builds a single provider through create and hands it to track.
func createOne[T any](kind string, entry config.ProviderEntry, create func(config.ProviderEntry) (T, error), track func(any)) (T, error) {
	p, err := create(entry)
	if err != nil {
		var zero T
		if errors.Is(err, config.ErrProviderNotRegistered) {
			return zero, fmt.Errorf("%s provider %q is not built in: %w", kind, entry.Name, err)
		}
		return zero, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
	}
	track(p)
	slog.Info("provider created", "kind", kind, "name", entry.Name, "model", entry.Model)
	return p, nil
}

// fallbackConfig reports per-backend failures to the log and circuit
// transitions to metrics.
func fallbackConfig(metrics *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				metrics.RecordCircuitTransition(context.Background(), name, to.String())
			},
		},
		OnFailure: func(provider string, err error) {
			slog.Warn("provider call failed, trying next", "provider", provider, "err", err)
		},
	}
}

// label names a stage in metrics: the primary provider, plus a marker when
// fallbacks may have answered instead.
func label(entry config.ProviderEntry) string {
	if len(entry.Fallbacks) > 0 {
		return entry.Name + "+fallbacks"
	}
	return entry.Name
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a number from Options. YAML decodes whole numbers as int.
func optFloat(opts map[string]any, key string) float64 {
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// optDuration parses a duration string such as "30s" from Options.
func optDuration(opts map[string]any, key string) time.Duration {
	d, err := time.ParseDuration(optString(opts, key))
	if err != nil {
		return 0
	}
	return d
}
