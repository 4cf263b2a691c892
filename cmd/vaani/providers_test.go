package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/vaani/internal/config"
	"github.com/MrWong99/vaani/internal/observe"
	"github.com/MrWong99/vaani/internal/resilience"
	"github.com/MrWong99/vaani/pkg/provider/llm"
	llmmock "github.com/MrWong99/vaani/pkg/provider/llm/mock"
	"github.com/MrWong99/vaani/pkg/provider/stt"
	sttmock "github.com/MrWong99/vaani/pkg/provider/stt/mock"
	"github.com/MrWong99/vaani/pkg/provider/tts"
	ttsmock "github.com/MrWong99/vaani/pkg/provider/tts/mock"
)

// closingTTS counts Close calls.
type closingTTS struct {
	ttsmock.Provider
	closed int
}

func (c *closingTTS) Close() error { c.closed++; return nil }

func testRegistry(speaker *closingTTS) *config.Registry {
	reg := config.NewRegistry()
	for _, name := range []string{"a", "b"} {
		reg.RegisterLLM(name, func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
		reg.RegisterSTT(name, func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil })
	}
	reg.RegisterTTS("a", func(config.ProviderEntry) (tts.Provider, error) { return speaker, nil })
	return reg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestBuildProviders_WrapsFallbacks(t *testing.T) {
	t.Parallel()

	speaker := &closingTTS{}
	cfg := &config.Config{Providers: config.ProvidersConfig{
		LLM: config.ProviderEntry{Name: "a", Fallbacks: []config.ProviderEntry{{Name: "b"}}},
		STT: config.ProviderEntry{Name: "b"},
		TTS: config.ProviderEntry{Name: "a"},
	}}

	ps, closers, err := buildProviders(cfg, testRegistry(speaker), testMetrics(t))
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if _, ok := ps.LLM.(*resilience.LLMFallback); !ok {
		t.Errorf("LLM = %T, want *resilience.LLMFallback", ps.LLM)
	}
	if _, ok := ps.STT.(*sttmock.Provider); !ok {
		t.Errorf("STT = %T, want the bare provider", ps.STT)
	}
	if ps.LLMName != "a+fallbacks" || ps.STTName != "b" {
		t.Errorf("names = %q, %q", ps.LLMName, ps.STTName)
	}
	if len(closers) != 1 {
		t.Fatalf("closers = %d, want 1", len(closers))
	}
	_ = closers[0]()
	if speaker.closed != 1 {
		t.Errorf("closed = %d, want 1", speaker.closed)
	}
}

func TestBuildProviders_UnknownNameClosesCreated(t *testing.T) {
	t.Parallel()

	speaker := &closingTTS{}
	cfg := &config.Config{Providers: config.ProvidersConfig{
		LLM: config.ProviderEntry{Name: "a"},
		STT: config.ProviderEntry{Name: "a"},
		TTS: config.ProviderEntry{Name: "a", Fallbacks: []config.ProviderEntry{{Name: "nope"}}},
	}}

	_, _, err := buildProviders(cfg, testRegistry(speaker), testMetrics(t))
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
	if speaker.closed != 1 {
		t.Errorf("closed = %d, want the primary closed once", speaker.closed)
	}
}

func TestOptionHelpers(t *testing.T) {
	t.Parallel()

	opts := map[string]any{
		"format":  "mp3_44100_128",
		"rate":    1.25,
		"whole":   2,
		"timeout": "30s",
		"bad":     "soon",
	}
	if got := optString(opts, "format"); got != "mp3_44100_128" {
		t.Errorf("optString = %q", got)
	}
	if got := optString(opts, "rate"); got != "" {
		t.Errorf("optString on a number = %q, want empty", got)
	}
	if got := optString(nil, "format"); got != "" {
		t.Errorf("optString(nil) = %q", got)
	}
	if got := optFloat(opts, "rate"); got != 1.25 {
		t.Errorf("optFloat = %v", got)
	}
	if got := optFloat(opts, "whole"); got != 2 {
		t.Errorf("optFloat(int) = %v", got)
	}
	if got := optDuration(opts, "timeout"); got != 30*time.Second {
		t.Errorf("optDuration = %v", got)
	}
	if got := optDuration(opts, "bad"); got != 0 {
		t.Errorf("optDuration(bad) = %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for _, lvl := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if got := parseLevel(lvl).String(); got != strings.ToUpper(string(lvl)) {
			t.Errorf("parseLevel(%q) = %s", lvl, got)
		}
	}
}
