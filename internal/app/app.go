// Package app wires the conversation core into a running front end.
//
// The App struct owns the full lifecycle: New builds the orchestrator, the
// session registry and the health checks from the config, Run executes the
// loop selected by the configured mode, and Shutdown releases providers and
// devices in order.
//
// For testing, inject doubles via functional options (WithRecorder,
// WithPlayer, WithInput, WithOutput, WithMetrics). Providers always come from
// the caller, normally main.go via the config registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/MrWong99/vaani/internal/cache"
	"github.com/MrWong99/vaani/internal/config"
	"github.com/MrWong99/vaani/internal/health"
	"github.com/MrWong99/vaani/internal/language"
	"github.com/MrWong99/vaani/internal/observe"
	"github.com/MrWong99/vaani/internal/orchestrator"
	"github.com/MrWong99/vaani/internal/session"
	"github.com/MrWong99/vaani/internal/similarity"
	"github.com/MrWong99/vaani/pkg/audio"
	"github.com/MrWong99/vaani/pkg/provider/llm"
	"github.com/MrWong99/vaani/pkg/provider/stt"
	"github.com/MrWong99/vaani/pkg/provider/tts"
	"github.com/MrWong99/vaani/pkg/types"
)

// Providers holds one interface value per turn stage. All three are
// required. Populated by main.go via the config registry.
type Providers struct {
	LLM llm.Provider
	STT stt.Provider
	TTS tts.Provider

	// Names label the providers in metrics and logs. Empty names fall back
	// to the stage name.
	LLMName, STTName, TTSName string
}

// checker is implemented by providers that can report readiness, such as
// the resilience fallbacks.
type checker interface {
	Check(ctx context.Context) error
}

// App owns all subsystem lifetimes for one front end.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	orch   *orchestrator.Orchestrator
	store  *session.Store
	health *health.Handler

	recorder audio.Recorder
	player   audio.Player
	in       io.Reader
	out      io.Writer

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRecorder sets the microphone used by the voice loop.
func WithRecorder(r audio.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithPlayer sets the speaker. Without one, replies are printed only.
func WithPlayer(p audio.Player) Option {
	return func(a *App) { a.player = p }
}

// WithInput sets the reader for the text loop. Default: os.Stdin.
func WithInput(r io.Reader) Option {
	return func(a *App) { a.in = r }
}

// WithOutput sets where the console loops print. Default: os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithMetrics records to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithCloser registers fn to run during Shutdown, after the closers added
// before it.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New creates an App by wiring the conversation core to providers.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		return nil, errors.New("app: providers are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		in:        os.Stdin,
		out:       os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	scorer, err := similarity.ScorerByName(cfg.Cache.Scorer)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.store = session.NewStore(session.StoreConfig{
		Persona: cfg.Persona.Prompt,
		NewCache: func() *cache.Cache {
			return cache.New(cache.WithScorer(scorer), cache.WithThreshold(cfg.Cache.Threshold))
		},
		TTL: cfg.Server.SessionTTL,
	})

	if err := a.initOrchestrator(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.initHealth()
	return a, nil
}

func (a *App) initOrchestrator() error {
	gender, ok := types.ParseGender(a.cfg.Persona.VoiceGender)
	if !ok {
		return fmt.Errorf("invalid voice gender %q", a.cfg.Persona.VoiceGender)
	}
	temperature := config.DefaultTemperature
	if t := a.cfg.Conversation.Temperature; t != nil {
		temperature = *t
	}

	locales := language.NewLocaleMap(a.cfg.Language.Locales)
	detector, err := language.NewWhatlangDetector(detectLanguages(a.cfg.Language, locales), a.cfg.Language.MinConfidence)
	if err != nil {
		return err
	}
	resolver := language.NewResolver(
		language.WithDetector(detector),
		language.WithFallback(a.cfg.Language.Fallback),
	)

	orch, err := orchestrator.New(orchestrator.Config{
		ExitKeywords:          a.cfg.Conversation.ExitKeywords,
		MaxTokens:             a.cfg.Conversation.MaxTokens,
		Temperature:           temperature,
		TurnLimit:             a.cfg.Conversation.TurnLimit,
		VoiceGender:           gender,
		VoiceName:             a.cfg.Persona.VoiceName,
		TranscriptionLanguage: a.cfg.Language.Hint,
	}, orchestrator.Dependencies{
		STT:      a.providers.STT,
		LLM:      a.providers.LLM,
		TTS:      a.providers.TTS,
		Resolver: resolver,
		Locales:  locales,
	},
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithProviderNames(
			nameOr(a.providers.STTName, "stt"),
			nameOr(a.providers.LLMName, "llm"),
			nameOr(a.providers.TTSName, "tts"),
		),
	)
	if err != nil {
		return err
	}
	a.orch = orch
	return nil
}

// initHealth registers a readiness check for every provider that can
// report one.
func (a *App) initHealth() {
	var checks []health.Checker
	for _, p := range []struct {
		name string
		v    any
	}{
		{"stt", a.providers.STT},
		{"llm", a.providers.LLM},
		{"tts", a.providers.TTS},
	} {
		if c, ok := p.v.(checker); ok {
			checks = append(checks, health.Checker{Name: p.name, Check: c.Check})
		}
	}
	a.health = health.New(checks...)
}

// Run executes the front end selected by the config's mode until it ends or
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	switch a.cfg.Server.Mode {
	case config.ModeVoice, "":
		return a.RunVoice(ctx)
	case config.ModeText:
		return a.RunText(ctx)
	case config.ModeServer:
		return a.Serve(ctx)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Server.Mode)
	}
}

// ApplyConfig applies the hot-reloadable parts of a changed config. The log
// level is handled by the caller that owns the logger.
func (a *App) ApplyConfig(d config.ConfigDiff) {
	if d.PersonaChanged {
		a.store.SetPersona(d.NewPersona)
		slog.Info("persona updated for new conversations")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// Shutdown runs the registered closers in order. It is safe to call more
// than once; only the first call does any work.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		for _, c := range a.closers {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				return
			}
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	return nil
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// detectLanguages returns the configured detection candidates, or the languages
// the assistant can voice plus the fallback. Derived codes the detector does
// not know are skipped.
func detectLanguages(cfg config.LanguageConfig, locales language.LocaleMap) []string {
	if len(cfg.DetectLanguages) > 0 {
		return cfg.DetectLanguages
	}
	var out []string
	for _, code := range append(locales.Languages(), cfg.Fallback) {
		if language.Detectable(code) && !slices.Contains(out, code) {
			out = append(out, code)
		}
	}
	return out
}
