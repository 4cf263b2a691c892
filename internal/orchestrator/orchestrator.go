// Package orchestrator runs one conversational turn: transcribe, resolve the
// reply language, answer from the similarity cache or the completion service,
// keep the conversation history bounded, and synthesise the reply in the
// matching locale.
//
// The orchestrator is stateless between turns; everything that carries over
// lives in the [session.State] passed to [Orchestrator.RunTurn]. It does not
// lock the state. Front ends hold [session.State.Lock] around each turn.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/vaani/internal/language"
	"github.com/MrWong99/vaani/internal/observe"
	"github.com/MrWong99/vaani/internal/session"
	"github.com/MrWong99/vaani/pkg/provider/llm"
	"github.com/MrWong99/vaani/pkg/provider/stt"
	"github.com/MrWong99/vaani/pkg/provider/tts"
	"github.com/MrWong99/vaani/pkg/types"
)

// Stage sentinels. Errors returned by [Orchestrator.RunTurn] match exactly one
// of them with [errors.Is], alongside the collaborator's own error.
var (
	ErrTranscribe      = errors.New("orchestrator: transcription failed")
	ErrComplete        = errors.New("orchestrator: completion failed")
	ErrSynthesize      = errors.New("orchestrator: synthesis failed")
	ErrEmptyTranscript = errors.New("orchestrator: empty transcript")
)

// Defaults applied by [New] to zero-valued [Config] fields.
const (
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.7
)

// DefaultExitKeywords end the conversation when spoken as the whole utterance.
var DefaultExitKeywords = []string{"exit", "quit"}

// Config holds per-deployment turn settings.
type Config struct {
	// ExitKeywords are compared against the trimmed, lower-cased transcript.
	// Empty uses [DefaultExitKeywords].
	ExitKeywords []string

	// MaxTokens caps the reply length. Zero uses [DefaultMaxTokens].
	MaxTokens int

	// Temperature is the sampling temperature passed to the completion service.
	Temperature float64

	// TurnLimit is the number of turns after which the conversation is cut
	// back to the persona. Zero uses [session.DefaultTurnLimit]; negative
	// disables the reset.
	TurnLimit int

	// VoiceGender selects the synthesis voice gender.
	VoiceGender types.Gender

	// VoiceName optionally pins a provider-specific voice.
	VoiceName string

	// TranscriptionLanguage is passed as a hint to the transcription service.
	// Empty lets the service auto-detect.
	TranscriptionLanguage string
}

// DefaultConfig returns the settings of the reference assistant.
func DefaultConfig() Config {
	return Config{
		ExitKeywords: DefaultExitKeywords,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultTemperature,
		TurnLimit:    session.DefaultTurnLimit,
		VoiceGender:  types.GenderMale,
	}
}

// Dependencies are the collaborators of a turn.
type Dependencies struct {
	STT      stt.Provider
	LLM      llm.Provider
	TTS      tts.Provider
	Resolver *language.Resolver
	Locales  language.LocaleMap
}

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithMetrics records turn metrics to m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithProviderNames sets the provider labels used in metrics and logs.
func WithProviderNames(sttName, llmName, ttsName string) Option {
	return func(o *Orchestrator) {
		o.names = providerNames{stt: sttName, llm: llmName, tts: ttsName}
	}
}

type providerNames struct {
	stt, llm, tts string
}

// Input is the user side of a turn: either recorded audio or typed text.
type Input struct {
	// Audio is transcribed when non-empty.
	Audio types.AudioClip

	// Text is used verbatim when Audio is empty.
	Text string

	// Language optionally declares the language of the turn. For text it is
	// taken as the transcription language. For audio it replaces the
	// configured transcription hint and is used when the service reports no
	// language. Empty or "unknown" defers to the detector.
	Language string
}

// Result is the outcome of a turn.
type Result struct {
	// Transcript is the user's utterance.
	Transcript string

	// Reply is the assistant's text. Empty when Exit is set.
	Reply string

	// Language is the resolved reply language.
	Language language.Resolution

	// Locale is the synthesis locale derived from Language.
	Locale string

	// CacheHit reports whether Reply came from the similarity cache.
	CacheHit bool

	// Exit reports that the user asked to end the conversation. No reply was
	// generated or synthesised.
	Exit bool

	// Audio is the synthesised reply.
	Audio types.AudioClip

	// Turn is the turn counter after this turn.
	Turn int
}

// Orchestrator runs turns. It is safe for concurrent use on distinct states.
type Orchestrator struct {
	cfg     Config
	deps    Dependencies
	metrics *observe.Metrics
	names   providerNames
	exit    map[string]struct{}
}

// New validates deps and returns an Orchestrator.
func New(cfg Config, deps Dependencies, opts ...Option) (*Orchestrator, error) {
	var errs []error
	if deps.STT == nil {
		errs = append(errs, errors.New("STT provider is required"))
	}
	if deps.LLM == nil {
		errs = append(errs, errors.New("LLM provider is required"))
	}
	if deps.TTS == nil {
		errs = append(errs, errors.New("TTS provider is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if deps.Resolver == nil {
		deps.Resolver = language.NewResolver()
	}

	if len(cfg.ExitKeywords) == 0 {
		cfg.ExitKeywords = DefaultExitKeywords
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.TurnLimit == 0 {
		cfg.TurnLimit = session.DefaultTurnLimit
	}

	o := &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		metrics: observe.DefaultMetrics(),
		names:   providerNames{stt: "stt", llm: "llm", tts: "tts"},
		exit:    make(map[string]struct{}, len(cfg.ExitKeywords)),
	}
	for _, k := range cfg.ExitKeywords {
		o.exit[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// IsExit reports whether transcript is one of the exit keywords.
func (o *Orchestrator) IsExit(transcript string) bool {
	_, ok := o.exit[strings.ToLower(strings.TrimSpace(transcript))]
	return ok
}

// RunTurn executes one turn against st.
//
// An exit keyword returns a Result with Exit set and a nil error without
// touching the cache, the conversation, or the synthesis service. A
// completion failure rolls the conversation back to its state before the
// turn. A synthesis failure is reported after the conversation and cache
// have been updated with the reply.
func (o *Orchestrator) RunTurn(ctx context.Context, in Input, st *session.State) (*Result, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "orchestrator.turn")
	defer span.End()

	res, outcome, err := o.runTurn(ctx, span, in, st)
	if err != nil {
		outcome = observe.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	o.metrics.RecordTurn(ctx, outcome)
	o.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	return res, err
}

func (o *Orchestrator) runTurn(ctx context.Context, span trace.Span, in Input, st *session.State) (*Result, string, error) {
	log := observe.Logger(ctx)

	transcript, reported, err := o.transcribe(ctx, in)
	if err != nil {
		return nil, "", err
	}
	res := &Result{Transcript: transcript, Turn: st.Turns}

	if strings.TrimSpace(transcript) == "" {
		return res, "", ErrEmptyTranscript
	}
	if o.IsExit(transcript) {
		log.Info("exit keyword received", "transcript", transcript)
		res.Exit = true
		return res, observe.OutcomeExit, nil
	}

	res.Language = o.deps.Resolver.Resolve(reported, transcript)
	o.metrics.RecordLanguageResolution(ctx, res.Language.Source.String(), res.Language.Code)
	if res.Language.Fallback() {
		log.Debug("language undetected, using fallback",
			"fallback", res.Language.Code, "err", res.Language.DetectErr)
	}

	outcome := observe.OutcomeReply
	if reply, ok := st.Cache.Lookup(transcript); ok {
		res.Reply = reply
		res.CacheHit = true
		outcome = observe.OutcomeCache
	} else {
		reply, err := o.complete(ctx, transcript, res.Language.Code, st)
		if err != nil {
			return res, "", err
		}
		res.Reply = reply
	}
	o.metrics.RecordCacheLookup(ctx, res.CacheHit)

	st.Turns = st.Conversation.MaybeReset(st.Turns, o.cfg.TurnLimit)
	res.Turn = st.Turns

	res.Locale = o.deps.Locales.Locale(res.Language.Code)
	span.SetAttributes(
		attribute.String("language", res.Language.Code),
		attribute.String("language.source", res.Language.Source.String()),
		attribute.String("locale", res.Locale),
		attribute.Bool("cache_hit", res.CacheHit),
	)

	log.Info("turn answered",
		"language", res.Language.Code,
		"source", res.Language.Source.String(),
		"cache_hit", res.CacheHit,
		"turn", res.Turn,
		"history_tokens", st.Conversation.TokenEstimate(),
	)

	clip, err := o.synthesize(ctx, res.Reply, res.Locale)
	if err != nil {
		return res, "", err
	}
	res.Audio = clip
	return res, outcome, nil
}

// transcribe returns the user's text and the language the transcription
// service reported for it.
func (o *Orchestrator) transcribe(ctx context.Context, in Input) (string, string, error) {
	if in.Audio.Empty() {
		lang := in.Language
		if lang == "" {
			lang = stt.LanguageUnknown
		}
		return in.Text, lang, nil
	}

	declared := strings.ToLower(strings.TrimSpace(in.Language))
	if declared == stt.LanguageUnknown {
		declared = ""
	}
	hint := o.cfg.TranscriptionLanguage
	if declared != "" {
		hint = declared
	}

	sctx, stage := o.metrics.StartStage(ctx, observe.KindSTT, o.names.stt)
	r, err := o.deps.STT.Transcribe(sctx, in.Audio, stt.Options{Language: hint})
	stage.End(sctx, err)
	if err != nil {
		return "", "", fmt.Errorf("orchestrator: transcribe: %w", errors.Join(ErrTranscribe, err))
	}
	lang := r.Language
	if declared != "" && (lang == "" || strings.EqualFold(lang, stt.LanguageUnknown)) {
		lang = declared
	}
	return r.Text, lang, nil
}

// complete asks the completion service for a reply and records the exchange.
// On failure the conversation is restored to its length before the call.
func (o *Orchestrator) complete(ctx context.Context, transcript, lang string, st *session.State) (string, error) {
	conv := st.Conversation
	mark := conv.Len()
	conv.AppendUser(transcript, lang)

	sctx, stage := o.metrics.StartStage(ctx, observe.KindLLM, o.names.llm)
	resp, err := o.deps.LLM.Complete(sctx, llm.CompletionRequest{
		Messages:    conv.Messages(),
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err == nil && resp == nil {
		err = errors.New("no response")
	}
	stage.End(sctx, err)
	if err != nil {
		conv.Truncate(mark)
		return "", fmt.Errorf("orchestrator: complete: %w", errors.Join(ErrComplete, err))
	}

	reply := resp.Content
	conv.AppendAssistant(reply)
	st.Cache.Store(transcript, reply)
	observe.Logger(ctx).Debug("completion usage",
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return reply, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, reply, locale string) (types.AudioClip, error) {
	voice := tts.Voice{Locale: locale, Gender: o.cfg.VoiceGender, Name: o.cfg.VoiceName}
	sctx, stage := o.metrics.StartStage(ctx, observe.KindTTS, o.names.tts)
	clip, err := o.deps.TTS.Synthesize(sctx, reply, voice)
	stage.End(sctx, err)
	if err != nil {
		return types.AudioClip{}, fmt.Errorf("orchestrator: synthesize: %w", errors.Join(ErrSynthesize, err))
	}
	return clip, nil
}
