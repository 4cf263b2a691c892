package resilience

import (
	"context"

	"github.com/MrWong99/vaani/pkg/provider/llm"
	"github.com/MrWong99/vaani/pkg/provider/stt"
	"github.com/MrWong99/vaani/pkg/provider/tts"
	"github.com/MrWong99/vaani/pkg/types"
)

var (
	_ llm.Provider = (*LLMFallback)(nil)
	_ stt.Provider = (*STTFallback)(nil)
	_ tts.Provider = (*TTSFallback)(nil)
)

// LLMFallback is a completion provider that fails over across a group.
type LLMFallback struct{ *FallbackGroup[llm.Provider] }

// NewLLMFallback returns an [LLMFallback] preferring primary.
func NewLLMFallback(primary llm.Provider, name string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{NewFallbackGroup(primary, name, cfg)}
}

// Complete returns the reply of the first member that answers.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Do(ctx, f.FallbackGroup, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary's limits. Requests are sized for the
// primary even when a fallback serves them.
func (f *LLMFallback) Capabilities() types.ModelCapabilities { return f.Primary().Capabilities() }

// STTFallback is a transcription provider that fails over across a group.
type STTFallback struct{ *FallbackGroup[stt.Provider] }

// NewSTTFallback returns an [STTFallback] preferring primary.
func NewSTTFallback(primary stt.Provider, name string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{NewFallbackGroup(primary, name, cfg)}
}

// Transcribe returns the result of the first member that transcribes clip.
func (f *STTFallback) Transcribe(ctx context.Context, clip types.AudioClip, opts stt.Options) (*stt.Result, error) {
	return Do(ctx, f.FallbackGroup, func(p stt.Provider) (*stt.Result, error) {
		return p.Transcribe(ctx, clip, opts)
	})
}

// TTSFallback is a synthesis provider that fails over across a group. A
// fallback may pick a different concrete voice for the same locale and gender.
type TTSFallback struct{ *FallbackGroup[tts.Provider] }

// NewTTSFallback returns a [TTSFallback] preferring primary.
func NewTTSFallback(primary tts.Provider, name string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{NewFallbackGroup(primary, name, cfg)}
}

// Synthesize returns the audio of the first member that renders text.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.Voice) (types.AudioClip, error) {
	return Do(ctx, f.FallbackGroup, func(p tts.Provider) (types.AudioClip, error) {
		return p.Synthesize(ctx, text, voice)
	})
}
