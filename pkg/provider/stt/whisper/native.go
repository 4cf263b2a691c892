// The native provider links whisper.cpp through its CGO bindings. Building
// it needs libwhisper.a and whisper.h on LIBRARY_PATH and C_INCLUDE_PATH.

package whisper

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/vaani/pkg/audio"
	"github.com/MrWong99/vaani/pkg/provider/stt"
	"github.com/MrWong99/vaani/pkg/types"
)

// nativeRate is the only input rate whisper.cpp accepts.
const nativeRate = 16000

var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider transcribes in process with a local ggml model. The model
// is shared between calls; every call gets its own inference context.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	once     sync.Once
	closeErr error
}

// NativeOption configures a [NativeProvider].
type NativeOption func(*NativeProvider)

// WithNativeLanguage pins recognition to one ISO 639-1 language instead of
// auto-detection. A per-call [stt.Options] language still wins.
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative loads the model at path, for example "models/ggml-small.bin".
// Close releases it.
func NewNative(path string, opts ...NativeOption) (*NativeProvider, error) {
	if path == "" {
		return nil, errors.New("whisper: model path is required")
	}
	model, err := whisperlib.New(path)
	if err != nil {
		return nil, fmt.Errorf("whisper: load %s: %w", path, err)
	}
	p := &NativeProvider{model: model, language: autoLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the model. Later calls return the first result.
func (p *NativeProvider) Close() error {
	p.once.Do(func() {
		if p.model != nil {
			p.closeErr = p.model.Close()
		}
	})
	return p.closeErr
}

// Transcribe resamples clip to 16 kHz mono and runs inference. Cancelling
// ctx aborts before the encoder starts.
func (p *NativeProvider) Transcribe(ctx context.Context, clip types.AudioClip, opts stt.Options) (*stt.Result, error) {
	if clip.Empty() {
		return nil, errors.New("whisper: empty audio clip")
	}
	samples, err := audio.ClipToMono16(clip, nativeRate)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: new context: %w", err)
	}
	lang := cmp.Or(opts.Language, p.language)
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: language not supported by model, auto-detecting", "language", lang, "err", err)
	}

	var text []string
	err = wctx.Process(audio.ToFloat32(samples),
		func() bool { return ctx.Err() == nil },
		func(s whisperlib.Segment) {
			if t := strings.TrimSpace(s.Text); t != "" {
				text = append(text, t)
			}
		},
		nil,
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("whisper: process: %w", err)
	}

	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = wctx.Language()
	}
	return &stt.Result{
		Text:     strings.Join(text, " "),
		Language: stt.NormalizeLanguage(detected),
	}, nil
}
