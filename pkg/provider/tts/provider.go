// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A synthesis provider turns one complete assistant reply into a playable
// [types.AudioClip]. The caller selects the voice by synthesis locale (the
// resolved language mapped through the locale table, e.g. "hi-IN") and gender;
// providers pick the concrete voice.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"strings"

	"github.com/MrWong99/vaani/pkg/types"
)

// Voice describes the requested speaking voice.
type Voice struct {
	// Locale is the synthesis locale, e.g. "en-US" or "mr-IN". Providers
	// accept bare language codes as well.
	Locale string

	// Gender is the requested voice gender. Unspecified lets the provider choose.
	Gender types.Gender

	// Name is an optional provider-specific voice identifier that overrides
	// locale/gender based selection.
	Name string
}

// Language returns the primary language subtag of the locale, lower-cased
// ("hi-IN" yields "hi").
func (v Voice) Language() string {
	lang, _, _ := strings.Cut(v.Locale, "-")
	return strings.ToLower(lang)
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text in the requested voice. It blocks until the full
	// clip is available or ctx is cancelled.
	//
	// Returns an error if text is empty, the voice cannot be satisfied, or the
	// backend fails.
	Synthesize(ctx context.Context, text string, voice Voice) (types.AudioClip, error)
}
