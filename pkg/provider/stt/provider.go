// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A transcription provider turns one complete utterance (an [types.AudioClip],
// normally WAV-encoded mono PCM) into text plus the language the backend
// believes was spoken. Backends that cannot report a language, or that are
// unsure, return [LanguageUnknown]; the language resolver then falls back to
// text-based detection.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"strings"

	"github.com/MrWong99/vaani/pkg/types"
)

// LanguageUnknown is the sentinel language reported when the backend did not
// identify the spoken language.
const LanguageUnknown = "unknown"

// Options carries per-request recognition hints.
type Options struct {
	// Language is an ISO 639-1 hint (e.g., "hi"). Empty asks the backend to
	// auto-detect.
	Language string
}

// Result is the outcome of a single transcription.
type Result struct {
	// Text is the transcribed speech, trimmed of surrounding whitespace.
	Text string

	// Language is the ISO 639-1 code reported by the backend, or
	// [LanguageUnknown].
	Language string
}

// Provider is the abstraction over any transcription backend.
type Provider interface {
	// Transcribe converts clip to text. It blocks until the backend answers or
	// ctx is cancelled.
	//
	// An empty clip is an error. Unintelligible audio may legitimately return an
	// empty Text with a nil error; callers decide how to treat it.
	Transcribe(ctx context.Context, clip types.AudioClip, opts Options) (*Result, error)
}

// languageNames maps the full language names reported by whisper-family
// backends ("english", "hindi") to ISO 639-1 codes.
var languageNames = map[string]string{
	"english":    "en",
	"hindi":      "hi",
	"marathi":    "mr",
	"bengali":    "bn",
	"gujarati":   "gu",
	"tamil":      "ta",
	"telugu":     "te",
	"kannada":    "kn",
	"malayalam":  "ml",
	"punjabi":    "pa",
	"urdu":       "ur",
	"nepali":     "ne",
	"french":     "fr",
	"spanish":    "es",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"polish":     "pl",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"arabic":     "ar",
	"turkish":    "tr",
}

// NormalizeLanguage converts a backend-reported language (a code such as "HI"
// or a name such as "Hindi") to a lower-case ISO 639-1 code. Empty or
// unrecognised names yield [LanguageUnknown].
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	switch {
	case lang == "", lang == "auto", lang == LanguageUnknown:
		return LanguageUnknown
	case len(lang) == 2:
		return lang
	}
	if code, ok := languageNames[lang]; ok {
		return code
	}
	// Region-qualified tags such as "en-us" keep only the primary subtag.
	if i := strings.IndexAny(lang, "-_"); i == 2 {
		return lang[:2]
	}
	return LanguageUnknown
}
