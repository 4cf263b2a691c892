// Package language decides which language a reply should be written and
// spoken in, and maps that language to a synthesis locale.
//
// The transcription service's own report wins. When it could not tell, a
// text detector is consulted, and when that fails too the configured fallback
// (English by default) is used. Resolution never fails: the fallback case is
// an explicit [Resolution] value, distinct from collaborator errors.
package language

import (
	"strings"
)

// DefaultFallback is the code used when both the transcription service and
// the detector come up empty.
const DefaultFallback = "en"

// unknown is the marker transcription services report when they could not
// identify the language.
const unknown = "unknown"

// Source records which rule produced a [Resolution].
type Source int

const (
	// SourceTranscription means the transcription service reported the language.
	SourceTranscription Source = iota
	// SourceDetector means the text detector identified the language.
	SourceDetector
	// SourceFallback means the default language was used.
	SourceFallback
)

// String returns a short label, used as a metric attribute.
func (s Source) String() string {
	switch s {
	case SourceTranscription:
		return "transcription"
	case SourceDetector:
		return "detector"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of [Resolver.Resolve].
type Resolution struct {
	// Code is the lower-case language code, e.g. "hi".
	Code string

	// Source is the rule that produced Code.
	Source Source

	// DetectErr is the detector error when Source is SourceFallback, nil otherwise.
	DetectErr error
}

// Fallback reports whether the default language was used.
func (r Resolution) Fallback() bool { return r.Source == SourceFallback }

// Option is a functional option for configuring a [Resolver].
type Option func(*Resolver)

// WithDetector replaces the text detector. Default: [WhatlangDetector].
func WithDetector(d Detector) Option {
	return func(r *Resolver) {
		if d != nil {
			r.detector = d
		}
	}
}

// WithFallback sets the fallback language code. Default: "en".
func WithFallback(code string) Option {
	return func(r *Resolver) {
		if c := strings.ToLower(strings.TrimSpace(code)); c != "" {
			r.fallback = c
		}
	}
}

// Resolver applies the language policy. It is stateless and safe for
// concurrent use as long as its detector is.
type Resolver struct {
	detector Detector
	fallback string
}

// NewResolver returns a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		detector: &WhatlangDetector{},
		fallback: DefaultFallback,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve picks the language for a turn from the transcription service's
// report and the transcript text.
func (r *Resolver) Resolve(transcriptionLang, text string) Resolution {
	if lang := strings.ToLower(strings.TrimSpace(transcriptionLang)); lang != "" && lang != unknown {
		return Resolution{Code: lang, Source: SourceTranscription}
	}
	code, err := r.detector.Detect(text)
	if err == nil && code != "" {
		return Resolution{Code: strings.ToLower(code), Source: SourceDetector}
	}
	if err == nil {
		err = ErrUndetectable
	}
	return Resolution{Code: r.fallback, Source: SourceFallback, DetectErr: err}
}

// FallbackCode returns the configured fallback language code.
func (r *Resolver) FallbackCode() string { return r.fallback }
