package language

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// ErrUndetectable is returned by a [Detector] that cannot name a language for
// the given text.
var ErrUndetectable = errors.New("language: undetectable")

// Detector guesses the language of a piece of text.
type Detector interface {
	// Detect returns a lower-case ISO 639-1 code or an error wrapping
	// [ErrUndetectable].
	Detect(text string) (string, error)
}

// DetectorFunc adapts a plain function to [Detector].
type DetectorFunc func(text string) (string, error)

// Detect implements [Detector].
func (f DetectorFunc) Detect(text string) (string, error) { return f(text) }

// DefaultDetectLanguages are the candidates of a zero [WhatlangDetector]:
// the languages the assistant has synthesis locales for out of the box.
var DefaultDetectLanguages = []string{"en", "hi", "mr"}

// maxLang bounds the scan over whatlanggo's language enum.
const maxLang = 256

// whatlangCode maps an ISO 639-1 code to its whatlanggo language.
func whatlangCode(code string) (whatlanggo.Lang, bool) {
	for l := whatlanggo.Lang(0); l < maxLang; l++ {
		if l.Iso6391() == code {
			return l, true
		}
	}
	return 0, false
}

// Detectable reports whether [NewWhatlangDetector] accepts code.
func Detectable(code string) bool {
	_, ok := whatlangCode(strings.ToLower(strings.TrimSpace(code)))
	return ok
}

// WhatlangDetector detects languages with trigram statistics from whatlanggo.
// Only candidate languages are considered, so short text such as "hello"
// cannot land on an unrelated language with a similar trigram profile. Text
// in a script none of the candidates use is undetectable.
//
// The zero value uses [DefaultDetectLanguages] and accepts any confidence.
type WhatlangDetector struct {
	whitelist     map[whatlanggo.Lang]bool
	minConfidence float64
}

var defaultWhitelist = func() map[whatlanggo.Lang]bool {
	w := make(map[whatlanggo.Lang]bool, len(DefaultDetectLanguages))
	for _, c := range DefaultDetectLanguages {
		if l, ok := whatlangCode(c); ok {
			w[l] = true
		}
	}
	return w
}()

// NewWhatlangDetector returns a detector restricted to languages (ISO 639-1
// codes; empty means [DefaultDetectLanguages]) that rejects guesses below
// minConfidence.
func NewWhatlangDetector(languages []string, minConfidence float64) (*WhatlangDetector, error) {
	d := &WhatlangDetector{minConfidence: minConfidence}
	if len(languages) == 0 {
		return d, nil
	}
	d.whitelist = make(map[whatlanggo.Lang]bool, len(languages))
	for _, c := range languages {
		l, ok := whatlangCode(strings.ToLower(strings.TrimSpace(c)))
		if !ok {
			return nil, fmt.Errorf("language: detector does not know %q", c)
		}
		d.whitelist[l] = true
	}
	return d, nil
}

// Languages returns the candidate codes.
func (d *WhatlangDetector) Languages() []string {
	w := d.candidates()
	out := make([]string, 0, len(w))
	for l := range w {
		out = append(out, l.Iso6391())
	}
	return out
}

func (d *WhatlangDetector) candidates() map[whatlanggo.Lang]bool {
	if len(d.whitelist) == 0 {
		return defaultWhitelist
	}
	return d.whitelist
}

// Detect implements [Detector].
func (d *WhatlangDetector) Detect(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" || whatlanggo.DetectScript(text) == nil {
		return "", ErrUndetectable
	}
	info := whatlanggo.DetectWithOptions(text, whatlanggo.Options{Whitelist: d.candidates()})
	if !d.candidates()[info.Lang] {
		return "", fmt.Errorf("%w: no candidate language uses this script", ErrUndetectable)
	}
	if info.Confidence < d.minConfidence {
		return "", fmt.Errorf("%w: %s at confidence %.2f", ErrUndetectable, info.Lang.Iso6391(), info.Confidence)
	}
	return info.Lang.Iso6391(), nil
}

var _ Detector = (*WhatlangDetector)(nil)
