package language

import (
	"slices"
	"strings"
)

// defaultLocales maps the languages the assistant speaks out of the box to
// their synthesis locales.
var defaultLocales = map[string]string{
	"en": "en-US",
	"hi": "hi-IN",
	"mr": "mr-IN",
}

// LocaleMap converts language codes into synthesis locales. The zero value
// uses only the built-in defaults.
type LocaleMap struct {
	m map[string]string
}

// NewLocaleMap returns the defaults merged with overrides. Override keys are
// lower-cased; empty values are ignored.
func NewLocaleMap(overrides map[string]string) LocaleMap {
	m := make(map[string]string, len(defaultLocales)+len(overrides))
	for k, v := range defaultLocales {
		m[k] = v
	}
	for k, v := range overrides {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || strings.TrimSpace(v) == "" {
			continue
		}
		m[k] = strings.TrimSpace(v)
	}
	return LocaleMap{m: m}
}

// Locale returns the synthesis locale for code. A regional code such as
// "en-GB" or "hi_IN" is looked up as given and then by its base language.
// Unmapped codes are returned unchanged.
func (l LocaleMap) Locale(code string) string {
	m := l.table()
	key := strings.ToLower(strings.TrimSpace(code))
	if loc, ok := m[key]; ok {
		return loc
	}
	if base, _, ok := strings.Cut(strings.ReplaceAll(key, "_", "-"), "-"); ok {
		if loc, ok := m[base]; ok {
			return loc
		}
	}
	return code
}

// Languages returns the mapped language codes in sorted order.
func (l LocaleMap) Languages() []string {
	m := l.table()
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (l LocaleMap) table() map[string]string {
	if l.m == nil {
		return defaultLocales
	}
	return l.m
}
