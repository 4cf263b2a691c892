package llm

import (
	"strings"

	"github.com/MrWong99/vaani/pkg/types"
)

// DefaultCapabilities apply to models no known family matches.
var DefaultCapabilities = types.ModelCapabilities{
	ContextWindow:   128_000,
	MaxOutputTokens: 4_096,
}

// families is ordered: the first matching prefix wins, so longer prefixes of
// the same family come first.
var families = []struct {
	prefix string
	caps   types.ModelCapabilities
}{
	{"gpt-4o", types.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 16_384}},
	{"gpt-4.1", types.ModelCapabilities{ContextWindow: 1_047_576, MaxOutputTokens: 32_768}},
	{"gpt-4-turbo", types.ModelCapabilities{ContextWindow: 128_000, MaxOutputTokens: 4_096}},
	{"gpt-4", types.ModelCapabilities{ContextWindow: 8_192, MaxOutputTokens: 4_096}},
	{"gpt-3.5-turbo", types.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096}},
	{"claude", types.ModelCapabilities{ContextWindow: 200_000, MaxOutputTokens: 8_192}},
	{"gemini", types.ModelCapabilities{ContextWindow: 1_048_576, MaxOutputTokens: 8_192}},
	{"deepseek", types.ModelCapabilities{ContextWindow: 64_000, MaxOutputTokens: 8_192}},
	{"mistral", types.ModelCapabilities{ContextWindow: 32_000, MaxOutputTokens: 8_192}},
}

// LookupCapabilities returns the limits of the model family that model
// belongs to, matched case-insensitively by name prefix.
func LookupCapabilities(model string) types.ModelCapabilities {
	name := strings.ToLower(model)
	for _, f := range families {
		if strings.HasPrefix(name, f.prefix) {
			return f.caps
		}
	}
	return DefaultCapabilities
}
