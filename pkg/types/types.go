// Package types defines the value types shared by the Vaani providers, the
// conversation core and the front ends.
//
// Each package owns its own domain types; only data that crosses package
// boundaries (chat messages, audio clips, voice gender) lives here so that
// providers and the core never import each other.
package types

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem marks the persona message at the head of every conversation.
	RoleSystem Role = "system"

	// RoleUser marks a message spoken or typed by the person talking to the assistant.
	RoleUser Role = "user"

	// RoleAssistant marks a reply produced by the completion service.
	RoleAssistant Role = "assistant"
)

// Message is a single immutable entry in a conversation history.
type Message struct {
	// Role is the author of the message.
	Role Role

	// Content is the text content of the message.
	Content string
}

// Common audio content types produced and consumed by the providers.
const (
	ContentTypeWAV  = "audio/wav"
	ContentTypeMP3  = "audio/mpeg"
	ContentTypePCM  = "audio/pcm"
	ContentTypeOGG  = "audio/ogg"
	ContentTypeNone = ""
)

// AudioClip is a complete, self-contained piece of audio: a captured utterance
// on its way to transcription or a synthesised reply on its way to playback.
type AudioClip struct {
	// Data holds the encoded audio (WAV, MP3) or raw little-endian PCM when
	// ContentType is [ContentTypePCM].
	Data []byte

	// ContentType is the MIME type of Data.
	ContentType string

	// SampleRate in Hz. Zero when the value is carried inside an encoded container.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo. Zero when carried inside the container.
	Channels int

	// Duration is the clip length when known.
	Duration time.Duration
}

// Empty reports whether the clip carries no audio data.
func (c AudioClip) Empty() bool { return len(c.Data) == 0 }

// Gender selects the speaking voice of the synthesis service.
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderNeutral     Gender = "neutral"
)

// ParseGender converts a configuration string into a [Gender]. Matching is
// case-insensitive; unknown values yield false.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return GenderUnspecified, true
	case "male", "m":
		return GenderMale, true
	case "female", "f":
		return GenderFemale, true
	case "neutral":
		return GenderNeutral, true
	default:
		return GenderUnspecified, false
	}
}

// ModelCapabilities describes what a completion model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int
}
