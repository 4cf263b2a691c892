package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// server changes need a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PersonaChanged is set when the system prompt changed. New sessions pick
	// up the new prompt; running conversations keep theirs.
	PersonaChanged bool
	NewPersona     string

	// RestartRequired lists changed sections that are only read at startup.
	RestartRequired []string
}

// Empty reports whether nothing relevant changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.PersonaChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Persona.Prompt != new.Persona.Prompt {
		d.PersonaChanged = true
		d.NewPersona = new.Persona.Prompt
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.Mode != new.Server.Mode {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Persona.VoiceGender != new.Persona.VoiceGender || old.Persona.VoiceName != new.Persona.VoiceName {
		d.RestartRequired = append(d.RestartRequired, "persona.voice")
	}
	if !conversationEqual(old.Conversation, new.Conversation) {
		d.RestartRequired = append(d.RestartRequired, "conversation")
	}
	if old.Cache != new.Cache {
		d.RestartRequired = append(d.RestartRequired, "cache")
	}

	return d
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.LLM, b.LLM) && entryEqual(a.STT, b.STT) && entryEqual(a.TTS, b.TTS)
}

// entryEqual compares the identifying fields of two entries. Options are not
// compared.
func entryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	return slices.EqualFunc(a.Fallbacks, b.Fallbacks, entryEqual)
}

func conversationEqual(a, b ConversationConfig) bool {
	if a.TurnLimit != b.TurnLimit || a.MaxTokens != b.MaxTokens {
		return false
	}
	if (a.Temperature == nil) != (b.Temperature == nil) {
		return false
	}
	if a.Temperature != nil && *a.Temperature != *b.Temperature {
		return false
	}
	return slices.Equal(a.ExitKeywords, b.ExitKeywords)
}
