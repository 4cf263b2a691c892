package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrWong99/vaani/internal/cache"
	"github.com/MrWong99/vaani/internal/language"
	"github.com/MrWong99/vaani/internal/session"
	"github.com/MrWong99/vaani/pkg/provider/llm"
	llmmock "github.com/MrWong99/vaani/pkg/provider/llm/mock"
	"github.com/MrWong99/vaani/pkg/provider/stt"
	sttmock "github.com/MrWong99/vaani/pkg/provider/stt/mock"
	ttsmock "github.com/MrWong99/vaani/pkg/provider/tts/mock"
	"github.com/MrWong99/vaani/pkg/types"
)

const persona = "You are X."

// harness bundles an orchestrator with its recording doubles.
type harness struct {
	o   *Orchestrator
	stt *sttmock.Provider
	llm *llmmock.Provider
	tts *ttsmock.Provider
	st  *session.State
}

// detectNothing makes every text undetectable so tests control the language
// through the transcription result.
var detectNothing = language.DetectorFunc(func(string) (string, error) {
	return "", language.ErrUndetectable
})

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		stt: &sttmock.Provider{},
		llm: &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  Try turning it off and on.  "}},
		tts: &ttsmock.Provider{Clip: types.AudioClip{Data: []byte("mp3"), ContentType: types.ContentTypeMP3}},
		st:  session.NewState(persona, cache.New()),
	}
	o, err := New(cfg, Dependencies{
		STT:      h.stt,
		LLM:      h.llm,
		TTS:      h.tts,
		Resolver: language.NewResolver(language.WithDetector(detectNothing)),
		Locales:  language.NewLocaleMap(nil),
	}, WithProviderNames("mock-stt", "mock-llm", "mock-tts"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.o = o
	return h
}

// say queues a transcription result and returns matching audio input.
func (h *harness) say(text, lang string) Input {
	h.stt.Results = append(h.stt.Results, &stt.Result{Text: text, Language: lang})
	return Input{Audio: types.AudioClip{Data: []byte("wav"), ContentType: types.ContentTypeWAV}}
}

func TestNew_RequiresProviders(t *testing.T) {
	t.Parallel()
	if _, err := New(DefaultConfig(), Dependencies{}); err == nil {
		t.Fatal("expected error for missing providers")
	}
}

func TestRunTurn_EndToEndCacheHit(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	first, err := h.o.RunTurn(ctx, h.say("my printer is jammed", "en"), h.st)
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.CacheHit {
		t.Error("first turn reported a cache hit")
	}
	calls := h.llm.Calls()
	if len(calls) != 1 {
		t.Fatalf("completion called %d times, want 1", len(calls))
	}
	msgs := calls[0].Req.Messages
	if len(msgs) != 2 {
		t.Fatalf("completion got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != types.RoleSystem || msgs[0].Content != persona {
		t.Errorf("messages[0] = %+v", msgs[0])
	}
	if msgs[1].Role != types.RoleUser || msgs[1].Content != "my printer is jammed [Respond in EN]" {
		t.Errorf("messages[1] = %+v", msgs[1])
	}
	entries := h.st.Cache.Entries()
	if len(entries) != 1 || entries[0].Query != "my printer is jammed" || entries[0].Response != "  Try turning it off and on.  " {
		t.Errorf("cache entries = %+v, want the reply stored verbatim", entries)
	}
	if first.Reply != "  Try turning it off and on.  " {
		t.Errorf("reply = %q, want it verbatim", first.Reply)
	}
	if last := h.st.Conversation.Messages()[2]; last.Role != types.RoleAssistant || last.Content != first.Reply {
		t.Errorf("history[2] = %+v, want the verbatim reply", last)
	}

	second, err := h.o.RunTurn(ctx, h.say("my printer jammed", "en"), h.st)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if !second.CacheHit {
		t.Error("second turn missed the cache")
	}
	if second.Reply != first.Reply {
		t.Errorf("reply = %q, want %q", second.Reply, first.Reply)
	}
	if got := len(h.llm.Calls()); got != 1 {
		t.Errorf("completion called %d times after cache hit, want 1", got)
	}
	if got := len(h.tts.Calls()); got != 2 {
		t.Errorf("synthesis called %d times, want 2", got)
	}
	// A cache hit leaves the history alone but still counts as a turn.
	if h.st.Conversation.Len() != 3 {
		t.Errorf("history length = %d, want 3", h.st.Conversation.Len())
	}
	if second.Turn != 2 {
		t.Errorf("turn = %d, want 2", second.Turn)
	}
}

func TestRunTurn_ExitKeyword(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"exit", "  EXIT ", "Quit"} {
		t.Run(text, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, DefaultConfig())
			res, err := h.o.RunTurn(context.Background(), h.say(text, "en"), h.st)
			if err != nil {
				t.Fatalf("RunTurn: %v", err)
			}
			if !res.Exit {
				t.Error("Exit not set")
			}
			if res.Reply != "" || !res.Audio.Empty() {
				t.Errorf("exit turn produced a reply: %+v", res)
			}
			if len(h.llm.Calls()) != 0 || len(h.tts.Calls()) != 0 {
				t.Error("exit turn invoked completion or synthesis")
			}
			if h.st.Cache.Len() != 0 || h.st.Conversation.Len() != 1 {
				t.Error("exit turn changed session state")
			}
		})
	}
}

func TestRunTurn_CustomExitKeywords(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.ExitKeywords = []string{"bas", "Band karo"}
	h := newHarness(t, cfg)

	res, err := h.o.RunTurn(context.Background(), h.say("band karo", "hi"), h.st)
	if err != nil || !res.Exit {
		t.Fatalf("RunTurn = (%+v, %v), want exit", res, err)
	}
	if h.o.IsExit("exit") {
		t.Error("default keyword still active after override")
	}
}

func TestRunTurn_LocaleAndVoice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lang       string
		wantLocale string
	}{
		{"en", "en-US"},
		{"hi", "hi-IN"},
		{"mr", "mr-IN"},
		{"fr", "fr"},
	}
	for _, tc := range tests {
		t.Run(tc.lang, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			cfg.VoiceGender = types.GenderFemale
			h := newHarness(t, cfg)

			res, err := h.o.RunTurn(context.Background(), h.say("question", tc.lang), h.st)
			if err != nil {
				t.Fatalf("RunTurn: %v", err)
			}
			if res.Locale != tc.wantLocale {
				t.Errorf("locale = %q, want %q", res.Locale, tc.wantLocale)
			}
			calls := h.tts.Calls()
			if len(calls) != 1 {
				t.Fatalf("synthesis called %d times, want 1", len(calls))
			}
			if calls[0].Voice.Locale != tc.wantLocale || calls[0].Voice.Gender != types.GenderFemale {
				t.Errorf("voice = %+v", calls[0].Voice)
			}
			if calls[0].Text != res.Reply {
				t.Errorf("synthesised %q, want reply %q", calls[0].Text, res.Reply)
			}
			if string(res.Audio.Data) != "mp3" {
				t.Errorf("audio = %q", res.Audio.Data)
			}
		})
	}
}

func TestRunTurn_UnknownLanguageFallsBack(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultConfig())

	res, err := h.o.RunTurn(context.Background(), h.say("???", stt.LanguageUnknown), h.st)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Language.Code != "en" || !res.Language.Fallback() {
		t.Errorf("language = %+v, want fallback en", res.Language)
	}
	if res.Locale != "en-US" {
		t.Errorf("locale = %q", res.Locale)
	}
	if got := h.llm.Calls()[0].Req.Messages[1].Content; got != "??? [Respond in EN]" {
		t.Errorf("user message = %q", got)
	}
}

func TestRunTurn_RequestParameters(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.TranscriptionLanguage = "mr"
	h := newHarness(t, cfg)

	if _, err := h.o.RunTurn(context.Background(), h.say("hello", "en"), h.st); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	req := h.llm.Calls()[0].Req
	if req.MaxTokens != DefaultMaxTokens || req.Temperature != DefaultTemperature {
		t.Errorf("request = max_tokens %d temperature %v", req.MaxTokens, req.Temperature)
	}
	if got := h.stt.Calls()[0].Opts.Language; got != "mr" {
		t.Errorf("transcription hint = %q, want mr", got)
	}
}

func TestRunTurn_DeclaredLanguageForAudio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hint     string
		declared string
		reported string
		wantHint string
		wantLang string
	}{
		{"declared replaces hint", "mr", "HI", "hi", "hi", "hi"},
		{"declared used when unreported", "", "hi", stt.LanguageUnknown, "hi", "hi"},
		{"service report wins", "", "hi", "mr", "hi", "mr"},
		{"unknown keeps configured hint", "mr", "unknown", "mr", "mr", "mr"},
		{"nothing declared", "", "", "en", "", "en"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			cfg.TranscriptionLanguage = tc.hint
			h := newHarness(t, cfg)

			in := h.say("printer kharab hai", tc.reported)
			in.Language = tc.declared
			res, err := h.o.RunTurn(context.Background(), in, h.st)
			if err != nil {
				t.Fatalf("RunTurn: %v", err)
			}
			if got := h.stt.Calls()[0].Opts.Language; got != tc.wantHint {
				t.Errorf("transcription hint = %q, want %q", got, tc.wantHint)
			}
			if res.Language.Code != tc.wantLang {
				t.Errorf("language = %+v, want %q", res.Language, tc.wantLang)
			}
		})
	}
}

func TestRunTurn_TextInputSkipsTranscription(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultConfig())

	res, err := h.o.RunTurn(context.Background(), Input{Text: "namaskar", Language: "mr"}, h.st)
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if h.stt.CallCount() != 0 {
		t.Error("text input was sent to transcription")
	}
	if res.Transcript != "namaskar" || res.Language.Code != "mr" {
		t.Errorf("result = %+v", res)
	}
}

func TestRunTurn_CompletionFailureRollsBack(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultConfig())
	boom := errors.New("rate limited")
	h.llm.CompleteErr = boom

	_, err := h.o.RunTurn(context.Background(), h.say("hello", "en"), h.st)
	if !errors.Is(err, ErrComplete) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrComplete wrapping the provider error", err)
	}
	if h.st.Conversation.Len() != 1 {
		t.Errorf("history length = %d, want 1 after rollback", h.st.Conversation.Len())
	}
	if h.st.Cache.Len() != 0 {
		t.Error("failed turn was cached")
	}
	if len(h.tts.Calls()) != 0 {
		t.Error("synthesis called after completion failure")
	}
	if h.st.Turns != 0 {
		t.Errorf("turn counter advanced to %d", h.st.Turns)
	}
}

func TestRunTurn_SynthesisFailureKeepsReply(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultConfig())
	h.tts.Err = errors.New("quota exceeded")

	res, err := h.o.RunTurn(context.Background(), h.say("hello", "en"), h.st)
	if !errors.Is(err, ErrSynthesize) {
		t.Fatalf("err = %v, want ErrSynthesize", err)
	}
	if errors.Is(err, ErrComplete) || errors.Is(err, ErrTranscribe) {
		t.Error("synthesis error matches another stage")
	}
	if res == nil || res.Reply == "" {
		t.Fatalf("result = %+v, want the reply text", res)
	}
	if h.st.Cache.Len() != 1 || h.st.Conversation.Len() != 3 {
		t.Errorf("cache %d / history %d, want 1 / 3", h.st.Cache.Len(), h.st.Conversation.Len())
	}
}

func TestRunTurn_TranscriptionFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultConfig())
	h.stt.Err = errors.New("bad audio")

	_, err := h.o.RunTurn(context.Background(), Input{Audio: types.AudioClip{Data: []byte{1}}}, h.st)
	if !errors.Is(err, ErrTranscribe) {
		t.Fatalf("err = %v, want ErrTranscribe", err)
	}
	if len(h.llm.Calls()) != 0 || len(h.tts.Calls()) != 0 {
		t.Error("later stages ran after transcription failure")
	}
}

func TestRunTurn_EmptyTranscript(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultConfig())

	for _, in := range []Input{h.say("   ", "en"), {Text: ""}} {
		_, err := h.o.RunTurn(context.Background(), in, h.st)
		if !errors.Is(err, ErrEmptyTranscript) {
			t.Errorf("err = %v, want ErrEmptyTranscript", err)
		}
	}
	if len(h.llm.Calls()) != 0 || h.st.Cache.Len() != 0 {
		t.Error("empty transcript reached the cache or completion")
	}
}

func TestRunTurn_TurnLimitResetsHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	// Distinct queries so every turn misses the cache.
	queries := []string{
		"how do I bake bread", "what is the capital of peru", "tell me a joke",
		"translate water to hindi", "recommend a film", "explain photosynthesis",
		"who wrote hamlet",
	}
	for i, q := range queries[:session.DefaultTurnLimit] {
		res, err := h.o.RunTurn(ctx, h.say(q, "en"), h.st)
		if err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
		if i+1 < session.DefaultTurnLimit && res.Turn != i+1 {
			t.Fatalf("turn %d: counter = %d", i+1, res.Turn)
		}
	}
	if h.st.Turns != 0 || h.st.Conversation.Len() != 1 {
		t.Fatalf("after %d turns: counter %d, history %d; want 0 and 1",
			session.DefaultTurnLimit, h.st.Turns, h.st.Conversation.Len())
	}

	if _, err := h.o.RunTurn(ctx, h.say(queries[6], "en"), h.st); err != nil {
		t.Fatalf("turn 7: %v", err)
	}
	calls := h.llm.Calls()
	last := calls[len(calls)-1].Req.Messages
	if len(last) != 2 || last[0].Content != persona {
		t.Errorf("7th completion saw %d messages, want persona + user", len(last))
	}
}

func TestRunTurn_NegativeTurnLimitDisablesReset(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.TurnLimit = -1
	h := newHarness(t, cfg)

	for i := range 8 {
		if _, err := h.o.RunTurn(context.Background(), h.say(fmt.Sprintf("question number %d about topic %d", i, i*7919), "en"), h.st); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	if h.st.Turns != 8 {
		t.Errorf("counter = %d, want 8", h.st.Turns)
	}
}
