package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/vaani/pkg/provider/llm"
	llmmock "github.com/MrWong99/vaani/pkg/provider/llm/mock"
	"github.com/MrWong99/vaani/pkg/provider/stt"
	sttmock "github.com/MrWong99/vaani/pkg/provider/stt/mock"
	"github.com/MrWong99/vaani/pkg/provider/tts"
	ttsmock "github.com/MrWong99/vaani/pkg/provider/tts/mock"
	"github.com/MrWong99/vaani/pkg/types"
)

func TestLLMFallback(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{
		CompleteErr:       errors.New("rate limited"),
		ModelCapabilities: types.ModelCapabilities{ContextWindow: 16_385, MaxOutputTokens: 4_096},
	}
	backup := &llmmock.Provider{
		CompleteResponse:  &llm.CompletionResponse{Content: "Restart the router."},
		ModelCapabilities: types.ModelCapabilities{ContextWindow: 8_192},
	}
	fb := NewLLMFallback(primary, "openai", FallbackConfig{})
	fb.AddFallback("ollama", backup)

	req := llm.CompletionRequest{
		Messages:  []types.Message{{Role: types.RoleUser, Content: "wifi is down [Respond in EN]"}},
		MaxTokens: 150,
	}
	resp, err := fb.Complete(context.Background(), req)
	if err != nil || resp.Content != "Restart the router." {
		t.Fatalf("Complete = %+v, %v", resp, err)
	}
	if calls := backup.Calls(); len(calls) != 1 || calls[0].Req.MaxTokens != 150 {
		t.Errorf("backup calls = %+v, want the original request", calls)
	}
	if got := fb.Capabilities().ContextWindow; got != 16_385 {
		t.Errorf("ContextWindow = %d, want the primary's", got)
	}

	backup.CompleteErr = errors.New("offline")
	if _, err := fb.Complete(context.Background(), req); !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallback(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{Err: errors.New("model not loaded")}
	backup := &sttmock.Provider{Result: &stt.Result{Text: "namaste", Language: "hi"}}
	fb := NewSTTFallback(primary, "whisper-native", FallbackConfig{})
	fb.AddFallback("openai", backup)

	clip := types.AudioClip{Data: []byte{1, 2}, ContentType: types.ContentTypeWAV}
	res, err := fb.Transcribe(context.Background(), clip, stt.Options{Language: "hi"})
	if err != nil || res.Text != "namaste" || res.Language != "hi" {
		t.Fatalf("Transcribe = %+v, %v", res, err)
	}
	if calls := backup.Calls(); len(calls) != 1 || calls[0].Opts.Language != "hi" {
		t.Errorf("backup calls = %+v, want the language hint forwarded", calls)
	}
	if primary.CallCount() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.CallCount())
	}
}

func TestTTSFallback(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{Err: errors.New("quota exceeded")}
	backup := &ttsmock.Provider{Clip: types.AudioClip{Data: []byte("mp3"), ContentType: types.ContentTypeMP3}}
	fb := NewTTSFallback(primary, "google", FallbackConfig{})
	fb.AddFallback("elevenlabs", backup)

	voice := tts.Voice{Locale: "mr-IN", Gender: types.GenderMale}
	clip, err := fb.Synthesize(context.Background(), "Namaskar", voice)
	if err != nil || clip.ContentType != types.ContentTypeMP3 {
		t.Fatalf("Synthesize = %+v, %v", clip, err)
	}
	calls := backup.Calls()
	if len(calls) != 1 || calls[0].Text != "Namaskar" || calls[0].Voice != voice {
		t.Errorf("backup calls = %+v", calls)
	}
	if err := fb.Check(context.Background()); err != nil {
		t.Errorf("Check = %v, one failure should not open the circuit", err)
	}
}
