package whisper_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrWong99/vaani/pkg/audio"
	"github.com/MrWong99/vaani/pkg/provider/stt"
	"github.com/MrWong99/vaani/pkg/provider/stt/whisper"
	"github.com/MrWong99/vaani/pkg/types"
)

func TestNewNative_BadPath(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", "/nonexistent/ggml-small.bin"} {
		if p, err := whisper.NewNative(path); err == nil {
			p.Close()
			t.Errorf("NewNative(%q) loaded a model", path)
		}
	}
}

// loadModel opens the model named by WHISPER_MODEL_PATH or skips the test.
func loadModel(t *testing.T, opts ...whisper.NativeOption) *whisper.NativeProvider {
	t.Helper()
	path := os.Getenv("WHISPER_MODEL_PATH")
	if path == "" {
		t.Skip("WHISPER_MODEL_PATH not set")
	}
	p, err := whisper.NewNative(path, opts...)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func silence(t *testing.T, d time.Duration) types.AudioClip {
	t.Helper()
	data, err := audio.EncodeWAV(make([]int16, int(d.Seconds()*16000)), 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return types.AudioClip{Data: data, ContentType: types.ContentTypeWAV}
}

func TestNative_Transcribe(t *testing.T) {
	p := loadModel(t, whisper.WithNativeLanguage("hi"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := p.Transcribe(ctx, silence(t, time.Second), stt.Options{Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Language == "" {
		t.Error("Language is empty, want a code or the unknown marker")
	}

	if _, err := p.Transcribe(ctx, types.AudioClip{}, stt.Options{}); err == nil {
		t.Error("empty clip accepted")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNative_Cancelled(t *testing.T) {
	p := loadModel(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Transcribe(ctx, silence(t, time.Second), stt.Options{}); err == nil {
		t.Error("Transcribe ignored a cancelled context")
	}
}
