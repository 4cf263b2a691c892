package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/MrWong99/vaani/pkg/provider/tts"
	"github.com/MrWong99/vaani/pkg/types"
)

// fakeServer accepts one stream-input socket, records the text messages and
// replies with the given audio chunks.
type fakeServer struct {
	mu       sync.Mutex
	path     string
	query    url.Values
	messages []textMessage
}

func newFakeServer(t *testing.T, chunks [][]byte, serverErr string) (*httptest.Server, *fakeServer) {
	t.Helper()
	fs := &fakeServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		fs.mu.Lock()
		fs.path = r.URL.Path
		fs.query = r.URL.Query()
		fs.mu.Unlock()

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var m textMessage
			_ = json.Unmarshal(data, &m)
			fs.mu.Lock()
			fs.messages = append(fs.messages, m)
			fs.mu.Unlock()
			if m.Text == "" {
				break // flush
			}
		}

		if serverErr != "" {
			b, _ := json.Marshal(audioResponse{Error: serverErr})
			_ = conn.Write(ctx, websocket.MessageText, b)
			return
		}
		for _, c := range chunks {
			b, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString(c)})
			_ = conn.Write(ctx, websocket.MessageText, b)
		}
		b, _ := json.Marshal(audioResponse{IsFinal: true})
		_ = conn.Write(ctx, websocket.MessageText, b)
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	t.Cleanup(srv.Close)
	return srv, fs
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestSynthesize_CollectsChunks(t *testing.T) {
	srv, fs := newFakeServer(t, [][]byte{{1, 2}, {3, 4}}, "")
	p, err := New("xi-test", WithBaseURL(wsURL(srv)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	clip, err := p.Synthesize(context.Background(), "Namaskar", tts.Voice{Locale: "mr-IN", Gender: types.GenderFemale})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(clip.Data) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("data = %v, want [1 2 3 4]", clip.Data)
	}
	if clip.ContentType != types.ContentTypePCM || clip.SampleRate != 16000 {
		t.Errorf("format = %s @ %d", clip.ContentType, clip.SampleRate)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.path != "/v1/text-to-speech/"+defaultFemaleVoice+"/stream-input" {
		t.Errorf("path = %q", fs.path)
	}
	if fs.query.Get("language_code") != "mr" {
		t.Errorf("language_code = %q, want mr", fs.query.Get("language_code"))
	}
	if len(fs.messages) != 3 {
		t.Fatalf("got %d messages, want 3 (init, text, flush)", len(fs.messages))
	}
	if fs.messages[0].XiAPIKey != "xi-test" || fs.messages[0].VoiceSettings == nil {
		t.Errorf("init message = %+v", fs.messages[0])
	}
	if fs.messages[1].Text != "Namaskar " {
		t.Errorf("text message = %q", fs.messages[1].Text)
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	srv, _ := newFakeServer(t, nil, "quota exceeded")
	p, _ := New("xi-test", WithBaseURL(wsURL(srv)))
	_, err := p.Synthesize(context.Background(), "hello", tts.Voice{Locale: "en-US"})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err = %v, want server error", err)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p, _ := New("xi-test")
	if _, err := p.Synthesize(context.Background(), "  ", tts.Voice{Locale: "en-US"}); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestStreamURL_NamedVoice(t *testing.T) {
	p, _ := New("xi-test", WithModel("eleven_multilingual_v2"))
	u := p.streamURL(tts.Voice{Name: "custom-voice", Locale: "hi-IN"})
	if !strings.Contains(u, "/custom-voice/stream-input") {
		t.Errorf("url %q does not use the named voice", u)
	}
	if !strings.Contains(u, "model_id=eleven_multilingual_v2") {
		t.Errorf("url %q missing model", u)
	}
}

func TestClipFormat(t *testing.T) {
	tests := []struct {
		format string
		ct     string
		rate   int
	}{
		{"pcm_16000", types.ContentTypePCM, 16000},
		{"pcm_24000", types.ContentTypePCM, 24000},
		{"mp3_44100_128", types.ContentTypeMP3, 44100},
	}
	for _, tc := range tests {
		got := clipFormat(tc.format)
		if got.ContentType != tc.ct || got.SampleRate != tc.rate {
			t.Errorf("clipFormat(%q) = %s @ %d, want %s @ %d", tc.format, got.ContentType, got.SampleRate, tc.ct, tc.rate)
		}
	}
}
