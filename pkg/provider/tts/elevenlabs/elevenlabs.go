// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs stream-input WebSocket API. The streamed audio chunks are
// collected into a single clip.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/vaani/pkg/provider/tts"
	"github.com/MrWong99/vaani/pkg/types"
)

const (
	defaultBaseURL   = "wss://api.elevenlabs.io"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"

	// Premade voices used when the request names none.
	defaultMaleVoice   = "pNInz6obpgDQGcFmaJgB"
	defaultFemaleVoice = "21m00Tcm4TlvDq8ikWAM"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_multilingual_v2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format ("pcm_16000", "pcm_24000",
// "mp3_44100_128").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithBaseURL overrides the WebSocket base URL.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithVoice sets the voice ID used for a gender when the request does not
// name a voice.
func WithVoice(g types.Gender, voiceID string) Option {
	return func(p *Provider) {
		p.voices[g] = voiceID
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	baseURL      string
	voices       map[types.Gender]string
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		baseURL:      defaultBaseURL,
		voices: map[types.Gender]string{
			types.GenderUnspecified: defaultMaleVoice,
			types.GenderMale:        defaultMaleVoice,
			types.GenderFemale:      defaultFemaleVoice,
			types.GenderNeutral:     defaultFemaleVoice,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded audio
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Synthesize opens a WebSocket to ElevenLabs, sends text, and collects every
// audio chunk until the server marks the stream final.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (types.AudioClip, error) {
	if strings.TrimSpace(text) == "" {
		return types.AudioClip{}, errors.New("elevenlabs: text must not be empty")
	}

	conn, _, err := websocket.Dial(ctx, p.streamURL(voice), nil)
	if err != nil {
		return types.AudioClip{}, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 22)

	// ElevenLabs requires a non-empty first text value; it authenticates the stream.
	msgs := []textMessage{
		{Text: " ", VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}, XiAPIKey: p.apiKey},
		{Text: text + " "},
		{Text: ""}, // flush
	}
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return types.AudioClip{}, fmt.Errorf("elevenlabs: encode message: %w", err)
		}
		if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
			return types.AudioClip{}, fmt.Errorf("elevenlabs: send: %w", err)
		}
	}

	var buf bytes.Buffer
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			return types.AudioClip{}, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Error != "" {
			return types.AudioClip{}, fmt.Errorf("elevenlabs: server error: %s", resp.Error)
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return types.AudioClip{}, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			buf.Write(chunk)
		}
		if resp.IsFinal {
			break
		}
	}
	conn.Close(websocket.StatusNormalClosure, "done")

	if buf.Len() == 0 {
		return types.AudioClip{}, errors.New("elevenlabs: no audio received")
	}
	clip := clipFormat(p.outputFormat)
	clip.Data = buf.Bytes()
	return clip, nil
}

// streamURL builds the stream-input endpoint for voice.
func (p *Provider) streamURL(voice tts.Voice) string {
	voiceID := voice.Name
	if voiceID == "" {
		voiceID = p.voices[voice.Gender]
	}
	q := url.Values{}
	q.Set("model_id", p.model)
	q.Set("output_format", p.outputFormat)
	if lang := voice.Language(); lang != "" {
		q.Set("language_code", lang)
	}
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", p.baseURL, url.PathEscape(voiceID), q.Encode())
}

// clipFormat derives content type and sample rate from an ElevenLabs output
// format name such as "pcm_24000" or "mp3_44100_128".
func clipFormat(format string) types.AudioClip {
	codec, rest, _ := strings.Cut(format, "_")
	rateStr, _, _ := strings.Cut(rest, "_")
	rate, _ := strconv.Atoi(rateStr)

	clip := types.AudioClip{SampleRate: rate, Channels: 1}
	switch codec {
	case "pcm":
		clip.ContentType = types.ContentTypePCM
	case "mp3":
		clip.ContentType = types.ContentTypeMP3
	default:
		clip.ContentType = "audio/" + codec
	}
	return clip
}

var _ tts.Provider = (*Provider)(nil)
