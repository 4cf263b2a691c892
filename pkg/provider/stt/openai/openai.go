// Package openai provides a transcription provider backed by the OpenAI audio
// transcription API (whisper-1 and the gpt-4o transcribe models).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/vaani/pkg/audio"
	"github.com/MrWong99/vaani/pkg/provider/stt"
	"github.com/MrWong99/vaani/pkg/types"
)

// DefaultModel is the transcription model used when none is configured. It is
// the only OpenAI model that reports the detected language.
const DefaultModel = "whisper-1"

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the API base URL, e.g. for a self-hosted
// OpenAI-compatible transcription server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a transcription Provider. An empty model selects [DefaultModel].
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Transcribe uploads clip and returns the transcript. whisper-1 is asked for
// verbose JSON so the response carries the detected language.
func (p *Provider) Transcribe(ctx context.Context, clip types.AudioClip, opts stt.Options) (*stt.Result, error) {
	if clip.Empty() {
		return nil, errors.New("openai stt: empty audio clip")
	}
	wav, err := audio.ClipToWAV(clip)
	if err != nil {
		return nil, fmt.Errorf("openai stt: %w", err)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, p.buildParams(wav, opts))
	if err != nil {
		return nil, fmt.Errorf("openai stt: transcription: %w", err)
	}

	lang := opts.Language
	if detected := detectedLanguage(resp.RawJSON()); detected != "" {
		lang = detected
	}
	return &stt.Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: stt.NormalizeLanguage(lang),
	}, nil
}

func (p *Provider) buildParams(wav []byte, opts stt.Options) oai.AudioTranscriptionNewParams {
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", types.ContentTypeWAV),
		Model: oai.AudioModel(p.model),
	}
	if p.model == DefaultModel {
		params.ResponseFormat = oai.AudioResponseFormatVerboseJSON
	}
	if opts.Language != "" {
		params.Language = param.NewOpt(opts.Language)
	}
	return params
}

// detectedLanguage extracts the "language" field of a verbose_json body.
func detectedLanguage(raw string) string {
	if raw == "" {
		return ""
	}
	var body struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return ""
	}
	return body.Language
}

var _ stt.Provider = (*Provider)(nil)
