// Package google provides a TTS provider backed by Google Cloud Text-to-Speech.
//
// Voices are selected by locale and SSML gender; the service picks a matching
// voice unless a voice name is given. Audio is returned as MP3.
package google

import (
	"context"
	"errors"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/MrWong99/vaani/pkg/provider/tts"
	"github.com/MrWong99/vaani/pkg/types"
)

// synthesizeFunc is the single RPC the provider needs.
type synthesizeFunc func(ctx context.Context, req *ttspb.SynthesizeSpeechRequest) (*ttspb.SynthesizeSpeechResponse, error)

// Option is a functional option for Provider.
type Option func(*config)

type config struct {
	clientOpts    []option.ClientOption
	defaultGender types.Gender
	speakingRate  float64
}

// WithCredentialsFile authenticates with a service-account JSON key file.
// Without it Application Default Credentials are used.
func WithCredentialsFile(path string) Option {
	return func(c *config) {
		c.clientOpts = append(c.clientOpts, option.WithCredentialsFile(path))
	}
}

// WithAPIKey authenticates with an API key.
func WithAPIKey(key string) Option {
	return func(c *config) {
		c.clientOpts = append(c.clientOpts, option.WithAPIKey(key))
	}
}

// WithEndpoint overrides the service endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *config) {
		c.clientOpts = append(c.clientOpts, option.WithEndpoint(endpoint))
	}
}

// WithDefaultGender sets the gender used when a request leaves it
// unspecified. Defaults to male.
func WithDefaultGender(g types.Gender) Option {
	return func(c *config) { c.defaultGender = g }
}

// WithSpeakingRate sets the speaking rate (0.25 to 4.0, 1.0 is normal).
func WithSpeakingRate(rate float64) Option {
	return func(c *config) { c.speakingRate = rate }
}

// Provider implements tts.Provider using Google Cloud Text-to-Speech.
type Provider struct {
	synthesize    synthesizeFunc
	close         func() error
	defaultGender types.Gender
	speakingRate  float64
}

// New dials the Text-to-Speech service. The caller must call Close.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := &config{defaultGender: types.GenderMale}
	for _, o := range opts {
		o(cfg)
	}
	client, err := texttospeech.NewClient(ctx, cfg.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("google tts: create client: %w", err)
	}
	return &Provider{
		synthesize: func(ctx context.Context, req *ttspb.SynthesizeSpeechRequest) (*ttspb.SynthesizeSpeechResponse, error) {
			return client.SynthesizeSpeech(ctx, req)
		},
		close:         client.Close,
		defaultGender: cfg.defaultGender,
		speakingRate:  cfg.speakingRate,
	}, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (types.AudioClip, error) {
	if text == "" {
		return types.AudioClip{}, errors.New("google tts: text must not be empty")
	}
	if voice.Locale == "" {
		return types.AudioClip{}, errors.New("google tts: voice locale must not be empty")
	}

	resp, err := p.synthesize(ctx, p.buildRequest(text, voice))
	if err != nil {
		return types.AudioClip{}, fmt.Errorf("google tts: synthesize: %w", err)
	}
	if len(resp.GetAudioContent()) == 0 {
		return types.AudioClip{}, errors.New("google tts: empty audio content")
	}
	return types.AudioClip{
		Data:        resp.GetAudioContent(),
		ContentType: types.ContentTypeMP3,
	}, nil
}

// Close releases the gRPC connection.
func (p *Provider) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

func (p *Provider) buildRequest(text string, voice tts.Voice) *ttspb.SynthesizeSpeechRequest {
	gender := voice.Gender
	if gender == types.GenderUnspecified {
		gender = p.defaultGender
	}
	req := &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{
			InputSource: &ttspb.SynthesisInput_Text{Text: text},
		},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: voice.Locale,
			Name:         voice.Name,
			SsmlGender:   ssmlGender(gender),
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding: ttspb.AudioEncoding_MP3,
		},
	}
	if p.speakingRate > 0 {
		req.AudioConfig.SpeakingRate = p.speakingRate
	}
	return req
}

func ssmlGender(g types.Gender) ttspb.SsmlVoiceGender {
	switch g {
	case types.GenderMale:
		return ttspb.SsmlVoiceGender_MALE
	case types.GenderFemale:
		return ttspb.SsmlVoiceGender_FEMALE
	case types.GenderNeutral:
		return ttspb.SsmlVoiceGender_NEUTRAL
	default:
		return ttspb.SsmlVoiceGender_SSML_VOICE_GENDER_UNSPECIFIED
	}
}

var _ tts.Provider = (*Provider)(nil)
