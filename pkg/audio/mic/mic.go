// Package mic captures utterances from the default input device using
// PortAudio (github.com/gordonklaus/portaudio). It requires the native
// PortAudio library at link time.
package mic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/vaani/pkg/audio"
	"github.com/MrWong99/vaani/pkg/types"
)

// frameDuration is the capture buffer length.
const frameDuration = 20 * time.Millisecond

// Option is a functional option for Recorder.
type Option func(*audio.SegmenterConfig)

// WithSampleRate sets the capture sample rate in Hz. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(c *audio.SegmenterConfig) { c.SampleRate = rate }
}

// WithTimeout sets how long to wait for speech to start. Defaults to 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *audio.SegmenterConfig) { c.Timeout = d }
}

// WithPhraseLimit caps the utterance length. Defaults to 10s.
func WithPhraseLimit(d time.Duration) Option {
	return func(c *audio.SegmenterConfig) { c.PhraseLimit = d }
}

// WithSilenceDuration sets the trailing silence that ends an utterance.
func WithSilenceDuration(d time.Duration) Option {
	return func(c *audio.SegmenterConfig) { c.SilenceDuration = d }
}

// WithThreshold sets the normalised RMS speech threshold.
func WithThreshold(rms float64) Option {
	return func(c *audio.SegmenterConfig) { c.Threshold = rms }
}

// Recorder implements [audio.Recorder] on the default PortAudio input device.
// Record calls are serialised.
type Recorder struct {
	cfg audio.SegmenterConfig

	mu     sync.Mutex
	closed bool
}

// New initialises PortAudio and returns a Recorder. Call Close to release the
// audio subsystem.
func New(opts ...Option) (*Recorder, error) {
	var cfg audio.SegmenterConfig
	for _, o := range opts {
		o(&cfg)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("mic: initialize portaudio: %w", err)
	}
	// Resolve defaults once so the frame size is known.
	cfg = audio.NewSegmenter(cfg).Config()
	return &Recorder{cfg: cfg}, nil
}

// Record captures one utterance and returns it WAV-encoded.
func (r *Recorder) Record(ctx context.Context) (types.AudioClip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return types.AudioClip{}, errors.New("mic: recorder is closed")
	}

	frameSize := int(time.Duration(r.cfg.SampleRate) * frameDuration / time.Second)
	buf := make([]int16, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.cfg.SampleRate), len(buf), buf)
	if err != nil {
		return types.AudioClip{}, fmt.Errorf("mic: open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return types.AudioClip{}, fmt.Errorf("mic: start stream: %w", err)
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			slog.Debug("mic: stop stream", "err", err)
		}
	}()

	seg := audio.NewSegmenter(r.cfg)
	for {
		if err := ctx.Err(); err != nil {
			return types.AudioClip{}, err
		}
		if err := stream.Read(); err != nil {
			return types.AudioClip{}, fmt.Errorf("mic: read: %w", err)
		}
		done, err := seg.Push(buf)
		if err != nil {
			return types.AudioClip{}, err
		}
		if done {
			break
		}
	}

	pcm := audio.PCM{Samples: seg.Samples(), SampleRate: r.cfg.SampleRate, Channels: 1}
	data, err := audio.EncodeWAV(pcm.Samples, pcm.SampleRate, pcm.Channels)
	if err != nil {
		return types.AudioClip{}, fmt.Errorf("mic: %w", err)
	}
	return types.AudioClip{
		Data:        data,
		ContentType: types.ContentTypeWAV,
		SampleRate:  pcm.SampleRate,
		Channels:    pcm.Channels,
		Duration:    pcm.Duration(),
	}, nil
}

// Close terminates PortAudio. Calling Close more than once is safe.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return portaudio.Terminate()
}

var _ audio.Recorder = (*Recorder)(nil)
