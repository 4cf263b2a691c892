// Package playback renders synthesised clips on the default output device
// using github.com/faiface/beep. MP3 (the Google TTS default), WAV and raw
// 16-bit PCM clips are supported.
package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"github.com/MrWong99/vaani/pkg/audio"
	"github.com/MrWong99/vaani/pkg/types"
)

const (
	defaultSampleRate = beep.SampleRate(44100)
	resampleQuality   = 4
)

// Option is a functional option for Player.
type Option func(*Player)

// WithSampleRate sets the output device sample rate. Clips at other rates are
// resampled. Defaults to 44.1 kHz.
func WithSampleRate(rate int) Option {
	return func(p *Player) { p.rate = beep.SampleRate(rate) }
}

// Player implements [audio.Player] on the beep speaker. The speaker is
// initialised lazily on the first Play; Play calls are serialised.
type Player struct {
	rate     beep.SampleRate
	initOnce sync.Once
	initErr  error
	mu       sync.Mutex
}

// New returns a Player.
func New(opts ...Option) *Player {
	p := &Player{rate: defaultSampleRate}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Play decodes clip and blocks until it has finished playing or ctx is
// cancelled, in which case playback is cut off.
func (p *Player) Play(ctx context.Context, clip types.AudioClip) error {
	if clip.Empty() {
		return nil
	}
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(p.rate, p.rate.N(time.Second/10))
	})
	if p.initErr != nil {
		return fmt.Errorf("playback: init speaker: %w", p.initErr)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	stream, format, err := decode(clip)
	if err != nil {
		return err
	}
	defer stream.Close()

	var s beep.Streamer = stream
	if format.SampleRate != p.rate {
		s = beep.Resample(resampleQuality, format.SampleRate, p.rate, s)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() { close(done) })))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// decode opens clip as a beep stream according to its content type.
func decode(clip types.AudioClip) (beep.StreamSeekCloser, beep.Format, error) {
	switch clip.ContentType {
	case types.ContentTypeMP3:
		s, f, err := mp3.Decode(io.NopCloser(bytes.NewReader(clip.Data)))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("playback: decode mp3: %w", err)
		}
		return s, f, nil
	case types.ContentTypeWAV:
		s, f, err := wav.Decode(bytes.NewReader(clip.Data))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("playback: decode wav: %w", err)
		}
		return s, f, nil
	case types.ContentTypePCM:
		return newPCMStream(clip), beep.Format{
			SampleRate:  beep.SampleRate(clip.SampleRate),
			NumChannels: max(clip.Channels, 1),
			Precision:   2,
		}, nil
	default:
		return nil, beep.Format{}, fmt.Errorf("playback: %w: %q", audio.ErrUnsupportedFormat, clip.ContentType)
	}
}

// pcmStream streams 16-bit little-endian PCM held in memory.
type pcmStream struct {
	samples  []int16
	channels int
	pos      int // frame index
}

func newPCMStream(clip types.AudioClip) *pcmStream {
	return &pcmStream{samples: audio.BytesToInt16(clip.Data), channels: max(clip.Channels, 1)}
}

func (s *pcmStream) Stream(buf [][2]float64) (int, bool) {
	frames := len(s.samples) / s.channels
	if s.pos >= frames {
		return 0, false
	}
	n := 0
	for ; n < len(buf) && s.pos < frames; n++ {
		base := s.pos * s.channels
		l := float64(s.samples[base]) / 32768.0
		r := l
		if s.channels > 1 {
			r = float64(s.samples[base+1]) / 32768.0
		}
		buf[n] = [2]float64{l, r}
		s.pos++
	}
	return n, true
}

func (s *pcmStream) Err() error    { return nil }
func (s *pcmStream) Len() int      { return len(s.samples) / s.channels }
func (s *pcmStream) Position() int { return s.pos }
func (s *pcmStream) Close() error  { return nil }

func (s *pcmStream) Seek(p int) error {
	if p < 0 || p > s.Len() {
		return fmt.Errorf("playback: seek %d out of range [0, %d]", p, s.Len())
	}
	s.pos = p
	return nil
}

var _ audio.Player = (*Player)(nil)
