package audio

import "time"

// SegmenterConfig tunes utterance end-pointing.
type SegmenterConfig struct {
	// SampleRate of the incoming mono frames in Hz.
	SampleRate int

	// Threshold is the normalised RMS level above which a frame counts as speech.
	Threshold float64

	// Timeout is how long to wait for speech to start before giving up.
	Timeout time.Duration

	// SilenceDuration is the trailing silence that ends an utterance.
	SilenceDuration time.Duration

	// PhraseLimit caps the length of an utterance once speech has started.
	PhraseLimit time.Duration
}

// Default end-pointing parameters.
const (
	DefaultSampleRate      = 16000
	DefaultThreshold       = 0.015
	DefaultTimeout         = 5 * time.Second
	DefaultSilenceDuration = 800 * time.Millisecond
	DefaultPhraseLimit     = 10 * time.Second
)

func (c SegmenterConfig) withDefaults() SegmenterConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = DefaultSilenceDuration
	}
	if c.PhraseLimit <= 0 {
		c.PhraseLimit = DefaultPhraseLimit
	}
	return c
}

// Segmenter turns a stream of fixed-size capture frames into one utterance
// using an energy threshold. Leading silence is discarded; trailing silence up
// to SilenceDuration is kept. A Segmenter is single-use and not safe for
// concurrent use.
type Segmenter struct {
	cfg      SegmenterConfig
	out      []int16
	waited   time.Duration
	phrase   time.Duration
	silence  time.Duration
	speaking bool
}

// NewSegmenter creates a Segmenter. Zero fields in cfg take the package defaults.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	cfg = cfg.withDefaults()
	return &Segmenter{cfg: cfg, out: make([]int16, 0, cfg.SampleRate*3)}
}

// Config returns the effective configuration.
func (s *Segmenter) Config() SegmenterConfig { return s.cfg }

// Push feeds one frame. It reports done once the utterance is complete, and
// returns [ErrNoSpeech] if the listen timeout passed without speech.
func (s *Segmenter) Push(frame []int16) (done bool, err error) {
	d := time.Duration(len(frame)) * time.Second / time.Duration(s.cfg.SampleRate)
	loud := RMS(frame) > s.cfg.Threshold

	if !s.speaking {
		if !loud {
			s.waited += d
			if s.waited >= s.cfg.Timeout {
				return true, ErrNoSpeech
			}
			return false, nil
		}
		s.speaking = true
	}

	s.out = append(s.out, frame...)
	s.phrase += d
	if loud {
		s.silence = 0
	} else {
		s.silence += d
	}
	return s.silence >= s.cfg.SilenceDuration || s.phrase >= s.cfg.PhraseLimit, nil
}

// Samples returns the captured utterance.
func (s *Segmenter) Samples() []int16 { return s.out }
