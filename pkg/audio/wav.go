package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/vaani/pkg/types"
)

const (
	wavBitDepth  = 16
	wavFormatPCM = 1
)

// PCM is decoded 16-bit audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration returns the playing time of p.
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	frames := len(p.Samples) / p.Channels
	return time.Duration(frames) * time.Second / time.Duration(p.SampleRate)
}

// EncodeWAV wraps 16-bit samples in a RIFF/WAV container.
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("audio: encode wav: invalid format %d Hz / %d ch", sampleRate, channels)
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, wavBitDepth, channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: encode wav: close: %w", err)
	}
	return ws.buf, nil
}

// DecodeWAV parses a RIFF/WAV container holding integer PCM. Samples of other
// bit depths are rescaled to 16 bits.
func DecodeWAV(data []byte) (PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return PCM{}, fmt.Errorf("audio: decode wav: %w", ErrUnsupportedFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return PCM{}, errors.New("audio: decode wav: no samples")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = wavBitDepth
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case depth == 8:
			samples[i] = int16((v - 128) << 8)
		case depth > 16:
			samples[i] = int16(v >> (depth - 16))
		default:
			samples[i] = int16(v)
		}
	}
	return PCM{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// ClipToWAV returns the WAV bytes for clip, encoding raw PCM clips on the fly.
func ClipToWAV(clip types.AudioClip) ([]byte, error) {
	switch clip.ContentType {
	case types.ContentTypeWAV, types.ContentTypeNone:
		return clip.Data, nil
	case types.ContentTypePCM:
		ch := clip.Channels
		if ch <= 0 {
			ch = 1
		}
		return EncodeWAV(BytesToInt16(clip.Data), clip.SampleRate, ch)
	default:
		return nil, fmt.Errorf("audio: %w: %s", ErrUnsupportedFormat, clip.ContentType)
	}
}

// ClipToMono16 decodes clip to mono samples at sampleRate, the layout
// local speech recognisers expect.
func ClipToMono16(clip types.AudioClip, sampleRate int) ([]int16, error) {
	var pcm PCM
	switch clip.ContentType {
	case types.ContentTypePCM:
		pcm = PCM{Samples: BytesToInt16(clip.Data), SampleRate: clip.SampleRate, Channels: max(clip.Channels, 1)}
	case types.ContentTypeWAV, types.ContentTypeNone:
		var err error
		if pcm, err = DecodeWAV(clip.Data); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("audio: %w: %s", ErrUnsupportedFormat, clip.ContentType)
	}
	mono := Downmix(pcm.Samples, pcm.Channels)
	return Resample(mono, pcm.SampleRate, sampleRate), nil
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("audio: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("audio: negative position")
	}
	w.pos = int(abs)
	return abs, nil
}
