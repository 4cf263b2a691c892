// Package audio defines the capture and playback collaborators used by the
// interactive voice loop, plus the PCM and WAV helpers shared by the
// transcription and synthesis backends.
//
// Device-backed implementations live in sub-packages (audio/mic for the
// microphone, audio/playback for the speaker) so that the rest of the module, and
// its tests, never link against the native audio libraries.
package audio

import (
	"context"
	"errors"

	"github.com/MrWong99/vaani/pkg/types"
)

// ErrNoSpeech is returned by a [Recorder] when no speech started before the
// listen timeout elapsed.
var ErrNoSpeech = errors.New("audio: no speech detected")

// ErrUnsupportedFormat is returned when a clip's content type cannot be
// decoded.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// Recorder captures one spoken utterance.
type Recorder interface {
	// Record blocks until an utterance has been captured, the listen timeout
	// elapses without speech ([ErrNoSpeech]), or ctx is cancelled. The returned
	// clip is WAV-encoded mono PCM.
	Record(ctx context.Context) (types.AudioClip, error)
}

// Player renders a synthesised clip on the local output device.
type Player interface {
	// Play blocks until the clip has finished playing or ctx is cancelled.
	Play(ctx context.Context, clip types.AudioClip) error
}
