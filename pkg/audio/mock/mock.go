// Package mock provides in-memory implementations of [audio.Recorder] and
// [audio.Player] for unit tests. Both record every call and are safe for
// concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vaani/pkg/audio"
	"github.com/MrWong99/vaani/pkg/types"
)

// Recorder is a mock [audio.Recorder]. Clips are returned one per call in
// order; once exhausted, Record returns Err (or [audio.ErrNoSpeech] when Err
// is nil) so loops under test terminate.
type Recorder struct {
	mu sync.Mutex

	// Clips is the queue of utterances to return.
	Clips []types.AudioClip

	// Err, if non-nil, is returned once Clips is exhausted.
	Err error

	// CallCount is the number of Record calls.
	CallCount int
}

// Record returns the next queued clip.
func (r *Recorder) Record(ctx context.Context) (types.AudioClip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCount++
	if err := ctx.Err(); err != nil {
		return types.AudioClip{}, err
	}
	if len(r.Clips) == 0 {
		if r.Err != nil {
			return types.AudioClip{}, r.Err
		}
		return types.AudioClip{}, audio.ErrNoSpeech
	}
	c := r.Clips[0]
	r.Clips = r.Clips[1:]
	return c, nil
}

// Player is a mock [audio.Player].
type Player struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from Play.
	Err error

	// Played records every clip passed to Play.
	Played []types.AudioClip
}

// Play records clip and returns Err.
func (p *Player) Play(_ context.Context, clip types.AudioClip) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Played = append(p.Played, clip)
	return p.Err
}

// PlayCount returns the number of clips played so far.
func (p *Player) PlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Played)
}

var (
	_ audio.Recorder = (*Recorder)(nil)
	_ audio.Player   = (*Player)(nil)
)
