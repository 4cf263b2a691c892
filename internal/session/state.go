// Package session holds per-conversation state: the message history with its
// persona and turn-limit reset, the similarity cache, and a registry that
// hands network front ends an independent state per session ID.
package session

import (
	"sync"
	"time"

	"github.com/MrWong99/vaani/internal/cache"
)

// State is everything one conversation carries between turns. A front end
// holds Lock for the duration of a turn so turns on the same state never
// interleave.
type State struct {
	mu sync.Mutex

	// Conversation is the rolling message history.
	Conversation *Conversation

	// Cache remembers earlier exchanges of this conversation.
	Cache *cache.Cache

	// Turns is the counter fed to [Conversation.MaybeReset].
	Turns int

	lastUsed time.Time
}

// NewState returns a fresh state with the given persona and cache.
func NewState(persona string, c *cache.Cache) *State {
	if c == nil {
		c = cache.New()
	}
	return &State{
		Conversation: NewConversation(persona),
		Cache:        c,
		lastUsed:     time.Now(),
	}
}

// Lock acquires exclusive use of the state for one turn.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the state and marks it as recently used.
func (s *State) Unlock() {
	s.lastUsed = time.Now()
	s.mu.Unlock()
}
