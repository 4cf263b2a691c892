package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/vaani/internal/cache"
)

// DefaultID is the session used when a request names none.
const DefaultID = "default"

// StoreConfig configures a [Store].
type StoreConfig struct {
	// Persona seeds every new conversation.
	Persona string

	// NewCache builds the cache for a new state. Defaults to [cache.New].
	NewCache func() *cache.Cache

	// TTL is how long an idle state survives a sweep. Zero disables expiry.
	TTL time.Duration
}

// Store maps session IDs to lazily created states. It keeps everything in
// memory. All methods are safe for concurrent use.
type Store struct {
	cfg StoreConfig

	mu     sync.Mutex
	states map[string]*State
}

// NewStore creates an empty Store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.NewCache == nil {
		cfg.NewCache = func() *cache.Cache { return cache.New() }
	}
	return &Store{cfg: cfg, states: make(map[string]*State)}
}

// New returns a state that is not registered under any ID, for connections
// that own their conversation.
func (s *Store) New() *State {
	s.mu.Lock()
	persona := s.cfg.Persona
	s.mu.Unlock()
	return NewState(persona, s.cfg.NewCache())
}

// SetPersona changes the persona for states created from now on. Existing
// conversations keep theirs.
func (s *Store) SetPersona(persona string) {
	s.mu.Lock()
	s.cfg.Persona = persona
	s.mu.Unlock()
}

// Get returns the state for id, creating it on first use, and marks it as
// used so a sweep before the caller locks it keeps it. An empty id maps to
// [DefaultID].
func (s *Store) Get(id string) *State {
	if id == "" {
		id = DefaultID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		st = NewState(s.cfg.Persona, s.cfg.NewCache())
		s.states[id] = st
		return st
	}
	// A locked state is mid-turn and is refreshed by its Unlock.
	if st.mu.TryLock() {
		st.lastUsed = time.Now()
		st.mu.Unlock()
	}
	return st
}

// Delete forgets the state for id.
func (s *Store) Delete(id string) {
	if id == "" {
		id = DefaultID
	}
	s.mu.Lock()
	delete(s.states, id)
	s.mu.Unlock()
}

// Len returns the number of registered states.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Sweep removes states idle for longer than the TTL as of now and returns how
// many were removed. States currently locked for a turn are skipped.
func (s *Store) Sweep(now time.Time) int {
	if s.cfg.TTL <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, st := range s.states {
		if !st.mu.TryLock() {
			continue
		}
		idle := now.Sub(st.lastUsed)
		st.mu.Unlock()
		if idle > s.cfg.TTL {
			delete(s.states, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled. It always returns nil so
// it can run inside an errgroup.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if s.cfg.TTL <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				slog.Debug("expired idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}
