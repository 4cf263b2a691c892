// Package cache remembers past (query, response) pairs and answers new queries
// that are similar enough to one already seen.
//
// Lookup is first-match, not best-match: entries are scanned in insertion
// order and the first one whose similarity to the query reaches the threshold
// wins, even if a later entry would score higher. Entries are never evicted or
// deduplicated.
package cache

import (
	"strings"
	"sync"

	"github.com/MrWong99/vaani/internal/similarity"
)

// DefaultThreshold is the minimum similarity a stored query needs to count as a hit.
const DefaultThreshold = 0.8

// Entry is one remembered exchange.
type Entry struct {
	Query    string
	Response string
}

// Option is a functional option for configuring a [Cache].
type Option func(*Cache)

// WithScorer replaces the similarity function. Default: [similarity.Ratio].
func WithScorer(s similarity.Scorer) Option {
	return func(c *Cache) {
		if s != nil {
			c.score = s
		}
	}
}

// WithThreshold sets the threshold used by [Cache.Lookup]. Default: 0.8.
func WithThreshold(th float64) Option {
	return func(c *Cache) {
		c.threshold = th
	}
}

// Cache is an append-only similarity cache. It is safe for concurrent use.
type Cache struct {
	score     similarity.Scorer
	threshold float64

	mu      sync.RWMutex
	entries []Entry
}

// New returns an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		score:     similarity.Ratio,
		threshold: DefaultThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Lookup returns the response of the first stored entry whose query matches
// query at the configured threshold.
func (c *Cache) Lookup(query string) (string, bool) {
	return c.LookupThreshold(query, c.threshold)
}

// LookupThreshold is [Cache.Lookup] with an explicit threshold. Both the query
// and every stored query are lower-cased before scoring.
func (c *Cache) LookupThreshold(query string, threshold float64) (string, bool) {
	q := strings.ToLower(query)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if c.score(q, strings.ToLower(e.Query)) >= threshold {
			return e.Response, true
		}
	}
	return "", false
}

// Store appends a pair. Queries are kept as given; case folding happens at lookup.
func (c *Cache) Store(query, response string) {
	c.mu.Lock()
	c.entries = append(c.entries, Entry{Query: query, Response: response})
	c.mu.Unlock()
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Threshold returns the default lookup threshold.
func (c *Cache) Threshold() float64 { return c.threshold }

// Entries returns a copy of all entries in insertion order.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}
