package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/MrWong99/vaani/internal/similarity"
)

func TestLookup_Empty(t *testing.T) {
	t.Parallel()
	c := New()
	if _, ok := c.Lookup("anything"); ok {
		t.Error("empty cache reported a hit")
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	t.Parallel()
	c := New()
	c.Store("My Printer Is Not Working", "Try restarting it.")

	got, ok := c.Lookup("my printer is not working")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "Try restarting it." {
		t.Errorf("response = %q", got)
	}
	if e := c.Entries(); e[0].Query != "My Printer Is Not Working" {
		t.Errorf("stored query was modified: %q", e[0].Query)
	}
}

func TestLookup_FirstMatchWins(t *testing.T) {
	t.Parallel()

	c := New()
	// "abcx" vs query "abcd" scores 0.75; "abcd" scores 1.0.
	c.Store("abcx", "first")
	c.Store("abcd", "second")

	got, ok := c.LookupThreshold("abcd", 0.6)
	if !ok || got != "first" {
		t.Errorf("LookupThreshold = (%q, %v), want (first, true)", got, ok)
	}

	// At the default threshold the first entry no longer qualifies.
	got, ok = c.Lookup("abcd")
	if !ok || got != "second" {
		t.Errorf("Lookup = (%q, %v), want (second, true)", got, ok)
	}
}

func TestLookup_ThresholdBoundaryInclusive(t *testing.T) {
	t.Parallel()
	c := New()
	c.Store("abcd", "r")
	// Ratio("abcd", "bcde") == 0.75 exactly.
	if _, ok := c.LookupThreshold("bcde", 0.75); !ok {
		t.Error("score equal to threshold should hit")
	}
	if _, ok := c.LookupThreshold("bcde", 0.76); ok {
		t.Error("score below threshold should miss")
	}
}

func TestStore_NoDedup(t *testing.T) {
	t.Parallel()
	c := New()
	c.Store("hello", "a")
	c.Store("hello", "b")
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if got, _ := c.Lookup("hello"); got != "a" {
		t.Errorf("Lookup = %q, want the older entry", got)
	}
}

func TestWithScorer(t *testing.T) {
	t.Parallel()
	var calls int
	always := func(a, b string) float64 { calls++; return 1 }
	c := New(WithScorer(always), WithThreshold(0.99))
	c.Store("x", "y")
	if got, ok := c.Lookup("completely different"); !ok || got != "y" {
		t.Errorf("Lookup = (%q, %v), want (y, true)", got, ok)
	}
	if calls != 1 {
		t.Errorf("scorer called %d times, want 1", calls)
	}
	if c.Threshold() != 0.99 {
		t.Errorf("Threshold = %v", c.Threshold())
	}
}

func TestWithScorer_JaroWinkler(t *testing.T) {
	t.Parallel()
	c := New(WithScorer(similarity.JaroWinkler))
	c.Store("what is the time", "It is noon.")
	if _, ok := c.Lookup("what is the tim"); !ok {
		t.Error("expected jaro-winkler hit on near-identical query")
	}
}

func TestEntries_ReturnsCopy(t *testing.T) {
	t.Parallel()
	c := New()
	c.Store("q", "r")
	e := c.Entries()
	e[0].Response = "mutated"
	if got, _ := c.Lookup("q"); got != "r" {
		t.Errorf("cache entry mutated through Entries copy: %q", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	c := New()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Store(fmt.Sprintf("query %d", i), "r")
		}()
		go func() {
			defer wg.Done()
			c.Lookup("query 1")
		}()
	}
	wg.Wait()
	if c.Len() != 20 {
		t.Errorf("Len = %d, want 20", c.Len())
	}
}

func TestLookup_NearDuplicateAndUnrelated(t *testing.T) {
	t.Parallel()
	c := New()
	c.Store("reset my router", "R1")

	tests := []struct {
		query  string
		want   string
		wantOK bool
	}{
		{"reset my router", "R1", true},
		{"reset  my router!!", "R1", true},
		{"completely unrelated text", "", false},
	}
	for _, tc := range tests {
		got, ok := c.Lookup(tc.query)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tc.query, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestLookup_EquallySimilarPrefersOlder(t *testing.T) {
	t.Parallel()
	c := New()
	c.Store("abc", "R1")
	c.Store("abd", "R2")
	// "ab_" scores 2/3 against both entries.
	if got, ok := c.LookupThreshold("ab_", 0.6); !ok || got != "R1" {
		t.Errorf("LookupThreshold = (%q, %v), want (R1, true)", got, ok)
	}
}
