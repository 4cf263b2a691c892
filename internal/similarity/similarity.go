// Package similarity scores how alike two strings are on a 0 to 1 scale.
//
// The default [Ratio] scorer is the "gestalt" longest-matching-block ratio
// 2·M/T: M counts the characters covered by greedily chosen contiguous
// matching blocks and T is the combined length of both inputs. Scores are
// computed over runes so multi-byte scripts such as Devanagari are compared
// character by character.
//
// Scorers do not normalise case; callers lower-case both inputs first.
package similarity

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/pmezard/go-difflib/difflib"
)

// Scorer returns a similarity in [0, 1] for two strings.
type Scorer func(a, b string) float64

// Scorer names accepted by [ScorerByName].
const (
	NameRatio       = "ratio"
	NameJaroWinkler = "jaro-winkler"
)

// Ratio returns the longest-matching-block similarity of a and b.
//
// Two empty strings score 1.0; an empty string against a non-empty one
// scores 0.0. The result is symmetric.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	ra, rb := runes(a), runes(b)
	// Block selection depends on argument order when several longest blocks
	// tie, so take the better of both directions.
	return max(ratio(ra, rb), ratio(rb, ra))
}

func ratio(a, b []string) float64 {
	m := difflib.NewMatcherWithJunk(a, b, false, nil)
	r := m.Ratio()
	return min(max(r, 0), 1)
}

// runes splits s into one element per Unicode code point.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// JaroWinkler returns the Jaro-Winkler similarity of a and b. It rewards
// common prefixes and tolerates transpositions, which suits short spoken
// phrases better than block matching in some languages.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return min(max(matchr.JaroWinkler(a, b, false), 0), 1)
}

// ScorerByName resolves a configured scorer name. An empty name selects [Ratio].
func ScorerByName(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameRatio:
		return Ratio, nil
	case NameJaroWinkler, "jarowinkler":
		return JaroWinkler, nil
	default:
		return nil, fmt.Errorf("similarity: unknown scorer %q", name)
	}
}
