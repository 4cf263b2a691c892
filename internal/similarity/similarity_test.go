package similarity

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"both empty", "", "", 1.0},
		{"empty left", "", "hello", 0.0},
		{"empty right", "hello", "", 0.0},
		{"identical", "what is the time", "what is the time", 1.0},
		{"disjoint", "abc", "xyz", 0.0},
		// "abcd" vs "bcde": block "bcd" (3), T = 8.
		{"shifted", "abcd", "bcde", 0.75},
		// Devanagari is scored per rune, not per byte.
		{"devanagari identical", "नमस्ते", "नमस्ते", 1.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Ratio(tc.a, tc.b); !approx(got, tc.want) {
				t.Errorf("Ratio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestRatio_Properties(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"what is the weather", "what's the weather"},
		{"my printer is not working", "my printer isn't working"},
		{"hello there", "goodbye"},
		{"maza printer chalat nahi", "my printer is not working"},
		{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaab", "baaaaaaaaa"},
	}
	for _, p := range pairs {
		ab, ba := Ratio(p[0], p[1]), Ratio(p[1], p[0])
		if !approx(ab, ba) {
			t.Errorf("Ratio not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("Ratio(%q, %q) = %v out of [0,1]", p[0], p[1], ab)
		}
	}
}

func TestRatio_CloseParaphraseScoresHigh(t *testing.T) {
	t.Parallel()
	if got := Ratio("my printer is not working", "my printer is not working?"); got < 0.8 {
		t.Errorf("near-identical phrasing scored %v, want >= 0.8", got)
	}
	if got := Ratio("what is the time", "tell me a joke"); got >= 0.8 {
		t.Errorf("unrelated phrasing scored %v, want < 0.8", got)
	}
}

func TestJaroWinkler(t *testing.T) {
	t.Parallel()

	if got := JaroWinkler("", ""); got != 1.0 {
		t.Errorf("JaroWinkler empty/empty = %v, want 1", got)
	}
	if got := JaroWinkler("", "x"); got != 0.0 {
		t.Errorf("JaroWinkler empty/x = %v, want 0", got)
	}
	if got := JaroWinkler("martha", "martha"); got != 1.0 {
		t.Errorf("JaroWinkler identical = %v, want 1", got)
	}
	if got := JaroWinkler("martha", "marhta"); got <= 0.9 || got > 1 {
		t.Errorf("JaroWinkler transposition = %v, want (0.9, 1]", got)
	}
}

func TestScorerByName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "ratio", "RATIO", "jaro-winkler", "jarowinkler"} {
		s, err := ScorerByName(name)
		if err != nil {
			t.Errorf("ScorerByName(%q): %v", name, err)
			continue
		}
		if got := s("abc", "abc"); got != 1.0 {
			t.Errorf("ScorerByName(%q) identical score = %v", name, got)
		}
	}
	if _, err := ScorerByName("levenshtein"); err == nil {
		t.Error("expected error for unknown scorer")
	}
}
