package transcript

import (
	"math"
	"testing"
)

func TestSimilarityIdentical(t *testing.T) {
	for _, s := range []string{"hello", "The quick brown fox", "a"} {
		if got := Similarity(s, s); got != 100 {
			t.Errorf("Similarity(%q, %q) = %v, want 100", s, s, got)
		}
	}
}

func TestSimilarityExactAfterNormalization(t *testing.T) {
	if got := Similarity("Hello, World!", "hello world"); got != 100 {
		t.Errorf("Similarity = %v, want 100", got)
	}
}

func TestSimilarityEmpty(t *testing.T) {
	if got := Similarity("", "anything"); got != 0 {
		t.Errorf("Similarity(\"\", x) = %v, want 0", got)
	}
	if got := Similarity("anything", ""); got != 0 {
		t.Errorf("Similarity(x, \"\") = %v, want 0", got)
	}
	// Punctuation-only normalizes to empty.
	if got := Similarity("?!...", "anything"); got != 0 {
		t.Errorf("Similarity(punct, x) = %v, want 0", got)
	}
}

func TestSimilarityContainment(t *testing.T) {
	// "hello" (5 chars) inside "hello world" (11 chars).
	want := 100 * 5.0 / 11.0
	got := Similarity("hello", "hello world")
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity = %v, want %v", got, want)
	}

	// Order of arguments must not matter.
	if got2 := Similarity("hello world", "hello"); got2 != got {
		t.Errorf("Similarity not symmetric: %v vs %v", got, got2)
	}
}

func TestSimilarityPositional(t *testing.T) {
	// "abcd" vs "abce": 3 of 4 positions match.
	want := 100 * 3.0 / 4.0
	if got := Similarity("abcd", "abce"); math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity = %v, want %v", got, want)
	}
}

func TestSimilarityShiftedUnderCounts(t *testing.T) {
	// A leading insertion shifts every later position; the positional
	// fallback scores this low even though the strings nearly match.
	got := Similarity("and the lecture covers cells", "the lecture covers cells now")
	if got >= 90 {
		t.Errorf("Similarity = %v, expected the shifted pair to score below the duplicate threshold", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello, World!", "hello world"},
		{"  spaced   out  ", "spaced out"},
		{"UPPER", "upper"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
