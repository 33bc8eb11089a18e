package textutil_test

import (
	"testing"

	"carecount/internal/textutil"
)

func TestFoldSpace(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  peanut   butter \n", "peanut butter"},
		{"rice", "rice"},
	}
	for _, tc := range cases {
		if got := textutil.FoldSpace(tc.in); got != tc.want {
			t.Errorf("FoldSpace(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStripMarks(t *testing.T) {
	if got := textutil.StripMarks("Kellogg's® Corn Flakes™"); got != "Kellogg's Corn Flakes" {
		t.Errorf("StripMarks = %q", got)
	}
}

func TestClamp(t *testing.T) {
	if got := textutil.Clamp("abcdef", 3); got != "abc" {
		t.Errorf("Clamp = %q, want abc", got)
	}
	if got := textutil.Clamp("ab", 3); got != "ab" {
		t.Errorf("Clamp = %q, want ab", got)
	}
	if got := textutil.Clamp("ab", 0); got != "" {
		t.Errorf("Clamp with zero max = %q, want empty", got)
	}
}

func TestHasLetter(t *testing.T) {
	if textutil.HasLetter("500 ml 12%") {
		t.Error("expected no letters in numeric string")
	}
	if !textutil.HasLetter("2 apples") {
		t.Error("expected letters in mixed string")
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"pasta", "pasta", 0},
		{"pasta", "paste", 1},
		{"noodles", "noodle", 1},
		{"soap", "soup", 1},
		{"tea", "coffee", 6},
		{"", "rice", 4},
	}
	for _, tc := range cases {
		if got := textutil.Levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
		if got := textutil.Levenshtein(tc.b, tc.a); got != tc.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d (symmetry)", tc.b, tc.a, got, tc.want)
		}
	}
}
