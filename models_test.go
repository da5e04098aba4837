package main

import (
	"testing"
	"unicode/utf8"
)

func TestTruncateText(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"0123456789abc", 10, "0123456789"},
		// 4-byte emoji straddling the cut must be dropped whole.
		{"abcd\U0001F600xyz", 6, "abcd"},
		{"abcd\U0001F600xyz", 8, "abcd\U0001F600"},
		// 2-byte rune at the boundary.
		{"cafés", 4, "caf"},
	}
	for _, c := range cases {
		got := truncateText(c.in, c.max)
		if got != c.want {
			t.Errorf("truncateText(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncateText(%q, %d) produced invalid UTF-8", c.in, c.max)
		}
	}
}

func TestClampSeverity(t *testing.T) {
	cases := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {3, 3}, {5, 5}, {9, 5},
	}
	for _, c := range cases {
		if got := clampSeverity(c.in); got != c.want {
			t.Errorf("clampSeverity(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
