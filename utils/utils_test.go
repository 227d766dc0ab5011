package utils

import (
	"strings"
	"testing"
)

func TestShortenString(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"hello world", 5, "hello..."},
		{"hello", 10, "hello"},
		{"", 3, ""},
		{"abcdef", 0, "abcdef"},
		{"abcdef", 6, "abcdef"},
		{"abcdef", 3, "abc..."},
	}

	for _, tc := range tests {
		got := ShortenString(tc.input, tc.length)
		if got != tc.expected {
			t.Errorf("ShortenString(%q, %d) = %q, expected %q", tc.input, tc.length, got, tc.expected)
		}
	}
}

func TestShortHash(t *testing.T) {
	a := ShortHash("reel", "https://example.com/x")
	b := ShortHash("reel", "https://example.com/x")
	if a != b {
		t.Errorf("expected equal hashes for equal input, got %q and %q", a, b)
	}
	if len(a) != 12 {
		t.Errorf("expected 12 character digest, got %d (%q)", len(a), a)
	}
	c := ShortHash("reel", "https://example.com/y")
	if a == c {
		t.Errorf("expected different hashes for different input, got %q twice", a)
	}
	// part boundaries matter
	if ShortHash("ab", "c") == ShortHash("a", "bc") {
		t.Errorf("expected digests to depend on part boundaries")
	}
}

func TestRandomString(t *testing.T) {
	s1, err := RandomString("msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(s1, "msg-") {
		t.Errorf("expected prefix %q, got %q", "msg-", s1)
	}
	s2, err := RandomString("msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1 == s2 {
		t.Errorf("expected distinct random strings, got %q twice", s1)
	}
	bare, err := RandomString("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(bare, "-") {
		t.Errorf("expected no separator without prefix, got %q", bare)
	}
}

func TestSliceEquals(t *testing.T) {
	tests := []struct {
		name     string
		a        []string
		b        []string
		expected bool
	}{
		{"equal", []string{"a", "b"}, []string{"a", "b"}, true},
		{"different order", []string{"a", "b"}, []string{"b", "a"}, false},
		{"different length", []string{"a"}, []string{"a", "b"}, false},
		{"both empty", nil, []string{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SliceEquals(tc.a, tc.b); got != tc.expected {
				t.Errorf("SliceEquals(%v, %v) = %t, expected %t", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}
