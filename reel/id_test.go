package reel

import (
	"strings"
	"testing"
)

func TestExtractIDFromDataAttr(t *testing.T) {
	html := `<html><body><div data-reel-id="abc123xyz"><a href="/reel/OTHER/">x</a></div></body></html>`
	el := msgFromString(t, html, "div")
	if id := ExtractID(el); id != "abc123xyz" {
		t.Fatalf("data attribute must win, got %q", id)
	}
}

func TestExtractIDFromDescendantURL(t *testing.T) {
	html := `<html><body><div><span><a href="https://www.instagram.com/reel/Cdeep99/">x</a></span></div></body></html>`
	el := msgFromString(t, html, "div")
	if id := ExtractID(el); id != "Cdeep99" {
		t.Fatalf("expected id from nested href, got %q", id)
	}
}

func TestExtractIDFromAncestorURL(t *testing.T) {
	html := `<html><body><a href="/tv/Canc42/"><div><span>x</span></div></a></body></html>`
	el := msgFromString(t, html, "span")
	if id := ExtractID(el); id != "Canc42" {
		t.Fatalf("expected id from ancestor href, got %q", id)
	}
}

func TestExtractIDHashFallbackIsStable(t *testing.T) {
	html := `<html><body><div><span>no links here at all</span></div></body></html>`
	el := msgFromString(t, html, "div")
	first := ExtractID(el)
	second := ExtractID(el)
	if first == "" {
		t.Fatal("id extraction must be total")
	}
	if !strings.HasPrefix(first, "reel-") {
		t.Fatalf("synthetic ids carry the reel- prefix, got %q", first)
	}
	if first != second {
		t.Fatalf("hash fallback must be deterministic per element: %q vs %q", first, second)
	}
}

func TestExtractIDNilIsStillTotal(t *testing.T) {
	if id := ExtractID(nil); id == "" {
		t.Fatal("nil input must still yield an id")
	}
}
