package reel

import (
	"testing"
)

func TestDetectReactionAriaLabel(t *testing.T) {
	html := `
	<html><body>
		<div role="row">
			<span>nice one</span>
			<svg aria-label="Heart reaction"><path d=""></path></svg>
		</div>
	</body></html>`
	r := DetectReaction(msgFromString(t, html, `div[role="row"]`))
	if !r.HasReaction {
		t.Fatal("expected a reaction")
	}
	if r.Type != "heart" {
		t.Fatalf("expected type heart, got %q", r.Type)
	}
}

func TestDetectReactionEmojiInSibling(t *testing.T) {
	html := `
	<html><body>
		<div>
			<div id="bubble"><span>look at this</span></div>
			<div class="overlay">😂</div>
		</div>
	</body></html>`
	r := DetectReaction(msgFromString(t, html, "#bubble"))
	if !r.HasReaction {
		t.Fatal("expected a reaction from the sibling overlay")
	}
	if r.Type != "laugh" {
		t.Fatalf("expected type laugh, got %q", r.Type)
	}
}

func TestDetectReactionCountBadge(t *testing.T) {
	html := `
	<html><body>
		<div role="row">
			<span>hello</span>
			<span class="xn-count">2</span>
		</div>
	</body></html>`
	r := DetectReaction(msgFromString(t, html, `div[role="row"]`))
	if !r.HasReaction {
		t.Fatal("expected a reaction from the count badge")
	}
	if r.Type != "unknown" {
		t.Fatalf("badge without an icon must report type unknown, got %q", r.Type)
	}
}

func TestDetectReactionNone(t *testing.T) {
	html := `<html><body><div role="row"><span>plain text</span></div></body></html>`
	r := DetectReaction(msgFromString(t, html, `div[role="row"]`))
	if r.HasReaction {
		t.Fatalf("expected no reaction, got %+v", r)
	}
}

func TestTypeFromLabelToleratesOneEdit(t *testing.T) {
	tests := []struct{ label, want string }{
		{"Loved by alice", "heart"},
		{"hearts", "heart"},
		{"Fire reaction", "fire"},
		{"lik", "like"},
		{"completely unrelated", "unknown"},
	}
	for _, tt := range tests {
		if got := typeFromLabel(tt.label); got != tt.want {
			t.Errorf("typeFromLabel(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}
