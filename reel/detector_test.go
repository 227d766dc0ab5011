package reel

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const (
	htmlReelLink = `
	<html><body>
		<div role="row" data-testid="message-container">
			<a href="https://www.instagram.com/reel/Cxyz12345AB/?igsh=1">watch this</a>
		</div>
	</body></html>`
	htmlVisualOnly = `
	<html><body>
		<div role="row">
			<div aria-label="Reel by someone" data-testid="media-preview"><img src="/thumb.jpg"></div>
		</div>
	</body></html>`
	htmlTextOnly = `
	<html><body>
		<div role="row"><span>Alice shared a reel</span></div>
	</body></html>`
	htmlPlainMessage = `
	<html><body>
		<div role="row"><span>see you tomorrow</span></div>
	</body></html>`
)

func msgFromString(t *testing.T, html, selector string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("error while parsing html: %v", err)
	}
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		t.Fatalf("fixture has no match for %s", selector)
	}
	return sel.First()
}

func TestDetectReelByURL(t *testing.T) {
	msg := msgFromString(t, htmlReelLink, `div[role="row"]`)
	det := NewDetector(nil).DetectReel(msg)

	if !det.IsReel {
		t.Fatal("expected a reel")
	}
	if det.Method != MethodURLPattern {
		t.Fatalf("expected method %q, got %q", MethodURLPattern, det.Method)
	}
	if det.ReelID != "Cxyz12345AB" {
		t.Fatalf("expected id from URL, got %q", det.ReelID)
	}
	// base 0.9 + long id + testid attribute, capped at 1.0
	if det.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", det.Confidence)
	}
	if !strings.Contains(det.ReelURL, "/reel/Cxyz12345AB") {
		t.Fatalf("unexpected url %q", det.ReelURL)
	}
}

func TestDetectReelByVisualIndicator(t *testing.T) {
	msg := msgFromString(t, htmlVisualOnly, `div[role="row"]`)
	det := NewDetector(nil).DetectReel(msg)

	if !det.IsReel {
		t.Fatal("expected a reel")
	}
	if det.Method != MethodVisualIndicator {
		t.Fatalf("expected method %q, got %q", MethodVisualIndicator, det.Method)
	}
	if det.Confidence < acceptThreshold {
		t.Fatalf("confidence %v below threshold", det.Confidence)
	}
	if det.ReelID == "" {
		t.Fatal("id extraction must be total")
	}
}

func TestDetectReelTextBelowThreshold(t *testing.T) {
	msg := msgFromString(t, htmlTextOnly, `div[role="row"]`)
	det := NewDetector(nil).DetectReel(msg)

	if det.IsReel {
		t.Fatal("text-only match must stay below the acceptance threshold")
	}
	if det.Method != MethodTextContent {
		t.Fatalf("expected method %q, got %q", MethodTextContent, det.Method)
	}
	if det.Confidence != textBaseConfidence {
		t.Fatalf("expected confidence %v, got %v", textBaseConfidence, det.Confidence)
	}
}

func TestDetectReelNothing(t *testing.T) {
	msg := msgFromString(t, htmlPlainMessage, `div[role="row"]`)
	det := NewDetector(nil).DetectReel(msg)

	if det.IsReel || det.Confidence != 0 || det.Method != MethodNone {
		t.Fatalf("expected empty detection, got %+v", det)
	}
}

func TestDetectReelNilInput(t *testing.T) {
	det := NewDetector(nil).DetectReel(nil)
	if det.IsReel || det.Method != MethodNone {
		t.Fatalf("expected empty detection, got %+v", det)
	}
}
