package browser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFromString(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("error while parsing html: %v", err)
	}
	return doc
}

func TestConversationIDFromURL(t *testing.T) {
	id := ConversationID(nil, "https://www.instagram.com/direct/t/34012345678901234/")
	if id != "34012345678901234" {
		t.Fatalf("expected id from url path, got %q", id)
	}
}

func TestConversationIDFromInlineJSON(t *testing.T) {
	html := `
	<html><body>
		<script type="application/json">{"noise":true}</script>
		<script type="application/json">{"data":{"thread":{"thread_id":"987654321","users":[]}}}</script>
	</body></html>`
	id := ConversationID(docFromString(t, html), "https://www.instagram.com/direct/inbox/")
	if id != "987654321" {
		t.Fatalf("expected id from inline json, got %q", id)
	}
}

func TestConversationIDUnknown(t *testing.T) {
	html := `<html><body><script type="application/json">{"data":{}}</script></body></html>`
	if id := ConversationID(docFromString(t, html), "https://www.instagram.com/"); id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}

func TestConversationIDURLWins(t *testing.T) {
	html := `<html><body><script type="application/json">{"thread_id":"111"}</script></body></html>`
	id := ConversationID(docFromString(t, html), "https://www.instagram.com/direct/t/222/")
	if id != "222" {
		t.Fatalf("url path must be authoritative, got %q", id)
	}
}
