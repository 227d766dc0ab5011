package browser

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/jsonquery"
	"github.com/chromedp/chromedp"
)

var threadPathRe = regexp.MustCompile(`/direct/t/(\d+)`)

// thread id fields seen in the inline JSON payloads embedded in the DM
// page, in the order they are tried.
var threadIDQueries = []string{
	"//thread_id",
	"//thread_v2_id",
	"//threadID",
}

// ConversationID identifies the open conversation. The URL path is
// authoritative when present; otherwise the inline JSON blobs the page
// ships are searched for a thread id. Empty means unknown, which the
// caller treats as a shared bucket, not an error.
func ConversationID(doc *goquery.Document, pageURL string) string {
	if m := threadPathRe.FindStringSubmatch(pageURL); m != nil {
		return m[1]
	}
	if doc == nil {
		return ""
	}
	var id string
	doc.Find(`script[type="application/json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		blob := strings.TrimSpace(s.Text())
		if blob == "" || !strings.Contains(blob, "thread") {
			return true
		}
		node, err := jsonquery.Parse(strings.NewReader(blob))
		if err != nil {
			return true
		}
		for _, q := range threadIDQueries {
			if n := jsonquery.FindOne(node, q); n != nil {
				if v := strings.TrimSpace(n.InnerText()); v != "" {
					id = v
					return false
				}
			}
		}
		return true
	})
	return id
}

// CurrentConversationID resolves the conversation for the live tab.
func (s *Session) CurrentConversationID(ctx context.Context) (string, error) {
	var u string
	if err := chromedp.Run(s.tabCtx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	if m := threadPathRe.FindStringSubmatch(u); m != nil {
		return m[1], nil
	}
	doc, err := s.Document(ctx)
	if err != nil {
		return "", err
	}
	return ConversationID(doc, u), nil
}
