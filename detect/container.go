package detect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// maxContainerDepth bounds the upward walk from a detected element to its
// enclosing message container.
const maxContainerDepth = 10

var containerMatchers = []cascadia.Selector{
	cascadia.MustCompile(`[data-testid*="message"]`),
	cascadia.MustCompile(`div[role="row"]`),
	cascadia.MustCompile(`div[role="listitem"]`),
	cascadia.MustCompile(`div[class*="message"]`),
	cascadia.MustCompile(`div[class*="bubble"]`),
}

var containerClassHints = []string{"message", "bubble", "chat"}

// FindMessageContainer walks strictly upward from el toward the document
// root looking for the enclosing logical message. It returns nil when no
// ancestor qualifies; callers must treat nil as "context unavailable",
// not as an error. The returned element is always an ancestor of el (or
// el itself), never a descendant.
func FindMessageContainer(el *goquery.Selection) *goquery.Selection {
	if el == nil || el.Length() == 0 {
		return nil
	}
	cur := el.First()
	for depth := 0; depth < maxContainerDepth; depth++ {
		if cur.Length() == 0 {
			break
		}
		if isMessageContainer(cur) && aboveMinSize(cur) {
			return cur
		}
		cur = cur.Parent()
	}
	// Last resort: the immediate parent, if it is a generic block
	// container with real content.
	parent := el.First().Parent()
	if parent.Length() > 0 && isBlockTag(goquery.NodeName(parent)) && aboveMinSize(parent) {
		return parent
	}
	return nil
}

func isMessageContainer(s *goquery.Selection) bool {
	node := s.Get(0)
	for _, m := range containerMatchers {
		if m.Match(node) {
			return true
		}
	}
	if role, _ := s.Attr("role"); role == "row" || role == "button" {
		return true
	}
	if class, _ := s.Attr("class"); class != "" {
		lower := strings.ToLower(class)
		for _, hint := range containerClassHints {
			if strings.Contains(lower, hint) {
				return true
			}
		}
	}
	if style, _ := s.Attr("style"); style != "" {
		lower := strings.ToLower(style)
		if strings.Contains(lower, "padding") || strings.Contains(lower, "margin") ||
			strings.Contains(lower, "background") {
			return true
		}
	}
	return false
}

// aboveMinSize rejects decorative wrappers. Outside a rendering engine
// there is no bounding box to measure, so explicit dimensions are used
// when present and content is used as a proxy otherwise: a real message
// row carries text or media.
func aboveMinSize(s *goquery.Selection) bool {
	if w, ok := s.Attr("width"); ok && len(w) > 0 && w[0] == '0' {
		return false
	}
	if h, ok := s.Attr("height"); ok && len(h) > 0 && h[0] == '0' {
		return false
	}
	if len(strings.TrimSpace(s.Text())) >= 2 {
		return true
	}
	return s.Find("img, video, a, svg").Length() > 0
}

func isBlockTag(tag string) bool {
	switch tag {
	case "div", "section", "li", "article":
		return true
	}
	return false
}
