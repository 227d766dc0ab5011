package reel

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/katmoor/dmscout/utils"
)

// idAttrs in precedence order.
var idAttrs = []string{"data-reel-id", "data-video-id", "data-media-id", "data-id"}

var urlAttrs = []string{"href", "src", "poster"}

// maxAncestorWalk bounds the upward search for URL-bearing ancestors.
const maxAncestorWalk = 5

// ExtractID derives an id for a reel element. It is total: data
// attributes win, then URL patterns on the element, its descendants and
// a bounded ancestor walk, and finally a hash of the element content, so
// a non-empty element always yields some id even if synthetic. Synthetic
// ids are not stable across re-scans; that weakness is part of the
// contract.
func ExtractID(el *goquery.Selection) string {
	if el == nil || el.Length() == 0 {
		return randomID()
	}

	if id := idFromAttrs(el); id != "" {
		return id
	}
	var found string
	el.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = idFromAttrs(s)
		return found == ""
	})
	if found != "" {
		return found
	}

	if id := idFromURLs(el); id != "" {
		return id
	}
	el.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = idFromURLs(s)
		return found == ""
	})
	if found != "" {
		return found
	}
	cur := el.Parent()
	for depth := 0; depth < maxAncestorWalk && cur.Length() > 0; depth++ {
		if id := idFromURLs(cur); id != "" {
			return id
		}
		cur = cur.Parent()
	}

	text := strings.TrimSpace(el.Text())
	if text != "" {
		return "reel-" + utils.ShortHash(goquery.NodeName(el), text)
	}
	if html, err := el.Html(); err == nil && html != "" {
		return "reel-" + utils.ShortHash(html)
	}
	return randomID()
}

func idFromAttrs(s *goquery.Selection) string {
	for _, attr := range idAttrs {
		if v, ok := s.Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

func idFromURLs(s *goquery.Selection) string {
	for _, attr := range urlAttrs {
		v, ok := s.Attr(attr)
		if !ok || v == "" {
			continue
		}
		if m := reelURLRe.FindStringSubmatch(v); m != nil {
			return m[1]
		}
	}
	return ""
}

func randomID() string {
	id, err := utils.RandomString("reel")
	if err != nil {
		// crypto/rand failing is effectively unreachable; an id is still owed
		return "reel-unknown"
	}
	return id
}
