package detect

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ElementSignature builds a stable selector-like signature for a single
// element: the tag name plus its id or its sorted class list. Equal
// markup yields equal signatures, which makes them usable as weak
// identities for diffing and path building.
func ElementSignature(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	tag := goquery.NodeName(s)
	if tag == "" {
		return ""
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		return tag + "#" + id
	}
	var b strings.Builder
	b.WriteString(tag)
	if class, ok := s.Attr("class"); ok && class != "" {
		classes := strings.Fields(class)
		sort.Strings(classes)
		b.WriteString(".")
		b.WriteString(strings.Join(classes, "."))
	}
	return b.String()
}

// DOMPath renders the ancestor chain of an element as a " > " joined
// list of signatures, root first. It is recorded with detected reels so
// a later scan can tell roughly where in the tree a record came from.
func DOMPath(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	parts := []string{ElementSignature(s)}
	for cur := s.Parent(); cur.Length() > 0; cur = cur.Parent() {
		sig := ElementSignature(cur)
		if sig == "" || sig == "html" {
			break
		}
		parts = append(parts, sig)
	}
	// reverse to root-first order
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
