package reel

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agnivade/levenshtein"
)

// Reaction is the outcome of a reaction scan on a message container.
// Type is best effort; "unknown" means something reacted but the kind
// could not be told.
type Reaction struct {
	HasReaction bool
	Type        string
}

// reactionEmoji maps emoji code points to a reaction type.
var reactionEmoji = map[rune]string{
	'❤': "heart", '♥': "heart", '🧡': "heart", '💛': "heart", '💚': "heart",
	'💙': "heart", '💜': "heart", '🖤': "heart", '🤍': "heart", '💕': "heart",
	'💖': "heart", '😍': "heart",
	'😂': "laugh", '🤣': "laugh", '😆': "laugh", '😹': "laugh",
	'😮': "wow", '😯': "wow", '😲': "wow", '😱': "wow",
	'😢': "sad", '😭': "sad", '☹': "sad",
	'😠': "angry", '😡': "angry", '🤬': "angry",
	'👍': "like",
	'🔥': "fire",
}

// reactionWords maps words seen in aria labels to reaction types;
// matching tolerates one edit so minor label drift ("hearts", "lik")
// still resolves.
var reactionWords = map[string]string{
	"heart": "heart", "love": "heart", "like": "like", "laugh": "laugh",
	"haha": "laugh", "wow": "wow", "sad": "sad", "cry": "sad",
	"angry": "angry", "fire": "fire",
}

var reactionBadgeRe = regexp.MustCompile(`^\d{1,4}$`)

var reactionSelectors = []string{
	`svg[aria-label*="eact"]`,
	`[data-testid*="reaction"]`,
	`div[class*="reaction"], span[class*="reaction"]`,
}

// DetectReaction scans the message container, its immediate siblings and
// its parent for reaction indicators. DM layouts render the reaction
// badge either inside the bubble or as a sibling overlay, which is why
// the scan is wider than the container itself.
func DetectReaction(container *goquery.Selection) Reaction {
	if container == nil || container.Length() == 0 {
		return Reaction{}
	}
	scopes := []*goquery.Selection{container, container.Prev(), container.Next(), container.Parent()}
	for _, scope := range scopes {
		if scope.Length() == 0 {
			continue
		}
		if r, ok := reactionInScope(scope); ok {
			return r
		}
	}
	return Reaction{}
}

func reactionInScope(scope *goquery.Selection) (Reaction, bool) {
	for _, sel := range reactionSelectors {
		hit := scope.Find(sel)
		if hit.Length() == 0 {
			continue
		}
		label, _ := hit.First().Attr("aria-label")
		if label == "" {
			label = hit.First().Text()
		}
		return Reaction{HasReaction: true, Type: typeFromLabel(label)}, true
	}
	if t, ok := emojiType(scope.Text()); ok {
		return Reaction{HasReaction: true, Type: t}, true
	}
	// count badge without any recognizable icon
	badge := scope.Find(`span[class*="count"], div[class*="badge"]`)
	if badge.Length() > 0 && reactionBadgeRe.MatchString(strings.TrimSpace(badge.First().Text())) {
		return Reaction{HasReaction: true, Type: "unknown"}, true
	}
	return Reaction{}, false
}

func emojiType(text string) (string, bool) {
	for _, r := range text {
		if t, ok := reactionEmoji[r]; ok {
			return t, true
		}
	}
	return "", false
}

// typeFromLabel infers a reaction type from label text, tolerating one
// edit per word.
func typeFromLabel(label string) string {
	if t, ok := emojiType(label); ok {
		return t
	}
	for _, word := range strings.Fields(strings.ToLower(label)) {
		word = strings.Trim(word, ".,:;!")
		for known, typ := range reactionWords {
			if word == known || levenshtein.ComputeDistance(word, known) <= 1 {
				return typ
			}
		}
	}
	return "unknown"
}
