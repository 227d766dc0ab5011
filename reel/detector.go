// Package reel specializes detection for reel attachments and emoji
// reactions inside a message container. Sub-strategies carry their own
// confidence formulas; a detection is only accepted once it clears a
// fixed threshold.
package reel

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Detection method names reported to callers.
const (
	MethodURLPattern      = "url-pattern"
	MethodVisualIndicator = "visual-indicator"
	MethodTextContent     = "text-content"
	MethodComponent       = "component"
	MethodNone            = "none"
)

// acceptThreshold is the confidence a sub-strategy must reach before the
// message counts as a reel.
const acceptThreshold = 0.7

const (
	urlBaseConfidence       = 0.9
	visualBaseConfidence    = 0.75
	textBaseConfidence      = 0.6
	componentBaseConfidence = 0.5
	longIDBoost             = 0.05
	testIDBoost             = 0.05
)

// Detection is the outcome of one reel check on a message container.
type Detection struct {
	IsReel     bool
	Confidence float64
	ReelID     string
	Method     string
	ReelURL    string
}

var (
	reelURLRe  = regexp.MustCompile(`/(?:reel|reels|tv)/([A-Za-z0-9_-]+)`)
	reelLinkRe = regexp.MustCompile(`https?://[^\s"']*/(?:reel|reels|tv)/[A-Za-z0-9_-]+[^\s"']*`)
	reelTextRe = regexp.MustCompile(`(?i)(shared a reel|sent a reel|shared a video|video shared|sent an attachment)`)
)

var visualKeywords = []string{"reel", "video", "story", "clip"}

// Detector detects reel attachments. State (logger, thresholds) is held
// on the instance so several sessions can detect independently.
type Detector struct {
	logger *slog.Logger
}

func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// DetectReel tries the sub-strategies in order of trustworthiness until
// one clears the acceptance threshold. A sub-threshold match is reported
// with its confidence but IsReel false; no match at all yields the zero
// detection with method "none".
func (d *Detector) DetectReel(msg *goquery.Selection) Detection {
	if msg == nil || msg.Length() == 0 {
		return Detection{Method: MethodNone}
	}

	best := Detection{Method: MethodNone}
	for _, strat := range []func(*goquery.Selection) Detection{
		d.byURL, d.byVisual, d.byText, d.byComponent,
	} {
		det := strat(msg)
		if det.Confidence >= acceptThreshold {
			det.IsReel = true
			if det.ReelID == "" {
				det.ReelID = ExtractID(msg)
			}
			return det
		}
		if det.Confidence > best.Confidence {
			best = det
		}
	}
	if best.Confidence > 0 {
		best.ReelID = ExtractID(msg)
		d.logger.Debug("reel candidate below threshold",
			slog.String("method", best.Method),
			slog.Float64("confidence", best.Confidence))
	}
	return best
}

// byURL scans hyperlink hrefs and the raw text for reel URLs.
func (d *Detector) byURL(msg *goquery.Selection) Detection {
	var det Detection
	msg.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		m := reelURLRe.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		det = Detection{
			Confidence: boost(urlBaseConfidence, m[1], hasTestID(a) || hasTestID(msg)),
			ReelID:     m[1],
			Method:     MethodURLPattern,
			ReelURL:    href,
		}
		return false
	})
	if det.Method != "" {
		return det
	}
	if link := reelLinkRe.FindString(msg.Text()); link != "" {
		id := ""
		if m := reelURLRe.FindStringSubmatch(link); m != nil {
			id = m[1]
		}
		return Detection{
			Confidence: boost(urlBaseConfidence, id, hasTestID(msg)),
			ReelID:     id,
			Method:     MethodURLPattern,
			ReelURL:    link,
		}
	}
	return Detection{Method: MethodNone}
}

// byVisual looks for reel markers in aria labels, test ids and class
// names anywhere inside the message.
func (d *Detector) byVisual(msg *goquery.Selection) Detection {
	var hit *goquery.Selection
	msg.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"aria-label", "data-testid", "class"} {
			v, ok := s.Attr(attr)
			if !ok {
				continue
			}
			lower := strings.ToLower(v)
			for _, kw := range visualKeywords {
				if strings.Contains(lower, kw) {
					hit = s
					return false
				}
			}
		}
		return true
	})
	if hit == nil {
		return Detection{Method: MethodNone}
	}
	id := ExtractID(msg)
	return Detection{
		Confidence: boost(visualBaseConfidence, id, hasTestID(hit)),
		ReelID:     id,
		Method:     MethodVisualIndicator,
		ReelURL:    firstMediaURL(msg),
	}
}

func (d *Detector) byText(msg *goquery.Selection) Detection {
	if !reelTextRe.MatchString(msg.Text()) {
		return Detection{Method: MethodNone}
	}
	return Detection{Confidence: textBaseConfidence, Method: MethodTextContent}
}

// byComponent checks for player building blocks: a nested video element,
// a play affordance or a share affordance.
func (d *Detector) byComponent(msg *goquery.Selection) Detection {
	if msg.Find("video").Length() == 0 &&
		msg.Find(`svg[aria-label*="Play"], [aria-label*="Play"]`).Length() == 0 &&
		msg.Find(`[aria-label*="Share"], [aria-label*="Forward"]`).Length() == 0 {
		return Detection{Method: MethodNone}
	}
	return Detection{
		Confidence: componentBaseConfidence,
		Method:     MethodComponent,
		ReelURL:    firstMediaURL(msg),
	}
}

// boost applies the shared confidence bonuses: a long extracted id and a
// semantic test id attribute each add a little, capped at 1.
func boost(base float64, id string, testID bool) float64 {
	conf := base
	if len(id) >= 8 {
		conf += longIDBoost
	}
	if testID {
		conf += testIDBoost
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

func hasTestID(s *goquery.Selection) bool {
	_, ok := s.Attr("data-testid")
	return ok
}

func firstMediaURL(msg *goquery.Selection) string {
	for _, attr := range []string{"src", "poster"} {
		if v, ok := msg.Find("video").Attr(attr); ok && v != "" {
			return v
		}
	}
	if v, ok := msg.Find("a[href]").Attr("href"); ok {
		return v
	}
	return ""
}
