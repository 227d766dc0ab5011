package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"log/slog"

	"github.com/katmoor/dmscout/log"
	"github.com/katmoor/dmscout/scroll"
)

// wheel events land at a fixed point over the thread column of the
// desktop layout.
const (
	wheelX = 960
	wheelY = 500
)

const frameInterval = 40 * time.Millisecond

// containerScrollTopJS reads the scroll offset of the first scrollable
// conversation container, falling back to the page itself.
const containerScrollTopJS = `(() => {
	const sels = ['div[role="grid"]', 'div[aria-label*="Messages"]', 'div[class*="message"]'];
	for (const s of sels) {
		for (const el of document.querySelectorAll(s)) {
			if (el.scrollHeight > el.clientHeight) return el.scrollTop;
		}
	}
	return document.scrollingElement ? document.scrollingElement.scrollTop : 0;
})()`

var loadMoreSelectors = []string{
	`[aria-label*="Load more"]`,
	`[aria-label*="See more"]`,
	`[data-testid*="load"]`,
	`div[role="button"][aria-label*="older"]`,
}

// ScrollBy delivers px of scrolling (negative = up) as a train of wheel
// events whose step sizes follow an ease-out curve over the given
// duration, the profile of a real flick rather than one synthetic jump.
func (s *Session) ScrollBy(ctx context.Context, px float64, duration time.Duration) error {
	frames := int(duration / frameInterval)
	if frames < 3 {
		frames = 3
	}
	return chromedp.Run(s.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		delivered := 0.0
		for i := 1; i <= frames; i++ {
			eased := scroll.EaseOutCubic(float64(i) / float64(frames))
			step := px*eased - delivered
			delivered += step
			err := input.DispatchMouseEvent(input.MouseWheel, wheelX, wheelY).
				WithDeltaX(0).
				WithDeltaY(step).
				Do(ctx)
			if err != nil {
				return err
			}
			if i < frames {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(frameInterval):
				}
			}
		}
		return nil
	}))
}

// ScrollTop reports the container's current scroll offset, implementing
// the other half of the scroll driver.
func (s *Session) ScrollTop(ctx context.Context) (float64, error) {
	var top float64
	err := chromedp.Run(s.tabCtx, chromedp.Evaluate(containerScrollTopJS, &top))
	return top, err
}

// ClickLoadMore clicks the first visible load-more affordance and
// reports whether one was found. Absence is not an error.
func (s *Session) ClickLoadMore(ctx context.Context) (bool, error) {
	logger := log.LoggerFromContext(ctx)
	for _, sel := range loadMoreSelectors {
		var nodes []*cdp.Node
		err := chromedp.Run(s.tabCtx, chromedp.Nodes(sel, &nodes, chromedp.AtLeast(0)))
		if err != nil {
			return false, err
		}
		if len(nodes) == 0 {
			continue
		}
		logger.Debug("clicking load-more affordance", slog.String("selector", sel))
		if err := chromedp.Run(s.tabCtx, chromedp.MouseClickNode(nodes[0])); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

var _ scroll.Driver = (*Session)(nil)
