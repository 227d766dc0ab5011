// Package browser drives a Chrome instance on the DM page and exposes
// the page to the rest of the system as parsed HTML snapshots plus a
// small set of gestures.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"log/slog"

	"github.com/katmoor/dmscout/config"
	"github.com/katmoor/dmscout/log"
)

// Session owns one browser tab on the conversation page.
type Session struct {
	cfg            *config.Config
	allocCtx       context.Context
	cancelAlloc    context.CancelFunc
	tabCtx         context.Context
	cancelTab      context.CancelFunc
	pageLoadWaitMS int
}

func NewSession(cfg *config.Config) *Session {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1920, 1080), // desktop view, the mobile DM layout differs
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Session{
		cfg:            cfg,
		allocCtx:       allocCtx,
		cancelAlloc:    cancelAlloc,
		pageLoadWaitMS: 2000,
	}
}

// Start launches the browser and opens the tab.
func (s *Session) Start(ctx context.Context) error {
	logger := log.LoggerFromContext(ctx)
	s.tabCtx, s.cancelTab = chromedp.NewContext(s.allocCtx)
	if err := chromedp.Run(s.tabCtx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	if log.Debug {
		if err := chromedp.Run(s.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			protocolVersion, product, revision, userAgent, jsVersion, err := cdpbrowser.GetVersion().Do(ctx)
			if err != nil {
				logger.Warn("failed to get chrome version", slog.String("err", err.Error()))
				return nil
			}
			logger.Debug(fmt.Sprintf("chrome version: protocolVersion=%s, product=%s, revision=%s, userAgent=%s, jsVersion=%s",
				protocolVersion, product, revision, userAgent, jsVersion))
			return nil
		})); err != nil {
			return err
		}
	}
	return nil
}

// TabContext returns the chromedp tab context, needed by collaborators
// that listen for CDP events on the same tab.
func (s *Session) TabContext() context.Context {
	return s.tabCtx
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	if s.cancelTab != nil {
		s.cancelTab()
	}
	s.cancelAlloc()
}

// Navigate opens urlStr and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, urlStr string) error {
	logger := log.LoggerFromContext(ctx).With(slog.String("url", urlStr))
	logger.Debug("navigating", slog.String("user-agent", s.cfg.UserAgent))
	return chromedp.Run(s.tabCtx,
		chromedp.Navigate(urlStr),
		chromedp.Sleep(time.Duration(s.pageLoadWaitMS)*time.Millisecond),
	)
}

// Document snapshots the rendered page and parses it. Detection runs
// over this snapshot, never over live DOM references.
func (s *Session) Document(ctx context.Context) (*goquery.Document, error) {
	var body string
	err := chromedp.Run(s.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		body, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

// PageURL reports the tab's current location.
func (s *Session) PageURL(ctx context.Context) (string, error) {
	var u string
	err := chromedp.Run(s.tabCtx, chromedp.Location(&u))
	return u, err
}
