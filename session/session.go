// Package session orchestrates one conversation: it snapshots the page,
// classifies message containers, runs reel and reaction detection,
// resolves timestamps, persists the assembled records and owns the
// scroll session lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/katmoor/dmscout/config"
	"github.com/katmoor/dmscout/date"
	"github.com/katmoor/dmscout/detect"
	"github.com/katmoor/dmscout/log"
	"github.com/katmoor/dmscout/reel"
	"github.com/katmoor/dmscout/scroll"
	"github.com/katmoor/dmscout/store"
	"github.com/katmoor/dmscout/types"
	"github.com/katmoor/dmscout/utils"
	"github.com/katmoor/dmscout/watch"
)

// ErrClosed is returned by operations started after Close.
var ErrClosed = errors.New("session closed")

// Snapshotter provides parsed snapshots of the live page. The browser
// session implements it; tests substitute fixed documents.
type Snapshotter interface {
	Document(ctx context.Context) (*goquery.Document, error)
	CurrentConversationID(ctx context.Context) (string, error)
	PageURL(ctx context.Context) (string, error)
}

// Session drives detection and scrolling for the open conversation.
type Session struct {
	cfg        *config.Config
	classifier *detect.Classifier
	detector   *reel.Detector
	dates      *date.Resolver
	store      *store.Store
	snap       Snapshotter
	controller *scroll.Controller
	logger     *slog.Logger
	records    chan<- types.ReelRecord
	now        func() time.Time
	growth     chan struct{}

	baseCtx context.Context

	mu           sync.Mutex
	enabled      bool
	conversation string
	dateFilter   *time.Time
	scrolling    bool
	closed       bool

	// producers counts in-flight detection passes so Close can wait for
	// every record send before the channel is closed behind them.
	producers sync.WaitGroup

	detectMu sync.Mutex
}

// Options carries the collaborators a session needs.
type Options struct {
	Config     *config.Config
	Classifier *detect.Classifier
	Detector   *reel.Detector
	Dates      *date.Resolver
	Store      *store.Store
	Snapshot   Snapshotter
	Driver     scroll.Driver
	Logger     *slog.Logger
	// Records, when set, receives every assembled reel record.
	Records chan<- types.ReelRecord
	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
	// Clock is handed to the scroll controller; nil means real time.
	Clock scroll.Clock
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{
		cfg:        opts.Config,
		classifier: opts.Classifier,
		detector:   opts.Detector,
		dates:      opts.Dates,
		store:      opts.Store,
		snap:       opts.Snapshot,
		logger:     opts.Logger,
		records:    opts.Records,
		now:        opts.Now,
		growth:     make(chan struct{}, 1),
		baseCtx:    context.Background(),
	}
	pacer := scroll.NewPacer(opts.Config.Scroll, opts.Now().UnixNano())
	s.controller = scroll.NewController(opts.Config.Scroll, pacer, opts.Driver, s.oldestVisibleDate, opts.Clock)
	s.controller.NotifyGrowth(s.growth)
	return s
}

// Start binds the session to a lifetime context and, when a watcher is
// given, re-runs detection whenever the message list grows.
func (s *Session) Start(ctx context.Context, watcher *watch.Watcher) {
	s.baseCtx = ctx
	if watcher == nil {
		return
	}
	watcher.Subscribe(func(batch []watch.Mutation) {
		for _, m := range batch {
			if m.Kind == watch.KindChildList && m.Added > 0 {
				select {
				case s.growth <- struct{}{}:
				default:
				}
				go s.detectPass(s.baseCtx)
				return
			}
		}
	})
}

// Activate enables DM navigation for the open conversation. The tab
// must be on the configured host; anything else is a precondition
// failure surfaced to the caller, not retried.
func (s *Session) Activate(ctx context.Context) error {
	if s.cfg.Host != "" {
		pageURL, err := s.snap.PageURL(ctx)
		if err != nil {
			return fmt.Errorf("failed to read page location: %w", err)
		}
		u, err := url.Parse(pageURL)
		if err != nil || u.Host != s.cfg.Host {
			return fmt.Errorf("not on %s (current page: %s)", s.cfg.Host, pageURL)
		}
	}
	conv, err := s.snap.CurrentConversationID(ctx)
	if err != nil {
		return fmt.Errorf("failed to identify conversation: %w", err)
	}

	s.mu.Lock()
	s.enabled = true
	s.conversation = conv
	s.mu.Unlock()

	if err := s.store.SetEnabled(conv, true); err != nil {
		log.LoggerFromContext(ctx).Warn("could not persist enabled flag", slog.String("err", err.Error()))
	}
	log.LoggerFromContext(ctx).Info("dm navigation activated", slog.String("conversation", conv))
	return nil
}

// SetDateFilter sets the scroll target date.
func (s *Session) SetDateFilter(ctx context.Context, target time.Time) error {
	s.mu.Lock()
	t := target
	s.dateFilter = &t
	conv := s.conversation
	s.mu.Unlock()

	if err := s.store.SetDateFilter(conv, target); err != nil {
		return fmt.Errorf("failed to persist date filter: %w", err)
	}
	return nil
}

// State assembles the full navigation state.
func (s *Session) State(ctx context.Context) (types.NavigationStatus, error) {
	s.mu.Lock()
	conv := s.conversation
	enabled := s.enabled
	filter := s.dateFilter
	s.mu.Unlock()

	sess := s.controller.Session()
	count, err := s.store.ReelCount(conv)
	if err != nil {
		return types.NavigationStatus{}, err
	}
	lastSync, err := s.store.LastSync(conv)
	if err != nil {
		return types.NavigationStatus{}, err
	}
	return types.NavigationStatus{
		Enabled:      enabled,
		Scrolling:    sess.State == scroll.StateScrolling || sess.State == scroll.StateStuck,
		ScrollState:  string(sess.State),
		ScrollCount:  sess.ScrollCount,
		DateFilter:   filter,
		LastSync:     lastSync,
		Conversation: conv,
		ReelCount:    count,
	}, nil
}

// DetectReels runs one detection pass over the current page and returns
// the assembled records.
func (s *Session) DetectReels(ctx context.Context) ([]types.ReelRecord, error) {
	return s.detectPass(ctx)
}

// StoredReels returns the reels persisted for the conversation.
func (s *Session) StoredReels(ctx context.Context) ([]types.ReelRecord, error) {
	s.mu.Lock()
	conv := s.conversation
	s.mu.Unlock()
	return s.store.Reels(conv)
}

// ScrollToMonthsAgo starts scrolling toward a date the given number of
// months back. It returns immediately; the scroll session runs in the
// background and a detection pass follows it. A second start while one
// is running is rejected.
func (s *Session) ScrollToMonthsAgo(ctx context.Context, months int) error {
	s.mu.Lock()
	if s.scrolling {
		s.mu.Unlock()
		return scroll.ErrAlreadyScrolling
	}
	s.scrolling = true
	target := s.now().AddDate(0, -months, 0)
	s.dateFilter = &target
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.scrolling = false
			s.mu.Unlock()
		}()
		if err := s.controller.Run(s.baseCtx, &target); err != nil {
			s.logger.Warn("scroll session failed", slog.String("err", err.Error()))
			return
		}
		if _, err := s.detectPass(s.baseCtx); err != nil && !errors.Is(err, ErrClosed) {
			s.logger.Warn("post-scroll detection failed", slog.String("err", err.Error()))
		}
	}()
	return nil
}

// StopScrolling asks a running scroll session to terminate.
func (s *Session) StopScrolling() {
	s.controller.Stop()
}

// detectPass snapshots the page and assembles a reel record for every
// message container with a reel attachment. Passes are serialized;
// a pass starting while one runs waits its turn.
func (s *Session) detectPass(ctx context.Context) ([]types.ReelRecord, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.producers.Add(1)
	s.mu.Unlock()
	defer s.producers.Done()

	s.detectMu.Lock()
	defer s.detectMu.Unlock()

	logger := log.LoggerFromContext(ctx)
	doc, err := s.snap.Document(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}
	s.mu.Lock()
	conv := s.conversation
	s.mu.Unlock()

	res := s.classifier.Classify(detect.EntityMessageContainers, doc.Selection)
	if res.None() {
		logger.Debug("no message containers found this pass")
		return nil, nil
	}

	var out []types.ReelRecord
	res.Elements.Each(func(_ int, msg *goquery.Selection) {
		det := s.detector.DetectReel(msg)
		if !det.IsReel {
			return
		}
		container := detect.FindMessageContainer(msg)
		if container == nil {
			container = msg
		}
		rec := types.ReelRecord{
			ID:             det.ReelID,
			Timestamp:      s.messageTime(container),
			ReelURL:        det.ReelURL,
			DOMPath:        detect.DOMPath(container),
			MessageID:      messageID(container),
			ConversationID: conv,
			DetectedAt:     s.now(),
		}
		reaction := reel.DetectReaction(container)
		rec.HasReaction = reaction.HasReaction
		rec.ReactionType = reaction.Type

		if err := s.store.SaveReel(rec); err != nil {
			logger.Warn("could not persist reel", slog.String("id", rec.ID), slog.String("err", err.Error()))
		}
		s.emit(ctx, rec, logger)
		out = append(out, rec)
	})

	if err := s.store.SetLastSync(conv, s.now()); err != nil {
		logger.Warn("could not persist last sync", slog.String("err", err.Error()))
	}
	logger.Info("detection pass finished",
		slog.Int("containers", res.Count()),
		slog.Int("reels", len(out)),
		slog.String("method", string(res.Method)))
	return out, nil
}

// emit hands a record to the output writer. The send blocks so records
// are never lost to a full buffer; the store already holds the record,
// so backpressure from a slow writer is safe. Cancellation is the only
// way a record is dropped, and it is logged.
func (s *Session) emit(ctx context.Context, rec types.ReelRecord, logger *slog.Logger) {
	if s.records == nil {
		return
	}
	select {
	case s.records <- rec:
	case <-ctx.Done():
		logger.Warn("record dropped on shutdown", slog.String("id", rec.ID))
	}
}

// Close stops background work and waits for in-flight detection passes,
// so the records channel can be closed safely once Close returns. The
// session accepts no new passes afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.StopScrolling()
	s.producers.Wait()
}

// messageTime resolves the timestamp element inside a container; the
// zero time means no timestamp resolved.
func (s *Session) messageTime(container *goquery.Selection) time.Time {
	res := s.classifier.Classify(detect.EntityTimestampElements, container)
	if res.None() {
		return time.Time{}
	}
	var resolved time.Time
	res.Elements.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		t, err := s.dates.FromElement(el)
		if err != nil {
			return true
		}
		resolved = t
		return false
	})
	return resolved
}

// oldestVisibleDate is the controller's date probe: the oldest resolved
// timestamp among currently visible messages.
func (s *Session) oldestVisibleDate(ctx context.Context) (*time.Time, error) {
	doc, err := s.snap.Document(ctx)
	if err != nil {
		return nil, err
	}
	res := s.classifier.Classify(detect.EntityTimestampElements, doc.Selection)
	if res.None() {
		return nil, nil
	}
	var oldest *time.Time
	res.Elements.Each(func(_ int, el *goquery.Selection) {
		t, err := s.dates.FromElement(el)
		if err != nil {
			return
		}
		if oldest == nil || t.Before(*oldest) {
			tt := t
			oldest = &tt
		}
	})
	return oldest, nil
}

func messageID(container *goquery.Selection) string {
	for _, attr := range []string{"data-message-id", "data-testid", "id"} {
		if v, ok := container.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	text := strings.TrimSpace(container.Text())
	return "msg-" + utils.ShortHash(goquery.NodeName(container), text)
}
