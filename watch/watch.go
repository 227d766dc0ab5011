// Package watch observes DOM mutations on the conversation page through
// a MutationObserver injected into the browser, reporting back over a
// runtime binding. Two observers run independently: a lightweight
// structural watcher that is always on, and a heavier attribute/text
// watcher enabled on demand and auto-disabled after an idle window.
package watch

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

//go:embed observer.js
var observerJS string

const bindingName = "__dmscout_mutations"

// Mutation kinds reported by the injected observer.
const (
	KindChildList     = "childList"
	KindAttributes    = "attributes"
	KindCharacterData = "characterData"
)

// Mutation is one DOM change as reported from the page. Only shape
// metadata crosses the binding; node references stay in the browser.
type Mutation struct {
	Kind    string `json:"kind"`
	Tag     string `json:"tag"`
	Added   int    `json:"added,omitempty"`
	Removed int    `json:"removed,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Detail reports whether a mutation came from the on-demand
// attribute/text observer rather than the structural one.
func (m Mutation) Detail() bool {
	return m.Kind == KindAttributes || m.Kind == KindCharacterData
}

// Subscription is a handle on a mutation callback. Unsubscribe is
// synchronous: once it returns the callback will not run again. Do not
// call it from inside the callback.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Config tunes the watcher.
type Config struct {
	// DebounceWindow and DebounceMax batch mutation bursts; zero values
	// pick the defaults.
	DebounceWindow time.Duration
	DebounceMax    int
	// DetailIdle is how long the detail observer may sit without
	// mutations before it is switched off. Default: 30s.
	DetailIdle time.Duration
	Logger     *slog.Logger
}

// Watcher fans debounced mutation batches out to subscribers.
type Watcher struct {
	cfg    Config
	logger *slog.Logger

	raw chan Mutation

	mu         sync.Mutex
	subs       map[int]func([]Mutation)
	nextSub    int
	detailOn   bool
	idleTimer  *time.Timer
	browserCtx context.Context
}

func NewWatcher(cfg Config) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DetailIdle <= 0 {
		cfg.DetailIdle = 30 * time.Second
	}
	return &Watcher{
		cfg:    cfg,
		logger: cfg.Logger,
		raw:    make(chan Mutation, 4096),
		subs:   map[int]func([]Mutation){},
	}
}

// Start registers the binding, injects the structural observer into the
// page and runs the dispatch loop until ctx is canceled. ctx must be a
// chromedp tab context.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	w.browserCtx = ctx
	w.mu.Unlock()

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == bindingName {
			w.Dispatch(e.Payload)
		}
	})
	err := chromedp.Run(ctx,
		runtime.AddBinding(bindingName),
		chromedp.Evaluate(observerJS, nil),
	)
	if err != nil {
		return err
	}
	go w.loop(ctx)
	w.logger.Debug("mutation watcher started")
	return nil
}

// Subscribe registers a callback for debounced mutation batches.
func (w *Watcher) Subscribe(fn func([]Mutation)) *Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = fn
	return &Subscription{cancel: func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}}
}

// EnableDetail switches the attribute/text observer on. It is disabled
// again automatically once no detail mutation arrives for the idle
// window, or explicitly via DisableDetail.
func (w *Watcher) EnableDetail(ctx context.Context) error {
	err := chromedp.Run(ctx, chromedp.Evaluate("window.__dmscout_detail_start()", nil))
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.detailOn = true
	if w.idleTimer != nil {
		w.idleTimer.Stop()
	}
	w.idleTimer = time.AfterFunc(w.cfg.DetailIdle, w.idleExpired)
	w.logger.Debug("detail observer enabled", slog.Duration("idle", w.cfg.DetailIdle))
	return nil
}

// DisableDetail switches the attribute/text observer off.
func (w *Watcher) DisableDetail() {
	w.mu.Lock()
	if !w.detailOn {
		w.mu.Unlock()
		return
	}
	w.detailOn = false
	if w.idleTimer != nil {
		w.idleTimer.Stop()
		w.idleTimer = nil
	}
	ctx := w.browserCtx
	w.mu.Unlock()

	if ctx != nil && ctx.Err() == nil {
		if err := chromedp.Run(ctx, chromedp.Evaluate("window.__dmscout_detail_stop()", nil)); err != nil {
			w.logger.Warn("could not disconnect detail observer", slog.String("err", err.Error()))
		}
	}
	w.logger.Debug("detail observer disabled")
}

// DetailActive reports whether the detail observer is currently on.
func (w *Watcher) DetailActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.detailOn
}

func (w *Watcher) idleExpired() {
	w.logger.Debug("detail observer idle window expired")
	w.DisableDetail()
}

// Dispatch feeds a raw binding payload (a JSON array of mutations) into
// the watcher. Called from the binding listener; exported so sessions
// without a browser can inject synthetic mutations.
func (w *Watcher) Dispatch(payload string) {
	var muts []Mutation
	if err := json.Unmarshal([]byte(payload), &muts); err != nil {
		w.logger.Warn("could not parse mutation payload", slog.String("err", err.Error()))
		return
	}
	for _, m := range muts {
		if m.Detail() {
			w.touchIdle()
		}
		select {
		case w.raw <- m:
		default:
			// backpressure: a full buffer drops the oldest signal value,
			// subscribers only care that something changed
		}
	}
}

func (w *Watcher) touchIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.detailOn && w.idleTimer != nil {
		w.idleTimer.Reset(w.cfg.DetailIdle)
	}
}

func (w *Watcher) loop(ctx context.Context) {
	deb := newDebouncer(debounceConfig{
		Window:    w.cfg.DebounceWindow,
		MaxBuffer: w.cfg.DebounceMax,
	}, w.fanout)

	for {
		select {
		case <-ctx.Done():
			deb.flush()
			return
		case m := <-w.raw:
			deb.add(m)
		case <-deb.timerC():
			deb.flush()
		}
	}
}

// fanout delivers a batch to every subscriber. Callbacks run under the
// watcher lock, which is what makes Unsubscribe synchronous.
func (w *Watcher) fanout(batch []Mutation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, fn := range w.subs {
		fn(batch)
	}
}
