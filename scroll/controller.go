package scroll

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/katmoor/dmscout/config"
	"github.com/katmoor/dmscout/log"
)

// State of the scroll loop.
type State string

const (
	StateIdle      State = "idle"
	StateScrolling State = "scrolling"
	StateStuck     State = "stuck"
	StateStopped   State = "stopped"
)

// Stop reasons recorded on the session when the loop terminates. All of
// them are normal termination, not failures.
const (
	ReasonTargetReached = "target-reached"
	ReasonMaxScrolls    = "max-scrolls"
	ReasonStopRequested = "stop-requested"
	ReasonCanceled      = "canceled"
)

// ErrAlreadyScrolling is returned by Run when a session is in progress.
var ErrAlreadyScrolling = errors.New("scroll session already in progress")

// Driver moves the conversation container. The browser session
// implements it; tests substitute a fake.
type Driver interface {
	// ScrollBy scrolls the container by px (negative = up) over the
	// given animation duration.
	ScrollBy(ctx context.Context, px float64, duration time.Duration) error
	// ScrollTop reports the container's current scroll offset.
	ScrollTop(ctx context.Context) (float64, error)
	// ClickLoadMore clicks a load-more affordance if one is visible and
	// reports whether it did.
	ClickLoadMore(ctx context.Context) (bool, error)
}

// DateProbe reports the oldest message date currently visible, or nil
// when no dated message resolves this iteration.
type DateProbe func(ctx context.Context) (*time.Time, error)

// Clock abstracts waiting so the loop is testable without real pauses.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Session is the ephemeral state of one scroll run. It is reset on
// every start and never persisted.
type Session struct {
	State         State
	ScrollCount   int
	LastScrollTop float64
	Target        *time.Time
	StartedAt     time.Time
	StoppedAt     time.Time
	StopReason    string
}

// Controller runs at most one scroll session at a time.
type Controller struct {
	cfg    config.ScrollConfig
	pacer  *Pacer
	driver Driver
	probe  DateProbe
	clock  Clock

	growth <-chan struct{}

	mu      sync.Mutex
	running bool
	stop    bool
	session Session
}

// NewController wires a controller. probe may be nil when no target
// date applies; clock nil means real time.
func NewController(cfg config.ScrollConfig, pacer *Pacer, driver Driver, probe DateProbe, clock Clock) *Controller {
	if clock == nil {
		clock = realClock{}
	}
	return &Controller{
		cfg:     cfg,
		pacer:   pacer,
		driver:  driver,
		probe:   probe,
		clock:   clock,
		session: Session{State: StateIdle},
	}
}

// NotifyGrowth registers a channel that signals the message list grew.
// When set, a stuck iteration resumes as soon as the signal arrives
// instead of sitting out the full load-more wait.
func (c *Controller) NotifyGrowth(ch <-chan struct{}) {
	c.growth = ch
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Stop asks a running session to terminate. The in-flight gesture
// finishes; no further iterations start. Calling Stop while idle is a
// no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.stop = true
	}
}

// Run scrolls toward target until it is reached, the iteration cap is
// hit, Stop is called or ctx is canceled. It blocks for the whole
// session; a second Run while one is in progress returns
// ErrAlreadyScrolling. Driver errors end the iteration but not the
// session.
func (c *Controller) Run(ctx context.Context, target *time.Time) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyScrolling
	}
	c.running = true
	c.stop = false
	c.session = Session{
		State:     StateScrolling,
		Target:    target,
		StartedAt: c.clock.Now(),
	}
	c.mu.Unlock()

	logger := log.LoggerFromContext(ctx)
	logger.Info("scroll session started",
		slog.String("direction", c.cfg.Direction),
		slog.Int("maxScrolls", c.cfg.MaxScrolls))

	reason := c.loop(ctx, target, logger)

	c.mu.Lock()
	c.session.State = StateStopped
	c.session.StopReason = reason
	c.session.StoppedAt = c.clock.Now()
	count := c.session.ScrollCount
	c.running = false
	c.mu.Unlock()

	logger.Info("scroll session stopped",
		slog.String("reason", reason),
		slog.Int("scrolls", count))
	return nil
}

func (c *Controller) loop(ctx context.Context, target *time.Time, logger *slog.Logger) string {
	prevTop, err := c.driver.ScrollTop(ctx)
	if err != nil {
		logger.Warn("could not read initial scroll offset", slog.String("err", err.Error()))
	}

	for i := 0; i < c.cfg.MaxScrolls; i++ {
		if ctx.Err() != nil {
			return ReasonCanceled
		}
		if c.stopRequested() {
			return ReasonStopRequested
		}
		if c.reachedTarget(ctx, target, logger) {
			return ReasonTargetReached
		}

		delta := c.pacer.Delta()
		if c.cfg.Direction == "up" {
			delta = -delta
		}
		if err := c.driver.ScrollBy(ctx, delta, c.pacer.Duration()); err != nil {
			logger.Warn("scroll gesture failed", slog.String("err", err.Error()))
		}
		if back, ok := c.pacer.Backtrack(math.Abs(delta)); ok {
			if err := c.clock.Sleep(ctx, c.pacer.Pause()/4); err != nil {
				return ReasonCanceled
			}
			if err := c.driver.ScrollBy(ctx, -math.Copysign(back, delta), c.pacer.Duration()/2); err != nil {
				logger.Warn("backtrack gesture failed", slog.String("err", err.Error()))
			}
		}
		if err := c.clock.Sleep(ctx, c.pacer.Pause()); err != nil {
			return ReasonCanceled
		}

		top, err := c.driver.ScrollTop(ctx)
		if err != nil {
			logger.Warn("could not read scroll offset", slog.String("err", err.Error()))
			top = prevTop
		}
		c.mu.Lock()
		c.session.ScrollCount++
		c.session.LastScrollTop = top
		c.mu.Unlock()

		if math.Abs(top-prevTop) < float64(c.cfg.StuckPx) {
			c.handleStuck(ctx, logger)
		}
		prevTop = top
	}
	return ReasonMaxScrolls
}

// handleStuck tries a load-more affordance and waits for content to
// arrive before the loop resumes. Wait expiry means "no new content",
// not an error.
func (c *Controller) handleStuck(ctx context.Context, logger *slog.Logger) {
	c.setState(StateStuck)
	defer c.setState(StateScrolling)

	clicked, err := c.driver.ClickLoadMore(ctx)
	if err != nil {
		logger.Warn("load-more click failed", slog.String("err", err.Error()))
		return
	}
	logger.Debug("scroll position stuck", slog.Bool("loadMoreClicked", clicked))
	if clicked {
		grew := c.waitForGrowth(ctx, time.Duration(c.cfg.LoadMoreWait)*time.Millisecond)
		logger.Debug("load-more wait finished", slog.Bool("newContent", grew))
	}
}

// waitForGrowth waits until the growth signal fires or the wait elapses.
// It reports whether new content arrived in time.
func (c *Controller) waitForGrowth(ctx context.Context, wait time.Duration) bool {
	if c.growth == nil {
		_ = c.clock.Sleep(ctx, wait)
		return false
	}
	expired := make(chan struct{})
	go func() {
		_ = c.clock.Sleep(ctx, wait)
		close(expired)
	}()
	select {
	case <-c.growth:
		return true
	case <-expired:
		return false
	}
}

func (c *Controller) reachedTarget(ctx context.Context, target *time.Time, logger *slog.Logger) bool {
	if target == nil || c.probe == nil {
		return false
	}
	oldest, err := c.probe(ctx)
	if err != nil {
		logger.Warn("date probe failed", slog.String("err", err.Error()))
		return false
	}
	if oldest == nil {
		return false
	}
	return !oldest.After(*target)
}

func (c *Controller) stopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.session.State = s
	c.mu.Unlock()
}
