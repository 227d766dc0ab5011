package scroll

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/katmoor/dmscout/config"
)

func testScrollConfig() config.ScrollConfig {
	return config.ScrollConfig{
		MinAmount:     400,
		MaxAmount:     900,
		MinDurationMS: 600,
		MaxDurationMS: 1400,
		MinPauseMS:    800,
		MaxPauseMS:    2500,
		MaxScrolls:    8,
		StuckPx:       10,
		LoadMoreWait:  4000,
		Direction:     "up",
	}
}

// fakeClock advances a virtual time instead of sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

// fakeDriver simulates a container with a finite scrollback. Once top
// reaches 0 the position stops moving, like a fully loaded history.
type fakeDriver struct {
	top            float64
	scrolls        int
	loadMoreAvail  bool
	loadMoreClicks int
	onScroll       func()
}

func (d *fakeDriver) ScrollBy(_ context.Context, px float64, _ time.Duration) error {
	d.scrolls++
	d.top += px
	if d.top < 0 {
		d.top = 0
	}
	if d.onScroll != nil {
		d.onScroll()
	}
	return nil
}

func (d *fakeDriver) ScrollTop(_ context.Context) (float64, error) { return d.top, nil }

func (d *fakeDriver) ClickLoadMore(_ context.Context) (bool, error) {
	d.loadMoreClicks++
	return d.loadMoreAvail, nil
}

func TestRunStopsWithinMaxScrolls(t *testing.T) {
	cfg := testScrollConfig()
	driver := &fakeDriver{top: 1e6}
	// the target is older than anything the probe ever reports, so only
	// the iteration cap can end the session
	target := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	probe := func(context.Context) (*time.Time, error) {
		d := time.Date(2024, 4, 18, 0, 0, 0, 0, time.UTC)
		return &d, nil
	}
	c := NewController(cfg, NewPacer(cfg, 1), driver, probe, &fakeClock{})

	if err := c.Run(context.Background(), &target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := c.Session()
	if s.State != StateStopped {
		t.Fatalf("expected state %q, got %q", StateStopped, s.State)
	}
	if s.StopReason != ReasonMaxScrolls {
		t.Fatalf("expected reason %q, got %q", ReasonMaxScrolls, s.StopReason)
	}
	if s.ScrollCount != cfg.MaxScrolls {
		t.Fatalf("expected %d iterations, got %d", cfg.MaxScrolls, s.ScrollCount)
	}
}

func TestRunStopsWhenTargetReached(t *testing.T) {
	cfg := testScrollConfig()
	driver := &fakeDriver{top: 1e6}
	target := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	// each iteration the oldest visible message moves a month back
	visible := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	probe := func(context.Context) (*time.Time, error) {
		d := visible
		visible = visible.AddDate(0, -1, 0)
		return &d, nil
	}
	c := NewController(cfg, NewPacer(cfg, 1), driver, probe, &fakeClock{})

	if err := c.Run(context.Background(), &target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := c.Session()
	if s.StopReason != ReasonTargetReached {
		t.Fatalf("expected reason %q, got %q", ReasonTargetReached, s.StopReason)
	}
	if s.ScrollCount >= cfg.MaxScrolls {
		t.Fatal("target should be reached before the iteration cap")
	}
}

func TestRunClicksLoadMoreWhenStuck(t *testing.T) {
	cfg := testScrollConfig()
	cfg.MaxScrolls = 3
	// top pinned at 0 from the start, every iteration is stuck
	driver := &fakeDriver{top: 0}
	c := NewController(cfg, NewPacer(cfg, 1), driver, nil, &fakeClock{})

	if err := c.Run(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driver.loadMoreClicks != cfg.MaxScrolls {
		t.Fatalf("expected %d load-more attempts, got %d", cfg.MaxScrolls, driver.loadMoreClicks)
	}
	if got := c.Session().State; got != StateStopped {
		t.Fatalf("expected state %q, got %q", StateStopped, got)
	}
}

// loadMoreClock blocks load-more waits indefinitely so only the growth
// signal can resume a stuck iteration.
type loadMoreClock struct {
	fakeClock
	wait time.Duration
}

func (c *loadMoreClock) Sleep(ctx context.Context, d time.Duration) error {
	if d == c.wait {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.fakeClock.Sleep(ctx, d)
}

func TestStuckResumesOnGrowthSignal(t *testing.T) {
	cfg := testScrollConfig()
	cfg.MaxScrolls = 3
	driver := &fakeDriver{top: 0, loadMoreAvail: true}
	growth := make(chan struct{}, cfg.MaxScrolls)
	for i := 0; i < cfg.MaxScrolls; i++ {
		growth <- struct{}{}
	}
	clock := &loadMoreClock{wait: time.Duration(cfg.LoadMoreWait) * time.Millisecond}
	c := NewController(cfg, NewPacer(cfg, 1), driver, nil, clock)
	c.NotifyGrowth(growth)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Run(ctx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := c.Session()
	if s.StopReason != ReasonMaxScrolls {
		t.Fatalf("expected reason %q, got %q (growth signal must resume the wait)", ReasonMaxScrolls, s.StopReason)
	}
	if driver.loadMoreClicks != cfg.MaxScrolls {
		t.Fatalf("expected %d load-more attempts, got %d", cfg.MaxScrolls, driver.loadMoreClicks)
	}
}

func TestStopEndsTheSession(t *testing.T) {
	cfg := testScrollConfig()
	driver := &fakeDriver{top: 1e6}
	c := NewController(cfg, NewPacer(cfg, 1), driver, nil, &fakeClock{})
	driver.onScroll = func() { c.Stop() }

	if err := c.Run(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := c.Session()
	if s.StopReason != ReasonStopRequested {
		t.Fatalf("expected reason %q, got %q", ReasonStopRequested, s.StopReason)
	}
	if s.ScrollCount > 2 {
		t.Fatalf("stop must end the loop promptly, ran %d iterations", s.ScrollCount)
	}
}

func TestConcurrentRunIsRejected(t *testing.T) {
	cfg := testScrollConfig()
	driver := &fakeDriver{top: 1e6}
	c := NewController(cfg, NewPacer(cfg, 1), driver, nil, &fakeClock{})

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	driver.onScroll = func() {
		once.Do(func() { close(started) })
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), nil) }()
	<-started

	if err := c.Run(context.Background(), nil); err != ErrAlreadyScrolling {
		t.Fatalf("expected ErrAlreadyScrolling, got %v", err)
	}
	c.Stop()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error from first run: %v", err)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	cfg := testScrollConfig()
	driver := &fakeDriver{top: 1e6}
	c := NewController(cfg, NewPacer(cfg, 1), driver, nil, &fakeClock{})

	ctx, cancel := context.WithCancel(context.Background())
	driver.onScroll = func() { cancel() }

	if err := c.Run(ctx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Session().StopReason; got != ReasonCanceled {
		t.Fatalf("expected reason %q, got %q", ReasonCanceled, got)
	}
}

func TestPacerStaysWithinConfiguredBands(t *testing.T) {
	cfg := testScrollConfig()
	p := NewPacer(cfg, 42)
	for i := 0; i < 500; i++ {
		if d := p.Delta(); d < float64(cfg.MinAmount)*variationMin || d > float64(cfg.MaxAmount)*variationMax {
			t.Fatalf("delta %v outside band", d)
		}
		if d := p.Duration(); d < time.Duration(cfg.MinDurationMS)*time.Millisecond || d > time.Duration(cfg.MaxDurationMS)*time.Millisecond {
			t.Fatalf("duration %v outside band", d)
		}
		if d := p.Pause(); d < time.Duration(cfg.MinPauseMS)*time.Millisecond || d > time.Duration(cfg.MaxPauseMS)*time.Millisecond {
			t.Fatalf("pause %v outside band", d)
		}
		if back, ok := p.Backtrack(600); ok && (back < 600*backtrackFracMin || back > 600*backtrackFracMax) {
			t.Fatalf("backtrack %v outside band", back)
		}
	}
}

func TestEaseOutCubic(t *testing.T) {
	if EaseOutCubic(0) != 0 || EaseOutCubic(1) != 1 {
		t.Fatal("easing must be anchored at 0 and 1")
	}
	if EaseOutCubic(0.5) <= 0.5 {
		t.Fatal("ease-out must be ahead of linear at the midpoint")
	}
	prev := 0.0
	for t2 := 0.1; t2 <= 1.0; t2 += 0.1 {
		v := EaseOutCubic(t2)
		if v < prev {
			t.Fatalf("easing must be monotonic, %v < %v at t=%v", v, prev, t2)
		}
		prev = v
	}
}
