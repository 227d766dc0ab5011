package watch

import "time"

// debounceConfig controls mutation batching.
type debounceConfig struct {
	// Window is the debounce time. Default: 250ms.
	Window time.Duration
	// MaxBuffer flushes immediately when this many mutations accumulate.
	// Default: 500.
	MaxBuffer int
}

func (dc *debounceConfig) defaults() {
	if dc.Window <= 0 {
		dc.Window = 250 * time.Millisecond
	}
	if dc.MaxBuffer <= 0 {
		dc.MaxBuffer = 500
	}
}

// debouncer collects mutations and emits them as one batch when the
// window expires or the buffer fills.
type debouncer struct {
	cfg     debounceConfig
	buf     []Mutation
	timer   *time.Timer
	timerCh <-chan time.Time
	flushFn func([]Mutation)
}

func newDebouncer(cfg debounceConfig, flushFn func([]Mutation)) *debouncer {
	cfg.defaults()
	return &debouncer{
		cfg:     cfg,
		buf:     make([]Mutation, 0, cfg.MaxBuffer),
		flushFn: flushFn,
	}
}

// add pushes a mutation into the buffer. Returns true if the buffer
// filled and flushed immediately.
func (d *debouncer) add(m Mutation) bool {
	d.buf = append(d.buf, m)

	if len(d.buf) >= d.cfg.MaxBuffer {
		d.flush()
		return true
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.NewTimer(d.cfg.Window)
	d.timerCh = d.timer.C
	return false
}

// timerC returns the channel that fires when the debounce window expires.
func (d *debouncer) timerC() <-chan time.Time {
	return d.timerCh
}

// flush emits the buffered mutations and resets.
func (d *debouncer) flush() {
	if len(d.buf) == 0 {
		return
	}
	out := make([]Mutation, len(d.buf))
	copy(out, d.buf)
	d.flushFn(out)

	d.buf = d.buf[:0]
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
		d.timerCh = nil
	}
}
