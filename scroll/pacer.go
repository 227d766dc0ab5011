// Package scroll paces synthetic scroll gestures through a conversation
// container. The pacer is pure randomized arithmetic; the controller is
// a small state machine around it driven through injectable driver and
// clock abstractions so the loop can be tested without a browser or
// wall-clock waits.
package scroll

import (
	"math/rand"
	"time"

	"github.com/katmoor/dmscout/config"
)

// natural variation applied on top of the uniform base amount, so two
// scrolls with the same base still differ slightly.
const (
	variationMin = 0.85
	variationMax = 1.15
)

// Occasional short scrolls in the opposite direction. The probability is
// fixed per pacer within this band; the reversal covers a fraction of
// the preceding delta.
const (
	backtrackProbMin = 0.07
	backtrackProbMax = 0.18
	backtrackFracMin = 0.2
	backtrackFracMax = 0.4
)

// Pacer computes randomized scroll amounts, durations and pauses.
type Pacer struct {
	cfg           config.ScrollConfig
	rnd           *rand.Rand
	backtrackProb float64
}

// NewPacer seeds a pacer. Pass a fixed seed in tests for reproducible
// sequences.
func NewPacer(cfg config.ScrollConfig, seed int64) *Pacer {
	rnd := rand.New(rand.NewSource(seed))
	return &Pacer{
		cfg:           cfg,
		rnd:           rnd,
		backtrackProb: uniform(rnd, backtrackProbMin, backtrackProbMax),
	}
}

// Delta returns the next scroll distance in pixels, always positive;
// the controller applies direction.
func (p *Pacer) Delta() float64 {
	base := uniform(p.rnd, float64(p.cfg.MinAmount), float64(p.cfg.MaxAmount))
	return base * uniform(p.rnd, variationMin, variationMax)
}

// Duration returns how long the next scroll animation should take.
func (p *Pacer) Duration() time.Duration {
	ms := uniform(p.rnd, float64(p.cfg.MinDurationMS), float64(p.cfg.MaxDurationMS))
	return time.Duration(ms) * time.Millisecond
}

// Pause returns the idle time between two scroll gestures.
func (p *Pacer) Pause() time.Duration {
	ms := uniform(p.rnd, float64(p.cfg.MinPauseMS), float64(p.cfg.MaxPauseMS))
	return time.Duration(ms) * time.Millisecond
}

// Backtrack decides whether the gesture that just covered delta pixels
// should be followed by a small reversal, and how far back it goes.
func (p *Pacer) Backtrack(delta float64) (float64, bool) {
	if p.rnd.Float64() >= p.backtrackProb {
		return 0, false
	}
	return delta * uniform(p.rnd, backtrackFracMin, backtrackFracMax), true
}

// EaseOutCubic maps linear progress t in [0,1] onto a curve that starts
// fast and decelerates, the profile of a flicked trackpad.
func EaseOutCubic(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	u := 1 - t
	return 1 - u*u*u
}

func uniform(rnd *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rnd.Float64()*(max-min)
}
