// Package gate implements the crimson gate: a per-tick trigger with a short
// random latch that turns audio energy spikes into a multi-frame glow.
package gate

import "math/rand/v2"

// Trigger thresholds.
const (
	PeakThreshold = 0.35
	RMSThreshold  = 0.2
	RandomChance  = 0.08
	PeakBoostMin  = 0.01
	MinLatch      = 3
	LatchSpread   = 4 // latch lands in [MinLatch, MinLatch+LatchSpread-1]
)

// Input is the per-tick audio and boost snapshot the gate reacts to.
type Input struct {
	Peak      float64
	RMS       float64
	PeakBoost float64
}

// Gate is Idle while its latch is zero and it was not triggered this tick,
// Active otherwise. The zero value is unusable; use New.
type Gate struct {
	latch  int
	active bool
	rand   func() float64
}

// New returns an idle gate. A nil rand uses math/rand/v2.
func New(rand01 func() float64) *Gate {
	if rand01 == nil {
		rand01 = rand.Float64
	}
	return &Gate{rand: rand01}
}

// Step evaluates one tick and reports whether the glow is visible.
//
// Disabled gates never trigger; their latch decays by one per tick.
func (g *Gate) Step(enabled bool, in Input) bool {
	if !enabled {
		g.latch = max(0, g.latch-1)
		g.active = false
		return false
	}

	// One random draw per enabled tick, whether or not audio already fired.
	flicker := g.rand() < RandomChance
	trigger := in.Peak > PeakThreshold || in.RMS > RMSThreshold || flicker || in.PeakBoost > PeakBoostMin

	switch {
	case trigger:
		g.latch = MinLatch + min(LatchSpread-1, max(0, int(g.rand()*LatchSpread)))
		g.active = true
	case g.latch > 0:
		g.latch--
		g.active = true
	default:
		g.active = false
	}
	return g.active
}

// Active reports the result of the last Step.
func (g *Gate) Active() bool { return g.active }

// Latch returns the remaining latch countdown.
func (g *Gate) Latch() int { return g.latch }

// Reset returns the gate to Idle.
func (g *Gate) Reset() {
	g.latch = 0
	g.active = false
}
