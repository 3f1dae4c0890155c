package crimsonfx

import (
	"fmt"
	"math"

	"github.com/gogpu/crimsonfx/audio"
)

// EnvelopeEpsilon is the smallest envelope change telemetry reports. Smaller
// wobbles keep the previous value so displays do not flicker.
const EnvelopeEpsilon = 0.01

// fpsSmoothing is the weight of the newest sample in the FPS average.
const fpsSmoothing = 0.1

// Telemetry is a snapshot of engine state for diagnostics and HUDs.
type Telemetry struct {
	Ticks        uint64
	DegradeLevel int
	SafeMode     bool
	Recording    bool

	Envelope   audio.Envelope
	GateActive bool

	RenderWidth   int
	RenderHeight  int
	DisplayWidth  int
	DisplayHeight int

	// FPS is an exponential moving average over executed tick deltas.
	FPS float64
}

func (t Telemetry) String() string {
	return fmt.Sprintf("tick %d, %.1f fps, level %d, render %dx%d, display %dx%d, peak %.2f rms %.2f, gate %t",
		t.Ticks, t.FPS, t.DegradeLevel, t.RenderWidth, t.RenderHeight,
		t.DisplayWidth, t.DisplayHeight, t.Envelope.Peak, t.Envelope.RMS, t.GateActive)
}

// envelopeMoved reports whether next differs from prev by more than
// EnvelopeEpsilon in either component.
func envelopeMoved(prev, next audio.Envelope) bool {
	return math.Abs(prev.Peak-next.Peak) > EnvelopeEpsilon ||
		math.Abs(prev.RMS-next.RMS) > EnvelopeEpsilon
}

type fpsMeter struct {
	value  float64
	primed bool
}

// observe folds one tick delta in milliseconds into the average.
// Non-positive deltas carry no rate information and are ignored.
func (m *fpsMeter) observe(deltaMs float64) float64 {
	if deltaMs <= 0 || math.IsNaN(deltaMs) || math.IsInf(deltaMs, 0) {
		return m.value
	}
	fps := 1000 / deltaMs
	if !m.primed {
		m.value, m.primed = fps, true
		return m.value
	}
	m.value += fpsSmoothing * (fps - m.value)
	return m.value
}
