package audio

import (
	"sync"

	"github.com/faiface/beep"

	dsptime "github.com/cwbudde/algo-dsp/stats/time"
)

// WindowSize is the number of mono samples an envelope covers.
const WindowSize = 1024

// Envelope summarizes recent loudness. Values are usually in [0, 1] but loud
// or clipped input can exceed 1.
type Envelope struct {
	Peak float64
	RMS  float64
}

// Bus is a ring of the last WindowSize mono samples. It is safe for
// concurrent use: the audio goroutine writes while the render tick reads.
type Bus struct {
	mu        sync.Mutex
	ring      [WindowSize]float64
	window    []float64
	pos       int
	gain      float64
	connected bool
	gen       uint64
}

// NewBus returns a disconnected bus with unity gain.
func NewBus() *Bus {
	return &Bus{gain: 1, window: make([]float64, WindowSize)}
}

// SetGain scales samples written from now on.
func (b *Bus) SetGain(g float64) {
	b.mu.Lock()
	b.gain = g
	b.mu.Unlock()
}

// Write mixes stereo frames down to mono and appends them to the window.
func (b *Bus) Write(samples [][2]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.write(samples)
}

func (b *Bus) write(samples [][2]float64) {
	b.connected = true
	for _, s := range samples {
		b.ring[b.pos] = (s[0] + s[1]) * 0.5 * b.gain
		b.pos = (b.pos + 1) % WindowSize
	}
}

// Tap returns a streamer that behaves like s and copies every frame it
// produces into the bus. Disconnect detaches all taps handed out before it.
func (b *Bus) Tap(s beep.Streamer) beep.Streamer {
	b.mu.Lock()
	gen := b.gen
	b.mu.Unlock()
	return &tap{bus: b, src: s, gen: gen}
}

// Disconnect detaches existing taps and clears the window, so Envelope
// reports silence until new samples arrive.
func (b *Bus) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	b.connected = false
	b.ring = [WindowSize]float64{}
	b.pos = 0
}

// Connected reports whether any samples arrived since the last Disconnect.
func (b *Bus) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Envelope returns peak and RMS over the current window. A bus that never
// received samples reports zero.
func (b *Bus) Envelope() Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return Envelope{}
	}
	// Oldest sample first.
	n := copy(b.window, b.ring[b.pos:])
	copy(b.window[n:], b.ring[:b.pos])
	return Envelope{
		Peak: dsptime.Peak(b.window),
		RMS:  dsptime.RMS(b.window),
	}
}

type tap struct {
	bus *Bus
	src beep.Streamer
	gen uint64
}

func (t *tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.src.Stream(samples)
	if n > 0 {
		t.bus.mu.Lock()
		if t.bus.gen == t.gen {
			t.bus.write(samples[:n])
		}
		t.bus.mu.Unlock()
	}
	return n, ok
}

func (t *tap) Err() error { return t.src.Err() }
