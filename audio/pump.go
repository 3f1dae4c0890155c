package audio

import (
	"context"
	"time"

	"github.com/faiface/beep"
)

// PumpInterval is how often Pump pulls a chunk from its stream.
const PumpInterval = 10 * time.Millisecond

// Pump drains s through b at playback rate and discards the output. It
// stands in for a speaker when no audio device is available, so the bus
// still sees samples paced like real playback.
//
// Pump returns nil when s is exhausted, the stream error if s fails, and
// ctx.Err() on cancellation.
func Pump(ctx context.Context, s beep.Streamer, rate beep.SampleRate, b *Bus) error {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	tapped := b.Tap(s)
	buf := make([][2]float64, max(1, rate.N(PumpInterval)))

	ticker := time.NewTicker(PumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, ok := tapped.Stream(buf); !ok {
			return tapped.Err()
		}
	}
}
