package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constRand(v float64) func() float64 {
	return func() float64 { return v }
}

// activeRun counts consecutive active ticks after the trigger tick.
func activeRun(g *Gate, limit int) int {
	n := 0
	for range limit {
		if !g.Step(true, Input{}) {
			break
		}
		n++
	}
	return n
}

func TestGateStaysIdleWithoutTriggers(t *testing.T) {
	g := New(constRand(RandomChance))
	for range 1000 {
		require.False(t, g.Step(true, Input{Peak: 0.3, RMS: 0.1}))
	}
	assert.Zero(t, g.Latch())
	assert.False(t, g.Active())
}

func TestGatePeakLatchBounds(t *testing.T) {
	tests := []struct {
		name string
		rand float64
		want int
	}{
		{"low draw", 0.08, 3},
		{"mid draw", 0.5, 5},
		{"high draw", 0.999, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(constRand(tt.rand))
			require.True(t, g.Step(true, Input{Peak: 0.5}))
			assert.Equal(t, tt.want, g.Latch())

			run := activeRun(g, 20)
			assert.Equal(t, tt.want, run)
			assert.GreaterOrEqual(t, run, 3)
			assert.LessOrEqual(t, run, 6)
			assert.False(t, g.Active())
		})
	}
}

func TestGateTriggers(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		rand float64
		want bool
	}{
		{"peak above", Input{Peak: 0.36}, 0.5, true},
		{"peak at threshold", Input{Peak: 0.35}, 0.5, false},
		{"rms above", Input{RMS: 0.21}, 0.5, true},
		{"rms at threshold", Input{RMS: 0.2}, 0.5, false},
		{"boost above", Input{PeakBoost: 0.02}, 0.5, true},
		{"boost at threshold", Input{PeakBoost: 0.01}, 0.5, false},
		{"random flicker", Input{}, 0.079, true},
		{"loud over unity", Input{Peak: 1.4, RMS: 1.1}, 0.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(constRand(tt.rand))
			assert.Equal(t, tt.want, g.Step(true, tt.in))
		})
	}
}

func TestGateRetriggerResetsLatch(t *testing.T) {
	g := New(constRand(0.99))
	require.True(t, g.Step(true, Input{Peak: 1}))
	require.True(t, g.Step(true, Input{}))
	require.True(t, g.Step(true, Input{}))
	assert.Equal(t, 4, g.Latch())

	require.True(t, g.Step(true, Input{RMS: 0.5}))
	assert.Equal(t, 6, g.Latch())
}

func TestGateDisabledDecaysWithoutFiring(t *testing.T) {
	g := New(constRand(0))
	require.True(t, g.Step(true, Input{Peak: 1}))
	require.Equal(t, 3, g.Latch())

	assert.False(t, g.Step(false, Input{Peak: 1, PeakBoost: 1}))
	assert.Equal(t, 2, g.Latch())
	assert.False(t, g.Step(false, Input{}))
	assert.False(t, g.Step(false, Input{}))
	assert.False(t, g.Step(false, Input{}))
	assert.Zero(t, g.Latch())
	assert.False(t, g.Active())
}

func TestGateReset(t *testing.T) {
	g := New(constRand(0.5))
	g.Step(true, Input{Peak: 1})
	g.Reset()
	assert.Zero(t, g.Latch())
	assert.False(t, g.Active())
}

func TestGateDefaultRand(t *testing.T) {
	g := New(nil)
	require.NotNil(t, g.rand)
	fired := 0
	for range 2000 {
		if g.Step(true, Input{}) {
			fired++
		}
	}
	// Flicker alone keeps the gate lit part of the time, never all of it.
	assert.Positive(t, fired)
	assert.Less(t, fired, 2000)
}
