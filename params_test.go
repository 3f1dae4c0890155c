package crimsonfx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 8.0, p.ContrastK)
	assert.Equal(t, 0.03, p.BlackClamp)
	assert.Equal(t, 1.05, p.GammaOut)
	assert.Equal(t, 0.18, p.GrainIntensity)
	assert.Equal(t, 1.3, p.GrainSize)
	assert.Equal(t, 0.75, p.Vignette)
	assert.True(t, p.CrimsonGate)
	assert.Equal(t, 0.4, p.CrimsonAmount)
	assert.Equal(t, 0.006, p.ChromaAberration)
	assert.False(t, p.RecordSafe)
	assert.False(t, p.FreezeFrame)
	assert.Zero(t, p.PeakBoost)
	assert.Equal(t, p, p.Sanitize(), "defaults are already in range")
}

func TestSanitizeClamps(t *testing.T) {
	tests := []struct {
		name string
		edit func(*RenderParams)
		get  func(RenderParams) float64
		want float64
	}{
		{"contrast high", func(p *RenderParams) { p.ContrastK = 40 }, func(p RenderParams) float64 { return p.ContrastK }, 12},
		{"contrast low", func(p *RenderParams) { p.ContrastK = 0 }, func(p RenderParams) float64 { return p.ContrastK }, 1},
		{"black negative", func(p *RenderParams) { p.BlackClamp = -1 }, func(p RenderParams) float64 { return p.BlackClamp }, 0},
		{"gamma high", func(p *RenderParams) { p.GammaOut = 9 }, func(p RenderParams) float64 { return p.GammaOut }, 2},
		{"grain high", func(p *RenderParams) { p.GrainIntensity = 3 }, func(p RenderParams) float64 { return p.GrainIntensity }, 0.6},
		{"grain size low", func(p *RenderParams) { p.GrainSize = 0.1 }, func(p RenderParams) float64 { return p.GrainSize }, 0.5},
		{"vignette high", func(p *RenderParams) { p.Vignette = 2 }, func(p RenderParams) float64 { return p.Vignette }, 1.5},
		{"crimson high", func(p *RenderParams) { p.CrimsonAmount = 5 }, func(p RenderParams) float64 { return p.CrimsonAmount }, 1.2},
		{"chroma high", func(p *RenderParams) { p.ChromaAberration = 1 }, func(p RenderParams) float64 { return p.ChromaAberration }, 0.02},
		{"boost high", func(p *RenderParams) { p.PeakBoost = 3 }, func(p RenderParams) float64 { return p.PeakBoost }, 1},
		{"contrast NaN", func(p *RenderParams) { p.ContrastK = math.NaN() }, func(p RenderParams) float64 { return p.ContrastK }, 8},
		{"gamma +Inf", func(p *RenderParams) { p.GammaOut = math.Inf(1) }, func(p RenderParams) float64 { return p.GammaOut }, 1.05},
		{"boost -Inf", func(p *RenderParams) { p.PeakBoost = math.Inf(-1) }, func(p RenderParams) float64 { return p.PeakBoost }, 0},
		{"in range kept", func(p *RenderParams) { p.Vignette = 1.2 }, func(p RenderParams) float64 { return p.Vignette }, 1.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.edit(&p)
			assert.Equal(t, tt.want, tt.get(p.Sanitize()))
		})
	}
}

func TestSanitizeKeepsFlags(t *testing.T) {
	p := DefaultParams()
	p.CrimsonGate = false
	p.RecordSafe = true
	p.FreezeFrame = true
	got := p.Sanitize()
	assert.False(t, got.CrimsonGate)
	assert.True(t, got.RecordSafe)
	assert.True(t, got.FreezeFrame)
}
