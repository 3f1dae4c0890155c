package crimsonfx

import "math"

// RenderParams is the user-facing effect configuration. The engine reads a
// snapshot of it at the start of every tick; nothing mutates it mid-tick.
type RenderParams struct {
	// Tone curve.
	ContrastK  float64 `toml:"contrast_k"`
	BlackClamp float64 `toml:"black_clamp"`
	GammaOut   float64 `toml:"gamma_out"`

	// Film grain.
	GrainIntensity float64 `toml:"grain_intensity"`
	GrainSize      float64 `toml:"grain_size"`

	Vignette float64 `toml:"vignette"`

	// CrimsonGate enables the audio-reactive glow; CrimsonAmount is its
	// base strength.
	CrimsonGate   bool    `toml:"crimson_gate"`
	CrimsonAmount float64 `toml:"crimson_amount"`

	ChromaAberration float64 `toml:"chroma_aberration"`

	// RecordSafe forces deterministic timing and disables freeze frame.
	RecordSafe  bool `toml:"record_safe"`
	FreezeFrame bool `toml:"freeze_frame"`

	// PeakBoost is added to CrimsonAmount and counts as a gate trigger
	// above 0.01. The engine adds its transient punch-in on top.
	PeakBoost float64 `toml:"peak_boost"`
}

// DefaultParams returns the stock look.
func DefaultParams() RenderParams {
	return RenderParams{
		ContrastK:        8.0,
		BlackClamp:       0.03,
		GammaOut:         1.05,
		GrainIntensity:   0.18,
		GrainSize:        1.3,
		Vignette:         0.75,
		CrimsonGate:      true,
		CrimsonAmount:    0.4,
		ChromaAberration: 0.006,
	}
}

type paramRange struct {
	lo, hi float64
}

var (
	contrastRange  = paramRange{1, 12}
	blackRange     = paramRange{0, 0.2}
	gammaRange     = paramRange{0.5, 2}
	grainRange     = paramRange{0, 0.6}
	grainSizeRange = paramRange{0.5, 4}
	vignetteRange  = paramRange{0, 1.5}
	crimsonRange   = paramRange{0, 1.2}
	chromaRange    = paramRange{0, 0.02}
	boostRange     = paramRange{0, 1}
)

// clamp limits v to r. NaN and infinities fall back to def.
func (r paramRange) clamp(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return min(r.hi, max(r.lo, v))
}

// Sanitize returns p with every numeric field clamped to its safe range.
// Non-finite values are replaced by the defaults.
func (p RenderParams) Sanitize() RenderParams {
	d := DefaultParams()
	p.ContrastK = contrastRange.clamp(p.ContrastK, d.ContrastK)
	p.BlackClamp = blackRange.clamp(p.BlackClamp, d.BlackClamp)
	p.GammaOut = gammaRange.clamp(p.GammaOut, d.GammaOut)
	p.GrainIntensity = grainRange.clamp(p.GrainIntensity, d.GrainIntensity)
	p.GrainSize = grainSizeRange.clamp(p.GrainSize, d.GrainSize)
	p.Vignette = vignetteRange.clamp(p.Vignette, d.Vignette)
	p.CrimsonAmount = crimsonRange.clamp(p.CrimsonAmount, d.CrimsonAmount)
	p.ChromaAberration = chromaRange.clamp(p.ChromaAberration, d.ChromaAberration)
	p.PeakBoost = boostRange.clamp(p.PeakBoost, d.PeakBoost)
	return p
}

// FrameContext is the per-tick timing and audio snapshot handed to the
// renderer. Times are milliseconds on the scheduler clock.
type FrameContext struct {
	Time      float64
	Delta     float64
	AudioPeak float64
	AudioRMS  float64
}
