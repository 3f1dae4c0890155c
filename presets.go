package crimsonfx

import "strings"

// Partial is a sparse RenderParams: nil fields are left alone by Merge.
// Presets and config overrides are expressed this way.
type Partial struct {
	ContrastK        *float64 `toml:"contrast_k,omitempty"`
	BlackClamp       *float64 `toml:"black_clamp,omitempty"`
	GammaOut         *float64 `toml:"gamma_out,omitempty"`
	GrainIntensity   *float64 `toml:"grain_intensity,omitempty"`
	GrainSize        *float64 `toml:"grain_size,omitempty"`
	Vignette         *float64 `toml:"vignette,omitempty"`
	CrimsonGate      *bool    `toml:"crimson_gate,omitempty"`
	CrimsonAmount    *float64 `toml:"crimson_amount,omitempty"`
	ChromaAberration *float64 `toml:"chroma_aberration,omitempty"`
	RecordSafe       *bool    `toml:"record_safe,omitempty"`
	FreezeFrame      *bool    `toml:"freeze_frame,omitempty"`
	PeakBoost        *float64 `toml:"peak_boost,omitempty"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Merge returns p with every non-nil field of pp applied.
func (pp Partial) Merge(p RenderParams) RenderParams {
	set(&p.ContrastK, pp.ContrastK)
	set(&p.BlackClamp, pp.BlackClamp)
	set(&p.GammaOut, pp.GammaOut)
	set(&p.GrainIntensity, pp.GrainIntensity)
	set(&p.GrainSize, pp.GrainSize)
	set(&p.Vignette, pp.Vignette)
	set(&p.CrimsonGate, pp.CrimsonGate)
	set(&p.CrimsonAmount, pp.CrimsonAmount)
	set(&p.ChromaAberration, pp.ChromaAberration)
	set(&p.RecordSafe, pp.RecordSafe)
	set(&p.FreezeFrame, pp.FreezeFrame)
	set(&p.PeakBoost, pp.PeakBoost)
	return p
}

// Preset is a named partial look.
type Preset struct {
	// Name is the stable identifier, Label the display title.
	Name        string
	Label       string
	Description string
	Params      Partial
}

// Apply merges the preset into p and sanitizes the result.
func (pr Preset) Apply(p RenderParams) RenderParams {
	return pr.Params.Merge(p).Sanitize()
}

func num(v float64) *float64 { return &v }
func on(v bool) *bool        { return &v }

var presets = []Preset{
	{
		Name:        "Neutral",
		Label:       "Balanced Neutral",
		Description: "Even tone response with light grain and gentle color bloom.",
		Params: Partial{
			ContrastK:        num(6.5),
			BlackClamp:       num(0.02),
			GammaOut:         num(1.0),
			GrainIntensity:   num(0.12),
			GrainSize:        num(1.2),
			Vignette:         num(0.55),
			CrimsonGate:      on(true),
			CrimsonAmount:    num(0.3),
			ChromaAberration: num(0.004),
		},
	},
	{
		Name:        "Glitch-Lite",
		Label:       "Signal Drift",
		Description: "Reactive bloom and edge split tuned for upbeat edits.",
		Params: Partial{
			ContrastK:        num(9),
			BlackClamp:       num(0.04),
			GammaOut:         num(1.08),
			GrainIntensity:   num(0.22),
			GrainSize:        num(1.6),
			Vignette:         num(0.8),
			CrimsonGate:      on(true),
			CrimsonAmount:    num(0.55),
			ChromaAberration: num(0.012),
		},
	},
	{
		Name:        "Peak Ritual",
		Label:       "Peak Ritual",
		Description: "Maximum bloom glow with heavier grain and vignette falloff.",
		Params: Partial{
			ContrastK:        num(10.5),
			BlackClamp:       num(0.05),
			GammaOut:         num(1.12),
			GrainIntensity:   num(0.32),
			GrainSize:        num(2),
			Vignette:         num(1.1),
			CrimsonGate:      on(true),
			CrimsonAmount:    num(0.9),
			ChromaAberration: num(0.009),
		},
	},
}

// Presets returns the built-in presets in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// LookupPreset finds a preset by name or label, ignoring case.
func LookupPreset(name string) (Preset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) || strings.EqualFold(p.Label, name) {
			return p, true
		}
	}
	return Preset{}, false
}
