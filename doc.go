// Package crimsonfx runs a real-time video effect chain on the GPU.
//
// # Overview
//
// Frames from a PixelSource pass through a fixed chain of single-input,
// single-output effects: chromatic aberration, tone curve, film grain,
// vignette and an audio-reactive crimson glow, optionally followed by UV
// warp, scanlines, temporal feedback and bloom threshold. Intermediate
// images ping-pong between two pooled render targets and the last pass
// writes straight to the presentation surface.
//
// # Quick Start
//
//	r, err := crimsonfx.OpenRenderer(crimsonfx.RendererConfig{Headless: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.SetSource(frames)
//
//	bus := audio.NewBus()
//	e, _ := crimsonfx.NewEngine(r, scheduler.New(), bus)
//	defer e.Close()
//	e.Run(ctx)
//
// # Timing
//
// The scheduler measures the time between executed ticks and raises a
// degrade level when frames run long. The engine renders at scale 1, 0.75
// or 0.5 of the viewport depending on that level, and the scheduler skips
// refreshes and adds timing jitter at higher levels. Safe mode, record-safe
// params and recording all pin the level at zero.
//
// # Audio
//
// The crimson glow reacts to the peak and RMS of the last 1024 samples seen
// by an audio.Bus. A bus with nothing connected reads as silence.
package crimsonfx

// Version is the library version.
const Version = "0.1.0"
