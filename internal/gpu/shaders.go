//go:build !nogpu

package gpu

import _ "embed"

// Embedded WGSL sources. Every pass module is the shared fullscreen prelude
// followed by the pass fragment stage.

//go:embed shaders/fullscreen.wgsl
var fullscreenShaderSource string

//go:embed shaders/chromatic.wgsl
var chromaticShaderSource string

//go:embed shaders/tone.wgsl
var toneShaderSource string

//go:embed shaders/grain.wgsl
var grainShaderSource string

//go:embed shaders/vignette.wgsl
var vignetteShaderSource string

//go:embed shaders/crimson.wgsl
var crimsonShaderSource string

//go:embed shaders/uv_warp.wgsl
var uvWarpShaderSource string

//go:embed shaders/scanline.wgsl
var scanlineShaderSource string

//go:embed shaders/temporal_feedback.wgsl
var temporalFeedbackShaderSource string

//go:embed shaders/bloom_threshold.wgsl
var bloomThresholdShaderSource string

// passSource joins the shared vertex stage with a fragment stage.
func passSource(fragment string) string {
	return fullscreenShaderSource + "\n" + fragment
}
