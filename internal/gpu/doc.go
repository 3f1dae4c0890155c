//go:build !nogpu

// Package gpu implements the real-time effect pipeline on top of the
// gogpu/wgpu hardware abstraction layer.
//
// # Architecture Overview
//
// A frame moves through the package like this:
//
//	PixelSource -> source texture -> pass 1 -> ping -> pass 2 -> pong -> ... -> Surface
//
// Key components:
//
//   - Context: owns (or borrows) the hal.Device and hal.Queue
//   - Pool: reusable offscreen render targets keyed by exact size
//   - RenderGraph: source texture, ping/pong targets and the ordered pass list
//   - Pass: one WGSL fragment program turning one input texture into one output
//   - Surface: where the last pass lands (window swapchain or offscreen texture)
//
// # Pass Order
//
// The standard chain is fixed:
//
//  1. chromatic aberration
//  2. tone curve (contrast, black clamp, output gamma)
//  3. film grain
//  4. vignette
//  5. crimson bloom gate
//
// When GraphConfig.Advanced is set (or the crimsonfx_advanced build tag is
// present) four more passes follow: uv warp, scanline glitch, temporal
// feedback and bloom threshold.
//
// # Threading
//
// A RenderGraph is not safe for concurrent use. The scheduler goroutine is
// expected to be its only caller between construction and Destroy.
//
// # Build Tags
//
// The package is excluded with the nogpu build tag, matching the rest of the
// GPU code in this module.
package gpu
