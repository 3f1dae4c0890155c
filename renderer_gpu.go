//go:build !nogpu

package crimsonfx

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/crimsonfx/internal/gpu"
)

func init() {
	registerLoggerHook(gpu.SetLogger)
}

// PixelSource is a continuously updating frame producer. Frame is only
// called after Ready reports true.
type PixelSource interface {
	Ready() bool
	Frame() image.Image
}

// RendererConfig selects the device and surface a GPURenderer draws with.
type RendererConfig struct {
	// Provider shares the device of a host application. When nil the
	// renderer opens its own device.
	Provider gpucontext.DeviceProvider

	// Headless uses the noop backend; nothing reaches a screen.
	Headless bool

	// DisplayHandle and WindowHandle identify a native window to present
	// to. When WindowHandle is zero the final pass renders offscreen.
	DisplayHandle uintptr
	WindowHandle  uintptr

	// Width and Height are the initial render size. Zero means 1280x720.
	Width  int
	Height int

	// Advanced appends the optional passes to the chain.
	Advanced bool
}

// RenderStats counts GPU work since the renderer was created.
type RenderStats struct {
	Frames  uint64
	Uploads uint64
	Skipped uint64

	// Pool is a one-line summary of the intermediate target pool.
	Pool string

	// FrameHitRate is the share of sequence frames served pre-scaled.
	FrameHitRate float64
}

// GPURenderer is the Renderer backed by the wgpu render graph.
type GPURenderer struct {
	ctx   *gpu.Context
	graph *gpu.RenderGraph
}

// OpenRenderer acquires a device and builds the render graph. Any failure
// is fatal: there is no software fallback.
func OpenRenderer(cfg RendererConfig) (*GPURenderer, error) {
	var (
		ctx *gpu.Context
		err error
	)
	if cfg.Provider != nil {
		ctx, err = gpu.OpenShared(cfg.Provider)
	} else {
		ctx, err = gpu.Open(gpu.ContextConfig{Headless: cfg.Headless})
	}
	if err != nil {
		return nil, fmt.Errorf("crimsonfx: open gpu: %w", err)
	}

	var surface gpu.Surface
	if cfg.WindowHandle != 0 {
		ws, err := ctx.CreateWindowSurface(cfg.DisplayHandle, cfg.WindowHandle)
		if err != nil {
			ctx.Close()
			return nil, fmt.Errorf("crimsonfx: %w", err)
		}
		surface = ws
	} else {
		surface = gpu.NewOffscreenSurface(ctx.SurfaceFormat())
	}

	graph, err := gpu.NewRenderGraph(ctx, surface, gpu.GraphConfig{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Advanced: cfg.Advanced || gpu.AdvancedDefault(),
	})
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("crimsonfx: build render graph: %w", err)
	}
	Logger().Info("renderer ready", "adapter", ctx.AdapterName(), "passes", graph.PassNames())
	return &GPURenderer{ctx: ctx, graph: graph}, nil
}

// SetSource sets the frame producer. Rendering is a no-op until it is ready.
func (r *GPURenderer) SetSource(src PixelSource) {
	if src == nil {
		r.graph.SetSource(nil)
		return
	}
	r.graph.SetSource(src)
}

// Resize implements Renderer.
func (r *GPURenderer) Resize(renderW, renderH, displayW, displayH int) error {
	return r.graph.Resize(renderW, renderH, displayW, displayH)
}

// Render implements Renderer.
func (r *GPURenderer) Render(p RenderParams, fc FrameContext) error {
	err := r.graph.Render(gpu.Params{
		ContrastK:        p.ContrastK,
		BlackClamp:       p.BlackClamp,
		GammaOut:         p.GammaOut,
		GrainIntensity:   p.GrainIntensity,
		GrainSize:        p.GrainSize,
		Vignette:         p.Vignette,
		CrimsonGate:      p.CrimsonGate,
		CrimsonAmount:    p.CrimsonAmount,
		ChromaAberration: p.ChromaAberration,
		FreezeFrame:      p.FreezeFrame,
		PeakBoost:        p.PeakBoost,
	}, gpu.FrameContext{
		Time:      fc.Time,
		Delta:     fc.Delta,
		AudioPeak: fc.AudioPeak,
		AudioRMS:  fc.AudioRMS,
	})
	if errors.Is(err, gpu.ErrGraphDestroyed) {
		return ErrEngineClosed
	}
	return err
}

// GateActive implements Renderer.
func (r *GPURenderer) GateActive() bool { return r.graph.GateActive() }

// PassNames lists the passes in execution order.
func (r *GPURenderer) PassNames() []string { return r.graph.PassNames() }

// Stats returns GPU counters. Like Render it must not run concurrently with
// other renderer calls.
func (r *GPURenderer) Stats() RenderStats {
	s := r.graph.Stats()
	return RenderStats{
		Frames:  s.Frames,
		Uploads: s.Uploads,
		Skipped: s.Skipped,
		Pool:    s.Pool.String(),

		FrameHitRate: s.FrameCache.HitRate(),
	}
}

// Destroy releases the graph, then the device if the renderer opened it.
func (r *GPURenderer) Destroy() {
	r.graph.Destroy()
	r.ctx.Close()
}
