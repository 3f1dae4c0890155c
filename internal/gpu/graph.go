//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/crimsonfx/internal/cache"
	"github.com/gogpu/crimsonfx/internal/gate"
)

// Initial render size used until the host calls Resize.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// AdvancedDefault reports whether advanced passes are on when the host does
// not choose. It follows the crimsonfx_advanced build tag.
func AdvancedDefault() bool { return advancedDefault }

// GraphConfig configures a RenderGraph.
type GraphConfig struct {
	// Width and Height are the initial render size. Zero means 1280x720.
	Width  int
	Height int

	// Advanced appends the uv warp, scanline, temporal feedback and bloom
	// threshold passes after the standard chain.
	Advanced bool

	// GateRand is the random source of the crimson gate. Nil means
	// math/rand/v2.
	GateRand func() float64
}

// DefaultGraphConfig returns the configuration used by the host.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{Width: DefaultWidth, Height: DefaultHeight, Advanced: advancedDefault}
}

// GraphStats counts what Render did over the graph lifetime.
type GraphStats struct {
	// Frames is the number of submitted frames.
	Frames uint64

	// Uploads is the number of source frames copied to the GPU.
	Uploads uint64

	// Skipped counts frames dropped because the surface had no image.
	Skipped uint64

	// Pool is the occupancy of the intermediate target pool.
	Pool PoolStats

	// FrameCache counts hits on scaled sequence frames.
	FrameCache cache.Stats
}

// submission is a command buffer the GPU may still be executing.
type submission struct {
	cmd   hal.CommandBuffer
	index uint64
}

// RenderGraph runs the pass chain once per tick. It owns the source texture,
// the target pool with its two ping/pong targets, every pass program and the
// shared quad. Pass i reads the output of pass i-1 (pass 0 reads the source)
// and writes to targets[i%2], except the last pass which writes to the
// surface.
//
// RenderGraph is not safe for concurrent use; a single render goroutine
// drives it.
type RenderGraph struct {
	device  hal.Device
	queue   hal.Queue
	surface Surface

	layout  *passLayout
	quad    *fullscreenQuad
	pool    *Pool
	src     *sourceTexture
	targets [2]*RenderTarget
	passes  []*pass

	gate   *gate.Gate
	source PixelSource

	width, height int
	gateActive    bool

	inFlight []submission
	stats    GraphStats

	// stale is set while a Resize has not completed. Targets or the source
	// texture may be freed and bind groups may point at dead views.
	stale     bool
	destroyed bool
}

// NewRenderGraph builds every GPU object the chain needs and configures the
// surface at the initial render size. On failure everything built so far is
// released and the error is returned.
func NewRenderGraph(ctx *Context, surface Surface, cfg GraphConfig) (*RenderGraph, error) {
	if ctx == nil || ctx.Device() == nil || ctx.Queue() == nil {
		return nil, ErrNoAdapter
	}
	if surface == nil {
		return nil, errors.New("gpu: surface is nil")
	}
	if cfg.Width == 0 && cfg.Height == 0 {
		cfg.Width, cfg.Height = DefaultWidth, DefaultHeight
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, cfg.Width, cfg.Height)
	}

	g := &RenderGraph{
		device:  ctx.Device(),
		queue:   ctx.Queue(),
		surface: surface,
		gate:    gate.New(cfg.GateRand),
		width:   cfg.Width,
		height:  cfg.Height,
	}
	if err := g.build(cfg); err != nil {
		g.release()
		return nil, err
	}
	slogger().Info("render graph ready",
		"width", g.width, "height", g.height,
		"passes", len(g.passes), "surface_format", surface.Format())
	return g, nil
}

func (g *RenderGraph) build(cfg GraphConfig) error {
	if err := g.surface.Configure(g.device, g.width, g.height); err != nil {
		return err
	}

	quad, err := newFullscreenQuad(g.device, g.queue)
	if err != nil {
		return err
	}
	g.quad = quad

	layout, err := newPassLayout(g.device)
	if err != nil {
		return err
	}
	g.layout = layout

	src, err := newSourceTexture(g.device, g.width, g.height)
	if err != nil {
		return err
	}
	g.src = src

	g.pool = NewPool(g.device, offscreenFormat)
	for i := range g.targets {
		t, err := g.pool.Acquire(g.width, g.height)
		if err != nil {
			return err
		}
		g.targets[i] = t
	}

	kinds := standardPasses()
	if cfg.Advanced {
		kinds = append(kinds, advancedPasses()...)
	}
	for i, kind := range kinds {
		format := offscreenFormat
		if i == len(kinds)-1 {
			format = g.surface.Format()
		}
		p, err := newPass(g.device, g.layout, kind, format)
		if err != nil {
			return err
		}
		g.passes = append(g.passes, p)
	}
	return g.bindPasses()
}

// bindPasses points every pass at its input view. Views change whenever the
// source or the targets are reallocated.
func (g *RenderGraph) bindPasses() error {
	for i, p := range g.passes {
		input := g.src.binding.view
		if i > 0 {
			input = g.targets[(i-1)%2].View()
		}
		if err := p.bind(g.device, g.layout, input); err != nil {
			return err
		}
	}
	return nil
}

// SetSource records the frame producer. It does not touch the GPU.
func (g *RenderGraph) SetSource(src PixelSource) {
	g.source = src
	if g.src != nil {
		g.src.frames.Clear()
	}
}

// Resize changes the render size and the display size. An unchanged render
// size only updates the display size and never reallocates. A failed Resize
// leaves the graph stale: Render refuses to run and the next Resize rebuilds
// every size dependent object, whatever size it asks for.
func (g *RenderGraph) Resize(renderW, renderH, displayW, displayH int) error {
	if g.destroyed {
		return ErrGraphDestroyed
	}
	if renderW <= 0 || renderH <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, renderW, renderH)
	}
	if !g.stale && renderW == g.width && renderH == g.height {
		if w, h := g.surface.DisplaySize(); w != displayW || h != displayH {
			g.surface.SetDisplaySize(displayW, displayH)
		}
		return nil
	}

	// Old views are referenced by in-flight bind groups.
	g.waitIdle()
	g.stale = true

	if err := g.src.resize(g.device, renderW, renderH); err != nil {
		return err
	}
	for _, t := range g.targets {
		if err := g.pool.Resize(t, renderW, renderH); err != nil {
			return err
		}
	}
	if err := g.surface.Configure(g.device, renderW, renderH); err != nil {
		return err
	}
	g.width, g.height = renderW, renderH
	g.surface.SetDisplaySize(displayW, displayH)
	if err := g.bindPasses(); err != nil {
		return err
	}
	g.stale = false
	slogger().Debug("render graph resized",
		"width", renderW, "height", renderH,
		"display_width", displayW, "display_height", displayH)
	return nil
}

// Render runs one tick: upload the source frame unless frozen, step the
// crimson gate, encode every pass into one command buffer, submit and
// present. An unready source makes it a no-op.
func (g *RenderGraph) Render(p Params, fc FrameContext) error {
	if g.destroyed {
		return ErrGraphDestroyed
	}
	if g.stale {
		return ErrGraphStale
	}
	if g.source == nil || !g.source.Ready() {
		return nil
	}
	frame, key := currentFrame(g.source)
	if frame == nil {
		return nil
	}
	g.reclaim()

	if !p.FreezeFrame {
		if err := g.src.upload(g.queue, frame, key); err != nil {
			return err
		}
		g.stats.Uploads++
	}

	g.gateActive = g.gate.Step(p.CrimsonGate, gate.Input{
		Peak:      fc.AudioPeak,
		RMS:       fc.AudioRMS,
		PeakBoost: p.PeakBoost,
	})

	state := frameState{params: p, frame: fc, width: g.width, height: g.height, gateActive: g.gateActive}
	for _, ps := range g.passes {
		u := ps.kind.uniforms(&state)
		if err := g.queue.WriteBuffer(ps.uniforms, 0, u.bytes()); err != nil {
			return fmt.Errorf("write %s uniforms: %w", ps.kind, err)
		}
	}

	view, err := g.surface.Acquire(g.device)
	if errors.Is(err, errSkipFrame) {
		g.stats.Skipped++
		slogger().Debug("render graph: frame skipped, surface not ready")
		return nil
	}
	if err != nil {
		return err
	}

	cmd, err := g.encode(view)
	if err != nil {
		g.surface.Discard(g.device)
		return err
	}
	index, err := g.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		g.device.FreeCommandBuffer(cmd)
		g.surface.Discard(g.device)
		return fmt.Errorf("submit: %w", err)
	}
	g.inFlight = append(g.inFlight, submission{cmd: cmd, index: index})
	g.stats.Frames++

	return g.surface.Present(g.device, g.queue)
}

// encode records the whole chain into one command buffer.
func (g *RenderGraph) encode(surfaceView hal.TextureView) (hal.CommandBuffer, error) {
	encoder, err := g.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "graph_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("graph_frame"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	last := len(g.passes) - 1
	for i, p := range g.passes {
		if i == last {
			p.record(encoder, g.quad, surfaceView, g.surface.Format(), g.width, g.height)
			break
		}
		out := g.targets[i%2]
		p.record(encoder, g.quad, out.View(), offscreenFormat, g.width, g.height)
		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: out.Texture(),
			Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll},
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageTextureBinding,
			},
		}})
	}

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	return cmd, nil
}

// reclaim frees command buffers the GPU has finished with.
func (g *RenderGraph) reclaim() {
	if len(g.inFlight) == 0 {
		return
	}
	done := g.queue.PollCompleted()
	n := 0
	for _, s := range g.inFlight {
		if s.index <= done {
			g.device.FreeCommandBuffer(s.cmd)
			continue
		}
		g.inFlight[n] = s
		n++
	}
	g.inFlight = g.inFlight[:n]
}

// waitIdle blocks until the GPU is idle and frees every pending buffer.
func (g *RenderGraph) waitIdle() {
	if err := g.device.WaitIdle(); err != nil {
		slogger().Warn("render graph: wait idle failed", "err", err)
	}
	for _, s := range g.inFlight {
		g.device.FreeCommandBuffer(s.cmd)
	}
	g.inFlight = g.inFlight[:0]
}

// Destroy releases every GPU object the graph owns. Render and Resize return
// ErrGraphDestroyed afterwards. Safe to call more than once.
func (g *RenderGraph) Destroy() {
	if g.destroyed {
		return
	}
	g.waitIdle()
	g.release()
	g.destroyed = true
	slogger().Info("render graph destroyed")
}

func (g *RenderGraph) release() {
	for i := len(g.passes) - 1; i >= 0; i-- {
		g.passes[i].destroy(g.device)
	}
	g.passes = nil
	if g.pool != nil {
		g.pool.Destroy()
	}
	g.targets = [2]*RenderTarget{}
	g.src.destroy(g.device)
	g.src = nil
	g.layout.destroy(g.device)
	g.layout = nil
	g.quad.destroy(g.device)
	g.quad = nil
	if g.surface != nil {
		g.surface.Release(g.device)
	}
}

// GateActive reports whether the crimson gate fired on the last rendered tick.
func (g *RenderGraph) GateActive() bool { return g.gateActive }

// Size returns the current render size.
func (g *RenderGraph) Size() (int, int) { return g.width, g.height }

// DisplaySize returns the current display size.
func (g *RenderGraph) DisplaySize() (int, int) { return g.surface.DisplaySize() }

// PassNames lists the chain in execution order.
func (g *RenderGraph) PassNames() []string {
	names := make([]string, len(g.passes))
	for i, p := range g.passes {
		names[i] = p.kind.String()
	}
	return names
}

// Stats returns lifetime counters and pool occupancy.
func (g *RenderGraph) Stats() GraphStats {
	s := g.stats
	if g.pool != nil {
		s.Pool = g.pool.Stats()
	}
	if g.src != nil {
		s.FrameCache = g.src.cacheStats()
	}
	return s
}
