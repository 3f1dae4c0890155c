package crimsonfx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/crimsonfx/audio"
	"github.com/gogpu/crimsonfx/scheduler"
)

// Render size limits and transient boost behavior.
const (
	MinRenderWidth  = 320
	MinRenderHeight = 180

	// PunchInBoost is the transient peak boost set by PunchIn.
	PunchInBoost = 0.6

	// BoostDecay is subtracted from the transient boost after every tick.
	BoostDecay = 0.02
)

var levelScale = [...]float64{1, 0.75, 0.5}

// ErrEngineClosed is returned by Run and Tick after Close.
var ErrEngineClosed = errors.New("crimsonfx: engine closed")

// Renderer draws the effect chain. *GPURenderer is the production
// implementation.
type Renderer interface {
	Resize(renderW, renderH, displayW, displayH int) error
	Render(p RenderParams, fc FrameContext) error
	GateActive() bool
	Destroy()
}

// EnvelopeSource supplies the latest audio envelope without blocking.
// *audio.Bus satisfies it.
type EnvelopeSource interface {
	Envelope() audio.Envelope
}

// ScaleForLevel returns the render scale for a degrade level.
func ScaleForLevel(level int) float64 {
	return levelScale[min(max(level, 0), len(levelScale)-1)]
}

// RenderSize computes the render (device pixel) and display (logical pixel)
// sizes for a viewport at the given degrade level. Both are floored to
// MinRenderWidth x MinRenderHeight.
func RenderSize(vp Viewport, level int) (renderW, renderH, displayW, displayH int) {
	vp = vp.normalize()
	scale := ScaleForLevel(level)
	w, h := float64(vp.Width), float64(vp.Height)
	displayW = max(MinRenderWidth, int(w*scale))
	displayH = max(MinRenderHeight, int(h*scale))
	renderW = max(MinRenderWidth, int(w*scale*vp.PixelRatio))
	renderH = max(MinRenderHeight, int(h*scale*vp.PixelRatio))
	return renderW, renderH, displayW, displayH
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithParams sets the initial params. The default is DefaultParams.
func WithParams(p RenderParams) EngineOption {
	return func(e *Engine) { e.params = p.Sanitize() }
}

// WithViewport sets the initial viewport. The default is DefaultViewport.
func WithViewport(v Viewport) EngineOption {
	return func(e *Engine) { e.viewport = v.normalize() }
}

// WithSafeMode sets the initial user safe mode.
func WithSafeMode(enabled bool) EngineOption {
	return func(e *Engine) { e.userSafe = enabled }
}

// Engine ties a renderer, a scheduler and an envelope source together and
// owns the user-facing state: params, safe mode, recording flag, viewport
// and the transient punch-in boost.
//
// Actions may be called from any goroutine. They take effect at the start of
// the next tick.
type Engine struct {
	renderer Renderer
	sched    *scheduler.Scheduler
	env      EnvelopeSource
	log      *slog.Logger

	// tickMu serializes ticks with Close so the renderer is never used
	// after Destroy.
	tickMu sync.Mutex

	mu        sync.Mutex
	params    RenderParams
	boost     float64
	userSafe  bool
	recording bool
	viewport  Viewport
	telemetry Telemetry
	fps       fpsMeter
	running   bool
	closed    bool
}

// NewEngine creates an engine. A nil scheduler gets a default 60 Hz one; a
// nil envelope source means silence.
func NewEngine(r Renderer, sched *scheduler.Scheduler, env EnvelopeSource, opts ...EngineOption) (*Engine, error) {
	if r == nil {
		return nil, errors.New("crimsonfx: nil renderer")
	}
	if sched == nil {
		sched = scheduler.New(scheduler.WithLogger(Logger()))
	}
	e := &Engine{
		renderer: r,
		sched:    sched,
		env:      env,
		log:      Logger().With(slog.String("component", "engine")),
		params:   DefaultParams(),
		viewport: DefaultViewport(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.mu.Lock()
	e.applySafetyLocked()
	e.mu.Unlock()
	return e, nil
}

// Scheduler returns the scheduler driving the engine.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Run drives ticks from the scheduler until ctx is done or a tick fails.
// It returns nil on cancellation and the tick error otherwise. Run does not
// release the renderer; call Close for that.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrEngineClosed
	case e.running:
		e.mu.Unlock()
		return scheduler.ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	err := e.sched.Start(runCtx, func(timeMs, deltaMs float64) {
		if err := e.Tick(timeMs, deltaMs); err != nil {
			select {
			case errc <- err:
			default:
			}
			cancel()
		}
	})
	if err != nil {
		return err
	}
	e.log.Info("engine started")

	<-runCtx.Done()
	e.sched.Stop()
	e.log.Info("engine stopped")

	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

// Tick runs one frame: read the envelope and degrade level, size the
// surface, compose the active params and render. Hosts that own their own
// refresh loop may call it directly instead of Run, but never concurrently
// with Run.
func (e *Engine) Tick(timeMs, deltaMs float64) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	var env audio.Envelope
	if e.env != nil {
		env = e.env.Envelope()
	}
	level := e.sched.DegradeLevel()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	active := e.params
	active.PeakBoost += e.boost
	recording := e.recording
	vp := e.viewport
	e.mu.Unlock()

	rw, rh, dw, dh := RenderSize(vp, level)
	if err := e.renderer.Resize(rw, rh, dw, dh); err != nil {
		return fmt.Errorf("crimsonfx: resize to %dx%d: %w", rw, rh, err)
	}

	if recording || active.RecordSafe {
		active.FreezeFrame = false
	}
	renderErr := e.renderer.Render(active, FrameContext{
		Time:      timeMs,
		Delta:     deltaMs,
		AudioPeak: env.Peak,
		AudioRMS:  env.RMS,
	})

	e.mu.Lock()
	e.boost = max(0, e.boost-BoostDecay)
	t := &e.telemetry
	t.Ticks++
	t.DegradeLevel = level
	t.SafeMode = e.sched.SafeMode()
	t.Recording = recording
	if envelopeMoved(t.Envelope, env) {
		t.Envelope = env
	}
	t.GateActive = e.renderer.GateActive()
	t.RenderWidth, t.RenderHeight = rw, rh
	t.DisplayWidth, t.DisplayHeight = dw, dh
	t.FPS = e.fps.observe(deltaMs)
	e.mu.Unlock()

	if renderErr != nil {
		return fmt.Errorf("crimsonfx: render: %w", renderErr)
	}
	return nil
}

// Close stops the scheduler, waits for an in-flight tick and destroys the
// renderer. Safe to call more than once, but never from inside a tick: it
// waits for that tick to end. Cancel the context passed to Run instead.
func (e *Engine) Close() {
	e.sched.Stop()

	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.renderer.Destroy()
	e.log.Debug("engine closed")
}

// Params returns the persistent params, without the transient boost.
func (e *Engine) Params() RenderParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// SetParams replaces the params after sanitizing them.
func (e *Engine) SetParams(p RenderParams) {
	e.UpdateParams(func(cur *RenderParams) { *cur = p })
}

// UpdateParams edits the params in place under the engine lock.
func (e *Engine) UpdateParams(fn func(*RenderParams)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.params
	fn(&p)
	e.params = p.Sanitize()
	e.applySafetyLocked()
}

// ApplyPreset merges the named preset into the current params.
func (e *Engine) ApplyPreset(name string) error {
	pr, ok := LookupPreset(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	e.UpdateParams(func(p *RenderParams) { *p = pr.Apply(*p) })
	e.log.Debug("preset applied", "preset", pr.Name)
	return nil
}

// ApplyConfig adopts the params, safe mode, viewport and audio gain of cfg.
// Used for config hot reload. Refresh rate and advanced passes only take
// effect at startup.
func (e *Engine) ApplyConfig(cfg Config) {
	cfg = cfg.normalize()
	if g, ok := e.env.(gainSetter); ok {
		g.SetGain(cfg.AudioGain)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = cfg.Params.Sanitize()
	e.userSafe = cfg.SafeMode
	e.viewport = cfg.Viewport
	e.applySafetyLocked()
}

// gainSetter is implemented by envelope sources with an input gain, such as
// *audio.Bus.
type gainSetter interface {
	SetGain(g float64)
}

// PunchIn sets the transient boost. It decays by BoostDecay per tick.
func (e *Engine) PunchIn() {
	e.mu.Lock()
	e.boost = PunchInBoost
	e.mu.Unlock()
}

// Boost returns the current transient boost.
func (e *Engine) Boost() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boost
}

// ToggleCrimsonGate flips the gate and returns the new state.
func (e *Engine) ToggleCrimsonGate() bool {
	var enabled bool
	e.UpdateParams(func(p *RenderParams) {
		p.CrimsonGate = !p.CrimsonGate
		enabled = p.CrimsonGate
	})
	return enabled
}

// ToggleFreezeFrame flips freeze frame and returns the new state. Freeze
// frame is ignored while recording or in record-safe mode.
func (e *Engine) ToggleFreezeFrame() bool {
	var frozen bool
	e.UpdateParams(func(p *RenderParams) {
		p.FreezeFrame = !p.FreezeFrame
		frozen = p.FreezeFrame
	})
	return frozen
}

// SetSafeMode sets the user safe mode switch. The scheduler runs in safe
// mode whenever this, RecordSafe or recording is on.
func (e *Engine) SetSafeMode(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userSafe = enabled
	e.applySafetyLocked()
}

// SetRecording tells the engine whether a capture collaborator is recording.
func (e *Engine) SetRecording(recording bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recording = recording
	e.applySafetyLocked()
}

// SetViewport updates the host drawable size and device pixel ratio.
func (e *Engine) SetViewport(width, height int, pixelRatio float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport = Viewport{Width: width, Height: height, PixelRatio: pixelRatio}.normalize()
}

// Telemetry returns the state recorded by the last tick.
func (e *Engine) Telemetry() Telemetry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.telemetry
}

func (e *Engine) applySafetyLocked() {
	e.sched.SetSafeMode(e.userSafe || e.params.RecordSafe || e.recording)
}
