package crimsonfx

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/crimsonfx/audio"
	"github.com/gogpu/crimsonfx/scheduler"
)

var errInjected = errors.New("injected failure")

type fakeRenderer struct {
	mu        sync.Mutex
	resizes   [][4]int
	params    []RenderParams
	frames    []FrameContext
	gate      bool
	renderErr error
	resizeErr error
	destroyed int
}

func (f *fakeRenderer) Resize(rw, rh, dw, dh int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resizeErr != nil {
		return f.resizeErr
	}
	f.resizes = append(f.resizes, [4]int{rw, rh, dw, dh})
	return nil
}

func (f *fakeRenderer) Render(p RenderParams, fc FrameContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, p)
	f.frames = append(f.frames, fc)
	return f.renderErr
}

func (f *fakeRenderer) GateActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gate
}

func (f *fakeRenderer) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
}

func (f *fakeRenderer) lastParams() RenderParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[len(f.params)-1]
}

func (f *fakeRenderer) lastResize() [4]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resizes[len(f.resizes)-1]
}

type fakeEnvelope struct {
	mu  sync.Mutex
	env audio.Envelope
}

func (f *fakeEnvelope) set(peak, rms float64) {
	f.mu.Lock()
	f.env = audio.Envelope{Peak: peak, RMS: rms}
	f.mu.Unlock()
}

func (f *fakeEnvelope) Envelope() audio.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.env
}

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *fakeRenderer, *fakeEnvelope) {
	t.Helper()
	r := &fakeRenderer{}
	env := &fakeEnvelope{}
	sched := scheduler.New(scheduler.WithRefresh(scheduler.NewManualRefresh()), scheduler.WithRand(func() float64 { return 0.5 }))
	e, err := NewEngine(r, sched, env, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, r, env
}

func TestNewEngineRequiresRenderer(t *testing.T) {
	_, err := NewEngine(nil, nil, nil)
	assert.Error(t, err)
}

func TestRenderSize(t *testing.T) {
	tests := []struct {
		name  string
		vp    Viewport
		level int
		want  [4]int
	}{
		{"full", Viewport{1280, 720, 1}, 0, [4]int{1280, 720, 1280, 720}},
		{"level 1", Viewport{1280, 720, 1}, 1, [4]int{960, 540, 960, 540}},
		{"level 2", Viewport{1280, 720, 1}, 2, [4]int{640, 360, 640, 360}},
		{"dense display", Viewport{1280, 720, 2}, 1, [4]int{1920, 1080, 960, 540}},
		{"floored", Viewport{400, 200, 1}, 2, [4]int{320, 180, 320, 180}},
		{"fractional ratio", Viewport{1000, 500, 1.5}, 0, [4]int{1500, 750, 1000, 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw, rh, dw, dh := RenderSize(tt.vp, tt.level)
			assert.Equal(t, tt.want, [4]int{rw, rh, dw, dh})
		})
	}
}

func TestScaleForLevel(t *testing.T) {
	assert.Equal(t, 1.0, ScaleForLevel(0))
	assert.Equal(t, 0.75, ScaleForLevel(1))
	assert.Equal(t, 0.5, ScaleForLevel(2))
	assert.Equal(t, 1.0, ScaleForLevel(-1))
	assert.Equal(t, 0.5, ScaleForLevel(7))
}

func TestTickPassesTimingAndEnvelope(t *testing.T) {
	e, r, env := newTestEngine(t)
	env.set(0.5, 0.3)

	require.NoError(t, e.Tick(100, 16))
	require.Len(t, r.frames, 1)
	assert.Equal(t, FrameContext{Time: 100, Delta: 16, AudioPeak: 0.5, AudioRMS: 0.3}, r.frames[0])
	assert.Equal(t, DefaultParams(), r.params[0])
}

func TestTickWithoutEnvelopeSourceIsSilent(t *testing.T) {
	r := &fakeRenderer{}
	e, err := NewEngine(r, scheduler.New(), nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Tick(0, 0))
	assert.Zero(t, r.frames[0].AudioPeak)
	assert.Zero(t, r.frames[0].AudioRMS)
}

func TestTickResizesForDegradeLevel(t *testing.T) {
	e, r, _ := newTestEngine(t, WithViewport(Viewport{Width: 1280, Height: 720, PixelRatio: 2}))

	require.NoError(t, e.Tick(0, 16))
	assert.Equal(t, [4]int{2560, 1440, 1280, 720}, r.lastResize())

	// Two slow refreshes push the level to 2.
	e.Scheduler().Step(30)
	e.Scheduler().Step(60)
	require.Equal(t, 2, e.Scheduler().DegradeLevel())

	require.NoError(t, e.Tick(60, 60))
	assert.Equal(t, [4]int{1280, 720, 640, 360}, r.lastResize())
	assert.Equal(t, 2, e.Telemetry().DegradeLevel)
}

func TestPunchInDecays(t *testing.T) {
	e, r, _ := newTestEngine(t)
	e.UpdateParams(func(p *RenderParams) { p.PeakBoost = 0.1 })

	e.PunchIn()
	require.NoError(t, e.Tick(0, 16))
	assert.InDelta(t, 0.7, r.lastParams().PeakBoost, 1e-12, "transient adds to the param")
	assert.InDelta(t, 0.58, e.Boost(), 1e-12)
	assert.Equal(t, 0.1, e.Params().PeakBoost, "persistent params are untouched")

	require.NoError(t, e.Tick(16, 16))
	assert.InDelta(t, 0.68, r.lastParams().PeakBoost, 1e-12)

	for i := range 40 {
		require.NoError(t, e.Tick(float64(32+16*i), 16))
	}
	assert.Zero(t, e.Boost(), "boost floors at zero")
	assert.InDelta(t, 0.1, r.lastParams().PeakBoost, 1e-12)
}

func TestFreezeFrameForcedOffWhileRecording(t *testing.T) {
	e, r, _ := newTestEngine(t)
	e.ToggleFreezeFrame()

	require.NoError(t, e.Tick(0, 16))
	assert.True(t, r.lastParams().FreezeFrame)

	e.SetRecording(true)
	require.NoError(t, e.Tick(16, 16))
	assert.False(t, r.lastParams().FreezeFrame)
	assert.True(t, e.Params().FreezeFrame, "user setting survives")

	e.SetRecording(false)
	e.UpdateParams(func(p *RenderParams) { p.RecordSafe = true })
	require.NoError(t, e.Tick(32, 16))
	assert.False(t, r.lastParams().FreezeFrame)
}

func TestSafeModeCombinesSources(t *testing.T) {
	e, _, _ := newTestEngine(t)
	sched := e.Scheduler()
	assert.False(t, sched.SafeMode())

	e.SetSafeMode(true)
	assert.True(t, sched.SafeMode())
	e.SetSafeMode(false)
	assert.False(t, sched.SafeMode())

	e.SetRecording(true)
	assert.True(t, sched.SafeMode())
	e.SetSafeMode(true)
	e.SetRecording(false)
	assert.True(t, sched.SafeMode(), "user safe mode still on")
	e.SetSafeMode(false)
	assert.False(t, sched.SafeMode())

	e.UpdateParams(func(p *RenderParams) { p.RecordSafe = true })
	assert.True(t, sched.SafeMode())
	e.UpdateParams(func(p *RenderParams) { p.RecordSafe = false })
	assert.False(t, sched.SafeMode())
}

func TestWithSafeModeOption(t *testing.T) {
	e, _, _ := newTestEngine(t, WithSafeMode(true))
	assert.True(t, e.Scheduler().SafeMode())
}

func TestEngineActions(t *testing.T) {
	e, _, _ := newTestEngine(t)

	assert.False(t, e.ToggleCrimsonGate())
	assert.True(t, e.ToggleCrimsonGate())
	assert.True(t, e.ToggleFreezeFrame())
	assert.False(t, e.ToggleFreezeFrame())

	p := DefaultParams()
	p.ContrastK = math.NaN()
	p.GrainIntensity = 2
	e.SetParams(p)
	assert.Equal(t, 8.0, e.Params().ContrastK)
	assert.Equal(t, 0.6, e.Params().GrainIntensity)

	require.NoError(t, e.ApplyPreset("Signal Drift"))
	assert.Equal(t, 9.0, e.Params().ContrastK)
	assert.ErrorIs(t, e.ApplyPreset("nope"), ErrUnknownPreset)
}

func TestApplyConfig(t *testing.T) {
	e, r, _ := newTestEngine(t)

	cfg := DefaultConfig()
	cfg.Params.Vignette = 0.1
	cfg.SafeMode = true
	cfg.Viewport = Viewport{Width: 640, Height: 480, PixelRatio: 1}
	e.ApplyConfig(cfg)

	assert.True(t, e.Scheduler().SafeMode())
	require.NoError(t, e.Tick(0, 16))
	assert.Equal(t, 0.1, r.lastParams().Vignette)
	assert.Equal(t, [4]int{640, 480, 640, 480}, r.lastResize())

	e.SetViewport(0, 0, 0)
	require.NoError(t, e.Tick(16, 16))
	assert.Equal(t, [4]int{1280, 720, 1280, 720}, r.lastResize(), "invalid viewport falls back to default")
}

func TestApplyConfigSetsAudioGain(t *testing.T) {
	bus := audio.NewBus()
	e, err := NewEngine(&fakeRenderer{}, scheduler.New(scheduler.WithRefresh(scheduler.NewManualRefresh())), bus)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	cfg := DefaultConfig()
	cfg.AudioGain = 0.5
	e.ApplyConfig(cfg)

	bus.Write([][2]float64{{0.8, 0.8}})
	assert.InDelta(t, 0.4, bus.Envelope().Peak, 1e-12)
}

func TestTelemetry(t *testing.T) {
	e, r, env := newTestEngine(t)
	r.gate = true

	env.set(0.5, 0.3)
	require.NoError(t, e.Tick(0, 20))
	tel := e.Telemetry()
	assert.Equal(t, uint64(1), tel.Ticks)
	assert.Equal(t, audio.Envelope{Peak: 0.5, RMS: 0.3}, tel.Envelope)
	assert.True(t, tel.GateActive)
	assert.InDelta(t, 50, tel.FPS, 1e-9)
	assert.Equal(t, 1280, tel.RenderWidth)
	assert.Equal(t, 720, tel.DisplayHeight)

	env.set(0.505, 0.3)
	require.NoError(t, e.Tick(10, 10))
	tel = e.Telemetry()
	assert.Equal(t, 0.5, tel.Envelope.Peak, "small wobble is not reported")
	assert.InDelta(t, 55, tel.FPS, 1e-9)

	env.set(0.52, 0.3)
	require.NoError(t, e.Tick(20, 10))
	assert.Equal(t, 0.52, e.Telemetry().Envelope.Peak)
	assert.Contains(t, e.Telemetry().String(), "tick 3")
}

func TestTickErrors(t *testing.T) {
	e, r, _ := newTestEngine(t)

	r.resizeErr = errInjected
	err := e.Tick(0, 16)
	assert.ErrorIs(t, err, errInjected)
	assert.Empty(t, r.params, "no render after a failed resize")

	r.resizeErr = nil
	r.renderErr = errInjected
	e.PunchIn()
	err = e.Tick(16, 16)
	assert.ErrorIs(t, err, errInjected)
	assert.InDelta(t, 0.58, e.Boost(), 1e-12, "boost decays even when rendering fails")
}

func TestCloseDestroysOnce(t *testing.T) {
	r := &fakeRenderer{}
	e, err := NewEngine(r, scheduler.New(scheduler.WithRefresh(scheduler.NewManualRefresh())), nil)
	require.NoError(t, err)

	e.Close()
	e.Close()
	assert.Equal(t, 1, r.destroyed)
	assert.ErrorIs(t, e.Tick(0, 16), ErrEngineClosed)
	assert.ErrorIs(t, e.Run(context.Background()), ErrEngineClosed)
	assert.Empty(t, r.frames)
}

func signal(t *testing.T, m *scheduler.ManualRefresh, from time.Duration, n int) time.Duration {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for range n {
		from += 16 * time.Millisecond
		require.NoError(t, m.Signal(ctx, from))
	}
	return from
}

func TestRunDrivesTicks(t *testing.T) {
	refresh := scheduler.NewManualRefresh()
	r := &fakeRenderer{}
	e, err := NewEngine(r, scheduler.New(scheduler.WithRefresh(refresh)), nil, WithSafeMode(true))
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx) }()

	signal(t, refresh, 0, 3)
	assert.Eventually(t, func() bool { return e.Telemetry().Ticks == 3 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, e.Scheduler().Running())
}

func TestRunStopsOnRenderError(t *testing.T) {
	refresh := scheduler.NewManualRefresh()
	r := &fakeRenderer{renderErr: errInjected}
	e, err := NewEngine(r, scheduler.New(scheduler.WithRefresh(refresh)), nil, WithSafeMode(true))
	require.NoError(t, err)
	defer e.Close()

	errc := make(chan error, 1)
	go func() { errc <- e.Run(context.Background()) }()

	signal(t, refresh, 0, 1)
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, errInjected)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after a failed tick")
	}
}
