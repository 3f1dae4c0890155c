//go:build !nogpu

package crimsonfx

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/crimsonfx/audio"
	"github.com/gogpu/crimsonfx/scheduler"
)

type staticSource struct {
	img image.Image
}

func (s *staticSource) Ready() bool        { return s.img != nil }
func (s *staticSource) Frame() image.Image { return s.img }

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func openHeadless(t *testing.T) *GPURenderer {
	t.Helper()
	r, err := OpenRenderer(RendererConfig{Headless: true, Width: 320, Height: 180})
	require.NoError(t, err)
	return r
}

func TestOpenRendererHeadless(t *testing.T) {
	r := openHeadless(t)
	defer r.Destroy()

	names := r.PassNames()
	require.GreaterOrEqual(t, len(names), 5)
	assert.Equal(t, []string{"chromatic", "tone", "grain", "vignette", "crimson"}, names[:5])
}

func TestOpenRendererAdvanced(t *testing.T) {
	r, err := OpenRenderer(RendererConfig{Headless: true, Advanced: true})
	require.NoError(t, err)
	defer r.Destroy()
	assert.Len(t, r.PassNames(), 9)
}

func TestGPURendererEngineTicks(t *testing.T) {
	r := openHeadless(t)
	bus := audio.NewBus()
	bus.Write([][2]float64{{0.9, 0.9}})

	e, err := NewEngine(r, scheduler.New(), bus, WithViewport(Viewport{Width: 320, Height: 180, PixelRatio: 1}))
	require.NoError(t, err)
	defer e.Close()

	// No source yet: ticks succeed without drawing.
	require.NoError(t, e.Tick(0, 16))
	assert.Zero(t, r.Stats().Frames)

	r.SetSource(&staticSource{img: solid(64, 36)})
	require.NoError(t, e.Tick(16, 16))
	require.NoError(t, e.Tick(32, 16))
	s := r.Stats()
	assert.Equal(t, uint64(2), s.Frames)
	assert.Equal(t, uint64(2), s.Uploads)
	assert.True(t, e.Telemetry().GateActive, "loud envelope fires the gate")
	assert.NotEmpty(t, s.Pool)

	e.ToggleFreezeFrame()
	require.NoError(t, e.Tick(48, 16))
	s = r.Stats()
	assert.Equal(t, uint64(3), s.Frames)
	assert.Equal(t, uint64(2), s.Uploads, "frozen frame is not re-uploaded")

	// Record-safe is resolved by the engine before the GPU sees the params.
	e.UpdateParams(func(p *RenderParams) { p.RecordSafe = true })
	require.NoError(t, e.Tick(56, 16))
	assert.Equal(t, uint64(3), r.Stats().Uploads, "record-safe overrides freeze frame")
	e.UpdateParams(func(p *RenderParams) { p.RecordSafe = false })

	r.SetSource(nil)
	require.NoError(t, e.Tick(64, 16))
	assert.Equal(t, uint64(4), r.Stats().Frames)
}

func TestGPURendererAfterDestroy(t *testing.T) {
	r := openHeadless(t)
	r.SetSource(&staticSource{img: solid(8, 8)})
	r.Destroy()
	assert.ErrorIs(t, r.Render(DefaultParams(), FrameContext{}), ErrEngineClosed)
}
