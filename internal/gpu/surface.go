//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// errSkipFrame reports that the surface has no image this refresh. The graph
// drops the frame without treating it as a failure.
var errSkipFrame = errors.New("gpu: surface image not ready")

// Surface is where the last pass of the chain lands.
//
// Render size (Configure) and display size (SetDisplaySize) are independent:
// a degraded frame is rendered small and scaled up by the compositor.
type Surface interface {
	// Format is the color format pipelines must target for this surface.
	Format() gputypes.TextureFormat

	// Configure (re)allocates backing storage at the render size.
	Configure(device hal.Device, width, height int) error

	// Acquire returns the view the last pass renders into this frame.
	Acquire(device hal.Device) (hal.TextureView, error)

	// Present shows the acquired image.
	Present(device hal.Device, queue hal.Queue) error

	// Discard drops an acquired image without presenting it.
	Discard(device hal.Device)

	// SetDisplaySize records the on-screen size in logical pixels.
	SetDisplaySize(width, height int)

	// DisplaySize returns the last recorded on-screen size.
	DisplaySize() (width, height int)

	// Release destroys everything the surface owns.
	Release(device hal.Device)
}

// WindowSurface presents through a hal.Surface swapchain. It is configured
// opaque, single-sampled, without depth, preferring mailbox presentation.
type WindowSurface struct {
	surface     hal.Surface
	format      gputypes.TextureFormat
	presentMode gputypes.PresentMode
	width       uint32
	height      uint32
	displayW    int
	displayH    int
	acquired    *hal.AcquiredSurfaceTexture
	view        hal.TextureView
	configured  bool
}

// NewWindowSurface wraps s. Zero format means BGRA8Unorm.
func NewWindowSurface(s hal.Surface, format gputypes.TextureFormat) *WindowSurface {
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	return &WindowSurface{surface: s, format: format, presentMode: gputypes.PresentModeMailbox}
}

// Format implements Surface.
func (w *WindowSurface) Format() gputypes.TextureFormat { return w.format }

// PresentMode returns the mode the swapchain ended up with.
func (w *WindowSurface) PresentMode() gputypes.PresentMode { return w.presentMode }

// Configure implements Surface. Mailbox is tried first; drivers without it
// get Fifo.
func (w *WindowSurface) Configure(device hal.Device, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	w.Discard(device)
	cfg := &hal.SurfaceConfiguration{
		Width:       uint32(width),
		Height:      uint32(height),
		Format:      w.format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: gputypes.PresentModeMailbox,
		AlphaMode:   gputypes.CompositeAlphaModeOpaque,
	}
	err := w.surface.Configure(device, cfg)
	if err != nil {
		slogger().Warn("surface: mailbox unavailable, falling back to fifo", "err", err)
		cfg.PresentMode = gputypes.PresentModeFifo
		if err = w.surface.Configure(device, cfg); err != nil {
			return fmt.Errorf("configure surface: %w", err)
		}
	}
	w.presentMode = cfg.PresentMode
	w.width, w.height = cfg.Width, cfg.Height
	w.configured = true
	return nil
}

// Acquire implements Surface. An outdated swapchain is reconfigured once.
func (w *WindowSurface) Acquire(device hal.Device) (hal.TextureView, error) {
	if !w.configured {
		return nil, fmt.Errorf("gpu: surface not configured")
	}
	acquired, err := w.surface.AcquireTexture(nil)
	if errors.Is(err, hal.ErrSurfaceOutdated) {
		if cerr := w.Configure(device, int(w.width), int(w.height)); cerr != nil {
			return nil, cerr
		}
		acquired, err = w.surface.AcquireTexture(nil)
	}
	if errors.Is(err, hal.ErrNotReady) || errors.Is(err, hal.ErrTimeout) || errors.Is(err, hal.ErrSurfaceOutdated) {
		return nil, errSkipFrame
	}
	if err != nil {
		return nil, fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
		Label:         "surface_view",
		Format:        w.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		w.surface.DiscardTexture(acquired.Texture)
		return nil, fmt.Errorf("create surface view: %w", err)
	}
	w.acquired = acquired
	w.view = view
	return view, nil
}

// Present implements Surface.
func (w *WindowSurface) Present(device hal.Device, queue hal.Queue) error {
	if w.acquired == nil {
		return nil
	}
	err := queue.Present(w.surface, w.acquired.Texture, nil)
	if w.view != nil {
		device.DestroyTextureView(w.view)
		w.view = nil
	}
	w.acquired = nil
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// Discard implements Surface.
func (w *WindowSurface) Discard(device hal.Device) {
	if w.view != nil {
		device.DestroyTextureView(w.view)
		w.view = nil
	}
	if w.acquired != nil {
		w.surface.DiscardTexture(w.acquired.Texture)
		w.acquired = nil
	}
}

// SetDisplaySize implements Surface.
func (w *WindowSurface) SetDisplaySize(width, height int) { w.displayW, w.displayH = width, height }

// DisplaySize implements Surface.
func (w *WindowSurface) DisplaySize() (int, int) { return w.displayW, w.displayH }

// Release implements Surface.
func (w *WindowSurface) Release(device hal.Device) {
	w.Discard(device)
	if w.configured {
		w.surface.Unconfigure(device)
		w.configured = false
	}
	if w.surface != nil {
		w.surface.Destroy()
		w.surface = nil
	}
}

// OffscreenSurface renders the final image into a texture. It backs headless
// runs and gives capture code a texture to copy from.
type OffscreenSurface struct {
	format   gputypes.TextureFormat
	target   textureBinding
	displayW int
	displayH int
	presents uint64
}

// NewOffscreenSurface creates an unconfigured offscreen surface. Zero format
// means RGBA8Unorm.
func NewOffscreenSurface(format gputypes.TextureFormat) *OffscreenSurface {
	if format == gputypes.TextureFormatUndefined {
		format = offscreenFormat
	}
	return &OffscreenSurface{format: format}
}

// Format implements Surface.
func (o *OffscreenSurface) Format() gputypes.TextureFormat { return o.format }

// Configure implements Surface.
func (o *OffscreenSurface) Configure(device hal.Device, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if o.target.tex != nil && int(o.target.width) == width && int(o.target.height) == height {
		return nil
	}
	o.target.destroy(device)
	b, err := createTextureBinding(device, "offscreen_surface", uint32(width), uint32(height), o.format)
	if err != nil {
		return err
	}
	o.target = b
	return nil
}

// Acquire implements Surface.
func (o *OffscreenSurface) Acquire(hal.Device) (hal.TextureView, error) {
	if o.target.view == nil {
		return nil, fmt.Errorf("gpu: offscreen surface not configured")
	}
	return o.target.view, nil
}

// Present implements Surface.
func (o *OffscreenSurface) Present(hal.Device, hal.Queue) error {
	o.presents++
	return nil
}

// Discard implements Surface.
func (o *OffscreenSurface) Discard(hal.Device) {}

// SetDisplaySize implements Surface.
func (o *OffscreenSurface) SetDisplaySize(width, height int) { o.displayW, o.displayH = width, height }

// DisplaySize implements Surface.
func (o *OffscreenSurface) DisplaySize() (int, int) { return o.displayW, o.displayH }

// Release implements Surface.
func (o *OffscreenSurface) Release(device hal.Device) { o.target.destroy(device) }

// Texture returns the texture holding the last presented frame.
func (o *OffscreenSurface) Texture() hal.Texture { return o.target.tex }

// Size returns the render size.
func (o *OffscreenSurface) Size() (int, int) { return int(o.target.width), int(o.target.height) }

// Presents returns how many frames were presented.
func (o *OffscreenSurface) Presents() uint64 { return o.presents }
