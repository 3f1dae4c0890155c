//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Backends are registered through init side effects.
	_ "github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// ContextConfig selects how Open acquires a device.
type ContextConfig struct {
	// Backend is the hal backend to use. Zero means Vulkan.
	Backend gputypes.Backend

	// Headless selects the noop backend. Every call succeeds and nothing is
	// drawn; used by tests and by dry runs of the demo.
	Headless bool

	// SurfaceFormat is the preferred presentation format.
	// Default: BGRA8Unorm
	SurfaceFormat gputypes.TextureFormat
}

// Context owns the device and queue shared by every GPU object of a render
// graph. A shared context borrows both from a host provider and never
// destroys them.
type Context struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	info     gputypes.AdapterInfo
	format   gputypes.TextureFormat
	shared   bool
	closed   bool
}

// Open creates an instance on the configured backend, selects an adapter
// (discrete first, then integrated, then whatever is left) and opens a device.
func Open(cfg ContextConfig) (*Context, error) {
	variant := cfg.Backend
	switch {
	case cfg.Headless:
		variant = gputypes.BackendEmpty
	case variant == gputypes.BackendEmpty:
		variant = gputypes.BackendVulkan
	}
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, variant)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := selectAdapter(adapters)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	format := cfg.SurfaceFormat
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	slogger().Info("gpu context opened",
		"adapter", selected.Info.Name,
		"backend", selected.Info.Backend,
	)
	return &Context{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		info:     selected.Info,
		format:   format,
	}, nil
}

func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// OpenShared wraps a device owned by the host. The provider must expose the
// hal device and queue through HalDevice() any and HalQueue() any.
func OpenShared(provider gpucontext.DeviceProvider) (*Context, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProviderNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProviderNotHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProviderNotHAL)
	}

	format := provider.SurfaceFormat()
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	info := provider.AdapterInfo()
	slogger().Info("gpu context shared", "adapter", info.Name)
	return &Context{
		device: device,
		queue:  queue,
		info:   gputypes.AdapterInfo{Name: info.Name},
		format: format,
		shared: true,
	}, nil
}

// NewContext wraps an already opened device and queue. The caller keeps
// ownership of both.
func NewContext(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) *Context {
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	return &Context{device: device, queue: queue, format: format, shared: true}
}

// Device returns the hal device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the hal queue.
func (c *Context) Queue() hal.Queue { return c.queue }

// SurfaceFormat returns the presentation format render pipelines target on
// their last pass.
func (c *Context) SurfaceFormat() gputypes.TextureFormat { return c.format }

// AdapterName returns the selected adapter name, if known.
func (c *Context) AdapterName() string { return c.info.Name }

// CreateWindowSurface creates a presentation surface for a native window.
// Only contexts created with Open own an instance.
func (c *Context) CreateWindowSurface(displayHandle, windowHandle uintptr) (*WindowSurface, error) {
	if c.instance == nil {
		return nil, fmt.Errorf("gpu: shared context has no instance for surface creation")
	}
	s, err := c.instance.CreateSurface(displayHandle, windowHandle)
	if err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}
	return NewWindowSurface(s, c.format), nil
}

// Close waits for the device to go idle and destroys what the context owns.
// Shared contexts only drop their references. Safe to call more than once.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if !c.shared && c.device != nil {
		if err := c.device.WaitIdle(); err != nil {
			slogger().Warn("wait idle on close", "err", err)
		}
		c.device.Destroy()
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
	c.device = nil
	c.queue = nil
}
