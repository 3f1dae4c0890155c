//go:build !nogpu

package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

var errInjected = errors.New("injected failure")

// countingDevice records texture allocations and draw calls.
type countingDevice struct {
	hal.Device

	textures     int
	draws        int
	renderPasses int
	freed        int

	failTextures bool
	failShaders  bool
}

func (d *countingDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if d.failTextures {
		return nil, errInjected
	}
	d.textures++
	return d.Device.CreateTexture(desc)
}

func (d *countingDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	if d.failShaders {
		return nil, errInjected
	}
	return d.Device.CreateShaderModule(desc)
}

func (d *countingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &countingEncoder{CommandEncoder: enc, device: d}, nil
}

func (d *countingDevice) FreeCommandBuffer(cmd hal.CommandBuffer) {
	d.freed++
	d.Device.FreeCommandBuffer(cmd)
}

type countingEncoder struct {
	hal.CommandEncoder
	device *countingDevice
}

func (e *countingEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	e.device.renderPasses++
	return &countingRenderPass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), device: e.device}
}

type countingRenderPass struct {
	hal.RenderPassEncoder
	device *countingDevice
}

func (r *countingRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.device.draws++
	r.RenderPassEncoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// countingQueue records texture uploads, submissions and the last bytes
// written to each buffer.
type countingQueue struct {
	hal.Queue

	textureWrites int
	submits       int
	buffers       map[hal.Buffer][]byte
}

func (q *countingQueue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	q.textureWrites++
	return q.Queue.WriteTexture(dst, data, layout, size)
}

func (q *countingQueue) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	if q.buffers == nil {
		q.buffers = make(map[hal.Buffer][]byte)
	}
	q.buffers[buffer] = append([]byte(nil), data...)
	return q.Queue.WriteBuffer(buffer, offset, data)
}

func (q *countingQueue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	q.submits++
	return q.Queue.Submit(cmds)
}

// newCountingContext wraps a noop device in counting wrappers.
func newCountingContext(t *testing.T) (*Context, *countingDevice, *countingQueue) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	cd := &countingDevice{Device: device}
	cq := &countingQueue{Queue: queue}
	return NewContext(cd, cq, gputypes.TextureFormatBGRA8Unorm), cd, cq
}
