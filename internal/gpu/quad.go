//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// quadVertexStride is the byte stride per vertex of the fullscreen geometry.
//
//	position (vec2<f32>) = 8 bytes  (location 0)
//	uv       (vec2<f32>) = 8 bytes  (location 1)
const quadVertexStride = 16

// quadVertexCount is three: one oversized triangle covers the viewport.
const quadVertexCount = 3

// fullscreenVertices is a single triangle covering clip space. UV (0,0) maps
// to the top-left texel, so uploaded frames need no vertical flip.
var fullscreenVertices = [quadVertexCount * 4]float32{
	-1, -1, 0, 1,
	3, -1, 2, 1,
	-1, 3, 0, -1,
}

// fullscreenQuad is the geometry every pass draws.
type fullscreenQuad struct {
	buffer hal.Buffer
}

func newFullscreenQuad(device hal.Device, queue hal.Queue) (*fullscreenQuad, error) {
	data := make([]byte, len(fullscreenVertices)*4)
	for i, v := range fullscreenVertices {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "fullscreen_quad",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create fullscreen quad buffer: %w", err)
	}
	if err := queue.WriteBuffer(buf, 0, data); err != nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("upload fullscreen quad: %w", err)
	}
	return &fullscreenQuad{buffer: buf}, nil
}

func (q *fullscreenQuad) destroy(device hal.Device) {
	if q == nil || q.buffer == nil {
		return
	}
	device.DestroyBuffer(q.buffer)
	q.buffer = nil
}

// quadVertexLayout matches vs_main in fullscreen.wgsl.
func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1}, // uv
			},
		},
	}
}
