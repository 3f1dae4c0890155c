//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// offscreenFormat is the format of the source texture and of pooled targets.
const offscreenFormat = gputypes.TextureFormatRGBA8Unorm

// offscreenUsage lets a target be rendered to, sampled by the next pass,
// written by the queue (source uploads) and copied out for capture.
const offscreenUsage = gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopyDst |
	gputypes.TextureUsageCopySrc

// textureBinding is a texture together with the single view the pipeline
// uses for it.
type textureBinding struct {
	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
}

// createTextureBinding allocates a single-sample 2D texture and its view.
// On view failure the texture is destroyed before returning.
func createTextureBinding(device hal.Device, label string, w, h uint32, format gputypes.TextureFormat) (textureBinding, error) {
	if w == 0 || h == 0 {
		return textureBinding{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         offscreenUsage,
	})
	if err != nil {
		return textureBinding{}, fmt.Errorf("create texture %s: %w", label, err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return textureBinding{}, fmt.Errorf("create texture view %s: %w", label, err)
	}
	return textureBinding{tex: tex, view: view, width: w, height: h}, nil
}

// destroy releases the view, then the texture. Safe on a zero value.
func (b *textureBinding) destroy(device hal.Device) {
	if b.view != nil {
		device.DestroyTextureView(b.view)
		b.view = nil
	}
	if b.tex != nil {
		device.DestroyTexture(b.tex)
		b.tex = nil
	}
	b.width, b.height = 0, 0
}
