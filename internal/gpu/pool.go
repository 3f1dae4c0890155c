//go:build !nogpu

package gpu

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// RenderTarget is one offscreen texture plus the view passes attach to.
// A target is either checked out (owned by exactly one caller) or sitting in
// its pool's free list.
type RenderTarget struct {
	pool    *Pool
	id      int
	binding textureBinding
}

// Width returns the allocated width in pixels.
func (t *RenderTarget) Width() int { return int(t.binding.width) }

// Height returns the allocated height in pixels.
func (t *RenderTarget) Height() int { return int(t.binding.height) }

// View returns the texture view used both as attachment and as sampled input.
func (t *RenderTarget) View() hal.TextureView { return t.binding.view }

// Texture returns the backing texture.
func (t *RenderTarget) Texture() hal.Texture { return t.binding.tex }

// PoolStats reports pool occupancy.
type PoolStats struct {
	// Targets is the number of live targets the pool created.
	Targets int

	// Free is the number of targets waiting in the free list.
	Free int

	// Bytes is the approximate GPU memory held by all targets.
	Bytes uint64

	// Allocations counts texture allocations over the pool lifetime,
	// including in-place resizes.
	Allocations uint64
}

// String returns a human-readable summary.
func (s PoolStats) String() string {
	return fmt.Sprintf("Pool[%d targets, %d free, %.1f MB, %d allocations]",
		s.Targets, s.Free, float64(s.Bytes)/(1024*1024), s.Allocations)
}

// Pool hands out render targets keyed by exact size and takes them back.
// Targets are only destroyed by Destroy.
//
// Pool is safe for concurrent use, although a RenderGraph only touches it
// from its render goroutine.
type Pool struct {
	mu          sync.Mutex
	device      hal.Device
	format      gputypes.TextureFormat
	all         []*RenderTarget
	free        []*RenderTarget
	nextID      int
	allocations uint64
	destroyed   bool
}

// NewPool creates an empty pool. Zero format means RGBA8Unorm.
func NewPool(device hal.Device, format gputypes.TextureFormat) *Pool {
	if format == gputypes.TextureFormatUndefined {
		format = offscreenFormat
	}
	return &Pool{device: device, format: format}
}

// Acquire returns a free target of exactly width x height, removing it from
// the free list, or allocates a new one. Allocation failure is returned
// wrapped in ErrTargetAllocation.
func (p *Pool) Acquire(width, height int) (*RenderTarget, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil, ErrPoolDestroyed
	}

	for i, t := range p.free {
		if t.Width() == width && t.Height() == height {
			p.free = slices.Delete(p.free, i, i+1)
			return t, nil
		}
	}

	t := &RenderTarget{pool: p, id: p.nextID}
	binding, err := createTextureBinding(p.device, p.label(t.id), uint32(width), uint32(height), p.format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTargetAllocation, err)
	}
	p.nextID++
	p.allocations++
	t.binding = binding
	p.all = append(p.all, t)
	slogger().Debug("pool: target allocated", "id", t.id, "width", width, "height", height)
	return t, nil
}

// Release puts t back in the free list. Releasing a target that is already
// free, nil, or owned by another pool does nothing.
func (p *Pool) Release(t *RenderTarget) {
	if t == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.pool != p || p.destroyed {
		return
	}
	if slices.Contains(p.free, t) {
		return
	}
	p.free = append(p.free, t)
}

// Resize reallocates the storage of t in place. The *RenderTarget keeps its
// identity; views obtained before the call are invalid afterwards.
func (p *Pool) Resize(t *RenderTarget, width, height int) error {
	if t == nil || t.pool != p {
		return ErrForeignTarget
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return ErrPoolDestroyed
	}
	if t.Width() == width && t.Height() == height {
		return nil
	}

	t.binding.destroy(p.device)
	binding, err := createTextureBinding(p.device, p.label(t.id), uint32(width), uint32(height), p.format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTargetAllocation, err)
	}
	p.allocations++
	t.binding = binding
	slogger().Debug("pool: target resized", "id", t.id, "width", width, "height", height)
	return nil
}

// Stats returns current occupancy.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := PoolStats{Targets: len(p.all), Free: len(p.free), Allocations: p.allocations}
	for _, t := range p.all {
		s.Bytes += uint64(t.binding.width) * uint64(t.binding.height) * 4
	}
	return s
}

// Destroy releases every target the pool created, checked out or not.
// Safe to call more than once.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.destroyed = true
	for _, t := range p.all {
		t.binding.destroy(p.device)
	}
	p.all = nil
	p.free = nil
}

func (p *Pool) label(id int) string {
	return fmt.Sprintf("pool_target_%d", id)
}
