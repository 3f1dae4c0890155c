//go:build !nogpu

package gpu

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/draw"

	"github.com/gogpu/crimsonfx/internal/cache"
)

// frameCacheBudget bounds the bytes of scaled sequence frames kept between
// ticks: about a dozen 720p frames.
const frameCacheBudget = 48 << 20

// PixelSource is a continuously updating image, such as decoded video.
// Render must not sample it before Ready reports true.
type PixelSource interface {
	// Ready reports whether at least one frame is available.
	Ready() bool

	// Frame returns the most recent frame. It is only called after Ready.
	Frame() image.Image
}

// ImageSource holds the latest frame pushed by a decoder goroutine.
type ImageSource struct {
	mu    sync.RWMutex
	frame image.Image
}

// NewImageSource returns an empty source; it becomes ready on the first Set.
func NewImageSource() *ImageSource { return &ImageSource{} }

// Set replaces the current frame. A nil image makes the source unready.
func (s *ImageSource) Set(img image.Image) {
	s.mu.Lock()
	s.frame = img
	s.mu.Unlock()
}

// Ready implements PixelSource.
func (s *ImageSource) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame != nil
}

// Frame implements PixelSource.
func (s *ImageSource) Frame() image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// SequenceSource loops over decoded frames at a fixed rate, the way a
// looping video element would.
type SequenceSource struct {
	frames []image.Image
	fps    float64
	start  time.Time
	now    func() time.Time
}

// NewSequenceSource plays frames at fps starting now. fps <= 0 means 30.
func NewSequenceSource(frames []image.Image, fps float64) *SequenceSource {
	if fps <= 0 {
		fps = 30
	}
	return &SequenceSource{frames: frames, fps: fps, start: time.Now(), now: time.Now}
}

// Ready implements PixelSource.
func (s *SequenceSource) Ready() bool { return len(s.frames) > 0 }

// Frame implements PixelSource.
func (s *SequenceSource) Frame() image.Image {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[s.Index()]
}

// KeyedFrame returns the current frame and its index. Sequence frames never
// change, so the index identifies the pixels and the render graph may cache
// their scaled copies.
func (s *SequenceSource) KeyedFrame() (image.Image, int) {
	if len(s.frames) == 0 {
		return nil, -1
	}
	i := s.Index()
	return s.frames[i], i
}

// keyedSource is implemented by sources with immutable, indexed frames.
type keyedSource interface {
	KeyedFrame() (image.Image, int)
}

// currentFrame returns the frame to upload and its cache key, or -1 when
// the pixels may change under the same image.
func currentFrame(src PixelSource) (image.Image, int) {
	if ks, ok := src.(keyedSource); ok {
		return ks.KeyedFrame()
	}
	return src.Frame(), -1
}

// Index returns the frame index for the current time.
func (s *SequenceSource) Index() int {
	if len(s.frames) == 0 {
		return 0
	}
	elapsed := s.now().Sub(s.start).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return int(elapsed*s.fps) % len(s.frames)
}

// sourceTexture is the graph input. Frames are fitted to its size on the CPU
// so that a degraded render size also shrinks the upload.
type sourceTexture struct {
	binding textureBinding
	staging *image.RGBA
	frames  *cache.Cache[frameKey, []byte]
}

type frameKey struct {
	index, w, h int
}

func newSourceTexture(device hal.Device, w, h int) (*sourceTexture, error) {
	b, err := createTextureBinding(device, "source_texture", uint32(w), uint32(h), offscreenFormat)
	if err != nil {
		return nil, err
	}
	frames := cache.New[frameKey, []byte](frameCacheBudget, func(p []byte) int { return len(p) })
	return &sourceTexture{binding: b, frames: frames}, nil
}

// resize reallocates the texture in place.
func (s *sourceTexture) resize(device hal.Device, w, h int) error {
	if int(s.binding.width) == w && int(s.binding.height) == h && s.binding.tex != nil {
		return nil
	}
	s.binding.destroy(device)
	b, err := createTextureBinding(device, "source_texture", uint32(w), uint32(h), offscreenFormat)
	if err != nil {
		return err
	}
	s.binding = b
	s.frames.Clear()
	return nil
}

// upload copies img into the texture, scaling when the sizes differ. A key
// >= 0 names an immutable frame whose scaled pixels are cached.
func (s *sourceTexture) upload(queue hal.Queue, img image.Image, key int) error {
	w, h := int(s.binding.width), int(s.binding.height)
	var pix []byte
	if key >= 0 {
		pix = s.frames.GetOrCreate(frameKey{key, w, h}, func() []byte {
			dst := image.NewRGBA(image.Rect(0, 0, w, h))
			scaleInto(dst, img)
			return dst.Pix
		})
	} else {
		pix = s.fit(img, w, h)
	}
	err := queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  s.binding.tex,
			MipLevel: 0,
			Aspect:   gputypes.TextureAspectAll,
		},
		pix,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(w * 4),
			RowsPerImage: uint32(h),
		},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("upload source frame: %w", err)
	}
	return nil
}

// fit returns tightly packed RGBA pixels of exactly w x h.
func (s *sourceTexture) fit(img image.Image, w, h int) []byte {
	if rgba, ok := img.(*image.RGBA); ok &&
		rgba.Rect.Dx() == w && rgba.Rect.Dy() == h && rgba.Stride == w*4 {
		return rgba.Pix
	}
	if s.staging == nil || s.staging.Rect.Dx() != w || s.staging.Rect.Dy() != h {
		s.staging = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	scaleInto(s.staging, img)
	return s.staging.Pix
}

// scaleInto fills dst with img, stretched to dst's bounds.
func scaleInto(dst *image.RGBA, img image.Image) {
	src := img.Bounds()
	if src.Dx() == dst.Rect.Dx() && src.Dy() == dst.Rect.Dy() {
		draw.Copy(dst, image.Point{}, img, src, draw.Src, nil)
		return
	}
	draw.ApproxBiLinear.Scale(dst, dst.Rect, img, src, draw.Src, nil)
}

// cacheStats reports the scaled frame cache.
func (s *sourceTexture) cacheStats() cache.Stats { return s.frames.Stats() }

func (s *sourceTexture) destroy(device hal.Device) {
	if s == nil {
		return
	}
	s.binding.destroy(device)
	s.staging = nil
	s.frames.Clear()
}
