//go:build !nogpu

package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"

	// Decoders are registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/crimsonfx/internal/parallel"
)

var frameExts = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// loadFrames decodes every image in dir in lexical file name order, one
// file per pool worker. Files with other extensions are skipped.
func loadFrames(dir string) ([]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(frameExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}

	pool := parallel.NewWorkerPool(0)
	defer pool.Close()
	return parallel.Map(pool, paths, decodeFile)
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// testPattern renders n frames of a drifting diagonal gradient with a bright
// bar, enough structure for every pass to show.
func testPattern(w, h, n int) []image.Image {
	w, h, n = max(w, 16), max(h, 16), max(n, 1)
	frames := make([]image.Image, n)
	for i := range n {
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		shift := i * w / n
		for y := range h {
			for x := range w {
				v := uint8(min(255, (x+y+shift)*255/(w+h)))
				c := color.NRGBA{R: v, G: v / 2, B: 255 - v, A: 255}
				if (x+shift)%w < w/12 {
					c = color.NRGBA{R: 255, G: 240, B: 220, A: 255}
				}
				img.SetNRGBA(x, y, c)
			}
		}
		frames[i] = img
	}
	return frames
}
