//go:build !nogpu

package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestLoadFramesOrderAndFilter(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "002.png"), color.White)
	writePNG(t, filepath.Join(dir, "001.PNG"), color.Black)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	frames, err := loadFrames(dir)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	r, _, _, _ := frames[0].At(0, 0).RGBA()
	assert.Zero(t, r, "001 sorts first")
}

func TestLoadFramesErrors(t *testing.T) {
	_, err := loadFrames(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	empty := t.TempDir()
	_, err = loadFrames(empty)
	assert.Error(t, err)

	bad := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bad, "a.png"), []byte("not png"), 0o644))
	_, err = loadFrames(bad)
	assert.Error(t, err)
}

func TestTestPattern(t *testing.T) {
	frames := testPattern(64, 32, 4)
	require.Len(t, frames, 4)
	assert.Equal(t, image.Rect(0, 0, 64, 32), frames[0].Bounds())
	assert.NotEqual(t, frames[0].At(10, 10), frames[1].At(10, 10), "pattern drifts")

	assert.Len(t, testPattern(0, 0, 0), 1)
}
