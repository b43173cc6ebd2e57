package io

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func gradient(w, h int, alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: alpha})
		}
	}
	return img
}

func newTestIO(t *testing.T) (*ImageLoader, *ImageSaver) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewImageLoader(logger), NewImageSaver(logger)
}

func TestSaveAndLoadPNGKeepsAlpha(t *testing.T) {
	loader, saver := newTestIO(t)
	path := filepath.Join(t.TempDir(), "out.png")
	src := gradient(6, 4, 100)

	require.NoError(t, saver.SaveImage(src, path, SaveOptions{}))

	img, format, err := loader.LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	got, ok := img.(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, src.Pix, got.Pix)
}

func TestSaveJPEGFlattensOntoBackground(t *testing.T) {
	loader, saver := newTestIO(t)
	path := filepath.Join(t.TempDir(), "out.jpg")
	src := image.NewNRGBA(image.Rect(0, 0, 16, 16)) // fully transparent

	require.NoError(t, saver.SaveImage(src, path, SaveOptions{}))

	img, format, err := loader.LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	r, g, b, _ := img.At(8, 8).RGBA()
	assert.InDelta(t, 0xffff, int(r), 0x300)
	assert.InDelta(t, 0xffff, int(g), 0x300)
	assert.InDelta(t, 0xffff, int(b), 0x300)
}

func TestSaveJPEGIgnoresBackgroundAlpha(t *testing.T) {
	loader, saver := newTestIO(t)
	path := filepath.Join(t.TempDir(), "out.jpg")
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4)) // fully transparent

	bg := color.NRGBA{R: 255, G: 255, B: 255, A: 128}
	require.NoError(t, saver.SaveImage(src, path, SaveOptions{Background: bg}))

	img, _, err := loader.LoadImage(path)
	require.NoError(t, err)
	r, g, b, _ := img.At(2, 2).RGBA()
	assert.InDelta(t, 0xffff, int(r), 0x300)
	assert.InDelta(t, 0xffff, int(g), 0x300)
	assert.InDelta(t, 0xffff, int(b), 0x300)
}

func TestSaveRGBPixelFormatFlattensPNG(t *testing.T) {
	loader, saver := newTestIO(t)
	path := filepath.Join(t.TempDir(), "flat.png")
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})

	black := color.NRGBA{A: 255}
	require.NoError(t, saver.SaveImage(src, path, SaveOptions{PixelFormat: PixelRGB, Background: black}))

	img, _, err := loader.LoadImage(path)
	require.NoError(t, err)
	assert.True(t, img.(interface{ Opaque() bool }).Opaque())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, color.RGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, color.RGBA{A: 255}, color.RGBAModel.Convert(img.At(1, 1)))
}

func TestSaveFormatOverride(t *testing.T) {
	loader, saver := newTestIO(t)
	path := filepath.Join(t.TempDir(), "noext")
	require.NoError(t, saver.SaveImage(gradient(3, 3, 255), path, SaveOptions{Format: "bmp"}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = bmp.Decode(f)
	assert.NoError(t, err)

	assert.False(t, IsSupportedInput(path))
	_, _, err = loader.LoadImage(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSaveUnsupportedFormat(t *testing.T) {
	_, saver := newTestIO(t)
	path := filepath.Join(t.TempDir(), "out.xcf")

	err := saver.SaveImage(gradient(2, 2, 255), path, SaveOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.NoFileExists(t, path)
}

func TestOutputFormats(t *testing.T) {
	for _, f := range []string{"png", "jpg", "jpeg", "bmp", "tif", "tiff"} {
		assert.True(t, IsSupportedOutput(f), f)
	}
	assert.True(t, IsSupportedOutput(".PNG"))
	assert.Contains(t, OutputFormats(), "png")
}

func TestLoadDecodeErrors(t *testing.T) {
	loader, _ := newTestIO(t)
	dir := t.TempDir()
	garbage := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"garbage", garbage},
		{"missing", filepath.Join(dir, "missing.png")},
		{"extension", filepath.Join(dir, "notes.txt")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := loader.LoadImage(tt.path)
			assert.ErrorIs(t, err, ErrDecode)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tt.path, decodeErr.Path)
		})
	}
}

func TestValidateImageFile(t *testing.T) {
	loader, saver := newTestIO(t)
	path := filepath.Join(t.TempDir(), "ok.bmp")
	require.NoError(t, saver.SaveImage(gradient(5, 5, 255), path, SaveOptions{}))

	assert.NoError(t, loader.ValidateImageFile(path))
	assert.Error(t, loader.ValidateImageFile(filepath.Join(t.TempDir(), "nope.png")))
}

func TestDiskFramesRoundTrip(t *testing.T) {
	store, err := NewDiskFrames(t.TempDir(), false, nil)
	require.NoError(t, err)

	opaque := gradient(4, 3, 255)
	translucent := gradient(4, 3, 60)
	require.NoError(t, store.Append(opaque))
	require.NoError(t, store.Append(translucent))

	// later mutation must not leak into stored frames
	opaque.Pix[0] = 1

	require.Equal(t, 2, store.Len())
	f0, err := store.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, gradient(4, 3, 255).Pix, f0.Pix)

	f1, err := store.Frame(1)
	require.NoError(t, err)
	assert.Equal(t, translucent.Pix, f1.Pix)

	_, err = store.Frame(2)
	assert.Error(t, err)
}

func TestDiskFramesDiscard(t *testing.T) {
	store, err := NewDiskFrames(t.TempDir(), false, nil)
	require.NoError(t, err)
	require.NoError(t, store.Append(gradient(2, 2, 255)))

	require.NoError(t, store.Discard())
	assert.NoDirExists(t, store.Dir())
	assert.Zero(t, store.Len())
	assert.NoError(t, store.Discard(), "second discard is a no-op")
	assert.Error(t, store.Append(gradient(2, 2, 255)))
}

func TestDiskFramesKeep(t *testing.T) {
	store, err := NewDiskFrames(t.TempDir(), true, nil)
	require.NoError(t, err)
	require.NoError(t, store.Append(gradient(2, 2, 255)))

	require.NoError(t, store.Discard())
	assert.FileExists(t, filepath.Join(store.Dir(), "frame_00000.png"))
}
