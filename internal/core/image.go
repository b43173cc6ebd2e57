// Working-format buffers and the source image holder
package core

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"strings"
	"sync"
)

// MaxDimension bounds either side of a source image to keep the canvas and
// every snapshot within reasonable memory.
const MaxDimension = 16384

// ToWorking converts any decoded image into the RGBA working format with
// bounds at the origin. The result never aliases img.
func ToWorking(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Clone returns an independent copy of img.
func Clone(img *image.NRGBA) *image.NRGBA {
	dst := &image.NRGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(dst.Pix, img.Pix)
	return dst
}

// Opaque returns c with its alpha forced to 255. A nil colour is white.
func Opaque(c color.Color) color.NRGBA {
	if c == nil {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 255
	return n
}

// Flatten composites img over an opaque background, for targets without an
// alpha channel. Any alpha in background is ignored.
func Flatten(img image.Image, background color.Color) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(Opaque(background)), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// ValidateImage checks a source for basic requirements.
func ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: image is nil", ErrInvalidSource)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: invalid dimensions: %dx%d", ErrInvalidSource, b.Dx(), b.Dy())
	}
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		return fmt.Errorf("%w: image too large: %dx%d (max: %d)", ErrInvalidSource, b.Dx(), b.Dy(), MaxDimension)
	}
	return nil
}

// ImageData holds a loaded source in working format together with its
// metadata. It is safe for concurrent use by the GUI and a background run.
type ImageData struct {
	mu       sync.RWMutex
	original *image.NRGBA
	filepath string
	metadata ImageMetadata
}

// ImageMetadata contains image information
type ImageMetadata struct {
	Width  int
	Height int
	Format string
	Opaque bool
}

func NewImageData() *ImageData {
	return &ImageData{}
}

// SetOriginal validates img and stores a working copy of it.
func (d *ImageData) SetOriginal(img image.Image, path string) error {
	if err := ValidateImage(img); err != nil {
		return err
	}
	working := ToWorking(img)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.original = working
	d.filepath = path
	d.metadata = ImageMetadata{
		Width:  working.Rect.Dx(),
		Height: working.Rect.Dy(),
		Format: formatFromPath(path),
		Opaque: working.Opaque(),
	}
	return nil
}

// GetOriginal returns a copy of the stored source, or nil if none is loaded.
func (d *ImageData) GetOriginal() *image.NRGBA {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.original == nil {
		return nil
	}
	return Clone(d.original)
}

func (d *ImageData) HasImage() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.original != nil
}

func (d *ImageData) GetMetadata() ImageMetadata {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.metadata
}

func (d *ImageData) GetFilepath() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filepath
}

// Clear drops the loaded source.
func (d *ImageData) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.original = nil
	d.filepath = ""
	d.metadata = ImageMetadata{}
}

func formatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}
