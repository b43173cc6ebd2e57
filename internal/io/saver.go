package io

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"droste-effect/internal/core"
)

// Encoder writes img to w in one output format.
type Encoder func(w io.Writer, img image.Image) error

// encoderEntry records whether a format can carry alpha.
type encoderEntry struct {
	encode Encoder
	alpha  bool
}

var (
	encodersMu sync.RWMutex
	encoders   = map[string]encoderEntry{}
)

// RegisterEncoder adds an output format. Formats without alpha receive
// images already flattened onto the save background.
func RegisterEncoder(format string, alpha bool, enc Encoder) {
	encodersMu.Lock()
	defer encodersMu.Unlock()
	encoders[strings.ToLower(format)] = encoderEntry{encode: enc, alpha: alpha}
}

func lookupEncoder(format string) (encoderEntry, bool) {
	encodersMu.RLock()
	defer encodersMu.RUnlock()
	e, ok := encoders[normalizeFormat(format)]
	return e, ok
}

// OutputFormats lists registered output formats, sorted.
func OutputFormats() []string {
	encodersMu.RLock()
	defer encodersMu.RUnlock()
	out := make([]string, 0, len(encoders))
	for f := range encoders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// IsSupportedOutput reports whether format (with or without a dot) can be written.
func IsSupportedOutput(format string) bool {
	_, ok := lookupEncoder(format)
	return ok
}

func normalizeFormat(format string) string {
	return strings.TrimPrefix(strings.ToLower(format), ".")
}

// Pixel formats accepted by SaveOptions.
const (
	PixelRGBA = "rgba"
	PixelRGB  = "rgb"
)

// SaveOptions control how the final image is written.
type SaveOptions struct {
	// Format overrides the extension of the target path.
	Format string
	// PixelFormat rgb flattens onto Background even for formats with alpha.
	PixelFormat string
	Background  color.Color
}

// ImageSaver writes images using the registered encoders.
type ImageSaver struct {
	logger logrus.FieldLogger
}

func NewImageSaver(logger logrus.FieldLogger) *ImageSaver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImageSaver{logger: logger}
}

// SaveImage encodes img to path. The target file is only left behind when
// encoding succeeds.
func (s *ImageSaver) SaveImage(img image.Image, path string, opts SaveOptions) (err error) {
	format := opts.Format
	if format == "" {
		format = getFileExtension(path)
	}
	entry, ok := lookupEncoder(format)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("cannot save empty image")
	}

	out := img
	if !entry.alpha || strings.EqualFold(opts.PixelFormat, PixelRGB) {
		bg := opts.Background
		if bg == nil {
			bg = color.White
		}
		out = core.Flatten(img, bg)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	w := bufio.NewWriter(f)
	if err = entry.encode(w, out); err != nil {
		return fmt.Errorf("encode %s: %w", normalizeFormat(format), err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	b := img.Bounds()
	s.logger.WithFields(logrus.Fields{
		"filepath": path,
		"format":   normalizeFormat(format),
		"width":    b.Dx(),
		"height":   b.Dy(),
	}).Info("Image saved successfully")
	return nil
}

func encodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
}

func encodeTIFF(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

func init() {
	RegisterEncoder("png", true, png.Encode)
	RegisterEncoder("jpg", false, encodeJPEG)
	RegisterEncoder("jpeg", false, encodeJPEG)
	RegisterEncoder("bmp", false, bmp.Encode)
	RegisterEncoder("tif", true, encodeTIFF)
	RegisterEncoder("tiff", true, encodeTIFF)
}
