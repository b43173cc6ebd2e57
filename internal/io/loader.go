// Image decoding, encoding and on-disk frame storage
package io

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode marks unreadable or undecodable source images.
	ErrDecode = errors.New("cannot decode image")
	// ErrUnsupportedFormat is returned for extensions with no codec.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// DecodeError wraps a decode failure with the offending path.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ImageLoader handles image file operations
type ImageLoader struct {
	logger logrus.FieldLogger
}

func NewImageLoader(logger logrus.FieldLogger) *ImageLoader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImageLoader{logger: logger}
}

// LoadImage decodes the file at path and reports the detected format.
// The format is sniffed from content; the extension only gates the attempt.
func (il *ImageLoader) LoadImage(path string) (image.Image, string, error) {
	il.logger.WithField("filepath", path).Debug("Loading image")

	if !IsSupportedInput(path) {
		return nil, "", &DecodeError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, getFileExtension(path))}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	img, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, "", &DecodeError{Path: path, Err: err}
	}

	b := img.Bounds()
	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"format":   format,
		"width":    b.Dx(),
		"height":   b.Dy(),
	}).Info("Image loaded successfully")

	return img, format, nil
}

// ValidateImageFile checks that path names a decodable image of non-zero size
// without decoding the pixel data.
func (il *ImageLoader) ValidateImageFile(path string) error {
	if !IsSupportedInput(path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return &DecodeError{Path: path, Err: fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	return nil
}

var inputExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedInput reports whether path has a decodable extension.
func IsSupportedInput(path string) bool {
	ext := strings.ToLower(getFileExtension(path))
	for _, e := range inputExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// GetSupportedFormats lists decodable extensions, as used by file pickers.
func GetSupportedFormats() []string {
	out := make([]string, len(inputExtensions))
	copy(out, inputExtensions)
	return out
}

func getFileExtension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
