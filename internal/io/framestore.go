package io

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"droste-effect/internal/core"
)

// DiskFrames spills frame snapshots to lossless PNG files in a private
// temporary directory. It implements core.FrameStore.
type DiskFrames struct {
	mu      sync.RWMutex
	dir     string
	count   int
	keep    bool
	closed  bool
	encoder png.Encoder
	logger  logrus.FieldLogger
}

// NewDiskFrames creates a fresh directory under parent (os.TempDir when empty).
// With keep set, Discard leaves the files on disk.
func NewDiskFrames(parent string, keep bool, logger logrus.FieldLogger) (*DiskFrames, error) {
	dir, err := os.MkdirTemp(parent, "droste-frames-*")
	if err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithField("dir", dir).Debug("frame directory created")
	return &DiskFrames{
		dir:     dir,
		keep:    keep,
		encoder: png.Encoder{CompressionLevel: png.BestSpeed},
		logger:  logger,
	}, nil
}

// Dir is the directory holding the frames.
func (d *DiskFrames) Dir() string { return d.dir }

func (d *DiskFrames) framePath(i int) string {
	return filepath.Join(d.dir, fmt.Sprintf("frame_%05d.png", i))
}

func (d *DiskFrames) Append(frame *image.NRGBA) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("frame store discarded")
	}

	path := d.framePath(d.count)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if err := d.encoder.Encode(w, frame); err != nil {
		return fmt.Errorf("encode frame %d: %w", d.count, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write frame %d: %w", d.count, err)
	}
	d.count++
	return nil
}

func (d *DiskFrames) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

// Frame decodes snapshot i back into working format.
func (d *DiskFrames) Frame(i int) (*image.NRGBA, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i < 0 || i >= d.count {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", i, d.count)
	}

	f, err := os.Open(d.framePath(i))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", i, err)
	}
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba, nil
	}
	return core.ToWorking(img), nil
}

// Discard removes the frame directory unless the store was created with keep.
// It is safe to call more than once.
func (d *DiskFrames) Discard() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.count = 0

	if d.keep {
		d.logger.WithField("dir", d.dir).Info("keeping frame directory")
		return nil
	}
	if err := os.RemoveAll(d.dir); err != nil {
		return fmt.Errorf("remove frame directory %s: %w", d.dir, err)
	}
	return nil
}

var _ core.FrameStore = (*DiskFrames)(nil)
