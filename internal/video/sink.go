// Frame sequence to video assembly
package video

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"droste-effect/internal/core"
)

// Sink receives the frames of one video file in display order.
type Sink interface {
	WriteFrame(img image.Image) error
	// Close finalises the file. It must be called even after a failed write.
	Close() error
}

// SinkFactory opens sinks for a given output path, frame rate and frame size.
type SinkFactory interface {
	Open(ctx context.Context, path string, fps float64, size image.Point) (Sink, error)
	Name() string
}

// BackendConfig carries the settings a sink backend may need.
type BackendConfig struct {
	Binary     string
	Codec      string
	Background color.Color
	Logger     logrus.FieldLogger
}

// BackendFunc builds a SinkFactory from settings.
type BackendFunc func(cfg BackendConfig) SinkFactory

var (
	backendsMu sync.RWMutex
	backends   = map[string]BackendFunc{}
)

// RegisterBackend makes a sink backend selectable by name.
func RegisterBackend(name string, fn BackendFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[strings.ToLower(name)] = fn
}

// NewBackend looks up a registered backend.
func NewBackend(name string, cfg BackendConfig) (SinkFactory, error) {
	backendsMu.RLock()
	fn, ok := backends[strings.ToLower(name)]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown video backend %q (available: %s)", name, strings.Join(Backends(), ", "))
	}
	cfg.Background = core.Opaque(cfg.Background)
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return fn(cfg), nil
}

// Backends lists registered backend names, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
