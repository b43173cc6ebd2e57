package core

import (
	"fmt"
	"image"
	"sync"
)

// FrameSequence is an ordered, read-only view of per-iteration snapshots.
// Callers must not modify the returned images.
type FrameSequence interface {
	Len() int
	Frame(i int) (*image.NRGBA, error)
}

// FrameStore receives snapshots during a run. Append must store an
// independent copy; the compositor keeps mutating the canvas it passes in.
// Discard releases everything the store holds.
type FrameStore interface {
	FrameSequence
	Append(frame *image.NRGBA) error
	Discard() error
}

// MemoryFrames keeps snapshots in memory.
type MemoryFrames struct {
	mu     sync.RWMutex
	frames []*image.NRGBA
}

func NewMemoryFrames() *MemoryFrames {
	return &MemoryFrames{}
}

func (m *MemoryFrames) Append(frame *image.NRGBA) error {
	snapshot := Clone(frame)
	m.mu.Lock()
	m.frames = append(m.frames, snapshot)
	m.mu.Unlock()
	return nil
}

func (m *MemoryFrames) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames)
}

func (m *MemoryFrames) Frame(i int) (*image.NRGBA, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.frames) {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", i, len(m.frames))
	}
	return m.frames[i], nil
}

func (m *MemoryFrames) Discard() error {
	m.mu.Lock()
	m.frames = nil
	m.mu.Unlock()
	return nil
}

// Last returns the final frame of seq.
func Last(seq FrameSequence) (*image.NRGBA, error) {
	if seq.Len() == 0 {
		return nil, fmt.Errorf("frame sequence is empty")
	}
	return seq.Frame(seq.Len() - 1)
}
