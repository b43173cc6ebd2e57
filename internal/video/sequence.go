package video

import (
	"fmt"
	"image"

	"droste-effect/internal/core"
)

// Reverse returns a view of seq in reverse order. seq is not copied.
func Reverse(seq core.FrameSequence) core.FrameSequence {
	return reversed{seq}
}

type reversed struct {
	seq core.FrameSequence
}

func (r reversed) Len() int { return r.seq.Len() }

func (r reversed) Frame(i int) (*image.NRGBA, error) {
	return r.seq.Frame(r.seq.Len() - 1 - i)
}

// Concat joins sequences end to end as a single view.
func Concat(seqs ...core.FrameSequence) core.FrameSequence {
	return concat(seqs)
}

type concat []core.FrameSequence

func (c concat) Len() int {
	n := 0
	for _, s := range c {
		n += s.Len()
	}
	return n
}

func (c concat) Frame(i int) (*image.NRGBA, error) {
	if i < 0 {
		return nil, fmt.Errorf("frame %d out of range", i)
	}
	orig := i
	for _, s := range c {
		if i < s.Len() {
			return s.Frame(i)
		}
		i -= s.Len()
	}
	return nil, fmt.Errorf("frame %d out of range [0,%d)", orig, c.Len())
}

// Loop is seq followed by its reverse, for a mirrored playback.
func Loop(seq core.FrameSequence) core.FrameSequence {
	return Concat(seq, Reverse(seq))
}
