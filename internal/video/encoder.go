package video

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"droste-effect/internal/core"
)

var (
	// ErrNoFrames is returned when there is nothing to encode.
	ErrNoFrames = errors.New("no frames to encode")
	// ErrInvalidJob is returned for a non-positive frame rate or missing paths.
	ErrInvalidJob = errors.New("invalid encode job")
)

// Kind identifies an output artifact.
type Kind string

const (
	KindForward Kind = "forward"
	KindReverse Kind = "reverse"
)

// State of an artifact during a run.
type State int

const (
	StateIdle State = iota
	StateEncodingForward
	StateEncodingReverse
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEncodingForward:
		return "encoding_forward"
	case StateEncodingReverse:
		return "encoding_reverse"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EncodeError describes why one artifact could not be produced.
type EncodeError struct {
	Kind  Kind
	Path  string
	Frame int // -1 when the failure is not tied to a frame
	Err   error
}

func (e *EncodeError) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("encode %s video %s: frame %d: %v", e.Kind, e.Path, e.Frame, e.Err)
	}
	return fmt.Sprintf("encode %s video %s: %v", e.Kind, e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Job describes one encode request.
type Job struct {
	Frames core.FrameSequence
	FPS    float64
	// IncludeReverse appends the reversed frames to the forward video.
	IncludeReverse bool
	// ReverseOnly also writes a separate video of the reversed frames.
	ReverseOnly bool
	ForwardPath string
	ReversePath string
}

func (j Job) validate() error {
	if j.Frames == nil || j.Frames.Len() == 0 {
		return ErrNoFrames
	}
	if !(j.FPS > 0) {
		return fmt.Errorf("%w: fps must be positive, got %v", ErrInvalidJob, j.FPS)
	}
	if j.ForwardPath == "" {
		return fmt.Errorf("%w: forward path is empty", ErrInvalidJob)
	}
	if j.ReverseOnly && j.ReversePath == "" {
		return fmt.Errorf("%w: reverse path is empty", ErrInvalidJob)
	}
	return nil
}

// Artifact is the outcome of writing one video file.
type Artifact struct {
	Kind     Kind
	Path     string
	Frames   int
	Duration time.Duration
	State    State
	Err      error
}

// OK reports whether the file was fully written.
func (a *Artifact) OK() bool {
	return a != nil && a.State == StateDone
}

// Artifacts holds the per-artifact results of a run. Reverse is nil when no
// reverse-only video was requested.
type Artifacts struct {
	Forward *Artifact
	Reverse *Artifact
}

// All returns the requested artifacts in encode order.
func (a *Artifacts) All() []*Artifact {
	out := []*Artifact{a.Forward}
	if a.Reverse != nil {
		out = append(out, a.Reverse)
	}
	return out
}

// State is Done when every requested artifact succeeded, otherwise Failed.
func (a *Artifacts) State() State {
	for _, art := range a.All() {
		if !art.OK() {
			return StateFailed
		}
	}
	return StateDone
}

// Err joins the errors of failed artifacts.
func (a *Artifacts) Err() error {
	var errs []error
	for _, art := range a.All() {
		if art.Err != nil {
			errs = append(errs, art.Err)
		}
	}
	return errors.Join(errs...)
}

// Encoder writes frame sequences through a SinkFactory.
type Encoder struct {
	factory SinkFactory
	logger  logrus.FieldLogger

	mu      sync.Mutex
	onState func(kind Kind, state State)
	onFrame func(kind Kind, done, total int)
}

func NewEncoder(factory SinkFactory, logger logrus.FieldLogger) *Encoder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Encoder{factory: factory, logger: logger}
}

// OnState registers a callback for artifact state transitions.
func (e *Encoder) OnState(fn func(kind Kind, state State)) {
	e.mu.Lock()
	e.onState = fn
	e.mu.Unlock()
}

// OnFrame registers a progress callback invoked after each written frame.
func (e *Encoder) OnFrame(fn func(kind Kind, done, total int)) {
	e.mu.Lock()
	e.onFrame = fn
	e.mu.Unlock()
}

// Encode writes the forward video and, when requested, the reverse-only
// video. Each artifact succeeds or fails on its own; a forward failure never
// prevents the reverse attempt. The returned error is reserved for an invalid
// job. ctx is checked before every frame.
func (e *Encoder) Encode(ctx context.Context, job Job) (*Artifacts, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}

	forward := job.Frames
	if job.IncludeReverse {
		forward = Loop(job.Frames)
	}

	arts := &Artifacts{}
	arts.Forward = e.write(ctx, KindForward, StateEncodingForward, job.ForwardPath, forward, job.FPS)
	if job.ReverseOnly {
		arts.Reverse = e.write(ctx, KindReverse, StateEncodingReverse, job.ReversePath, Reverse(job.Frames), job.FPS)
	}
	return arts, nil
}

func (e *Encoder) write(ctx context.Context, kind Kind, encoding State, path string, seq core.FrameSequence, fps float64) *Artifact {
	art := &Artifact{Kind: kind, Path: path, State: StateIdle}
	log := e.logger.WithFields(logrus.Fields{
		"artifact": string(kind),
		"path":     path,
		"backend":  e.factory.Name(),
	})

	e.transition(art, encoding)
	start := time.Now()

	frames, err := e.writeFrames(ctx, kind, path, seq, fps)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			log.WithError(rmErr).Warn("failed to remove partial video")
		}
		art.Err = err
		e.transition(art, StateFailed)
		log.WithError(err).Error("video encoding failed")
		return art
	}

	art.Frames = frames
	art.Duration = time.Duration(math.Round(float64(frames) / fps * float64(time.Second)))
	e.transition(art, StateDone)
	log.WithFields(logrus.Fields{
		"frames":  frames,
		"length":  art.Duration.String(),
		"elapsed": time.Since(start).String(),
	}).Info("video encoded")
	return art
}

func (e *Encoder) writeFrames(ctx context.Context, kind Kind, path string, seq core.FrameSequence, fps float64) (n int, err error) {
	total := seq.Len()
	first, err := seq.Frame(0)
	if err != nil {
		return 0, &EncodeError{Kind: kind, Path: path, Frame: 0, Err: err}
	}

	sink, err := e.factory.Open(ctx, path, fps, first.Rect.Size())
	if err != nil {
		return 0, &EncodeError{Kind: kind, Path: path, Frame: -1, Err: err}
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = &EncodeError{Kind: kind, Path: path, Frame: -1, Err: cerr}
		}
	}()

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return i, &EncodeError{Kind: kind, Path: path, Frame: i, Err: err}
		}
		frame := first
		if i > 0 {
			if frame, err = seq.Frame(i); err != nil {
				return i, &EncodeError{Kind: kind, Path: path, Frame: i, Err: err}
			}
		}
		if err := sink.WriteFrame(frame); err != nil {
			return i, &EncodeError{Kind: kind, Path: path, Frame: i, Err: err}
		}
		e.progress(kind, i+1, total)
	}
	return total, nil
}

func (e *Encoder) transition(art *Artifact, to State) {
	art.State = to
	e.mu.Lock()
	fn := e.onState
	e.mu.Unlock()
	if fn != nil {
		fn(art.Kind, to)
	}
}

func (e *Encoder) progress(kind Kind, done, total int) {
	e.mu.Lock()
	fn := e.onFrame
	e.mu.Unlock()
	if fn != nil {
		fn(kind, done, total)
	}
}
