package core

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/gift"
	"github.com/sirupsen/logrus"

	"droste-effect/internal/algorithms"
	"droste-effect/internal/layers"
)

// Options control one composite run.
type Options struct {
	// ShrinkFactor is the per-iteration scale, in (0, 1].
	ShrinkFactor float64
	// MaxIterations counts frames including the untouched source, at least 1.
	MaxIterations int
	// RotationStep in degrees, in [-360, 360]; accumulated across iterations.
	RotationStep float64
	// Filter names a registered resampler.
	Filter string
	// RotateInterpolation is nearest, linear or cubic. Empty means nearest.
	RotateInterpolation string
	// MinDimension is the smallest side a scaled copy may have. Zero means 1,
	// so the run stops once a side would be 0; 2 stops once a side would be 1.
	MinDimension int
}

// DefaultOptions mirrors the interactive defaults.
func DefaultOptions() Options {
	return Options{
		ShrinkFactor:  0.95,
		MaxIterations: 100,
		RotationStep:  5,
		Filter:        "bilinear",
		MinDimension:  1,
	}
}

func (o Options) withDefaults() Options {
	if o.MinDimension <= 0 {
		o.MinDimension = 1
	}
	if o.Filter == "" {
		o.Filter = "bilinear"
	}
	return o
}

// Validate rejects out-of-range options.
func (o Options) Validate() error {
	var problems []string
	if !(o.ShrinkFactor > 0 && o.ShrinkFactor <= 1) {
		problems = append(problems, fmt.Sprintf("shrink factor %v not in (0, 1]", o.ShrinkFactor))
	}
	if o.MaxIterations < 1 {
		problems = append(problems, fmt.Sprintf("max iterations %d below 1", o.MaxIterations))
	}
	if o.RotationStep < -360 || o.RotationStep > 360 {
		problems = append(problems, fmt.Sprintf("rotation step %v not in [-360, 360]", o.RotationStep))
	}
	if o.Filter != "" && !algorithms.IsValidResampler(o.Filter) {
		problems = append(problems, fmt.Sprintf("unknown resampling filter %q", o.Filter))
	}
	if _, err := algorithms.ParseInterpolation(o.RotateInterpolation); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(problems, "; "))
	}
	return nil
}

// Result of a composite run. Final is owned by the caller; Frames holds
// independent snapshots and Frames' last entry equals Final.
type Result struct {
	Final       *image.NRGBA
	Frames      FrameSequence
	Steps       []Step
	Termination Termination
}

// Compositor produces the recursive nesting effect.
type Compositor struct {
	opts      Options
	resampler algorithms.Resampler
	interp    gift.Interpolation
	logger    logrus.FieldLogger
	stats     *StageStats
	onStep    func(Step)
}

// NewCompositor validates opts and resolves the configured filter.
func NewCompositor(opts Options, logger logrus.FieldLogger) (*Compositor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	resampler, _ := algorithms.Get(opts.Filter)
	interp, _ := algorithms.ParseInterpolation(opts.RotateInterpolation)
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Compositor{
		opts:      opts,
		resampler: resampler,
		interp:    interp,
		logger:    logger,
		stats:     NewStageStats(logger),
	}, nil
}

// OnStep registers a callback invoked after each frame is stored,
// including frame 0.
func (c *Compositor) OnStep(fn func(Step)) {
	c.onStep = fn
}

// Stats exposes stage timings accumulated over all runs of c.
func (c *Compositor) Stats() *StageStats {
	return c.stats
}

// Options returns the validated options c was built with, defaults applied.
func (c *Compositor) Options() Options {
	return c.opts
}

// Composite runs the nesting loop over source and records every frame into
// store (a MemoryFrames when nil). On error the store is discarded and no
// result is returned. ctx is checked once per iteration.
func (c *Compositor) Composite(ctx context.Context, source image.Image, store FrameStore) (*Result, error) {
	if err := ValidateImage(source); err != nil {
		return nil, err
	}
	if store == nil {
		store = NewMemoryFrames()
	}

	pristine := ToWorking(source)
	w0, h0 := pristine.Rect.Dx(), pristine.Rect.Dy()
	log := c.logger.WithFields(logrus.Fields{
		"width":      w0,
		"height":     h0,
		"shrink":     c.opts.ShrinkFactor,
		"iterations": c.opts.MaxIterations,
		"rotation":   c.opts.RotationStep,
		"filter":     c.resampler.GetName(),
	})
	log.Debug("composite started")

	canvas := Clone(pristine)
	first := Step{Iteration: 0, Size: image.Pt(w0, h0)}
	if err := store.Append(canvas); err != nil {
		return nil, c.abort(store, &StepError{Iteration: 0, Stage: StageSnapshot, Err: err})
	}
	steps := []Step{first}
	c.notify(first)

	termination := TerminationMaxIterations
	for k := 1; k < c.opts.MaxIterations; k++ {
		if err := ctx.Err(); err != nil {
			return nil, c.abort(store, fmt.Errorf("composite canceled at iteration %d: %w", k, err))
		}

		step := Step{
			Iteration: k,
			Size:      SizeAt(w0, h0, c.opts.ShrinkFactor, k),
			Angle:     AngleAt(c.opts.RotationStep, k),
		}
		if !Fits(step.Size, c.opts.MinDimension) {
			termination = TerminationGeometry
			log.WithFields(logrus.Fields{"iteration": k, "size": step.Size.String()}).
				Debug("scaled copy too small, stopping")
			break
		}

		var err error
		canvas, err = c.step(canvas, pristine, step)
		if err != nil {
			return nil, c.abort(store, err)
		}

		start := time.Now()
		err = store.Append(canvas)
		c.stats.Record(k, StageSnapshot, time.Since(start), err)
		if err != nil {
			return nil, c.abort(store, &StepError{Iteration: k, Stage: StageSnapshot, Err: err})
		}
		steps = append(steps, step)

		log.WithFields(logrus.Fields{
			"iteration": k,
			"size":      step.Size.String(),
			"angle":     step.Angle,
		}).Debug("iteration composited")
		c.notify(step)
	}

	log.WithFields(logrus.Fields{
		"frames":      store.Len(),
		"termination": termination.String(),
	}).Debug("composite finished")

	return &Result{
		Final:       canvas,
		Frames:      store,
		Steps:       steps,
		Termination: termination,
	}, nil
}

// step applies one iteration. It takes ownership of canvas and returns the
// buffer to use from then on. Panics from image code are reported as a
// StepError for the stage that was running.
func (c *Compositor) step(canvas, pristine *image.NRGBA, s Step) (out *image.NRGBA, err error) {
	stage := StageResample
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &StepError{Iteration: s.Iteration, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	start := time.Now()
	resized, err := c.resampler.Resize(pristine, s.Size.X, s.Size.Y)
	c.stats.Record(s.Iteration, StageResample, time.Since(start), err)
	if err != nil {
		return nil, &StepError{Iteration: s.Iteration, Stage: StageResample, Err: err}
	}

	stage = StageRotate
	start = time.Now()
	rotated := algorithms.Rotate(resized, s.Angle, c.interp)
	if rotated.Rect.Empty() {
		err = errors.New("rotation produced an empty image")
	}
	c.stats.Record(s.Iteration, StageRotate, time.Since(start), err)
	if err != nil {
		return nil, &StepError{Iteration: s.Iteration, Stage: StageRotate, Err: err}
	}

	stage = StagePaste
	start = time.Now()
	layer, _ := layers.PlaceCentered(pristine.Rect.Size(), rotated)
	layers.Composite(canvas, layer)
	c.stats.Record(s.Iteration, StagePaste, time.Since(start), nil)

	return canvas, nil
}

func (c *Compositor) abort(store FrameStore, cause error) error {
	if err := store.Discard(); err != nil {
		c.logger.WithError(err).Warn("failed to discard frames")
	}
	c.logger.WithError(cause).Error("composite aborted")
	return cause
}

func (c *Compositor) notify(s Step) {
	if c.onStep != nil {
		c.onStep(s)
	}
}
