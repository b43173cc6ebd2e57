// Runs the compositor and encoder for one or many source images
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"droste-effect/internal/config"
	"droste-effect/internal/core"
	imageio "droste-effect/internal/io"
	"droste-effect/internal/journal"
	"droste-effect/internal/metrics"
	"droste-effect/internal/video"
)

// Stages reported through Hooks.OnStage.
const (
	StageDecode    = "decode"
	StageComposite = "composite"
	StageSave      = "save"
	StageMetrics   = "metrics"
	StageEncode    = "encode"
	StageDone      = "done"
	StageFailed    = "failed"
)

// Request is one source image with the configuration to apply.
type Request struct {
	Source string
	Config config.Config
}

// Outcome describes a run that produced a final image. Video failures are
// reported per artifact and do not turn the outcome into an error.
type Outcome struct {
	RunID       string
	Source      string
	Params      config.Params
	Paths       OutputPaths
	Frames      int
	Steps       []core.Step
	Termination core.Termination
	Artifacts   *video.Artifacts
	Metrics     *metrics.SequenceReport
	Started     time.Time
	Elapsed     time.Duration
}

// Status is ok when every requested video was written, partial otherwise.
func (o *Outcome) Status() string {
	if o.Artifacts != nil && o.Artifacts.State() != video.StateDone {
		return journal.StatusPartial
	}
	return journal.StatusOK
}

// Hooks receive progress notifications. All fields are optional and may be
// called from a background goroutine during RunAll.
type Hooks struct {
	OnStage       func(runID, source, stage string)
	OnStep        func(runID string, step core.Step, planned int)
	OnEncodeFrame func(runID string, kind video.Kind, done, total int)
}

// SinkFactoryFunc selects a video backend for the given settings.
type SinkFactoryFunc func(settings config.Settings, logger logrus.FieldLogger) (video.SinkFactory, error)

// Runner executes requests. It is safe to reuse across runs.
type Runner struct {
	logger    logrus.FieldLogger
	loader    *imageio.ImageLoader
	saver     *imageio.ImageSaver
	evaluator *metrics.Evaluator
	journal   *journal.Journal
	hooks     Hooks
	sinks     SinkFactoryFunc
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

func WithJournal(j *journal.Journal) Option { return func(r *Runner) { r.journal = j } }

func WithHooks(h Hooks) Option { return func(r *Runner) { r.hooks = h } }

func WithSinkFactory(fn SinkFactoryFunc) Option { return func(r *Runner) { r.sinks = fn } }

func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

func NewRunner(logger logrus.FieldLogger, opts ...Option) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &Runner{
		logger:    logger,
		loader:    imageio.NewImageLoader(logger),
		saver:     imageio.NewImageSaver(logger),
		evaluator: metrics.NewEvaluator(),
		sinks:     DefaultSinkFactory,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultSinkFactory resolves the configured video backend.
func DefaultSinkFactory(s config.Settings, logger logrus.FieldLogger) (video.SinkFactory, error) {
	bg, err := config.ParseColor(s.Background)
	if err != nil {
		return nil, err
	}
	backend := s.VideoBackend
	if backend == "" {
		backend = "ffmpeg"
	}
	return video.NewBackend(backend, video.BackendConfig{
		Binary:     s.FFmpegBinary,
		Codec:      s.Codec,
		Background: bg,
		Logger:     logger,
	})
}

// composed is a request whose image has been produced and saved, waiting
// for its videos.
type composed struct {
	runID   string
	log     logrus.FieldLogger
	req     Request
	paths   OutputPaths
	result  *core.Result
	store   core.FrameStore
	report  *metrics.SequenceReport
	started time.Time
}

// Run processes one request end to end.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	c, err := r.compose(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.encode(ctx, c), nil
}

func (r *Runner) compose(ctx context.Context, req Request) (_ *composed, err error) {
	runID := uuid.Must(uuid.NewV7()).String()
	started := r.now()
	log := r.logger.WithFields(logrus.Fields{"run_id": runID, "source": req.Source})
	params, settings := req.Config.Params, req.Config.Settings

	defer func() {
		if err != nil {
			r.stage(runID, req.Source, StageFailed)
			log.WithError(err).Error("run failed")
			r.record(ctx, log, journal.Run{
				ID: runID, StartedAt: started, FinishedAt: r.now(), Source: req.Source,
				Shrink: params.ShrinkFactor, Iterations: params.MaxIterations,
				Rotation: params.RotationAngle, Resampling: params.Resampling,
				Status: journal.StatusFailed, Error: err.Error(),
			})
		}
	}()

	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	// webp needs the gocv build
	if !imageio.IsSupportedOutput(params.OutputFormat) {
		return nil, fmt.Errorf("%w: %s (available: %s)", imageio.ErrUnsupportedFormat,
			params.OutputFormat, strings.Join(imageio.OutputFormats(), ", "))
	}
	bg, _ := config.ParseColor(settings.Background)

	r.stage(runID, req.Source, StageDecode)
	src, format, err := r.loader.LoadImage(req.Source)
	if err != nil {
		return nil, err
	}
	log.WithField("format", format).Info("source decoded")

	comp, err := core.NewCompositor(req.Config.CompositorOptions(), log)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	planned, _ := core.Plan(b.Dx(), b.Dy(), comp.Options())
	comp.OnStep(func(s core.Step) {
		if r.hooks.OnStep != nil {
			r.hooks.OnStep(runID, s, len(planned))
		}
	})

	store, err := r.newStore(settings, log)
	if err != nil {
		return nil, err
	}

	r.stage(runID, req.Source, StageComposite)
	result, err := comp.Composite(ctx, src, store)
	if err != nil {
		// the compositor already discarded the store
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"frames":      result.Frames.Len(),
		"termination": result.Termination.String(),
	}).Info("composite complete")
	log.WithField("stages", comp.Stats().GetStats()).Debug("composite timings")

	outDir := settings.OutputDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		r.release(store, log)
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	paths := NewOutputPaths(outDir, req.Source, params.OutputFormat, started,
		params.SaveTimelapse, params.SaveTimelapse && params.SaveReversedClip)

	r.stage(runID, req.Source, StageSave)
	err = r.saver.SaveImage(result.Final, paths.Image, imageio.SaveOptions{
		Format:      params.OutputFormat,
		PixelFormat: params.PixelFormat,
		Background:  bg,
	})
	if err != nil {
		r.release(store, log)
		return nil, fmt.Errorf("save final image: %w", err)
	}

	c := &composed{
		runID: runID, log: log, req: req, paths: paths,
		result: result, store: store, started: started,
	}

	if settings.Metrics {
		r.stage(runID, req.Source, StageMetrics)
		report, merr := r.evaluator.EvaluateSequence(ctx, result.Frames)
		if merr != nil {
			log.WithError(merr).Warn("frame metrics skipped")
		} else {
			c.report = &report
			log.WithFields(logrus.Fields{
				"mean_psnr": report.Mean("psnr"),
				"converged": report.Converged,
			}).Info("frame metrics computed")
		}
	}
	return c, nil
}

// encode writes the requested videos and always releases the frame store.
func (r *Runner) encode(ctx context.Context, c *composed) *Outcome {
	defer r.release(c.store, c.log)
	params := c.req.Config.Params

	out := &Outcome{
		RunID:       c.runID,
		Source:      c.req.Source,
		Params:      params,
		Paths:       c.paths,
		Frames:      c.result.Frames.Len(),
		Steps:       c.result.Steps,
		Termination: c.result.Termination,
		Metrics:     c.report,
		Started:     c.started,
	}

	if params.SaveTimelapse {
		r.stage(c.runID, c.req.Source, StageEncode)
		out.Artifacts = r.encodeVideos(ctx, c)
	}

	out.Elapsed = r.now().Sub(c.started)
	r.stage(c.runID, c.req.Source, StageDone)
	c.log.WithFields(logrus.Fields{
		"status":  out.Status(),
		"elapsed": out.Elapsed.String(),
	}).Info("run finished")

	run := journal.Run{
		ID: c.runID, StartedAt: c.started, FinishedAt: c.started.Add(out.Elapsed),
		Source: c.req.Source, Output: c.paths.Image,
		Shrink: params.ShrinkFactor, Iterations: params.MaxIterations,
		Rotation: params.RotationAngle, Resampling: params.Resampling,
		Frames: out.Frames, Termination: out.Termination.String(), Status: out.Status(),
	}
	if out.Artifacts != nil {
		for _, a := range out.Artifacts.All() {
			rec := journal.Artifact{Kind: string(a.Kind), Path: a.Path, Frames: a.Frames, OK: a.OK()}
			if a.Err != nil {
				rec.Error = a.Err.Error()
			}
			run.Artifacts = append(run.Artifacts, rec)
		}
	}
	r.record(ctx, c.log, run)
	return out
}

func (r *Runner) encodeVideos(ctx context.Context, c *composed) *video.Artifacts {
	params := c.req.Config.Params
	failed := func(err error) *video.Artifacts {
		arts := &video.Artifacts{Forward: &video.Artifact{
			Kind: video.KindForward, Path: c.paths.Timelapse, State: video.StateFailed,
			Err: &video.EncodeError{Kind: video.KindForward, Path: c.paths.Timelapse, Frame: -1, Err: err},
		}}
		c.log.WithError(err).Error("video encoding skipped")
		return arts
	}

	factory, err := r.sinks(c.req.Config.Settings, c.log)
	if err != nil {
		return failed(err)
	}
	enc := video.NewEncoder(factory, c.log)
	if r.hooks.OnEncodeFrame != nil {
		enc.OnFrame(func(kind video.Kind, done, total int) {
			r.hooks.OnEncodeFrame(c.runID, kind, done, total)
		})
	}

	arts, err := enc.Encode(ctx, video.Job{
		Frames:         c.result.Frames,
		FPS:            float64(params.FPS),
		IncludeReverse: params.IncludeReverse,
		ReverseOnly:    params.SaveReversedClip,
		ForwardPath:    c.paths.Timelapse,
		ReversePath:    c.paths.ReversedClip,
	})
	if err != nil {
		return failed(err)
	}
	return arts
}

func (r *Runner) newStore(s config.Settings, log logrus.FieldLogger) (core.FrameStore, error) {
	if !s.SpillFrames {
		return core.NewMemoryFrames(), nil
	}
	return imageio.NewDiskFrames(s.FramesDir, s.KeepFrames, log)
}

// release frees temporary frame storage. Failures are logged, never returned.
func (r *Runner) release(store core.FrameStore, log logrus.FieldLogger) {
	if err := store.Discard(); err != nil {
		log.WithError(err).Warn("failed to clean up temporary frames")
	}
}

func (r *Runner) record(ctx context.Context, log logrus.FieldLogger, run journal.Run) {
	if r.journal == nil {
		return
	}
	// a canceled run is still worth recording
	if err := r.journal.Record(context.WithoutCancel(ctx), run); err != nil {
		log.WithError(err).Warn("failed to record run in journal")
	}
}

func (r *Runner) stage(runID, source, stage string) {
	if r.hooks.OnStage != nil {
		r.hooks.OnStage(runID, source, stage)
	}
}

// IsInputError reports whether err stems from the request itself rather
// than from processing.
func IsInputError(err error) bool {
	return errors.Is(err, imageio.ErrDecode) ||
		errors.Is(err, imageio.ErrUnsupportedFormat) ||
		errors.Is(err, config.ErrInvalidParams) ||
		errors.Is(err, core.ErrInvalidOptions) ||
		errors.Is(err, core.ErrInvalidSource)
}
