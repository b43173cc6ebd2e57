package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"droste-effect/internal/algorithms"
	"droste-effect/internal/config"
)

// paramFlags mirrors config.Config on the command line. Only flags the user
// actually set override the configuration file.
type paramFlags struct {
	shrink           float64
	iterations       int
	timelapse        bool
	fps              int
	includeReverse   bool
	saveReversedClip bool
	resampling       string
	rotation         float64
	format           string
	pixelFormat      string
	rotateInterp     string

	outputDir   string
	background  string
	backend     string
	ffmpeg      string
	codec       string
	spill       bool
	framesDir   string
	keepFrames  bool
	journalPath string
	strict      bool
	metrics     bool
}

func bindParamFlags(cmd *cobra.Command, f *paramFlags) {
	d := config.Default()
	fs := cmd.Flags()
	fs.Float64VarP(&f.shrink, "shrink", "s", d.Params.ShrinkFactor, "shrink factor per iteration (0 < s <= 1)")
	fs.IntVarP(&f.iterations, "iterations", "n", d.Params.MaxIterations, "maximum number of frames")
	fs.BoolVar(&f.timelapse, "timelapse", d.Params.SaveTimelapse, "save a time-lapse video of the iterations")
	fs.IntVar(&f.fps, "fps", d.Params.FPS, "video frame rate")
	fs.BoolVar(&f.includeReverse, "include-reverse", d.Params.IncludeReverse, "append the reversed frames to the time-lapse")
	fs.BoolVar(&f.saveReversedClip, "reversed-clip", d.Params.SaveReversedClip, "save a separate reversed clip")
	fs.StringVarP(&f.resampling, "resampling", "r", d.Params.Resampling,
		"resampling filter ("+strings.Join(algorithms.Names(), ", ")+")")
	fs.Float64VarP(&f.rotation, "rotation", "a", d.Params.RotationAngle, "rotation step in degrees, counter-clockwise")
	fs.StringVarP(&f.format, "format", "f", d.Params.OutputFormat,
		"output image format ("+strings.Join(config.OutputFormats, ", ")+")")
	fs.StringVar(&f.pixelFormat, "pixel-format", d.Params.PixelFormat, "output pixel format (rgba, rgb)")
	fs.StringVar(&f.rotateInterp, "rotate-interpolation", d.Params.RotateInterpolation,
		"rotation interpolation ("+strings.Join(algorithms.InterpolationNames(), ", ")+")")

	fs.StringVarP(&f.outputDir, "output-dir", "o", d.Settings.OutputDir, "directory for results")
	fs.StringVar(&f.background, "background", d.Settings.Background, "flatten colour for formats without alpha")
	fs.StringVar(&f.backend, "video-backend", d.Settings.VideoBackend, "video backend (ffmpeg, gocv)")
	fs.StringVar(&f.ffmpeg, "ffmpeg", d.Settings.FFmpegBinary, "ffmpeg executable")
	fs.StringVar(&f.codec, "codec", d.Settings.Codec, "video codec")
	fs.BoolVar(&f.spill, "spill-frames", d.Settings.SpillFrames, "keep frames on disk instead of in memory")
	fs.StringVar(&f.framesDir, "frames-dir", d.Settings.FramesDir, "parent directory for spilled frames")
	fs.BoolVar(&f.keepFrames, "keep-frames", d.Settings.KeepFrames, "do not delete spilled frames")
	fs.StringVar(&f.journalPath, "journal", d.Settings.JournalPath, "SQLite run journal")
	fs.BoolVar(&f.strict, "strict-threshold", d.Settings.StrictThreshold, "stop once a side would drop to 1 pixel")
	fs.BoolVar(&f.metrics, "metrics", d.Settings.Metrics, "compute frame-to-frame metrics")
}

// apply copies every changed flag into cfg and validates the result.
func (f *paramFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	p, s := &cfg.Params, &cfg.Settings

	if changed("shrink") {
		p.ShrinkFactor = f.shrink
	}
	if changed("iterations") {
		p.MaxIterations = f.iterations
	}
	if changed("timelapse") {
		p.SaveTimelapse = f.timelapse
		// reverse options only make sense with a time-lapse
		if !f.timelapse {
			p.IncludeReverse = changed("include-reverse") && f.includeReverse
			p.SaveReversedClip = changed("reversed-clip") && f.saveReversedClip
		}
	}
	if changed("fps") {
		p.FPS = f.fps
	}
	if changed("include-reverse") {
		p.IncludeReverse = f.includeReverse
	}
	if changed("reversed-clip") {
		p.SaveReversedClip = f.saveReversedClip
	}
	if changed("resampling") {
		p.Resampling = f.resampling
	}
	if changed("rotation") {
		p.RotationAngle = f.rotation
	}
	if changed("format") {
		p.OutputFormat = f.format
	}
	if changed("pixel-format") {
		p.PixelFormat = f.pixelFormat
	}
	if changed("rotate-interpolation") {
		p.RotateInterpolation = f.rotateInterp
	}

	if changed("output-dir") {
		s.OutputDir = f.outputDir
	}
	if changed("background") {
		s.Background = f.background
	}
	if changed("video-backend") {
		s.VideoBackend = f.backend
	}
	if changed("ffmpeg") {
		s.FFmpegBinary = f.ffmpeg
	}
	if changed("codec") {
		s.Codec = f.codec
	}
	if changed("spill-frames") {
		s.SpillFrames = f.spill
	}
	if changed("frames-dir") {
		s.FramesDir = f.framesDir
	}
	if changed("keep-frames") {
		s.KeepFrames = f.keepFrames
	}
	if changed("journal") {
		s.JournalPath = f.journalPath
	}
	if changed("strict-threshold") {
		s.StrictThreshold = f.strict
	}
	if changed("metrics") {
		s.Metrics = f.metrics
	}

	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid parameters", err)
	}
	return nil
}
