// Run parameters and application settings
package config

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"droste-effect/internal/algorithms"
	"droste-effect/internal/core"
)

// ErrInvalidParams wraps every validation failure.
var ErrInvalidParams = errors.New("invalid parameters")

// Params is the per-run parameter record.
type Params struct {
	ShrinkFactor     float64 `yaml:"shrink_factor"`
	MaxIterations    int     `yaml:"max_iterations"`
	SaveTimelapse    bool    `yaml:"save_timelapse"`
	FPS              int     `yaml:"fps"`
	IncludeReverse   bool    `yaml:"include_reverse"`
	SaveReversedClip bool    `yaml:"save_reversed_clip"`
	Resampling       string  `yaml:"resampling"`
	RotationAngle    float64 `yaml:"rotation_angle"`
	OutputFormat     string  `yaml:"output_format"`
	// PixelFormat is rgba or rgb; rgb flattens onto the background.
	PixelFormat string `yaml:"pixel_format"`
	// RotateInterpolation is nearest, linear or cubic.
	RotateInterpolation string `yaml:"rotate_interpolation"`
}

// Settings are application-wide and rarely change between runs.
type Settings struct {
	OutputDir       string `yaml:"output_dir"`
	Background      string `yaml:"background"`    // #rrggbb
	VideoBackend    string `yaml:"video_backend"` // ffmpeg or gocv
	FFmpegBinary    string `yaml:"ffmpeg_binary"`
	Codec           string `yaml:"codec"`
	SpillFrames     bool   `yaml:"spill_frames"` // keep frames on disk instead of memory
	FramesDir       string `yaml:"frames_dir"`
	KeepFrames      bool   `yaml:"keep_frames"`
	JournalPath     string `yaml:"journal_path"`
	StrictThreshold bool   `yaml:"strict_threshold"` // stop at size 1 instead of 0
	Metrics         bool   `yaml:"metrics"`
}

// Config is the on-disk configuration file.
type Config struct {
	Params   Params   `yaml:"params"`
	Settings Settings `yaml:"settings"`
}

// OutputFormats accepted for the final image.
var OutputFormats = []string{"png", "jpg", "jpeg", "bmp", "webp"}

// ResamplingMethods are the classic filter names; any registered resampler is accepted.
var ResamplingMethods = []string{"nearest", "box", "bilinear", "hamming", "bicubic", "lanczos"}

// DefaultParams mirrors the interactive dialog defaults.
func DefaultParams() Params {
	return Params{
		ShrinkFactor:        0.95,
		MaxIterations:       100,
		SaveTimelapse:       true,
		FPS:                 20,
		IncludeReverse:      false,
		SaveReversedClip:    true,
		Resampling:          "bilinear",
		RotationAngle:       5,
		OutputFormat:        "png",
		PixelFormat:         "rgba",
		RotateInterpolation: "nearest",
	}
}

func DefaultSettings() Settings {
	return Settings{
		OutputDir:    ".",
		Background:   "#ffffff",
		VideoBackend: "ffmpeg",
		FFmpegBinary: "ffmpeg",
		Codec:        "libx264",
	}
}

func Default() Config {
	return Config{Params: DefaultParams(), Settings: DefaultSettings()}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	return c.Settings.Validate()
}

// Validate applies the same rules as the interactive dialog.
func (p Params) Validate() error {
	if !(p.ShrinkFactor > 0 && p.ShrinkFactor <= 1) {
		return fmt.Errorf("%w: shrink factor must be greater than 0 and less than or equal to 1", ErrInvalidParams)
	}
	if p.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be a positive integer", ErrInvalidParams)
	}
	if p.FPS <= 0 {
		return fmt.Errorf("%w: FPS must be a positive integer", ErrInvalidParams)
	}
	if !p.SaveTimelapse && p.IncludeReverse {
		return fmt.Errorf("%w: cannot include reverse in video without saving timelapse", ErrInvalidParams)
	}
	if !p.SaveTimelapse && p.SaveReversedClip {
		return fmt.Errorf("%w: cannot save reversed clip without saving timelapse", ErrInvalidParams)
	}
	if !algorithms.IsValidResampler(p.Resampling) {
		return fmt.Errorf("%w: invalid resampling method %q, choose from %s",
			ErrInvalidParams, p.Resampling, strings.Join(algorithms.Names(), ", "))
	}
	if p.RotationAngle < -360 || p.RotationAngle > 360 {
		return fmt.Errorf("%w: rotation angle must be between -360 and 360 degrees", ErrInvalidParams)
	}
	if !contains(OutputFormats, strings.ToLower(p.OutputFormat)) {
		return fmt.Errorf("%w: invalid output format %q, choose from %s",
			ErrInvalidParams, p.OutputFormat, strings.Join(OutputFormats, ", "))
	}
	switch strings.ToLower(p.PixelFormat) {
	case "", "rgba", "rgb":
	default:
		return fmt.Errorf("%w: pixel format must be rgba or rgb", ErrInvalidParams)
	}
	if _, err := algorithms.ParseInterpolation(p.RotateInterpolation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

func (s Settings) Validate() error {
	bg, err := ParseColor(s.Background)
	if err != nil {
		return fmt.Errorf("%w: background: %v", ErrInvalidParams, err)
	}
	if bg.A != 255 {
		return fmt.Errorf("%w: background must be opaque, got alpha %d", ErrInvalidParams, bg.A)
	}
	switch strings.ToLower(s.VideoBackend) {
	case "", "ffmpeg", "gocv":
	default:
		return fmt.Errorf("%w: video backend must be ffmpeg or gocv", ErrInvalidParams)
	}
	return nil
}

// CompositorOptions converts the record into compositor options.
func (c Config) CompositorOptions() core.Options {
	minDim := 1
	if c.Settings.StrictThreshold {
		minDim = 2
	}
	return core.Options{
		ShrinkFactor:        c.Params.ShrinkFactor,
		MaxIterations:       c.Params.MaxIterations,
		RotationStep:        c.Params.RotationAngle,
		Filter:              strings.ToLower(c.Params.Resampling),
		RotateInterpolation: strings.ToLower(c.Params.RotateInterpolation),
		MinDimension:        minDim,
	}
}

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa. Empty means white.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}, nil
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ParseYesNo accepts yes/no/true/false in any case.
func ParseYesNo(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true":
		return true, nil
	case "no", "n", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid input %q, please enter 'yes' or 'no'", s)
}

// FormatYesNo renders a flag the way ParseYesNo reads it.
func FormatYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
