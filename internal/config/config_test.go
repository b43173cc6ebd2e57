package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "droste.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.95, cfg.Params.ShrinkFactor)
	assert.Equal(t, 100, cfg.Params.MaxIterations)
	assert.Equal(t, 20, cfg.Params.FPS)
	assert.True(t, cfg.Params.SaveTimelapse)
	assert.False(t, cfg.Params.IncludeReverse)
	assert.True(t, cfg.Params.SaveReversedClip)
	assert.Equal(t, "bilinear", cfg.Params.Resampling)
	assert.Equal(t, 5.0, cfg.Params.RotationAngle)
	assert.Equal(t, "png", cfg.Params.OutputFormat)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
params:
  shrink_factor: 0.5
  resampling: lanczos
settings:
  strict_threshold: true
  background: "#000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Params.ShrinkFactor)
	assert.Equal(t, 100, cfg.Params.MaxIterations, "untouched keys keep defaults")
	assert.Equal(t, "lanczos", cfg.Params.Resampling)

	opts := cfg.CompositorOptions()
	assert.Equal(t, 2, opts.MinDimension)
	assert.Equal(t, "lanczos", opts.Filter)
	assert.Equal(t, 5.0, opts.RotationStep)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "params:\n  shrink_factr: 0.5\n"))
	assert.ErrorContains(t, err, "shrink_factr")
}

func TestLoadEmptyFileAndPath(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Params.FPS = 30
	cfg.Settings.KeepFrames = true
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantMsg string
	}{
		{"shrink zero", func(p *Params) { p.ShrinkFactor = 0 }, "shrink factor"},
		{"shrink above one", func(p *Params) { p.ShrinkFactor = 1.5 }, "shrink factor"},
		{"iterations", func(p *Params) { p.MaxIterations = 0 }, "max iterations"},
		{"fps", func(p *Params) { p.FPS = -1 }, "FPS"},
		{"reverse without timelapse", func(p *Params) { p.SaveTimelapse, p.SaveReversedClip, p.IncludeReverse = false, false, true }, "include reverse"},
		{"clip without timelapse", func(p *Params) { p.SaveTimelapse = false }, "reversed clip"},
		{"resampling", func(p *Params) { p.Resampling = "sharpest" }, "resampling method"},
		{"rotation", func(p *Params) { p.RotationAngle = -361 }, "rotation angle"},
		{"format", func(p *Params) { p.OutputFormat = "gif" }, "output format"},
		{"pixel format", func(p *Params) { p.PixelFormat = "cmyk" }, "pixel format"},
		{"interpolation", func(p *Params) { p.RotateInterpolation = "sinc" }, "interpolation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			assert.ErrorIs(t, err, ErrInvalidParams)
			assert.ErrorContains(t, err, tt.wantMsg)
		})
	}

	p := DefaultParams()
	p.SaveTimelapse, p.SaveReversedClip = false, false
	assert.NoError(t, p.Validate())
}

func TestSettingsValidateBackground(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"default", "#ffffff", false},
		{"short form", "#000", false},
		{"explicit opaque alpha", "#102030ff", false},
		{"translucent", "#ffffff80", true},
		{"fully transparent", "#00000000", true},
		{"malformed", "white", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.Background = tt.in
			err := s.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParams)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"", color.NRGBA{R: 255, G: 255, B: 255, A: 255}, false},
		{"#000", color.NRGBA{A: 255}, false},
		{"#ff8000", color.NRGBA{R: 255, G: 128, A: 255}, false},
		{"10203040", color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0x40}, false},
		{"#12345", color.NRGBA{}, true},
		{"#zzzzzz", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseYesNo(t *testing.T) {
	for _, in := range []string{"yes", "YES", "true", "y"} {
		v, err := ParseYesNo(in)
		require.NoError(t, err)
		assert.True(t, v, in)
	}
	for _, in := range []string{"no", "False", "n"} {
		v, err := ParseYesNo(in)
		require.NoError(t, err)
		assert.False(t, v, in)
	}
	_, err := ParseYesNo("maybe")
	assert.Error(t, err)
	assert.Equal(t, "yes", FormatYesNo(true))
}
