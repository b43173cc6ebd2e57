package cli

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droste-effect/internal/config"
)

// scripted answers prompts from a fixed list, then reports EOF.
type scripted struct {
	answers []string
	prompts []string
}

func (s *scripted) SetPrompt(p string) { s.prompts = append(s.prompts, p) }

func (s *scripted) Readline() (string, error) {
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func TestPrompterKeepsDefaults(t *testing.T) {
	rl := &scripted{answers: []string{"", "", "", "", "", "", "", "", ""}}
	p := &prompter{rl: rl, out: &bytes.Buffer{}}

	src, params, err := p.collect("given.png", config.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, "given.png", src)
	assert.Equal(t, config.DefaultParams(), params)
	assert.Equal(t, "Shrink factor (0 < s <= 1) [0.95]: ", rl.prompts[0])
	assert.Len(t, rl.prompts, 9)
}

func TestPrompterReasksInvalidAnswers(t *testing.T) {
	out := &bytes.Buffer{}
	rl := &scripted{answers: []string{
		"1.5", "abc", "0.5", // shrink
		"0", "12", // iterations
		"maybe", "yes", // timelapse
		"", // fps
		"y", // include reverse
		"n", // reversed clip
		"sharpest", "Lanczos", // resampling
		"-400", "-15", // rotation
		"gif", "JPG", // format
	}}
	p := &prompter{rl: rl, out: out}

	_, params, err := p.collect("x.png", config.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 0.5, params.ShrinkFactor)
	assert.Equal(t, 12, params.MaxIterations)
	assert.True(t, params.SaveTimelapse)
	assert.Equal(t, 20, params.FPS)
	assert.True(t, params.IncludeReverse)
	assert.False(t, params.SaveReversedClip)
	assert.Equal(t, "lanczos", params.Resampling)
	assert.Equal(t, -15.0, params.RotationAngle)
	assert.Equal(t, "jpg", params.OutputFormat)

	msgs := out.String()
	assert.Contains(t, msgs, "shrink factor must be greater than 0 and less than or equal to 1")
	assert.Contains(t, msgs, "shrink factor must be a number")
	assert.Contains(t, msgs, "please enter 'yes' or 'no'")
	assert.Contains(t, msgs, "rotation angle must be between -360 and 360 degrees")
}

func TestPrompterSkipsVideoQuestionsWithoutTimelapse(t *testing.T) {
	rl := &scripted{answers: []string{"", "", "no", "", "", ""}}
	p := &prompter{rl: rl, out: &bytes.Buffer{}}

	_, params, err := p.collect("x.png", config.DefaultParams())
	require.NoError(t, err)
	assert.False(t, params.SaveTimelapse)
	assert.False(t, params.SaveReversedClip)
	assert.False(t, params.IncludeReverse)
	assert.Len(t, rl.prompts, 6)
}

func TestPrompterAbortsOnEOF(t *testing.T) {
	p := &prompter{rl: &scripted{answers: []string{"0.9"}}, out: &bytes.Buffer{}}
	_, _, err := p.collect("x.png", config.DefaultParams())
	assert.ErrorIs(t, err, ErrAborted)
}

func TestPrompterAsksForImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pic.png")
	writePNG(t, src)

	out := &bytes.Buffer{}
	rl := &scripted{answers: []string{"", filepath.Join(dir, "missing.png"), src}}
	p := &prompter{rl: rl, out: out}

	// runs out of answers after the image, which aborts the parameters
	got, _, err := p.collect("", config.DefaultParams())
	assert.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, got)
	assert.Contains(t, out.String(), "please enter the path of an image")
	assert.Contains(t, out.String(), "cannot decode image")
	assert.Equal(t, "Image file []: ", rl.prompts[0])
}

func TestInteractiveCommandRuns(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pic.png")
	writePNG(t, src)

	cfg := config.Default()
	cfg.Settings.OutputDir = dir
	cfgPath := filepath.Join(dir, "droste.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	h := newHarness()
	h.opts.Prompter = &scripted{answers: []string{"0.5", "3", "no", "", "0", "bmp"}}
	require.NoError(t, h.run("interactive", "--quiet", "--config", cfgPath, src))

	matches, err := filepath.Glob(filepath.Join(dir, "output_pic_*.bmp"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Contains(t, h.out.String(), "3 frames")
}

func TestInteractiveCommandAbort(t *testing.T) {
	h := newHarness()
	h.opts.Prompter = &scripted{}
	require.NoError(t, h.run("interactive"))
	assert.Contains(t, h.out.String(), "No image selected")
}
