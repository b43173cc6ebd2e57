package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droste-effect/internal/config"
	"droste-effect/internal/core"
	"droste-effect/internal/journal"
	"droste-effect/internal/pipeline"
	"droste-effect/internal/video"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

type countingFactory struct {
	mu     sync.Mutex
	frames map[string]int
}

func (f *countingFactory) Name() string { return "counting" }

func (f *countingFactory) Open(ctx context.Context, path string, fps float64, size image.Point) (video.Sink, error) {
	return &countingSink{f: f, path: path}, nil
}

type countingSink struct {
	f    *countingFactory
	path string
	n    int
}

func (s *countingSink) WriteFrame(image.Image) error { s.n++; return nil }

func (s *countingSink) Close() error {
	s.f.mu.Lock()
	s.f.frames[s.path] = s.n
	s.f.mu.Unlock()
	return nil
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

type harness struct {
	opts    *RootOptions
	factory *countingFactory
	out     *bytes.Buffer
}

func newHarness() *harness {
	f := &countingFactory{frames: map[string]int{}}
	return &harness{
		factory: f,
		out:     &bytes.Buffer{},
		opts: &RootOptions{
			PipelineOptions: []pipeline.Option{
				pipeline.WithSinkFactory(func(config.Settings, logrus.FieldLogger) (video.SinkFactory, error) {
					return f, nil
				}),
			},
		},
	}
}

func (h *harness) run(args ...string) error {
	cmd := newRootCommand(h.opts)
	cmd.SetArgs(args)
	cmd.SetOut(h.out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(""))
	return cmd.Execute()
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "droste", cmd.Use)
	for _, name := range []string{"run", "interactive", "history", "config"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestRunFlagsDefaultToDialogValues(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	tests := map[string]string{
		"shrink":          "0.95",
		"iterations":      "100",
		"timelapse":       "true",
		"fps":             "20",
		"include-reverse": "false",
		"reversed-clip":   "true",
		"resampling":      "bilinear",
		"rotation":        "5",
		"format":          "png",
	}
	for name, def := range tests {
		flag := runCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, def, flag.DefValue, name)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "droste.yaml")
	cfg := config.Default()
	cfg.Params.ShrinkFactor = 0.8
	cfg.Params.FPS = 10
	require.NoError(t, config.Save(cfgPath, cfg))

	var f paramFlags
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	bindParamFlags(cmd, &f)
	require.NoError(t, cmd.ParseFlags([]string{"--fps", "30", "--timelapse=false"}))

	loaded, err := config.Load(cfgPath)
	require.NoError(t, err)
	require.NoError(t, f.apply(cmd, &loaded))

	assert.Equal(t, 0.8, loaded.Params.ShrinkFactor, "file value kept")
	assert.Equal(t, 30, loaded.Params.FPS, "flag wins")
	assert.False(t, loaded.Params.SaveTimelapse)
	assert.False(t, loaded.Params.SaveReversedClip, "reverse options follow timelapse")
}

func TestFlagsRejectInvalidCombination(t *testing.T) {
	var f paramFlags
	cmd := &cobra.Command{Use: "x"}
	bindParamFlags(cmd, &f)
	require.NoError(t, cmd.ParseFlags([]string{"--timelapse=false", "--include-reverse"}))

	cfg := config.Default()
	err := f.apply(cmd, &cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, config.ErrInvalidParams)
}

func TestRunCommandProducesOutputs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tile.png")
	writePNG(t, src)
	dbPath := filepath.Join(dir, "runs.db")

	h := newHarness()
	err := h.run("run", "--quiet", "-o", dir, "-s", "0.5", "-a", "0", "--fps", "8",
		"--include-reverse", "--journal", dbPath, src)
	require.NoError(t, err)

	out := h.out.String()
	assert.Contains(t, out, "Chosen Parameters")
	assert.Contains(t, out, "Total processing time")
	assert.Contains(t, out, "5 frames")

	matches, err := filepath.Glob(filepath.Join(dir, "output_tile_*.png"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// 16,8,4,2,1 forward plus the mirror
	var forward int
	for path, n := range h.factory.frames {
		if strings.Contains(path, "time_lapse_tile_") {
			forward = n
		}
	}
	assert.Equal(t, 10, forward)

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, journal.StatusOK, runs[0].Status)

	h.out.Reset()
	require.NoError(t, h.run("history", "--journal", dbPath))
	assert.Contains(t, h.out.String(), runs[0].ID)

	h.out.Reset()
	require.NoError(t, h.run("history", "--journal", dbPath, runs[0].ID))
	assert.Contains(t, h.out.String(), "geometry")
	assert.Contains(t, h.out.String(), "forward")
}

func TestRunCommandExitCodes(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	writePNG(t, good)
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("junk"), 0o644))

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"all good", []string{good}, ExitSuccess},
		{"only bad input", []string{bad}, ExitCommandError},
		{"mixed", []string{bad, good}, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			args := append([]string{"run", "--quiet", "--timelapse=false", "-o", t.TempDir()}, tt.args...)
			err := h.run(args...)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestRunRequiresImage(t *testing.T) {
	h := newHarness()
	assert.Error(t, h.run("run"))
}

func TestHistoryWithoutJournal(t *testing.T) {
	h := newHarness()
	err := h.run("history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistoryUnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	h := newHarness()
	require.NoError(t, h.run("history", "--journal", db))
	assert.Contains(t, h.out.String(), "No runs recorded")

	err := h.run("history", "--journal", db, "nope")
	assert.ErrorIs(t, err, journal.ErrNotFound)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "droste.yaml")
	h := newHarness()
	require.NoError(t, h.run("config", "init", path))
	require.FileExists(t, path)

	h.out.Reset()
	require.NoError(t, h.run("--config", path, "config", "show"))
	assert.Contains(t, h.out.String(), "shrink_factor: 0.95")
	assert.Contains(t, h.out.String(), "video_backend: ffmpeg")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", assert.AnError)))
}

func TestProgressUIStopsBarsWhenRunEnds(t *testing.T) {
	var buf bytes.Buffer
	ui := newProgressUI(&buf, false)
	hooks := ui.hooks()

	hooks.OnStage("run-1", "/photos/b.png", pipeline.StageComposite)
	hooks.OnStep("run-1", core.Step{}, 3)
	hooks.OnEncodeFrame("run-1", video.KindForward, 1, 4)
	assert.Len(t, ui.bars, 2)

	hooks.OnStage("run-1", "/photos/b.png", pipeline.StageDone)
	assert.Empty(t, ui.bars)

	quiet := newProgressUI(&buf, true).hooks()
	assert.Nil(t, quiet.OnStep)
	assert.Nil(t, quiet.OnStage)
}
