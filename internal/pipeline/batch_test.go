package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imageio "droste-effect/internal/io"
)

func TestRunAllOverlapsCompositeWithEncode(t *testing.T) {
	dir := t.TempDir()
	first := writeSource(t, dir, "first.png")
	second := writeSource(t, dir, "second.png")

	secondSaved := make(chan struct{})
	var once sync.Once
	f := newRecordingFactory()
	overlapped := false
	f.onOpen = func(path string) error {
		if !strings.Contains(filepath.Base(path), "first") {
			return nil
		}
		// hold the first encode until the second image is on disk
		select {
		case <-secondSaved:
			overlapped = true
		case <-time.After(5 * time.Second):
		}
		return nil
	}

	r, _ := newTestRunner(t, f, WithHooks(Hooks{
		OnStage: func(_, source, stage string) {
			if source == second && stage == StageSave {
				once.Do(func() { close(secondSaved) })
			}
		},
	}))

	cfg := testConfig(dir)
	results := r.RunAll(context.Background(), []Request{
		{Source: first, Config: cfg},
		{Source: second, Config: cfg},
	})

	require.Len(t, results, 2)
	assert.True(t, overlapped, "second composite should finish while the first video is encoding")
	for i, res := range results {
		require.NoError(t, res.Err, "request %d", i)
		assert.Equal(t, 6, f.count(res.Outcome.Paths.Timelapse))
	}
	assert.Equal(t, first, results[0].Source)
	assert.Equal(t, second, results[1].Source)
}

func TestRunAllContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.png")
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte{0x89, 'P', 'N', 'G'}, 0o644))
	missing := filepath.Join(dir, "missing.png")

	f := newRecordingFactory()
	r, _ := newTestRunner(t, f)
	cfg := testConfig(dir)

	results := r.RunAll(context.Background(), []Request{
		{Source: bad, Config: cfg},
		{Source: good, Config: cfg},
		{Source: missing, Config: cfg},
	})
	require.Len(t, results, 3)

	assert.True(t, errors.Is(results[0].Err, imageio.ErrDecode))
	assert.Nil(t, results[0].Outcome)

	require.NoError(t, results[1].Err)
	assert.FileExists(t, results[1].Outcome.Paths.Image)

	assert.True(t, errors.Is(results[2].Err, imageio.ErrDecode))
}

func TestRunAllSameSecondGetsDistinctNames(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "cat.png")
	r, _ := newTestRunner(t, newRecordingFactory())
	cfg := testConfig(dir)

	results := r.RunAll(context.Background(), []Request{
		{Source: src, Config: cfg},
		{Source: src, Config: cfg},
	})
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.Equal(t, filepath.Join(dir, "output_cat_20240102_030405.png"), results[0].Outcome.Paths.Image)
	assert.Equal(t, filepath.Join(dir, "output_cat_20240102_030405_2.png"), results[1].Outcome.Paths.Image)
	assert.NotEqual(t, results[0].Outcome.RunID, results[1].Outcome.RunID)
}

func TestRunAllCanceled(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "cat.png")
	r, _ := newTestRunner(t, newRecordingFactory())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := r.RunAll(ctx, []Request{{Source: src, Config: testConfig(dir)}, {Source: src, Config: testConfig(dir)}})
	for _, res := range results {
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
}

func TestNewOutputPaths(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2023, 12, 31, 23, 59, 58, 0, time.UTC)

	p := NewOutputPaths(dir, "/photos/Beach.Day.JPG", "JPG", now, true, true)
	assert.Equal(t, "Beach.Day_20231231_235958", p.Suffix)
	assert.Equal(t, filepath.Join(dir, "output_Beach.Day_20231231_235958.jpg"), p.Image)
	assert.Equal(t, filepath.Join(dir, "time_lapse_Beach.Day_20231231_235958.mp4"), p.Timelapse)
	assert.Equal(t, filepath.Join(dir, "reversed_clip_Beach.Day_20231231_235958.mp4"), p.ReversedClip)

	require.NoError(t, os.WriteFile(p.Image, nil, 0o644))
	next := NewOutputPaths(dir, "/photos/Beach.Day.JPG", "jpg", now, false, false)
	assert.Equal(t, "Beach.Day_20231231_235958_2", next.Suffix)
	assert.Empty(t, next.Timelapse)
	assert.Empty(t, next.ReversedClip)
}
