package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	stdio "io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"droste-effect/internal/core"
)

// FFmpegFactory pipes raw rgb24 frames into an ffmpeg subprocess.
type FFmpegFactory struct {
	Binary     string
	Codec      string
	Background color.Color
	logger     logrus.FieldLogger
}

func NewFFmpegFactory(cfg BackendConfig) *FFmpegFactory {
	f := &FFmpegFactory{
		Binary:     cfg.Binary,
		Codec:      cfg.Codec,
		Background: cfg.Background,
		logger:     cfg.Logger,
	}
	if f.Binary == "" {
		f.Binary = "ffmpeg"
	}
	if f.Codec == "" {
		f.Codec = "libx264"
	}
	f.Background = core.Opaque(f.Background)
	if f.logger == nil {
		f.logger = logrus.StandardLogger()
	}
	return f
}

func (f *FFmpegFactory) Name() string { return "ffmpeg" }

// Args builds the ffmpeg command line for one output file.
func (f *FFmpegFactory) Args(path string, fps float64, size image.Point) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", size.X, size.Y),
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "pipe:0",
		// yuv420p needs even dimensions
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", f.Codec,
		"-pix_fmt", "yuv420p",
		path,
	}
}

func (f *FFmpegFactory) Open(ctx context.Context, path string, fps float64, size image.Point) (Sink, error) {
	cmd := exec.CommandContext(ctx, f.Binary, f.Args(path, fps, size)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", f.Binary, err)
	}
	f.logger.WithFields(logrus.Fields{
		"pid":  cmd.Process.Pid,
		"path": path,
		"size": size.String(),
		"fps":  fps,
	}).Debug("ffmpeg process spawned")

	return &ffmpegSink{
		cmd:        cmd,
		stdin:      stdin,
		stderr:     stderr,
		size:       size,
		background: image.NewUniform(f.Background),
		buf:        make([]byte, size.X*size.Y*3),
		rgba:       image.NewRGBA(image.Rect(0, 0, size.X, size.Y)),
	}, nil
}

type ffmpegSink struct {
	cmd        *exec.Cmd
	stdin      stdio.WriteCloser
	stderr     *tailBuffer
	size       image.Point
	background image.Image
	buf        []byte
	rgba       *image.RGBA
	closed     bool
}

func (s *ffmpegSink) WriteFrame(img image.Image) error {
	if got := img.Bounds().Size(); got != s.size {
		return fmt.Errorf("frame size %v does not match video size %v", got, s.size)
	}
	rgb24(s.buf, s.rgba, img, s.background)
	if _, err := s.stdin.Write(s.buf); err != nil {
		return fmt.Errorf("write frame to ffmpeg: %w", err)
	}
	return nil
}

func (s *ffmpegSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	closeErr := s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return closeErr
}

// rgb24 flattens img over background into scratch and packs it into buf.
func rgb24(buf []byte, scratch *image.RGBA, img image.Image, background image.Image) {
	b := img.Bounds()
	draw.Draw(scratch, scratch.Bounds(), background, image.Point{}, draw.Src)
	draw.Draw(scratch, scratch.Bounds(), img, b.Min, draw.Over)

	w, h := scratch.Rect.Dx(), scratch.Rect.Dy()
	i := 0
	for y := 0; y < h; y++ {
		row := scratch.Pix[y*scratch.Stride : y*scratch.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			buf[i], buf[i+1], buf[i+2] = row[x], row[x+1], row[x+2]
			i += 3
		}
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

func init() {
	RegisterBackend("ffmpeg", func(cfg BackendConfig) SinkFactory { return NewFFmpegFactory(cfg) })
}
