//go:build gocv

package video

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// GocvFactory writes videos through OpenCV's VideoWriter.
type GocvFactory struct {
	Codec      string
	Background color.Color
}

func (g *GocvFactory) Name() string { return "gocv" }

func (g *GocvFactory) Open(ctx context.Context, path string, fps float64, size image.Point) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vw, err := gocv.VideoWriterFile(path, g.Codec, fps, size.X, size.Y, true)
	if err != nil {
		return nil, fmt.Errorf("open video writer: %w", err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("video writer for %s did not open (codec %s)", path, g.Codec)
	}
	return &gocvSink{
		writer:     vw,
		size:       size,
		background: image.NewUniform(g.Background),
		buf:        make([]byte, size.X*size.Y*3),
		rgba:       image.NewRGBA(image.Rect(0, 0, size.X, size.Y)),
	}, nil
}

type gocvSink struct {
	writer     *gocv.VideoWriter
	size       image.Point
	background image.Image
	buf        []byte
	rgba       *image.RGBA
}

func (s *gocvSink) WriteFrame(img image.Image) error {
	if got := img.Bounds().Size(); got != s.size {
		return fmt.Errorf("frame size %v does not match video size %v", got, s.size)
	}
	rgb24(s.buf, s.rgba, img, s.background)

	mat, err := gocv.NewMatFromBytes(s.size.Y, s.size.X, gocv.MatTypeCV8UC3, s.buf)
	if err != nil {
		return err
	}
	defer mat.Close()

	// OpenCV expects BGR
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBToBGR)

	return s.writer.Write(bgr)
}

func (s *gocvSink) Close() error {
	return s.writer.Close()
}

func init() {
	RegisterBackend("gocv", func(cfg BackendConfig) SinkFactory {
		codec := cfg.Codec
		// ffmpeg encoder names are not fourcc codes
		if len(codec) != 4 {
			codec = "mp4v"
		}
		return &GocvFactory{Codec: codec, Background: cfg.Background}
	})
}
