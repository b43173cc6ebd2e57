package algorithms

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/gift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRegisteredResamplers(t *testing.T) {
	want := []string{"approx-bilinear", "bicubic", "bilinear", "box", "catmullrom", "hamming", "lanczos", "lanczos2", "mitchell", "nearest"}
	assert.Equal(t, want, Names())

	src := solid(8, 6, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			dst, err := Resize(name, src, 4, 3)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 4, 3), dst.Bounds())

			// uniform input stays uniform for every kernel
			got := dst.NRGBAAt(1, 1)
			assert.InDelta(t, 200, int(got.R), 1)
			assert.InDelta(t, 100, int(got.G), 1)
			assert.InDelta(t, 50, int(got.B), 1)
			assert.InDelta(t, 255, int(got.A), 1)
		})
	}
}

func TestResizeNeverAliasesSource(t *testing.T) {
	src := solid(4, 4, color.NRGBA{R: 10, A: 255})
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			dst, err := Resize(name, src, 4, 4)
			require.NoError(t, err)
			dst.SetNRGBA(0, 0, color.NRGBA{G: 99, A: 255})
			assert.Equal(t, color.NRGBA{R: 10, A: 255}, src.NRGBAAt(0, 0))
		})
	}
}

func TestResizeRejectsEmptyTarget(t *testing.T) {
	src := solid(4, 4, color.NRGBA{A: 255})
	tests := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 2},
		{"zero height", 2, 0},
		{"negative", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resize("bilinear", src, tt.w, tt.h)
			assert.Error(t, err)
		})
	}
}

func TestGetIsCaseInsensitive(t *testing.T) {
	r, ok := Get("Lanczos")
	require.True(t, ok)
	assert.Equal(t, "lanczos", r.GetName())
	assert.Equal(t, "gift", r.Backend())

	assert.False(t, IsValidResampler("sharpest"))
	_, err := Resize("sharpest", solid(2, 2, color.NRGBA{}), 1, 1)
	assert.Error(t, err)
}

func TestResamplersByBackend(t *testing.T) {
	groups := GetResamplersByBackend()
	assert.Equal(t, []string{"bicubic", "bilinear", "box", "hamming", "lanczos", "nearest"}, groups["gift"])
	assert.Equal(t, []string{"lanczos2", "mitchell"}, groups["nfnt"])
	assert.Equal(t, []string{"approx-bilinear", "catmullrom"}, groups["xdraw"])
}

func TestHammingKernel(t *testing.T) {
	k := hammingResampling{}
	assert.Equal(t, float32(1), k.Support())
	assert.Equal(t, float32(1), k.Kernel(0))
	assert.Equal(t, float32(0), k.Kernel(1))
	assert.Equal(t, float32(0), k.Kernel(-1.5))
	assert.InDelta(t, k.Kernel(0.3), k.Kernel(-0.3), 1e-7)
	assert.Greater(t, k.Kernel(0.25), k.Kernel(0.5))
}

func TestParseInterpolation(t *testing.T) {
	tests := []struct {
		in      string
		want    gift.Interpolation
		wantErr bool
	}{
		{"", gift.NearestNeighborInterpolation, false},
		{"nearest", gift.NearestNeighborInterpolation, false},
		{"Linear", gift.LinearInterpolation, false},
		{"cubic", gift.CubicInterpolation, false},
		{"sinc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterpolation(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRotateZeroIsCopy(t *testing.T) {
	src := solid(3, 2, color.NRGBA{B: 77, A: 255})
	dst := Rotate(src, 0, gift.NearestNeighborInterpolation)
	assert.Equal(t, src.Pix, dst.Pix)
	dst.Pix[0] = 1
	assert.NotEqual(t, src.Pix[0], dst.Pix[0])
}

func TestRotateQuarterTurn(t *testing.T) {
	src := solid(4, 2, color.NRGBA{A: 255})
	marker := color.NRGBA{R: 255, A: 255}
	src.SetNRGBA(3, 0, marker) // top-right

	dst := Rotate(src, 90, gift.NearestNeighborInterpolation)
	require.Equal(t, image.Rect(0, 0, 2, 4), dst.Bounds())
	// counter-clockwise: top-right ends up top-left
	assert.Equal(t, marker, dst.NRGBAAt(0, 0))
}

func TestRotateExpandsWithTransparentCorners(t *testing.T) {
	src := solid(10, 10, color.NRGBA{G: 255, A: 255})
	dst := Rotate(src, 45, gift.NearestNeighborInterpolation)

	w, h := RotatedSize(10, 10, 45)
	assert.Equal(t, image.Rect(0, 0, w, h), dst.Bounds())
	assert.Greater(t, w, 10)
	assert.Greater(t, h, 10)

	assert.Equal(t, uint8(0), dst.NRGBAAt(0, 0).A, "corner must be transparent")
	assert.Equal(t, uint8(255), dst.NRGBAAt(w/2, h/2).A, "centre must stay opaque")
}

func TestRotatedSizeQuarterTurns(t *testing.T) {
	w, h := RotatedSize(30, 20, 90)
	assert.Equal(t, []int{20, 30}, []int{w, h})
	w, h = RotatedSize(30, 20, 180)
	assert.Equal(t, []int{30, 20}, []int{w, h})
}
