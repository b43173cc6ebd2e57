package metrics

import (
	"fmt"
	"image"
	"math"
)

func checkPair(original, processed *image.NRGBA) error {
	if original == nil || processed == nil || original.Rect.Empty() || processed.Rect.Empty() {
		return fmt.Errorf("empty images")
	}
	if original.Rect.Size() != processed.Rect.Size() {
		return fmt.Errorf("image dimensions mismatch: %v vs %v", original.Rect.Size(), processed.Rect.Size())
	}
	return nil
}

// eachPixel calls fn with the RGBA bytes of matching pixels.
func eachPixel(a, b *image.NRGBA, fn func(pa, pb []uint8)) {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w*4]
		rb := b.Pix[y*b.Stride : y*b.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			fn(ra[x:x+4], rb[x:x+4])
		}
	}
}

// MSE is the mean squared error over all four channels.
type MSE struct{}

func NewMSE() *MSE { return &MSE{} }

func (m *MSE) Calculate(original, processed *image.NRGBA) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}
	return meanSquaredError(original, processed), nil
}

func meanSquaredError(a, b *image.NRGBA) float64 {
	var sum float64
	eachPixel(a, b, func(pa, pb []uint8) {
		for c := 0; c < 4; c++ {
			d := float64(pa[c]) - float64(pb[c])
			sum += d * d
		}
	})
	return sum / float64(a.Rect.Dx()*a.Rect.Dy()*4)
}

func (m *MSE) GetName() string              { return "MSE" }
func (m *MSE) GetDescription() string       { return "Mean Squared Error" }
func (m *MSE) GetRange() (float64, float64) { return 0, 65025 }
func (m *MSE) IsHigherBetter() bool         { return false }

// PSNR is derived from MSE; identical images give +Inf.
type PSNR struct{}

func NewPSNR() *PSNR { return &PSNR{} }

func (p *PSNR) Calculate(original, processed *image.NRGBA) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}
	mse := meanSquaredError(original, processed)
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 20 * math.Log10(255/math.Sqrt(mse)), nil
}

func (p *PSNR) GetName() string              { return "PSNR" }
func (p *PSNR) GetDescription() string       { return "Peak Signal-to-Noise Ratio" }
func (p *PSNR) GetRange() (float64, float64) { return 0, 100 }
func (p *PSNR) IsHigherBetter() bool         { return true }

// SSIM is the mean structural similarity of luma over 8x8 blocks.
type SSIM struct {
	Window int
}

func NewSSIM() *SSIM { return &SSIM{Window: 8} }

const (
	ssimC1 = (0.01 * 255) * (0.01 * 255)
	ssimC2 = (0.03 * 255) * (0.03 * 255)
)

func (s *SSIM) Calculate(original, processed *image.NRGBA) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}
	la, lb := luma(original), luma(processed)
	w, h := original.Rect.Dx(), original.Rect.Dy()
	win := s.Window
	if win <= 0 || win > w || win > h {
		win = min(w, h)
	}

	var total float64
	var blocks int
	for by := 0; by+win <= h; by += win {
		for bx := 0; bx+win <= w; bx += win {
			total += blockSSIM(la, lb, w, bx, by, win)
			blocks++
		}
	}
	return total / float64(blocks), nil
}

func blockSSIM(a, b []float64, stride, x0, y0, win int) float64 {
	n := float64(win * win)
	var ma, mb float64
	for y := y0; y < y0+win; y++ {
		for x := x0; x < x0+win; x++ {
			ma += a[y*stride+x]
			mb += b[y*stride+x]
		}
	}
	ma /= n
	mb /= n

	var va, vb, cov float64
	for y := y0; y < y0+win; y++ {
		for x := x0; x < x0+win; x++ {
			da := a[y*stride+x] - ma
			db := b[y*stride+x] - mb
			va += da * da
			vb += db * db
			cov += da * db
		}
	}
	va /= n
	vb /= n
	cov /= n

	return ((2*ma*mb + ssimC1) * (2*cov + ssimC2)) /
		((ma*ma + mb*mb + ssimC1) * (va + vb + ssimC2))
}

// luma returns BT.601 luma of img premultiplied by alpha.
func luma(img *image.NRGBA) []float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]float64, 0, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			a := float64(row[x+3]) / 255
			out = append(out, a*(0.299*float64(row[x])+0.587*float64(row[x+1])+0.114*float64(row[x+2])))
		}
	}
	return out
}

func (s *SSIM) GetName() string              { return "SSIM" }
func (s *SSIM) GetDescription() string       { return "Structural Similarity Index" }
func (s *SSIM) GetRange() (float64, float64) { return 0, 1 }
func (s *SSIM) IsHigherBetter() bool         { return true }

// ChangedRatio is the fraction of pixels that differ in any channel.
type ChangedRatio struct{}

func NewChangedRatio() *ChangedRatio { return &ChangedRatio{} }

func (c *ChangedRatio) Calculate(original, processed *image.NRGBA) (float64, error) {
	if err := checkPair(original, processed); err != nil {
		return 0, err
	}
	var changed int
	eachPixel(original, processed, func(pa, pb []uint8) {
		if pa[0] != pb[0] || pa[1] != pb[1] || pa[2] != pb[2] || pa[3] != pb[3] {
			changed++
		}
	})
	return float64(changed) / float64(original.Rect.Dx()*original.Rect.Dy()), nil
}

func (c *ChangedRatio) GetName() string              { return "Changed" }
func (c *ChangedRatio) GetDescription() string       { return "Fraction of pixels changed" }
func (c *ChangedRatio) GetRange() (float64, float64) { return 0, 1 }
func (c *ChangedRatio) IsHigherBetter() bool         { return false }
