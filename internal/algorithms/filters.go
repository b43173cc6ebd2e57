package algorithms

import (
	"image"
	"math"

	"github.com/disintegration/gift"
	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
)

// giftResampler resizes with a separable gift kernel.
type giftResampler struct {
	name        string
	description string
	resampling  gift.Resampling
}

func newGiftResampler(name, description string, r gift.Resampling) *giftResampler {
	return &giftResampler{name: name, description: description, resampling: r}
}

func (g *giftResampler) Resize(src image.Image, width, height int) (*image.NRGBA, error) {
	if err := validateTarget(g.name, width, height); err != nil {
		return nil, err
	}
	filter := gift.New(gift.Resize(width, height, g.resampling))
	dst := image.NewNRGBA(filter.Bounds(src.Bounds()))
	filter.Draw(dst, src)
	return dst, nil
}

func (g *giftResampler) GetName() string        { return g.name }
func (g *giftResampler) GetDescription() string { return g.description }
func (g *giftResampler) Backend() string        { return "gift" }

// hammingResampling is a sinc kernel with a Hamming window and support 1.
type hammingResampling struct{}

func (hammingResampling) Support() float32 { return 1 }

func (hammingResampling) Kernel(x float32) float32 {
	if x < 0 {
		x = -x
	}
	if x == 0 {
		return 1
	}
	if x >= 1 {
		return 0
	}
	px := math.Pi * float64(x)
	return float32(math.Sin(px) / px * (0.54 + 0.46*math.Cos(px)))
}

// nfntResampler wraps github.com/nfnt/resize kernels.
type nfntResampler struct {
	name        string
	description string
	interp      resize.InterpolationFunction
}

func newNfntResampler(name, description string, interp resize.InterpolationFunction) *nfntResampler {
	return &nfntResampler{name: name, description: description, interp: interp}
}

func (n *nfntResampler) Resize(src image.Image, width, height int) (*image.NRGBA, error) {
	if err := validateTarget(n.name, width, height); err != nil {
		return nil, err
	}
	// resize.Resize hands back src itself when the size is unchanged.
	return copyNRGBA(resize.Resize(uint(width), uint(height), src, n.interp)), nil
}

func (n *nfntResampler) GetName() string        { return n.name }
func (n *nfntResampler) GetDescription() string { return n.description }
func (n *nfntResampler) Backend() string        { return "nfnt" }

// xdrawResampler wraps golang.org/x/image/draw scalers.
type xdrawResampler struct {
	name        string
	description string
	scaler      xdraw.Scaler
}

func newXDrawResampler(name, description string, scaler xdraw.Scaler) *xdrawResampler {
	return &xdrawResampler{name: name, description: description, scaler: scaler}
}

func (x *xdrawResampler) Resize(src image.Image, width, height int) (*image.NRGBA, error) {
	if err := validateTarget(x.name, width, height); err != nil {
		return nil, err
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	x.scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst, nil
}

func (x *xdrawResampler) GetName() string        { return x.name }
func (x *xdrawResampler) GetDescription() string { return x.description }
func (x *xdrawResampler) Backend() string        { return "xdraw" }
