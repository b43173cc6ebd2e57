// Resampling and rotation algorithms used by the compositor
package algorithms

import (
	"fmt"
	"image"
	"image/draw"
	"sort"
	"strings"

	"github.com/disintegration/gift"
	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
)

// Resampler scales an image to an exact target size.
// Implementations must return a freshly allocated buffer that never aliases src.
type Resampler interface {
	Resize(src image.Image, width, height int) (*image.NRGBA, error)
	GetName() string
	GetDescription() string
	// Backend names the library doing the work ("gift", "nfnt", "xdraw").
	Backend() string
}

var resamplers = make(map[string]Resampler)

// Register adds a resampler under a case-insensitive name.
func Register(name string, r Resampler) {
	resamplers[strings.ToLower(name)] = r
}

func Get(name string) (Resampler, bool) {
	r, exists := resamplers[strings.ToLower(name)]
	return r, exists
}

// Resize looks up name and applies it.
func Resize(name string, src image.Image, width, height int) (*image.NRGBA, error) {
	r, exists := Get(name)
	if !exists {
		return nil, fmt.Errorf("resampler not found: %s", name)
	}
	return r.Resize(src, width, height)
}

func IsValidResampler(name string) bool {
	_, exists := Get(name)
	return exists
}

// Names returns all registered resampler names, sorted.
func Names() []string {
	names := make([]string, 0, len(resamplers))
	for name := range resamplers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetResamplersByBackend groups registered names by backend library.
func GetResamplersByBackend() map[string][]string {
	result := make(map[string][]string)
	for _, name := range Names() {
		backend := resamplers[name].Backend()
		result[backend] = append(result[backend], name)
	}
	return result
}

// copyNRGBA returns an NRGBA copy of img whose bounds start at the origin.
func copyNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func validateTarget(name string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%s: invalid target size %dx%d", name, width, height)
	}
	return nil
}

func init() {
	// PIL-compatible filter set
	Register("nearest", newGiftResampler("nearest", "Nearest neighbour, no smoothing", gift.NearestNeighborResampling))
	Register("box", newGiftResampler("box", "Box filter, area average", gift.BoxResampling))
	Register("bilinear", newGiftResampler("bilinear", "Bilinear (triangle) filter", gift.LinearResampling))
	Register("hamming", newGiftResampler("hamming", "Hamming-windowed sinc, support 1", hammingResampling{}))
	Register("bicubic", newGiftResampler("bicubic", "Bicubic (Catmull-Rom) filter", gift.CubicResampling))
	Register("lanczos", newGiftResampler("lanczos", "Lanczos filter, support 3", gift.LanczosResampling))

	// Additional kernels
	Register("mitchell", newNfntResampler("mitchell", "Mitchell-Netravali cubic", resize.MitchellNetravali))
	Register("lanczos2", newNfntResampler("lanczos2", "Lanczos filter, support 2", resize.Lanczos2))
	Register("catmullrom", newXDrawResampler("catmullrom", "Catmull-Rom kernel (x/image/draw)", xdraw.CatmullRom))
	Register("approx-bilinear", newXDrawResampler("approx-bilinear", "Approximate bilinear (x/image/draw)", xdraw.ApproxBiLinear))
}
