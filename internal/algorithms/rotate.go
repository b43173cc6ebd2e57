package algorithms

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/gift"
)

// Interpolation names accepted by ParseInterpolation.
var interpolations = map[string]gift.Interpolation{
	"nearest": gift.NearestNeighborInterpolation,
	"linear":  gift.LinearInterpolation,
	"cubic":   gift.CubicInterpolation,
}

// ParseInterpolation maps a rotation interpolation name to gift's constant.
// An empty name selects nearest neighbour.
func ParseInterpolation(name string) (gift.Interpolation, error) {
	if name == "" {
		return gift.NearestNeighborInterpolation, nil
	}
	interp, ok := interpolations[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown rotation interpolation: %s", name)
	}
	return interp, nil
}

// InterpolationNames lists the accepted rotation interpolation names.
func InterpolationNames() []string {
	return []string{"nearest", "linear", "cubic"}
}

// Rotate turns src counter-clockwise by degrees. The result is expanded to
// the rotated bounding box; corners not covered by src are fully transparent.
// Quarter turns are handled losslessly. A zero angle returns a plain copy.
func Rotate(src image.Image, degrees float64, interp gift.Interpolation) *image.NRGBA {
	var filter gift.Filter
	switch degrees {
	case 0:
		return copyNRGBA(src)
	case 90:
		filter = gift.Rotate90()
	case 180:
		filter = gift.Rotate180()
	case 270:
		filter = gift.Rotate270()
	default:
		filter = gift.Rotate(float32(degrees), color.Transparent, interp)
	}

	g := gift.New(filter)
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

// RotatedSize reports the bounding box Rotate would produce for a w×h input.
func RotatedSize(w, h int, degrees float64) (int, int) {
	switch degrees {
	case 0, 180:
		return w, h
	case 90, 270:
		return h, w
	}
	b := gift.New(gift.Rotate(float32(degrees), color.Transparent, gift.NearestNeighborInterpolation)).Bounds(image.Rect(0, 0, w, h))
	return b.Dx(), b.Dy()
}
