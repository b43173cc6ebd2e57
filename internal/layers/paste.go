// Layer compositing: masked paste of a sprite onto a canvas
package layers

import (
	"image"
	"image/color"
)

// MaskedPaste writes src onto dst with src's top-left corner at at.
//
// The paste weight of every pixel is the alpha of mask (aligned with src);
// a nil mask uses src's own alpha channel as a cut-out. With m in [0,255]
// each channel, alpha included, becomes
//
//	out = (src*m + dst*(255-m)) / 255
//
// so an opaque mask replaces the destination pixel, a fully transparent mask
// leaves it untouched and partial coverage blends proportionally. This is a
// masked overwrite, not source-over alpha compositing. Pixels that fall
// outside dst are clipped.
func MaskedPaste(dst, src *image.NRGBA, mask image.Image, at image.Point) {
	sb := src.Bounds()
	target := image.Rectangle{Min: at, Max: at.Add(sb.Size())}.Intersect(dst.Bounds())
	if target.Empty() {
		return
	}

	alphaAt := maskReader(src, mask)
	for y := target.Min.Y; y < target.Max.Y; y++ {
		sy := sb.Min.Y + y - at.Y
		for x := target.Min.X; x < target.Max.X; x++ {
			sx := sb.Min.X + x - at.X
			m := uint32(alphaAt(sx, sy))
			if m == 0 {
				continue
			}
			si := src.PixOffset(sx, sy)
			di := dst.PixOffset(x, y)
			if m == 255 {
				copy(dst.Pix[di:di+4], src.Pix[si:si+4])
				continue
			}
			inv := 255 - m
			for c := 0; c < 4; c++ {
				s := uint32(src.Pix[si+c])
				d := uint32(dst.Pix[di+c])
				dst.Pix[di+c] = uint8((s*m + d*inv + 127) / 255)
			}
		}
	}
}

// maskReader returns an alpha lookup in src coordinates.
func maskReader(src *image.NRGBA, mask image.Image) func(x, y int) uint8 {
	switch m := mask.(type) {
	case nil:
		return func(x, y int) uint8 { return src.Pix[src.PixOffset(x, y)+3] }
	case *image.NRGBA:
		return func(x, y int) uint8 { return m.Pix[m.PixOffset(x, y)+3] }
	case *image.Alpha:
		return func(x, y int) uint8 { return m.AlphaAt(x, y).A }
	default:
		return func(x, y int) uint8 {
			return color.AlphaModel.Convert(m.At(x, y)).(color.Alpha).A
		}
	}
}
