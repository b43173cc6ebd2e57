package layers

import "image"

// NewLayer returns a fully transparent sheet of the given size.
func NewLayer(size image.Point) *image.NRGBA {
	return image.NewNRGBA(image.Rectangle{Max: size})
}

// CenterOffset is the top-left position that centres a sprite of size
// sprite on a canvas of size canvas. Odd remainders round toward negative
// infinity, also when the sprite is larger than the canvas.
func CenterOffset(canvas, sprite image.Point) image.Point {
	return image.Pt(floorDiv(canvas.X-sprite.X, 2), floorDiv(canvas.Y-sprite.Y, 2))
}

// PlaceCentered builds a transparent layer of size and cuts sprite into its
// centre through the sprite's own alpha. It returns the layer and the
// offset the sprite was placed at.
func PlaceCentered(size image.Point, sprite *image.NRGBA) (*image.NRGBA, image.Point) {
	layer := NewLayer(size)
	at := CenterOffset(size, sprite.Bounds().Size())
	MaskedPaste(layer, sprite, nil, at)
	return layer, at
}

// Composite pastes layer onto canvas at the origin through the layer's alpha.
func Composite(canvas, layer *image.NRGBA) {
	MaskedPaste(canvas, layer, nil, image.Point{})
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
