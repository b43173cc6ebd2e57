package gui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Preview shows the source next to the last result.
type Preview struct {
	source *canvas.Image
	result *canvas.Image
	split  *container.Split
}

func NewPreview() *Preview {
	p := &Preview{
		source: blankImage(),
		result: blankImage(),
	}
	p.split = container.NewHSplit(
		widget.NewCard("Source", "", p.source),
		widget.NewCard("Result", "", p.result),
	)
	p.split.SetOffset(0.5)
	return p
}

func blankImage() *canvas.Image {
	img := canvas.NewImageFromImage(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(320, 240))
	return img
}

func (p *Preview) GetContainer() fyne.CanvasObject {
	return p.split
}

func (p *Preview) SetSource(img image.Image) {
	p.source.Image = img
	p.source.Refresh()
}

func (p *Preview) SetResult(img image.Image) {
	p.result.Image = img
	p.result.Refresh()
}

func (p *Preview) ClearResult() {
	p.SetResult(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
}
