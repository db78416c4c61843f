package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// tappableImage is a gallery thumbnail. A tap opens the image in the
// lightbox; a secondary tap removes it.
type tappableImage struct {
	widget.BaseWidget
	image             *canvas.Image
	onTapped          func()
	onSecondaryTapped func()
}

func newTappableImage(res fyne.Resource, onTapped func()) *tappableImage {
	ti := &tappableImage{
		image:    canvas.NewImageFromResource(res),
		onTapped: onTapped,
	}
	ti.image.FillMode = canvas.ImageFillContain
	ti.image.ScaleMode = canvas.ImageScaleFastest
	ti.ExtendBaseWidget(ti)
	return ti
}

func (t *tappableImage) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(t.image)
}

func (t *tappableImage) Tapped(_ *fyne.PointEvent) {
	if t.onTapped != nil {
		t.onTapped()
	}
}

func (t *tappableImage) TappedSecondary(_ *fyne.PointEvent) {
	if t.onSecondaryTapped != nil {
		t.onSecondaryTapped()
	}
}

// SetResource swaps the displayed thumbnail. Main thread only.
func (t *tappableImage) SetResource(res fyne.Resource) {
	t.image.Resource = res
	t.image.Image = nil
	canvas.Refresh(t.image)
}

func (t *tappableImage) SetMinSize(size fyne.Size) {
	t.image.SetMinSize(size)
}
