package ui

import (
	"image/color"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"photogallery/internal/gallery"
	"photogallery/internal/service"
)

const (
	backgroundTranslucency = 0.75
	timeFormat             = "03:04 PM"
	dateFormat             = "Monday, January 2, 2006"
)

// viewer is the lightbox overlay. It implements lightbox.Renderer; all its
// methods may be called from any goroutine.
type viewer struct {
	fadeDelay time.Duration
	log       *slog.Logger

	backdrop   *canvas.Rectangle
	background *canvas.Image
	image      *canvas.Image
	timeLabel  *widget.Label
	dateLabel  *widget.Label
	prevBtn    *widget.Button
	nextBtn    *widget.Button
	closeBtn   *widget.Button
	root       *fyne.Container

	fade *fyne.Animation
}

func newViewer(fadeDelay time.Duration, log *slog.Logger) *viewer {
	v := &viewer{fadeDelay: fadeDelay, log: log}

	v.backdrop = canvas.NewRectangle(color.Black)
	v.background = &canvas.Image{FillMode: canvas.ImageFillStretch, Translucency: backgroundTranslucency}
	v.image = &canvas.Image{FillMode: canvas.ImageFillContain}

	v.timeLabel = widget.NewLabelWithStyle("", fyne.TextAlignTrailing, fyne.TextStyle{Bold: true})
	v.dateLabel = widget.NewLabelWithStyle("", fyne.TextAlignTrailing, fyne.TextStyle{})
	v.prevBtn = widget.NewButtonWithIcon("", theme.NavigateBackIcon(), nil)
	v.nextBtn = widget.NewButtonWithIcon("", theme.NavigateNextIcon(), nil)
	v.closeBtn = widget.NewButtonWithIcon("", theme.CancelIcon(), nil)

	top := container.NewHBox(layout.NewSpacer(), container.NewVBox(v.timeLabel, v.dateLabel), v.closeBtn)
	controls := container.NewBorder(top, nil,
		container.NewCenter(v.prevBtn), container.NewCenter(v.nextBtn), nil)

	v.root = container.NewStack(v.backdrop, v.background, v.image, controls)
	v.root.Hide()
	v.updateClock(time.Now())
	return v
}

// bind wires the overlay buttons.
func (v *viewer) bind(prev, next, closeFn func()) {
	v.prevBtn.OnTapped = prev
	v.nextBtn.OnTapped = next
	v.closeBtn.OnTapped = closeFn
}

func (v *viewer) FadeOut() {
	fyne.Do(func() { v.animate(0, 1) })
}

// Show paints img and the background layer from the same source.
func (v *viewer) Show(img gallery.Image) {
	b, _, err := service.DecodeDataURL(img.Data)
	if err != nil {
		v.log.Warn("cannot show image", slog.String("id", img.ID), slog.Any("error", err))
		return
	}
	res := fyne.NewStaticResource(img.ID, b)
	fyne.Do(func() {
		v.image.Resource = res
		v.background.Resource = res
		v.image.Refresh()
		v.background.Refresh()
	})
}

func (v *viewer) FadeIn() {
	fyne.Do(func() { v.animate(1, 0) })
}

// animate moves the image translucency from one value to another over the
// fade delay, cancelling any fade still running. Main thread only.
func (v *viewer) animate(from, to float64) {
	if v.fade != nil {
		v.fade.Stop()
		v.fade = nil
	}
	if v.fadeDelay <= 0 {
		v.image.Translucency = to
		v.image.Refresh()
		return
	}
	v.image.Translucency = from
	v.fade = fyne.NewAnimation(v.fadeDelay, func(p float32) {
		v.image.Translucency = from + (to-from)*float64(p)
		canvas.Refresh(v.image)
	})
	v.fade.Start()
}

func (v *viewer) updateClock(now time.Time) {
	v.timeLabel.SetText(now.Format(timeFormat))
	v.dateLabel.SetText(now.Format(dateFormat))
}

// runClock refreshes the clock every second until done is closed.
func (v *viewer) runClock(done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			fyne.Do(func() { v.updateClock(now) })
		}
	}
}

// windowFullscreen is the lightbox.Fullscreen adapter for a fyne window.
type windowFullscreen struct {
	win fyne.Window
}

func (f windowFullscreen) Enter() {
	fyne.Do(func() { f.win.SetFullScreen(true) })
}

func (f windowFullscreen) Exit() {
	fyne.Do(func() { f.win.SetFullScreen(false) })
}
