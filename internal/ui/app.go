// Package ui  Setup for the photo gallery window
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"photogallery/internal/config"
	"photogallery/internal/gallery"
	"photogallery/internal/lightbox"
	"photogallery/internal/logging"
	"photogallery/internal/scan"
	"photogallery/internal/service"
	"photogallery/internal/store"
)

// UI holds the widgets the App updates after construction.
type UI struct {
	MainWin     fyne.Window
	mainModKey  fyne.KeyModifier
	periodEntry *widget.Entry
	statusLabel *widget.Label
	viewer      *viewer
	grid        *thumbnailGrid
}

// App represents the whole application with all its windows, widgets and functions
type App struct {
	app fyne.App
	UI  UI

	log      *slog.Logger
	store    *store.Lazy
	Gallery  *gallery.Model
	Service  *service.Service
	lightbox *lightbox.Controller
	thumbs   *ThumbnailManager

	unsubscribe func()
	stopClock   chan struct{}
	stopOnce    sync.Once
}

// NewApp builds the gallery window on a. Nothing is loaded from the image
// store until Run.
func NewApp(a fyne.App, cfg *config.Config, log *slog.Logger) *App {
	ui := &App{
		app:       a,
		log:       logging.OrDiscard(log),
		stopClock: make(chan struct{}),
	}

	ui.store = store.New(cfg.Store, ui.log)
	ui.Gallery = gallery.New(ui.store, ui.log)
	ui.Service = service.NewService(ui.Gallery, service.NewImageCodec(), service.DirScanner{}, ui.log)
	ui.Service.Workers = cfg.Import.Workers
	ui.thumbs = NewThumbnailManager(ui.log)

	ui.UI.MainWin = a.NewWindow("Photo Gallery")
	ui.UI.mainModKey = desktop.ControlModifier
	ui.UI.viewer = newViewer(cfg.Lightbox.FadeDelay, ui.log)

	ui.lightbox = lightbox.New(ui.Gallery,
		lightbox.WithRenderer(ui.UI.viewer),
		lightbox.WithFullscreen(windowFullscreen{win: ui.UI.MainWin}),
		lightbox.WithListener(ui.onLightboxEvent),
		lightbox.WithLogger(ui.log),
		lightbox.WithFadeDelay(cfg.Lightbox.FadeDelay),
		lightbox.WithPeriod(cfg.Slideshow.PeriodSeconds),
	)
	ui.UI.viewer.bind(ui.lightbox.Prev, ui.lightbox.Next, ui.lightbox.Close)

	ui.UI.grid = newThumbnailGrid(ui.thumbs, ui.openImage, ui.deleteImage)
	ui.unsubscribe = ui.Gallery.Subscribe(ui.UI.grid)

	ui.UI.MainWin.SetCloseIntercept(func() {
		ui.shutdown()
		ui.UI.MainWin.Close()
	})
	ui.UI.MainWin.SetContent(ui.buildMainUI())
	ui.UI.MainWin.SetOnDropped(ui.onDropped)
	ui.buildKeyboardShortcuts()
	return ui
}

// CreateApplication is the GUI entrypoint
func CreateApplication(cfg *config.Config, log *slog.Logger) {
	a := app.NewWithID("io.github.photogallery")
	NewApp(a, cfg, log).Run()
}

// Run loads the gallery in the background and blocks until the window is
// closed.
func (a *App) Run() {
	go a.load(context.Background())
	go a.UI.viewer.runClock(a.stopClock)

	a.UI.MainWin.Resize(fyne.NewSize(1024, 768))
	a.UI.MainWin.CenterOnScreen()
	a.UI.MainWin.ShowAndRun()
	a.shutdown()
}

func (a *App) buildMainUI() fyne.CanvasObject {
	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.ContentAddIcon(), a.showAddDialog),
		widget.NewToolbarAction(theme.FolderOpenIcon(), a.showImportDialog),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.MediaPlayIcon(), a.openFirst),
		widget.NewToolbarSpacer(),
		widget.NewToolbarAction(theme.HelpIcon(), a.showShortcuts),
	)

	a.UI.periodEntry = widget.NewEntry()
	a.UI.periodEntry.SetPlaceHolder("seconds")
	a.UI.periodEntry.SetText(strconv.Itoa(a.lightbox.Period()))
	a.UI.periodEntry.OnChanged = a.setPeriod
	period := container.NewBorder(nil, nil, widget.NewLabel("Slideshow every"), widget.NewLabel("s"), a.UI.periodEntry)

	a.UI.statusLabel = widget.NewLabel("Loading...")

	body := container.NewBorder(
		container.NewVBox(toolbar, period), a.UI.statusLabel, nil, nil,
		container.NewVScroll(a.UI.grid.grid),
	)
	return container.NewStack(body, a.UI.viewer.root)
}

// load fills the gallery from the image store. An unavailable store leaves
// an empty, usable gallery.
func (a *App) load(ctx context.Context) {
	err := a.Gallery.LoadFromStore(ctx)
	fyne.Do(func() {
		if err != nil {
			a.setStatus("Image storage is unavailable; new images will not be kept")
			return
		}
		a.updateStatusBar()
	})
}

func (a *App) shutdown() {
	a.stopOnce.Do(func() {
		close(a.stopClock)
		a.lightbox.Close()
		a.unsubscribe()
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing image store", slog.Any("error", err))
		}
	})
}

// onLightboxEvent runs under the controller lock. The overlay is synced from
// the controller state on a separate goroutine so that a queued sync never
// waits on that lock and arrival order does not matter.
func (a *App) onLightboxEvent(lightbox.Event) {
	go fyne.Do(a.syncViewer)
}

func (a *App) syncViewer() {
	if a.lightbox.Phase() == lightbox.Open {
		a.UI.viewer.root.Show()
	} else {
		a.UI.viewer.root.Hide()
	}
	a.updateStatusBar()
}

func (a *App) setStatus(text string) {
	if a.UI.statusLabel != nil {
		a.UI.statusLabel.SetText(text)
	}
}

// updateStatusBar updates the text of the status bar. Main thread only.
func (a *App) updateStatusBar() {
	n := a.Gallery.Len()
	idx := a.lightbox.Index()
	if idx < 0 {
		a.setStatus(fmt.Sprintf("%d images", n))
		return
	}
	text := fmt.Sprintf("Image %d / %d", idx+1, n)
	if a.lightbox.SlideshowRunning() {
		text += fmt.Sprintf("  |  Playing every %ds", a.lightbox.Period())
	} else {
		text += "  |  Paused"
	}
	a.setStatus(text)
}

func (a *App) setPeriod(text string) {
	if err := a.lightbox.SetPeriodInput(text); err != nil {
		a.setStatus("Invalid slideshow period: enter a whole number of seconds")
		return
	}
	a.updateStatusBar()
}

func (a *App) openImage(data string) {
	if err := a.lightbox.Open(a.Gallery.IndexOf(data)); err != nil {
		a.log.Debug("open viewer", slog.Any("error", err))
	}
}

func (a *App) openFirst() {
	if err := a.lightbox.Open(0); errors.Is(err, lightbox.ErrEmptyGallery) {
		a.setStatus("The gallery is empty")
	}
}

func (a *App) deleteImage(data string) {
	go func() {
		_, err := a.Service.Delete(context.Background(), data)
		if err != nil {
			fyne.Do(func() { a.setStatus("Removed, but storage is unavailable; it may return on restart") })
		}
	}()
}

func (a *App) showAddDialog() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.UI.MainWin)
			return
		}
		if r == nil {
			return
		}
		go a.addFromReader(r)
	}, a.UI.MainWin)
	d.SetFilter(storage.NewExtensionFileFilter(scan.Extensions))
	d.Show()
}

func (a *App) addFromReader(r fyne.URIReadCloser) {
	defer r.Close()

	name := r.URI().Name()
	b, err := io.ReadAll(r)
	if err != nil {
		a.log.Warn("reading image", slog.String("name", name), slog.Any("error", err))
		fyne.Do(func() { a.setStatus(fmt.Sprintf("Could not read %s", name)) })
		return
	}
	var report service.AddReport
	report.Record(a.Service.AddBytes(context.Background(), name, b))
	fyne.Do(func() { a.reportAdd(report) })
}

func (a *App) showImportDialog() {
	dialog.ShowFolderOpen(func(l fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, a.UI.MainWin)
			return
		}
		if l == nil {
			return
		}
		go func() {
			report, err := a.Service.ImportDirectory(context.Background(), l.Path())
			fyne.Do(func() {
				if err != nil {
					a.setStatus(err.Error())
					return
				}
				a.reportAdd(report)
			})
		}()
	}, a.UI.MainWin)
}

func (a *App) onDropped(_ fyne.Position, uris []fyne.URI) {
	var paths []string
	for _, u := range uris {
		if u.Scheme() == "file" && scan.IsImage(u.Path()) {
			paths = append(paths, u.Path())
		}
	}
	if len(paths) == 0 {
		return
	}
	go func() {
		report := a.Service.AddFiles(context.Background(), paths)
		fyne.Do(func() { a.reportAdd(report) })
	}()
}

// reportAdd summarises a batch in the status bar. Main thread only.
func (a *App) reportAdd(r service.AddReport) {
	text := fmt.Sprintf("Added %d images", r.Added)
	if r.Skipped > 0 {
		text += fmt.Sprintf(", skipped %d unreadable files", r.Skipped)
	}
	if r.NotPersisted > 0 {
		text += fmt.Sprintf(" (%d not saved: storage unavailable)", r.NotPersisted)
	}
	a.setStatus(text)
}
