package ui

import (
	"bytes"
	"image"
	"image/png"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/nfnt/resize"

	"photogallery/internal/gallery"
	"photogallery/internal/service"
)

const (
	// ThumbnailWidth is the width of the thumbnails in the gallery grid.
	ThumbnailWidth = 160
	// ThumbnailHeight is the height of the thumbnails in the gallery grid.
	ThumbnailHeight = 120
)

// ThumbnailManager handles generation and caching of image thumbnails.
type ThumbnailManager struct {
	cache      map[string]fyne.Resource
	cacheMutex sync.RWMutex
	log        *slog.Logger
}

// NewThumbnailManager creates a new thumbnail manager.
func NewThumbnailManager(log *slog.Logger) *ThumbnailManager {
	return &ThumbnailManager{
		cache: make(map[string]fyne.Resource),
		log:   log,
	}
}

// imageToBytes is a helper to convert image.Image to []byte for Fyne resources.
func imageToBytes(img image.Image) []byte {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

// makeThumbnail scales the stored image down for display. The stored data
// itself is never modified.
func makeThumbnail(img gallery.Image) (fyne.Resource, error) {
	b, _, err := service.DecodeDataURL(img.Data)
	if err != nil {
		return nil, err
	}
	decoded, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	thumb := resize.Thumbnail(ThumbnailWidth, ThumbnailHeight, decoded, resize.Lanczos3)
	return fyne.NewStaticResource("thumb-"+img.ID, imageToBytes(thumb)), nil
}

// GetThumbnail returns the cached thumbnail for img, or a placeholder while
// the thumbnail is generated in the background; onComplete then receives it
// on the main thread.
func (tm *ThumbnailManager) GetThumbnail(img gallery.Image, onComplete func(fyne.Resource)) fyne.Resource {
	tm.cacheMutex.RLock()
	if res, ok := tm.cache[img.ID]; ok {
		tm.cacheMutex.RUnlock()
		return res
	}
	tm.cacheMutex.RUnlock()

	go func() {
		res, err := makeThumbnail(img)
		if err != nil {
			tm.log.Warn("thumbnail failed", slog.String("id", img.ID), slog.Any("error", err))
			return
		}

		tm.cacheMutex.Lock()
		tm.cache[img.ID] = res
		tm.cacheMutex.Unlock()

		fyne.Do(func() {
			onComplete(res)
		})
	}()

	return theme.FileImageIcon()
}

// Forget drops the cached thumbnail of id.
func (tm *ThumbnailManager) Forget(id string) {
	tm.cacheMutex.Lock()
	defer tm.cacheMutex.Unlock()
	delete(tm.cache, id)
}

// thumbnailGrid renders one tile per gallery entry. It is a gallery.Observer;
// widget changes are marshalled onto the main thread in notification order.
type thumbnailGrid struct {
	grid     *fyne.Container
	thumbs   *ThumbnailManager
	onOpen   func(data string)
	onDelete func(data string)

	// tiles is only touched on the main thread.
	tiles map[string]fyne.CanvasObject
}

func newThumbnailGrid(thumbs *ThumbnailManager, onOpen, onDelete func(data string)) *thumbnailGrid {
	return &thumbnailGrid{
		grid:     container.NewGridWrap(fyne.NewSize(ThumbnailWidth, ThumbnailHeight+theme.Padding()*2+theme.IconInlineSize()*2)),
		thumbs:   thumbs,
		onOpen:   onOpen,
		onDelete: onDelete,
		tiles:    make(map[string]fyne.CanvasObject),
	}
}

func (g *thumbnailGrid) newTile(img gallery.Image) fyne.CanvasObject {
	ti := newTappableImage(nil, func() { g.onOpen(img.Data) })
	ti.SetMinSize(fyne.NewSize(ThumbnailWidth, ThumbnailHeight))
	ti.SetResource(g.thumbs.GetThumbnail(img, ti.SetResource))

	deleteBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() { g.onDelete(img.Data) })
	ti.onSecondaryTapped = deleteBtn.OnTapped
	return container.NewBorder(nil, deleteBtn, nil, nil, ti)
}

func (g *thumbnailGrid) ImageAppended(img gallery.Image, _ int) {
	fyne.Do(func() {
		tile := g.newTile(img)
		g.tiles[img.ID] = tile
		g.grid.Add(tile)
	})
}

func (g *thumbnailGrid) ImageRemoved(img gallery.Image, _ int) {
	fyne.Do(func() {
		if tile, ok := g.tiles[img.ID]; ok {
			g.grid.Remove(tile)
			delete(g.tiles, img.ID)
		}
		g.thumbs.Forget(img.ID)
	})
}

// len returns the number of tiles. Main thread only.
func (g *thumbnailGrid) len() int {
	return len(g.grid.Objects)
}
