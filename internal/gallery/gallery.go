// Package gallery keeps the ordered in-memory view of all known images in
// step with the image store. It is the source of truth for the thumbnail
// grid and the index space the lightbox navigates.
package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"photogallery/internal/logging"
	"photogallery/internal/store"
)

// Image is one gallery entry: its store key and its encoded data.
type Image struct {
	ID   string
	Data string
}

// Observer receives one notification per projection change. Notifications
// are delivered synchronously, in mutation order, after the in-memory view
// has been updated. Observers may read the Model but must not call Append,
// RemoveByValue or RemoveByID from the callback.
type Observer interface {
	ImageAppended(img Image, index int)
	ImageRemoved(img Image, index int)
}

// Option configures a Model.
type Option func(*Model)

// WithIDGenerator replaces the default UUIDv7 generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Model) {
		m.ids = g
	}
}

// Model is the ordered projection of the image store.
type Model struct {
	store store.Store
	ids   IDGenerator
	log   *slog.Logger

	// writeMu serializes mutations so that id order, store writes and
	// projection order agree, and observers see mutations one at a time.
	writeMu sync.Mutex
	loaded  bool

	mu        sync.RWMutex
	images    []Image
	observers []*observerEntry
}

type observerEntry struct {
	Observer
}

// New creates an empty Model persisting through st.
func New(st store.Store, log *slog.Logger, opts ...Option) *Model {
	m := &Model{
		store: st,
		ids:   UUIDGenerator{},
		log:   logging.OrDiscard(log),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers o and returns a function that removes it again.
func (m *Model) Subscribe(o Observer) (unsubscribe func()) {
	entry := &observerEntry{Observer: o}
	m.mu.Lock()
	m.observers = append(m.observers, entry)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.observers = slices.DeleteFunc(m.observers, func(e *observerEntry) bool {
			return e == entry
		})
	}
}

// LoadFromStore seeds the model from the store. It runs once; later calls
// are no-ops. Records are ordered by id, which for UUIDv7 ids is the order
// they were appended in. A store failure leaves the model empty and usable;
// the error is returned for reporting only.
func (m *Model) LoadFromStore(ctx context.Context) error {
	const op = "gallery.LoadFromStore"
	log := m.log.With(slog.String("op", op))

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if m.loaded {
		return nil
	}
	m.loaded = true

	records, err := m.store.ListAll(ctx)
	if err != nil {
		log.Warn("image store unavailable, starting with an empty gallery", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	m.mu.Lock()
	known := make(map[string]bool, len(m.images))
	for _, img := range m.images {
		known[img.ID] = true
	}
	start := len(m.images)
	for _, r := range records {
		if known[r.ID] {
			continue
		}
		m.images = append(m.images, Image{ID: r.ID, Data: r.Data})
	}
	added := slices.Clone(m.images[start:])
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	for i, img := range added {
		for _, o := range observers {
			o.ImageAppended(img, start+i)
		}
	}
	log.Info("gallery loaded", slog.Int("images", len(added)))
	return nil
}

// Append issues a fresh id, persists data under it and then appends it to
// the view, returning its position. If persisting fails the image is still
// appended and its position is returned together with the wrapped
// store.ErrStorageUnavailable: the image is visible now but will not
// survive a reload.
func (m *Model) Append(ctx context.Context, data string) (int, error) {
	_, index, err := m.AppendImage(ctx, data)
	return index, err
}

// AppendImage is Append that also returns the new entry.
func (m *Model) AppendImage(ctx context.Context, data string) (Image, int, error) {
	const op = "gallery.Append"

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	id, err := m.ids.NewID()
	if err != nil {
		return Image{}, -1, fmt.Errorf("%s: generate id: %w", op, err)
	}

	persistErr := m.store.Put(ctx, id, data)
	if persistErr != nil {
		m.log.Warn("image not persisted, it will not survive a reload",
			slog.String("op", op), slog.String("id", id), slog.Any("error", persistErr))
	}

	img := Image{ID: id, Data: data}
	m.mu.Lock()
	m.images = append(m.images, img)
	index := len(m.images) - 1
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	for _, o := range observers {
		o.ImageAppended(img, index)
	}

	if persistErr != nil {
		return img, index, fmt.Errorf("%s: %w", op, persistErr)
	}
	return img, index, nil
}

// RemoveByValue removes the first entry whose data equals data and asks the
// store to delete its id. It reports whether an entry was removed; removing
// a value that is not present is a no-op. A store failure is returned
// wrapped after the entry has already left the view.
func (m *Model) RemoveByValue(ctx context.Context, data string) (bool, error) {
	return m.remove(ctx, "gallery.RemoveByValue", func(img Image) bool {
		return img.Data == data
	})
}

// RemoveByID is RemoveByValue for callers that know the store key.
func (m *Model) RemoveByID(ctx context.Context, id string) (bool, error) {
	return m.remove(ctx, "gallery.RemoveByID", func(img Image) bool {
		return img.ID == id
	})
}

func (m *Model) remove(ctx context.Context, op string, match func(Image) bool) (bool, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	index := slices.IndexFunc(m.images, match)
	if index < 0 {
		m.mu.Unlock()
		return false, nil
	}
	img := m.images[index]
	m.images = slices.Delete(m.images, index, index+1)
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	persistErr := m.store.Delete(ctx, img.ID)

	for _, o := range observers {
		o.ImageRemoved(img, index)
	}

	if persistErr != nil {
		m.log.Warn("image removal not persisted, it will reappear after a reload",
			slog.String("op", op), slog.String("id", img.ID), slog.Any("error", persistErr))
		return true, fmt.Errorf("%s: %w", op, persistErr)
	}
	return true, nil
}

// IndexOf returns the position of the first entry with the given data, or -1.
func (m *Model) IndexOf(data string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.IndexFunc(m.images, func(img Image) bool {
		return img.Data == data
	})
}

// IndexOfID returns the position of the entry with the given id, or -1.
func (m *Model) IndexOfID(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.IndexFunc(m.images, func(img Image) bool {
		return img.ID == id
	})
}

// Len returns the number of entries.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.images)
}

// At returns the entry at index.
func (m *Model) At(index int) (Image, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index < 0 || index >= len(m.images) {
		return Image{}, false
	}
	return m.images[index], true
}

// Images returns a copy of the current view.
func (m *Model) Images() []Image {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.images)
}
