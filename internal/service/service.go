package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"photogallery/internal/gallery"
	"photogallery/internal/logging"
	"photogallery/internal/scan"
	"photogallery/internal/store"
)

const defaultWorkers = 4

// Gallery abstracts the gallery model for easier testing and decoupling.
type Gallery interface {
	AppendImage(ctx context.Context, data string) (gallery.Image, int, error)
	RemoveByValue(ctx context.Context, data string) (bool, error)
	RemoveByID(ctx context.Context, id string) (bool, error)
	Images() []gallery.Image
}

// Codec turns files into gallery data.
type Codec interface {
	Decode(path string) (string, error)
	DecodeBytes(name string, b []byte) (string, error)
}

// FileScanner abstracts file scanning.
type FileScanner interface {
	Run(dir string, log *slog.Logger) <-chan scan.FileItem
}

// DirScanner is the FileScanner backed by scan.Run.
type DirScanner struct{}

func (DirScanner) Run(dir string, log *slog.Logger) <-chan scan.FileItem {
	return scan.Run(dir, log)
}

// Recorder counts failures handled at this boundary.
type Recorder interface {
	DecodeFailed()
	PersistFailed()
}

type nopRecorder struct{}

func (nopRecorder) DecodeFailed()  {}
func (nopRecorder) PersistFailed() {}

// AddResult is the outcome for one file. Err is nil for a fully persisted
// image, a DecodeError for a skipped file, or wraps
// store.ErrStorageUnavailable for an image shown but not persisted.
type AddResult struct {
	Name  string
	Image gallery.Image
	Index int
	Err   error
}

// Added reports whether the file made it into the gallery.
func (r AddResult) Added() bool {
	return r.Err == nil || errors.Is(r.Err, store.ErrStorageUnavailable)
}

// AddReport summarizes a batch. Results holds one entry per file; the
// gallery order of added images is given by their Index.
type AddReport struct {
	Added        int
	Skipped      int
	NotPersisted int
	Results      []AddResult
}

// Record adds one result to the report.
func (r *AddReport) Record(res AddResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.Err == nil:
		r.Added++
	case errors.Is(res.Err, store.ErrStorageUnavailable):
		r.Added++
		r.NotPersisted++
	default:
		r.Skipped++
	}
}

// Service is the main entry point for business logic.
type Service struct {
	Gallery  Gallery
	Codec    Codec
	FileScan FileScanner
	Metrics  Recorder
	Logger   *slog.Logger
	Workers  int
}

// NewService constructs a new Service.
func NewService(g Gallery, codec Codec, fileScan FileScanner, log *slog.Logger) *Service {
	return &Service{
		Gallery:  g,
		Codec:    codec,
		FileScan: fileScan,
		Metrics:  nopRecorder{},
		Logger:   logging.OrDiscard(log),
		Workers:  defaultWorkers,
	}
}

// AddFiles decodes paths concurrently and appends each image as soon as its
// decode completes. A file that cannot be decoded is skipped; the batch
// always runs to the end unless ctx is cancelled.
func (s *Service) AddFiles(ctx context.Context, paths []string) AddReport {
	var (
		mu     sync.Mutex
		report AddReport
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := s.add(ctx, filepath.Base(path), func() (string, error) {
				return s.Codec.Decode(path)
			})
			mu.Lock()
			report.Record(res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.Logger.Warn("add files interrupted", slog.Any("error", err))
	}

	s.Logger.Info("files added",
		slog.Int("added", report.Added),
		slog.Int("skipped", report.Skipped),
		slog.Int("not_persisted", report.NotPersisted))
	return report
}

// AddBytes decodes one uploaded file and appends it.
func (s *Service) AddBytes(ctx context.Context, name string, b []byte) AddResult {
	return s.add(ctx, name, func() (string, error) {
		return s.Codec.DecodeBytes(name, b)
	})
}

func (s *Service) add(ctx context.Context, name string, decode func() (string, error)) AddResult {
	data, err := decode()
	if err != nil {
		s.recorder().DecodeFailed()
		s.Logger.Warn("skipping file", slog.String("file", name), slog.Any("error", err))
		return AddResult{Name: name, Index: -1, Err: err}
	}

	img, index, err := s.Gallery.AppendImage(ctx, data)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrStorageUnavailable):
		s.recorder().PersistFailed()
	default:
		return AddResult{Name: name, Index: -1, Err: err}
	}
	s.Logger.Debug("image added", slog.String("file", name), slog.String("id", img.ID), slog.Int("index", index))
	return AddResult{Name: name, Image: img, Index: index, Err: err}
}

// ImportDirectory adds every image file found under dir.
func (s *Service) ImportDirectory(ctx context.Context, dir string) (AddReport, error) {
	if dir == "" {
		return AddReport{}, errors.New("directory required")
	}
	var paths []string
	for item := range s.FileScan.Run(dir, s.Logger) {
		paths = append(paths, item.Path)
	}
	if len(paths) == 0 {
		return AddReport{}, fmt.Errorf("no images found in %s", dir)
	}
	return s.AddFiles(ctx, paths), nil
}

// Delete removes the first image whose data equals data.
func (s *Service) Delete(ctx context.Context, data string) (bool, error) {
	removed, err := s.Gallery.RemoveByValue(ctx, data)
	if err != nil {
		s.recorder().PersistFailed()
	}
	return removed, err
}

// DeleteByID removes the image stored under id.
func (s *Service) DeleteByID(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("image id required")
	}
	removed, err := s.Gallery.RemoveByID(ctx, id)
	if err != nil {
		s.recorder().PersistFailed()
	}
	return removed, err
}

// List returns the gallery in display order.
func (s *Service) List() []gallery.Image {
	return s.Gallery.Images()
}

func (s *Service) recorder() Recorder {
	if s.Metrics == nil {
		return nopRecorder{}
	}
	return s.Metrics
}

func (s *Service) workers() int {
	if s.Workers <= 0 {
		return defaultWorkers
	}
	return s.Workers
}
