// Package scan finds image files in a directory and its subdirectories
package scan

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"photogallery/internal/logging"
)

// FileItem is one image file found by Run.
type FileItem struct {
	Path string
	Size int64
}

// Run walks dir in lexical order and streams every non-empty regular image
// file. Unreadable entries are logged and skipped. The channel is closed
// when the walk ends.
func Run(dir string, log *slog.Logger) <-chan FileItem {
	log = logging.OrDiscard(log).With(slog.String("dir", dir))
	out := make(chan FileItem)

	go func() {
		defer close(out)
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == dir {
					return err
				}
				log.Warn("skipping unreadable entry", slog.String("path", p), slog.Any("error", err))
				return nil
			}
			if !d.Type().IsRegular() || !IsImage(p) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				log.Warn("skipping unreadable file", slog.String("path", p), slog.Any("error", err))
				return nil
			}
			if info.Size() == 0 {
				return nil
			}
			out <- FileItem{Path: p, Size: info.Size()}
			return nil
		})
		if err != nil {
			log.Warn("scan failed", slog.Any("error", err))
		}
	}()

	return out
}

// Extensions lists the file extensions treated as images.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// IsImage checks if a file is an image
func IsImage(n string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(n)))
}
