package service

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks every DecodeError.
var ErrDecode = errors.New("cannot decode image")

// DecodeError reports a file that could not be turned into gallery data.
// The file is skipped; the rest of its batch continues.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

const dataURLPrefix = "data:"

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// ImageInfo holds metadata about an encoded image.
type ImageInfo struct {
	Width    int
	Height   int
	Size     int
	MIME     string
	EXIFData map[string]string
}

// ImageCodec converts image files to and from the self-describing data URLs
// the gallery stores.
type ImageCodec struct {
	// MaxBytes rejects larger files when positive.
	MaxBytes int64
}

// NewImageCodec creates a new ImageCodec.
func NewImageCodec() *ImageCodec {
	return &ImageCodec{}
}

// Decode reads the file at path and encodes it as a data URL.
func (c *ImageCodec) Decode(path string) (string, error) {
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return "", &DecodeError{Name: name, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if c.MaxBytes > 0 {
		r = io.LimitReader(f, c.MaxBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", &DecodeError{Name: name, Err: err}
	}
	return c.DecodeBytes(name, b)
}

// DecodeBytes encodes raw file contents as a data URL. The content must be
// an image in one of the registered formats.
func (c *ImageCodec) DecodeBytes(name string, b []byte) (string, error) {
	if len(b) == 0 {
		return "", &DecodeError{Name: name, Err: errors.New("empty file")}
	}
	if c.MaxBytes > 0 && int64(len(b)) > c.MaxBytes {
		return "", &DecodeError{Name: name, Err: fmt.Errorf("larger than %d bytes", c.MaxBytes)}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return "", &DecodeError{Name: name, Err: err}
	}
	mime, ok := mimeTypes[format]
	if !ok {
		return "", &DecodeError{Name: name, Err: fmt.Errorf("unsupported format %q", format)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", &DecodeError{Name: name, Err: fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	return dataURLPrefix + mime + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}

// DecodeDataURL returns the raw bytes and MIME type held by a data URL.
func DecodeDataURL(data string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(data, dataURLPrefix)
	if !ok {
		return nil, "", errors.New("not a data URL")
	}
	mime, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return nil, "", errors.New("data URL is not base64 encoded")
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URL payload: %w", err)
	}
	return b, mime, nil
}

// GetEXIF extracts a few common EXIF fields.
func GetEXIF(r io.Reader) map[string]string {
	x, err := exif.Decode(r)
	if err != nil {
		// Not all images have EXIF.
		return nil
	}
	result := make(map[string]string)
	for _, field := range []string{
		"DateTime", "Model", "Make", "ExposureTime", "FNumber", "ISOSpeedRatings", "FocalLength",
	} {
		tag, err := x.Get(exif.FieldName(field))
		if err == nil && tag != nil {
			result[field] = tag.String()
		}
	}
	return result
}

// Info returns dimensions, size, MIME type and EXIF data of a stored image.
func (c *ImageCodec) Info(data string) (*ImageInfo, error) {
	b, mime, err := DecodeDataURL(data)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for info: %w", err)
	}
	return &ImageInfo{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Size:     len(b),
		MIME:     mime,
		EXIFData: GetEXIF(bytes.NewReader(b)),
	}, nil
}
