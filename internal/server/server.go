// Package server exposes the gallery over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"photogallery/internal/gallery"
	"photogallery/internal/logging"
	"photogallery/internal/metrics"
	"photogallery/internal/service"
	"photogallery/internal/store"
)

const uploadField = "image"

// Images is the part of the service the API serves.
type Images interface {
	List() []gallery.Image
	AddBytes(ctx context.Context, name string, b []byte) service.AddResult
	DeleteByID(ctx context.Context, id string) (bool, error)
}

type Server struct {
	e      *echo.Echo
	images Images
	log    *slog.Logger
}

type echoValidator struct {
	validator *validator.Validate
}

func (v *echoValidator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
	}
	return nil
}

// New builds the API around images. Metrics from gatherer are served on
// /metrics when it is non-nil.
func New(images Images, gatherer prometheus.Gatherer, bodyLimit string, log *slog.Logger) *Server {
	log = logging.OrDiscard(log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &echoValidator{validator: validator.New()}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/probe"
		},
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogURI:      true,
		LogError:    true,
		LogRemoteIP: true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				log.Warn("request", append(attrs, slog.Any("error", v.Error))...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if bodyLimit != "" {
		e.Use(middleware.BodyLimit(bodyLimit))
	}
	e.Pre(middleware.RemoveTrailingSlash())

	s := &Server{e: e, images: images, log: log}
	s.setRoutes(gatherer)
	return s
}

func (s *Server) setRoutes(gatherer prometheus.Gatherer) {
	s.e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "photogallery is running")
	})
	if gatherer != nil {
		s.e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))
	}

	api := s.e.Group("/api")
	{
		api.GET("/images", s.listImages)
		api.POST("/images", s.uploadImages)
		api.GET("/images/:id", s.getImage)
		api.DELETE("/images/:id", s.deleteImage)
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	const op = "server.Start"

	s.log.Info("starting http server", slog.String("addr", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	const op = "server.Shutdown"

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.log.Info("stopping http server")
	if err := s.e.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s: could not shut down gracefully: %w", op, err)
	}
	return nil
}

type imageSummary struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	MIME  string `json:"mime"`
	Size  int    `json:"size"`
}

type listQuery struct {
	Offset int `query:"offset" validate:"gte=0"`
	Limit  int `query:"limit" validate:"gte=0,lte=1000"`
}

type listResponse struct {
	Total  int            `json:"total"`
	Images []imageSummary `json:"images"`
}

func summarize(img gallery.Image, index int) imageSummary {
	mime := ""
	if rest, ok := strings.CutPrefix(img.Data, "data:"); ok {
		mime, _, _ = strings.Cut(rest, ";")
	}
	return imageSummary{ID: img.ID, Index: index, MIME: mime, Size: len(img.Data)}
}

func (s *Server) listImages(c echo.Context) error {
	var q listQuery
	if err := c.Bind(&q); err != nil {
		return err
	}
	if err := c.Validate(&q); err != nil {
		return err
	}

	all := s.images.List()
	resp := listResponse{Total: len(all), Images: []imageSummary{}}
	end := len(all)
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	for i := q.Offset; i < end; i++ {
		resp.Images = append(resp.Images, summarize(all[i], i))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getImage(c echo.Context) error {
	id := c.Param("id")
	for _, img := range s.images.List() {
		if img.ID != id {
			continue
		}
		b, mime, err := service.DecodeDataURL(img.Data)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "stored image is corrupt").SetInternal(err)
		}
		return c.Blob(http.StatusOK, mime, b)
	}
	return echo.NewHTTPError(http.StatusNotFound, "image not found")
}

type uploadResult struct {
	Name      string `json:"name"`
	ID        string `json:"id,omitempty"`
	Index     int    `json:"index"`
	Persisted bool   `json:"persisted"`
	Error     string `json:"error,omitempty"`
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) uploadImages(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required").SetInternal(err)
	}
	files := form.File[uploadField]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("no %q files in request", uploadField))
	}

	ctx := c.Request().Context()
	results := make([]uploadResult, 0, len(files))
	added := 0
	for _, fh := range files {
		b, err := readPart(fh)
		if err != nil {
			results = append(results, uploadResult{Name: fh.Filename, Index: -1, Error: err.Error()})
			continue
		}
		res := s.images.AddBytes(ctx, fh.Filename, b)
		out := uploadResult{Name: fh.Filename, ID: res.Image.ID, Index: res.Index, Persisted: res.Err == nil}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		if res.Added() {
			added++
		}
		results = append(results, out)
	}

	status := http.StatusCreated
	if added == 0 {
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, results)
}

type deleteResponse struct {
	ID        string `json:"id"`
	Persisted bool   `json:"persisted"`
}

func (s *Server) deleteImage(c echo.Context) error {
	id := c.Param("id")
	removed, err := s.images.DeleteByID(c.Request().Context(), id)
	switch {
	case !removed && err == nil:
		return echo.NewHTTPError(http.StatusNotFound, "image not found")
	case errors.Is(err, store.ErrStorageUnavailable):
		return c.JSON(http.StatusOK, deleteResponse{ID: id, Persisted: false})
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
