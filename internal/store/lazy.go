package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"photogallery/internal/config"
	"photogallery/internal/logging"
)

var errClosed = errors.New("store closed")

// Opener initializes a backend.
type Opener func(ctx context.Context) (Store, error)

// Lazy opens its backend on first use. The first initialization, successful
// or not, is memoized for the lifetime of the Lazy, so concurrent callers
// share one open and a failed open turns every later operation into
// ErrStorageUnavailable instead of retrying.
type Lazy struct {
	opener Opener
	log    *slog.Logger

	once  sync.Once
	store Store
	err   error

	closeOnce sync.Once
	closeErr  error
}

// NewLazy wraps opener.
func NewLazy(opener Opener, log *slog.Logger) *Lazy {
	return &Lazy{opener: opener, log: logging.OrDiscard(log)}
}

// New returns a Lazy store for the backend named in cfg.
func New(cfg config.Store, log *slog.Logger) *Lazy {
	return NewLazy(OpenerFor(cfg, log), log)
}

// OpenerFor returns the Opener of the backend named in cfg.
func OpenerFor(cfg config.Store, log *slog.Logger) Opener {
	return func(ctx context.Context) (Store, error) {
		switch cfg.Backend {
		case config.BackendBolt, "":
			path, err := cfg.ResolvePath()
			if err != nil {
				return nil, unavailable("open bolt", err)
			}
			return OpenBolt(path, log)
		case config.BackendSQLite:
			path, err := cfg.ResolvePath()
			if err != nil {
				return nil, unavailable("open sqlite", err)
			}
			return OpenSQLite(ctx, path, log)
		case config.BackendRedis:
			return OpenRedis(ctx, &redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			}, log)
		default:
			return nil, unavailable("open", fmt.Errorf("unsupported store backend: %s", cfg.Backend))
		}
	}
}

// Open initializes the backend once and returns it.
func (l *Lazy) Open(ctx context.Context) (Store, error) {
	l.once.Do(func() {
		// Initialization outlives the caller that happened to trigger it.
		s, err := l.opener(context.WithoutCancel(ctx))
		if err != nil {
			l.err = unavailable("open", err)
			l.log.Warn("image store unavailable, images will not persist this session", slog.Any("error", err))
			return
		}
		l.store = s
	})
	return l.store, l.err
}

func (l *Lazy) Put(ctx context.Context, id, data string) error {
	s, err := l.Open(ctx)
	if err != nil {
		return err
	}
	return s.Put(ctx, id, data)
}

func (l *Lazy) Delete(ctx context.Context, id string) error {
	s, err := l.Open(ctx)
	if err != nil {
		return err
	}
	return s.Delete(ctx, id)
}

func (l *Lazy) ListAll(ctx context.Context) ([]Record, error) {
	s, err := l.Open(ctx)
	if err != nil {
		return nil, err
	}
	return s.ListAll(ctx)
}

// Close closes the backend if it was opened. A Lazy that was never opened
// will not open afterwards.
func (l *Lazy) Close() error {
	l.closeOnce.Do(func() {
		l.once.Do(func() {
			l.err = unavailable("open", errClosed)
		})
		if l.store != nil {
			l.closeErr = l.store.Close()
		}
	})
	return l.closeErr
}
