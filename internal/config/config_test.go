package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendBolt, cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Slideshow.PeriodSeconds)
	assert.Equal(t, 500*time.Millisecond, cfg.Lightbox.FadeDelay)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "32M", cfg.HTTP.BodyLimit)
	assert.Equal(t, 4, cfg.Import.Workers)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	content := `
store:
  backend: sqlite
  path: /tmp/photos.sqlite
slideshow:
  period_seconds: 12
lightbox:
  fade_delay: 150ms
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/photos.sqlite", cfg.Store.Path)
	assert.Equal(t, 12, cfg.Slideshow.PeriodSeconds)
	assert.Equal(t, 150*time.Millisecond, cfg.Lightbox.FadeDelay)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PHOTOGALLERY_STORE_BACKEND", "redis")
	t.Setenv("PHOTOGALLERY_STORE_REDIS_ADDR", "cache:6379")
	t.Setenv("PHOTOGALLERY_SLIDESHOW_PERIOD_SECONDS", "9")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 9, cfg.Slideshow.PeriodSeconds)
}

func TestLoadFlagsWin(t *testing.T) {
	t.Setenv("PHOTOGALLERY_STORE_BACKEND", "redis")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("backend", "", "")
	flags.String("db", "", "")
	require.NoError(t, flags.Parse([]string{"--backend", "sqlite", "--db", "x.sqlite"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "x.sqlite", cfg.Store.Path)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("PHOTOGALLERY_STORE_BACKEND", "indexeddb")
		_, err := Load("", nil)
		assert.Error(t, err)
	})
	t.Run("zero period", func(t *testing.T) {
		t.Setenv("PHOTOGALLERY_SLIDESHOW_PERIOD_SECONDS", "0")
		_, err := Load("", nil)
		assert.Error(t, err)
	})
	t.Run("fade too long", func(t *testing.T) {
		t.Setenv("PHOTOGALLERY_LIGHTBOX_FADE_DELAY", "10s")
		_, err := Load("", nil)
		assert.Error(t, err)
	})
}

func TestResolvePath(t *testing.T) {
	p, err := Store{Backend: BackendBolt, Path: "explicit.db"}.ResolvePath()
	require.NoError(t, err)
	assert.Equal(t, "explicit.db", p)

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	p, err = Store{Backend: BackendSQLite}.ResolvePath()
	require.NoError(t, err)
	assert.Equal(t, "photogallery.sqlite", filepath.Base(p))
	assert.DirExists(t, filepath.Dir(p))
}

func TestAddFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flags)
	require.NoError(t, flags.Parse([]string{"--period", "9", "--log", "debug"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Slideshow.PeriodSeconds)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, BackendBolt, cfg.Store.Backend)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}
