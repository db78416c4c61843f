// Package config loads the gallery configuration from defaults, an optional
// YAML file, PHOTOGALLERY_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	appName    = "photogallery"
	envPrefix  = "PHOTOGALLERY"
	configName = "photogallery"
	boltFile   = "photogallery.db"
	sqliteFile = "photogallery.sqlite"
)

// Store backend names accepted in store.backend.
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the complete application configuration.
type Config struct {
	Store     Store     `mapstructure:"store"`
	Slideshow Slideshow `mapstructure:"slideshow"`
	Lightbox  Lightbox  `mapstructure:"lightbox"`
	HTTP      HTTP      `mapstructure:"http"`
	Log       Log       `mapstructure:"log"`
	Import    Import    `mapstructure:"import"`
}

// Store selects and locates the image store backend.
type Store struct {
	Backend string `mapstructure:"backend" validate:"oneof=bolt sqlite redis"`
	Path    string `mapstructure:"path"`
	Redis   Redis  `mapstructure:"redis"`
}

// Redis holds the connection settings of the redis backend.
type Redis struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// Slideshow holds the initial slideshow period shown in the period input.
type Slideshow struct {
	PeriodSeconds int `mapstructure:"period_seconds" validate:"gte=1"`
}

// Lightbox holds the transition timing of the viewer.
type Lightbox struct {
	FadeDelay time.Duration `mapstructure:"fade_delay" validate:"gte=0,lte=5s"`
}

// HTTP configures the API server started by the serve command.
type HTTP struct {
	Addr      string `mapstructure:"addr" validate:"required"`
	BodyLimit string `mapstructure:"body_limit" validate:"required"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// Import bounds the number of files decoded concurrently.
type Import struct {
	Workers int `mapstructure:"workers" validate:"gte=1,lte=64"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"backend": "store.backend",
	"db":      "store.path",
	"period":  "slideshow.period_seconds",
	"addr":    "http.addr",
	"log":     "log.level",
}

// AddFlags declares the command line flags Load understands on fs. Each
// flag only overrides the configuration when set.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML configuration file")
	fs.String("backend", "", "image store backend: bolt, sqlite or redis")
	fs.String("db", "", "database file of the bolt and sqlite backends")
	fs.Int("period", 0, "slideshow period in seconds")
	fs.String("addr", "", "http listen address")
	fs.String("log", "", "log level: debug, info, warn or error")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendBolt)
	v.SetDefault("store.path", "")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("slideshow.period_seconds", 5)
	v.SetDefault("lightbox.fade_delay", 500*time.Millisecond)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.body_limit", "32M")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("import.workers", 4)
}

// Default returns the built-in defaults, ignoring files, environment and flags.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads the configuration. An empty path looks for photogallery.yaml in
// the working directory and tolerates its absence; an explicit path must
// exist. Flags that were set on the command line win over every other source.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ResolvePath returns the database file of a file based backend. An empty
// Path resolves to a file in the user config directory, falling back to the
// working directory when no config directory is available.
func (s Store) ResolvePath() (string, error) {
	if s.Path != "" {
		return s.Path, nil
	}

	name := boltFile
	if s.Backend == BackendSQLite {
		name = sqliteFile
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return name, nil
	}
	dir := filepath.Join(configDir, appName)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return filepath.Join(dir, name), nil
}
