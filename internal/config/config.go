// Package config loads the ercanvas TOML configuration file.
//
// Lookup order: the --config flag, then $ERCANVAS_CONFIG, then
// ~/.config/ercanvas/config.toml. A missing default file is not an error;
// every field has a default. GEMINI_API_KEY overrides tutor.api_key.
//
//	[layout]
//	card_width = 256
//
//	[canvas]
//	grid = { enabled = true, size = 20 }
//
//	[tutor]
//	fast_model = "gemini-3-flash-preview"
//
//	[storage]
//	backend = "sqlite"
//	path = "/var/lib/ercanvas/workspaces.db"
//
//	[server]
//	addr = ":8080"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/ercanvas/pkg/errors"
	"github.com/matzehuels/ercanvas/pkg/geometry"
	"github.com/matzehuels/ercanvas/pkg/interact"
	"github.com/matzehuels/ercanvas/pkg/storage"
	"github.com/matzehuels/ercanvas/pkg/tutor"
)

// Environment variables consulted by [Load].
const (
	EnvConfigPath = "ERCANVAS_CONFIG"
	EnvAPIKey     = "GEMINI_API_KEY"
)

// Config is the full configuration.
type Config struct {
	Layout  geometry.Metrics `toml:"layout"`
	Canvas  Canvas           `toml:"canvas"`
	Tutor   Tutor            `toml:"tutor"`
	Cache   Cache            `toml:"cache"`
	Storage Storage          `toml:"storage"`
	Server  Server           `toml:"server"`
}

// Canvas configures interaction defaults.
type Canvas struct {
	Grid   interact.Grid `toml:"grid"`
	Width  float64       `toml:"width"`
	Height float64       `toml:"height"`
}

// Tutor configures the text-generation client.
type Tutor struct {
	Endpoint       string   `toml:"endpoint"`
	APIKey         string   `toml:"api_key"`
	FastModel      string   `toml:"fast_model"`
	ReasoningModel string   `toml:"reasoning_model"`
	Language       string   `toml:"language"`
	Attempts       int      `toml:"attempts"`
	Timeout        Duration `toml:"timeout"`
}

// Cache configures the tutor response cache.
type Cache struct {
	Backend  string   `toml:"backend"` // "file", "redis" or "none"
	Dir      string   `toml:"dir"`
	Addr     string   `toml:"addr"`
	Password string   `toml:"password"`
	DB       int      `toml:"db"`
	TTL      Duration `toml:"ttl"`
}

// Storage configures workspace persistence.
type Storage struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Server configures the HTTP API.
type Server struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	MaxBodyBytes    int64    `toml:"max_body_bytes"`
}

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Defaults.
const (
	DefaultAddr           = ":8080"
	DefaultCanvasWidth    = 1280
	DefaultCanvasHeight   = 800
	DefaultMaxBodyBytes   = 4 << 20
	DefaultShutdown       = 10 * time.Second
	DefaultTutorTimeout   = 60 * time.Second
	DefaultCacheBackend   = "file"
	DefaultStorageBackend = storage.BackendFile
)

// Default returns the configuration used when no file exists.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	c.Layout = c.Layout.WithDefaults()
	if c.Canvas.Grid.Size <= 0 {
		c.Canvas.Grid.Size = interact.DefaultGridSize
	}
	if c.Canvas.Width <= 0 {
		c.Canvas.Width = DefaultCanvasWidth
	}
	if c.Canvas.Height <= 0 {
		c.Canvas.Height = DefaultCanvasHeight
	}
	if c.Tutor.Endpoint == "" {
		c.Tutor.Endpoint = tutor.DefaultEndpoint
	}
	if c.Tutor.FastModel == "" {
		c.Tutor.FastModel = tutor.DefaultFastModel
	}
	if c.Tutor.ReasoningModel == "" {
		c.Tutor.ReasoningModel = tutor.DefaultReasoningModel
	}
	if c.Tutor.Language == "" {
		c.Tutor.Language = tutor.DefaultLanguage
	}
	if c.Tutor.Attempts <= 0 {
		c.Tutor.Attempts = tutor.DefaultAttempts
	}
	if c.Tutor.Timeout.Duration <= 0 {
		c.Tutor.Timeout.Duration = DefaultTutorTimeout
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.TTL.Duration <= 0 {
		c.Cache.TTL.Duration = tutor.DefaultCacheTTL
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		c.Server.ShutdownTimeout.Duration = DefaultShutdown
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// DefaultPath returns ~/.config/ercanvas/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ercanvas", "config.toml"), nil
}

// Load reads the configuration. An explicit path (argument or
// $ERCANVAS_CONFIG) must exist; the default path may be absent.
func Load(path string) (Config, error) {
	explicit := true
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		explicit = false
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	var c Config
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			c = Default()
			c.applyEnv()
			return c, nil
		}
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	c.applyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes configuration from TOML text, applying defaults.
func Parse(data string) (Config, error) {
	var c Config
	if _, err := toml.Decode(data, &c); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	return c, c.Validate()
}

// Validate checks values that defaults cannot repair.
func (c Config) Validate() error {
	if err := errors.ValidateURL(c.Tutor.Endpoint); err != nil {
		return fmt.Errorf("tutor.endpoint: %w", err)
	}
	switch c.Cache.Backend {
	case "none", "file", "redis":
	default:
		return fmt.Errorf("cache.backend: unknown backend %q (want none, file or redis)", c.Cache.Backend)
	}
	return nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.Tutor.APIKey = key
	}
}

// StorageConfig converts the storage section for [storage.Open].
func (c Config) StorageConfig() storage.Config {
	s := c.Storage
	return storage.Config{
		Backend:    s.Backend,
		Path:       s.Path,
		Addr:       s.Addr,
		Password:   s.Password,
		DB:         s.DB,
		URI:        s.URI,
		Database:   s.Database,
		Collection: s.Collection,
	}
}
