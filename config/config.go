package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "imageviewer"

// Backend selects the codec implementation.
type Backend string

const (
	BackendBuiltin Backend = "builtin"
	BackendVips    Backend = "vips"
)

// Config is the top-level configuration struct.  All fields have safe defaults
// so callers can start with Default() and override only what they need.
type Config struct {
	Backend Backend `koanf:"backend"`
	TempDir string  `koanf:"temp_dir"` // empty = os.TempDir()

	// Default JPEG quality used by save.
	JPEGQuality int `koanf:"jpeg_quality"` // 1-100; default 85

	Window WindowConfig `koanf:"window"`
	Zoom   string       `koanf:"zoom"` // fit-page, fit-height, fit-width or a percentage

	PolygonMaxPoints int   `koanf:"polygon_max_points"`
	ThumbnailSize    int   `koanf:"thumbnail_size"`
	WatermarkMargin  int   `koanf:"watermark_margin"`
	MaxImageBytes    int64 `koanf:"max_image_bytes"` // 0 = no limit

	// Logging.
	LogLevel  string `koanf:"log_level"`  // "debug", "info", "warn", "error"
	LogFormat string `koanf:"log_format"` // "text" or "json"

	Vips VipsConfig `koanf:"vips"`
}

// WindowConfig is the initial view size fed to the fit modes.
type WindowConfig struct {
	Width  int `koanf:"width"`
	Height int `koanf:"height"`
}

// VipsConfig tunes libvips when Backend is "vips".
type VipsConfig struct {
	Concurrency  int `koanf:"concurrency"`    // 0 = libvips default
	MaxCacheSize int `koanf:"max_cache_size"` // operations kept in the libvips cache
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Backend:          BackendBuiltin,
		JPEGQuality:      85,
		Window:           WindowConfig{Width: 800, Height: 600},
		Zoom:             "fit-page",
		PolygonMaxPoints: 20,
		ThumbnailSize:    100,
		WatermarkMargin:  10,
		LogLevel:         "info",
		LogFormat:        "text",
		Vips:             VipsConfig{MaxCacheSize: 100},
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	switch c.Backend {
	case BackendBuiltin, BackendVips:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New("config: jpeg_quality must be between 1 and 100")
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.New("config: window size must be positive")
	}
	if c.PolygonMaxPoints < 3 {
		return errors.New("config: polygon_max_points must be at least 3")
	}
	if c.ThumbnailSize <= 0 {
		return errors.New("config: thumbnail_size must be positive")
	}
	if c.WatermarkMargin < 0 {
		return errors.New("config: watermark_margin must not be negative")
	}
	if c.MaxImageBytes < 0 {
		return errors.New("config: max_image_bytes must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}
	if c.Vips.Concurrency < 0 || c.Vips.MaxCacheSize < 0 {
		return errors.New("config: vips settings must not be negative")
	}
	return nil
}

// Load reads the given TOML files over Default().  Missing files are skipped
// and later paths win.  The result is validated.
func Load(paths ...string) (Config, error) {
	k := koanf.New(".")
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.TempDir = expandPath(cfg.TempDir)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultPaths returns the config locations in increasing priority: the XDG
// config file, then ./imageviewer.toml.
func DefaultPaths() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		appName + ".toml",
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
