// Package imageviewer wires a viewing session from configuration: the codec
// backend, temp storage, logging and metrics hooks.
package imageviewer

import (
	"context"

	"github.com/Skryldev/imageviewer/adapters/codec"
	"github.com/Skryldev/imageviewer/adapters/storage"
	"github.com/Skryldev/imageviewer/config"
	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/hooks"
	"github.com/Skryldev/imageviewer/session"
	"github.com/Skryldev/imageviewer/view"
)

// Re-export Format constants for convenience.
const (
	PNG  = core.FormatPNG
	JPEG = core.FormatJPEG
	GIF  = core.FormatGIF
	BMP  = core.FormatBMP
	TIFF = core.FormatTIFF
	WebP = core.FormatWebP
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Viewer is a configured session plus the collaborators built for it.
type Viewer struct {
	Session *session.Session
	Codec   core.Codec
	Storage *storage.Temp
	Metrics *hooks.InMemoryMetrics
	// Zoom is the configured initial zoom, applied by callers after open.
	Zoom view.Zoom

	shutdown func()
}

// New builds a Viewer.  A nil logger discards everything.
func New(cfg config.Config, logger core.Logger) (*Viewer, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "imageviewer.new", err)
	}
	zoom, err := view.ParseZoom(cfg.Zoom)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "imageviewer.new", err)
	}
	if logger == nil {
		logger = core.NopLogger{}
	}

	c, md, shutdown, err := backend(cfg)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "imageviewer.new", err)
	}
	store, err := storage.NewTemp(cfg.TempDir, 0)
	if err != nil {
		shutdown()
		return nil, err
	}

	metrics := hooks.NewInMemoryMetrics()
	s, err := session.New(session.Options{
		Codec:            c,
		Metadata:         md,
		Storage:          store,
		Logger:           logger,
		Hooks:            []core.Hook{hooks.NewLoggingHook(logger), hooks.NewMetricsHook(metrics)},
		Window:           core.Size{Width: cfg.Window.Width, Height: cfg.Window.Height},
		PolygonMaxPoints: cfg.PolygonMaxPoints,
		ThumbnailSize:    cfg.ThumbnailSize,
	})
	if err != nil {
		shutdown()
		return nil, err
	}
	return &Viewer{
		Session:  s,
		Codec:    c,
		Storage:  store,
		Metrics:  metrics,
		Zoom:     zoom,
		shutdown: shutdown,
	}, nil
}

func backend(cfg config.Config) (core.Codec, core.MetadataReader, func(), error) {
	if cfg.Backend == config.BackendVips {
		return vipsBackend(cfg)
	}
	c := codec.New(codec.Options{MaxBytes: cfg.MaxImageBytes, Quality: cfg.JPEGQuality})
	return c, codec.NewMetadataReader(c), func() {}, nil
}

// Close removes the materialized file and releases the backend.  The session
// must not be used afterwards.
func (v *Viewer) Close(ctx context.Context) error {
	err := v.Session.Shutdown(ctx)
	v.shutdown()
	return err
}
