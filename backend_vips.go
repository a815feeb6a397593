//go:build vips

package imageviewer

import (
	"github.com/Skryldev/imageviewer/adapters/vips"
	"github.com/Skryldev/imageviewer/config"
	"github.com/Skryldev/imageviewer/core"
)

func vipsBackend(cfg config.Config) (core.Codec, core.MetadataReader, func(), error) {
	b := vips.NewBackend(vips.BackendConfig{
		DefaultQuality: cfg.JPEGQuality,
		MaxCacheSize:   cfg.Vips.MaxCacheSize,
		Concurrency:    cfg.Vips.Concurrency,
		MaxBytes:       cfg.MaxImageBytes,
	})
	return b, b, b.Shutdown, nil
}
