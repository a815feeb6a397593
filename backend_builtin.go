//go:build !vips

package imageviewer

import (
	"errors"

	"github.com/Skryldev/imageviewer/config"
	"github.com/Skryldev/imageviewer/core"
)

var errNoVips = errors.New(`backend "vips" needs a build with -tags vips`)

func vipsBackend(config.Config) (core.Codec, core.MetadataReader, func(), error) {
	return nil, nil, nil, errNoVips
}
