package core

import (
	"context"
	"time"
)

// Format identifies an image codec.
type Format string

const (
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatGIF     Format = "gif"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatWebP    Format = "webp"
	FormatUnknown Format = "unknown"
)

// Ext returns the canonical file extension for f, without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatTIFF:
		return "tif"
	case FormatUnknown, "":
		return "img"
	}
	return string(f)
}

// ColorModel is the pixel layout of an Image.
type ColorModel int

const (
	ModelBinary ColorModel = iota
	ModelIndexed
	ModelGray
	ModelRGB
	ModelARGB
)

// Channels returns the number of bytes stored per pixel.
func (m ColorModel) Channels() int {
	switch m {
	case ModelRGB:
		return 3
	case ModelARGB:
		return 4
	}
	return 1
}

func (m ColorModel) String() string {
	switch m {
	case ModelBinary:
		return "binary"
	case ModelIndexed:
		return "indexed"
	case ModelGray:
		return "grayscale"
	case ModelRGB:
		return "rgb"
	case ModelARGB:
		return "argb"
	}
	return "unknown"
}

// Size is a width/height pair in pixels.
type Size struct {
	Width, Height int
}

// Operation is the fundamental pipeline building block.  Each Operation is a
// deterministic, pure transform and must be safe for concurrent use.
type Operation interface {
	Name() string
	// Validate checks parameters without touching pixels.
	Validate() error
	Apply(ctx context.Context, img *Image) (*Image, error)
}

// Hook is an optional observer invoked around pipeline operations.
type Hook interface {
	BeforeOperation(ctx context.Context, name string, img *Image)
	AfterOperation(ctx context.Context, name string, img *Image, d time.Duration, err error)
}
