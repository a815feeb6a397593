//go:build vips

// Package vips provides a libvips-backed codec and metadata port.  It needs
// cgo and libvips, and is compiled only with the vips build tag.
package vips

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"runtime"
	"strconv"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	Concurrency    int
	MaxBytes       int64
	ReportLeaks    bool
}

// Backend implements core.Codec and core.MetadataReader on libvips.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

var startOnce sync.Once

// NewBackend initialises libvips once per process and returns a Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 85
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	startOnce.Do(func() {
		govips.LoggingSettings(nil, govips.LogLevelWarning)
		govips.Startup(&govips.Config{
			ConcurrencyLevel: cfg.Concurrency,
			MaxCacheSize:     cfg.MaxCacheSize,
			ReportLeaks:      cfg.ReportLeaks,
			CollectStats:     false,
		})
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

var (
	inputs  = []core.Format{core.FormatBMP, core.FormatGIF, core.FormatJPEG, core.FormatPNG, core.FormatTIFF, core.FormatWebP}
	outputs = []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatTIFF, core.FormatWebP}
)

func (b *Backend) SupportedInputs() []core.Format  { return append([]core.Format(nil), inputs...) }
func (b *Backend) SupportedOutputs() []core.Format { return append([]core.Format(nil), outputs...) }

// ─── Decode ───────────────────────────────────────────────────────────────────

func (b *Backend) Decode(ctx context.Context, path string) (*core.Image, error) {
	return b.ReadPage(ctx, path, 0)
}

func (b *Backend) DecodeBytes(ctx context.Context, data []byte) (*core.Image, error) {
	return b.decodePage(ctx, "vips.decode", data, 0)
}

func (b *Backend) ReadPage(ctx context.Context, path string, index int) (*core.Image, error) {
	data, err := b.read(ctx, "vips.page", path)
	if err != nil {
		return nil, err
	}
	return b.decodePage(ctx, "vips.page", data, index)
}

func (b *Backend) PageCount(ctx context.Context, path string) (int, error) {
	data, err := b.read(ctx, "vips.pages", path)
	if err != nil {
		return 0, err
	}
	ref, err := b.load(ctx, "vips.pages", data, nil)
	if err != nil {
		return 0, err
	}
	defer ref.Close()
	return max(ref.Pages(), 1), nil
}

func (b *Backend) ProbeDimensions(ctx context.Context, path string) (core.Size, error) {
	data, err := b.read(ctx, "vips.probe", path)
	if err != nil {
		return core.Size{}, err
	}
	ref, err := b.load(ctx, "vips.probe", data, nil)
	if err != nil {
		return core.Size{}, err
	}
	defer ref.Close()
	return core.Size{Width: ref.Width(), Height: pageHeight(ref)}, nil
}

func (b *Backend) ProbeFormat(ctx context.Context, path string) (core.Format, error) {
	data, err := b.read(ctx, "vips.format", path)
	if err != nil {
		return core.FormatUnknown, err
	}
	f := utils.DetectFormat(data)
	if f == core.FormatUnknown {
		return f, apperrors.New(apperrors.CategoryUnsupported, "vips.format", apperrors.ErrUnsupportedFormat)
	}
	return f, nil
}

func (b *Backend) decodePage(ctx context.Context, op string, data []byte, index int) (*core.Image, error) {
	params := govips.NewImportParams()
	params.Page.Set(index)
	params.NumPages.Set(1)

	if index > 0 {
		count, err := b.load(ctx, op, data, nil)
		if err != nil {
			return nil, err
		}
		n := count.Pages()
		count.Close()
		if index >= n {
			return nil, apperrors.OutOfBounds(op, fmt.Errorf("%w: %d of %d", apperrors.ErrPageRange, index, n))
		}
	}

	ref, err := b.load(ctx, op, data, params)
	if err != nil {
		return nil, err
	}
	defer ref.Close()

	format := formatFromVips(ref.Format())
	// PNG is lossless for every band layout core.Image supports.
	buf, _, err := ref.ExportPng(govips.NewPngExportParams())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	std, err := png.Decode(utils.BytesReader(buf))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	return core.FromStd(std).WithOrigin(format, index), nil
}

func (b *Backend) load(ctx context.Context, op string, data []byte, params *govips.ImportParams) (*govips.ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	if utils.DetectFormat(data) == core.FormatUnknown {
		return nil, apperrors.New(apperrors.CategoryUnsupported, op, apperrors.ErrUnsupportedFormat)
	}
	var (
		ref *govips.ImageRef
		err error
	)
	if params == nil {
		ref, err = govips.NewImageFromBuffer(data)
	} else {
		ref, err = govips.LoadImageFromBuffer(data, params)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	return ref, nil
}

// ─── Encode ───────────────────────────────────────────────────────────────────

func (b *Backend) Encode(ctx context.Context, img *core.Image, format core.Format, path string) error {
	data, err := b.EncodeBytes(ctx, img, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "vips.encode.write", err)
	}
	return nil
}

func (b *Backend) EncodeBytes(ctx context.Context, img *core.Image, format core.Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode", err)
	}
	if img == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode", apperrors.ErrEmptyInput)
	}

	// Hand the pixels to libvips as a lossless PNG.
	src := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(src)
	if err := png.Encode(src, img.ToStd()); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode", err)
	}
	ref, err := govips.NewImageFromBuffer(utils.CloneBytes(src.Bytes()))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode", err)
	}
	defer ref.Close()

	quality := b.cfg.DefaultQuality
	var out []byte
	switch format {
	case core.FormatJPEG:
		if ref.HasAlpha() {
			if err := ref.Flatten(&govips.Color{R: 255, G: 255, B: 255}); err != nil {
				return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode.jpeg", err)
			}
		}
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		out, _, err = ref.ExportJpeg(ep)
	case core.FormatPNG:
		out, _, err = ref.ExportPng(govips.NewPngExportParams())
	case core.FormatWebP:
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		out, _, err = ref.ExportWebp(ep)
	case core.FormatTIFF:
		out, _, err = ref.ExportTiff(govips.NewTiffExportParams())
	default:
		return nil, apperrors.New(apperrors.CategoryUnsupported, "vips.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode."+string(format), err)
	}
	return out, nil
}

// ─── Metadata ─────────────────────────────────────────────────────────────────

func (b *Backend) ReadMetadata(ctx context.Context, path string) (core.Metadata, error) {
	data, err := b.read(ctx, "vips.metadata", path)
	if err != nil {
		return core.Metadata{}, err
	}
	return b.ReadMetadataBytes(ctx, data)
}

// ReadMetadataBytes reports the basic properties plus every libvips header
// field.
func (b *Backend) ReadMetadataBytes(ctx context.Context, data []byte) (core.Metadata, error) {
	ref, err := b.load(ctx, "vips.metadata", data, nil)
	if err != nil {
		return core.Metadata{}, err
	}
	defer ref.Close()

	var md core.MetadataBuilder
	md.Add("Format", string(formatFromVips(ref.Format())))
	md.Add("Width", strconv.Itoa(ref.Width()))
	md.Add("Height", strconv.Itoa(pageHeight(ref)))
	md.Add("Pages", strconv.Itoa(max(ref.Pages(), 1)))
	md.Add("Bands", strconv.Itoa(ref.Bands()))
	for _, name := range ref.GetFields() {
		md.Add(name, ref.GetString(name))
	}
	return md.Metadata(), nil
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func (b *Backend) read(ctx context.Context, op, path string) ([]byte, error) {
	data, err := utils.ReadFile(ctx, path, b.cfg.MaxBytes)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, op, err)
	}
	return data, nil
}

func pageHeight(ref *govips.ImageRef) int {
	if h := ref.PageHeight(); h > 0 {
		return h
	}
	return ref.Height()
}

func formatFromVips(f govips.ImageType) core.Format {
	switch f {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	case govips.ImageTypeTIFF:
		return core.FormatTIFF
	case govips.ImageTypeGIF:
		return core.FormatGIF
	case govips.ImageTypeBMP:
		return core.FormatBMP
	default:
		return core.FormatUnknown
	}
}

var (
	_ core.Codec          = (*Backend)(nil)
	_ core.MetadataReader = (*Backend)(nil)
)
