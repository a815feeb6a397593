// Package codec provides the built-in codec and metadata ports, backed by the
// standard library and golang.org/x/image.
package codec

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/utils"
)

// decodeWith runs fn after a context check, converting the result into a
// core.Image.
func decodeWith(ctx context.Context, op string, r io.Reader, fn func(io.Reader) (image.Image, error)) (*core.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	img, err := fn(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, apperrors.New(apperrors.CategoryDecode, op, apperrors.ErrInvalidDimensions)
	}
	return core.FromStd(img), nil
}

func configWith(ctx context.Context, op string, r io.Reader, fn func(io.Reader) (image.Config, error)) (core.Size, error) {
	if err := ctx.Err(); err != nil {
		return core.Size{}, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	cfg, err := fn(r)
	if err != nil {
		return core.Size{}, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	return core.Size{Width: cfg.Width, Height: cfg.Height}, nil
}

func encodeWith(ctx context.Context, op string, img *core.Image, fn func(image.Image) error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	if img == nil {
		return apperrors.New(apperrors.CategoryEncode, op, apperrors.ErrEmptyInput)
	}
	if err := fn(img.ToStd()); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	return nil
}

// ── PNG ───────────────────────────────────────────────────────────────────────

// PNG decodes and encodes PNG images using the standard library.
type PNG struct {
	Compression png.CompressionLevel
}

func NewPNG() *PNG { return &PNG{Compression: png.DefaultCompression} }

func (p *PNG) CanDecode(f core.Format) bool { return f == core.FormatPNG }
func (p *PNG) CanEncode(f core.Format) bool { return f == core.FormatPNG }

func (p *PNG) Decode(ctx context.Context, r io.Reader) (*core.Image, error) {
	return decodeWith(ctx, "png.decode", r, png.Decode)
}

func (p *PNG) DecodeConfig(ctx context.Context, r io.Reader) (core.Size, error) {
	return configWith(ctx, "png.config", r, png.DecodeConfig)
}

func (p *PNG) Encode(ctx context.Context, w io.Writer, img *core.Image, _ core.EncodeOptions) error {
	enc := png.Encoder{CompressionLevel: p.Compression}
	return encodeWith(ctx, "png.encode", img, func(m image.Image) error { return enc.Encode(w, m) })
}

// ── JPEG ──────────────────────────────────────────────────────────────────────

// JPEG decodes and encodes JPEG images.  Alpha is dropped on encode.
type JPEG struct {
	DefaultQuality int // used when EncodeOptions.Quality == 0
}

func NewJPEG(defaultQuality int) *JPEG {
	if defaultQuality <= 0 {
		defaultQuality = 85
	}
	return &JPEG{DefaultQuality: defaultQuality}
}

func (j *JPEG) CanDecode(f core.Format) bool { return f == core.FormatJPEG }
func (j *JPEG) CanEncode(f core.Format) bool { return f == core.FormatJPEG }

func (j *JPEG) Decode(ctx context.Context, r io.Reader) (*core.Image, error) {
	return decodeWith(ctx, "jpeg.decode", r, jpeg.Decode)
}

func (j *JPEG) DecodeConfig(ctx context.Context, r io.Reader) (core.Size, error) {
	return configWith(ctx, "jpeg.config", r, jpeg.DecodeConfig)
}

func (j *JPEG) Encode(ctx context.Context, w io.Writer, img *core.Image, opts core.EncodeOptions) error {
	quality := opts.Quality
	if quality <= 0 {
		quality = j.DefaultQuality
	}
	return encodeWith(ctx, "jpeg.encode", img, func(m image.Image) error {
		return jpeg.Encode(w, opaque(m), &jpeg.Options{Quality: quality})
	})
}

// opaque forces full alpha so translucent pixels keep their colour instead of
// being premultiplied towards black.
func opaque(m image.Image) image.Image {
	switch m.(type) {
	case *image.Gray, *image.Paletted:
		return m
	}
	b := m.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
			c.A = 255
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// ── GIF ───────────────────────────────────────────────────────────────────────

// GIF decodes every frame of a GIF as a page and encodes single frames.
type GIF struct{}

func NewGIF() *GIF { return &GIF{} }

func (g *GIF) CanDecode(f core.Format) bool { return f == core.FormatGIF }
func (g *GIF) CanEncode(f core.Format) bool { return f == core.FormatGIF }

func (g *GIF) Decode(ctx context.Context, r io.Reader) (*core.Image, error) {
	return decodeWith(ctx, "gif.decode", r, gif.Decode)
}

func (g *GIF) DecodeConfig(ctx context.Context, r io.Reader) (core.Size, error) {
	return configWith(ctx, "gif.config", r, gif.DecodeConfig)
}

func (g *GIF) PageCount(ctx context.Context, data []byte) (int, error) {
	all, err := g.decodeAll(ctx, data)
	if err != nil {
		return 0, err
	}
	return len(all.Image), nil
}

// DecodePage returns frame index drawn onto the logical screen.
func (g *GIF) DecodePage(ctx context.Context, data []byte, index int) (*core.Image, error) {
	all, err := g.decodeAll(ctx, data)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(all.Image) {
		return nil, apperrors.OutOfBounds("gif.page", apperrors.ErrPageRange)
	}
	frame := all.Image[index]
	screen := image.Rect(0, 0, all.Config.Width, all.Config.Height)
	if screen.Empty() || frame.Bounds() == screen {
		return core.FromStd(frame), nil
	}
	canvas := image.NewNRGBA(screen)
	for y := frame.Rect.Min.Y; y < frame.Rect.Max.Y; y++ {
		for x := frame.Rect.Min.X; x < frame.Rect.Max.X; x++ {
			canvas.Set(x, y, frame.At(x, y))
		}
	}
	return core.FromStd(canvas), nil
}

func (g *GIF) decodeAll(ctx context.Context, data []byte) (*gif.GIF, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "gif.decode", err)
	}
	all, err := gif.DecodeAll(utils.BytesReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "gif.decode", err)
	}
	if len(all.Image) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "gif.decode", apperrors.ErrEmptyInput)
	}
	return all, nil
}

func (g *GIF) Encode(ctx context.Context, w io.Writer, img *core.Image, _ core.EncodeOptions) error {
	return encodeWith(ctx, "gif.encode", img, func(m image.Image) error {
		return gif.Encode(w, m, &gif.Options{NumColors: 256})
	})
}

// ── BMP ───────────────────────────────────────────────────────────────────────

// BMP decodes and encodes BMP images using golang.org/x/image/bmp.
type BMP struct{}

func NewBMP() *BMP { return &BMP{} }

func (b *BMP) CanDecode(f core.Format) bool { return f == core.FormatBMP }
func (b *BMP) CanEncode(f core.Format) bool { return f == core.FormatBMP }

func (b *BMP) Decode(ctx context.Context, r io.Reader) (*core.Image, error) {
	return decodeWith(ctx, "bmp.decode", r, bmp.Decode)
}

func (b *BMP) DecodeConfig(ctx context.Context, r io.Reader) (core.Size, error) {
	return configWith(ctx, "bmp.config", r, bmp.DecodeConfig)
}

func (b *BMP) Encode(ctx context.Context, w io.Writer, img *core.Image, _ core.EncodeOptions) error {
	return encodeWith(ctx, "bmp.encode", img, func(m image.Image) error { return bmp.Encode(w, m) })
}

// ── WebP ──────────────────────────────────────────────────────────────────────

// WebP decodes WebP images using golang.org/x/image/webp.  There is no pure-Go
// encoder; use the vips backend to write WebP.
type WebP struct{}

func NewWebP() *WebP { return &WebP{} }

func (w *WebP) CanDecode(f core.Format) bool { return f == core.FormatWebP }

func (w *WebP) Decode(ctx context.Context, r io.Reader) (*core.Image, error) {
	return decodeWith(ctx, "webp.decode", r, webp.Decode)
}

func (w *WebP) DecodeConfig(ctx context.Context, r io.Reader) (core.Size, error) {
	return configWith(ctx, "webp.config", r, webp.DecodeConfig)
}

var (
	_ core.Decoder     = (*PNG)(nil)
	_ core.Encoder     = (*PNG)(nil)
	_ core.Decoder     = (*JPEG)(nil)
	_ core.Encoder     = (*JPEG)(nil)
	_ core.PageDecoder = (*GIF)(nil)
	_ core.Encoder     = (*GIF)(nil)
	_ core.Decoder     = (*BMP)(nil)
	_ core.Encoder     = (*BMP)(nil)
	_ core.Decoder     = (*WebP)(nil)
)
