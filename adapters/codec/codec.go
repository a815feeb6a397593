package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/utils"
)

// Options configures the built-in Codec.
type Options struct {
	// MaxBytes caps file reads; 0 means unlimited.
	MaxBytes int64
	// Quality is the JPEG quality used when the caller passes none.
	Quality int
}

// NewRegistry returns a registry with every built-in format registered.
func NewRegistry(quality int) *core.DefaultRegistry {
	reg := core.NewRegistry()
	png, jpg, gif, bmp, tif := NewPNG(), NewJPEG(quality), NewGIF(), NewBMP(), NewTIFF()

	reg.RegisterDecoder(core.FormatPNG, png)
	reg.RegisterDecoder(core.FormatJPEG, jpg)
	reg.RegisterDecoder(core.FormatGIF, gif)
	reg.RegisterDecoder(core.FormatBMP, bmp)
	reg.RegisterDecoder(core.FormatTIFF, tif)
	reg.RegisterDecoder(core.FormatWebP, NewWebP())

	reg.RegisterEncoder(core.FormatPNG, png)
	reg.RegisterEncoder(core.FormatJPEG, jpg)
	reg.RegisterEncoder(core.FormatGIF, gif)
	reg.RegisterEncoder(core.FormatBMP, bmp)
	reg.RegisterEncoder(core.FormatTIFF, tif)
	return reg
}

// Codec implements core.Codec over a Registry of per-format decoders and
// encoders.
type Codec struct {
	reg  core.Registry
	opts Options
}

// New returns a Codec over the built-in registry.
func New(opts Options) *Codec {
	return NewWithRegistry(NewRegistry(opts.Quality), opts)
}

// NewWithRegistry returns a Codec over a caller-supplied registry.
func NewWithRegistry(reg core.Registry, opts Options) *Codec {
	return &Codec{reg: reg, opts: opts}
}

// Registry exposes the underlying registry so callers can add formats.
func (c *Codec) Registry() core.Registry { return c.reg }

func (c *Codec) Decode(ctx context.Context, path string) (*core.Image, error) {
	data, err := c.read(ctx, "codec.decode", path)
	if err != nil {
		return nil, err
	}
	return c.DecodeBytes(ctx, data)
}

func (c *Codec) DecodeBytes(ctx context.Context, data []byte) (*core.Image, error) {
	f, dec, err := c.decoder("codec.decode", data)
	if err != nil {
		return nil, err
	}
	img, err := dec.Decode(ctx, utils.BytesReader(data))
	if err != nil {
		return nil, err
	}
	return img.WithOrigin(f, 0), nil
}

func (c *Codec) Encode(ctx context.Context, img *core.Image, format core.Format, path string) error {
	data, err := c.EncodeBytes(ctx, img, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "codec.encode.write", err)
	}
	return nil
}

func (c *Codec) EncodeBytes(ctx context.Context, img *core.Image, format core.Format) ([]byte, error) {
	enc, ok := c.reg.EncoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryUnsupported, "codec.encode",
			fmt.Errorf("%w: no encoder for %s", apperrors.ErrUnsupportedFormat, format))
	}
	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	if err := enc.Encode(ctx, buf, img, core.EncodeOptions{Quality: c.opts.Quality}); err != nil {
		return nil, err
	}
	return utils.CloneBytes(buf.Bytes()), nil
}

func (c *Codec) ProbeDimensions(ctx context.Context, path string) (core.Size, error) {
	data, err := c.read(ctx, "codec.probe", path)
	if err != nil {
		return core.Size{}, err
	}
	_, dec, err := c.decoder("codec.probe", data)
	if err != nil {
		return core.Size{}, err
	}
	return dec.DecodeConfig(ctx, utils.BytesReader(data))
}

// ProbeFormat sniffs only the leading bytes of path.
func (c *Codec) ProbeFormat(ctx context.Context, path string) (core.Format, error) {
	if err := ctx.Err(); err != nil {
		return core.FormatUnknown, apperrors.Wrap(apperrors.CategoryIO, "codec.format", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return core.FormatUnknown, apperrors.Wrap(apperrors.CategoryIO, "codec.format", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return core.FormatUnknown, apperrors.Wrap(apperrors.CategoryIO, "codec.format", err)
	}
	format := utils.DetectFormat(head[:n])
	if format == core.FormatUnknown {
		return format, unsupported("codec.format", path)
	}
	return format, nil
}

func (c *Codec) PageCount(ctx context.Context, path string) (int, error) {
	data, err := c.read(ctx, "codec.pages", path)
	if err != nil {
		return 0, err
	}
	_, dec, err := c.decoder("codec.pages", data)
	if err != nil {
		return 0, err
	}
	pd, ok := dec.(core.PageDecoder)
	if !ok {
		return 1, nil
	}
	n, err := pd.PageCount(ctx, data)
	if err != nil {
		return 0, err
	}
	return max(n, 1), nil
}

func (c *Codec) ReadPage(ctx context.Context, path string, index int) (*core.Image, error) {
	data, err := c.read(ctx, "codec.page", path)
	if err != nil {
		return nil, err
	}
	f, dec, err := c.decoder("codec.page", data)
	if err != nil {
		return nil, err
	}
	pd, ok := dec.(core.PageDecoder)
	if !ok {
		if index != 0 {
			return nil, apperrors.OutOfBounds("codec.page", fmt.Errorf("%w: %d of 1", apperrors.ErrPageRange, index))
		}
		img, err := dec.Decode(ctx, utils.BytesReader(data))
		if err != nil {
			return nil, err
		}
		return img.WithOrigin(f, 0), nil
	}
	img, err := pd.DecodePage(ctx, data, index)
	if err != nil {
		return nil, err
	}
	return img.WithOrigin(f, index), nil
}

func (c *Codec) SupportedInputs() []core.Format  { return c.reg.DecoderFormats() }
func (c *Codec) SupportedOutputs() []core.Format { return c.reg.EncoderFormats() }

// ── helpers ───────────────────────────────────────────────────────────────────

func (c *Codec) read(ctx context.Context, op, path string) ([]byte, error) {
	data, err := utils.ReadFile(ctx, path, c.opts.MaxBytes)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, op, err)
	}
	return data, nil
}

func (c *Codec) decoder(op string, data []byte) (core.Format, core.Decoder, error) {
	f := utils.DetectFormat(data)
	if f == core.FormatUnknown {
		return f, nil, unsupported(op, "input")
	}
	dec, ok := c.reg.DecoderFor(f)
	if !ok || !dec.CanDecode(f) {
		return f, nil, unsupported(op, string(f))
	}
	return f, dec, nil
}

func unsupported(op, what string) error {
	return apperrors.New(apperrors.CategoryUnsupported, op, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, what))
}

var _ core.Codec = (*Codec)(nil)
