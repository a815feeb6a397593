package core

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"slices"

	apperrors "github.com/Skryldev/imageviewer/errors"
)

// Image is an immutable 2-D pixel container.  Pixels are stored row-major, one
// byte per channel:
//
//	binary   1 byte, 0 or 255
//	indexed  1 byte, index into Palette
//	gray     1 byte
//	rgb      R, G, B
//	argb     R, G, B, A (straight alpha)
type Image struct {
	model   ColorModel
	width   int
	height  int
	pix     []byte
	palette []color.NRGBA

	format Format
	page   int
}

// NewImage takes ownership of pix and returns an Image.  It fails when
// width*height*channels does not equal len(pix), or when an indexed image has
// no palette or an index outside of it.
func NewImage(model ColorModel, width, height int, pix []byte, palette []color.NRGBA) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "image.new",
			fmt.Errorf("%w: %dx%d", apperrors.ErrInvalidDimensions, width, height))
	}
	if want := width * height * model.Channels(); len(pix) != want {
		return nil, apperrors.New(apperrors.CategoryInput, "image.new",
			fmt.Errorf("%w: got %d bytes, want %d", apperrors.ErrPixelCount, len(pix), want))
	}
	img := &Image{model: model, width: width, height: height, pix: pix}
	if model == ModelIndexed {
		if len(palette) == 0 || len(palette) > 256 {
			return nil, apperrors.New(apperrors.CategoryInput, "image.new",
				fmt.Errorf("indexed image needs 1..256 palette entries, got %d", len(palette)))
		}
		for _, p := range pix {
			if int(p) >= len(palette) {
				return nil, apperrors.New(apperrors.CategoryInput, "image.new",
					fmt.Errorf("palette index %d out of range", p))
			}
		}
		img.palette = slices.Clone(palette)
	}
	return img, nil
}

// MustImage is like NewImage but panics on error.  Intended for operations
// that compute pix from known dimensions.
func MustImage(model ColorModel, width, height int, pix []byte, palette []color.NRGBA) *Image {
	img, err := NewImage(model, width, height, pix, palette)
	if err != nil {
		panic(err)
	}
	return img
}

func (im *Image) Width() int        { return im.width }
func (im *Image) Height() int       { return im.height }
func (im *Image) Size() Size        { return Size{Width: im.width, Height: im.height} }
func (im *Image) Model() ColorModel { return im.model }
func (im *Image) Format() Format    { return im.format }
func (im *Image) Page() int         { return im.page }

// Pix returns the underlying pixel storage.  Callers must not modify it.
func (im *Image) Pix() []byte { return im.pix }

// Stride returns the number of bytes per row.
func (im *Image) Stride() int { return im.width * im.model.Channels() }

// Palette returns a copy of the palette of an indexed image.
func (im *Image) Palette() []color.NRGBA { return slices.Clone(im.palette) }

// WithOrigin returns a shallow copy tagged with the source format and page.
func (im *Image) WithOrigin(f Format, page int) *Image {
	out := *im
	out.format = f
	out.page = page
	return &out
}

// At returns the straight-alpha colour at (x, y).
func (im *Image) At(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= im.width || y >= im.height {
		return color.NRGBA{}
	}
	i := (y*im.width + x) * im.model.Channels()
	switch im.model {
	case ModelBinary, ModelGray:
		v := im.pix[i]
		return color.NRGBA{R: v, G: v, B: v, A: 255}
	case ModelIndexed:
		return im.palette[im.pix[i]]
	case ModelRGB:
		return color.NRGBA{R: im.pix[i], G: im.pix[i+1], B: im.pix[i+2], A: 255}
	default:
		return color.NRGBA{R: im.pix[i], G: im.pix[i+1], B: im.pix[i+2], A: im.pix[i+3]}
	}
}

// Opaque reports whether every pixel has full alpha.
func (im *Image) Opaque() bool {
	switch im.model {
	case ModelARGB:
		for i := 3; i < len(im.pix); i += 4 {
			if im.pix[i] != 255 {
				return false
			}
		}
	case ModelIndexed:
		for _, c := range im.palette {
			if c.A != 255 {
				return false
			}
		}
	}
	return true
}

// Equal reports whether two images hold identical pixels and model.
func (im *Image) Equal(o *Image) bool {
	if im == nil || o == nil {
		return im == o
	}
	return im.model == o.model && im.width == o.width && im.height == o.height &&
		bytes.Equal(im.pix, o.pix) && slices.Equal(im.palette, o.palette)
}

// ── Conversions ───────────────────────────────────────────────────────────────

// FromStd converts a decoded image.Image into an Image, choosing the closest
// colour model: *image.Gray becomes grayscale, small palettes stay indexed,
// fully opaque images become rgb and the rest argb.
func FromStd(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch s := src.(type) {
	case *image.Gray:
		pix := make([]byte, w*h)
		for y := 0; y < h; y++ {
			off := s.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pix[y*w:(y+1)*w], s.Pix[off:off+w])
		}
		return MustImage(ModelGray, w, h, pix, nil)
	case *image.Paletted:
		if len(s.Palette) > 0 && len(s.Palette) <= 256 {
			pal := make([]color.NRGBA, len(s.Palette))
			for i, c := range s.Palette {
				pal[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
			}
			pix := make([]byte, w*h)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					idx := s.ColorIndexAt(b.Min.X+x, b.Min.Y+y)
					if int(idx) >= len(pal) {
						idx = 0
					}
					pix[y*w+x] = idx
				}
			}
			return MustImage(ModelIndexed, w, h, pix, pal)
		}
	}

	argb := make([]byte, w*h*4)
	opaque := true
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*w + x) * 4
			argb[i], argb[i+1], argb[i+2], argb[i+3] = c.R, c.G, c.B, c.A
			if c.A != 255 {
				opaque = false
			}
		}
	}
	if !opaque {
		return MustImage(ModelARGB, w, h, argb, nil)
	}
	rgb := make([]byte, w*h*3)
	for i, j := 0, 0; i < len(argb); i, j = i+4, j+3 {
		rgb[j], rgb[j+1], rgb[j+2] = argb[i], argb[i+1], argb[i+2]
	}
	return MustImage(ModelRGB, w, h, rgb, nil)
}

// ToStd returns a standard-library image sharing no memory with im.
func (im *Image) ToStd() image.Image {
	r := image.Rect(0, 0, im.width, im.height)
	switch im.model {
	case ModelBinary, ModelGray:
		g := image.NewGray(r)
		copy(g.Pix, im.pix)
		return g
	case ModelIndexed:
		pal := make(color.Palette, len(im.palette))
		for i, c := range im.palette {
			pal[i] = c
		}
		p := image.NewPaletted(r, pal)
		copy(p.Pix, im.pix)
		return p
	default:
		return im.NRGBA()
	}
}

// NRGBA expands im into straight-alpha RGBA.
func (im *Image) NRGBA() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, im.width, im.height))
	n := im.width * im.height
	ch := im.model.Channels()
	for i := 0; i < n; i++ {
		var c color.NRGBA
		switch im.model {
		case ModelBinary, ModelGray:
			v := im.pix[i]
			c = color.NRGBA{R: v, G: v, B: v, A: 255}
		case ModelIndexed:
			c = im.palette[im.pix[i]]
		case ModelRGB:
			c = color.NRGBA{R: im.pix[i*ch], G: im.pix[i*ch+1], B: im.pix[i*ch+2], A: 255}
		default:
			c = color.NRGBA{R: im.pix[i*ch], G: im.pix[i*ch+1], B: im.pix[i*ch+2], A: im.pix[i*ch+3]}
		}
		dst.Pix[i*4], dst.Pix[i*4+1], dst.Pix[i*4+2], dst.Pix[i*4+3] = c.R, c.G, c.B, c.A
	}
	return dst
}

// RGBA returns a premultiplied buffer suitable for handing to a UI.
func (im *Image) RGBA() *image.RGBA {
	src := im.NRGBA()
	dst := image.NewRGBA(src.Rect)
	for i := 0; i < len(src.Pix); i += 4 {
		a := uint16(src.Pix[i+3])
		dst.Pix[i] = uint8((uint16(src.Pix[i])*a + 127) / 255)
		dst.Pix[i+1] = uint8((uint16(src.Pix[i+1])*a + 127) / 255)
		dst.Pix[i+2] = uint8((uint16(src.Pix[i+2])*a + 127) / 255)
		dst.Pix[i+3] = uint8(a)
	}
	return dst
}
