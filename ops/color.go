package ops

import (
	"context"
	"image/color"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
)

// luminance returns BT.601 luma rounded to nearest.
func luminance(r, g, b byte) byte {
	return byte((299*int(r) + 587*int(g) + 114*int(b) + 500) / 1000)
}

// ── Model conversion helpers ──────────────────────────────────────────────────

// rgbPix expands img into packed R,G,B bytes, dropping alpha.
func rgbPix(img *core.Image) []byte {
	src := img.Pix()
	n := img.Width() * img.Height()
	if img.Model() == core.ModelRGB {
		out := make([]byte, len(src))
		copy(out, src)
		return out
	}
	out := make([]byte, n*3)
	switch img.Model() {
	case core.ModelBinary, core.ModelGray:
		for i, v := range src {
			out[i*3], out[i*3+1], out[i*3+2] = v, v, v
		}
	case core.ModelIndexed:
		pal := img.Palette()
		for i, idx := range src {
			c := pal[idx]
			out[i*3], out[i*3+1], out[i*3+2] = c.R, c.G, c.B
		}
	case core.ModelARGB:
		for i := 0; i < n; i++ {
			out[i*3], out[i*3+1], out[i*3+2] = src[i*4], src[i*4+1], src[i*4+2]
		}
	}
	return out
}

// argbPix expands img into packed R,G,B,A bytes.  Alpha is 255 unless the
// source carries its own.
func argbPix(img *core.Image) []byte {
	src := img.Pix()
	n := img.Width() * img.Height()
	if img.Model() == core.ModelARGB {
		out := make([]byte, len(src))
		copy(out, src)
		return out
	}
	out := make([]byte, n*4)
	switch img.Model() {
	case core.ModelBinary, core.ModelGray:
		for i, v := range src {
			out[i*4], out[i*4+1], out[i*4+2], out[i*4+3] = v, v, v, 255
		}
	case core.ModelIndexed:
		pal := img.Palette()
		for i, idx := range src {
			c := pal[idx]
			out[i*4], out[i*4+1], out[i*4+2], out[i*4+3] = c.R, c.G, c.B, c.A
		}
	case core.ModelRGB:
		for i := 0; i < n; i++ {
			out[i*4], out[i*4+1], out[i*4+2], out[i*4+3] = src[i*3], src[i*3+1], src[i*3+2], 255
		}
	}
	return out
}

// grayPix reduces img to one luma byte per pixel.
func grayPix(img *core.Image) []byte {
	src := img.Pix()
	n := img.Width() * img.Height()
	out := make([]byte, n)
	switch img.Model() {
	case core.ModelBinary, core.ModelGray:
		copy(out, src)
	case core.ModelIndexed:
		pal := img.Palette()
		for i, idx := range src {
			c := pal[idx]
			out[i] = luminance(c.R, c.G, c.B)
		}
	default:
		ch := img.Model().Channels()
		for i := 0; i < n; i++ {
			out[i] = luminance(src[i*ch], src[i*ch+1], src[i*ch+2])
		}
	}
	return out
}

// hasAlpha reports whether conversions should keep an alpha channel.
func hasAlpha(img *core.Image) bool {
	switch img.Model() {
	case core.ModelARGB:
		return true
	case core.ModelIndexed:
		return !img.Opaque()
	}
	return false
}

// truecolor converts binary and indexed images into gray, rgb or argb so that
// per-channel arithmetic is meaningful.
func truecolor(img *core.Image) *core.Image {
	w, h := img.Width(), img.Height()
	switch img.Model() {
	case core.ModelBinary:
		return core.MustImage(core.ModelGray, w, h, grayPix(img), nil)
	case core.ModelIndexed:
		if hasAlpha(img) {
			return core.MustImage(core.ModelARGB, w, h, argbPix(img), nil)
		}
		return core.MustImage(core.ModelRGB, w, h, rgbPix(img), nil)
	}
	return img
}

// colorChannels returns the number of leading colour bytes per pixel.
func colorChannels(m core.ColorModel) int {
	if m == core.ModelARGB {
		return 3
	}
	return m.Channels()
}

// mapPalette applies fn to every palette entry, keeping indices.
func mapPalette(img *core.Image, fn func(color.NRGBA) color.NRGBA) *core.Image {
	pal := img.Palette()
	for i := range pal {
		pal[i] = fn(pal[i])
	}
	pix := make([]byte, len(img.Pix()))
	copy(pix, img.Pix())
	return core.MustImage(core.ModelIndexed, img.Width(), img.Height(), pix, pal)
}

// mapChannels applies fn to every colour byte of a truecolor image, keeping
// alpha untouched.
func mapChannels(img *core.Image, fn func(byte) byte) *core.Image {
	src := img.Pix()
	pix := make([]byte, len(src))
	ch := img.Model().Channels()
	cc := colorChannels(img.Model())
	for i := 0; i < len(src); i += ch {
		for c := 0; c < cc; c++ {
			pix[i+c] = fn(src[i+c])
		}
		for c := cc; c < ch; c++ {
			pix[i+c] = src[i+c]
		}
	}
	return core.MustImage(img.Model(), img.Width(), img.Height(), pix, nil)
}

// ── Brighten ──────────────────────────────────────────────────────────────────

// Brighten adds Delta to every colour channel with saturation.  Alpha is
// untouched.  Binary input is promoted to grayscale; indexed input keeps its
// indices and adjusts the palette.
type Brighten struct {
	Delta int
}

func (o *Brighten) Name() string { return NameBrighten }

func (o *Brighten) Validate() error {
	if o.Delta < -255 || o.Delta > 255 {
		return apperrors.Input(o.Name(), "delta %d outside [-255, 255]", o.Delta)
	}
	return nil
}

func (o *Brighten) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	add := func(v byte) byte { return clampByte(int(v) + o.Delta) }
	if img.Model() == core.ModelIndexed {
		return mapPalette(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{R: add(c.R), G: add(c.G), B: add(c.B), A: c.A}
		}), nil
	}
	return mapChannels(truecolor(img), add), nil
}

// ── Binary ────────────────────────────────────────────────────────────────────

// ToBinary thresholds luminance at one half: values of 128 and above become
// white.
type ToBinary struct{}

func (o *ToBinary) Name() string    { return NameToBinary }
func (o *ToBinary) Validate() error { return nil }

func (o *ToBinary) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	pix := grayPix(img)
	for i, v := range pix {
		if v >= 128 {
			pix[i] = 255
		} else {
			pix[i] = 0
		}
	}
	return core.MustImage(core.ModelBinary, img.Width(), img.Height(), pix, nil), nil
}

// ── Grayscale ─────────────────────────────────────────────────────────────────

// ToGrayscale converts the image to BT.601 luminance.
type ToGrayscale struct{}

func (o *ToGrayscale) Name() string    { return NameToGrayscale }
func (o *ToGrayscale) Validate() error { return nil }

func (o *ToGrayscale) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	return core.MustImage(core.ModelGray, img.Width(), img.Height(), grayPix(img), nil), nil
}

// ── RGB / ARGB ────────────────────────────────────────────────────────────────

// ToRGB drops any alpha channel without compositing.
type ToRGB struct{}

func (o *ToRGB) Name() string    { return NameToRGB }
func (o *ToRGB) Validate() error { return nil }

func (o *ToRGB) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	return core.MustImage(core.ModelRGB, img.Width(), img.Height(), rgbPix(img), nil), nil
}

// ToARGB adds an opaque alpha channel when the source has none.
type ToARGB struct{}

func (o *ToARGB) Name() string    { return NameToARGB }
func (o *ToARGB) Validate() error { return nil }

func (o *ToARGB) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	return core.MustImage(core.ModelARGB, img.Width(), img.Height(), argbPix(img), nil), nil
}

// ── Indexed ───────────────────────────────────────────────────────────────────

// ToIndexed reduces the image to at most MaxColors palette entries using
// median cut.  Alpha is dropped.  An image that already has few enough colours
// keeps them exactly.
type ToIndexed struct {
	MaxColors int // 0 = 256
}

func (o *ToIndexed) Name() string { return NameToIndexed }

func (o *ToIndexed) Validate() error {
	if o.MaxColors < 0 || o.MaxColors > 256 {
		return apperrors.Input(o.Name(), "max colors %d outside [1, 256]", o.MaxColors)
	}
	return nil
}

func (o *ToIndexed) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	limit := o.MaxColors
	if limit == 0 {
		limit = 256
	}
	rgb := rgbPix(img)
	palette := medianCut(rgb, limit)
	pix := remap(rgb, palette)
	return core.MustImage(core.ModelIndexed, img.Width(), img.Height(), pix, palette), nil
}

var (
	_ core.Operation = (*Brighten)(nil)
	_ core.Operation = (*ToBinary)(nil)
	_ core.Operation = (*ToGrayscale)(nil)
	_ core.Operation = (*ToRGB)(nil)
	_ core.Operation = (*ToARGB)(nil)
	_ core.Operation = (*ToIndexed)(nil)
)
