package ops

import (
	"context"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/utils"
)

// ── Pixel permutation ─────────────────────────────────────────────────────────

// permute builds a dw x dh image where pixel (x, y) is copied from src(x, y)
// as returned by at.  The model and palette are preserved.
func permute(img *core.Image, dw, dh int, at func(x, y int) (int, int)) *core.Image {
	ch := img.Model().Channels()
	src := img.Pix()
	sw := img.Width()
	out := make([]byte, dw*dh*ch)
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			sx, sy := at(x, y)
			si := (sy*sw + sx) * ch
			di := (y*dw + x) * ch
			copy(out[di:di+ch], src[si:si+ch])
		}
	}
	return core.MustImage(img.Model(), dw, dh, out, img.Palette())
}

// ── Rotate ────────────────────────────────────────────────────────────────────

// Rotate turns the image clockwise by a multiple of 90 degrees.
type Rotate struct {
	Degrees int // 90, 180 or 270
}

func (o *Rotate) Name() string { return NameRotate }

func (o *Rotate) Validate() error {
	switch o.Degrees {
	case 90, 180, 270:
		return nil
	}
	return apperrors.Input(o.Name(), "degrees must be 90, 180 or 270, got %d", o.Degrees)
}

func (o *Rotate) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	w, h := img.Width(), img.Height()
	switch o.Degrees {
	case 90:
		return permute(img, h, w, func(x, y int) (int, int) { return y, h - 1 - x }), nil
	case 180:
		return permute(img, w, h, func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }), nil
	default:
		return permute(img, h, w, func(x, y int) (int, int) { return w - 1 - y, x }), nil
	}
}

// ── Mirror ────────────────────────────────────────────────────────────────────

// Axis selects the mirror direction.
type Axis int

const (
	// Horizontal reverses each row (left becomes right).
	Horizontal Axis = iota
	// Vertical reverses the row order (top becomes bottom).
	Vertical
)

func (a Axis) String() string {
	if a == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Mirror reflects the image across the requested axis.
type Mirror struct {
	Axis Axis
}

func (o *Mirror) Name() string { return NameMirror }

func (o *Mirror) Validate() error {
	if o.Axis != Horizontal && o.Axis != Vertical {
		return apperrors.Input(o.Name(), "unknown axis %d", o.Axis)
	}
	return nil
}

func (o *Mirror) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	w, h := img.Width(), img.Height()
	if o.Axis == Vertical {
		return permute(img, w, h, func(x, y int) (int, int) { return x, h - 1 - y }), nil
	}
	return permute(img, w, h, func(x, y int) (int, int) { return w - 1 - x, y }), nil
}

// ── Resampling ────────────────────────────────────────────────────────────────

// resample scales img to dw x dh.  Binary and indexed images use nearest
// neighbour so they keep their model; the rest use bilinear filtering.
func resample(img *core.Image, dw, dh int) *core.Image {
	if dw == img.Width() && dh == img.Height() {
		return img // nothing to do
	}
	srcB := image.Rect(0, 0, img.Width(), img.Height())
	dstB := image.Rect(0, 0, dw, dh)

	switch img.Model() {
	case core.ModelBinary:
		src := img.ToStd()
		dst := image.NewGray(dstB)
		xdraw.NearestNeighbor.Scale(dst, dstB, src, srcB, xdraw.Src, nil)
		return core.MustImage(core.ModelBinary, dw, dh, dst.Pix, nil)

	case core.ModelIndexed:
		src := img.ToStd().(*image.Paletted)
		dst := image.NewPaletted(dstB, src.Palette)
		xdraw.NearestNeighbor.Scale(dst, dstB, src, srcB, xdraw.Src, nil)
		return core.MustImage(core.ModelIndexed, dw, dh, dst.Pix, img.Palette())

	case core.ModelGray:
		src := img.ToStd()
		dst := image.NewGray(dstB)
		xdraw.BiLinear.Scale(dst, dstB, src, srcB, xdraw.Src, nil)
		return core.MustImage(core.ModelGray, dw, dh, dst.Pix, nil)

	case core.ModelRGB:
		src := img.NRGBA()
		dst := image.NewNRGBA(dstB)
		xdraw.BiLinear.Scale(dst, dstB, src, srcB, xdraw.Src, nil)
		rgb := make([]byte, dw*dh*3)
		for i, j := 0, 0; i < len(dst.Pix); i, j = i+4, j+3 {
			rgb[j], rgb[j+1], rgb[j+2] = dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2]
		}
		return core.MustImage(core.ModelRGB, dw, dh, rgb, nil)

	default:
		src := img.NRGBA()
		dst := image.NewNRGBA(dstB)
		xdraw.BiLinear.Scale(dst, dstB, src, srcB, xdraw.Src, nil)
		return core.MustImage(core.ModelARGB, dw, dh, dst.Pix, nil)
	}
}

func positive(op string, name string, v int) error {
	if v <= 0 {
		return apperrors.Input(op, "%s must be positive, got %d", name, v)
	}
	return nil
}

// ── Scale ─────────────────────────────────────────────────────────────────────

// Scale multiplies both dimensions by Factor, rounding to nearest and never
// below one pixel.
type Scale struct {
	Factor float64
}

func (o *Scale) Name() string { return NameScale }

func (o *Scale) Validate() error {
	if !(o.Factor > 0) || math.IsInf(o.Factor, 0) {
		return apperrors.Input(o.Name(), "factor must be positive, got %v", o.Factor)
	}
	return nil
}

func (o *Scale) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	w, h := ScaledSize(img.Width(), img.Height(), o.Factor)
	return resample(img, w, h), nil
}

// ScaledSize returns the output dimensions of Scale.
func ScaledSize(w, h int, f float64) (int, int) {
	return utils.RoundDim(float64(w) * f), utils.RoundDim(float64(h) * f)
}

// ── Stretch ───────────────────────────────────────────────────────────────────

// StretchToFill resizes to exactly Width x Height, ignoring aspect ratio.
type StretchToFill struct {
	Width, Height int
}

func (o *StretchToFill) Name() string { return NameStretchToFill }

func (o *StretchToFill) Validate() error {
	if err := positive(o.Name(), "width", o.Width); err != nil {
		return err
	}
	return positive(o.Name(), "height", o.Height)
}

func (o *StretchToFill) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	return resample(img, o.Width, o.Height), nil
}

// ── Fit ───────────────────────────────────────────────────────────────────────

// ResizeToFit scales by min(Width/w, Height/h) so both dimensions fit.
type ResizeToFit struct {
	Width, Height int
}

func (o *ResizeToFit) Name() string { return NameResizeToFit }

func (o *ResizeToFit) Validate() error {
	if err := positive(o.Name(), "width", o.Width); err != nil {
		return err
	}
	return positive(o.Name(), "height", o.Height)
}

func (o *ResizeToFit) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	w, h := utils.FitDimensions(img.Width(), img.Height(), o.Width, o.Height)
	return resample(img, w, h), nil
}

// ResizeToWidth scales to Width, preserving aspect ratio.
type ResizeToWidth struct {
	Width int
}

func (o *ResizeToWidth) Name() string    { return NameResizeToWidth }
func (o *ResizeToWidth) Validate() error { return positive(o.Name(), "width", o.Width) }

func (o *ResizeToWidth) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	w, h := utils.ScaleDimensions(img.Width(), img.Height(), o.Width, 0)
	return resample(img, w, h), nil
}

// ResizeToHeight scales to Height, preserving aspect ratio.
type ResizeToHeight struct {
	Height int
}

func (o *ResizeToHeight) Name() string    { return NameResizeToHeight }
func (o *ResizeToHeight) Validate() error { return positive(o.Name(), "height", o.Height) }

func (o *ResizeToHeight) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	w, h := utils.ScaleDimensions(img.Width(), img.Height(), 0, o.Height)
	return resample(img, w, h), nil
}

// Thumbnail behaves like ResizeToFit.  Consumers may cache its output.
type Thumbnail struct {
	Width, Height int
}

func (o *Thumbnail) Name() string { return NameThumbnail }

func (o *Thumbnail) Validate() error {
	return (&ResizeToFit{Width: o.Width, Height: o.Height}).Validate()
}

func (o *Thumbnail) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	w, h := utils.FitDimensions(img.Width(), img.Height(), o.Width, o.Height)
	return resample(img, w, h), nil
}

var (
	_ core.Operation = (*Rotate)(nil)
	_ core.Operation = (*Mirror)(nil)
	_ core.Operation = (*Scale)(nil)
	_ core.Operation = (*StretchToFill)(nil)
	_ core.Operation = (*ResizeToFit)(nil)
	_ core.Operation = (*ResizeToWidth)(nil)
	_ core.Operation = (*ResizeToHeight)(nil)
	_ core.Operation = (*Thumbnail)(nil)
)
