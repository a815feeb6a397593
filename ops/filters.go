package ops

import (
	"context"
	"image/color"

	"github.com/Skryldev/imageviewer/core"
)

// kernel is a square integer convolution matrix.  Results are divided by div
// with rounding to nearest.
type kernel struct {
	size int
	w    []int
	div  int
}

var (
	boxKernel = kernel{size: 3, div: 9, w: []int{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	}}
	sharpenKernel = kernel{size: 3, div: 1, w: []int{
		0, -1, 0,
		-1, 5, -1,
		0, -1, 0,
	}}
	embossKernel = kernel{size: 3, div: 1, w: []int{
		-2, -1, 0,
		-1, 1, 1,
		0, 1, 2,
	}}
	edgeKernel = kernel{size: 3, div: 1, w: []int{
		-1, -1, -1,
		-1, 8, -1,
		-1, -1, -1,
	}}
	gaussianKernel = outer([]int{1, 4, 6, 4, 1}, 256)
)

func outer(v []int, div int) kernel {
	k := kernel{size: len(v), div: div, w: make([]int, 0, len(v)*len(v))}
	for _, a := range v {
		for _, b := range v {
			k.w = append(k.w, a*b)
		}
	}
	return k
}

func roundDiv(sum, div int) int {
	if div == 1 {
		return sum
	}
	if sum < 0 {
		return -((-sum + div/2) / div)
	}
	return (sum + div/2) / div
}

// convolve applies k to every colour channel with clamped edges.  Alpha is
// copied.  Binary and indexed input is promoted first.
func convolve(ctx context.Context, name string, img *core.Image, k kernel) (*core.Image, error) {
	src := truecolor(img)
	w, h := src.Width(), src.Height()
	ch := src.Model().Channels()
	cc := colorChannels(src.Model())
	in := src.Pix()
	out := make([]byte, len(in))
	r := k.size / 2

	for y := 0; y < h; y++ {
		if y%64 == 0 {
			if err := checkCtx(ctx, name); err != nil {
				return nil, err
			}
		}
		for x := 0; x < w; x++ {
			base := (y*w + x) * ch
			for c := 0; c < cc; c++ {
				sum := 0
				for ky := 0; ky < k.size; ky++ {
					sy := clampInt(y+ky-r, 0, h-1)
					row := sy * w
					for kx := 0; kx < k.size; kx++ {
						wt := k.w[ky*k.size+kx]
						if wt == 0 {
							continue
						}
						sx := clampInt(x+kx-r, 0, w-1)
						sum += wt * int(in[(row+sx)*ch+c])
					}
				}
				out[base+c] = clampByte(roundDiv(sum, k.div))
			}
			for c := cc; c < ch; c++ {
				out[base+c] = in[base+c]
			}
		}
	}
	return core.MustImage(src.Model(), w, h, out, nil), nil
}

// ── Convolution filters ───────────────────────────────────────────────────────

// Blur applies a 3x3 box filter.
type Blur struct{}

func (o *Blur) Name() string    { return NameBlur }
func (o *Blur) Validate() error { return nil }
func (o *Blur) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	return convolve(ctx, o.Name(), img, boxKernel)
}

// GaussianBlur applies a 5x5 binomial kernel.
type GaussianBlur struct{}

func (o *GaussianBlur) Name() string    { return NameGaussianBlur }
func (o *GaussianBlur) Validate() error { return nil }
func (o *GaussianBlur) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	return convolve(ctx, o.Name(), img, gaussianKernel)
}

// Sharpen applies a 3x3 Laplacian sharpen kernel.
type Sharpen struct{}

func (o *Sharpen) Name() string    { return NameSharpen }
func (o *Sharpen) Validate() error { return nil }
func (o *Sharpen) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	return convolve(ctx, o.Name(), img, sharpenKernel)
}

// Emboss applies a diagonal relief kernel.
type Emboss struct{}

func (o *Emboss) Name() string    { return NameEmboss }
func (o *Emboss) Validate() error { return nil }
func (o *Emboss) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	return convolve(ctx, o.Name(), img, embossKernel)
}

// EdgeDetection applies an 8-neighbour Laplacian.
type EdgeDetection struct{}

func (o *EdgeDetection) Name() string    { return NameEdgeDetection }
func (o *EdgeDetection) Validate() error { return nil }
func (o *EdgeDetection) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	return convolve(ctx, o.Name(), img, edgeKernel)
}

// ── Invert ────────────────────────────────────────────────────────────────────

// InvertColors replaces every colour channel v with 255-v.  Binary images stay
// binary and indexed images invert their palette.
type InvertColors struct{}

func (o *InvertColors) Name() string    { return NameInvertColors }
func (o *InvertColors) Validate() error { return nil }

func (o *InvertColors) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	inv := func(v byte) byte { return 255 - v }
	switch img.Model() {
	case core.ModelIndexed:
		return mapPalette(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{R: inv(c.R), G: inv(c.G), B: inv(c.B), A: c.A}
		}), nil
	case core.ModelBinary:
		out := mapChannels(core.MustImage(core.ModelGray, img.Width(), img.Height(), img.Pix(), nil), inv)
		return core.MustImage(core.ModelBinary, img.Width(), img.Height(), out.Pix(), nil), nil
	}
	return mapChannels(img, inv), nil
}

var (
	_ core.Operation = (*Blur)(nil)
	_ core.Operation = (*GaussianBlur)(nil)
	_ core.Operation = (*Sharpen)(nil)
	_ core.Operation = (*Emboss)(nil)
	_ core.Operation = (*EdgeDetection)(nil)
	_ core.Operation = (*InvertColors)(nil)
)
