package ops_test

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imageviewer/core"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func solid(t *testing.T, model core.ColorModel, w, h int, c color.NRGBA) *core.Image {
	t.Helper()
	ch := model.Channels()
	pix := make([]byte, w*h*ch)
	var pal []color.NRGBA
	for i := 0; i < w*h; i++ {
		p := pix[i*ch : i*ch+ch]
		switch model {
		case core.ModelBinary, core.ModelGray:
			p[0] = c.R
		case core.ModelIndexed:
			p[0] = 0
		case core.ModelRGB:
			p[0], p[1], p[2] = c.R, c.G, c.B
		case core.ModelARGB:
			p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
		}
	}
	if model == core.ModelIndexed {
		pal = []color.NRGBA{c}
	}
	img, err := core.NewImage(model, w, h, pix, pal)
	require.NoError(t, err)
	return img
}

// gradient returns a non-symmetric test pattern so that geometric bugs show.
func gradient(t *testing.T, model core.ColorModel, w, h int) *core.Image {
	t.Helper()
	ch := model.Channels()
	pix := make([]byte, w*h*ch)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := pix[(y*w+x)*ch : (y*w+x)*ch+ch]
			for c := range p {
				p[c] = byte(x*17 + y*29 + c*53)
			}
			switch model {
			case core.ModelBinary:
				if (x+y)%3 == 0 {
					p[0] = 255
				} else {
					p[0] = 0
				}
			case core.ModelIndexed:
				p[0] = byte((x + 2*y) % 4)
			}
		}
	}
	var pal []color.NRGBA
	if model == core.ModelIndexed {
		pal = []color.NRGBA{
			{R: 255, A: 255},
			{G: 255, A: 255},
			{B: 255, A: 255},
			{R: 10, G: 20, B: 30, A: 255},
		}
	}
	img, err := core.NewImage(model, w, h, pix, pal)
	require.NoError(t, err)
	return img
}

func apply(t *testing.T, img *core.Image, chain ...core.Operation) *core.Image {
	t.Helper()
	for _, op := range chain {
		var err error
		img, err = op.Apply(context.Background(), img)
		require.NoError(t, err, op.Name())
	}
	return img
}

var allModels = []core.ColorModel{
	core.ModelBinary,
	core.ModelIndexed,
	core.ModelGray,
	core.ModelRGB,
	core.ModelARGB,
}

func apply0(op core.Operation, img *core.Image) (*core.Image, error) {
	return op.Apply(context.Background(), img)
}
