package view

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Skryldev/imageviewer/core"
	"github.com/Skryldev/imageviewer/ops"
)

// Mapping converts between view coordinates (pixels of the window) and image
// coordinates (pixels of the pipeline output).  The displayed image is scaled
// by its display size and centred when it is smaller than the window.
type Mapping struct {
	fwd *mat.Dense // image -> view
	inv *mat.Dense // view -> image
}

// NewMapping builds the mapping for an image of size img shown at zoom z in
// a window of size win.
func NewMapping(z Zoom, img, win core.Size) (*Mapping, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("view: empty image %dx%d", img.Width, img.Height)
	}
	disp := DisplaySize(z, img, win)
	sx := float64(disp.Width) / float64(img.Width)
	sy := float64(disp.Height) / float64(img.Height)
	tx := math.Max(0, float64(win.Width-disp.Width)/2)
	ty := math.Max(0, float64(win.Height-disp.Height)/2)

	fwd := mat.NewDense(3, 3, []float64{
		sx, 0, tx,
		0, sy, ty,
		0, 0, 1,
	})
	var inv mat.Dense
	if err := inv.Inverse(fwd); err != nil {
		return nil, fmt.Errorf("view: %w", err)
	}
	return &Mapping{fwd: fwd, inv: &inv}, nil
}

func apply(m *mat.Dense, p ops.Point) ops.Point {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{p.X, p.Y, 1}))
	return ops.Point{X: out.AtVec(0), Y: out.AtVec(1)}
}

// ToImage maps a view point into image space.
func (m *Mapping) ToImage(p ops.Point) ops.Point { return apply(m.inv, p) }

// ToView maps an image point into view space.
func (m *Mapping) ToView(p ops.Point) ops.Point { return apply(m.fwd, p) }

// RectToImage maps a view rectangle into image space, rounding the corners to
// the nearest pixel.
func (m *Mapping) RectToImage(r ops.Rect) ops.Rect {
	a := m.ToImage(ops.Point{X: float64(r.X), Y: float64(r.Y)})
	b := m.ToImage(ops.Point{X: float64(r.X + r.W), Y: float64(r.Y + r.H)})
	x0, y0 := int(math.Round(a.X)), int(math.Round(a.Y))
	x1, y1 := int(math.Round(b.X)), int(math.Round(b.Y))
	return ops.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// ShapeToImage maps every defining point of s into image space.
func (m *Mapping) ShapeToImage(s ops.Shape) ops.Shape { return s.Map(m.ToImage) }
