package ops

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
)

// DefaultPolygonMaxPoints is the polygon vertex cap used when
// Polygon.MaxPoints is zero.
const DefaultPolygonMaxPoints = 20

// Point is a position in image or view coordinates.
type Point struct {
	X, Y float64
}

// Rect is an integer rectangle with its origin at (X, Y).
type Rect struct {
	X, Y, W, H int
}

func (r Rect) image() image.Rectangle { return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H) }

// Intersect clamps r to a w x h image.
func (r Rect) Intersect(w, h int) Rect {
	c := r.image().Intersect(image.Rect(0, 0, w, h))
	return Rect{X: c.Min.X, Y: c.Min.Y, W: c.Dx(), H: c.Dy()}
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Rect) String() string { return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H) }

// ── Shapes ────────────────────────────────────────────────────────────────────

// Shape is a closed region used by Clip.
type Shape interface {
	Kind() string
	Validate() error
	// Bounds returns the enclosing rectangle, rounded outward.
	Bounds() image.Rectangle
	// Map returns the shape with every defining point transformed by f.
	Map(f func(Point) Point) Shape
	trace(dc *gg.Context)
}

// Rectangle is an axis-aligned rectangle.
type Rectangle struct {
	X, Y, W, H float64
}

func (s Rectangle) Kind() string { return "rectangle" }

func (s Rectangle) Validate() error {
	if s.W <= 0 || s.H <= 0 {
		return apperrors.OutOfBounds("rectangle", apperrors.ErrEmptyRegion)
	}
	return nil
}

func (s Rectangle) Bounds() image.Rectangle { return outward(s.X, s.Y, s.X+s.W, s.Y+s.H) }

func (s Rectangle) Map(f func(Point) Point) Shape {
	a, b := f(Point{s.X, s.Y}), f(Point{s.X + s.W, s.Y + s.H})
	return Rectangle{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), W: math.Abs(b.X - a.X), H: math.Abs(b.Y - a.Y)}
}

func (s Rectangle) trace(dc *gg.Context) { dc.DrawRectangle(s.X, s.Y, s.W, s.H) }

// Ellipse is the ellipse inscribed in the given bounding box.
type Ellipse struct {
	X, Y, W, H float64
}

func (s Ellipse) Kind() string { return "ellipse" }

func (s Ellipse) Validate() error {
	if s.W <= 0 || s.H <= 0 {
		return apperrors.OutOfBounds("ellipse", apperrors.ErrEmptyRegion)
	}
	return nil
}

func (s Ellipse) Bounds() image.Rectangle { return outward(s.X, s.Y, s.X+s.W, s.Y+s.H) }

func (s Ellipse) Map(f func(Point) Point) Shape {
	r := Rectangle(s).Map(f).(Rectangle)
	return Ellipse(r)
}

func (s Ellipse) trace(dc *gg.Context) {
	dc.DrawEllipse(s.X+s.W/2, s.Y+s.H/2, s.W/2, s.H/2)
}

// Polygon is a closed polygon.  MaxPoints caps the vertex count; zero means
// DefaultPolygonMaxPoints.
type Polygon struct {
	Points    []Point
	MaxPoints int
}

func (s Polygon) Kind() string { return "polygon" }

func (s Polygon) Validate() error {
	limit := s.MaxPoints
	if limit <= 0 {
		limit = DefaultPolygonMaxPoints
	}
	if len(s.Points) > limit {
		return apperrors.Input("polygon", "%w: %d points, limit %d", apperrors.ErrPolygonLimit, len(s.Points), limit)
	}
	if len(s.Points) < 3 {
		return apperrors.OutOfBounds("polygon", fmt.Errorf("%w: need 3 points, got %d", apperrors.ErrEmptyRegion, len(s.Points)))
	}
	return nil
}

func (s Polygon) Bounds() image.Rectangle {
	if len(s.Points) == 0 {
		return image.Rectangle{}
	}
	x0, y0, x1, y1 := s.Points[0].X, s.Points[0].Y, s.Points[0].X, s.Points[0].Y
	for _, p := range s.Points[1:] {
		x0, y0 = math.Min(x0, p.X), math.Min(y0, p.Y)
		x1, y1 = math.Max(x1, p.X), math.Max(y1, p.Y)
	}
	return outward(x0, y0, x1, y1)
}

func (s Polygon) Map(f func(Point) Point) Shape {
	pts := make([]Point, len(s.Points))
	for i, p := range s.Points {
		pts[i] = f(p)
	}
	return Polygon{Points: pts, MaxPoints: s.MaxPoints}
}

func (s Polygon) trace(dc *gg.Context) {
	for i, p := range s.Points {
		if i == 0 {
			dc.MoveTo(p.X, p.Y)
			continue
		}
		dc.LineTo(p.X, p.Y)
	}
	dc.ClosePath()
}

func outward(x0, y0, x1, y1 float64) image.Rectangle {
	return image.Rect(int(math.Floor(x0)), int(math.Floor(y0)), int(math.Ceil(x1)), int(math.Ceil(y1)))
}

// shapeMask rasterises s and returns whether each pixel of a w x h image lies
// inside it.  Coverage of at least one half counts as inside.
func shapeMask(s Shape, w, h int) []bool {
	dc := gg.NewContext(w, h)
	dc.SetRGBA(0, 0, 0, 1)
	s.trace(dc)
	dc.Fill()
	mask := dc.AsMask()
	inside := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inside[y*w+x] = mask.AlphaAt(x, y).A >= 128
		}
	}
	return inside
}

// ── Crop ──────────────────────────────────────────────────────────────────────

// Crop keeps the part of the image inside Rect after clamping it to the image
// bounds.
type Crop struct {
	Rect Rect
}

func (o *Crop) Name() string { return NameCrop }

func (o *Crop) Validate() error {
	if o.Rect.Empty() {
		return apperrors.OutOfBounds(o.Name(), fmt.Errorf("%w: %v", apperrors.ErrEmptyRegion, o.Rect))
	}
	return nil
}

func (o *Crop) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	r := o.Rect.Intersect(img.Width(), img.Height())
	if r.Empty() {
		return nil, apperrors.OutOfBounds(o.Name(),
			fmt.Errorf("%w: %v outside %dx%d", apperrors.ErrEmptyRegion, o.Rect, img.Width(), img.Height()))
	}
	ch := img.Model().Channels()
	stride := img.Stride()
	src := img.Pix()
	out := make([]byte, r.W*r.H*ch)
	for y := 0; y < r.H; y++ {
		si := (r.Y+y)*stride + r.X*ch
		copy(out[y*r.W*ch:(y+1)*r.W*ch], src[si:si+r.W*ch])
	}
	return core.MustImage(img.Model(), r.W, r.H, out, img.Palette()), nil
}

// ── Clip ──────────────────────────────────────────────────────────────────────

// Clip makes pixels transparent according to Shape.  With KeepInside the
// pixels outside the shape become transparent, otherwise those inside.  The
// output is always argb and keeps the input size.
type Clip struct {
	Shape      Shape
	KeepInside bool
}

func (o *Clip) Name() string { return NameClip }

func (o *Clip) Validate() error {
	if o.Shape == nil {
		return apperrors.Input(o.Name(), "missing shape")
	}
	return o.Shape.Validate()
}

func (o *Clip) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	w, h := img.Width(), img.Height()
	if o.Shape.Bounds().Intersect(image.Rect(0, 0, w, h)).Empty() {
		return nil, apperrors.OutOfBounds(o.Name(),
			fmt.Errorf("%w: %s outside %dx%d", apperrors.ErrEmptyRegion, o.Shape.Kind(), w, h))
	}
	inside := shapeMask(o.Shape, w, h)
	pix := argbPix(img)
	for i, in := range inside {
		if in != o.KeepInside {
			pix[i*4+3] = 0
		}
	}
	return core.MustImage(core.ModelARGB, w, h, pix, nil), nil
}

var (
	_ core.Operation = (*Crop)(nil)
	_ core.Operation = (*Clip)(nil)
	_ Shape          = Rectangle{}
	_ Shape          = Ellipse{}
	_ Shape          = Polygon{}
)
