package ops

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/fogleman/gg"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
)

// ── Anchors ───────────────────────────────────────────────────────────────────

// Anchor is one of nine canonical placement points.
type Anchor int

const (
	TopLeft Anchor = iota
	TopCenter
	TopRight
	MiddleLeft
	Center
	MiddleRight
	BottomLeft
	BottomCenter
	BottomRight
)

var anchorNames = [...]string{
	TopLeft:      "top-left",
	TopCenter:    "top-center",
	TopRight:     "top-right",
	MiddleLeft:   "middle-left",
	Center:       "center",
	MiddleRight:  "middle-right",
	BottomLeft:   "bottom-left",
	BottomCenter: "bottom-center",
	BottomRight:  "bottom-right",
}

func (a Anchor) String() string {
	if a < 0 || int(a) >= len(anchorNames) {
		return fmt.Sprintf("Anchor(%d)", int(a))
	}
	return anchorNames[a]
}

func (a Anchor) valid() bool { return a >= 0 && int(a) < len(anchorNames) }

// Anchors lists all nine positions.
func Anchors() []Anchor {
	out := make([]Anchor, len(anchorNames))
	for i := range out {
		out[i] = Anchor(i)
	}
	return out
}

// ParseAnchor accepts names such as "bottom-right" or "BOTTOM_RIGHT".
func ParseAnchor(s string) (Anchor, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for i, n := range anchorNames {
		if n == norm {
			return Anchor(i), nil
		}
	}
	return 0, fmt.Errorf("unknown anchor %q", s)
}

// Origin returns the top-left corner of a mw x mh mark placed at a inside a
// w x h image, inset by margin from the edges it touches.
func (a Anchor) Origin(w, h, mw, mh, margin int) image.Point {
	col, row := int(a)%3, int(a)/3
	var p image.Point
	switch col {
	case 0:
		p.X = margin
	case 1:
		p.X = (w - mw) / 2
	default:
		p.X = w - mw - margin
	}
	switch row {
	case 0:
		p.Y = margin
	case 1:
		p.Y = (h - mh) / 2
	default:
		p.Y = h - mh - margin
	}
	return p
}

// ── Shared helpers ────────────────────────────────────────────────────────────

// canvas returns a premultiplied copy of img to draw on, and the model the
// result should be converted back to.
func canvas(img *core.Image) (*image.RGBA, core.ColorModel) {
	model := core.ModelRGB
	if hasAlpha(img) {
		model = core.ModelARGB
	}
	return img.RGBA(), model
}

// fromRGBA un-premultiplies rgba into an rgb or argb Image.
func fromRGBA(rgba *image.RGBA, model core.ColorModel) *core.Image {
	b := rgba.Bounds()
	w, h := b.Dx(), b.Dy()
	ch := model.Channels()
	out := make([]byte, w*h*ch)
	for i := 0; i < w*h; i++ {
		p := rgba.Pix[i*4 : i*4+4 : i*4+4]
		r, g, bl, a := p[0], p[1], p[2], p[3]
		if a != 0 && a != 255 {
			r = unpremul(r, a)
			g = unpremul(g, a)
			bl = unpremul(bl, a)
		}
		out[i*ch], out[i*ch+1], out[i*ch+2] = r, g, bl
		if ch == 4 {
			out[i*ch+3] = a
		}
	}
	return core.MustImage(model, w, h, out, nil)
}

func unpremul(c, a byte) byte {
	return clampByte((int(c)*255 + int(a)/2) / int(a))
}

func validateAlpha(op string, alpha float64, mode CompositeMode, pos Anchor) error {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return apperrors.Input(op, "alpha %v outside [0, 1]", alpha)
	}
	if !mode.valid() {
		return apperrors.Input(op, "unknown composite mode %d", mode)
	}
	if !pos.valid() {
		return apperrors.Input(op, "unknown anchor %d", pos)
	}
	return nil
}

// ── Text ──────────────────────────────────────────────────────────────────────

// WatermarkText draws Text in Color at Position.
type WatermarkText struct {
	Text     string
	Color    color.NRGBA
	Font     Font
	Position Anchor
	Margin   int
}

func (o *WatermarkText) Name() string { return NameWatermarkText }

func (o *WatermarkText) Validate() error {
	if o.Text == "" {
		return apperrors.Input(o.Name(), "empty text")
	}
	if err := o.Font.validate(); err != nil {
		return apperrors.New(apperrors.CategoryInput, o.Name(), err)
	}
	if !o.Position.valid() {
		return apperrors.Input(o.Name(), "unknown anchor %d", o.Position)
	}
	return nil
}

func (o *WatermarkText) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	face, err := o.Font.face()
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryInput, o.Name(), err)
	}
	defer face.Close()

	base, model := canvas(img)
	dc := gg.NewContextForRGBA(base)
	dc.SetFontFace(face)
	tw, th := dc.MeasureString(o.Text)
	at := o.Position.Origin(img.Width(), img.Height(), int(math.Ceil(tw)), int(math.Ceil(th)), o.Margin)
	dc.SetColor(o.Color)
	dc.DrawStringAnchored(o.Text, float64(at.X), float64(at.Y), 0, 1)
	return fromRGBA(base, model), nil
}

// ── Shape ─────────────────────────────────────────────────────────────────────

// MarkShape is a predefined watermark outline.
type MarkShape int

const (
	TallRectangle MarkShape = iota
	WideRectangle
	Square
	Triangle
)

var markShapeNames = [...]string{
	TallRectangle: "tall-rectangle",
	WideRectangle: "wide-rectangle",
	Square:        "square",
	Triangle:      "triangle",
}

func (s MarkShape) String() string {
	if s < 0 || int(s) >= len(markShapeNames) {
		return fmt.Sprintf("MarkShape(%d)", int(s))
	}
	return markShapeNames[s]
}

// ParseMarkShape accepts names such as "square" or "Tall Rectangle".
func ParseMarkShape(s string) (MarkShape, error) {
	norm := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(s)))
	for i, n := range markShapeNames {
		if n == norm {
			return MarkShape(i), nil
		}
	}
	return 0, fmt.Errorf("unknown watermark shape %q", s)
}

// size returns the layer dimensions of the shape.
func (s MarkShape) size() (int, int) {
	switch s {
	case TallRectangle:
		return 80, 100
	case WideRectangle:
		return 100, 80
	case Triangle:
		return 200, 100
	}
	return 100, 100
}

func (s MarkShape) trace(dc *gg.Context) {
	if s == Triangle {
		dc.MoveTo(0, 100)
		dc.LineTo(100, 0)
		dc.LineTo(200, 100)
		dc.ClosePath()
		return
	}
	w, h := s.size()
	dc.DrawRectangle(0, 0, float64(w), float64(h))
}

// ShapeProps controls how a watermark shape is painted.
type ShapeProps struct {
	Outline     bool    // stroke instead of fill
	StrokeWidth float64 // 0 = 2
}

// WatermarkShape composites a predefined shape at Position.
type WatermarkShape struct {
	Shape    MarkShape
	Color    color.NRGBA
	Position Anchor
	Alpha    float64
	Mode     CompositeMode
	Props    ShapeProps
	Margin   int
}

func (o *WatermarkShape) Name() string { return NameWatermarkShape }

func (o *WatermarkShape) Validate() error {
	if o.Shape < TallRectangle || o.Shape > Triangle {
		return apperrors.Input(o.Name(), "unknown shape %d", o.Shape)
	}
	if o.Props.StrokeWidth < 0 {
		return apperrors.Input(o.Name(), "negative stroke width")
	}
	return validateAlpha(o.Name(), o.Alpha, o.Mode, o.Position)
}

func (o *WatermarkShape) layer() *image.RGBA {
	w, h := o.Shape.size()
	dc := gg.NewContext(w, h)
	dc.SetColor(o.Color)
	o.Shape.trace(dc)
	if o.Props.Outline {
		sw := o.Props.StrokeWidth
		if sw == 0 {
			sw = 2
		}
		dc.SetLineWidth(sw)
		dc.Stroke()
	} else {
		dc.Fill()
	}
	return dc.Image().(*image.RGBA)
}

func (o *WatermarkShape) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	layer := o.layer()
	base, model := canvas(img)
	lw, lh := o.Shape.size()
	at := o.Position.Origin(img.Width(), img.Height(), lw, lh, o.Margin)
	compositeLayer(base, layer, at, o.Mode, o.Alpha, true)
	return fromRGBA(base, model), nil
}

// ── Image ─────────────────────────────────────────────────────────────────────

// WatermarkImage composites Image at Position.
type WatermarkImage struct {
	Image    *core.Image
	Position Anchor
	Alpha    float64
	Mode     CompositeMode
	Margin   int
}

func (o *WatermarkImage) Name() string { return NameWatermarkImage }

func (o *WatermarkImage) Validate() error {
	if o.Image == nil {
		return apperrors.Input(o.Name(), "missing watermark image")
	}
	return validateAlpha(o.Name(), o.Alpha, o.Mode, o.Position)
}

func (o *WatermarkImage) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	if err := begin(ctx, o, img); err != nil {
		return nil, err
	}
	base, model := canvas(img)
	at := o.Position.Origin(img.Width(), img.Height(), o.Image.Width(), o.Image.Height(), o.Margin)
	compositeLayer(base, o.Image.RGBA(), at, o.Mode, o.Alpha, false)
	return fromRGBA(base, model), nil
}

var (
	_ core.Operation = (*WatermarkText)(nil)
	_ core.Operation = (*WatermarkShape)(nil)
	_ core.Operation = (*WatermarkImage)(nil)
)
