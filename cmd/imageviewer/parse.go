package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/ops"
	"github.com/Skryldev/imageviewer/session"
	"github.com/Skryldev/imageviewer/utils"
	"github.com/Skryldev/imageviewer/view"
)

// Shell-only commands handled without the dispatcher.
const (
	builtinHelp  = "help"
	builtinQuit  = "quit"
	builtinStats = "stats"
)

// Brightness step of the brighten and darken shortcuts.
const brightnessStep = 10

var errUsage = errors.New("usage")

// line is one parsed shell input: either a dispatcher command or a builtin.
type line struct {
	Command session.Command
	Builtin string
}

// parser turns shell input into commands.
type parser struct {
	codec  core.Codec
	margin int
}

func (p parser) parse(input string) (line, error) {
	args, err := tokenize(input)
	if err != nil {
		return line{}, err
	}
	if len(args) == 0 {
		return line{}, nil
	}
	name, args := strings.ToLower(args[0]), args[1:]

	switch name {
	case "help", "?":
		return line{Builtin: builtinHelp}, nil
	case "quit", "exit", "q":
		return line{Builtin: builtinQuit}, nil
	case "stats":
		return line{Builtin: builtinStats}, nil
	}

	cmd, err := p.command(name, args)
	if err != nil {
		if errors.Is(err, errUsage) {
			return line{}, fmt.Errorf("%s: %w, see help", name, err)
		}
		return line{}, fmt.Errorf("%s: %w", name, err)
	}
	return line{Command: cmd}, nil
}

func (p parser) command(name string, args []string) (session.Command, error) {
	switch name {
	case "open":
		if len(args) != 1 {
			return nil, errUsage
		}
		return session.Open{Path: args[0]}, nil
	case "close":
		return session.Close{}, nil
	case "save":
		return parseSave(args)
	case "page":
		n, err := intArgs(args, 1)
		if err != nil {
			return nil, err
		}
		return session.SelectPage{Index: n[0] - 1}, nil
	case "next":
		return session.NextPage{}, nil
	case "prev":
		return session.PrevPage{}, nil
	case "undo":
		return session.Undo{}, nil
	case "redo":
		return session.Redo{}, nil
	case "reset":
		return session.Reset{}, nil
	case "zoom":
		return parseZoom(args)
	case "window":
		n, err := intArgs(args, 2)
		if err != nil {
			return nil, err
		}
		return session.SetWindowSize{Width: n[0], Height: n[1]}, nil
	case "op":
		if len(args) == 0 {
			return nil, errUsage
		}
		op, err := parseOperation(args[0], args[1:])
		if err != nil {
			return nil, err
		}
		return session.PushOperation{Op: op}, nil
	case "brighten":
		return session.PushOperation{Op: &ops.Brighten{Delta: brightnessStep}}, nil
	case "darken":
		return session.PushOperation{Op: &ops.Brighten{Delta: -brightnessStep}}, nil
	case "crop":
		n, err := intArgs(args, 4)
		if err != nil {
			return nil, err
		}
		return session.CommitCrop{Rect: ops.Rect{X: n[0], Y: n[1], W: n[2], H: n[3]}}, nil
	case "clip":
		return parseClip(args)
	case "watermark":
		return p.parseWatermark(args)
	case "meta", "metadata":
		return session.Metadata{}, nil
	case "dims", "dimensions":
		return session.Dimensions{}, nil
	case "format":
		return session.FormatTag{}, nil
	case "props", "properties":
		return propertiesCmd{}, nil
	case "thumbs":
		if len(args) != 1 {
			return nil, errUsage
		}
		return thumbnailsCmd{codec: p.codec, Dir: args[0]}, nil
	case "frame":
		if len(args) != 1 {
			return nil, errUsage
		}
		return frameCmd{codec: p.codec, Path: args[0]}, nil
	}
	return nil, fmt.Errorf("unknown command")
}

// tokenize splits on whitespace and honours double quotes.
func tokenize(s string) ([]string, error) {
	var (
		out   []string
		cur   strings.Builder
		quote bool
		inTok bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quote = !quote
			inTok = true
		case !quote && (r == ' ' || r == '\t'):
			if inTok {
				out = append(out, cur.String())
				cur.Reset()
				inTok = false
			}
		default:
			cur.WriteRune(r)
			inTok = true
		}
	}
	if quote {
		return nil, errors.New("unterminated quote")
	}
	if inTok {
		out = append(out, cur.String())
	}
	return out, nil
}

func intArgs(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, errUsage
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", a)
		}
		out[i] = v
	}
	return out, nil
}

func floatArgs(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, errUsage
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", a)
		}
		out[i] = v
	}
	return out, nil
}

func parseSave(args []string) (session.Command, error) {
	switch len(args) {
	case 1:
		f := utils.FormatFromExt(args[0])
		if f == core.FormatUnknown {
			f = core.FormatPNG
		}
		return session.Save{Path: args[0], Format: f}, nil
	case 2:
		f := utils.ParseFormat(args[1])
		if f == core.FormatUnknown {
			return nil, fmt.Errorf("unknown format %q", args[1])
		}
		return session.Save{Path: args[0], Format: f}, nil
	}
	return nil, errUsage
}

func parseZoom(args []string) (session.Command, error) {
	if len(args) != 1 {
		return nil, errUsage
	}
	switch strings.ToLower(args[0]) {
	case "in", "+":
		return session.ZoomIn{}, nil
	case "out", "-":
		return session.ZoomOut{}, nil
	}
	z, err := view.ParseZoom(args[0])
	if err != nil {
		return nil, err
	}
	return session.SetZoomMode{Zoom: z}, nil
}

// parseOperation builds a non-interactive operation from its stable name.
// Crop coordinates here are image coordinates.
func parseOperation(name string, args []string) (core.Operation, error) {
	noArgs := func(op core.Operation) (core.Operation, error) {
		if len(args) != 0 {
			return nil, errUsage
		}
		return op, nil
	}
	switch name {
	case ops.NameBlur:
		return noArgs(&ops.Blur{})
	case ops.NameGaussianBlur:
		return noArgs(&ops.GaussianBlur{})
	case ops.NameSharpen:
		return noArgs(&ops.Sharpen{})
	case ops.NameEmboss:
		return noArgs(&ops.Emboss{})
	case ops.NameEdgeDetection:
		return noArgs(&ops.EdgeDetection{})
	case ops.NameInvertColors, "invert":
		return noArgs(&ops.InvertColors{})
	case ops.NameToBinary:
		return noArgs(&ops.ToBinary{})
	case ops.NameToGrayscale:
		return noArgs(&ops.ToGrayscale{})
	case ops.NameToRGB:
		return noArgs(&ops.ToRGB{})
	case ops.NameToARGB:
		return noArgs(&ops.ToARGB{})
	case ops.NameToIndexed:
		if len(args) == 0 {
			return &ops.ToIndexed{}, nil
		}
		n, err := intArgs(args, 1)
		if err != nil {
			return nil, err
		}
		return &ops.ToIndexed{MaxColors: n[0]}, nil
	case ops.NameBrighten:
		n, err := intArgs(args, 1)
		if err != nil {
			return nil, err
		}
		return &ops.Brighten{Delta: n[0]}, nil
	case ops.NameRotate:
		n, err := intArgs(args, 1)
		if err != nil {
			return nil, err
		}
		return &ops.Rotate{Degrees: n[0]}, nil
	case ops.NameMirror:
		if len(args) != 1 {
			return nil, errUsage
		}
		switch strings.ToLower(args[0]) {
		case "horizontal", "h":
			return &ops.Mirror{Axis: ops.Horizontal}, nil
		case "vertical", "v":
			return &ops.Mirror{Axis: ops.Vertical}, nil
		}
		return nil, fmt.Errorf("unknown axis %q", args[0])
	case ops.NameScale:
		f, err := floatArgs(args, 1)
		if err != nil {
			return nil, err
		}
		return &ops.Scale{Factor: f[0]}, nil
	case ops.NameStretchToFill:
		n, err := intArgs(args, 2)
		if err != nil {
			return nil, err
		}
		return &ops.StretchToFill{Width: n[0], Height: n[1]}, nil
	case ops.NameResizeToFit:
		n, err := intArgs(args, 2)
		if err != nil {
			return nil, err
		}
		return &ops.ResizeToFit{Width: n[0], Height: n[1]}, nil
	case ops.NameResizeToWidth:
		n, err := intArgs(args, 1)
		if err != nil {
			return nil, err
		}
		return &ops.ResizeToWidth{Width: n[0]}, nil
	case ops.NameResizeToHeight:
		n, err := intArgs(args, 1)
		if err != nil {
			return nil, err
		}
		return &ops.ResizeToHeight{Height: n[0]}, nil
	case ops.NameThumbnail:
		n, err := intArgs(args, 2)
		if err != nil {
			return nil, err
		}
		return &ops.Thumbnail{Width: n[0], Height: n[1]}, nil
	case ops.NameCrop:
		n, err := intArgs(args, 4)
		if err != nil {
			return nil, err
		}
		return &ops.Crop{Rect: ops.Rect{X: n[0], Y: n[1], W: n[2], H: n[3]}}, nil
	}
	return nil, fmt.Errorf("unknown operation %q", name)
}

// parseClip reads "clip rect|ellipse x y w h [outside]" and
// "clip polygon x,y x,y x,y ... [outside]" in view coordinates.
func parseClip(args []string) (session.Command, error) {
	if len(args) < 2 {
		return nil, errUsage
	}
	keepInside := true
	if strings.EqualFold(args[len(args)-1], "outside") {
		keepInside = false
		args = args[:len(args)-1]
	}
	kind, args := strings.ToLower(args[0]), args[1:]

	var shape ops.Shape
	switch kind {
	case "rect", "rectangle", "ellipse":
		v, err := floatArgs(args, 4)
		if err != nil {
			return nil, err
		}
		if kind == "ellipse" {
			shape = ops.Ellipse{X: v[0], Y: v[1], W: v[2], H: v[3]}
		} else {
			shape = ops.Rectangle{X: v[0], Y: v[1], W: v[2], H: v[3]}
		}
	case "polygon", "poly":
		pts := make([]ops.Point, 0, len(args))
		for _, a := range args {
			xs, ys, ok := strings.Cut(a, ",")
			if !ok {
				return nil, fmt.Errorf("point %q must be x,y", a)
			}
			v, err := floatArgs([]string{xs, ys}, 2)
			if err != nil {
				return nil, err
			}
			pts = append(pts, ops.Point{X: v[0], Y: v[1]})
		}
		shape = ops.Polygon{Points: pts}
	default:
		return nil, fmt.Errorf("unknown shape %q", kind)
	}
	return session.CommitClip{Shape: shape, KeepInside: keepInside}, nil
}

// options reads trailing key=value arguments.
func options(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", a)
		}
		out[strings.ToLower(k)] = v
	}
	return out, nil
}

var namedColors = map[string]string{
	"white": "#ffffff",
	"black": "#000000",
	"red":   "#ff0000",
	"green": "#00ff00",
	"blue":  "#0000ff",
	"gray":  "#808080",
}

// parseColor accepts #rrggbb, #rgb and a few names.
func parseColor(s string) (color.NRGBA, error) {
	if hex, ok := namedColors[strings.ToLower(s)]; ok {
		s = hex
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("unknown colour %q", s)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// placement holds the keys shared by every watermark kind.
type placement struct {
	pos    ops.Anchor
	alpha  float64
	mode   ops.CompositeMode
	margin int
	color  color.NRGBA
}

func (p parser) placement(kv map[string]string) (placement, error) {
	pl := placement{
		pos:    ops.BottomRight,
		alpha:  1,
		mode:   ops.SourceOver,
		margin: p.margin,
		color:  color.NRGBA{R: 255, G: 255, B: 255, A: 255},
	}
	var err error
	if v, ok := kv["pos"]; ok {
		if pl.pos, err = ops.ParseAnchor(v); err != nil {
			return pl, err
		}
	}
	if v, ok := kv["alpha"]; ok {
		if pl.alpha, err = strconv.ParseFloat(v, 64); err != nil {
			return pl, fmt.Errorf("alpha %q is not a number", v)
		}
	}
	if v, ok := kv["mode"]; ok {
		if pl.mode, err = ops.ParseCompositeMode(v); err != nil {
			return pl, err
		}
	}
	if v, ok := kv["margin"]; ok {
		if pl.margin, err = strconv.Atoi(v); err != nil {
			return pl, fmt.Errorf("margin %q is not an integer", v)
		}
	}
	if v, ok := kv["color"]; ok {
		if pl.color, err = parseColor(v); err != nil {
			return pl, err
		}
	}
	return pl, nil
}

// parseWatermark reads
//
//	watermark text "<text>" [color= font= size= style= pos= margin=]
//	watermark shape <shape> [color= pos= alpha= mode= outline=<width> margin=]
//	watermark image <path> [pos= alpha= mode= margin=]
func (p parser) parseWatermark(args []string) (session.Command, error) {
	if len(args) < 2 {
		return nil, errUsage
	}
	kind, subject := strings.ToLower(args[0]), args[1]
	kv, err := options(args[2:])
	if err != nil {
		return nil, err
	}
	pl, err := p.placement(kv)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "text":
		f := ops.Font{Family: ops.FamilyGo, Size: 24}
		if v, ok := kv["font"]; ok {
			f.Family = v
		}
		if v, ok := kv["size"]; ok {
			if f.Size, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("size %q is not a number", v)
			}
		}
		if v, ok := kv["style"]; ok {
			if f.Style, err = ops.ParseFontStyle(v); err != nil {
				return nil, err
			}
		}
		return session.PushOperation{Op: &ops.WatermarkText{
			Text: subject, Color: pl.color, Font: f, Position: pl.pos, Margin: pl.margin,
		}}, nil
	case "shape":
		shape, err := ops.ParseMarkShape(subject)
		if err != nil {
			return nil, err
		}
		var props ops.ShapeProps
		if v, ok := kv["outline"]; ok {
			props.Outline = true
			if v != "" {
				if props.StrokeWidth, err = strconv.ParseFloat(v, 64); err != nil {
					return nil, fmt.Errorf("outline %q is not a number", v)
				}
			}
		}
		return session.PushOperation{Op: &ops.WatermarkShape{
			Shape: shape, Color: pl.color, Position: pl.pos, Alpha: pl.alpha,
			Mode: pl.mode, Props: props, Margin: pl.margin,
		}}, nil
	case "image":
		return watermarkImageCmd{codec: p.codec, Path: subject, place: pl}, nil
	}
	return nil, fmt.Errorf("unknown watermark %q", kind)
}

// ── Shell commands run on the dispatcher ──────────────────────────────────────

type propertiesCmd struct{}

func (propertiesCmd) Name() string  { return "properties" }
func (propertiesCmd) Redraws() bool { return false }
func (propertiesCmd) Execute(ctx context.Context, s *session.Session) (any, error) {
	return s.Properties(ctx)
}

// thumbnailsCmd writes page-NNN.png per page into Dir and returns the paths.
type thumbnailsCmd struct {
	codec core.Codec
	Dir   string
}

func (thumbnailsCmd) Name() string  { return "thumbnails" }
func (thumbnailsCmd) Redraws() bool { return false }
func (c thumbnailsCmd) Execute(ctx context.Context, s *session.Session) (any, error) {
	thumbs, err := s.Thumbnails(ctx, 0)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryIO, "thumbnails", err)
	}
	paths := make([]string, len(thumbs))
	for i, th := range thumbs {
		paths[i] = filepath.Join(c.Dir, fmt.Sprintf("page-%03d.png", i+1))
		if err := c.codec.Encode(ctx, th, core.FormatPNG, paths[i]); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// frameCmd renders the current view and writes it as PNG.
type frameCmd struct {
	codec core.Codec
	Path  string
}

func (frameCmd) Name() string  { return "frame" }
func (frameCmd) Redraws() bool { return false }
func (c frameCmd) Execute(ctx context.Context, s *session.Session) (any, error) {
	frame, err := s.Render(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.codec.Encode(ctx, core.FromStd(frame.Image), core.FormatPNG, c.Path); err != nil {
		return nil, err
	}
	return c.Path, nil
}

// watermarkImageCmd decodes Path and pushes it as an image watermark.
type watermarkImageCmd struct {
	codec core.Codec
	Path  string
	place placement
}

func (watermarkImageCmd) Name() string  { return session.CmdPushOperation }
func (watermarkImageCmd) Redraws() bool { return true }
func (c watermarkImageCmd) Execute(ctx context.Context, s *session.Session) (any, error) {
	mark, err := c.codec.Decode(ctx, c.Path)
	if err != nil {
		return nil, err
	}
	return nil, s.PushOperation(ctx, &ops.WatermarkImage{
		Image: mark, Position: c.place.pos, Alpha: c.place.alpha,
		Mode: c.place.mode, Margin: c.place.margin,
	})
}
