package ops

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// CompositeMode is a Porter-Duff compositing rule.
type CompositeMode int

const (
	SourceOver CompositeMode = iota
	SourceIn
	SourceOut
	SourceAtop
	DestinationOver
	DestinationIn
	DestinationOut
	DestinationAtop
	Copy
	Clear
	Xor
)

var compositeNames = [...]string{
	SourceOver:      "source-over",
	SourceIn:        "source-in",
	SourceOut:       "source-out",
	SourceAtop:      "source-atop",
	DestinationOver: "destination-over",
	DestinationIn:   "destination-in",
	DestinationOut:  "destination-out",
	DestinationAtop: "destination-atop",
	Copy:            "copy",
	Clear:           "clear",
	Xor:             "xor",
}

func (m CompositeMode) String() string {
	if m < 0 || int(m) >= len(compositeNames) {
		return fmt.Sprintf("CompositeMode(%d)", int(m))
	}
	return compositeNames[m]
}

func (m CompositeMode) valid() bool { return m >= 0 && int(m) < len(compositeNames) }

// CompositeModes lists every supported mode in declaration order.
func CompositeModes() []CompositeMode {
	out := make([]CompositeMode, len(compositeNames))
	for i := range out {
		out[i] = CompositeMode(i)
	}
	return out
}

// ParseCompositeMode accepts names such as "source-over" or "SRC_OVER".
func ParseCompositeMode(s string) (CompositeMode, error) {
	norm := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(s)))
	norm = strings.Replace(norm, "src", "source", 1)
	norm = strings.Replace(norm, "dst", "destination", 1)
	for i, n := range compositeNames {
		if n == norm {
			return CompositeMode(i), nil
		}
	}
	if norm == "source" {
		return Copy, nil
	}
	return 0, fmt.Errorf("unknown composite mode %q", s)
}

type blendFunc func(sr, sg, sb, sa, dr, dg, db, da byte) (r, g, b, a byte)

func (m CompositeMode) blend() blendFunc {
	switch m {
	case SourceIn:
		return blendSourceIn
	case SourceOut:
		return blendSourceOut
	case SourceAtop:
		return blendSourceAtop
	case DestinationOver:
		return blendDestinationOver
	case DestinationIn:
		return blendDestinationIn
	case DestinationOut:
		return blendDestinationOut
	case DestinationAtop:
		return blendDestinationAtop
	case Copy:
		return blendCopy
	case Clear:
		return blendClear
	case Xor:
		return blendXor
	default:
		return blendSourceOver
	}
}

// ── Porter-Duff on premultiplied bytes ───────────────────────────────────────

func blendClear(_, _, _, _, _, _, _, _ byte) (byte, byte, byte, byte) { return 0, 0, 0, 0 }

func blendCopy(sr, sg, sb, sa, _, _, _, _ byte) (byte, byte, byte, byte) { return sr, sg, sb, sa }

// S + D*(1-Sa)
func blendSourceOver(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	inv := 255 - sa
	return addDiv255(sr, mulDiv255(dr, inv)),
		addDiv255(sg, mulDiv255(dg, inv)),
		addDiv255(sb, mulDiv255(db, inv)),
		addDiv255(sa, mulDiv255(da, inv))
}

// S*(1-Da) + D
func blendDestinationOver(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	inv := 255 - da
	return addDiv255(mulDiv255(sr, inv), dr),
		addDiv255(mulDiv255(sg, inv), dg),
		addDiv255(mulDiv255(sb, inv), db),
		addDiv255(mulDiv255(sa, inv), da)
}

// S*Da
func blendSourceIn(sr, sg, sb, sa, _, _, _, da byte) (byte, byte, byte, byte) {
	return mulDiv255(sr, da), mulDiv255(sg, da), mulDiv255(sb, da), mulDiv255(sa, da)
}

// D*Sa
func blendDestinationIn(_, _, _, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return mulDiv255(dr, sa), mulDiv255(dg, sa), mulDiv255(db, sa), mulDiv255(da, sa)
}

// S*(1-Da)
func blendSourceOut(sr, sg, sb, sa, _, _, _, da byte) (byte, byte, byte, byte) {
	inv := 255 - da
	return mulDiv255(sr, inv), mulDiv255(sg, inv), mulDiv255(sb, inv), mulDiv255(sa, inv)
}

// D*(1-Sa)
func blendDestinationOut(_, _, _, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	inv := 255 - sa
	return mulDiv255(dr, inv), mulDiv255(dg, inv), mulDiv255(db, inv), mulDiv255(da, inv)
}

// S*Da + D*(1-Sa), alpha = Da
func blendSourceAtop(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	inv := 255 - sa
	return addDiv255(mulDiv255(sr, da), mulDiv255(dr, inv)),
		addDiv255(mulDiv255(sg, da), mulDiv255(dg, inv)),
		addDiv255(mulDiv255(sb, da), mulDiv255(db, inv)),
		da
}

// S*(1-Da) + D*Sa, alpha = Sa
func blendDestinationAtop(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	inv := 255 - da
	return addDiv255(mulDiv255(sr, inv), mulDiv255(dr, sa)),
		addDiv255(mulDiv255(sg, inv), mulDiv255(dg, sa)),
		addDiv255(mulDiv255(sb, inv), mulDiv255(db, sa)),
		sa
}

// S*(1-Da) + D*(1-Sa)
func blendXor(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte) {
	invDa := 255 - da
	invSa := 255 - sa
	return addDiv255(mulDiv255(sr, invDa), mulDiv255(dr, invSa)),
		addDiv255(mulDiv255(sg, invDa), mulDiv255(dg, invSa)),
		addDiv255(mulDiv255(sb, invDa), mulDiv255(db, invSa)),
		addDiv255(mulDiv255(sa, invDa), mulDiv255(da, invSa))
}

// mulDiv255 returns a*b/255 rounded to nearest.
func mulDiv255(a, b byte) byte {
	return byte((uint16(a)*uint16(b) + 127) / 255)
}

// addDiv255 adds with saturation.
func addDiv255(a, b byte) byte {
	sum := uint16(a) + uint16(b)
	if sum > 255 {
		return 255
	}
	return byte(sum)
}

// alphaByte converts an opacity in [0, 1] to a byte.
func alphaByte(alpha float64) byte {
	return byte(math.Round(math.Max(0, math.Min(1, alpha)) * 255))
}

// compositeLayer blends layer onto dst with its origin at at.  Both images are
// premultiplied.  Layer pixels are scaled by alpha first.  When coveredOnly is
// set, destination pixels under fully transparent layer pixels are left alone,
// so the rule only affects the area the layer actually paints.
func compositeLayer(dst, layer *image.RGBA, at image.Point, mode CompositeMode, alpha float64, coveredOnly bool) {
	blend := mode.blend()
	a8 := alphaByte(alpha)
	area := layer.Bounds().Add(at).Intersect(dst.Bounds())
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			li := layer.PixOffset(x-at.X, y-at.Y)
			if coveredOnly && layer.Pix[li+3] == 0 {
				continue
			}
			sr := mulDiv255(layer.Pix[li], a8)
			sg := mulDiv255(layer.Pix[li+1], a8)
			sb := mulDiv255(layer.Pix[li+2], a8)
			sa := mulDiv255(layer.Pix[li+3], a8)
			di := dst.PixOffset(x, y)
			d := dst.Pix[di : di+4 : di+4]
			d[0], d[1], d[2], d[3] = blend(sr, sg, sb, sa, d[0], d[1], d[2], d[3])
		}
	}
}
