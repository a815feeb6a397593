package ops

import (
	"cmp"
	"image/color"
	"slices"
)

type colorCount struct {
	c [3]byte
	n int
}

func compareRGB(a, b [3]byte) int {
	for i := 0; i < 3; i++ {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// histogram returns the distinct colours of packed rgb in (R,G,B) order.
func histogram(rgb []byte) []colorCount {
	counts := make(map[[3]byte]int)
	for i := 0; i+2 < len(rgb); i += 3 {
		counts[[3]byte{rgb[i], rgb[i+1], rgb[i+2]}]++
	}
	out := make([]colorCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, colorCount{c: c, n: n})
	}
	slices.SortFunc(out, func(a, b colorCount) int { return compareRGB(a.c, b.c) })
	return out
}

// widest returns the channel with the largest spread in box.  Ties go to the
// earlier channel in R, G, B order.
func widest(box []colorCount) (channel, spread int) {
	spread = -1
	for ch := 0; ch < 3; ch++ {
		lo, hi := 255, 0
		for _, cc := range box {
			v := int(cc.c[ch])
			lo = min(lo, v)
			hi = max(hi, v)
		}
		if hi-lo > spread {
			channel, spread = ch, hi-lo
		}
	}
	return channel, spread
}

// medianCut builds a palette of at most limit entries.  Boxes are split on
// their widest channel at the pixel-weighted median; the box with the largest
// spread splits first, earlier boxes winning ties.
func medianCut(rgb []byte, limit int) []color.NRGBA {
	colors := histogram(rgb)
	if len(colors) <= limit {
		pal := make([]color.NRGBA, len(colors))
		for i, cc := range colors {
			pal[i] = color.NRGBA{R: cc.c[0], G: cc.c[1], B: cc.c[2], A: 255}
		}
		return pal
	}

	boxes := [][]colorCount{colors}
	for len(boxes) < limit {
		best, bestSpread, bestCh := -1, 0, 0
		for i, box := range boxes {
			if len(box) < 2 {
				continue
			}
			ch, spread := widest(box)
			if spread > bestSpread || best < 0 {
				best, bestSpread, bestCh = i, spread, ch
			}
		}
		if best < 0 {
			break
		}

		box := boxes[best]
		slices.SortStableFunc(box, func(a, b colorCount) int {
			if c := cmp.Compare(a.c[bestCh], b.c[bestCh]); c != 0 {
				return c
			}
			return compareRGB(a.c, b.c)
		})
		total := 0
		for _, cc := range box {
			total += cc.n
		}
		split, acc := 1, 0
		for i, cc := range box {
			acc += cc.n
			if acc*2 >= total {
				split = i + 1
				break
			}
		}
		split = clampInt(split, 1, len(box)-1)
		boxes[best] = box[:split:split]
		boxes = append(boxes, box[split:])
	}

	pal := make([]color.NRGBA, len(boxes))
	for i, box := range boxes {
		var sum [3]int
		n := 0
		for _, cc := range box {
			for ch := 0; ch < 3; ch++ {
				sum[ch] += int(cc.c[ch]) * cc.n
			}
			n += cc.n
		}
		pal[i] = color.NRGBA{
			R: byte((sum[0] + n/2) / n),
			G: byte((sum[1] + n/2) / n),
			B: byte((sum[2] + n/2) / n),
			A: 255,
		}
	}
	return pal
}

// remap assigns every pixel the nearest palette index by squared distance,
// lowest index winning ties.
func remap(rgb []byte, pal []color.NRGBA) []byte {
	cache := make(map[[3]byte]byte)
	out := make([]byte, len(rgb)/3)
	for i := range out {
		key := [3]byte{rgb[i*3], rgb[i*3+1], rgb[i*3+2]}
		idx, ok := cache[key]
		if !ok {
			bestD := -1
			for j, p := range pal {
				dr := int(key[0]) - int(p.R)
				dg := int(key[1]) - int(p.G)
				db := int(key[2]) - int(p.B)
				d := dr*dr + dg*dg + db*db
				if bestD < 0 || d < bestD {
					bestD, idx = d, byte(j)
				}
			}
			cache[key] = idx
		}
		out[i] = idx
	}
	return out
}
