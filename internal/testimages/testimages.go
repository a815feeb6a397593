// Package testimages builds encoded fixtures for tests.
package testimages

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// SolidPNG encodes a w×h PNG filled with c.
func SolidPNG(t testing.TB, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return encodePNG(t, img)
}

// Gradient returns an opaque image whose red channel follows x and green
// channel follows y.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// GradientPNG encodes Gradient(w, h) as PNG.
func GradientPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	return encodePNG(t, Gradient(w, h))
}

// GradientJPEG encodes Gradient(w, h) as JPEG at quality 90.
func GradientJPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// AnimatedGIF encodes one full-screen w×h frame per colour.
func AnimatedGIF(t testing.TB, w, h int, colors ...color.Color) []byte {
	t.Helper()
	anim := &gif.GIF{}
	for _, c := range colors {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{c, color.Black})
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

// TIFFPage is one directory of GrayTIFFPages.
type TIFFPage struct {
	W, H int
	Fill uint8
}

// GrayTIFF writes an uncompressed little-endian 8-bit grayscale TIFF with one
// w×h directory per value in fills.
func GrayTIFF(w, h int, fills ...uint8) []byte {
	pages := make([]TIFFPage, len(fills))
	for i, v := range fills {
		pages[i] = TIFFPage{W: w, H: h, Fill: v}
	}
	return GrayTIFFPages(pages...)
}

// GrayTIFFPages writes one uncompressed 8-bit grayscale directory per page.
func GrayTIFFPages(pages ...TIFFPage) []byte {
	type entry struct {
		tag, typ uint16
		value    uint32
	}
	const (
		short   = 3
		long    = 4
		ifdSize = 2 + 9*12 + 4
	)
	le := binary.LittleEndian
	buf := make([]byte, 8)
	copy(buf, "II")
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], 8)

	for i, pg := range pages {
		n := pg.W * pg.H
		ifd := uint32(len(buf))
		strip := ifd + ifdSize
		entries := []entry{
			{256, short, uint32(pg.W)},
			{257, short, uint32(pg.H)},
			{258, short, 8},
			{259, short, 1},
			{262, short, 1},
			{273, long, strip},
			{277, short, 1},
			{278, long, uint32(pg.H)},
			{279, long, uint32(n)},
		}
		dir := make([]byte, ifdSize)
		le.PutUint16(dir, uint16(len(entries)))
		for j, e := range entries {
			p := dir[2+j*12:]
			le.PutUint16(p, e.tag)
			le.PutUint16(p[2:], e.typ)
			le.PutUint32(p[4:], 1)
			if e.typ == short {
				le.PutUint16(p[8:], uint16(e.value))
			} else {
				le.PutUint32(p[8:], e.value)
			}
		}
		if i < len(pages)-1 {
			le.PutUint32(dir[ifdSize-4:], strip+uint32(n))
		}
		buf = append(buf, dir...)
		buf = append(buf, bytes.Repeat([]byte{pg.Fill}, n)...)
	}
	return buf
}

// WriteFile stores data under t.TempDir() and returns the path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func encodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
