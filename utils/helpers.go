package utils

import (
	"bytes"
	"math"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Skryldev/imageviewer/core"
)

// DetectFormat sniffs the leading bytes of data and returns the image format.
func DetectFormat(data []byte) core.Format {
	if len(data) < 4 {
		return core.FormatUnknown
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return core.FormatJPEG
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return core.FormatPNG
	}
	// GIF: GIF8
	if data[0] == 'G' && data[1] == 'I' && data[2] == 'F' && data[3] == '8' {
		return core.FormatGIF
	}
	// TIFF: II*\0 or MM\0*
	if (data[0] == 'I' && data[1] == 'I' && data[2] == 0x2A && data[3] == 0) ||
		(data[0] == 'M' && data[1] == 'M' && data[2] == 0 && data[3] == 0x2A) {
		return core.FormatTIFF
	}
	// BMP: BM
	if data[0] == 'B' && data[1] == 'M' {
		return core.FormatBMP
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return core.FormatWebP
	}
	// Fallback to net/http sniffing.
	return FormatFromContentType(http.DetectContentType(data))
}

// FormatFromContentType maps MIME types to Format values.
func FormatFromContentType(ct string) core.Format {
	switch ct {
	case "image/jpeg", "image/jpg":
		return core.FormatJPEG
	case "image/png":
		return core.FormatPNG
	case "image/gif":
		return core.FormatGIF
	case "image/bmp", "image/x-bmp":
		return core.FormatBMP
	case "image/tiff":
		return core.FormatTIFF
	case "image/webp":
		return core.FormatWebP
	}
	return core.FormatUnknown
}

var extFormats = map[string]core.Format{
	".png":  core.FormatPNG,
	".jpg":  core.FormatJPEG,
	".jpeg": core.FormatJPEG,
	".jpe":  core.FormatJPEG,
	".gif":  core.FormatGIF,
	".bmp":  core.FormatBMP,
	".tif":  core.FormatTIFF,
	".tiff": core.FormatTIFF,
	".webp": core.FormatWebP,
}

// FormatFromExt returns the format implied by the extension of path.
func FormatFromExt(path string) core.Format {
	if f, ok := extFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return core.FormatUnknown
}

// ParseFormat accepts a format name or extension such as "JPG" or ".tif".
func ParseFormat(s string) core.Format {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	return FormatFromExt(s)
}

// Extension returns the extension of path without the dot, lower-cased.
func Extension(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// ScaleDimensions computes output (w, h) preserving aspect ratio.
// Pass 0 for either axis to calculate it from the other.  Results are rounded
// to nearest and never below 1.
func ScaleDimensions(srcW, srcH, targetW, targetH int) (int, int) {
	if targetW == 0 && targetH == 0 {
		return srcW, srcH
	}
	if targetW == 0 {
		ratio := float64(targetH) / float64(srcH)
		return RoundDim(float64(srcW) * ratio), targetH
	}
	if targetH == 0 {
		ratio := float64(targetW) / float64(srcW)
		return targetW, RoundDim(float64(srcH) * ratio)
	}
	return targetW, targetH
}

// FitDimensions scales (srcW, srcH) by min(targetW/srcW, targetH/srcH).
func FitDimensions(srcW, srcH, targetW, targetH int) (int, int) {
	f := FitFactor(srcW, srcH, targetW, targetH)
	return RoundDim(float64(srcW) * f), RoundDim(float64(srcH) * f)
}

// FitFactor returns the scale factor that fits src inside target.
func FitFactor(srcW, srcH, targetW, targetH int) float64 {
	return math.Min(float64(targetW)/float64(srcW), float64(targetH)/float64(srcH))
}

// RoundDim rounds v to nearest and clamps it to at least 1.
func RoundDim(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// BytesReader creates an io.Reader backed by b without allocation.
func BytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
