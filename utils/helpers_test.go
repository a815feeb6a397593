package utils_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imageviewer/core"
	"github.com/Skryldev/imageviewer/utils"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want core.Format
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, core.FormatJPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n'}, core.FormatPNG},
		{"gif", []byte("GIF89a"), core.FormatGIF},
		{"tiff le", []byte{'I', 'I', 0x2A, 0}, core.FormatTIFF},
		{"tiff be", []byte{'M', 'M', 0, 0x2A}, core.FormatTIFF},
		{"bmp", []byte("BM\x00\x00\x00\x00"), core.FormatBMP},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), core.FormatWebP},
		{"short", []byte{1}, core.FormatUnknown},
		{"text", []byte("hello world"), core.FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, utils.DetectFormat(tt.data))
		})
	}
}

func TestFormatFromExt(t *testing.T) {
	assert.Equal(t, core.FormatJPEG, utils.FormatFromExt("/a/b.JPG"))
	assert.Equal(t, core.FormatTIFF, utils.FormatFromExt("t.tiff"))
	assert.Equal(t, core.FormatUnknown, utils.FormatFromExt("noext"))
	assert.Equal(t, core.FormatPNG, utils.ParseFormat("PNG"))
	assert.Equal(t, core.FormatTIFF, utils.ParseFormat(".tif"))
	assert.Equal(t, "jpeg", utils.Extension("x.JPEG"))
}

func TestScaleDimensions(t *testing.T) {
	tests := []struct {
		srcW, srcH, tW, tH int
		wantW, wantH       int
	}{
		{800, 600, 400, 0, 400, 300},
		{800, 600, 0, 300, 400, 300},
		{800, 600, 0, 0, 800, 600},
		{100, 3, 10, 0, 10, 1},
	}
	for _, tt := range tests {
		w, h := utils.ScaleDimensions(tt.srcW, tt.srcH, tt.tW, tt.tH)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("ScaleDimensions(%d,%d,%d,%d) = (%d,%d), want (%d,%d)",
				tt.srcW, tt.srcH, tt.tW, tt.tH, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestFitDimensions(t *testing.T) {
	w, h := utils.FitDimensions(100, 50, 800, 600)
	assert.Equal(t, 800, w)
	assert.Equal(t, 400, h)

	w, h = utils.FitDimensions(1000, 2000, 100, 100)
	assert.Equal(t, 50, w)
	assert.Equal(t, 100, h)
}

func TestReadFileLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	data, err := utils.ReadFile(context.Background(), path, 100)
	require.NoError(t, err)
	assert.Len(t, data, 100)

	_, err = utils.ReadFile(context.Background(), path, 99)
	assert.ErrorIs(t, err, utils.ErrTooLarge)

	data, err = utils.ReadFile(context.Background(), path, 0)
	require.NoError(t, err)
	assert.Len(t, data, 100)
}
