package codec_test

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imageviewer/adapters/codec"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/internal/testimages"
)

func TestMetadata_BasicKeys(t *testing.T) {
	data := testimages.SolidPNG(t, 12, 7, color.NRGBA{G: 255, A: 255})
	path := testimages.WriteFile(t, "green.png", data)
	r := codec.NewMetadataReader(newCodec())

	md, err := r.ReadMetadata(context.Background(), path)
	require.NoError(t, err)

	want := map[string]string{
		codec.KeyFormat:     "png",
		codec.KeyWidth:      "12",
		codec.KeyHeight:     "7",
		codec.KeyColorModel: "rgb",
		codec.KeyPages:      "1",
		codec.KeyFileName:   "green.png",
	}
	for k, v := range want {
		got, ok := md.Get(k)
		require.True(t, ok, k)
		assert.Equal(t, v, got, k)
	}
	size, ok := md.Get(codec.KeyFileSize)
	require.True(t, ok)
	assert.Contains(t, size, "B")

	assert.Equal(t, []string{
		codec.KeyFileName, codec.KeyFormat, codec.KeyWidth, codec.KeyHeight,
		codec.KeyColorModel, codec.KeyPages, codec.KeyFileSize,
	}, md.Keys(), "basic properties come first, in a fixed order")
}

func TestMetadata_TIFFPages(t *testing.T) {
	r := codec.NewMetadataReader(newCodec())
	md, err := r.ReadMetadataBytes(context.Background(), testimages.GrayTIFF(2, 2, 1, 2))
	require.NoError(t, err)

	pages, _ := md.Get(codec.KeyPages)
	assert.Equal(t, "2", pages)
	model, _ := md.Get(codec.KeyColorModel)
	assert.Equal(t, "grayscale", model)
	_, hasName := md.Get(codec.KeyFileName)
	assert.False(t, hasName)
}

func TestMetadata_Unsupported(t *testing.T) {
	r := codec.NewMetadataReader(newCodec())
	_, err := r.ReadMetadataBytes(context.Background(), []byte("plain text file"))
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryUnsupported))
}
