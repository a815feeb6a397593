package codec

import (
	"context"
	"maps"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/utils"
)

// Metadata keys always present in a successful read.
const (
	KeyFormat     = "Format"
	KeyWidth      = "Width"
	KeyHeight     = "Height"
	KeyColorModel = "Color Model"
	KeyFileSize   = "File Size"
	KeyPages      = "Pages"
	KeyFileName   = "File Name"
)

// MetadataReader implements core.MetadataReader.  Basic properties come from
// the Codec's decoders and EXIF tags from goexif, keyed by their field name.
type MetadataReader struct {
	codec *Codec
}

func NewMetadataReader(c *Codec) *MetadataReader { return &MetadataReader{codec: c} }

func (m *MetadataReader) ReadMetadata(ctx context.Context, path string) (core.Metadata, error) {
	data, err := m.codec.read(ctx, "metadata.read", path)
	if err != nil {
		return core.Metadata{}, err
	}
	var b core.MetadataBuilder
	b.Add(KeyFileName, filepath.Base(path))
	if err := m.fields(ctx, &b, data); err != nil {
		return core.Metadata{}, err
	}
	return b.Metadata(), nil
}

func (m *MetadataReader) ReadMetadataBytes(ctx context.Context, data []byte) (core.Metadata, error) {
	var b core.MetadataBuilder
	if err := m.fields(ctx, &b, data); err != nil {
		return core.Metadata{}, err
	}
	return b.Metadata(), nil
}

// fields adds the basic properties, then the EXIF tags sorted by field name.
func (m *MetadataReader) fields(ctx context.Context, b *core.MetadataBuilder, data []byte) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryDecode, "metadata.read", err)
	}
	format, dec, err := m.codec.decoder("metadata.read", data)
	if err != nil {
		return err
	}
	img, err := dec.Decode(ctx, utils.BytesReader(data))
	if err != nil {
		return err
	}
	pages := 1
	if pd, ok := dec.(core.PageDecoder); ok {
		if n, err := pd.PageCount(ctx, data); err == nil && n > 0 {
			pages = n
		}
	}

	b.Add(KeyFormat, string(format))
	b.Add(KeyWidth, strconv.Itoa(img.Width()))
	b.Add(KeyHeight, strconv.Itoa(img.Height()))
	b.Add(KeyColorModel, img.Model().String())
	b.Add(KeyPages, strconv.Itoa(pages))
	b.Add(KeyFileSize, humanize.IBytes(uint64(len(data))))

	// EXIF is optional; files without it keep the basic keys only.
	x, err := exif.Decode(utils.BytesReader(data))
	if err != nil {
		return nil
	}
	w := exifWalker{fields: make(map[string]string)}
	_ = x.Walk(w)
	for _, k := range slices.Sorted(maps.Keys(w.fields)) {
		b.Add(k, w.fields[k])
	}
	return nil
}

type exifWalker struct {
	fields map[string]string
}

func (w exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	val := tag.String()
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
	}
	w.fields[string(name)] = val
	return nil
}

var _ core.MetadataReader = (*MetadataReader)(nil)
