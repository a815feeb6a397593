package codec

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"

	"golang.org/x/image/tiff"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/utils"
)

// maxTIFFPages bounds the IFD walk so a looping chain cannot spin forever.
const maxTIFFPages = 4096

var errBadTIFF = errors.New("malformed tiff header")

// TIFF decodes every image file directory as a page and encodes with Deflate.
type TIFF struct {
	Compression tiff.CompressionType
}

func NewTIFF() *TIFF { return &TIFF{Compression: tiff.Deflate} }

func (t *TIFF) CanDecode(f core.Format) bool { return f == core.FormatTIFF }
func (t *TIFF) CanEncode(f core.Format) bool { return f == core.FormatTIFF }

func (t *TIFF) Decode(ctx context.Context, r io.Reader) (*core.Image, error) {
	return decodeWith(ctx, "tiff.decode", r, tiff.Decode)
}

func (t *TIFF) DecodeConfig(ctx context.Context, r io.Reader) (core.Size, error) {
	return configWith(ctx, "tiff.config", r, tiff.DecodeConfig)
}

func (t *TIFF) PageCount(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.Wrap(apperrors.CategoryDecode, "tiff.pages", err)
	}
	offsets, _, err := ifdOffsets(data)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CategoryDecode, "tiff.pages", err)
	}
	return len(offsets), nil
}

// DecodePage decodes directory index by pointing a copy of the header at it.
func (t *TIFF) DecodePage(ctx context.Context, data []byte, index int) (*core.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "tiff.page", err)
	}
	offsets, order, err := ifdOffsets(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "tiff.page", err)
	}
	if index < 0 || index >= len(offsets) {
		return nil, apperrors.OutOfBounds("tiff.page", apperrors.ErrPageRange)
	}
	buf := data
	if index > 0 {
		buf = utils.CloneBytes(data)
		order.PutUint32(buf[4:8], offsets[index])
	}
	return decodeWith(ctx, "tiff.page", utils.BytesReader(buf), tiff.Decode)
}

func (t *TIFF) Encode(ctx context.Context, w io.Writer, img *core.Image, _ core.EncodeOptions) error {
	opts := &tiff.Options{Compression: t.Compression}
	return encodeWith(ctx, "tiff.encode", img, func(m image.Image) error { return tiff.Encode(w, m, opts) })
}

// ifdOffsets walks the IFD chain and returns the offset of every directory.
func ifdOffsets(data []byte) ([]uint32, binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, nil, errBadTIFF
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, nil, errBadTIFF
	}
	if order.Uint16(data[2:4]) != 42 {
		return nil, nil, errBadTIFF
	}

	var offsets []uint32
	seen := make(map[uint32]bool)
	off := order.Uint32(data[4:8])
	for off != 0 {
		if seen[off] || len(offsets) >= maxTIFFPages {
			return nil, nil, fmt.Errorf("tiff: ifd chain loops at offset %d", off)
		}
		seen[off] = true
		start := int(off)
		if start+2 > len(data) {
			return nil, nil, fmt.Errorf("tiff: ifd offset %d past end of file", off)
		}
		n := int(order.Uint16(data[start : start+2]))
		next := start + 2 + n*12
		if next+4 > len(data) {
			return nil, nil, fmt.Errorf("tiff: ifd at %d truncated", off)
		}
		offsets = append(offsets, off)
		off = order.Uint32(data[next : next+4])
	}
	if len(offsets) == 0 {
		return nil, nil, errBadTIFF
	}
	return offsets, order, nil
}

var (
	_ core.PageDecoder = (*TIFF)(nil)
	_ core.Encoder     = (*TIFF)(nil)
)
