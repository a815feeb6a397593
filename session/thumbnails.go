package session

import (
	"context"

	"github.com/nfnt/resize"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
)

// Thumbnails returns one aspect-preserving thumbnail per page of the open
// file, each fitting into size×size.  size <= 0 uses the configured size.
// Pages smaller than size are returned unscaled.
func (s *Session) Thumbnails(ctx context.Context, size int) ([]*core.Image, error) {
	if err := s.require("show thumbnails"); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = s.opts.ThumbnailSize
	}
	out := make([]*core.Image, 0, s.pageCount)
	for i := 0; i < s.pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Canceled("thumbnails", err)
		}
		page, err := s.codec.ReadPage(ctx, s.file, i)
		if err != nil {
			return nil, err
		}
		thumb := resize.Thumbnail(uint(size), uint(size), page.ToStd(), resize.Bilinear)
		out = append(out, core.FromStd(thumb).WithOrigin(page.Format(), i))
	}
	return out, nil
}
