// Package ops implements the closed set of image operations.  Every operation
// is a pure, deterministic function of its parameters and input image.
package ops

import (
	"context"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
)

// Operation names as reported by Name().
const (
	NameBlur           = "blur"
	NameGaussianBlur   = "gaussianBlur"
	NameSharpen        = "sharpen"
	NameEmboss         = "emboss"
	NameEdgeDetection  = "edgeDetection"
	NameInvertColors   = "invertColors"
	NameBrighten       = "brighten"
	NameRotate         = "rotate"
	NameMirror         = "mirror"
	NameScale          = "scale"
	NameStretchToFill  = "stretchToFill"
	NameResizeToFit    = "resizeToFit"
	NameResizeToWidth  = "resizeToWidth"
	NameResizeToHeight = "resizeToHeight"
	NameThumbnail      = "thumbnail"
	NameToBinary       = "toBinary"
	NameToGrayscale    = "toGrayscale"
	NameToIndexed      = "toIndexed"
	NameToRGB          = "toRGB"
	NameToARGB         = "toARGB"
	NameCrop           = "crop"
	NameClip           = "clip"
	NameWatermarkText  = "watermarkText"
	NameWatermarkShape = "watermarkShape"
	NameWatermarkImage = "watermarkImage"
)

// IsDestructive reports whether op replaces the effective source when
// committed by a session.
func IsDestructive(op core.Operation) bool {
	switch op.(type) {
	case *Crop, *Clip:
		return true
	}
	return false
}

// begin performs the checks shared by every Apply.
func begin(ctx context.Context, op core.Operation, img *core.Image) error {
	if err := checkCtx(ctx, op.Name()); err != nil {
		return err
	}
	if img == nil {
		return apperrors.New(apperrors.CategoryPipeline, op.Name(), apperrors.ErrEmptyInput)
	}
	return op.Validate()
}

func checkCtx(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Canceled(name, err)
	}
	return nil
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
