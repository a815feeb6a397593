package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Category classifies error types for targeted handling and user prompts.
type Category string

const (
	CategoryNoSource    Category = "no_source"
	CategoryUnsupported Category = "unsupported_format"
	CategoryDecode      Category = "decode"
	CategoryEncode      Category = "encode"
	CategoryOutOfBounds Category = "out_of_bounds"
	CategoryCanceled    Category = "canceled"
	CategoryIO          Category = "io"
	CategoryInput       Category = "input"
	CategoryPipeline    Category = "pipeline"
	CategoryConfig      Category = "config"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // command or operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.  Context cancellation is always
// reported as CategoryCanceled regardless of the requested category.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) && pe.Category == CategoryCanceled {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		category = CategoryCanceled
	}
	return New(category, op, err)
}

// NoSource reports that action requires a loaded image.
func NoSource(action string) *ProcessingError {
	return New(CategoryNoSource, action, fmt.Errorf("%w to %s", ErrNoImage, action))
}

// Canceled reports a superseded or aborted pipeline application.
func Canceled(op string, err error) *ProcessingError {
	if err == nil {
		err = context.Canceled
	}
	return New(CategoryCanceled, op, err)
}

// OutOfBounds reports degenerate geometry or an invalid index.
func OutOfBounds(op string, err error) *ProcessingError {
	return New(CategoryOutOfBounds, op, err)
}

// Input reports invalid operation parameters.
func Input(op string, format string, args ...any) *ProcessingError {
	return New(CategoryInput, op, fmt.Errorf(format, args...))
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// CategoryOf returns the category of err, or "" for foreign errors.
func CategoryOf(err error) Category {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// Prompt returns a human-readable sentence for err suitable for a dialog.
func Prompt(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProcessingError
	if !errors.As(err, &pe) {
		return capitalize(err.Error())
	}
	switch {
	case pe.Category == CategoryNoSource:
		return "No image to " + pe.Op
	case errors.Is(err, ErrPolygonLimit):
		return "Polygon sides limit reached"
	case pe.Category == CategoryUnsupported:
		return "Unsupported image format"
	case pe.Category == CategoryCanceled:
		return "Rendering superseded"
	}
	return capitalize(pe.Err.Error())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Sentinel errors for common failure modes.
var (
	ErrNoImage           = errors.New("no image")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrEmptyInput        = errors.New("empty input")
	ErrEmptyRegion       = errors.New("region is empty after clamping")
	ErrPolygonLimit      = errors.New("polygon sides limit reached")
	ErrPageRange         = errors.New("page index out of range")
	ErrPixelCount        = errors.New("pixel storage does not match dimensions")
)
