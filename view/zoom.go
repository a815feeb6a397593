// Package view computes the display-time transform that is composed after the
// operation list and never stored in it.
package view

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Skryldev/imageviewer/core"
	"github.com/Skryldev/imageviewer/ops"
	"github.com/Skryldev/imageviewer/utils"
)

// Mode is the zoom strategy.
type Mode int

const (
	FitPage Mode = iota
	FitHeight
	FitWidth
	Percent
)

func (m Mode) String() string {
	switch m {
	case FitPage:
		return "fit-page"
	case FitHeight:
		return "fit-height"
	case FitWidth:
		return "fit-width"
	}
	return "percent"
}

// Zoom ladder bounds.
const (
	MinPercent  = 10
	MaxPercent  = 250
	StepPercent = 10
)

// Ladder returns the explicit percentages offered to the user.
func Ladder() []int {
	out := make([]int, 0, MaxPercent/StepPercent)
	for p := MinPercent; p <= MaxPercent; p += StepPercent {
		out = append(out, p)
	}
	return out
}

// Zoom is a mode plus the explicit percentage used by Percent.
type Zoom struct {
	Mode    Mode
	Percent int
}

// Fit returns a fit-mode zoom.
func Fit(m Mode) Zoom { return Zoom{Mode: m} }

// At returns an explicit percentage zoom.
func At(percent int) Zoom { return Zoom{Mode: Percent, Percent: percent} }

func (z Zoom) String() string {
	if z.Mode == Percent {
		return fmt.Sprintf("%d%%", z.Percent)
	}
	return z.Mode.String()
}

// IsFit reports whether z depends on the window size.
func (z Zoom) IsFit() bool { return z.Mode != Percent }

// Validate checks that an explicit percentage lies on the ladder range.
func (z Zoom) Validate() error {
	switch z.Mode {
	case FitPage, FitHeight, FitWidth:
		return nil
	case Percent:
		if z.Percent < MinPercent || z.Percent > MaxPercent {
			return fmt.Errorf("zoom %d%% outside [%d%%, %d%%]", z.Percent, MinPercent, MaxPercent)
		}
		return nil
	}
	return fmt.Errorf("unknown zoom mode %d", z.Mode)
}

// ParseZoom accepts fit-page, fit-height, fit-width, "150" and "150%".
func ParseZoom(s string) (Zoom, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "fit-page", "fit", "page":
		return Fit(FitPage), nil
	case "fit-height", "height":
		return Fit(FitHeight), nil
	case "fit-width", "width":
		return Fit(FitWidth), nil
	}
	p, err := strconv.Atoi(strings.TrimSuffix(norm, "%"))
	if err != nil {
		return Zoom{}, fmt.Errorf("unknown zoom %q", s)
	}
	z := At(p)
	return z, z.Validate()
}

// Scale returns the effective scale factor of z for an image shown in win.
func Scale(z Zoom, img, win core.Size) float64 {
	switch z.Mode {
	case FitPage:
		return utils.FitFactor(img.Width, img.Height, win.Width, win.Height)
	case FitWidth:
		return float64(win.Width) / float64(img.Width)
	case FitHeight:
		return float64(win.Height) / float64(img.Height)
	}
	return float64(z.Percent) / 100
}

// current returns the percentage zoom in/out starts from.  Fit modes snap to
// the nearest ladder step of their effective scale.
func current(z Zoom, img, win core.Size) int {
	if z.Mode == Percent {
		return z.Percent
	}
	return int(math.Round(Scale(z, img, win)*10)) * 10
}

// ZoomIn steps up one ladder entry, staying at MaxPercent.
func ZoomIn(z Zoom, img, win core.Size) Zoom {
	p := current(z, img, win)
	if z.IsFit() {
		return At(clampPercent(p + StepPercent))
	}
	for _, l := range Ladder() {
		if l > p {
			return At(l)
		}
	}
	return At(MaxPercent)
}

// ZoomOut steps down one ladder entry, staying at MinPercent.
func ZoomOut(z Zoom, img, win core.Size) Zoom {
	p := current(z, img, win)
	if z.IsFit() {
		return At(clampPercent(p - StepPercent))
	}
	ladder := Ladder()
	for i := len(ladder) - 1; i >= 0; i-- {
		if ladder[i] < p {
			return At(ladder[i])
		}
	}
	return At(MinPercent)
}

func clampPercent(p int) int {
	return max(MinPercent, min(MaxPercent, p))
}

// Transform returns the operation that renders an image at zoom z in win.
func Transform(z Zoom, win core.Size) core.Operation {
	switch z.Mode {
	case FitPage:
		return &ops.ResizeToFit{Width: win.Width, Height: win.Height}
	case FitWidth:
		return &ops.ResizeToWidth{Width: win.Width}
	case FitHeight:
		return &ops.ResizeToHeight{Height: win.Height}
	}
	return &ops.Scale{Factor: float64(z.Percent) / 100}
}

// DisplaySize returns the dimensions Transform produces for img.
func DisplaySize(z Zoom, img, win core.Size) core.Size {
	var w, h int
	switch z.Mode {
	case FitPage:
		w, h = utils.FitDimensions(img.Width, img.Height, win.Width, win.Height)
	case FitWidth:
		w, h = utils.ScaleDimensions(img.Width, img.Height, win.Width, 0)
	case FitHeight:
		w, h = utils.ScaleDimensions(img.Width, img.Height, 0, win.Height)
	default:
		w, h = ops.ScaledSize(img.Width, img.Height, float64(z.Percent)/100)
	}
	return core.Size{Width: w, Height: h}
}
