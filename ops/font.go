package ops

import (
	"fmt"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// FontStyle selects a face within a family.
type FontStyle int

const (
	StylePlain FontStyle = iota
	StyleBold
	StyleItalic
	StyleBoldItalic
)

func (s FontStyle) String() string {
	switch s {
	case StyleBold:
		return "bold"
	case StyleItalic:
		return "italic"
	case StyleBoldItalic:
		return "bold-italic"
	}
	return "plain"
}

// ParseFontStyle accepts plain, bold, italic and bold-italic.
func ParseFontStyle(s string) (FontStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain", "regular":
		return StylePlain, nil
	case "bold":
		return StyleBold, nil
	case "italic":
		return StyleItalic, nil
	case "bold-italic", "bolditalic":
		return StyleBoldItalic, nil
	}
	return 0, fmt.Errorf("unknown font style %q", s)
}

// Font families bundled with the module.
const (
	FamilyGo     = "Go"
	FamilyGoMono = "Go Mono"
)

var fontFiles = map[string][4][]byte{
	"go":      {goregular.TTF, gobold.TTF, goitalic.TTF, gobolditalic.TTF},
	"go mono": {gomono.TTF, gomonobold.TTF, gomonoitalic.TTF, gomonobolditalic.TTF},
}

// FontFamilies returns the available family names.
func FontFamilies() []string { return []string{FamilyGo, FamilyGoMono} }

// Font describes a text watermark face.
type Font struct {
	Family string // empty = Go
	Size   float64
	Style  FontStyle
}

func (f Font) key() string {
	fam := strings.ToLower(strings.TrimSpace(f.Family))
	if fam == "" {
		fam = "go"
	}
	return fam
}

func (f Font) validate() error {
	if _, ok := fontFiles[f.key()]; !ok {
		return fmt.Errorf("unknown font family %q", f.Family)
	}
	if f.Style < StylePlain || f.Style > StyleBoldItalic {
		return fmt.Errorf("unknown font style %d", f.Style)
	}
	if !(f.Size > 0) {
		return fmt.Errorf("font size must be positive, got %v", f.Size)
	}
	return nil
}

type fontKey struct {
	family string
	style  FontStyle
}

var (
	parsedMu sync.Mutex
	parsed   = map[fontKey]*truetype.Font{}
)

// face returns a new face for f.  Faces cache glyphs and are not safe for
// concurrent use, so every caller gets its own.
func (f Font) face() (font.Face, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	k := fontKey{family: f.key(), style: f.Style}

	parsedMu.Lock()
	tf, ok := parsed[k]
	if !ok {
		var err error
		tf, err = truetype.Parse(fontFiles[k.family][k.style])
		if err != nil {
			parsedMu.Unlock()
			return nil, err
		}
		parsed[k] = tf
	}
	parsedMu.Unlock()

	return truetype.NewFace(tf, &truetype.Options{
		Size:    f.Size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}
