package render

import (
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// LabelFontSize is the label size in pixels at view scale 1.
const LabelFontSize = 12

var (
	labelFontOnce sync.Once
	labelFont     *opentype.Font
)

// newLabelFace returns a Go Regular face for labels. It covers Latin-1 and
// the general punctuation block, so accents and "…" are drawn. Faces are
// not safe for concurrent use, so each frame asks for its own. basicfont
// is the fallback if the embedded font cannot be parsed.
func newLabelFace() font.Face {
	labelFontOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err == nil {
			labelFont = f
		}
	})
	if labelFont == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(labelFont, &opentype.FaceOptions{
		Size:    LabelFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}
