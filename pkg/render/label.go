package render

import "math"

// Label pill geometry.
const (
	Ellipsis      = "…"
	LabelPadX     = 10.0
	LabelPadY     = 6.0
	LabelRadius   = 8.0
	LabelGap      = 8.0
	MaxLabelCap   = 280.0
	LabelFraction = 0.7
	EmptyLabel    = "NODO"
)

// MaxLabelWidth returns the widest label text allowed on a surface of the
// given pixel width.
func MaxLabelWidth(surfaceWidth float64) float64 {
	return math.Min(surfaceWidth*LabelFraction, MaxLabelCap)
}

// TruncateLabel shortens text one rune at a time until text+"…" fits in
// maxWidth as reported by measure. Text that already fits is returned as is.
// If not even the ellipsis fits the result is empty.
func TruncateLabel(measure func(string) float64, text string, maxWidth float64) string {
	if measure(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && measure(string(runes)+Ellipsis) > maxWidth {
		runes = runes[:len(runes)-1]
	}
	out := string(runes) + Ellipsis
	if measure(out) > maxWidth {
		return ""
	}
	return out
}
