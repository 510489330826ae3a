// Package render draws graph frames onto an in-memory raster surface and
// exports them as PNG or SVG.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"

	"github.com/vanderheijden86/edumap/pkg/model"
)

// Theme is a set of contrasting colors for one appearance.
type Theme struct {
	Name             string
	Background       color.NRGBA
	Edge             color.NRGBA
	PillFill         color.NRGBA
	PillStroke       color.NRGBA
	LabelText        color.NRGBA
	ExportBackground color.NRGBA
}

var (
	Light = Theme{
		Name:             "light",
		Background:       hex("#f1f5f9"),
		Edge:             hex("#475569"),
		PillFill:         color.NRGBA{255, 255, 255, 235},
		PillStroke:       color.NRGBA{2, 6, 23, 15},
		LabelText:        hex("#07122a"),
		ExportBackground: hex("#ffffff"),
	}
	Dark = Theme{
		Name:             "dark",
		Background:       hex("#0f172a"),
		Edge:             hex("#64748b"),
		PillFill:         color.NRGBA{6, 8, 23, 153},
		PillStroke:       color.NRGBA{255, 255, 255, 10},
		LabelText:        hex("#ffffff"),
		ExportBackground: hex("#0f172a"),
	}
)

// ThemeByName looks up "light" or "dark", case-insensitively.
func ThemeByName(name string) (Theme, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light":
		return Light, true
	case "dark":
		return Dark, true
	}
	return Dark, false
}

// Node fill colors.
var (
	DefaultNodeColor = hex("#6b7280")
	HighlightFill    = hex("#FFEB99")
	HighlightGlow    = color.NRGBA{255, 200, 50, 204}

	typePalette = map[string]color.NRGBA{
		"concepto_principal":  hex("#FFB347"),
		"concepto_secundario": hex("#77DD77"),
		"entidad":             hex("#AEC6CF"),
		"detalle":             hex("#B39EB5"),
	}
)

// ResolveColor picks a node's fill: its explicit color when that parses,
// else the palette entry for its type, else DefaultNodeColor.
func ResolveColor(n model.Node) color.NRGBA {
	if n.Color != "" {
		if c, err := ParseColor(n.Color); err == nil {
			return c
		}
	}
	if c, ok := typePalette[n.Type]; ok {
		return c
	}
	return DefaultNodeColor
}

// ParseColor parses the CSS forms nodes carry: #rgb, #rrggbb (the # is
// optional), named colors such as "red", and rgb()/rgba().
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "#") {
		if c, ok := colornames.Map[lower]; ok {
			return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
		}
		if strings.HasPrefix(lower, "rgb") {
			return parseRGBFunc(lower)
		}
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

var errBadRGB = errors.New("expected rgb(r, g, b) or rgba(r, g, b, a)")

func parseRGBFunc(s string) (color.NRGBA, error) {
	open, end := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return color.NRGBA{}, fmt.Errorf("parse color %q: %w", s, errBadRGB)
	}
	fn, args := s[:open], strings.Split(s[open+1:end], ",")
	if !(fn == "rgb" && len(args) == 3) && !(fn == "rgba" && len(args) == 4) {
		return color.NRGBA{}, fmt.Errorf("parse color %q: %w", s, errBadRGB)
	}
	var ch [3]uint8
	for i := range ch {
		v, err := strconv.Atoi(strings.TrimSpace(args[i]))
		if err != nil || v < 0 || v > 255 {
			return color.NRGBA{}, fmt.Errorf("parse color %q: channel %q out of range", s, args[i])
		}
		ch[i] = uint8(v)
	}
	alpha := uint8(255)
	if len(args) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(args[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("parse color %q: alpha %q out of range", s, args[3])
		}
		alpha = uint8(math.Round(a * 255))
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: alpha}, nil
}

func hex(s string) color.NRGBA {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// css renders c for SVG style attributes.
func css(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func opacity(c color.NRGBA) string {
	return fmt.Sprintf("%.3f", float64(c.A)/255)
}
