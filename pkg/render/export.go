package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"regexp"
	"strings"

	"golang.org/x/image/draw"

	"github.com/vanderheijden86/edumap/pkg/metrics"
)

// DefaultExportScale is the upscale factor used when none is given.
const DefaultExportScale = 2

// DefaultExportName is used when a title has nothing usable in it.
const DefaultExportName = "grafo"

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// ExportPNG copies the surface's current frame onto a canvas scale times
// larger, filled with the theme's export background, and returns it as PNG.
// It returns ErrNoFrame when nothing has been drawn.
func ExportPNG(s *Surface, theme Theme, scale int) ([]byte, error) {
	defer metrics.Timer(metrics.ExportPNG)()

	src, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	if scale < 1 {
		scale = DefaultExportScale
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: theme.ExportBackground}, image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL wraps PNG bytes in a data: URL.
func DataURL(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

// ExportFilename derives a download name from a graph title: runs of
// non-alphanumeric characters collapse to "_", and an empty result falls
// back to DefaultExportName. ext is appended with a dot when non-empty.
func ExportFilename(title, ext string) string {
	name := nonAlnum.ReplaceAllString(title, "_")
	if strings.Trim(name, "_") == "" {
		name = DefaultExportName
	}
	if ext == "" {
		return name
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}
