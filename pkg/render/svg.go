package render

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
)

// ExportSVG writes a vector rendition of sc at w×h. Label widths use the
// same 7px-per-rune metric as the raster font.
func (r *Renderer) ExportSVG(out io.Writer, sc Scene, w, h int) error {
	canvas := svg.New(out)
	canvas.Start(w, h)
	canvas.Rect(0, 0, w, h, fmt.Sprintf("fill:%s", css(r.Theme.ExportBackground)))

	scale := sc.View.Scale
	if scale <= 0 {
		scale = 1
	}
	radius := r.NodeRadius * scale

	for _, e := range sc.Edges {
		from, ok1 := sc.Positions[e.From]
		to, ok2 := sc.Positions[e.To]
		if !ok1 || !ok2 {
			continue
		}
		x1, y1 := sc.View.WorldToScreen(from.X, from.Y)
		x2, y2 := sc.View.WorldToScreen(to.X, to.Y)
		cx, cy := controlPoint(x1, y1, x2, y2)
		canvas.Qbez(iround(x1), iround(y1), iround(cx), iround(cy), iround(x2), iround(y2),
			fmt.Sprintf("fill:none;stroke:%s;stroke-width:1", css(r.Theme.Edge)))
	}

	measure := func(s string) float64 { return float64(len([]rune(s))) * 7 }
	maxLabel := MaxLabelWidth(float64(w))
	for _, n := range sc.Nodes {
		p, ok := sc.Positions[n.ID]
		if !ok {
			continue
		}
		x, y := sc.View.WorldToScreen(p.X, p.Y)
		fill := ResolveColor(n)
		if n.ID == sc.Highlight {
			fill = HighlightFill
			canvas.Circle(iround(x), iround(y), iround(radius+4),
				fmt.Sprintf("fill:%s;fill-opacity:%s", css(HighlightGlow), opacity(HighlightGlow)))
		}
		canvas.Circle(iround(x), iround(y), iround(radius), fmt.Sprintf("fill:%s", css(fill)))

		label := n.Label
		if label == "" {
			label = EmptyLabel
		}
		text := TruncateLabel(measure, label, maxLabel)
		rw := measure(text) + 2*LabelPadX
		rh := 13 + 2*LabelPadY
		top := y + radius + LabelGap
		canvas.Roundrect(iround(x-rw/2), iround(top), iround(rw), iround(rh), int(LabelRadius), int(LabelRadius),
			fmt.Sprintf("fill:%s;fill-opacity:%s", css(r.Theme.PillFill), opacity(r.Theme.PillFill)))
		canvas.Text(iround(x), iround(top+rh/2+4), text,
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;text-anchor:middle", css(r.Theme.LabelText)))
	}

	canvas.End()
	return nil
}

func iround(f float64) int { return int(math.Round(f)) }
