package render

import (
	"image"
	"math"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font"

	"github.com/vanderheijden86/edumap/pkg/layout"
	"github.com/vanderheijden86/edumap/pkg/metrics"
	"github.com/vanderheijden86/edumap/pkg/model"
)

const (
	// Curvature bends each edge sideways by this fraction of its length.
	Curvature   = 0.15
	arrowLength = 3.5
	glowRings   = 6
)

// Scene is everything needed to draw one frame.
type Scene struct {
	Nodes     []model.Node
	Edges     []model.Edge
	Positions map[string]layout.Point
	View      layout.View
	Highlight string
}

// NewScene captures the current engine positions and view for nodes and
// edges.
func NewScene(nodes []model.Node, edges []model.Edge, e *layout.Engine, highlight string) Scene {
	pos := make(map[string]layout.Point, len(nodes))
	for _, p := range e.Positions() {
		pos[p.NodeID] = p
	}
	return Scene{
		Nodes:     nodes,
		Edges:     edges,
		Positions: pos,
		View:      e.View(),
		Highlight: highlight,
	}
}

// Renderer draws scenes with a theme. It holds no per-frame state.
type Renderer struct {
	Theme Theme
	// Face overrides the label font. It must be safe for concurrent use
	// if frames are drawn from several goroutines. Nil uses Go Regular.
	Face       font.Face
	NodeRadius float64
}

// NewRenderer returns a renderer drawing labels in Go Regular.
func NewRenderer(theme Theme) *Renderer {
	return &Renderer{
		Theme:      theme,
		NodeRadius: layout.DefaultOptions().NodeRadius,
	}
}

func (r *Renderer) face() font.Face {
	if r.Face != nil {
		return r.Face
	}
	return newLabelFace()
}

// Frame draws sc onto a fresh w×h bitmap.
func (r *Renderer) Frame(sc Scene, w, h int) *image.RGBA {
	defer metrics.Timer(metrics.FrameRender)()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	dc := gg.NewContextForRGBA(img)
	dc.SetColor(r.Theme.Background)
	dc.Clear()
	face := r.face()
	dc.SetFontFace(face)

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
		r.drawEdge(dc, x1, y1, x2, y2, radius, scale)
	}

	maxLabel := MaxLabelWidth(float64(w))
	for _, n := range sc.Nodes {
		p, ok := sc.Positions[n.ID]
		if !ok {
			continue
		}
		x, y := sc.View.WorldToScreen(p.X, p.Y)
		r.drawNode(dc, n, x, y, radius, n.ID == sc.Highlight)
		r.drawLabel(dc, face, n.Label, x, y+radius+LabelGap, maxLabel)
	}
	return img
}

// Draw renders sc at the surface size and presents it.
func (r *Renderer) Draw(s *Surface, sc Scene) {
	w, h := s.Size()
	s.Present(r.Frame(sc, w, h))
}

// controlPoint is the quadratic control point for an edge from (x1,y1) to
// (x2,y2), offset perpendicular to the chord.
func controlPoint(x1, y1, x2, y2 float64) (float64, float64) {
	dx, dy := x2-x1, y2-y1
	l := math.Hypot(dx, dy)
	a := math.Atan2(dy, dx)
	d := l * Curvature
	return (x1+x2)/2 + d*math.Cos(a-math.Pi/2), (y1+y2)/2 + d*math.Sin(a-math.Pi/2)
}

func (r *Renderer) drawEdge(dc *gg.Context, x1, y1, x2, y2, radius, scale float64) {
	cx, cy := controlPoint(x1, y1, x2, y2)
	dc.SetColor(r.Theme.Edge)
	dc.SetLineWidth(1)
	dc.NewSubPath()
	dc.MoveTo(x1, y1)
	dc.QuadraticTo(cx, cy, x2, y2)
	dc.Stroke()

	// Arrow tip sits on the target circle, pointing along the curve tangent.
	tx, ty := x2-cx, y2-cy
	tl := math.Hypot(tx, ty)
	if tl == 0 {
		return
	}
	tx, ty = tx/tl, ty/tl
	tipX, tipY := x2-tx*radius, y2-ty*radius
	l := arrowLength * scale
	hw := l / 1.6
	bx, by := tipX-tx*l, tipY-ty*l
	dc.NewSubPath()
	dc.MoveTo(tipX, tipY)
	dc.LineTo(bx-ty*hw, by+tx*hw)
	dc.LineTo(bx+ty*hw, by-tx*hw)
	dc.ClosePath()
	dc.Fill()
}

func (r *Renderer) drawNode(dc *gg.Context, n model.Node, x, y, radius float64, highlighted bool) {
	fill := ResolveColor(n)
	if highlighted {
		fill = HighlightFill
		glow := HighlightGlow
		for i := glowRings; i > 0; i-- {
			glow.A = uint8(float64(HighlightGlow.A) * float64(glowRings-i+1) / float64(glowRings+1) / 2)
			dc.SetColor(glow)
			dc.DrawCircle(x, y, radius+float64(i)*2)
			dc.Fill()
		}
	}
	dc.SetColor(fill)
	dc.DrawCircle(x, y, radius)
	dc.Fill()
}

func (r *Renderer) drawLabel(dc *gg.Context, face font.Face, label string, cx, top, maxWidth float64) {
	if label == "" {
		label = EmptyLabel
	}
	text := TruncateLabel(func(s string) float64 {
		w, _ := dc.MeasureString(s)
		return w
	}, label, maxWidth)
	tw, _ := dc.MeasureString(text)
	fh := float64(face.Metrics().Height.Ceil())

	rw := tw + 2*LabelPadX
	rh := fh + 2*LabelPadY
	rx := cx - rw/2

	dc.SetColor(r.Theme.PillFill)
	dc.DrawRoundedRectangle(rx, top, rw, rh, LabelRadius)
	dc.Fill()
	dc.SetColor(r.Theme.PillStroke)
	dc.SetLineWidth(0.6)
	dc.DrawRoundedRectangle(rx, top, rw, rh, LabelRadius)
	dc.Stroke()

	dc.SetColor(r.Theme.LabelText)
	dc.DrawStringAnchored(text, cx, top+rh/2, 0.5, 0.5)
}
