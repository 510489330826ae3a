package layout

import (
	"math"

	"github.com/vanderheijden86/edumap/pkg/debug"
	"github.com/vanderheijden86/edumap/pkg/metrics"
)

// View maps world coordinates to screen pixels:
//
//	screen = world*Scale + (TX, TY)
type View struct {
	Scale  float64
	TX, TY float64
}

// WorldToScreen maps a world point to pixels.
func (v View) WorldToScreen(x, y float64) (float64, float64) {
	return x*v.Scale + v.TX, y*v.Scale + v.TY
}

// ScreenToWorld maps pixels back to a world point.
func (v View) ScreenToWorld(sx, sy float64) (float64, float64) {
	s := v.Scale
	if s == 0 {
		s = 1
	}
	return (sx - v.TX) / s, (sy - v.TY) / s
}

// View returns the current view transform.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// SetView replaces the view transform, e.g. after a user pan or zoom.
func (e *Engine) SetView(v View) {
	if v.Scale <= 0 {
		v.Scale = 1
	}
	e.mu.Lock()
	e.view = v
	e.mu.Unlock()
}

// WorldToScreen maps through the current view.
func (e *Engine) WorldToScreen(x, y float64) (float64, float64) {
	return e.View().WorldToScreen(x, y)
}

// ScreenToWorld maps through the current view.
func (e *Engine) ScreenToWorld(sx, sy float64) (float64, float64) {
	return e.View().ScreenToWorld(sx, sy)
}

// FitView picks a view that shows every node inside a w×h viewport with
// FitPadding on each side, and applies it. It returns ErrNotReady when
// there are no nodes or the viewport has no area; the view is then left
// unchanged.
func (e *Engine) FitView(w, h float64) error {
	defer metrics.Timer(metrics.LayoutFit)()

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.bodies) == 0 || w <= 0 || h <= 0 {
		return ErrNotReady
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, b := range e.bodies {
		minX = math.Min(minX, b.x)
		minY = math.Min(minY, b.y)
		maxX = math.Max(maxX, b.x)
		maxY = math.Max(maxY, b.y)
	}
	r := e.opts.NodeRadius
	minX, minY, maxX, maxY = minX-r, minY-r, maxX+r, maxY+r

	pad := e.opts.FitPadding
	aw, ah := w-2*pad, h-2*pad
	if aw <= 0 || ah <= 0 {
		aw, ah = w, h
	}
	scale := math.Min(aw/(maxX-minX), ah/(maxY-minY))
	scale = math.Max(e.opts.MinScale, math.Min(e.opts.MaxScale, scale))

	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	e.view = View{
		Scale: scale,
		TX:    w/2 - cx*scale,
		TY:    h/2 - cy*scale,
	}
	return nil
}

// TryFitView calls FitView and swallows ErrNotReady, keeping the previous
// view. It reports whether the view changed.
func (e *Engine) TryFitView(w, h float64) bool {
	if err := e.FitView(w, h); err != nil {
		debug.Log("layout: fit view skipped: %v", err)
		return false
	}
	return true
}
