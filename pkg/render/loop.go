package render

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/vanderheijden86/edumap/pkg/layout"
	"github.com/vanderheijden86/edumap/pkg/model"
)

// Frame loop defaults.
const (
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultFitDelay      = 200 * time.Millisecond
)

// FrameLoop ticks a layout engine and redraws a surface on a fixed
// interval. It fits the view a short delay after each content change and
// again whenever the simulation settles.
type FrameLoop struct {
	Engine   *layout.Engine
	Renderer *Renderer
	Surface  *Surface
	Interval time.Duration
	FitDelay time.Duration

	mu        sync.Mutex
	nodes     []model.Node
	edges     []model.Edge
	highlight string
	fitAt     time.Time
	dirty     bool
	now       func() time.Time
}

// NewFrameLoop wires a loop with default timings.
func NewFrameLoop(e *layout.Engine, r *Renderer, s *Surface) *FrameLoop {
	l := &FrameLoop{
		Engine:   e,
		Renderer: r,
		Surface:  s,
		Interval: DefaultFrameInterval,
		FitDelay: DefaultFitDelay,
		now:      time.Now,
	}
	e.OnSettle(func() { l.scheduleFit(0) })
	return l
}

// SetContent hands new graph data to the engine and schedules a fit.
func (l *FrameLoop) SetContent(snap model.Snapshot) {
	l.Engine.SetData(snap.Nodes, snap.Edges)
	l.mu.Lock()
	l.nodes = snap.Nodes
	l.edges = snap.Edges
	l.dirty = true
	l.mu.Unlock()
	l.scheduleFit(l.FitDelay)
}

// SetHighlight marks id as highlighted; "" clears it.
func (l *FrameLoop) SetHighlight(id string) {
	l.mu.Lock()
	if l.highlight != id {
		l.highlight = id
		l.dirty = true
	}
	l.mu.Unlock()
}

// Highlight returns the highlighted node id.
func (l *FrameLoop) Highlight() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.highlight
}

// SetTheme switches the renderer theme and forces a redraw.
func (l *FrameLoop) SetTheme(t Theme) {
	l.mu.Lock()
	l.Renderer.Theme = t
	l.dirty = true
	l.mu.Unlock()
}

// Invalidate forces a redraw on the next step, e.g. after a resize.
func (l *FrameLoop) Invalidate() {
	l.mu.Lock()
	l.dirty = true
	l.mu.Unlock()
}

func (l *FrameLoop) scheduleFit(after time.Duration) {
	l.mu.Lock()
	l.fitAt = l.now().Add(after)
	l.mu.Unlock()
}

// Step runs one iteration: tick, fit if due, redraw if anything changed.
// It reports whether a frame was presented.
func (l *FrameLoop) Step() bool {
	hot := l.Engine.Tick()

	l.mu.Lock()
	fit := !l.fitAt.IsZero() && !l.now().Before(l.fitAt)
	if fit {
		l.fitAt = time.Time{}
	}
	l.mu.Unlock()

	if fit {
		w, h := l.Surface.Size()
		if l.Engine.TryFitView(float64(w), float64(h)) {
			hot = true
		}
	}

	l.mu.Lock()
	draw := hot || l.dirty
	l.dirty = false
	sc := NewScene(l.nodes, l.edges, l.Engine, l.highlight)
	r := *l.Renderer
	l.mu.Unlock()

	if !draw {
		return false
	}
	r.Draw(l.Surface, sc)
	return true
}

// Settle runs the simulation until it rests or maxTicks have run, fits the
// view and presents one frame. Headless callers use it instead of Run.
func (l *FrameLoop) Settle(maxTicks int) {
	l.Engine.Run(maxTicks)
	w, h := l.Surface.Size()
	l.Engine.TryFitView(float64(w), float64(h))
	l.mu.Lock()
	l.fitAt = time.Time{}
	l.dirty = true
	l.mu.Unlock()
	l.Step()
}

// Scene captures what the next frame would draw, for vector export.
func (l *FrameLoop) Scene() Scene {
	l.mu.Lock()
	defer l.mu.Unlock()
	return NewScene(l.nodes, l.edges, l.Engine, l.highlight)
}

// ExportSVG writes the current scene as SVG at the surface size.
func (l *FrameLoop) ExportSVG(out io.Writer) error {
	l.mu.Lock()
	sc := NewScene(l.nodes, l.edges, l.Engine, l.highlight)
	r := *l.Renderer
	empty := len(l.nodes) == 0
	l.mu.Unlock()
	if empty {
		return ErrNoFrame
	}
	w, h := l.Surface.Size()
	return r.ExportSVG(out, sc, w, h)
}

// Theme returns the renderer's current theme.
func (l *FrameLoop) Theme() Theme {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Renderer.Theme
}

// Run calls Step every Interval until ctx is done.
func (l *FrameLoop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Step()
		}
	}
}
