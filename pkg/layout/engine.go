// Package layout computes 2D node positions with a force-directed
// simulation and maps them to a viewport.
//
// The simulation follows the usual d3-force model: a many-body charge force
// (approximated with a Barnes-Hut quadtree), spring links, and a centering
// force, integrated with velocity decay while a global alpha cools toward
// zero. Positions live in world coordinates centered on the origin; View
// maps them to screen pixels.
package layout

import (
	"errors"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/edumap/pkg/debug"
	"github.com/vanderheijden86/edumap/pkg/metrics"
	"github.com/vanderheijden86/edumap/pkg/model"
)

// ErrNotReady is returned by FitView before there is anything to fit.
var ErrNotReady = errors.New("layout: not ready")

const (
	initialRadius = 10.0
	largeGraph    = 200
)

var initialAngle = math.Pi * (3 - math.Sqrt(5))

// Point is a node position in world coordinates.
type Point struct {
	NodeID string
	X, Y   float64
}

type body struct {
	id     string
	x, y   float64
	vx, vy float64
}

func (b *body) Coord2() r2.Vec { return r2.Vec{X: b.x, Y: b.y} }
func (b *body) Mass() float64  { return 1 }

type link struct {
	source, target int
	strength       float64
	bias           float64
}

// Engine is safe for concurrent use. Tick is expected to be driven by a
// single loop; queries may come from any goroutine.
type Engine struct {
	mu       sync.Mutex
	opts     Options
	bodies   []*body
	index    map[string]int
	links    []link
	alpha    float64
	settled  bool
	view     View
	onSettle func()
}

// New returns an empty engine.
func New(opts Options) *Engine {
	return &Engine{
		opts:    opts.withDefaults(),
		index:   make(map[string]int),
		settled: true,
		view:    View{Scale: 1},
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// OnSettle registers fn to run once each time the simulation cools down.
// fn runs on the goroutine calling Tick, outside the engine lock.
func (e *Engine) OnSettle(fn func()) {
	e.mu.Lock()
	e.onSettle = fn
	e.mu.Unlock()
}

// SetData rebuilds the simulation for a new node and edge set. Surviving
// ids keep their position and velocity; new ids are seeded on a spiral
// around the centroid of the survivors. Edges whose endpoints are not in
// nodes are ignored. The simulation is reheated.
func (e *Engine) SetData(nodes []model.Node, edges []model.Edge) {
	defer debug.LogEnterExit("layout.SetData")()

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := make(map[string]*body, len(e.bodies))
	var cx, cy float64
	for _, b := range e.bodies {
		prev[b.id] = b
	}

	bodies := make([]*body, 0, len(nodes))
	index := make(map[string]int, len(nodes))
	var kept int
	for _, n := range nodes {
		if _, dup := index[n.ID]; dup {
			continue
		}
		if old, ok := prev[n.ID]; ok {
			b := *old
			bodies = append(bodies, &b)
			cx += b.x
			cy += b.y
			kept++
		} else {
			bodies = append(bodies, &body{id: n.ID, x: math.NaN()})
		}
		index[n.ID] = len(bodies) - 1
	}
	if kept > 0 {
		cx /= float64(kept)
		cy /= float64(kept)
	}
	for i, b := range bodies {
		if !math.IsNaN(b.x) {
			continue
		}
		r := initialRadius * math.Sqrt(0.5+float64(i))
		a := float64(i) * initialAngle
		b.x = cx + r*math.Cos(a)
		b.y = cy + r*math.Sin(a)
	}

	count := make([]int, len(bodies))
	links := make([]link, 0, len(edges))
	for _, ed := range edges {
		s, ok1 := index[ed.From]
		t, ok2 := index[ed.To]
		if !ok1 || !ok2 {
			continue
		}
		count[s]++
		count[t]++
		links = append(links, link{source: s, target: t})
	}
	for i := range links {
		l := &links[i]
		cs, ct := float64(count[l.source]), float64(count[l.target])
		l.bias = cs / (cs + ct)
		if e.opts.LinkStrength > 0 {
			l.strength = e.opts.LinkStrength
		} else {
			l.strength = 1 / math.Min(cs, ct)
		}
	}

	e.bodies = bodies
	e.index = index
	e.links = links
	e.alpha = 1
	e.settled = false
}

// Reheat restarts a cooled simulation without changing the data.
func (e *Engine) Reheat() {
	e.mu.Lock()
	e.alpha = 1
	e.settled = false
	e.mu.Unlock()
}

// Alpha returns the current heat.
func (e *Engine) Alpha() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alpha
}

// Settled reports whether the simulation has cooled below AlphaMin.
func (e *Engine) Settled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settled
}

// Len returns the number of simulated nodes.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.bodies)
}

// Tick advances the simulation one step and reports whether it is still
// hot. A settled engine does nothing.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	if e.settled {
		e.mu.Unlock()
		return false
	}
	stop := metrics.Timer(metrics.LayoutTick)

	e.alpha += (0 - e.alpha) * e.opts.AlphaDecay
	e.applyLinks()
	e.applyCharge()
	e.applyCenter()

	keep := 1 - e.opts.VelocityDecay
	for _, b := range e.bodies {
		b.vx *= keep
		b.vy *= keep
		b.x += b.vx
		b.y += b.vy
	}

	var fire func()
	if e.alpha < e.opts.AlphaMin {
		e.settled = true
		fire = e.onSettle
	}
	hot := !e.settled
	e.mu.Unlock()
	stop()

	if fire != nil {
		fire()
	}
	return hot
}

// Run ticks until the simulation settles or max ticks have run, whichever
// comes first, and returns the number of ticks taken.
func (e *Engine) Run(max int) int {
	n := 0
	for n < max && e.Tick() {
		n++
	}
	return n
}

func (e *Engine) applyLinks() {
	for _, l := range e.links {
		s, t := e.bodies[l.source], e.bodies[l.target]
		x := t.x + t.vx - s.x - s.vx
		y := t.y + t.vy - s.y - s.vy
		if x == 0 && y == 0 {
			x, y = jiggle(l.source+l.target), jiggle(l.target)
		}
		d := math.Hypot(x, y)
		k := (d - e.opts.LinkDistance) / d * e.alpha * l.strength
		x *= k
		y *= k
		t.vx -= x * l.bias
		t.vy -= y * l.bias
		s.vx += x * (1 - l.bias)
		s.vy += y * (1 - l.bias)
	}
}

func (e *Engine) applyCharge() {
	n := len(e.bodies)
	if n < 2 {
		return
	}
	strength := e.opts.Charge
	if e.opts.ScaleChargeByCount && n > largeGraph {
		strength *= math.Sqrt(float64(n) / largeGraph)
	}

	separateCoincident(e.bodies)
	ps := make([]barneshut.Particle2, n)
	for i, b := range e.bodies {
		ps[i] = b
	}
	plane := &barneshut.Plane{Particles: ps}
	theta := e.opts.Theta
	if err := plane.Reset(); err != nil {
		// Degenerate extent; fall back to the exact pairwise sum.
		debug.Log("layout: barnes-hut reset failed (%v), using exact charge", err)
		theta = 0
	}

	scale := strength * e.alpha
	for _, b := range e.bodies {
		f := plane.ForceOn(b, theta, inverseSquare)
		b.vx += f.X * scale
		b.vy += f.Y * scale
	}
}

// inverseSquare returns v·m2/|v|², the d3 many-body kernel for a unit-mass
// body. Distances under 1 are softened to avoid blowups.
func inverseSquare(_, _ barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
	d2 := r2.Norm2(v)
	if d2 == 0 {
		return r2.Vec{}
	}
	if d2 < 1 {
		d2 = math.Sqrt(d2)
	}
	return r2.Scale(m2/d2, v)
}

func (e *Engine) applyCenter() {
	n := len(e.bodies)
	if n == 0 {
		return
	}
	var sx, sy float64
	for _, b := range e.bodies {
		sx += b.x
		sy += b.y
	}
	sx /= float64(n)
	sy /= float64(n)
	for _, b := range e.bodies {
		b.x -= sx
		b.y -= sy
	}
}

// separateCoincident nudges bodies that share a position so the quadtree
// can tell them apart.
func separateCoincident(bodies []*body) {
	seen := make(map[r2.Vec]struct{}, len(bodies))
	for i, b := range bodies {
		p := r2.Vec{X: b.x, Y: b.y}
		for try := 0; try < 64; try++ {
			if _, dup := seen[p]; !dup {
				break
			}
			p.X = nudge(p.X, jiggle(i))
			p.Y = nudge(p.Y, jiggle(i+1))
		}
		b.x, b.y = p.X, p.Y
		seen[p] = struct{}{}
	}
}

func nudge(v, d float64) float64 {
	if n := v + d; n != v {
		return n
	}
	return math.Nextafter(v, math.Inf(1))
}

// jiggle is a small deterministic nonzero offset.
func jiggle(i int) float64 {
	return (float64(i%7) + 1) * 1e-6
}

// Positions returns every node position in input order.
func (e *Engine) Positions() []Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Point, len(e.bodies))
	for i, b := range e.bodies {
		out[i] = Point{NodeID: b.id, X: b.x, Y: b.y}
	}
	return out
}

// Position returns the world position of id.
func (e *Engine) Position(id string) (Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[id]
	if !ok {
		return Point{}, false
	}
	b := e.bodies[i]
	return Point{NodeID: id, X: b.x, Y: b.y}, true
}

// SetPosition pins id to (x, y) and zeroes its velocity.
func (e *Engine) SetPosition(id string, x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[id]
	if !ok {
		return false
	}
	b := e.bodies[i]
	b.x, b.y, b.vx, b.vy = x, y, 0, 0
	return true
}

// HitTest returns the node nearest to the world point (x, y) whose circle
// contains it.
func (e *Engine) HitTest(x, y float64) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r2max := e.opts.NodeRadius * e.opts.NodeRadius
	best, bestD := "", math.Inf(1)
	for _, b := range e.bodies {
		dx, dy := b.x-x, b.y-y
		d := dx*dx + dy*dy
		if d <= r2max && d < bestD {
			best, bestD = b.id, d
		}
	}
	return best, best != ""
}

// HitTestScreen is HitTest for a point in screen pixels under the current
// view.
func (e *Engine) HitTestScreen(sx, sy float64) (string, bool) {
	x, y := e.View().ScreenToWorld(sx, sy)
	return e.HitTest(x, y)
}
