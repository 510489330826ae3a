package layout

import "math"

// Options tunes the force simulation. Zero values take the defaults below.
type Options struct {
	// Charge is the many-body strength; negative repels. Default -400.
	Charge float64
	// LinkDistance is the rest length of a link. Default 30.
	LinkDistance float64
	// LinkStrength overrides the per-link strength. Zero means
	// 1/min(degree(source), degree(target)).
	LinkStrength float64
	// VelocityDecay is the fraction of velocity lost per tick. Default 0.4.
	VelocityDecay float64
	// AlphaMin is the heat below which the simulation is settled. Default 0.001.
	AlphaMin float64
	// AlphaDecay is the per-tick cooling rate. Default 1-AlphaMin^(1/300),
	// which settles in about 300 ticks.
	AlphaDecay float64
	// NodeRadius is the visual and hit-test radius. Default 5.
	NodeRadius float64
	// Theta is the Barnes-Hut opening angle. Default 0.9.
	Theta float64
	// ScaleChargeByCount strengthens repulsion on large graphs
	// (sqrt(n/200) above 200 nodes) to keep them from collapsing.
	ScaleChargeByCount bool
	// FitPadding is the screen-space margin kept by FitView. Default 40.
	FitPadding float64
	// MinScale and MaxScale bound the zoom chosen by FitView.
	MinScale float64
	MaxScale float64
}

// DefaultOptions returns the defaults used when a field is left zero.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Charge == 0 {
		o.Charge = -400
	}
	if o.LinkDistance <= 0 {
		o.LinkDistance = 30
	}
	if o.VelocityDecay <= 0 || o.VelocityDecay >= 1 {
		o.VelocityDecay = 0.4
	}
	if o.AlphaMin <= 0 {
		o.AlphaMin = 0.001
	}
	if o.AlphaDecay <= 0 || o.AlphaDecay >= 1 {
		o.AlphaDecay = 1 - math.Pow(o.AlphaMin, 1.0/300)
	}
	if o.NodeRadius <= 0 {
		o.NodeRadius = 5
	}
	if o.Theta <= 0 {
		o.Theta = 0.9
	}
	if o.FitPadding < 0 {
		o.FitPadding = 0
	} else if o.FitPadding == 0 {
		o.FitPadding = 40
	}
	if o.MinScale <= 0 {
		o.MinScale = 0.05
	}
	if o.MaxScale <= 0 {
		o.MaxScale = 4
	}
	if o.MaxScale < o.MinScale {
		o.MaxScale = o.MinScale
	}
	return o
}
