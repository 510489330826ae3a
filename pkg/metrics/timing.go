// Package metrics instruments edumap's hot paths: layout ticks, frame
// rendering, snapshot replaces, backend requests and the live-sync channel.
//
// Timings are kept in memory for `/debug/timings` and mirrored into a
// prometheus histogram on Registry. Collection is on unless EDUMAP_METRICS=0.
//
//	func (e *Engine) Tick() {
//	    defer metrics.Timer(metrics.LayoutTick)()
//	    ...
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("EDUMAP_METRICS") != "0")
}

// Enabled reports whether timings are recorded.
func Enabled() bool { return enabled.Load() }

// SetEnabled turns timing collection on or off.
func SetEnabled(e bool) { enabled.Store(e) }

var operationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "edumap",
	Name:      "operation_duration_seconds",
	Help:      "Duration of instrumented operations.",
	Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
}, []string{"op"})

// TimingMetric accumulates durations for one operation.
type TimingMetric struct {
	name     string
	observer prometheus.Observer

	count atomic.Int64
	total atomic.Int64
	max   atomic.Int64
	min   atomic.Int64 // 0 until the first sample
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name, observer: operationSeconds.WithLabelValues(name)}
}

// Record adds one sample.
func (m *TimingMetric) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.total.Add(ns)
	m.observer.Observe(d.Seconds())

	for {
		old := m.max.Load()
		if ns <= old || m.max.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.min.Load()
		if (old != 0 && ns >= old) || m.min.CompareAndSwap(old, ns) {
			break
		}
	}
}

func (m *TimingMetric) Name() string { return m.name }
func (m *TimingMetric) Count() int64 { return m.count.Load() }

// Stats returns a consistent-enough view of the samples so far.
func (m *TimingMetric) Stats() TimingStats {
	count := m.count.Load()
	total := m.total.Load()
	var avg int64
	if count > 0 {
		avg = total / count
	}
	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: ms(total),
		AvgMs:   ms(avg),
		MaxMs:   ms(m.max.Load()),
		MinMs:   ms(m.min.Load()),
	}
}

// Reset clears the in-memory samples. The prometheus histogram keeps its
// counts, since scrapers expect it to be monotonic.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.total.Store(0)
	m.max.Store(0)
	m.min.Store(0)
}

func ms(ns int64) float64 { return float64(ns) / 1e6 }

// TimingStats is the JSON shape served on /debug/timings.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer starts timing m; call the returned func to record the sample.
func Timer(m *TimingMetric) func() {
	if !Enabled() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { m.Record(time.Since(start)) }
}

var (
	SnapshotReplace = newTimingMetric("snapshot_replace")
	LayoutTick      = newTimingMetric("layout_tick")
	LayoutFit       = newTimingMetric("layout_fit")
	FrameRender     = newTimingMetric("frame_render")
	ExportPNG       = newTimingMetric("export_png")
	TourOrder       = newTimingMetric("tour_order")
	SyncDecode      = newTimingMetric("sync_decode")
	APIRequest      = newTimingMetric("api_request")
	Analysis        = newTimingMetric("analysis")
)

// AllTimingMetrics lists every operation timer.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{
		SnapshotReplace, LayoutTick, LayoutFit, FrameRender, ExportPNG,
		TourOrder, SyncDecode, APIRequest, Analysis,
	}
}

// ResetAll clears every timer.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
}

// AllTimingStats returns stats for the timers that have samples.
func AllTimingStats() []TimingStats {
	all := AllTimingMetrics()
	stats := make([]TimingStats, 0, len(all))
	for _, m := range all {
		if m.Count() > 0 {
			stats = append(stats, m.Stats())
		}
	}
	return stats
}
