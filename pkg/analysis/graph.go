// Package analysis computes structural metrics over a graph snapshot.
//
// Degree centrality follows the backend's /analyze_graph endpoint so the
// results can stand in for it when the backend is unreachable.
package analysis

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/edumap/pkg/debug"
	"github.com/vanderheijden86/edumap/pkg/metrics"
	"github.com/vanderheijden86/edumap/pkg/model"
)

const (
	pageRankDamping   = 0.85
	pageRankTolerance = 1e-6
)

// Stats is the result of analysing one snapshot.
//
// InDegree and OutDegree are keyed by node label; the other maps and slices
// are keyed by node id.
type Stats struct {
	InDegree         map[string]float64 `json:"in_degree_centrality"`
	OutDegree        map[string]float64 `json:"out_degree_centrality"`
	PageRank         map[string]float64 `json:"pagerank,omitempty"`
	TopologicalOrder []string           `json:"topological_order,omitempty"`
	Cycles           [][]string         `json:"cycles,omitempty"`
	Roots            []string           `json:"roots,omitempty"`
	Leaves           []string           `json:"leaves,omitempty"`
	Density          float64            `json:"density"`
	NodeCount        int                `json:"node_count"`
	EdgeCount        int                `json:"edge_count"`
}

// HasCycles reports whether the graph contains at least one directed cycle.
func (s *Stats) HasCycles() bool { return len(s.Cycles) > 0 }

type arc struct{ from, to string }

// Analyzer holds the gonum view of a snapshot.
type Analyzer struct {
	g        *simple.DirectedGraph
	idToNode map[string]int64
	nodeToID map[int64]string
	order    []string
	labels   map[string]string
	arcs     []arc
	loops    map[string]bool
}

// NewAnalyzer builds the directed graph for snap. Edges whose endpoints are
// not both present are ignored, parallel edges collapse into one and a
// repeated node id keeps its first position but takes the later label.
func NewAnalyzer(snap model.Snapshot) *Analyzer {
	g := simple.NewDirectedGraph()
	a := &Analyzer{
		g:        g,
		idToNode: make(map[string]int64, len(snap.Nodes)),
		nodeToID: make(map[int64]string, len(snap.Nodes)),
		labels:   make(map[string]string, len(snap.Nodes)),
		loops:    make(map[string]bool),
	}

	for _, n := range snap.Nodes {
		a.labels[n.ID] = n.Label
		if _, dup := a.idToNode[n.ID]; dup {
			continue
		}
		gn := g.NewNode()
		g.AddNode(gn)
		a.idToNode[n.ID] = gn.ID()
		a.nodeToID[gn.ID()] = n.ID
		a.order = append(a.order, n.ID)
	}

	seen := make(map[arc]bool, len(snap.Edges))
	for _, e := range snap.Edges {
		u, okU := a.idToNode[e.From]
		v, okV := a.idToNode[e.To]
		if !okU || !okV {
			continue
		}
		k := arc{e.From, e.To}
		if seen[k] {
			continue
		}
		seen[k] = true
		a.arcs = append(a.arcs, k)

		// simple graphs reject self edges; loops are tracked on the side.
		if u == v {
			a.loops[e.From] = true
			continue
		}
		g.SetEdge(g.NewEdge(g.Node(u), g.Node(v)))
	}
	return a
}

// Len returns the number of distinct nodes.
func (a *Analyzer) Len() int { return len(a.order) }

// Analyze computes every metric.
func (a *Analyzer) Analyze() *Stats {
	defer metrics.Timer(metrics.Analysis)()

	stats := &Stats{
		InDegree:  make(map[string]float64, len(a.order)),
		OutDegree: make(map[string]float64, len(a.order)),
		NodeCount: len(a.order),
		EdgeCount: len(a.arcs),
	}
	a.computeDegree(stats)
	a.computeStructure(stats)
	if len(a.order) > 0 {
		pr := network.PageRank(a.g, pageRankDamping, pageRankTolerance)
		stats.PageRank = make(map[string]float64, len(pr))
		for nid, score := range pr {
			stats.PageRank[a.nodeToID[nid]] = score
		}
	}
	debug.Log("analysis: %d nodes, %d edges, %d cycles", stats.NodeCount, stats.EdgeCount, len(stats.Cycles))
	return stats
}

// computeDegree fills the label keyed centralities. A graph of one node
// reports 1 for it, as networkx does.
func (a *Analyzer) computeDegree(stats *Stats) {
	in := make(map[string]int, len(a.order))
	out := make(map[string]int, len(a.order))
	for _, e := range a.arcs {
		out[e.from]++
		in[e.to]++
	}

	n := len(a.order)
	scale := 1.0
	if n > 1 {
		scale = 1 / float64(n-1)
	}
	for _, id := range a.order {
		label := a.labels[id]
		if n <= 1 {
			stats.InDegree[label] = 1
			stats.OutDegree[label] = 1
			continue
		}
		stats.InDegree[label] = float64(in[id]) * scale
		stats.OutDegree[label] = float64(out[id]) * scale
	}
	if n > 1 {
		stats.Density = float64(len(a.arcs)) / float64(n*(n-1))
	}
}

func (a *Analyzer) computeStructure(stats *Stats) {
	for _, id := range a.order {
		nid := a.idToNode[id]
		if a.g.To(nid).Len() == 0 {
			stats.Roots = append(stats.Roots, id)
		}
		if a.g.From(nid).Len() == 0 {
			stats.Leaves = append(stats.Leaves, id)
		}
	}

	sorted, err := topo.SortStabilized(a.g, a.byPosition)
	if err == nil {
		for _, n := range sorted {
			stats.TopologicalOrder = append(stats.TopologicalOrder, a.nodeToID[n.ID()])
		}
	} else {
		var un topo.Unorderable
		if errors.As(err, &un) {
			for _, comp := range un {
				if len(comp) < 2 {
					continue
				}
				stats.Cycles = append(stats.Cycles, a.componentIDs(comp))
			}
		}
	}

	for _, id := range a.order {
		if a.loops[id] {
			stats.Cycles = append(stats.Cycles, []string{id})
		}
	}
	if len(stats.Cycles) > 0 {
		stats.TopologicalOrder = nil
	}
}

// byPosition orders nodes by their position in the snapshot so the sort is
// deterministic.
func (a *Analyzer) byPosition(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
}

func (a *Analyzer) componentIDs(comp []graph.Node) []string {
	ids := make([]int64, len(comp))
	for i, n := range comp {
		ids[i] = n.ID()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]string, len(ids))
	for i, nid := range ids {
		out[i] = a.nodeToID[nid]
	}
	return out
}

// Score is one entry of a ranking.
type Score struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Ranked returns the n highest values of m, ties broken by key. n <= 0
// returns every entry.
func Ranked(m map[string]float64, n int) []Score {
	out := make([]Score, 0, len(m))
	for k, v := range m {
		out = append(out, Score{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
