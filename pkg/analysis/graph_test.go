package analysis_test

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/edumap/pkg/analysis"
	"github.com/vanderheijden86/edumap/pkg/model"
	"github.com/vanderheijden86/edumap/pkg/testutil"
)

func snapshot(edges [][2]string, ids ...string) model.Snapshot {
	var s model.Snapshot
	for _, id := range ids {
		s.Nodes = append(s.Nodes, model.Node{ID: id, Label: "L" + id})
	}
	for _, e := range edges {
		s.Edges = append(s.Edges, model.Edge{From: e[0], To: e[1]})
	}
	return s
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// TestAnalyzeEmpty ensures Analyze doesn't panic on an empty snapshot.
// gonum's PageRank panics on zero-length matrices.
func TestAnalyzeEmpty(t *testing.T) {
	stats := analysis.NewAnalyzer(model.Snapshot{}).Analyze()
	if len(stats.InDegree) != 0 || len(stats.PageRank) != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
	if stats.HasCycles() {
		t.Fatal("empty graph has no cycles")
	}
}

func TestDegreeCentralityMatchesBackend(t *testing.T) {
	// a -> b, a -> c, b -> c
	snap := snapshot([][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}}, "a", "b", "c")
	stats := analysis.NewAnalyzer(snap).Analyze()

	wantIn := map[string]float64{"La": 0, "Lb": 0.5, "Lc": 1}
	wantOut := map[string]float64{"La": 1, "Lb": 0.5, "Lc": 0}
	for k, v := range wantIn {
		if !approx(stats.InDegree[k], v) {
			t.Errorf("in[%s] = %v, want %v", k, stats.InDegree[k], v)
		}
	}
	for k, v := range wantOut {
		if !approx(stats.OutDegree[k], v) {
			t.Errorf("out[%s] = %v, want %v", k, stats.OutDegree[k], v)
		}
	}
	if !approx(stats.Density, 0.5) {
		t.Errorf("density = %v, want 0.5", stats.Density)
	}
}

func TestSingleNodeCentralityIsOne(t *testing.T) {
	stats := analysis.NewAnalyzer(snapshot(nil, "solo")).Analyze()
	if stats.InDegree["Lsolo"] != 1 || stats.OutDegree["Lsolo"] != 1 {
		t.Fatalf("single node centrality = %v/%v, want 1/1", stats.InDegree["Lsolo"], stats.OutDegree["Lsolo"])
	}
}

func TestParallelAndDanglingEdgesIgnored(t *testing.T) {
	snap := snapshot([][2]string{{"a", "b"}, {"a", "b"}, {"a", "ghost"}}, "a", "b")
	stats := analysis.NewAnalyzer(snap).Analyze()
	if stats.EdgeCount != 1 {
		t.Fatalf("edge count = %d, want 1", stats.EdgeCount)
	}
	if stats.OutDegree["La"] != 1 {
		t.Fatalf("out[a] = %v, want 1", stats.OutDegree["La"])
	}
}

func TestTopologicalOrderChain(t *testing.T) {
	snap := snapshot([][2]string{{"b", "c"}, {"a", "b"}}, "a", "b", "c")
	stats := analysis.NewAnalyzer(snap).Analyze()
	want := []string{"a", "b", "c"}
	if len(stats.TopologicalOrder) != len(want) {
		t.Fatalf("order = %v, want %v", stats.TopologicalOrder, want)
	}
	for i := range want {
		if stats.TopologicalOrder[i] != want[i] {
			t.Fatalf("order = %v, want %v", stats.TopologicalOrder, want)
		}
	}
	if len(stats.Roots) != 1 || stats.Roots[0] != "a" {
		t.Errorf("roots = %v, want [a]", stats.Roots)
	}
	if len(stats.Leaves) != 1 || stats.Leaves[0] != "c" {
		t.Errorf("leaves = %v, want [c]", stats.Leaves)
	}
}

func TestCyclesReported(t *testing.T) {
	snap := snapshot([][2]string{{"a", "b"}, {"b", "a"}, {"c", "c"}}, "a", "b", "c")
	stats := analysis.NewAnalyzer(snap).Analyze()
	if !stats.HasCycles() {
		t.Fatal("expected cycles")
	}
	if stats.TopologicalOrder != nil {
		t.Errorf("cyclic graph should have no order, got %v", stats.TopologicalOrder)
	}
	if len(stats.Cycles) != 2 {
		t.Fatalf("cycles = %v, want two", stats.Cycles)
	}
	if got := stats.Cycles[0]; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("first cycle = %v, want [a b]", got)
	}
	if got := stats.Cycles[1]; len(got) != 1 || got[0] != "c" {
		t.Errorf("self loop = %v, want [c]", got)
	}
	// A self loop counts toward both degrees.
	if !approx(stats.InDegree["Lc"], 0.5) || !approx(stats.OutDegree["Lc"], 0.5) {
		t.Errorf("self loop degree = %v/%v", stats.InDegree["Lc"], stats.OutDegree["Lc"])
	}
}

func TestPageRankFavoursSink(t *testing.T) {
	snap := snapshot([][2]string{{"a", "hub"}, {"b", "hub"}, {"c", "hub"}}, "a", "b", "c", "hub")
	stats := analysis.NewAnalyzer(snap).Analyze()
	top := analysis.Ranked(stats.PageRank, 1)
	if len(top) != 1 || top[0].Key != "hub" {
		t.Fatalf("top pagerank = %v, want hub", top)
	}
}

func TestRankedTieBreak(t *testing.T) {
	got := analysis.Ranked(map[string]float64{"b": 1, "a": 1, "c": 2}, 0)
	want := []string{"c", "a", "b"}
	for i, s := range got {
		if s.Key != want[i] {
			t.Fatalf("ranked = %v, want keys %v", got, want)
		}
	}
}

func TestDegreeBoundsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-e]{1,2}`), 1, 12, rapid.ID[string]).Draw(t, "ids")
		var edges [][2]string
		n := rapid.IntRange(0, 30).Draw(t, "edges")
		for i := 0; i < n; i++ {
			from := rapid.SampledFrom(ids).Draw(t, "from")
			to := rapid.SampledFrom(ids).Draw(t, "to")
			edges = append(edges, [2]string{from, to})
		}
		snap := snapshot(edges, ids...)
		stats := analysis.NewAnalyzer(snap).Analyze()

		if stats.NodeCount != len(ids) {
			t.Fatalf("node count = %d, want %d", stats.NodeCount, len(ids))
		}
		for _, v := range stats.InDegree {
			if v < 0 || v > 1+1e-9 {
				t.Fatalf("in degree %v out of [0,1]", v)
			}
		}
		if !stats.HasCycles() && len(stats.TopologicalOrder) != len(ids) {
			t.Fatalf("acyclic order covers %d of %d nodes", len(stats.TopologicalOrder), len(ids))
		}
		pos := make(map[string]int, len(stats.TopologicalOrder))
		for i, id := range stats.TopologicalOrder {
			pos[id] = i
		}
		if !stats.HasCycles() {
			for _, e := range edges {
				if pos[e[0]] >= pos[e[1]] {
					t.Fatalf("edge %v violates order %v", e, stats.TopologicalOrder)
				}
			}
		}
	})
}

func TestGeneratedTopologies(t *testing.T) {
	g := testutil.NewDefault()

	tree := analysis.NewAnalyzer(g.Snapshot(g.Tree(2, 2))).Analyze()
	if len(tree.Roots) != 1 || tree.Roots[0] != "n0" {
		t.Errorf("tree roots = %v, want [n0]", tree.Roots)
	}
	if len(tree.Leaves) != 4 {
		t.Errorf("tree leaves = %v, want 4", tree.Leaves)
	}
	if len(tree.TopologicalOrder) != 7 || tree.TopologicalOrder[0] != "n0" {
		t.Errorf("tree order = %v", tree.TopologicalOrder)
	}

	ring := analysis.NewAnalyzer(g.Snapshot(g.Cycle(4))).Analyze()
	if len(ring.Cycles) != 1 || len(ring.Cycles[0]) != 4 {
		t.Errorf("ring cycles = %v, want one of length 4", ring.Cycles)
	}

	parts := analysis.NewAnalyzer(g.Snapshot(g.Disconnected(3, 2))).Analyze()
	if len(parts.Roots) != 3 || len(parts.Leaves) != 3 {
		t.Errorf("components roots=%v leaves=%v", parts.Roots, parts.Leaves)
	}
}

func TestRandomDAGHasOrder(t *testing.T) {
	g := testutil.NewDefault()
	for i := 0; i < 5; i++ {
		snap := g.Snapshot(g.RandomDAG(15, 0.25))
		stats := analysis.NewAnalyzer(snap).Analyze()
		if stats.HasCycles() {
			t.Fatalf("random DAG reported cycles %v", stats.Cycles)
		}
		pos := make(map[string]int, len(stats.TopologicalOrder))
		for j, id := range stats.TopologicalOrder {
			pos[id] = j
		}
		for _, e := range snap.Edges {
			if pos[e.From] >= pos[e.To] {
				t.Fatalf("edge %s -> %s violates order %v", e.From, e.To, stats.TopologicalOrder)
			}
		}
	}
}
