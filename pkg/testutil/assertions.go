package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/edumap/pkg/model"
)

// AssertNodeCount verifies the expected number of nodes.
func AssertNodeCount(t *testing.T, snap model.Snapshot, expected int) {
	t.Helper()
	if len(snap.Nodes) != expected {
		t.Errorf("expected %d nodes, got %d", expected, len(snap.Nodes))
	}
}

// AssertValid verifies the snapshot passes model validation and has no
// dangling edges.
func AssertValid(t *testing.T, snap model.Snapshot) {
	t.Helper()
	if err := snap.Validate(); err != nil {
		t.Errorf("snapshot invalid: %v", err)
	}
	if d := snap.DanglingEdges(); len(d) > 0 {
		t.Errorf("snapshot has %d dangling edges: %v", len(d), d)
	}
}

// AssertEdgeExists verifies an edge from -> to is present.
func AssertEdgeExists(t *testing.T, snap model.Snapshot, from, to string) {
	t.Helper()
	for _, e := range snap.Edges {
		if e.From == from && e.To == to {
			return
		}
	}
	t.Errorf("expected edge %s -> %s not found", from, to)
}

// HasCycle reports whether the snapshot's edges contain a directed cycle.
func HasCycle(snap model.Snapshot) bool {
	adj := make(map[string][]string)
	for _, e := range snap.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	const (
		unvisited = iota
		inPath
		done
	)
	state := make(map[string]int)
	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case inPath:
			return true
		case done:
			return false
		}
		state[id] = inPath
		for _, next := range adj[id] {
			if visit(next) {
				return true
			}
		}
		state[id] = done
		return false
	}
	for _, n := range snap.Nodes {
		if visit(n.ID) {
			return true
		}
	}
	return false
}

// AssertNoCycles fails when the snapshot contains a cycle.
func AssertNoCycles(t *testing.T, snap model.Snapshot) {
	t.Helper()
	if HasCycle(snap) {
		t.Error("expected no cycles, found one")
	}
}

// AssertHasCycle fails when the snapshot is acyclic.
func AssertHasCycle(t *testing.T, snap model.Snapshot) {
	t.Helper()
	if !HasCycle(snap) {
		t.Error("expected a cycle, found none")
	}
}

// WriteSnapshotFile writes snap as JSON to path, creating parent dirs.
func WriteSnapshotFile(t *testing.T, path string, snap model.Snapshot) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal snapshot: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}
}

// GoldenFile compares output against a file under testdata. Set
// GENERATE_GOLDEN to rewrite it instead.
type GoldenFile struct {
	t      *testing.T
	path   string
	update bool
}

// NewGoldenFile creates a golden file helper for dir/name.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		path:   filepath.Join(dir, name),
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the golden file path.
func (g *GoldenFile) Path() string { return g.path }

// Assert compares actual against the golden file.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()

	if g.update {
		if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(g.path, []byte(actual), 0o644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", g.path)
		return
	}

	expected, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", g.path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}
	if string(expected) == actual {
		return
	}

	exp := strings.Split(string(expected), "\n")
	act := strings.Split(actual, "\n")
	for i := 0; i < len(exp) || i < len(act); i++ {
		var e, a string
		if i < len(exp) {
			e = exp[i]
		}
		if i < len(act) {
			a = act[i]
		}
		if e != a {
			g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, e, a)
			return
		}
	}
}

// AssertJSON compares actual, marshalled as indented JSON, against the
// golden file.
func (g *GoldenFile) AssertJSON(actual any) {
	g.t.Helper()
	data, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		g.t.Fatalf("failed to marshal actual value: %v", err)
	}
	g.Assert(string(data))
}
