// Package testutil builds deterministic graph snapshots for tests.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/vanderheijden86/edumap/pkg/model"
)

// Fixture is an index-based graph description. Properties record what the
// generator guarantees so tests can assert against them.
type Fixture struct {
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
	Edges       [][2]int `json:"edges"` // [from_idx, to_idx]
	HasCycles   bool     `json:"has_cycles,omitempty"`
	Connected   bool     `json:"connected,omitempty"`
}

// Config controls snapshot generation.
type Config struct {
	Seed       int64    // 0 picks a fixed seed
	IDPrefix   string   // default "n"
	NodeTypes  []string // cycled across nodes; default concept
	EdgeLabel  string   // default "relacionado con"
	WithColors bool
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() Config {
	return Config{
		Seed:      42,
		IDPrefix:  "n",
		NodeTypes: []string{"concept"},
		EdgeLabel: "relacionado con",
	}
}

// Generator turns fixtures into snapshots.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg Config) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "n"
	}
	if len(cfg.NodeTypes) == 0 {
		cfg.NodeTypes = []string{"concept"}
	}
	if cfg.EdgeLabel == "" {
		cfg.EdgeLabel = "relacionado con"
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator { return New(DefaultConfig()) }

// NodeID returns the id the generator assigns to index i.
func (g *Generator) NodeID(i int) string {
	return fmt.Sprintf("%s%d", g.cfg.IDPrefix, i)
}

var palette = []string{"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f"}

// Snapshot materialises a fixture.
func (g *Generator) Snapshot(f Fixture) model.Snapshot {
	snap := model.Snapshot{
		Nodes:   make([]model.Node, len(f.Labels)),
		Edges:   make([]model.Edge, 0, len(f.Edges)),
		Summary: f.Description,
	}
	for i, label := range f.Labels {
		n := model.Node{
			ID:       g.NodeID(i),
			Label:    label,
			Type:     g.cfg.NodeTypes[i%len(g.cfg.NodeTypes)],
			Comments: []model.Comment{},
		}
		if g.cfg.WithColors {
			n.Color = palette[i%len(palette)]
		}
		snap.Nodes[i] = n
	}
	for _, e := range f.Edges {
		snap.Edges = append(snap.Edges, model.Edge{
			From:  g.NodeID(e[0]),
			To:    g.NodeID(e[1]),
			Label: g.cfg.EdgeLabel,
		})
	}
	return snap
}

func labels(size int, format string) []string {
	out := make([]string, size)
	for i := range out {
		out[i] = fmt.Sprintf(format, i)
	}
	return out
}

// Chain creates n0 -> n1 -> ... -> n{size-1}.
func (g *Generator) Chain(size int) Fixture {
	edges := make([][2]int, 0, max(size-1, 0))
	for i := 1; i < size; i++ {
		edges = append(edges, [2]int{i - 1, i})
	}
	return Fixture{
		Description: fmt.Sprintf("Cadena de %d conceptos", size),
		Labels:      labels(size, "Concepto %d"),
		Edges:       edges,
		Connected:   true,
	}
}

// Star creates a hub (index 0) pointing at every spoke.
func (g *Generator) Star(spokes int) Fixture {
	ls := append([]string{"Centro"}, labels(spokes, "Rama %d")...)
	edges := make([][2]int, spokes)
	for i := 1; i <= spokes; i++ {
		edges[i-1] = [2]int{0, i}
	}
	return Fixture{
		Description: fmt.Sprintf("Estrella con %d ramas", spokes),
		Labels:      ls,
		Edges:       edges,
		Connected:   true,
	}
}

// Cycle creates n0 -> n1 -> ... -> n{size-1} -> n0.
func (g *Generator) Cycle(size int) Fixture {
	edges := make([][2]int, size)
	for i := 0; i < size; i++ {
		edges[i] = [2]int{i, (i + 1) % size}
	}
	return Fixture{
		Description: fmt.Sprintf("Ciclo de %d conceptos", size),
		Labels:      labels(size, "Concepto %d"),
		Edges:       edges,
		HasCycles:   size > 0,
		Connected:   true,
	}
}

// Tree creates a tree of the given depth where every inner node has
// breadth children.
func (g *Generator) Tree(depth, breadth int) Fixture {
	depth = max(depth, 1)
	breadth = max(breadth, 1)

	ls := []string{"Raíz"}
	var edges [][2]int
	level := []int{0}
	for d := 0; d < depth; d++ {
		var next []int
		for _, parent := range level {
			for b := 0; b < breadth; b++ {
				child := len(ls)
				ls = append(ls, fmt.Sprintf("Tema %d.%d", d+1, child))
				edges = append(edges, [2]int{parent, child})
				next = append(next, child)
			}
		}
		level = next
	}
	return Fixture{
		Description: fmt.Sprintf("Árbol de profundidad %d y anchura %d", depth, breadth),
		Labels:      ls,
		Edges:       edges,
		Connected:   true,
	}
}

// Disconnected creates separate chains of componentSize nodes each.
func (g *Generator) Disconnected(components, componentSize int) Fixture {
	var ls []string
	var edges [][2]int
	for c := 0; c < components; c++ {
		for i := 0; i < componentSize; i++ {
			if i > 0 {
				edges = append(edges, [2]int{len(ls) - 1, len(ls)})
			}
			ls = append(ls, fmt.Sprintf("Grupo %d · %d", c, i))
		}
	}
	return Fixture{
		Description: fmt.Sprintf("%d componentes de %d conceptos", components, componentSize),
		Labels:      ls,
		Edges:       edges,
		Connected:   components <= 1,
	}
}

// RandomDAG adds each forward edge i -> j (i < j) with probability density.
func (g *Generator) RandomDAG(size int, density float64) Fixture {
	density = min(max(density, 0), 1)
	var edges [][2]int
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			if g.rng.Float64() < density {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return Fixture{
		Description: fmt.Sprintf("Grafo aleatorio de %d conceptos (densidad %.2f)", size, density),
		Labels:      labels(size, "Concepto %d"),
		Edges:       edges,
	}
}
