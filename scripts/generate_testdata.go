//go:build ignore

// generate_testdata.go writes concept-map snapshots of increasing size for
// profiling layout and rendering.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	testdata/benchmark/small.json   (50 concepts)
//	testdata/benchmark/medium.json  (200 concepts)
//	testdata/benchmark/large.json   (1000 concepts)
//
// Each file can be fed straight to `edumap render` or `edumap analyze`.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/edumap/pkg/testutil"
)

type dataset struct {
	name    string
	size    int
	density float64
}

var datasets = []dataset{
	{"small", 50, 0.08},
	{"medium", 200, 0.02},
	{"large", 1000, 0.004},
}

var topics = []string{
	"Célula", "Fotosíntesis", "Mitocondria", "ADN", "Proteína",
	"Ecosistema", "Energía", "Evolución", "Enzima", "Membrana",
}

func main() {
	outputDir := filepath.Join("testdata", "benchmark")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating %s: %v\n", outputDir, err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(ds.size)
		cfg.NodeTypes = []string{"concept", "concept", "example", "definition"}
		cfg.WithColors = true

		gen := testutil.New(cfg)
		fixture := gen.RandomDAG(ds.size, ds.density)
		snap := gen.Snapshot(fixture)
		for i := range snap.Nodes {
			snap.Nodes[i].Label = fmt.Sprintf("%s %d", topics[i%len(topics)], i)
			snap.Nodes[i].Description = fmt.Sprintf("Concepto generado %d de %d.", i+1, ds.size)
		}
		snap.Summary = fmt.Sprintf("Mapa sintético de **%d** conceptos.", ds.size)

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "encoding %s: %v\n", ds.name, err)
			os.Exit(1)
		}
		path := filepath.Join(outputDir, ds.name+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s (%d nodes, %d edges)\n", path, len(snap.Nodes), len(snap.Edges))
	}
}
