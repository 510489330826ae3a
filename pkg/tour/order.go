// Package tour narrates a graph node by node in a deterministic
// breadth-first order.
package tour

import (
	"github.com/vanderheijden86/edumap/pkg/metrics"
	"github.com/vanderheijden86/edumap/pkg/model"
)

// NoDescription is spoken in place of an empty description.
const NoDescription = "Sin descripción."

// Order returns every node exactly once: a breadth-first walk from the
// nodes without incoming edges (in list order, or the first node when every
// node has one), following out-edges in edge-list order, followed by any
// node the walk did not reach, in list order. Edges to unknown nodes are
// ignored; edges from unknown nodes still count as incoming.
func Order(snap model.Snapshot) []model.Node {
	defer metrics.Timer(metrics.TourOrder)()
	if len(snap.Nodes) == 0 {
		return nil
	}

	index := make(map[string]int, len(snap.Nodes))
	for i, n := range snap.Nodes {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}

	indegree := make([]int, len(snap.Nodes))
	out := make([][]int, len(snap.Nodes))
	for _, e := range snap.Edges {
		to, ok := index[e.To]
		if !ok {
			continue
		}
		// An edge from an unknown node still makes its target a non-root.
		indegree[to]++
		if from, ok := index[e.From]; ok {
			out[from] = append(out[from], to)
		}
	}

	var queue []int
	for i, n := range snap.Nodes {
		if index[n.ID] == i && indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	if len(queue) == 0 {
		queue = append(queue, 0)
	}

	visited := make([]bool, len(snap.Nodes))
	order := make([]model.Node, 0, len(index))
	for _, i := range queue {
		visited[i] = true
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, snap.Nodes[i])
		for _, j := range out[i] {
			if !visited[j] {
				visited[j] = true
				queue = append(queue, j)
			}
		}
	}

	for i, n := range snap.Nodes {
		if index[n.ID] == i && !visited[i] {
			order = append(order, n)
		}
	}
	return order
}

// Narration is the text spoken for a node.
func Narration(n model.Node) string {
	desc := n.Description
	if desc == "" {
		desc = NoDescription
	}
	return n.Label + ". " + desc
}
