package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the collectors served on --metrics-addr.
var Registry = prometheus.NewRegistry()

var (
	// SyncMessages counts inbound live-sync frames by outcome
	// (applied, malformed, ignored, stale).
	SyncMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edumap",
		Subsystem: "sync",
		Name:      "messages_total",
		Help:      "Inbound live-sync messages by outcome.",
	}, []string{"outcome"})

	// SyncConnects counts connection attempts by result.
	SyncConnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edumap",
		Subsystem: "sync",
		Name:      "connects_total",
		Help:      "Live-sync dial attempts by result.",
	}, []string{"result"})

	// SnapshotReplaces counts wholesale replaces by source (fetch, push, mutation, file).
	SnapshotReplaces = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edumap",
		Subsystem: "graph",
		Name:      "replaces_total",
		Help:      "Snapshot replaces applied to the graph store by source.",
	}, []string{"source"})

	// DroppedComments counts optimistic comments discarded on replace.
	DroppedComments = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "edumap",
		Subsystem: "graph",
		Name:      "dropped_optimistic_comments_total",
		Help:      "Optimistic comments discarded because the next snapshot did not contain them.",
	})
)

func init() {
	Registry.MustRegister(SyncMessages, SyncConnects, SnapshotReplaces, DroppedComments, operationSeconds)
}
