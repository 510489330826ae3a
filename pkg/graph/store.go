// Package graph holds the canonical in-memory graph for the currently open
// knowledge graph. It is the single source of truth for layout, rendering
// and interaction.
//
// State is only ever replaced wholesale. The one local mutation is the
// optimistic comment append, which lives in a pending overlay until the next
// Replace decides its fate.
package graph

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/vanderheijden86/edumap/pkg/debug"
	"github.com/vanderheijden86/edumap/pkg/metrics"
	"github.com/vanderheijden86/edumap/pkg/model"
)

// ErrNodeNotFound is returned for operations on an id absent from the
// current snapshot.
var ErrNodeNotFound = errors.New("node not found")

// Source tags where a replace came from. It is informational only: every
// source is applied the same way.
type Source string

const (
	SourceFetch    Source = "fetch"
	SourcePush     Source = "push"
	SourceMutation Source = "mutation"
	SourceFile     Source = "file"
)

// PendingComment is an optimistic comment not yet confirmed by a snapshot.
type PendingComment struct {
	LocalID string
	NodeID  string
	Comment model.Comment
}

// ReplaceResult describes the outcome of a Replace.
type ReplaceResult struct {
	Version   uint64
	Confirmed []PendingComment // pending comments the new snapshot contains
	Dropped   []PendingComment // pending comments the new snapshot lacks
}

// Listener is notified after every Replace with a copy of the new snapshot.
type Listener func(snap model.Snapshot, version uint64)

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	snap    model.Snapshot
	index   map[string]int
	pending []PendingComment
	version uint64

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		index:     make(map[string]int),
		listeners: make(map[int]Listener),
	}
}

// Replace swaps in snap wholesale and rebuilds the id index. Pending
// optimistic comments are cleared: the ones snap already contains are
// reported as confirmed, the rest as dropped.
func (s *Store) Replace(snap model.Snapshot, src Source) ReplaceResult {
	defer metrics.Timer(metrics.SnapshotReplace)()

	snap = snap.Clone()
	index := make(map[string]int, len(snap.Nodes))
	for i, n := range snap.Nodes {
		index[n.ID] = i
	}

	s.mu.Lock()
	var res ReplaceResult
	for _, p := range s.pending {
		if i, ok := index[p.NodeID]; ok && snap.Nodes[i].HasComment(p.Comment) {
			res.Confirmed = append(res.Confirmed, p)
		} else {
			res.Dropped = append(res.Dropped, p)
		}
	}
	s.snap = snap
	s.index = index
	s.pending = nil
	s.version++
	res.Version = s.version
	published := snap.Clone()
	s.mu.Unlock()

	metrics.SnapshotReplaces.WithLabelValues(string(src)).Inc()
	if len(res.Dropped) > 0 {
		metrics.DroppedComments.Add(float64(len(res.Dropped)))
		debug.Log("graph: dropped %d optimistic comment(s) absent from %s snapshot", len(res.Dropped), src)
	}

	s.notify(published, res.Version)
	return res
}

// FindNode returns the node with id, including any pending comments.
func (s *Store) FindNode(id string) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Node{}, false
	}
	return s.withPending(s.snap.Nodes[i]), true
}

// AppendComment adds c to the node optimistically. The returned local id
// identifies the pending entry until the next Replace.
func (s *Store) AppendComment(nodeID string, c model.Comment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[nodeID]; !ok {
		return "", ErrNodeNotFound
	}
	p := PendingComment{LocalID: uuid.NewString(), NodeID: nodeID, Comment: c}
	s.pending = append(s.pending, p)
	return p.LocalID, nil
}

// DiscardPending removes the optimistic comment with localID, typically
// after the backend rejected it. It reports whether an entry was removed.
func (s *Store) DiscardPending(localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p.LocalID == localID {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the optimistic comments currently shown for nodeID.
func (s *Store) Pending(nodeID string) []PendingComment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PendingComment
	for _, p := range s.pending {
		if p.NodeID == nodeID {
			out = append(out, p)
		}
	}
	return out
}

// Snapshot returns a deep copy of the current state with pending comments
// merged in.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap.Clone()
	if len(s.pending) == 0 {
		return out
	}
	for i := range out.Nodes {
		out.Nodes[i] = s.withPending(out.Nodes[i])
	}
	return out
}

// Nodes returns a copy of the node list.
func (s *Store) Nodes() []model.Node { return s.Snapshot().Nodes }

// Edges returns a copy of the edge list.
func (s *Store) Edges() []model.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Edge, len(s.snap.Edges))
	copy(out, s.snap.Edges)
	return out
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snap.Nodes)
}

// Version increments on every Replace. Zero means nothing was loaded yet.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers fn for replace notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()
	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

// notify hands listeners the snapshot that was current when version was
// assigned.
func (s *Store) notify(snap model.Snapshot, version uint64) {
	s.listenerMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()
	for _, fn := range fns {
		fn(snap, version)
	}
}

// withPending must be called with mu held.
func (s *Store) withPending(n model.Node) model.Node {
	n = n.Clone()
	for _, p := range s.pending {
		if p.NodeID == n.ID {
			n.Comments = append(n.Comments, p.Comment)
		}
	}
	return n
}
