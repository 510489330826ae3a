// Package model defines the knowledge-graph snapshot exchanged with the
// backend and pushed over the live-sync channel.
package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Comment is a note attached to a node. Comments are append-only from the
// client's point of view.
type Comment struct {
	AuthorID  string `json:"user_id" yaml:"user_id"`
	Text      string `json:"text" yaml:"text"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// Node is a concept extracted from the user's text.
type Node struct {
	ID          string    `json:"id" yaml:"id" validate:"required"`
	Label       string    `json:"label" yaml:"label"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string    `json:"type" yaml:"type"`
	Color       string    `json:"color,omitempty" yaml:"color,omitempty"`
	OwnerID     string    `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	Comments    []Comment `json:"comments" yaml:"comments" validate:"dive"`
}

// Edge is a directed, labelled relationship between two nodes.
type Edge struct {
	From  string `json:"from" yaml:"from" validate:"required"`
	To    string `json:"to" yaml:"to" validate:"required"`
	Label string `json:"label" yaml:"label"`
}

// Snapshot is the complete state of one graph at a point in time. Snapshots
// are always consumed whole and never diffed.
type Snapshot struct {
	Nodes   []Node `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges   []Edge `json:"edges" yaml:"edges" validate:"dive"`
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// GraphSummary is one entry of a user's graph history.
type GraphSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Version is a stored revision of a graph.
type Version struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	NodeCount int    `json:"node_count"`
}

// ErrDuplicateNodeID is returned by Validate when two nodes share an id.
var ErrDuplicateNodeID = errors.New("duplicate node id")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field-level constraints and id uniqueness. Dangling edges
// are not a validation failure: renderers skip them.
func (s Snapshot) Validate() error {
	if err := validatorInstance().Struct(s); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	seen := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	return nil
}

// DanglingEdges returns the edges whose endpoints are not both present.
func (s Snapshot) DanglingEdges() []Edge {
	ids := s.idSet()
	var out []Edge
	for _, e := range s.Edges {
		_, okFrom := ids[e.From]
		_, okTo := ids[e.To]
		if !okFrom || !okTo {
			out = append(out, e)
		}
	}
	return out
}

// NodeIDs returns node ids in list order.
func (s Snapshot) NodeIDs() []string {
	ids := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// IsEmpty reports whether the snapshot has no nodes.
func (s Snapshot) IsEmpty() bool { return len(s.Nodes) == 0 }

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Summary: s.Summary}
	if s.Nodes != nil {
		out.Nodes = make([]Node, len(s.Nodes))
		for i, n := range s.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if s.Edges != nil {
		out.Edges = make([]Edge, len(s.Edges))
		copy(out.Edges, s.Edges)
	}
	return out
}

// Clone returns a copy of n that shares no comment storage with it.
func (n Node) Clone() Node {
	if n.Comments != nil {
		c := make([]Comment, len(n.Comments))
		copy(c, n.Comments)
		n.Comments = c
	}
	return n
}

// HasComment reports whether n carries a comment with the same author and text.
func (n Node) HasComment(c Comment) bool {
	for _, existing := range n.Comments {
		if existing.AuthorID == c.AuthorID && existing.Text == c.Text {
			return true
		}
	}
	return false
}

func (s Snapshot) idSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		ids[n.ID] = struct{}{}
	}
	return ids
}
