package snapshotstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/edumap/pkg/model"
)

func openTemp(t *testing.T, opts ...Option) *Store {
	t.Helper()
	var tick int
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	opts = append([]Option{WithClock(clock)}, opts...)

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache", "edumap.db"), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func snap(ids ...string) model.Snapshot {
	var s model.Snapshot
	for _, id := range ids {
		s.Nodes = append(s.Nodes, model.Node{ID: id, Label: "Label " + id, Type: "concepto",
			Comments: []model.Comment{{AuthorID: "u1", Text: "hola", Timestamp: "2024-05-01T10:00:00"}}})
	}
	if len(ids) > 1 {
		s.Edges = append(s.Edges, model.Edge{From: ids[0], To: ids[1], Label: "causa"})
	}
	return s
}

func TestLatestEmpty(t *testing.T) {
	s := openTemp(t)
	_, _, err := s.Latest(context.Background(), "g1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAndLatest(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	if _, err := s.Save(ctx, "g1", "Fotosíntesis", snap("a")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	v2, err := s.Save(ctx, "g1", "", snap("a", "b"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if v2.NodeCount != 2 {
		t.Errorf("NodeCount = %d, want 2", v2.NodeCount)
	}

	got, v, err := s.Latest(ctx, "g1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if v.ID != v2.ID {
		t.Errorf("latest version = %s, want %s", v.ID, v2.ID)
	}
	if len(got.Nodes) != 2 || len(got.Edges) != 1 || got.Edges[0].Label != "causa" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if len(got.Nodes[0].Comments) != 1 || got.Nodes[0].Comments[0].Text != "hola" {
		t.Errorf("comments not preserved: %+v", got.Nodes[0].Comments)
	}

	graphs, err := s.Graphs(ctx)
	if err != nil {
		t.Fatalf("Graphs: %v", err)
	}
	if len(graphs) != 1 || graphs[0].Title != "Fotosíntesis" {
		t.Errorf("empty title should keep the stored one, got %+v", graphs)
	}
}

func TestGetVersion(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	v1, _ := s.Save(ctx, "g1", "t", snap("a"))
	_, _ = s.Save(ctx, "g1", "t", snap("a", "b", "c"))

	got, _, err := s.Get(ctx, "g1", v1.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Nodes) != 1 {
		t.Errorf("version %s has %d nodes, want 1", v1.ID, len(got.Nodes))
	}
	if _, _, err := s.Get(ctx, "other", v1.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("version of another graph should be not found, got %v", err)
	}
	if _, _, err := s.Get(ctx, "g1", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("malformed version should be not found, got %v", err)
	}
}

func TestRetentionPrunesOldest(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t, WithKeep(3))

	for i := 0; i < 5; i++ {
		if _, err := s.Save(ctx, "g1", "t", snap("a")); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	_, _ = s.Save(ctx, "g2", "other", snap("x"))

	vs, err := s.Versions(ctx, "g1")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(vs) != 3 {
		t.Fatalf("kept %d versions, want 3", len(vs))
	}
	if vs[0].ID != "5" || vs[2].ID != "3" {
		t.Errorf("versions = %+v, want newest first 5..3", vs)
	}
	if vs2, _ := s.Versions(ctx, "g2"); len(vs2) != 1 {
		t.Errorf("other graph pruned: %+v", vs2)
	}
}

func TestGraphsOrderAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, _ = s.Save(ctx, "g1", "uno", snap("a"))
	_, _ = s.Save(ctx, "g2", "dos", snap("a"))

	graphs, err := s.Graphs(ctx)
	if err != nil {
		t.Fatalf("Graphs: %v", err)
	}
	if len(graphs) != 2 || graphs[0].ID != "g2" {
		t.Fatalf("graphs = %+v, want g2 first", graphs)
	}

	if err := s.Delete(ctx, "g2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Latest(ctx, "g2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted graph still cached: %v", err)
	}
	graphs, _ = s.Graphs(ctx)
	if len(graphs) != 1 || graphs[0].ID != "g1" {
		t.Errorf("graphs after delete = %+v", graphs)
	}
}

func TestSaveRejectsEmptyID(t *testing.T) {
	s := openTemp(t)
	if _, err := s.Save(context.Background(), "", "t", snap("a")); err == nil {
		t.Fatal("expected error for empty graph id")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "edumap.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Save(ctx, "g1", "t", snap("a", "b")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_ = s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, _, err := s.Latest(ctx, "g1")
	if err != nil || len(got.Nodes) != 2 {
		t.Fatalf("Latest after reopen = %+v, %v", got, err)
	}
}
