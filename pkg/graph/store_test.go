package graph

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/edumap/pkg/model"
)

func snap(ids ...string) model.Snapshot {
	var s model.Snapshot
	for _, id := range ids {
		s.Nodes = append(s.Nodes, model.Node{ID: id, Label: "L" + id})
	}
	for i := 1; i < len(ids); i++ {
		s.Edges = append(s.Edges, model.Edge{From: ids[i-1], To: ids[i]})
	}
	return s
}

func TestReplaceAndFind(t *testing.T) {
	s := NewStore()
	if s.Version() != 0 {
		t.Fatalf("fresh store version = %d", s.Version())
	}
	s.Replace(snap("a", "b"), SourceFetch)
	if _, ok := s.FindNode("a"); !ok {
		t.Fatal("a not found")
	}

	res := s.Replace(snap("c"), SourcePush)
	if res.Version != 2 {
		t.Fatalf("version = %d, want 2", res.Version)
	}
	if _, ok := s.FindNode("a"); ok {
		t.Error("a survived a wholesale replace")
	}
	n, ok := s.FindNode("c")
	if !ok || n.Label != "Lc" {
		t.Errorf("FindNode(c) = %+v, %v", n, ok)
	}
	if got := len(s.Edges()); got != 0 {
		t.Errorf("edges = %d, want 0", got)
	}
}

func TestReplaceCopiesInput(t *testing.T) {
	s := NewStore()
	in := snap("a")
	s.Replace(in, SourceFetch)
	in.Nodes[0].Label = "mutated"
	n, _ := s.FindNode("a")
	if n.Label != "La" {
		t.Errorf("store aliases caller snapshot: %q", n.Label)
	}
}

func TestAppendCommentUnknownNode(t *testing.T) {
	s := NewStore()
	s.Replace(snap("a"), SourceFetch)
	_, err := s.AppendComment("zzz", model.Comment{Text: "hi"})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("err = %v, want ErrNodeNotFound", err)
	}
}

func TestOptimisticCommentLifecycle(t *testing.T) {
	s := NewStore()
	s.Replace(snap("a", "b"), SourceFetch)

	c1 := model.Comment{AuthorID: "u1", Text: "kept"}
	c2 := model.Comment{AuthorID: "u1", Text: "lost"}
	if _, err := s.AppendComment("a", c1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendComment("b", c2); err != nil {
		t.Fatal(err)
	}

	n, _ := s.FindNode("a")
	if len(n.Comments) != 1 || n.Comments[0].Text != "kept" {
		t.Fatalf("optimistic comment not visible: %+v", n.Comments)
	}
	if got := len(s.Pending("b")); got != 1 {
		t.Fatalf("pending(b) = %d", got)
	}

	next := snap("a", "b")
	next.Nodes[0].Comments = []model.Comment{c1}
	res := s.Replace(next, SourcePush)

	if len(res.Confirmed) != 1 || res.Confirmed[0].Comment.Text != "kept" {
		t.Errorf("confirmed = %+v", res.Confirmed)
	}
	if len(res.Dropped) != 1 || res.Dropped[0].Comment.Text != "lost" {
		t.Errorf("dropped = %+v", res.Dropped)
	}
	n, _ = s.FindNode("a")
	if len(n.Comments) != 1 {
		t.Errorf("confirmed comment duplicated: %+v", n.Comments)
	}
	n, _ = s.FindNode("b")
	if len(n.Comments) != 0 {
		t.Errorf("dropped comment still visible: %+v", n.Comments)
	}
	if len(s.Pending("a"))+len(s.Pending("b")) != 0 {
		t.Error("pending not cleared by replace")
	}
}

func TestDiscardPending(t *testing.T) {
	s := NewStore()
	s.Replace(snap("a"), SourceFetch)
	first, _ := s.AppendComment("a", model.Comment{AuthorID: "u", Text: "uno"})
	_, _ = s.AppendComment("a", model.Comment{AuthorID: "u", Text: "dos"})

	if !s.DiscardPending(first) {
		t.Fatal("expected pending comment to be discarded")
	}
	if s.DiscardPending(first) {
		t.Fatal("second discard should report false")
	}
	n, _ := s.FindNode("a")
	if len(n.Comments) != 1 || n.Comments[0].Text != "dos" {
		t.Fatalf("comments after discard = %+v", n.Comments)
	}
}

func TestSubscribe(t *testing.T) {
	s := NewStore()
	var got []uint64
	unsub := s.Subscribe(func(sn model.Snapshot, v uint64) {
		got = append(got, v)
		if len(sn.Nodes) == 0 {
			t.Error("listener got empty snapshot")
		}
	})
	s.Replace(snap("a"), SourceFetch)
	s.Replace(snap("b"), SourceFetch)
	unsub()
	s.Replace(snap("c"), SourceFetch)
	if fmt.Sprint(got) != "[1 2]" {
		t.Errorf("notifications = %v", got)
	}
}

func TestConcurrentReplaceNotifiesMatchingVersion(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	seen := make(map[string]uint64) // node id -> version delivered with it
	s.Subscribe(func(sn model.Snapshot, v uint64) {
		mu.Lock()
		seen[sn.Nodes[0].ID] = v
		mu.Unlock()
	})

	const n = 50
	assigned := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assigned[i] = s.Replace(snap(fmt.Sprint("n", i)), SourcePush).Version
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		id := fmt.Sprint("n", i)
		if seen[id] != assigned[i] {
			t.Errorf("snapshot %s delivered with version %d, replace assigned %d", id, seen[id], assigned[i])
		}
	}
}

func TestSnapshotIncludesPending(t *testing.T) {
	s := NewStore()
	s.Replace(snap("a"), SourceFetch)
	if _, err := s.AppendComment("a", model.Comment{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Snapshot().Nodes[0].Comments); got != 1 {
		t.Errorf("snapshot comments = %d, want 1", got)
	}
	if got := len(s.Nodes()); got != 1 {
		t.Errorf("Nodes() = %d", got)
	}
}

func TestReplaceOnlyNewIDsResolve(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore()
		first := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-f]{1,3}`), 0, 10, rapid.ID[string]).Draw(t, "first")
		second := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-f]{1,3}`), 0, 10, rapid.ID[string]).Draw(t, "second")
		s.Replace(snap(first...), SourceFetch)
		s.Replace(snap(second...), SourcePush)

		want := make(map[string]bool)
		for _, id := range second {
			want[id] = true
		}
		for _, id := range append(first, second...) {
			_, ok := s.FindNode(id)
			if ok != want[id] {
				t.Fatalf("FindNode(%q) = %v, want %v", id, ok, want[id])
			}
		}
		if s.Len() != len(second) {
			t.Fatalf("Len = %d, want %d", s.Len(), len(second))
		}
	})
}
