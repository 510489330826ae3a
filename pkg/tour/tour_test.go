package tour

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/edumap/pkg/model"
)

func ids(nodes []model.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func graph(nodeIDs string, edges ...string) model.Snapshot {
	var s model.Snapshot
	for _, id := range strings.Fields(nodeIDs) {
		s.Nodes = append(s.Nodes, model.Node{ID: id, Label: strings.ToUpper(id)})
	}
	for _, e := range edges {
		from, to, _ := strings.Cut(e, ">")
		s.Edges = append(s.Edges, model.Edge{From: from, To: to})
	}
	return s
}

func TestOrder(t *testing.T) {
	tests := []struct {
		name string
		snap model.Snapshot
		want string
	}{
		{"single root fan out", graph("1 2 3", "1>2", "1>3"), "[1 2 3]"},
		{"edge list order decides siblings", graph("1 2 3", "1>3", "1>2"), "[1 3 2]"},
		{"multiple roots in list order", graph("a b c d", "b>c", "a>d"), "[a b d c]"},
		{"cycle seeds first node", graph("x y z", "x>y", "y>z", "z>x"), "[x y z]"},
		{"cycle entered elsewhere", graph("p q r", "q>r", "r>q", "p>p"), "[p q r]"},
		{"disconnected appended", graph("r s u v", "r>s", "u>v", "v>u"), "[r s u v]"},
		{"unknown endpoints ignored", graph("a b", "a>ghost", "ghost>b"), "[a b]"},
		{"unknown source still counts as indegree", graph("a b", "ghost>a"), "[b a]"},
		{"unknown source delays target", graph("a b c", "ghost>a", "b>a"), "[b c a]"},
		{"empty", model.Snapshot{}, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmt.Sprint(ids(Order(tt.snap))); got != tt.want {
				t.Errorf("Order = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOrderVisitsEveryNodeOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 15).Draw(t, "n")
		snap := model.Snapshot{}
		for i := 0; i < n; i++ {
			snap.Nodes = append(snap.Nodes, model.Node{ID: fmt.Sprint(i)})
		}
		m := rapid.IntRange(0, 30).Draw(t, "m")
		for i := 0; i < m; i++ {
			snap.Edges = append(snap.Edges, model.Edge{
				From: fmt.Sprint(rapid.IntRange(0, n-1).Draw(t, "from")),
				To:   fmt.Sprint(rapid.IntRange(0, n-1).Draw(t, "to")),
			})
		}

		order := Order(snap)
		if len(order) != n {
			t.Fatalf("len = %d, want %d", len(order), n)
		}
		seen := make(map[string]bool)
		for _, node := range order {
			if seen[node.ID] {
				t.Fatalf("%s visited twice", node.ID)
			}
			seen[node.ID] = true
		}

		indeg := make(map[string]int)
		for _, e := range snap.Edges {
			indeg[e.To]++
		}
		hasRoot := false
		for _, node := range snap.Nodes {
			if indeg[node.ID] == 0 {
				hasRoot = true
			}
		}
		if hasRoot && indeg[order[0].ID] != 0 {
			t.Fatalf("order starts at %s with indegree %d", order[0].ID, indeg[order[0].ID])
		}
	})
}

func TestNarration(t *testing.T) {
	if got := Narration(model.Node{Label: "Célula", Description: "Unidad básica."}); got != "Célula. Unidad básica." {
		t.Errorf("got %q", got)
	}
	if got := Narration(model.Node{Label: "Vacío"}); got != "Vacío. Sin descripción." {
		t.Errorf("got %q", got)
	}
	if got := Narration(model.Node{Label: "Espacio", Description: "  "}); got != "Espacio.   " {
		t.Errorf("whitespace description replaced: %q", got)
	}
}

// stepNarrator reports each utterance and blocks until released.
type stepNarrator struct {
	spoken  chan string
	release chan error
}

func newStepNarrator() *stepNarrator {
	return &stepNarrator{spoken: make(chan string, 16), release: make(chan error)}
}

func (n *stepNarrator) Speak(ctx context.Context, text string) error {
	n.spoken <- text
	select {
	case err := <-n.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for narration")
		return ""
	}
}

type highlights struct {
	mu  sync.Mutex
	ids []string
}

func (h *highlights) record(id string) {
	h.mu.Lock()
	h.ids = append(h.ids, id)
	h.mu.Unlock()
}

func (h *highlights) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("%q", h.ids)
}

func TestControllerSequentialWithErrors(t *testing.T) {
	n := newStepNarrator()
	c := NewController(n)
	var h highlights
	c.OnHighlight(h.record)

	if !c.Start(graph("1 2 3", "1>2", "1>3")) {
		t.Fatal("Start returned false")
	}
	if c.Start(graph("9")) {
		t.Error("second Start while touring should be a no-op")
	}

	if got := recv(t, n.spoken); got != "1. Sin descripción." {
		t.Errorf("first narration %q", got)
	}
	if c.Current() != "1" || c.Remaining() != 2 {
		t.Errorf("current=%q remaining=%d", c.Current(), c.Remaining())
	}
	n.release <- errors.New("speech engine hiccup")
	recv(t, n.spoken)
	n.release <- nil
	recv(t, n.spoken)
	n.release <- nil
	c.Wait()

	if c.Active() || c.Current() != "" {
		t.Errorf("after completion active=%v current=%q", c.Active(), c.Current())
	}
	if got := h.String(); got != `["1" "2" "3" ""]` {
		t.Errorf("highlights = %s", got)
	}
}

func TestControllerStopCancelsSpeech(t *testing.T) {
	n := newStepNarrator()
	c := NewController(n)
	var h highlights
	c.OnHighlight(h.record)

	c.Start(graph("a b", "a>b"))
	recv(t, n.spoken)
	c.Stop()
	c.Wait()

	if c.State() != Idle || c.Remaining() != 0 || c.Current() != "" {
		t.Errorf("after stop: state=%v remaining=%d current=%q", c.State(), c.Remaining(), c.Current())
	}
	select {
	case s := <-n.spoken:
		t.Errorf("narration continued after stop: %q", s)
	case <-time.After(50 * time.Millisecond):
	}
	if got := h.String(); got != `["a" ""]` {
		t.Errorf("highlights = %s", got)
	}

	// A new tour can start after stop.
	if !c.Start(graph("z")) {
		t.Fatal("restart failed")
	}
	recv(t, n.spoken)
	n.release <- nil
	c.Wait()
}

func TestStopWhenIdle(t *testing.T) {
	c := NewController(nil)
	called := false
	c.OnHighlight(func(string) { called = true })
	c.Stop()
	c.Stop()
	c.Wait()
	if c.Active() || called {
		t.Errorf("idle stop changed state: active=%v highlight=%v", c.Active(), called)
	}
	if c.Start(model.Snapshot{}) {
		t.Error("Start on empty graph returned true")
	}
}

func TestRunWithNopNarrator(t *testing.T) {
	c := NewController(NopNarrator{})
	var h highlights
	c.OnHighlight(h.record)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Run(ctx, graph("1 2 3", "1>2", "2>3")); err != nil {
		t.Fatal(err)
	}
	if got := h.String(); got != `["1" "2" "3" ""]` {
		t.Errorf("highlights = %s", got)
	}
	if err := c.Run(ctx, model.Snapshot{}); !errors.Is(err, ErrNoNodes) {
		t.Errorf("empty run err = %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	n := newStepNarrator()
	c := NewController(n)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx, graph("a b")) }()
	recv(t, n.spoken)
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if c.Active() {
		t.Error("still active after cancel")
	}
}

func TestWriterNarrator(t *testing.T) {
	var sb strings.Builder
	n := WriterNarrator{W: &sb, WordsPerMinute: 60000}
	if err := n.Speak(context.Background(), "uno dos"); err != nil {
		t.Fatal(err)
	}
	if sb.String() != "uno dos\n" {
		t.Errorf("wrote %q", sb.String())
	}
	if wordCount("  a b\tc\n") != 3 {
		t.Error("wordCount")
	}
}

func TestCommandNarratorMissingBinary(t *testing.T) {
	n := CommandNarrator{Command: "edumap-no-such-tts-binary"}
	if n.Available() {
		t.Skip("unexpected binary on PATH")
	}
	if err := n.Speak(context.Background(), "hola"); err == nil {
		t.Error("expected error for missing command")
	}
}
