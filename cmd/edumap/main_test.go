package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/edumap/pkg/api"
	"github.com/vanderheijden86/edumap/pkg/config"
	"github.com/vanderheijden86/edumap/pkg/testutil"
)

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	for _, k := range []string{"EDUMAP_BACKEND_URL", "EDUMAP_WS_URL", "EDUMAP_USER_ID", "EDUMAP_THEME", "EDUMAP_RECONNECT"} {
		t.Setenv(k, "")
	}
}

func writeFixture(t *testing.T) string {
	t.Helper()
	g := testutil.NewDefault()
	path := filepath.Join(t.TempDir(), "apuntes.json")
	testutil.WriteSnapshotFile(t, path, g.Snapshot(g.Tree(2, 2)))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	a.close()
	return out.String(), errOut.String(), err
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in, head, tail string
	}{
		{"", "", ""},
		{"nodes", "nodes", ""},
		{"  show   n1  ", "show", "n1"},
		{"comment n1 muy\tbien dicho", "comment", "n1 muy\tbien dicho"},
	}
	for _, tt := range tests {
		head, tail := splitCommand(tt.in)
		if head != tt.head || tail != tt.tail {
			t.Errorf("splitCommand(%q) = %q, %q; want %q, %q", tt.in, head, tail, tt.head, tt.tail)
		}
	}
}

func TestReadText(t *testing.T) {
	got, err := readText(strings.NewReader("ignored"), []string{"la", "célula "})
	if err != nil || got != "la célula" {
		t.Errorf("readText args = %q, %v", got, err)
	}
	got, err = readText(strings.NewReader("  desde stdin\n"), []string{"-"})
	if err != nil || got != "desde stdin" {
		t.Errorf("readText stdin = %q, %v", got, err)
	}
}

func TestCellPadsByDisplayWidth(t *testing.T) {
	if got := cell("abc", 5); got != "abc  " {
		t.Errorf("cell pad = %q", got)
	}
	if got := cell("日本語です", 6); got != "日本…" && got != "日本… " {
		t.Errorf("cell truncate = %q", got)
	}
	if got := cell("x", 0); got != "" {
		t.Errorf("zero width = %q", got)
	}
}

func TestBar(t *testing.T) {
	if got := bar(0.5, 4); got != "██··" {
		t.Errorf("bar = %q", got)
	}
	if got := bar(3, 2); got != "██" {
		t.Errorf("clamped bar = %q", got)
	}
}

func TestFileGraphID(t *testing.T) {
	if got := fileGraphID("/tmp/x/biologia.json"); got != "biologia" {
		t.Errorf("fileGraphID = %q", got)
	}
}

func TestOffline(t *testing.T) {
	if offline(nil) {
		t.Error("nil is not offline")
	}
	if offline(&api.APIError{Status: 500}) {
		t.Error("backend answer is not offline")
	}
	if !offline(errors.New("dial tcp: refused")) {
		t.Error("transport error should be offline")
	}
}

func TestRenderCommandWritesFiles(t *testing.T) {
	isolate(t)
	src := writeFixture(t)
	outDir := t.TempDir()

	out, _, err := run(t, "--no-cache", "render", src, "-o", outDir, "-f", "png,svg", "--title", "Mi grafo")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, name := range []string{"Mi_grafo.png", "Mi_grafo.svg"} {
		info, err := os.Stat(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
		if !strings.Contains(out, name) {
			t.Errorf("output does not mention %s: %q", name, out)
		}
	}
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	isolate(t)
	src := writeFixture(t)
	if _, _, err := run(t, "--no-cache", "render", src, "-o", t.TempDir(), "-f", "gif"); err == nil {
		t.Fatal("expected error for gif")
	}
}

func TestAnalyzeJSONFromFile(t *testing.T) {
	isolate(t)
	src := writeFixture(t)

	out, _, err := run(t, "--no-cache", "analyze", "--json", src)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var report analyzeReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.Source != "local" || report.GraphID != "apuntes" {
		t.Errorf("report header = %s %s", report.Source, report.GraphID)
	}
	if report.Structure == nil || report.Structure.NodeCount != 7 || len(report.Structure.Roots) != 1 {
		t.Errorf("structure = %+v", report.Structure)
	}
	if report.InDegree["Raíz"] != 0 {
		t.Errorf("root in-degree = %v", report.InDegree["Raíz"])
	}
}

func TestAnalyzeTable(t *testing.T) {
	isolate(t)
	src := writeFixture(t)
	out, _, err := run(t, "--no-cache", "analyze", "-n", "3", src)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{"PageRank", "Raíces:", "Raíz", "Sin ciclos"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBadConfigFails(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("theme: sepia\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := run(t, "--config", path, "history"); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestHistoryNeedsUser(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "--no-cache", "history")
	if err == nil || !strings.Contains(err.Error(), "login") {
		t.Fatalf("expected login hint, got %v", err)
	}
}

func newLocalViewer(t *testing.T) (*app, *viewer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	a.cfg = config.DefaultConfig()
	a.cfg.Export.Dir = t.TempDir()
	client, err := api.New(api.Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatal(err)
	}
	a.client = client
	v, err := a.newViewer(false, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(v.close)

	g := testutil.NewDefault()
	if err := v.sess.Load("apuntes", "Apuntes", g.Snapshot(g.Star(3))); err != nil {
		t.Fatal(err)
	}
	return a, v, &out
}

func TestDispatch(t *testing.T) {
	a, v, out := newLocalViewer(t)
	ctx := context.Background()

	if err := a.dispatch(ctx, v, "nodes"); err != nil {
		t.Fatalf("nodes: %v", err)
	}
	if !strings.Contains(out.String(), "Centro") {
		t.Errorf("nodes output = %q", out.String())
	}
	if err := a.dispatch(ctx, v, "show n1"); err != nil {
		t.Fatalf("show: %v", err)
	}
	if n, ok := v.sess.Detail(); !ok || n.ID != "n1" {
		t.Errorf("detail = %+v %v", n, ok)
	}
	if err := a.dispatch(ctx, v, "close"); err != nil {
		t.Fatal(err)
	}
	if _, ok := v.sess.Detail(); ok {
		t.Error("detail still open")
	}

	if err := a.dispatch(ctx, v, "show"); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Errorf("expected usage error, got %v", err)
	}
	if err := a.dispatch(ctx, v, "show missing"); err == nil {
		t.Error("expected not found")
	}
	if err := a.dispatch(ctx, v, "frobnicate"); err == nil {
		t.Error("expected unknown command error")
	}
	if err := a.dispatch(ctx, v, "quit"); !errors.Is(err, errQuit) {
		t.Errorf("quit = %v", err)
	}
	if err := a.dispatch(ctx, v, "   "); err != nil {
		t.Errorf("blank line = %v", err)
	}
}

func TestDispatchExport(t *testing.T) {
	a, v, out := newLocalViewer(t)
	if err := a.dispatch(context.Background(), v, "export svg"); err != nil {
		t.Fatalf("export: %v", err)
	}
	path := filepath.Join(a.cfg.Export.Dir, "Apuntes.svg")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("missing export: %v", err)
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("output = %q", out.String())
	}
}

func TestReplStopsAtQuit(t *testing.T) {
	a, v, out := newLocalViewer(t)
	in := strings.NewReader("help\nbogus\nshow n3\nquit\nnodes\n")
	if err := a.repl(context.Background(), v, in, false); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if !strings.Contains(out.String(), "commands:") || !strings.Contains(out.String(), "Rama 2") {
		t.Errorf("output = %q", out.String())
	}
	if strings.Contains(out.String(), "Centro") {
		t.Error("commands after quit ran")
	}
	if !strings.Contains(a.errOut.(*bytes.Buffer).String(), "unknown command") {
		t.Errorf("errors = %q", a.errOut.(*bytes.Buffer).String())
	}
}

func TestReplEndsAtEOF(t *testing.T) {
	a, v, _ := newLocalViewer(t)
	if err := a.repl(context.Background(), v, strings.NewReader("nodes\n"), false); err != nil {
		t.Fatalf("repl: %v", err)
	}
}

func TestRenderMarkdownPlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	md := "# Resumen\n\n**Fotosíntesis** en plantas."
	if got := renderMarkdown(&buf, md); got != md {
		t.Errorf("renderMarkdown changed non-terminal output: %q", got)
	}
	if got := renderMarkdown(&buf, ""); got != "" {
		t.Errorf("renderMarkdown(\"\") = %q", got)
	}
}
