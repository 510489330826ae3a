package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeSnapshotShapes(t *testing.T) {
	bare := `{"nodes":[{"id":"a","label":"A","type":"concept","comments":[]}],"edges":[]}`
	wrapped := `{"graph":` + bare + `}`

	for name, data := range map[string]string{"bare": bare, "envelope": wrapped} {
		snap, err := DecodeSnapshot([]byte(data))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(snap.Nodes) != 1 || snap.Nodes[0].Label != "A" {
			t.Errorf("%s: nodes = %+v", name, snap.Nodes)
		}
	}
}

func TestDecodeSnapshotRejects(t *testing.T) {
	if _, err := DecodeSnapshot([]byte("not json")); err == nil {
		t.Error("expected syntax error")
	}
	dup := `{"nodes":[{"id":"a"},{"id":"a"}],"edges":[]}`
	if _, err := DecodeSnapshot([]byte(dup)); !errors.Is(err, ErrDuplicateNodeID) {
		t.Errorf("expected duplicate id error, got %v", err)
	}
	noID := `{"nodes":[{"label":"x"}],"edges":[]}`
	if _, err := DecodeSnapshot([]byte(noID)); err == nil {
		t.Error("expected validation error for missing id")
	}
}

func TestReadSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.json")
	if err := os.WriteFile(path, []byte(`{"nodes":[],"edges":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	snap, err := ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile: %v", err)
	}
	if !snap.IsEmpty() {
		t.Error("expected empty snapshot")
	}
	if _, err := ReadSnapshotFile(filepath.Join(t.TempDir(), "missing.json")); !os.IsNotExist(err) {
		t.Errorf("expected not exist, got %v", err)
	}
}
