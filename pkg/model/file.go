package model

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// DecodeSnapshot parses either a bare snapshot or the {"graph": ...}
// envelope returned by the backend's get_graph endpoint, then validates it.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var probe struct {
		Graph *Snapshot `json:"graph"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	var snap Snapshot
	if probe.Graph != nil {
		snap = *probe.Graph
	} else if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// ReadSnapshotFile reads and decodes a snapshot from path.
func ReadSnapshotFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	return DecodeSnapshot(data)
}
