package cache

import (
	"encoding/json"
	"fmt"
)

const snapshotVersion = 1

type snapshotDocument struct {
	Version int      `json:"version"`
	Entries Snapshot `json:"entries"`
}

// Encode serializes a snapshot for durable storage.
func Encode(snap Snapshot) ([]byte, error) {
	if snap == nil {
		snap = Snapshot{}
	}
	data, err := json.Marshal(snapshotDocument{Version: snapshotVersion, Entries: snap})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a stored snapshot. Empty input decodes to an empty snapshot;
// unknown fields are ignored.
func Decode(data []byte) (Snapshot, error) {
	if len(data) == 0 {
		return Snapshot{}, nil
	}
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Entries == nil {
		doc.Entries = Snapshot{}
	}
	return doc.Entries, nil
}
