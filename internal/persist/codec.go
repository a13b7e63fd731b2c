package persist

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/foliodraft/foliodraft/internal/draft"
)

// encodeSnapshot serializes a snapshot to its stored blob form.
func encodeSnapshot(snap draft.Snapshot) ([]byte, error) {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot deserializes a stored blob back into a snapshot.
func decodeSnapshot(data []byte) (draft.Snapshot, error) {
	var snap draft.Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return draft.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}
