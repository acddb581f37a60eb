package attendance

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SnapshotKey is the fixed namespace the manager state is stored under.
const SnapshotKey = "attendance-storage"

const snapshotVersion = 1

// ErrNoSnapshot is returned by stores when nothing was saved under a key.
var ErrNoSnapshot = errors.New("snapshot not found")

type envelope struct {
	State   state `json:"state"`
	Version int   `json:"version"`
}

// Snapshot serialises the whole manager state.
func (m *Manager) Snapshot() ([]byte, error) {
	data, err := json.Marshal(envelope{State: m.st, Version: snapshotVersion})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Restore replaces the manager state with a snapshot. On error the current
// state is left untouched.
func (m *Manager) Restore(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if env.Version != snapshotVersion {
		return fmt.Errorf("decode snapshot: unsupported version %d", env.Version)
	}
	env.State.normalize()
	m.st = env.State
	return nil
}
