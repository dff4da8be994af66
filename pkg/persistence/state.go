package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// BridgeState contains the persisted configuration objects of a power
// bridge: the values marked persist in the object dictionary.
type BridgeState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Node is the CANopen node id of the bridge.
	Node uint8 `json:"node"`

	// FanConfiguration is the fan configuration id (0x2404:00).
	FanConfiguration uint8 `json:"fan_configuration"`

	// CabinetController selects the controller PDOs listened to (0x2407).
	CabinetController uint8 `json:"cabinet_controller"`

	// PMType is the configured power module type (0x2420). It takes
	// effect after restart.
	PMType uint8 `json:"pm_type"`

	Topology TopologyState `json:"topology"`
	Groups   GroupsState   `json:"groups"`

	// Offset is added to the power module node id base (0x2423).
	Offset uint8 `json:"offset"`

	// Capabilities overrides the PM type defaults when set (0x2424).
	Capabilities *CapabilitiesState `json:"capabilities,omitempty"`
}

// TopologyState mirrors wire.Topology for JSON serialization.
type TopologyState struct {
	Groups   uint8    `json:"groups"`
	PerGroup [2]uint8 `json:"per_group"`
}

// GroupsState mirrors wire.Groups for JSON serialization.
type GroupsState struct {
	Count uint32    `json:"count"`
	Masks [2]uint32 `json:"masks"`
}

// CapabilitiesState mirrors wire.Capabilities for JSON serialization.
type CapabilitiesState struct {
	Voltage uint16 `json:"voltage"`
	Current uint16 `json:"current"`
	Power   uint16 `json:"power"`
}

// BridgeStateStore manages persistence of bridge state to a JSON file.
type BridgeStateStore struct {
	mu   sync.Mutex
	path string
}

// NewBridgeStateStore creates a new bridge state store.
func NewBridgeStateStore(path string) *BridgeStateStore {
	return &BridgeStateStore{path: path}
}

// Path returns the state file path.
func (s *BridgeStateStore) Path() string {
	return s.path
}

// Save persists the bridge state. The file is replaced atomically so a
// crash leaves either the old or the new state.
func (s *BridgeStateStore) Save(state *BridgeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the bridge state from disk.
// Returns nil, nil if the file doesn't exist (factory defaults).
func (s *BridgeStateStore) Load() (*BridgeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &BridgeState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("%s: unsupported state version %d", s.path, state.Version)
	}

	return state, nil
}

// Clear removes the state file.
func (s *BridgeStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
