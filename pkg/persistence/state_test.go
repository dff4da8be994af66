package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBridgeStateStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewBridgeStateStore(filepath.Join(t.TempDir(), "nonexistent.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		store := NewBridgeStateStore(filepath.Join(t.TempDir(), "sub", "bridge.json"))

		state := &BridgeState{
			Node:              10,
			FanConfiguration:  1,
			CabinetController: 1,
			PMType:            6,
			Topology:          TopologyState{Groups: 2, PerGroup: [2]uint8{4, 4}},
			Groups:            GroupsState{Count: 2, Masks: [2]uint32{0x0f, 0xf0}},
			Offset:            3,
			Capabilities:      &CapabilitiesState{Voltage: 9200, Current: 300, Power: 225},
		}
		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt not set")
		}
		if got.PMType != 6 || got.Offset != 3 || got.FanConfiguration != 1 || got.CabinetController != 1 {
			t.Errorf("scalars = %+v", got)
		}
		if got.Topology != state.Topology || got.Groups != state.Groups {
			t.Errorf("topology/groups = %+v %+v", got.Topology, got.Groups)
		}
		if got.Capabilities == nil || *got.Capabilities != *state.Capabilities {
			t.Errorf("Capabilities = %+v", got.Capabilities)
		}
	})

	t.Run("SaveLeavesNoTempFiles", func(t *testing.T) {
		dir := t.TempDir()
		store := NewBridgeStateStore(filepath.Join(dir, "bridge.json"))
		for i := 0; i < 3; i++ {
			if err := store.Save(&BridgeState{Offset: uint8(i)}); err != nil {
				t.Fatal(err)
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("got %d files, want only the state file", len(entries))
		}
	})

	t.Run("CorruptFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bridge.json")
		if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewBridgeStateStore(path).Load(); err == nil {
			t.Error("expected error for corrupt file")
		}
	})

	t.Run("FutureVersion", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bridge.json")
		if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewBridgeStateStore(path).Load(); err == nil {
			t.Error("expected error for unsupported version")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewBridgeStateStore(filepath.Join(t.TempDir(), "bridge.json"))
		if err := store.Save(&BridgeState{}); err != nil {
			t.Fatal(err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("second Clear() error = %v", err)
		}
		got, _ := store.Load()
		if got != nil {
			t.Error("state still present after Clear")
		}
	})
}
