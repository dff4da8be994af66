package simulator

import (
	"fmt"

	"github.com/powerbridge/pwb-go/pkg/persistence"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// persistLocked saves the persisted objects. Without a state path it does
// nothing.
func (s *Simulator) persistLocked() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(s.stateLocked()); err != nil {
		return fmt.Errorf("saving bridge state: %w", err)
	}
	return nil
}

func (s *Simulator) stateLocked() *persistence.BridgeState {
	state := &persistence.BridgeState{
		Node:              s.config.Node,
		FanConfiguration:  uint8(s.fanConfig),
		CabinetController: uint8(s.cabinet),
		PMType:            uint8(s.configuredType),
		Topology: persistence.TopologyState{
			Groups:   s.topology.Groups,
			PerGroup: s.topology.PerGroup,
		},
		Groups: persistence.GroupsState{
			Count: s.groups.Count,
			Masks: [2]uint32{uint32(s.groups.Masks[0]), uint32(s.groups.Masks[1])},
		},
		Offset: s.offset,
	}
	if s.customCaps {
		state.Capabilities = &persistence.CapabilitiesState{
			Voltage: s.capabilities.Voltage,
			Current: s.capabilities.Current,
			Power:   s.capabilities.Power,
		}
	}
	return state
}

// applyState restores the persisted objects. Values the bridge would not
// accept are skipped.
func (s *Simulator) applyState(state *persistence.BridgeState) {
	if c := wire.FanConfiguration(state.FanConfiguration); c <= wire.FanConfigHC300 {
		s.fanConfig = c
	}
	if c := wire.CabinetController(state.CabinetController); c <= wire.CabinetControllerCabinet {
		s.cabinet = c
	}
	if t := wire.PMType(state.PMType); t.IsValid() {
		s.configuredType = t
	}
	if t := (wire.Topology{Groups: state.Topology.Groups, PerGroup: state.Topology.PerGroup}); t.Validate() == nil {
		s.topology = t
	}
	g := wire.Groups{Count: state.Groups.Count}
	for i, m := range state.Groups.Masks {
		g.Masks[i] = wire.GroupMask(m)
	}
	if g.Validate() == nil {
		s.groups = g
	}
	if int(s.config.PMNodeBase)+int(state.Offset)+len(s.modules) <= 255 {
		s.offset = state.Offset
	}
	if c := state.Capabilities; c != nil {
		s.capabilities = wire.Capabilities{Voltage: c.Voltage, Current: c.Current, Power: c.Power}
		s.customCaps = true
	}
	s.debug("bridge state loaded", "path", s.store.Path(), "saved_at", state.SavedAt)
}
