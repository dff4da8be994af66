package bridge

import (
	"context"
	"sync"

	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Bridge is the typed object API of one power bridge node.
type Bridge struct {
	node

	mu     sync.Mutex
	pmType wire.PMType
	typeOK bool
}

// New creates a Bridge for node. The connection must serve the bridge
// dictionary for node.
func New(conn Conn, nodeID uint8) *Bridge {
	return &Bridge{node: node{conn: conn, id: nodeID}}
}

// Node returns the node ID.
func (b *Bridge) Node() uint8 {
	return b.id
}

// UsePMType sets the power module type used to decode module states,
// instead of reading it from the bridge.
func (b *Bridge) UsePMType(t wire.PMType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pmType = t
	b.typeOK = true
}

// activeType returns the type used for decoding, reading it once.
func (b *Bridge) activeType(ctx context.Context) (wire.PMType, error) {
	b.mu.Lock()
	if b.typeOK {
		t := b.pmType
		b.mu.Unlock()
		return t, nil
	}
	b.mu.Unlock()

	t, err := b.PMType(ctx)
	if err != nil {
		return 0, err
	}
	b.UsePMType(t)
	return t, nil
}

// Output reads the DC output of power module pm (1..8).
func (b *Bridge) Output(ctx context.Context, pm int) (wire.VI, error) {
	var vi wire.VI
	sub, err := moduleSub(pm)
	if err != nil {
		return vi, err
	}
	err = b.read(ctx, od.Addr(od.IndexPMOutput, sub), &vi)
	return vi, err
}

// ModuleState is the state of one power module with its vendor registers
// decoded.
type ModuleState struct {
	PM     int
	State  wire.PMState
	Vendor wire.VendorState
}

// HasFault reports whether the vendor state carries an error bit.
func (s ModuleState) HasFault() bool {
	return s.Vendor != nil && s.Vendor.HasFault()
}

// State reads the state of power module pm (1..8), decoded for the power
// module type of the bridge.
func (b *Bridge) State(ctx context.Context, pm int) (ModuleState, error) {
	ms := ModuleState{PM: pm}
	sub, err := moduleSub(pm)
	if err != nil {
		return ms, err
	}
	t, err := b.activeType(ctx)
	if err != nil {
		return ms, err
	}
	if err := b.read(ctx, od.Addr(od.IndexPMState, sub), &ms.State); err != nil {
		return ms, err
	}
	ms.Vendor = ms.State.Decode(t)
	return ms, nil
}

// SetInterlink writes an interlink command. Reserved values are rejected
// without a request.
func (b *Bridge) SetInterlink(ctx context.Context, cmd wire.InterlinkCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return b.writeUint8(ctx, od.Addr(od.IndexInterlinkDCContactor, 0), uint8(cmd))
}

// Interlink reads the contactor state.
func (b *Bridge) Interlink(ctx context.Context) (wire.InterlinkState, error) {
	v, err := b.readUint8(ctx, od.Addr(od.IndexInterlinkDCContactor, 0))
	return wire.InterlinkState(v), err
}

// SetMaxOutput writes the maximum voltage and current of the session.
func (b *Bridge) SetMaxOutput(ctx context.Context, vi wire.VI) error {
	return b.write(ctx, od.Addr(od.IndexPMMaxOutput, 0), vi)
}

// MaxOutput reads the maximum voltage and current of the (last) session.
func (b *Bridge) MaxOutput(ctx context.Context) (wire.VI, error) {
	var vi wire.VI
	err := b.read(ctx, od.Addr(od.IndexPMMaxOutput, 0), &vi)
	return vi, err
}

// FanConfiguration reads the configured fan set.
func (b *Bridge) FanConfiguration(ctx context.Context) (wire.FanConfiguration, error) {
	v, err := b.readUint8(ctx, od.Addr(od.IndexFanConfiguration, od.SubFanConfigurationID))
	return wire.FanConfiguration(v), err
}

// SetFanConfiguration writes the fan set.
func (b *Bridge) SetFanConfiguration(ctx context.Context, c wire.FanConfiguration) error {
	return b.writeUint8(ctx, od.Addr(od.IndexFanConfiguration, od.SubFanConfigurationID), uint8(c))
}

// FanCount reads the number of fans derived from the configuration.
func (b *Bridge) FanCount(ctx context.Context) (uint8, error) {
	return b.readUint8(ctx, od.Addr(od.IndexFanConfiguration, od.SubFanConfigurationFanCount))
}

// SetFans starts or stops all fans.
func (b *Bridge) SetFans(ctx context.Context, cmd wire.FanCommand) error {
	return b.writeUint8(ctx, od.Addr(od.IndexFansState, 0), uint8(cmd))
}

// FanStates reads the state of every fan.
func (b *Bridge) FanStates(ctx context.Context) (wire.FanStates, error) {
	v, err := b.readUint32(ctx, od.Addr(od.IndexFansState, 0))
	return wire.FanStates(v), err
}

// ACContactors reads the AC relay state per group.
func (b *Bridge) ACContactors(ctx context.Context) (wire.ACContactorGroups, error) {
	v, err := b.readUint8(ctx, od.Addr(od.IndexGroupsACContactors, 0))
	return wire.ACContactorGroups(v), err
}

// SetACContactors writes the AC relay state per group.
func (b *Bridge) SetACContactors(ctx context.Context, g wire.ACContactorGroups) error {
	return b.writeUint8(ctx, od.Addr(od.IndexGroupsACContactors, 0), uint8(g))
}

// CabinetController reads which controller's PDOs the bridge uses.
func (b *Bridge) CabinetController(ctx context.Context) (wire.CabinetController, error) {
	v, err := b.readUint8(ctx, od.Addr(od.IndexCabinetController, 0))
	return wire.CabinetController(v), err
}

// SetCabinetController selects the controller whose PDOs the bridge uses.
func (b *Bridge) SetCabinetController(ctx context.Context, c wire.CabinetController) error {
	return b.writeUint8(ctx, od.Addr(od.IndexCabinetController, 0), uint8(c))
}

// Address reads the power module and group address.
func (b *Bridge) Address(ctx context.Context) (wire.PMAddress, error) {
	var a wire.PMAddress
	err := b.read(ctx, od.Addr(od.IndexPMAddress, 0), &a)
	return a, err
}

// PMType reads the configured power module type. A type written with
// SetPMType is reported at once but used by the bridge after restart.
func (b *Bridge) PMType(ctx context.Context) (wire.PMType, error) {
	v, err := b.readUint8(ctx, od.Addr(od.IndexConfigPMType, 0))
	return wire.PMType(v), err
}

// SetPMType writes the power module type.
func (b *Bridge) SetPMType(ctx context.Context, t wire.PMType) error {
	return b.writeUint8(ctx, od.Addr(od.IndexConfigPMType, 0), uint8(t))
}

// Topology reads the number of groups and modules per group.
func (b *Bridge) Topology(ctx context.Context) (wire.Topology, error) {
	var t wire.Topology
	var err error
	if t.Groups, err = b.readUint8(ctx, od.Addr(od.IndexConfigPMTopology, od.SubConfigPMTopologyGroups)); err != nil {
		return t, err
	}
	if t.PerGroup[0], err = b.readUint8(ctx, od.Addr(od.IndexConfigPMTopology, od.SubConfigPMTopologyGroup1)); err != nil {
		return t, err
	}
	t.PerGroup[1], err = b.readUint8(ctx, od.Addr(od.IndexConfigPMTopology, od.SubConfigPMTopologyGroup2))
	return t, err
}

// SetTopology validates and writes the topology. Every sub-index write
// leaves a valid topology behind: counts that shrink are written before
// counts that grow, and the group count is lowered first or raised last.
func (b *Bridge) SetTopology(ctx context.Context, t wire.Topology) error {
	if err := t.Validate(); err != nil {
		return err
	}
	cur, err := b.Topology(ctx)
	if err != nil {
		return err
	}
	lower := wire.Topology{Groups: min(cur.Groups, t.Groups)}
	for i := range lower.PerGroup {
		lower.PerGroup[i] = min(cur.PerGroup[i], t.PerGroup[i])
	}
	for _, next := range []wire.Topology{lower, t} {
		if err := b.stepTopology(ctx, &cur, next); err != nil {
			return err
		}
	}
	return nil
}

// stepTopology writes the sub-indices where next differs from cur.
func (b *Bridge) stepTopology(ctx context.Context, cur *wire.Topology, next wire.Topology) error {
	groups := od.Addr(od.IndexConfigPMTopology, od.SubConfigPMTopologyGroups)
	if next.Groups < cur.Groups {
		if err := b.writeUint8(ctx, groups, next.Groups); err != nil {
			return err
		}
		cur.Groups = next.Groups
	}
	for i, sub := range []od.SubIndex{od.SubConfigPMTopologyGroup1, od.SubConfigPMTopologyGroup2} {
		if next.PerGroup[i] == cur.PerGroup[i] {
			continue
		}
		if err := b.writeUint8(ctx, od.Addr(od.IndexConfigPMTopology, sub), next.PerGroup[i]); err != nil {
			return err
		}
		cur.PerGroup[i] = next.PerGroup[i]
	}
	if next.Groups > cur.Groups {
		if err := b.writeUint8(ctx, groups, next.Groups); err != nil {
			return err
		}
		cur.Groups = next.Groups
	}
	return nil
}

// Groups reads the power module masks per group.
func (b *Bridge) Groups(ctx context.Context) (wire.Groups, error) {
	var g wire.Groups
	var err error
	if g.Count, err = b.readUint32(ctx, od.Addr(od.IndexConfigPMGroup, od.SubConfigPMGroupCount)); err != nil {
		return g, err
	}
	for i, sub := range []od.SubIndex{od.SubConfigPMGroupMask1, od.SubConfigPMGroupMask2} {
		m, err := b.readUint32(ctx, od.Addr(od.IndexConfigPMGroup, sub))
		if err != nil {
			return g, err
		}
		g.Masks[i] = wire.GroupMask(m)
	}
	return g, nil
}

// SetGroups validates and writes the group masks, the count last. A power
// module belongs to at most one group, so modules leaving a group are
// dropped from every mask before any mask grows.
func (b *Bridge) SetGroups(ctx context.Context, g wire.Groups) error {
	if err := g.Validate(); err != nil {
		return err
	}
	cur, err := b.Groups(ctx)
	if err != nil {
		return err
	}
	var kept [wire.MaxGroups]wire.GroupMask
	for i := range kept {
		kept[i] = cur.Masks[i] & g.Masks[i]
	}
	for _, masks := range [][wire.MaxGroups]wire.GroupMask{kept, g.Masks} {
		for i, sub := range []od.SubIndex{od.SubConfigPMGroupMask1, od.SubConfigPMGroupMask2} {
			if masks[i] == cur.Masks[i] {
				continue
			}
			if err := b.writeUint32(ctx, od.Addr(od.IndexConfigPMGroup, sub), uint32(masks[i])); err != nil {
				return err
			}
			cur.Masks[i] = masks[i]
		}
	}
	if g.Count == cur.Count {
		return nil
	}
	return b.writeUint32(ctx, od.Addr(od.IndexConfigPMGroup, od.SubConfigPMGroupCount), g.Count)
}

// Offset reads the power module node id offset.
func (b *Bridge) Offset(ctx context.Context) (uint8, error) {
	return b.readUint8(ctx, od.Addr(od.IndexConfigPMOffset, 0))
}

// SetOffset writes the power module node id offset.
func (b *Bridge) SetOffset(ctx context.Context, offset uint8) error {
	return b.writeUint8(ctx, od.Addr(od.IndexConfigPMOffset, 0), offset)
}

// Capabilities reads the configured output limits.
func (b *Bridge) Capabilities(ctx context.Context) (wire.Capabilities, error) {
	var c wire.Capabilities
	for _, sub := range []od.SubIndex{od.SubConfigPMCapabilitiesVoltage, od.SubConfigPMCapabilitiesCurrent, od.SubConfigPMCapabilitiesPower} {
		v, err := b.readUint16(ctx, od.Addr(od.IndexConfigPMCapabilities, sub))
		if err != nil {
			return c, err
		}
		c = c.With(uint8(sub), v)
	}
	return c, nil
}

// SetCapabilities validates the limits against the configured power
// module type and writes them.
func (b *Bridge) SetCapabilities(ctx context.Context, c wire.Capabilities) error {
	t, err := b.PMType(ctx)
	if err != nil {
		return err
	}
	if err := c.Validate(t); err != nil {
		return err
	}
	for _, sub := range []od.SubIndex{od.SubConfigPMCapabilitiesVoltage, od.SubConfigPMCapabilitiesCurrent, od.SubConfigPMCapabilitiesPower} {
		v, _ := c.Get(uint8(sub))
		if err := b.writeUint16(ctx, od.Addr(od.IndexConfigPMCapabilities, sub), v); err != nil {
			return err
		}
	}
	return nil
}

// SetUpdateMode writes the verification mode of the next update.
func (b *Bridge) SetUpdateMode(ctx context.Context, m wire.UpdateMode) error {
	return b.writeUint8(ctx, od.Addr(od.IndexUpdateMode, 0), uint8(m))
}

// StartUpdate writes the image versions and starts an update.
func (b *Bridge) StartUpdate(ctx context.Context, v wire.SoftVersion) error {
	return b.write(ctx, od.Addr(od.IndexUpdateStart, 0), v)
}

// UpdateStatus reads the update status.
func (b *Bridge) UpdateStatus(ctx context.Context) (wire.UpdateStatus, error) {
	var s wire.UpdateStatus
	err := b.read(ctx, od.Addr(od.IndexUpdateStatus, 0), &s)
	return s, err
}

// WriteDataFrame writes the next 4 image bytes.
func (b *Bridge) WriteDataFrame(ctx context.Context, f wire.DataFrame) error {
	return b.write(ctx, od.Addr(od.IndexUpdateDataFrame, 0), f)
}

// EndData marks the end of the current image.
func (b *Bridge) EndData(ctx context.Context) error {
	return b.writeUint8(ctx, od.Addr(od.IndexUpdateDataEnd, 0), wire.UpdateDataEnd)
}
