package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/powerbridge/pwb-go/pkg/interaction"
	"github.com/powerbridge/pwb-go/pkg/interlink"
	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/persistence"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Simulator is an in-memory power bridge with its power module nodes.
// It implements interaction.Store.
type Simulator struct {
	mu sync.Mutex

	config Config
	store  *persistence.BridgeStateStore
	now    func() time.Time

	logger   *slog.Logger
	protocol log.Logger

	contactor *interlink.Contactor
	modules   []*module

	maxOutput    wire.VI
	fanConfig    wire.FanConfiguration
	fansRunning  bool
	acContactors wire.ACContactorGroups
	cabinet      wire.CabinetController
	address      wire.PMAddress

	// activeType is used until restart, configuredType is what 0x2420 reads.
	activeType     wire.PMType
	configuredType wire.PMType

	topology     wire.Topology
	groups       wire.Groups
	offset       uint8
	capabilities wire.Capabilities
	customCaps   bool

	update updateSession
}

var _ interaction.Store = (*Simulator)(nil)

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithProtocolLogger sets the logger receiving interlink and update state
// events.
func WithProtocolLogger(l log.Logger) Option {
	return func(s *Simulator) { s.protocol = l }
}

// WithClock replaces time.Now for the update handshake.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// New creates a simulator and loads the persisted objects from
// config.StatePath.
func New(config Config, opts ...Option) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulator config: %w", err)
	}
	s := &Simulator{
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.protocol = log.OrNoop(s.protocol)
	if config.StatePath != "" {
		s.store = persistence.NewBridgeStateStore(config.StatePath)
	}

	s.contactor = interlink.NewContactor(config.InterlinkTimeout)
	s.contactor.OnStateChange(s.interlinkChanged)

	for _, mc := range config.Modules {
		s.modules = append(s.modules, newModule(mc))
	}

	if err := s.boot(); err != nil {
		return nil, err
	}
	return s, nil
}

// boot sets the power-on state and applies the persisted objects.
func (s *Simulator) boot() error {
	t, _ := s.config.pmType()
	s.configuredType = t
	s.fanConfig = wire.FanConfiguration(s.config.FanConfiguration)
	s.cabinet = wire.CabinetControllerBoth
	s.address = wire.PMAddress{Address: s.config.Address.Address, Group: s.config.Address.Group}
	s.topology = wire.Topology{Groups: 1, PerGroup: [wire.MaxGroups]uint8{uint8(len(s.modules))}}
	s.groups = wire.Groups{Count: 1}
	for pm := 1; pm <= len(s.modules); pm++ {
		s.groups.Masks[0] |= wire.MaskOf(pm)
	}
	s.offset = 0
	s.customCaps = false

	if s.store != nil {
		state, err := s.store.Load()
		if err != nil {
			return fmt.Errorf("loading bridge state: %w", err)
		}
		if state != nil {
			s.applyState(state)
		}
	}

	s.activeType = s.configuredType
	if !s.customCaps || s.capabilities.Validate(s.activeType) != nil {
		s.capabilities = s.activeType.DefaultCapabilities()
		s.customCaps = false
	}

	s.maxOutput = wire.VI{}
	s.fansRunning = false
	s.acContactors = 0
	s.update = updateSession{}
	for _, m := range s.modules {
		m.reset()
	}
	return nil
}

// Restart simulates a power cycle: volatile objects reset, persisted
// objects are reloaded and a new power module type takes effect.
func (s *Simulator) Restart() error {
	_ = s.contactor.Apply(wire.InterlinkForcedOff)
	s.contactor.ClearFault()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug("restart", "pm_type", s.configuredType)
	return s.boot()
}

// Close stops the contactor timer.
func (s *Simulator) Close() error {
	s.contactor.Close()
	return nil
}

// Node returns the node id of the bridge.
func (s *Simulator) Node() uint8 {
	return s.config.Node
}

// PMNodes returns the node ids of the fitted power modules.
func (s *Simulator) PMNodes() []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := make([]uint8, len(s.modules))
	for i := range s.modules {
		nodes[i] = s.pmNodeLocked(i + 1)
	}
	return nodes
}

func (s *Simulator) pmNodeLocked(pm int) uint8 {
	return s.config.PMNodeBase + s.offset + uint8(pm-1)
}

// moduleForNode returns the power module served at node, or nil.
func (s *Simulator) moduleForNodeLocked(node uint8) *module {
	first := s.pmNodeLocked(1)
	if node < first {
		return nil
	}
	i := int(node - first)
	if i >= len(s.modules) {
		return nil
	}
	return s.modules[i]
}

// Dictionary returns the bridge dictionary for the bridge node and the
// power module dictionary for fitted power module nodes.
func (s *Simulator) Dictionary(node uint8) (*od.Dictionary, bool) {
	if node == s.config.Node {
		return od.Bridge(), true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.moduleForNodeLocked(node) != nil {
		return od.PowerModule(), true
	}
	return nil, false
}

// ReadObject implements interaction.Store.
func (s *Simulator) ReadObject(_ context.Context, node uint8, addr od.Address) ([]byte, error) {
	if node == s.config.Node && addr.Index == od.IndexInterlinkDCContactor {
		return wire.Uint8(uint8(s.contactor.State())), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if node == s.config.Node {
		return s.readBridge(addr)
	}
	if m := s.moduleForNodeLocked(node); m != nil {
		return m.read(addr, s.activeType)
	}
	return nil, fmt.Errorf("node %d: %w", node, od.ErrObjectNotFound)
}

// WriteObject implements interaction.Store.
func (s *Simulator) WriteObject(_ context.Context, node uint8, addr od.Address, data []byte) error {
	if node == s.config.Node && addr.Index == od.IndexInterlinkDCContactor {
		return s.contactor.Apply(wire.InterlinkCommand(data[0]))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if node == s.config.Node {
		return s.writeBridge(addr, data)
	}
	if m := s.moduleForNodeLocked(node); m != nil {
		return m.write(addr, data, s.activeType)
	}
	return fmt.Errorf("node %d: %w", node, od.ErrObjectNotFound)
}

func (s *Simulator) readBridge(addr od.Address) ([]byte, error) {
	switch addr.Index {
	case od.IndexPMOutput:
		if m := s.moduleLocked(int(addr.Sub)); m != nil {
			return m.output.MarshalBinary()
		}
		return wire.VI{}.MarshalBinary()
	case od.IndexPMState:
		if m := s.moduleLocked(int(addr.Sub)); m != nil {
			return m.state.MarshalBinary()
		}
		return wire.PMState{}.MarshalBinary()
	case od.IndexPMMaxOutput:
		return s.maxOutput.MarshalBinary()
	case od.IndexFanConfiguration:
		if addr.Sub == od.SubFanConfigurationFanCount {
			return wire.Uint8(s.fanConfig.FanCount()), nil
		}
		return wire.Uint8(uint8(s.fanConfig)), nil
	case od.IndexFansState:
		return wire.Uint32(uint32(s.fanStatesLocked())), nil
	case od.IndexGroupsACContactors:
		return wire.Uint8(uint8(s.acContactors)), nil
	case od.IndexCabinetController:
		return wire.Uint8(uint8(s.cabinet)), nil
	case od.IndexPMAddress:
		return s.address.MarshalBinary()
	case od.IndexConfigPMType:
		return wire.Uint8(uint8(s.configuredType)), nil
	case od.IndexConfigPMTopology:
		if addr.Sub == od.SubConfigPMTopologyGroups {
			return wire.Uint8(s.topology.Groups), nil
		}
		return wire.Uint8(s.topology.PerGroup[addr.Sub-1]), nil
	case od.IndexConfigPMGroup:
		if addr.Sub == od.SubConfigPMGroupCount {
			return wire.Uint32(s.groups.Count), nil
		}
		return wire.Uint32(uint32(s.groups.Masks[addr.Sub-1])), nil
	case od.IndexConfigPMOffset:
		return wire.Uint8(s.offset), nil
	case od.IndexConfigPMCapabilities:
		if addr.Sub == od.SubConfigPMCapabilitiesCount {
			return wire.Uint8(wire.CapabilitiesCount), nil
		}
		v, _ := s.capabilities.Get(uint8(addr.Sub))
		return wire.Uint16(v), nil
	case od.IndexUpdateStatus:
		return s.update.statusAt(s.now()).MarshalBinary()
	}
	return nil, fmt.Errorf("%s: %w", addr, od.ErrObjectNotFound)
}

func (s *Simulator) writeBridge(addr od.Address, data []byte) error {
	switch addr.Index {
	case od.IndexPMMaxOutput:
		return s.maxOutput.UnmarshalBinary(data)
	case od.IndexFanConfiguration:
		s.fanConfig = wire.FanConfiguration(data[0])
		return s.persistLocked()
	case od.IndexFansState:
		s.fansRunning = wire.FanCommand(data[0]) == wire.FanStart
		s.debug("fans", "running", s.fansRunning)
		return nil
	case od.IndexGroupsACContactors:
		g := wire.ACContactorGroups(data[0])
		if extra := uint8(g) >> s.topology.Groups; extra != 0 {
			return &wire.ValidationError{Field: "ac contactors", Reason: fmt.Sprintf("0x%02x selects groups beyond %d", uint8(g), s.topology.Groups)}
		}
		s.acContactors = g
		return nil
	case od.IndexCabinetController:
		s.cabinet = wire.CabinetController(data[0])
		return s.persistLocked()
	case od.IndexConfigPMType:
		t := wire.PMType(data[0])
		if !t.IsValid() {
			return &wire.ValidationError{Field: "pm type", Reason: fmt.Sprintf("%d is undefined", data[0])}
		}
		s.configuredType = t
		s.debug("pm type configured", "type", t, "active", s.activeType)
		return s.persistLocked()
	case od.IndexConfigPMTopology:
		t := s.topology
		if addr.Sub == od.SubConfigPMTopologyGroups {
			t.Groups = data[0]
		} else {
			t.PerGroup[addr.Sub-1] = data[0]
		}
		if err := t.Validate(); err != nil {
			return err
		}
		s.topology = t
		return s.persistLocked()
	case od.IndexConfigPMGroup:
		v, err := wire.ParseUint32(data)
		if err != nil {
			return err
		}
		g := s.groups
		if addr.Sub == od.SubConfigPMGroupCount {
			g.Count = v
		} else {
			g.Masks[addr.Sub-1] = wire.GroupMask(v)
		}
		if err := g.Validate(); err != nil {
			return err
		}
		s.groups = g
		return s.persistLocked()
	case od.IndexConfigPMOffset:
		if int(s.config.PMNodeBase)+int(data[0])+od.MaxModules > 255 {
			return &wire.ValidationError{Field: "pm offset", Reason: fmt.Sprintf("%d moves power module nodes past 255", data[0])}
		}
		s.offset = data[0]
		return s.persistLocked()
	case od.IndexConfigPMCapabilities:
		v, err := wire.ParseUint16(data)
		if err != nil {
			return err
		}
		c := s.capabilities.With(uint8(addr.Sub), v)
		if err := c.Validate(s.activeType); err != nil {
			return err
		}
		s.capabilities = c
		s.customCaps = true
		return s.persistLocked()
	case od.IndexUpdateMode:
		return s.update.setMode(wire.UpdateMode(data[0]))
	case od.IndexUpdateStart:
		var v wire.SoftVersion
		if err := v.UnmarshalBinary(data); err != nil {
			return err
		}
		return s.startUpdateLocked(v)
	case od.IndexUpdateDataFrame:
		var f wire.DataFrame
		if err := f.UnmarshalBinary(data); err != nil {
			return err
		}
		return s.dataFrameLocked(f)
	case od.IndexUpdateDataEnd:
		return s.dataEndLocked()
	}
	return fmt.Errorf("%s: %w", addr, od.ErrObjectNotFound)
}

func (s *Simulator) moduleLocked(pm int) *module {
	if pm < 1 || pm > len(s.modules) {
		return nil
	}
	return s.modules[pm-1]
}

func (s *Simulator) fanStatesLocked() wire.FanStates {
	var f wire.FanStates
	if !s.fansRunning {
		return f
	}
	count := int(s.fanConfig.FanCount())
	for _, n := range s.config.FailedFans {
		if n <= count {
			f = f.WithFan(n, wire.FanError)
		}
	}
	return f
}

// PDO1 derives the process data the bridge broadcasts.
func (s *Simulator) PDO1() wire.BridgePDO1 {
	var status wire.BridgeStatus
	switch s.contactor.State() {
	case wire.InterlinkClosed:
		status |= wire.BridgeDCPlusClosed | wire.BridgeDCMinusClosed
	case wire.InterlinkError:
		status |= wire.BridgeDCPlusError | wire.BridgeDCMinusError
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configValidLocked() {
		status |= wire.BridgeConfigurationError
	}
	for _, m := range s.modules {
		if m.state.Decode(s.activeType).HasFault() {
			status |= wire.BridgeOutletError
			break
		}
	}
	return wire.BridgePDO1{Status: status}
}

// PMPDO1 derives the process data power module pm broadcasts. The module
// reports current regulation once its output reaches the current setpoint.
func (s *Simulator) PMPDO1(pm int) (wire.PMPDO1, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.moduleLocked(pm)
	if m == nil {
		return wire.PMPDO1{}, fmt.Errorf("power module %d not fitted", pm)
	}
	status := m.status(s.activeType).PDO()
	if m.enabled && m.setpoint.Current > 0 && m.output.Current >= m.setpoint.Current {
		status |= wire.PMPDOCurrentMode
	}
	return wire.PMPDO1{
		Voltage:     m.output.Voltage,
		Current:     m.output.Current,
		Temperature: int16(m.state.Temperature) * 10,
		Status:      status,
	}, nil
}

// configValidLocked reports whether type, topology, groups and
// capabilities agree with each other and with the fitted modules.
func (s *Simulator) configValidLocked() bool {
	if !s.activeType.IsValid() {
		return false
	}
	if s.topology.Validate() != nil || s.groups.Validate() != nil {
		return false
	}
	if !s.groups.Matches(s.topology) || s.topology.Modules() != len(s.modules) {
		return false
	}
	return s.capabilities.Validate(s.activeType) == nil
}

// SetModuleOutput sets the DC output reported for power module pm.
func (s *Simulator) SetModuleOutput(pm int, vi wire.VI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.moduleLocked(pm)
	if m == nil {
		return fmt.Errorf("power module %d not fitted", pm)
	}
	m.output = vi
	return nil
}

// SetModuleState sets the temperature and vendor state of power module pm.
func (s *Simulator) SetModuleState(pm int, state wire.PMState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.moduleLocked(pm)
	if m == nil {
		return fmt.Errorf("power module %d not fitted", pm)
	}
	m.state = state
	return nil
}

// Contactor returns the interlink contactor.
func (s *Simulator) Contactor() *interlink.Contactor {
	return s.contactor
}

// ActivePMType returns the power module type in use until restart.
func (s *Simulator) ActivePMType() wire.PMType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeType
}

func (s *Simulator) interlinkChanged(oldState, newState wire.InterlinkState, reason string) {
	s.debug("interlink", "old", oldState, "new", newState, "reason", reason)
	s.protocol.Log(log.StateEvent(log.LayerSDO, log.StateEntityInterlink, oldState.String(), newState.String(), reason))
}

func (s *Simulator) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
