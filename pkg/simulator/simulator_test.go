package simulator_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerbridge/pwb-go/pkg/bridge"
	"github.com/powerbridge/pwb-go/pkg/interaction"
	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/simulator"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *captureLogger) Log(ev log.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *captureLogger) states(entity log.StateEntity) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		if ev.StateChange != nil && ev.StateChange.Entity == entity {
			out = append(out, ev.StateChange.NewState)
		}
	}
	return out
}

type rig struct {
	sim    *simulator.Simulator
	client *interaction.Client
	pwb    *bridge.Bridge
}

func newRig(t *testing.T, cfg simulator.Config, opts ...simulator.Option) *rig {
	t.Helper()
	sim, err := simulator.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { sim.Close() })

	client := interaction.NewLoopback(interaction.NewServer(sim), od.Bridge())
	for _, n := range sim.PMNodes() {
		client.SetNodeDictionary(n, od.PowerModule())
	}
	return &rig{sim: sim, client: client, pwb: bridge.New(client, sim.Node())}
}

func TestDefaultConfigSnapshot(t *testing.T) {
	r := newRig(t, simulator.DefaultConfig())
	ctx := context.Background()

	snap, err := r.pwb.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, wire.PMTypeInfy75025, snap.PMType)
	assert.Equal(t, wire.Topology{Groups: 1, PerGroup: [2]uint8{4, 0}}, snap.Topology)
	assert.Equal(t, wire.MaskOf(1, 2, 3, 4), snap.Groups.Masks[0])
	assert.Equal(t, wire.PMTypeInfy75025.DefaultCapabilities(), snap.Capabilities)
	assert.Equal(t, wire.FanConfigHC300, snap.FanConfiguration)
	assert.Equal(t, uint8(2), snap.FanCount)
	assert.Equal(t, wire.InterlinkOpen, snap.Interlink)
	assert.Equal(t, wire.PMAddress{Address: 1, Group: 1}, snap.Address)
	assert.True(t, snap.UpdateStatus.Done())
	assert.Len(t, snap.Modules, 4)
	assert.Empty(t, snap.Faults())
	assert.Zero(t, r.sim.PDO1().Status&wire.BridgeConfigurationError)
}

func TestParseConfig(t *testing.T) {
	cfg, err := simulator.ParseConfig([]byte(`
node: 12
pmType: "Increase,500V/30A"
failedFans: [2]
interlinkTimeout: 2s
modules:
  - { voltage: 400, current: 12.5, temperature: 31, state: 0x0200 }
  - { voltage: 400, current: 12.5 }
update:
  processingDelay: 50ms
  fail: { stage: end, image: 2, error: 72, detail: 7 }
`))
	require.NoError(t, err)

	assert.Equal(t, uint8(12), cfg.Node)
	assert.Equal(t, uint8(simulator.DefaultPMNodeBase), cfg.PMNodeBase)
	assert.Equal(t, 2*time.Second, cfg.InterlinkTimeout)
	assert.Len(t, cfg.Modules, 2)
	assert.Equal(t, uint32(0x0200), cfg.Modules[0].State)
	assert.Equal(t, 50*time.Millisecond, cfg.Update.ProcessingDelay)
	require.NotNil(t, cfg.Update.Fail)
	assert.Equal(t, uint8(72), cfg.Update.Fail.Error)
}

func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"BadYAML", "node: ["},
		{"NodeZero", "node: 0"},
		{"NodeOverlapsModules", "node: 33"},
		{"UnknownType", "pmType: Foo"},
		{"TooManyModules", "modules: [{},{},{},{},{},{},{},{},{}]"},
		{"BadFan", "failedFans: [17]"},
		{"BadStage", "update: { fail: { stage: middle } }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := simulator.ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestModuleOutputAndState(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.Modules[1] = simulator.ModuleConfig{Voltage: 500, Current: 20, Temperature: 40}
	r := newRig(t, cfg)
	ctx := context.Background()

	out, err := r.pwb.Output(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, wire.NewVI(500, 20), out)

	require.NoError(t, r.sim.SetModuleState(3, wire.PMState{Temperature: 70, State: [3]byte{0, 0x02, 0}}))
	st, err := r.pwb.State(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint8(70), st.State.Temperature)
	assert.True(t, st.HasFault(), "InfyPowerModuleFault")
	assert.Equal(t, wire.VendorInfy, st.Vendor.Vendor())
	assert.NotZero(t, r.sim.PDO1().Status&wire.BridgeOutletError)

	// Unfitted modules read as zero.
	out, err = r.pwb.Output(ctx, 8)
	require.NoError(t, err)
	assert.Zero(t, out)

	_, err = r.pwb.Output(ctx, 9)
	assert.ErrorIs(t, err, bridge.ErrInvalidModule)
	assert.Error(t, r.sim.SetModuleOutput(5, wire.VI{}))
}

func TestInterlinkThroughStore(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.InterlinkTimeout = 300 * time.Millisecond
	logger := &captureLogger{}
	r := newRig(t, cfg, simulator.WithProtocolLogger(logger))
	ctx := context.Background()

	require.NoError(t, r.pwb.SetInterlink(ctx, wire.InterlinkTimedEnable))
	st, err := r.pwb.Interlink(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.InterlinkClosed, st)
	assert.Equal(t, wire.BridgeDCPlusClosed|wire.BridgeDCMinusClosed, r.sim.PDO1().Status)

	assert.Eventually(t, func() bool {
		st, err := r.pwb.Interlink(ctx)
		return err == nil && st == wire.InterlinkOpen
	}, 2*time.Second, 10*time.Millisecond)

	// Reserved commands are aborted by the bridge.
	err = r.client.WriteUint8(ctx, r.sim.Node(), od.Addr(od.IndexInterlinkDCContactor, 0), 7)
	assert.ErrorIs(t, err, wire.ErrInvalidValue)

	r.sim.Contactor().SetFault(errors.New("welded"))
	assert.Equal(t, wire.BridgeDCPlusError|wire.BridgeDCMinusError, r.sim.PDO1().Status)
	err = r.pwb.SetInterlink(ctx, wire.InterlinkForcedEnable)
	assert.ErrorIs(t, err, wire.ErrDeviceState)

	assert.Equal(t, []string{"closed", "open", "error"}, logger.states(log.StateEntityInterlink))
}

func TestFans(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.FailedFans = []int{2, 3}
	r := newRig(t, cfg)
	ctx := context.Background()

	states, err := r.pwb.FanStates(ctx)
	require.NoError(t, err)
	assert.Zero(t, states, "fans stopped")

	require.NoError(t, r.pwb.SetFans(ctx, wire.FanStart))
	states, err = r.pwb.FanStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, states.Failed(), "fan 3 is not fitted")

	require.NoError(t, r.pwb.SetFanConfiguration(ctx, wire.FanConfigNone))
	n, err := r.pwb.FanCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = r.client.WriteUint8(ctx, r.sim.Node(), od.Addr(od.IndexFansState, 0), 2)
	assert.ErrorIs(t, err, od.ErrValueTooHigh)
}

func TestConfigurationValidation(t *testing.T) {
	r := newRig(t, simulator.DefaultConfig())
	ctx := context.Background()
	node := r.sim.Node()

	tests := []struct {
		name  string
		write func() error
		want  error
	}{
		{"UndefinedPMType", func() error {
			return r.client.WriteUint8(ctx, node, od.Addr(od.IndexConfigPMType, 0), 0)
		}, wire.ErrInvalidValue},
		{"PMTypeAboveMax", func() error {
			return r.client.WriteUint8(ctx, node, od.Addr(od.IndexConfigPMType, 0), 8)
		}, od.ErrValueTooHigh},
		{"TopologySecondGroupUnused", func() error {
			return r.client.WriteUint8(ctx, node, od.Addr(od.IndexConfigPMTopology, od.SubConfigPMTopologyGroup2), 5)
		}, nil},
		{"TopologyTotalAboveEight", func() error {
			return r.client.WriteUint8(ctx, node, od.Addr(od.IndexConfigPMTopology, od.SubConfigPMTopologyGroups), 2)
		}, wire.ErrInvalidValue},
		{"OverlappingGroups", func() error {
			return r.client.WriteUint32(ctx, node, od.Addr(od.IndexConfigPMGroup, od.SubConfigPMGroupMask2), uint32(wire.MaskOf(4, 5)))
		}, wire.ErrInvalidValue},
		{"CapabilityAboveType", func() error {
			return r.client.WriteUint16(ctx, node, od.Addr(od.IndexConfigPMCapabilities, od.SubConfigPMCapabilitiesVoltage), 7501)
		}, wire.ErrInvalidValue},
		{"CapabilityZero", func() error {
			return r.client.WriteUint16(ctx, node, od.Addr(od.IndexConfigPMCapabilities, od.SubConfigPMCapabilitiesPower), 0)
		}, wire.ErrInvalidValue},
		{"ACContactorBeyondGroups", func() error {
			return r.pwb.SetACContactors(ctx, wire.ACContactorGroups(0).With(2, true))
		}, wire.ErrInvalidValue},
		{"CountReadOnly", func() error {
			return r.client.WriteUint8(ctx, node, od.Addr(od.IndexConfigPMCapabilities, od.SubConfigPMCapabilitiesCount), 3)
		}, od.ErrReadOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.write()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Group 2 has 5 modules now but groups 1+2 would exceed 8.
	topo, err := r.pwb.Topology(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), topo.Groups)
}

func TestTypedSettersValidateLocally(t *testing.T) {
	r := newRig(t, simulator.DefaultConfig())
	ctx := context.Background()

	err := r.pwb.SetTopology(ctx, wire.Topology{Groups: 3})
	assert.ErrorIs(t, err, wire.ErrInvalidValue)

	err = r.pwb.SetGroups(ctx, wire.Groups{Count: 2, Masks: [2]wire.GroupMask{wire.MaskOf(1, 2), wire.MaskOf(2, 3)}})
	assert.ErrorIs(t, err, wire.ErrInvalidValue)

	err = r.pwb.SetCapabilities(ctx, wire.Capabilities{Voltage: 9000, Current: 100, Power: 100})
	assert.ErrorIs(t, err, wire.ErrInvalidValue)

	err = r.pwb.SetInterlink(ctx, wire.InterlinkCommand(3))
	assert.ErrorIs(t, err, wire.ErrInvalidValue)
}

func TestGroupsAndTopology(t *testing.T) {
	r := newRig(t, simulator.DefaultConfig())
	ctx := context.Background()

	topo := wire.Topology{Groups: 2, PerGroup: [2]uint8{2, 2}}
	groups := wire.Groups{Count: 2, Masks: [2]wire.GroupMask{wire.MaskOf(1, 2), wire.MaskOf(3, 4)}}

	require.NoError(t, r.pwb.SetTopology(ctx, topo))
	require.NoError(t, r.pwb.SetGroups(ctx, groups))

	got, err := r.pwb.Groups(ctx)
	require.NoError(t, err)
	assert.Equal(t, groups, got)
	gotTopo, err := r.pwb.Topology(ctx)
	require.NoError(t, err)
	assert.Equal(t, topo, gotTopo)
	assert.Zero(t, r.sim.PDO1().Status&wire.BridgeConfigurationError)

	require.NoError(t, r.pwb.SetACContactors(ctx, wire.ACContactorGroups(0).With(2, true)))
	ac, err := r.pwb.ACContactors(ctx)
	require.NoError(t, err)
	assert.True(t, ac.Closed(2))

	snap, err := r.pwb.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Modules[3].Group)

	// A mismatching topology is flagged in PDO1.
	require.NoError(t, r.pwb.SetTopology(ctx, wire.Topology{Groups: 2, PerGroup: [2]uint8{2, 1}}))
	assert.NotZero(t, r.sim.PDO1().Status&wire.BridgeConfigurationError)
}

func TestReassignModulesBetweenGroups(t *testing.T) {
	r := newRig(t, simulator.DefaultConfig())
	ctx := context.Background()

	require.NoError(t, r.pwb.SetTopology(ctx, wire.Topology{Groups: 2, PerGroup: [2]uint8{2, 2}}))
	require.NoError(t, r.pwb.SetGroups(ctx, wire.Groups{Count: 2, Masks: [2]wire.GroupMask{wire.MaskOf(1, 2), wire.MaskOf(3, 4)}}))

	// Power module 3 moves from group 2 to group 1.
	groups := wire.Groups{Count: 2, Masks: [2]wire.GroupMask{wire.MaskOf(1, 2, 3), wire.MaskOf(4)}}
	require.NoError(t, r.pwb.SetGroups(ctx, groups))
	topo := wire.Topology{Groups: 2, PerGroup: [2]uint8{3, 1}}
	require.NoError(t, r.pwb.SetTopology(ctx, topo))

	got, err := r.pwb.Groups(ctx)
	require.NoError(t, err)
	assert.Equal(t, groups, got)
	gotTopo, err := r.pwb.Topology(ctx)
	require.NoError(t, err)
	assert.Equal(t, topo, gotTopo)
	assert.Zero(t, r.sim.PDO1().Status&wire.BridgeConfigurationError)

	// Two modules exchange groups.
	groups = wire.Groups{Count: 2, Masks: [2]wire.GroupMask{wire.MaskOf(1, 4), wire.MaskOf(2, 3)}}
	require.NoError(t, r.pwb.SetGroups(ctx, groups))
	got, err = r.pwb.Groups(ctx)
	require.NoError(t, err)
	assert.Equal(t, groups, got)

	// Group sizes swap while the total stays at the maximum.
	require.NoError(t, r.pwb.SetTopology(ctx, wire.Topology{Groups: 2, PerGroup: [2]uint8{4, 4}}))
	topo = wire.Topology{Groups: 2, PerGroup: [2]uint8{6, 2}}
	require.NoError(t, r.pwb.SetTopology(ctx, topo))
	gotTopo, err = r.pwb.Topology(ctx)
	require.NoError(t, err)
	assert.Equal(t, topo, gotTopo)

	topo = wire.Topology{Groups: 2, PerGroup: [2]uint8{1, 7}}
	require.NoError(t, r.pwb.SetTopology(ctx, topo))
	gotTopo, err = r.pwb.Topology(ctx)
	require.NoError(t, err)
	assert.Equal(t, topo, gotTopo)
}

func TestPMTypeEffectiveAfterRestart(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.StatePath = filepath.Join(t.TempDir(), "bridge.json")
	r := newRig(t, cfg)
	ctx := context.Background()

	require.NoError(t, r.pwb.SetPMType(ctx, wire.PMTypeUUGr100030))
	got, err := r.pwb.PMType(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.PMTypeUUGr100030, got)
	assert.Equal(t, wire.PMTypeInfy75025, r.sim.ActivePMType())

	// The bridge still checks capabilities against the active type.
	err = r.pwb.SetCapabilities(ctx, wire.Capabilities{Voltage: 9000, Current: 250, Power: 200})
	assert.ErrorIs(t, err, wire.ErrInvalidValue)

	require.NoError(t, r.sim.Restart())
	assert.Equal(t, wire.PMTypeUUGr100030, r.sim.ActivePMType())
	caps, err := r.pwb.Capabilities(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.PMTypeUUGr100030.DefaultCapabilities(), caps)
}

func TestPersistenceAcrossRestart(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.StatePath = filepath.Join(t.TempDir(), "state", "bridge.json")
	r := newRig(t, cfg)
	ctx := context.Background()

	require.NoError(t, r.pwb.SetCabinetController(ctx, wire.CabinetControllerCabinet))
	require.NoError(t, r.pwb.SetOffset(ctx, 2))
	caps := wire.Capabilities{Voltage: 7000, Current: 200, Power: 150}
	require.NoError(t, r.pwb.SetCapabilities(ctx, caps))
	require.NoError(t, r.pwb.SetMaxOutput(ctx, wire.NewVI(700, 100)))

	// A fresh simulator on the same file sees the persisted objects.
	r2 := newRig(t, cfg)
	cc, err := r2.pwb.CabinetController(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.CabinetControllerCabinet, cc)
	off, err := r2.pwb.Offset(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), off)
	got, err := r2.pwb.Capabilities(ctx)
	require.NoError(t, err)
	assert.Equal(t, caps, got)

	// Max output is volatile.
	mo, err := r2.pwb.MaxOutput(ctx)
	require.NoError(t, err)
	assert.Zero(t, mo)

	// The offset moves the power module nodes.
	assert.Equal(t, uint8(simulator.DefaultPMNodeBase+2), r2.sim.PMNodes()[0])
}

func TestPowerModuleNode(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.Modules[0] = simulator.ModuleConfig{Voltage: 600, Current: 20, Temperature: 35, ACVoltage: 400}
	r := newRig(t, cfg)
	ctx := context.Background()

	pm := bridge.NewPowerModule(r.client, r.sim.PMNodes()[0])
	require.NoError(t, pm.SetEnabled(ctx, true))
	require.NoError(t, pm.SetSetpoint(ctx, wire.NewVI(600, 20)))
	require.NoError(t, pm.SetSlopeLimit(ctx, 50))

	snap, err := pm.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Enabled)
	assert.True(t, snap.Status.Enabled())
	assert.Equal(t, int16(350), snap.Temperature)
	assert.Equal(t, wire.NewVI(600, 20), snap.DCOutput)
	assert.Equal(t, wire.NewVI(600, 20), snap.Setpoint)
	assert.Equal(t, uint16(50), snap.SlopeLimit)
	assert.Equal(t, uint16(4000), snap.ACInput.Voltage)
	assert.NotZero(t, snap.ACInput.Current)
	assert.Equal(t, uint16(7500), snap.Capabilities.DCU.Max)
	assert.Equal(t, uint8(3), snap.Phases)

	err = pm.SetSetpoint(ctx, wire.NewVI(900, 10))
	assert.ErrorIs(t, err, wire.ErrInvalidValue)

	cool := snap.Cooling
	cool.MinFanPWM = 101
	err = pm.SetCoolingParameters(ctx, cool)
	assert.ErrorIs(t, err, od.ErrValueTooHigh)

	// Nodes beyond the fitted modules do not answer.
	other := bridge.NewPowerModule(r.client, r.sim.PMNodes()[3]+1)
	_, err = other.Status(ctx)
	assert.Error(t, err)
}

func TestPowerModulePDO1(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.Modules[0] = simulator.ModuleConfig{Voltage: 600, Current: 20, Temperature: 35, ACVoltage: 400}
	r := newRig(t, cfg)
	ctx := context.Background()

	pdo, err := r.sim.PMPDO1(1)
	require.NoError(t, err)
	assert.Equal(t, wire.PMPDO1{Voltage: 6000, Current: 200, Temperature: 350}, pdo)

	pm := bridge.NewPowerModule(r.client, r.sim.PMNodes()[0])
	require.NoError(t, pm.SetEnabled(ctx, true))
	require.NoError(t, pm.SetSetpoint(ctx, wire.NewVI(700, 25)))
	pdo, err = r.sim.PMPDO1(1)
	require.NoError(t, err)
	assert.Equal(t, "chargerOn", pdo.Status.String())

	// Output at the current setpoint is current regulation, not a fault.
	require.NoError(t, r.sim.SetModuleOutput(1, wire.NewVI(650, 25)))
	pdo, err = r.sim.PMPDO1(1)
	require.NoError(t, err)
	assert.True(t, pdo.Status.CurrentMode())
	assert.False(t, pdo.Status.HasFault())

	raw, err := pdo.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x80}, raw[6:])

	require.NoError(t, r.sim.SetModuleState(1, wire.PMState{Temperature: 70, State: [3]byte{0, 0x02, 0}}))
	pdo, err = r.sim.PMPDO1(1)
	require.NoError(t, err)
	assert.True(t, pdo.Status.Has(wire.PMPDOGlobalError))
	assert.True(t, pdo.Status.HasFault())
	assert.Equal(t, int16(700), pdo.Temperature)

	_, err = r.sim.PMPDO1(5)
	assert.Error(t, err)
}
