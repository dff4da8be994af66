package bridge

import (
	"context"
	"fmt"

	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// PowerModule is the typed object API of one converter node (0x21xx).
type PowerModule struct {
	node
}

// NewPowerModule creates a PowerModule for node. The connection must
// serve the power module dictionary for node.
func NewPowerModule(conn Conn, nodeID uint8) *PowerModule {
	return &PowerModule{node: node{conn: conn, id: nodeID}}
}

// Node returns the node ID.
func (p *PowerModule) Node() uint8 {
	return p.id
}

// SetEnabled switches the converter on or off.
func (p *PowerModule) SetEnabled(ctx context.Context, on bool) error {
	var v uint8
	if on {
		v = 1
	}
	return p.writeUint8(ctx, od.Addr(od.IndexConvEnable, 0), v)
}

// Enabled reads the converter enable.
func (p *PowerModule) Enabled(ctx context.Context) (bool, error) {
	v, err := p.readUint8(ctx, od.Addr(od.IndexConvEnable, 0))
	return v == 1, err
}

// Status reads the converter status word.
func (p *PowerModule) Status(ctx context.Context) (wire.PMStatus, error) {
	v, err := p.readUint16(ctx, od.Addr(od.IndexConvStatus, 0))
	return wire.PMStatus(v), err
}

// Temperature reads the converter temperature in 0.1 °C.
func (p *PowerModule) Temperature(ctx context.Context) (int16, error) {
	return p.readInt16(ctx, od.Addr(od.IndexConvTemp, 0))
}

func (p *PowerModule) readVI(ctx context.Context, u, i od.Index) (wire.VI, error) {
	var vi wire.VI
	var err error
	if vi.Voltage, err = p.readUint16(ctx, od.Addr(u, 0)); err != nil {
		return vi, err
	}
	vi.Current, err = p.readUint16(ctx, od.Addr(i, 0))
	return vi, err
}

// ACInput reads the AC input voltage and current.
func (p *PowerModule) ACInput(ctx context.Context) (wire.VI, error) {
	return p.readVI(ctx, od.IndexACInputU, od.IndexACInputI)
}

// DCOutput reads the DC output voltage and current.
func (p *PowerModule) DCOutput(ctx context.Context) (wire.VI, error) {
	return p.readVI(ctx, od.IndexDCOutputU, od.IndexDCOutputI)
}

// Setpoint reads the DC output voltage and current setpoints.
func (p *PowerModule) Setpoint(ctx context.Context) (wire.VI, error) {
	return p.readVI(ctx, od.IndexDCOutputUSetpoint, od.IndexDCOutputISetpoint)
}

// SetSetpoint writes the DC output setpoints, voltage first.
func (p *PowerModule) SetSetpoint(ctx context.Context, vi wire.VI) error {
	if err := p.writeUint16(ctx, od.Addr(od.IndexDCOutputUSetpoint, 0), vi.Voltage); err != nil {
		return err
	}
	return p.writeUint16(ctx, od.Addr(od.IndexDCOutputISetpoint, 0), vi.Current)
}

// SlopeLimit reads the output current slope limit in 0.1 A/s.
func (p *PowerModule) SlopeLimit(ctx context.Context) (uint16, error) {
	return p.readUint16(ctx, od.Addr(od.IndexDCOutputISlopeLimit, 0))
}

// SetSlopeLimit writes the output current slope limit in 0.1 A/s.
func (p *PowerModule) SetSlopeLimit(ctx context.Context, v uint16) error {
	return p.writeUint16(ctx, od.Addr(od.IndexDCOutputISlopeLimit, 0), v)
}

// Capabilities reads the converter operating limits.
func (p *PowerModule) Capabilities(ctx context.Context) (wire.PMCapabilities, error) {
	var c wire.PMCapabilities
	var err error
	if c.Version, err = p.readUint16(ctx, od.Addr(od.IndexCapabilities, od.SubCapabilitiesVersion)); err != nil {
		return c, err
	}
	ranges := []struct {
		sub od.SubIndex
		dst *wire.MinMax
	}{
		{od.SubCapabilitiesACU, &c.ACU},
		{od.SubCapabilitiesACI, &c.ACI},
		{od.SubCapabilitiesDCU, &c.DCU},
		{od.SubCapabilitiesDCI, &c.DCI},
	}
	for _, r := range ranges {
		if err := p.read(ctx, od.Addr(od.IndexCapabilities, r.sub), r.dst); err != nil {
			return c, err
		}
	}
	if err := p.read(ctx, od.Addr(od.IndexCapabilities, od.SubCapabilitiesTemp), &c.Temp); err != nil {
		return c, err
	}
	c.Power, err = p.readUint16(ctx, od.Addr(od.IndexCapabilities, od.SubCapabilitiesPower))
	return c, err
}

// CoolingParameters reads the cooling configuration.
func (p *PowerModule) CoolingParameters(ctx context.Context) (wire.CoolingParameters, error) {
	var c wire.CoolingParameters
	var err error
	if c.Version, err = p.readUint16(ctx, od.Addr(od.IndexCoolingParameters, od.SubCoolingParametersVersion)); err != nil {
		return c, err
	}
	if c.Topology, err = p.readUint8(ctx, od.Addr(od.IndexCoolingParameters, od.SubCoolingParametersTopology)); err != nil {
		return c, err
	}
	if c.Airflow, err = p.readUint16(ctx, od.Addr(od.IndexCoolingParameters, od.SubCoolingParametersAirflow)); err != nil {
		return c, err
	}
	c.MinFanPWM, err = p.readUint8(ctx, od.Addr(od.IndexCoolingParameters, od.SubCoolingParametersMinFanPWM))
	return c, err
}

// SetCoolingParameters writes the writable cooling parameters. Version is
// read-only and ignored.
func (p *PowerModule) SetCoolingParameters(ctx context.Context, c wire.CoolingParameters) error {
	if err := p.writeUint8(ctx, od.Addr(od.IndexCoolingParameters, od.SubCoolingParametersTopology), c.Topology); err != nil {
		return err
	}
	if err := p.writeUint16(ctx, od.Addr(od.IndexCoolingParameters, od.SubCoolingParametersAirflow), c.Airflow); err != nil {
		return err
	}
	return p.writeUint8(ctx, od.Addr(od.IndexCoolingParameters, od.SubCoolingParametersMinFanPWM), c.MinFanPWM)
}

// CurrentTransferRatio reads the AC to DC current ratio in 0.001.
func (p *PowerModule) CurrentTransferRatio(ctx context.Context) (uint16, error) {
	return p.readUint16(ctx, od.Addr(od.IndexCurrentTransferRatio, 0))
}

// SetCurrentTransferRatio writes the AC to DC current ratio in 0.001.
func (p *PowerModule) SetCurrentTransferRatio(ctx context.Context, v uint16) error {
	return p.writeUint16(ctx, od.Addr(od.IndexCurrentTransferRatio, 0), v)
}

// Phases reads the number of AC input phases in use.
func (p *PowerModule) Phases(ctx context.Context) (uint8, error) {
	return p.readUint8(ctx, od.Addr(od.IndexNumberOfPhases, 0))
}

// PMSnapshot is the readable state of a power module node.
type PMSnapshot struct {
	Node         uint8
	Enabled      bool
	Status       wire.PMStatus
	Temperature  int16
	ACInput      wire.VI
	DCOutput     wire.VI
	Setpoint     wire.VI
	SlopeLimit   uint16
	Capabilities wire.PMCapabilities
	Cooling      wire.CoolingParameters
	Ratio        uint16
	Phases       uint8
}

// Snapshot reads every readable object of the power module.
func (p *PowerModule) Snapshot(ctx context.Context) (*PMSnapshot, error) {
	s := &PMSnapshot{Node: p.id}
	steps := []struct {
		name string
		read func() error
	}{
		{"enable", func() (err error) { s.Enabled, err = p.Enabled(ctx); return }},
		{"status", func() (err error) { s.Status, err = p.Status(ctx); return }},
		{"temperature", func() (err error) { s.Temperature, err = p.Temperature(ctx); return }},
		{"ac input", func() (err error) { s.ACInput, err = p.ACInput(ctx); return }},
		{"dc output", func() (err error) { s.DCOutput, err = p.DCOutput(ctx); return }},
		{"setpoint", func() (err error) { s.Setpoint, err = p.Setpoint(ctx); return }},
		{"slope limit", func() (err error) { s.SlopeLimit, err = p.SlopeLimit(ctx); return }},
		{"capabilities", func() (err error) { s.Capabilities, err = p.Capabilities(ctx); return }},
		{"cooling", func() (err error) { s.Cooling, err = p.CoolingParameters(ctx); return }},
		{"transfer ratio", func() (err error) { s.Ratio, err = p.CurrentTransferRatio(ctx); return }},
		{"phases", func() (err error) { s.Phases, err = p.Phases(ctx); return }},
	}
	for _, step := range steps {
		if err := step.read(); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", step.name, err)
		}
	}
	return s, nil
}
