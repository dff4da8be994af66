package simulator

import (
	"fmt"

	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Fixed values of the simulated converters.
const (
	capabilitiesVersion = 1
	coolingVersion      = 1
	defaultSlopeLimit   = 100  // 0.1 A/s
	defaultRatio        = 1000 // 0.001
	defaultPhases       = 3
	defaultAirflow      = 120
	defaultMinFanPWM    = 20
)

// module is one power module: its bridge view (0x2400/0x2401) and its own
// converter node.
type module struct {
	config ModuleConfig

	output wire.VI
	state  wire.PMState

	enabled    bool
	setpoint   wire.VI
	slopeLimit uint16
	ratio      uint16
	cooling    wire.CoolingParameters
}

func newModule(c ModuleConfig) *module {
	m := &module{config: c}
	m.reset()
	return m
}

func (m *module) reset() {
	m.output = wire.NewVI(m.config.Voltage, m.config.Current)
	m.state = wire.PMState{
		Temperature: m.config.Temperature,
		State: [3]byte{
			byte(m.config.State),
			byte(m.config.State >> 8),
			byte(m.config.State >> 16),
		},
	}
	m.enabled = false
	m.setpoint = wire.VI{}
	m.slopeLimit = defaultSlopeLimit
	m.ratio = defaultRatio
	m.cooling = wire.CoolingParameters{
		Version:   coolingVersion,
		Airflow:   defaultAirflow,
		MinFanPWM: defaultMinFanPWM,
	}
}

// capabilities derives the converter limits from the power module type.
func capabilities(t wire.PMType) wire.PMCapabilities {
	def := t.DefaultCapabilities()
	return wire.PMCapabilities{
		Version: capabilitiesVersion,
		ACU:     wire.MinMax{Min: 2600, Max: 5300},
		ACI:     wire.MinMax{Min: 0, Max: 800},
		DCU:     wire.MinMax{Min: def.Voltage / 5, Max: def.Voltage},
		DCI:     wire.MinMax{Min: 0, Max: def.Current},
		Temp:    wire.TempRange{Min: -400, Max: 750},
		Power:   def.Power,
	}
}

func (m *module) status(t wire.PMType) wire.PMStatus {
	var s wire.PMStatus
	if m.enabled {
		s |= wire.PMStatusEnabled
	}
	if m.state.Decode(t).HasFault() {
		s |= wire.PMStatusGlobalError
	}
	return s
}

func (m *module) read(addr od.Address, t wire.PMType) ([]byte, error) {
	switch addr.Index {
	case od.IndexConvEnable:
		if m.enabled {
			return wire.Uint8(1), nil
		}
		return wire.Uint8(0), nil
	case od.IndexConvStatus:
		return wire.Uint16(uint16(m.status(t))), nil
	case od.IndexConvTemp:
		return wire.Uint16(uint16(int16(m.state.Temperature) * 10)), nil
	case od.IndexACInputU:
		return wire.Uint16(uint16(m.config.ACVoltage * 10)), nil
	case od.IndexACInputI:
		return wire.Uint16(m.acCurrent()), nil
	case od.IndexDCOutputU:
		return wire.Uint16(m.output.Voltage), nil
	case od.IndexDCOutputI:
		return wire.Uint16(m.output.Current), nil
	case od.IndexDCOutputUSetpoint:
		return wire.Uint16(m.setpoint.Voltage), nil
	case od.IndexDCOutputISetpoint:
		return wire.Uint16(m.setpoint.Current), nil
	case od.IndexDCOutputISlopeLimit:
		return wire.Uint16(m.slopeLimit), nil
	case od.IndexCapabilities:
		return readCapabilities(capabilities(t), addr.Sub)
	case od.IndexCoolingParameters:
		return m.readCooling(addr.Sub)
	case od.IndexCurrentTransferRatio:
		return wire.Uint16(m.ratio), nil
	case od.IndexNumberOfPhases:
		return wire.Uint8(defaultPhases), nil
	}
	return nil, fmt.Errorf("%s: %w", addr, od.ErrObjectNotFound)
}

// acCurrent estimates the AC input current in 0.1 A from the DC output
// power, the transfer ratio and three phases.
func (m *module) acCurrent() uint16 {
	if m.config.ACVoltage <= 0 {
		return 0
	}
	watts := m.output.Watts() * float64(m.ratio) / 1000
	amps := watts / (m.config.ACVoltage * defaultPhases)
	return uint16(amps * 10)
}

func readCapabilities(c wire.PMCapabilities, sub od.SubIndex) ([]byte, error) {
	switch sub {
	case od.SubCapabilitiesCount:
		return wire.Uint8(wire.PMCapabilitiesCount), nil
	case od.SubCapabilitiesVersion:
		return wire.Uint16(c.Version), nil
	case od.SubCapabilitiesACU:
		return c.ACU.MarshalBinary()
	case od.SubCapabilitiesACI:
		return c.ACI.MarshalBinary()
	case od.SubCapabilitiesDCU:
		return c.DCU.MarshalBinary()
	case od.SubCapabilitiesDCI:
		return c.DCI.MarshalBinary()
	case od.SubCapabilitiesTemp:
		return c.Temp.MarshalBinary()
	case od.SubCapabilitiesPower:
		return wire.Uint16(c.Power), nil
	}
	return nil, od.ErrSubIndexNotFound
}

func (m *module) readCooling(sub od.SubIndex) ([]byte, error) {
	switch sub {
	case od.SubCoolingParametersCount:
		return wire.Uint8(wire.CoolingParametersCount), nil
	case od.SubCoolingParametersVersion:
		return wire.Uint16(m.cooling.Version), nil
	case od.SubCoolingParametersTopology:
		return wire.Uint8(m.cooling.Topology), nil
	case od.SubCoolingParametersAirflow:
		return wire.Uint16(m.cooling.Airflow), nil
	case od.SubCoolingParametersMinFanPWM:
		return wire.Uint8(m.cooling.MinFanPWM), nil
	}
	return nil, od.ErrSubIndexNotFound
}

func (m *module) write(addr od.Address, data []byte, t wire.PMType) error {
	switch addr.Index {
	case od.IndexConvEnable:
		m.enabled = data[0] == 1
		return nil
	case od.IndexDCOutputUSetpoint, od.IndexDCOutputISetpoint:
		v, err := wire.ParseUint16(data)
		if err != nil {
			return err
		}
		c := capabilities(t)
		if addr.Index == od.IndexDCOutputUSetpoint {
			if v != 0 && !c.DCU.Contains(v) {
				return &wire.ValidationError{Field: "voltage setpoint", Reason: fmt.Sprintf("%d outside %s", v, c.DCU)}
			}
			m.setpoint.Voltage = v
			return nil
		}
		if !c.DCI.Contains(v) {
			return &wire.ValidationError{Field: "current setpoint", Reason: fmt.Sprintf("%d outside %s", v, c.DCI)}
		}
		m.setpoint.Current = v
		return nil
	case od.IndexDCOutputISlopeLimit:
		v, err := wire.ParseUint16(data)
		if err != nil {
			return err
		}
		m.slopeLimit = v
		return nil
	case od.IndexCoolingParameters:
		switch addr.Sub {
		case od.SubCoolingParametersTopology:
			m.cooling.Topology = data[0]
		case od.SubCoolingParametersAirflow:
			v, err := wire.ParseUint16(data)
			if err != nil {
				return err
			}
			m.cooling.Airflow = v
		case od.SubCoolingParametersMinFanPWM:
			m.cooling.MinFanPWM = data[0]
		}
		return nil
	case od.IndexCurrentTransferRatio:
		v, err := wire.ParseUint16(data)
		if err != nil {
			return err
		}
		m.ratio = v
		return nil
	}
	return fmt.Errorf("%s: %w", addr, od.ErrObjectNotFound)
}
