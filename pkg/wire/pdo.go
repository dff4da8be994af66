package wire

import "fmt"

// BridgeStatus is the status word of the bridge PDO1.
type BridgeStatus uint32

const (
	BridgeDCPlusClosed       BridgeStatus = 1 << 0
	BridgeDCMinusClosed      BridgeStatus = 1 << 1
	BridgeOutletError        BridgeStatus = 1 << 2
	BridgeConfigurationError BridgeStatus = 1 << 3
	BridgeDCPlusError        BridgeStatus = 1 << 4
	BridgeDCMinusError       BridgeStatus = 1 << 5
)

var bridgeStatusFlags = []flagName[BridgeStatus]{
	{BridgeDCPlusClosed, "dc+Closed"},
	{BridgeDCMinusClosed, "dc-Closed"},
	{BridgeOutletError, "outletError"},
	{BridgeConfigurationError, "configurationError"},
	{BridgeDCPlusError, "dc+Error"},
	{BridgeDCMinusError, "dc-Error"},
}

const bridgeErrors = BridgeOutletError | BridgeConfigurationError | BridgeDCPlusError | BridgeDCMinusError

func (s BridgeStatus) Has(flag BridgeStatus) bool { return s&flag == flag }
func (s BridgeStatus) Flags() []string            { return setFlags(s, bridgeStatusFlags) }
func (s BridgeStatus) HasError() bool             { return s&bridgeErrors != 0 }

// String renders the set flags, "open" when nothing is set.
func (s BridgeStatus) String() string {
	if s == 0 {
		return "open"
	}
	return joinFlags(s.Flags())
}

// BridgePDO1 is the process data broadcast by the bridge.
//
// Layout: status uint32, two reserved uint16.
type BridgePDO1 struct {
	Status    BridgeStatus
	Reserved0 uint16
	Reserved1 uint16
}

// BridgePDO1Size is the encoded size of BridgePDO1.
const BridgePDO1Size = 8

func (p BridgePDO1) MarshalBinary() ([]byte, error) {
	b := make([]byte, BridgePDO1Size)
	le.PutUint32(b[0:], uint32(p.Status))
	le.PutUint16(b[4:], p.Reserved0)
	le.PutUint16(b[6:], p.Reserved1)
	return b, nil
}

func (p *BridgePDO1) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, BridgePDO1Size, "bridge pdo1"); err != nil {
		return err
	}
	p.Status = BridgeStatus(le.Uint32(data[0:]))
	p.Reserved0 = le.Uint16(data[4:])
	p.Reserved1 = le.Uint16(data[6:])
	return nil
}

// PMStatus is the converter status word of a power module (0x2101). PM
// PDO1 carries PMPDOStatus instead.
type PMStatus uint16

const (
	PMStatusEnabled            PMStatus = 1 << 0
	PMStatusGlobalError        PMStatus = 1 << 1
	PMStatusInputOvervoltage   PMStatus = 1 << 2
	PMStatusInputUndervoltage  PMStatus = 1 << 3
	PMStatusOutputOvervoltage  PMStatus = 1 << 4
	PMStatusOutputUndervoltage PMStatus = 1 << 5
	PMStatusFanFailure         PMStatus = 1 << 6
	PMStatusOvertemperature    PMStatus = 1 << 7
	PMStatusInputOvercurrent   PMStatus = 1 << 8
	PMStatusOutputOvercurrent  PMStatus = 1 << 9
	PMStatusAuxSupply          PMStatus = 1 << 10
	PMStatusInterlock          PMStatus = 1 << 11
	PMStatusResetDetected      PMStatus = 1 << 12
	PMStatusSetpointTimeout    PMStatus = 1 << 13
	PMStatusSetpointNotMet     PMStatus = 1 << 14
	PMStatusPFCError           PMStatus = 1 << 15
)

var pmStatusFlags = []flagName[PMStatus]{
	{PMStatusEnabled, "enabled"},
	{PMStatusGlobalError, "globalError"},
	{PMStatusInputOvervoltage, "inputOvervoltage"},
	{PMStatusInputUndervoltage, "inputUndervoltage"},
	{PMStatusOutputOvervoltage, "outputOvervoltage"},
	{PMStatusOutputUndervoltage, "outputUndervoltage"},
	{PMStatusFanFailure, "fanFailure"},
	{PMStatusOvertemperature, "overtemperature"},
	{PMStatusInputOvercurrent, "inputOvercurrent"},
	{PMStatusOutputOvercurrent, "outputOvercurrent"},
	{PMStatusAuxSupply, "auxSupply"},
	{PMStatusInterlock, "interlock"},
	{PMStatusResetDetected, "resetDetected"},
	{PMStatusSetpointTimeout, "setpointTimeout"},
	{PMStatusSetpointNotMet, "setpointNotMet"},
	{PMStatusPFCError, "pfcError"},
}

func (s PMStatus) Has(flag PMStatus) bool { return s&flag == flag }
func (s PMStatus) Flags() []string        { return setFlags(s, pmStatusFlags) }
func (s PMStatus) Enabled() bool          { return s&PMStatusEnabled != 0 }

// HasFault reports whether any bit other than enabled and reset detected
// is set.
func (s PMStatus) HasFault() bool {
	return s&^(PMStatusEnabled|PMStatusResetDetected) != 0
}

func (s PMStatus) String() string {
	if s == 0 {
		return "disabled"
	}
	return joinFlags(s.Flags())
}

// PDO returns the status word a power module broadcasts for s. Bits 0 to
// 12 carry over, the setpoint and PFC bits have no place in PDO1.
func (s PMStatus) PDO() PMPDOStatus {
	return PMPDOStatus(s) & pmPDOStatusMask
}

// PMPDOStatus is the status word of PM PDO1. It shares bits 0 to 12 with
// PMStatus, bits 13 and 14 are unused. Bit 15 is set while the module
// regulates its output current (CC) and clear in voltage regulation (CV).
type PMPDOStatus uint16

const (
	PMPDOChargerOn          PMPDOStatus = 1 << 0
	PMPDOGlobalError        PMPDOStatus = 1 << 1
	PMPDOInputOvervoltage   PMPDOStatus = 1 << 2
	PMPDOInputUndervoltage  PMPDOStatus = 1 << 3
	PMPDOOutputOvervoltage  PMPDOStatus = 1 << 4
	PMPDOOutputUndervoltage PMPDOStatus = 1 << 5
	PMPDOFanFailure         PMPDOStatus = 1 << 6
	PMPDOOvertemperature    PMPDOStatus = 1 << 7
	PMPDOInputOvercurrent   PMPDOStatus = 1 << 8
	PMPDOOutputOvercurrent  PMPDOStatus = 1 << 9
	PMPDOAuxUndervoltage    PMPDOStatus = 1 << 10
	PMPDOInterlock          PMPDOStatus = 1 << 11
	PMPDOResetDetected      PMPDOStatus = 1 << 12
	PMPDOCurrentMode        PMPDOStatus = 1 << 15
)

const pmPDOStatusMask = 1<<13 - 1

var pmPDOStatusFlags = []flagName[PMPDOStatus]{
	{PMPDOChargerOn, "chargerOn"},
	{PMPDOGlobalError, "globalError"},
	{PMPDOInputOvervoltage, "inputOvervoltage"},
	{PMPDOInputUndervoltage, "inputUndervoltage"},
	{PMPDOOutputOvervoltage, "outputOvervoltage"},
	{PMPDOOutputUndervoltage, "outputUndervoltage"},
	{PMPDOFanFailure, "fanFailure"},
	{PMPDOOvertemperature, "overtemperature"},
	{PMPDOInputOvercurrent, "inputOvercurrent"},
	{PMPDOOutputOvercurrent, "outputOvercurrent"},
	{PMPDOAuxUndervoltage, "auxUndervoltage"},
	{PMPDOInterlock, "interlock"},
	{PMPDOResetDetected, "resetDetected"},
	{PMPDOCurrentMode, "ccMode"},
}

const pmPDOFaults = pmPDOStatusMask &^ (PMPDOChargerOn | PMPDOResetDetected)

func (s PMPDOStatus) Has(flag PMPDOStatus) bool { return s&flag == flag }
func (s PMPDOStatus) Flags() []string           { return setFlags(s, pmPDOStatusFlags) }
func (s PMPDOStatus) ChargerOn() bool           { return s&PMPDOChargerOn != 0 }
func (s PMPDOStatus) CurrentMode() bool         { return s&PMPDOCurrentMode != 0 }

// HasFault reports whether a detection or protection bit is set. Charger
// on, reset detected and the regulation mode are not faults.
func (s PMPDOStatus) HasFault() bool { return s&pmPDOFaults != 0 }

func (s PMPDOStatus) String() string {
	if s == 0 {
		return "off"
	}
	return joinFlags(s.Flags())
}

// PMPDO1 is the process data broadcast by a power module.
//
// Layout: voltage uint16 (0.1 V), current uint16 (0.1 A), temperature
// int16 (0.1 °C), status uint16.
type PMPDO1 struct {
	Voltage     uint16
	Current     uint16
	Temperature int16
	Status      PMPDOStatus
}

// PMPDO1Size is the encoded size of PMPDO1.
const PMPDO1Size = 8

func (p PMPDO1) MarshalBinary() ([]byte, error) {
	b := make([]byte, PMPDO1Size)
	le.PutUint16(b[0:], p.Voltage)
	le.PutUint16(b[2:], p.Current)
	le.PutUint16(b[4:], uint16(p.Temperature))
	le.PutUint16(b[6:], uint16(p.Status))
	return b, nil
}

func (p *PMPDO1) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, PMPDO1Size, "pm pdo1"); err != nil {
		return err
	}
	p.Voltage = le.Uint16(data[0:])
	p.Current = le.Uint16(data[2:])
	p.Temperature = int16(le.Uint16(data[4:]))
	p.Status = PMPDOStatus(le.Uint16(data[6:]))
	return nil
}

func (p PMPDO1) String() string {
	return fmt.Sprintf("%.1fV %.1fA %.1f°C %s",
		float64(p.Voltage)/10, float64(p.Current)/10, float64(p.Temperature)/10, p.Status)
}
