package wire

import "fmt"

// PMState is the temperature and vendor specific state of one power
// module (object 0x2401, sub-index 1..8).
//
// Layout: temperature uint8 (1 °C), then state tab0, tab1, tab2.
type PMState struct {
	Temperature uint8
	State       [3]byte
}

// PMStateSize is the encoded size of PMState.
const PMStateSize = 4

// MarshalBinary encodes the state.
func (s PMState) MarshalBinary() ([]byte, error) {
	return []byte{s.Temperature, s.State[0], s.State[1], s.State[2]}, nil
}

// UnmarshalBinary decodes the state.
func (s *PMState) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, PMStateSize, "pm state"); err != nil {
		return err
	}
	s.Temperature = data[0]
	copy(s.State[:], data[1:])
	return nil
}

// Raw returns the three state tabs as one integer, tab0 in the low byte.
func (s PMState) Raw() uint32 {
	return uint32(s.State[0]) | uint32(s.State[1])<<8 | uint32(s.State[2])<<16
}

// Decode interprets the state tabs for the vendor of t.
func (s PMState) Decode(t PMType) VendorState {
	switch t.Vendor() {
	case VendorInfy:
		return InfyState(s.Raw())
	case VendorIncrease:
		return IncreaseState(s.Raw())
	case VendorUUGreen:
		return UUGreenState(s.Raw())
	default:
		return RawState(s.Raw())
	}
}

// String returns the temperature and raw state tabs.
func (s PMState) String() string {
	return fmt.Sprintf("%d°C [%02x %02x %02x]", s.Temperature, s.State[0], s.State[1], s.State[2])
}

// VendorState is a decoded vendor state register.
type VendorState interface {
	Vendor() Vendor
	// Flags returns the names of the bits set, in bit order.
	Flags() []string
	// HasFault reports whether an error bit is set. Informational bits
	// such as shutdown or walk-in do not count.
	HasFault() bool
	String() string
}

// InfyState is the InfyPower state register.
type InfyState uint32

const (
	// tab0
	InfyDCOutputShortCircuit InfyState = 1 << 0
	InfyInSleeping           InfyState = 1 << 4

	// tab1
	InfyShutdownOnDCSide     InfyState = 1 << 8
	InfyPowerModuleFault     InfyState = 1 << 9
	InfyPowerModuleProtected InfyState = 1 << 10
	InfyFanFailure           InfyState = 1 << 11
	InfyTemperatureOverhigh  InfyState = 1 << 12
	InfyDCOutputOvervoltage  InfyState = 1 << 13
	InfyWalkInEnabled        InfyState = 1 << 14
	InfyCommunicationLost    InfyState = 1 << 15

	// tab2
	InfyPowerIsLimited         InfyState = 1 << 16
	InfyRepeatedModuleID       InfyState = 1 << 17
	InfyUnequalSharingCurrent  InfyState = 1 << 18
	InfyACInputPhaseLost       InfyState = 1 << 19
	InfyACInputPhaseUnbalanced InfyState = 1 << 20
	InfyACInputUndervoltage    InfyState = 1 << 21
	InfyACInputOvervoltage     InfyState = 1 << 22
	InfyShutdownOnPFCSide      InfyState = 1 << 23
)

const infyInformational = InfyShutdownOnDCSide | InfyWalkInEnabled | InfyShutdownOnPFCSide

var infyFlags = []flagName[InfyState]{
	{InfyDCOutputShortCircuit, "dcOutputShortCircuit"},
	{InfyInSleeping, "inSleeping"},
	{InfyShutdownOnDCSide, "shutdownOnDcSide"},
	{InfyPowerModuleFault, "powerModuleFault"},
	{InfyPowerModuleProtected, "powerModuleProtected"},
	{InfyFanFailure, "fanFailure"},
	{InfyTemperatureOverhigh, "temperatureOverhigh"},
	{InfyDCOutputOvervoltage, "dcOutputOvervoltage"},
	{InfyWalkInEnabled, "walkInEnabled"},
	{InfyCommunicationLost, "communicationLost"},
	{InfyPowerIsLimited, "powerIsLimited"},
	{InfyRepeatedModuleID, "repeatedModuleId"},
	{InfyUnequalSharingCurrent, "unequalSharingCurrent"},
	{InfyACInputPhaseLost, "acInputPhaseLost"},
	{InfyACInputPhaseUnbalanced, "acInputPhaseUnbalanced"},
	{InfyACInputUndervoltage, "acInputUndervoltage"},
	{InfyACInputOvervoltage, "acInputOvervoltage"},
	{InfyShutdownOnPFCSide, "shutdownOnPfcSide"},
}

func (s InfyState) Vendor() Vendor          { return VendorInfy }
func (s InfyState) Has(flag InfyState) bool { return s&flag == flag }
func (s InfyState) Flags() []string         { return setFlags(s, infyFlags) }
func (s InfyState) String() string          { return joinFlags(s.Flags()) }

func (s InfyState) HasFault() bool {
	return s&^infyInformational&infyMask != 0
}

var infyMask = func() InfyState {
	var m InfyState
	for _, f := range infyFlags {
		m |= f.mask
	}
	return m
}()

// IncreaseState is the Increase state register. Tab2 is reserved.
type IncreaseState uint32

const (
	// tab0
	IncreaseShutdown             IncreaseState = 1 << 0
	IncreaseFault                IncreaseState = 1 << 1
	IncreaseCurrentIsLimited     IncreaseState = 1 << 2
	IncreaseFanFailure           IncreaseState = 1 << 3
	IncreaseACInputOvervoltage   IncreaseState = 1 << 4
	IncreaseACInputUndervoltage  IncreaseState = 1 << 5
	IncreaseDCOutputOvervoltage  IncreaseState = 1 << 6
	IncreaseDCOutputUndervoltage IncreaseState = 1 << 7

	// tab1
	IncreaseProtectedAsOvercurrent     IncreaseState = 1 << 8
	IncreaseProtectedAsOvertemperature IncreaseState = 1 << 9
	IncreaseSetToShutdown              IncreaseState = 1 << 10
)

const increaseInformational = IncreaseShutdown | IncreaseSetToShutdown

var increaseFlags = []flagName[IncreaseState]{
	{IncreaseShutdown, "shutdown"},
	{IncreaseFault, "fault"},
	{IncreaseCurrentIsLimited, "currentIsLimited"},
	{IncreaseFanFailure, "fanFailure"},
	{IncreaseACInputOvervoltage, "acInputOvervoltage"},
	{IncreaseACInputUndervoltage, "acInputUndervoltage"},
	{IncreaseDCOutputOvervoltage, "dcOutputOvervoltage"},
	{IncreaseDCOutputUndervoltage, "dcOutputUndervoltage"},
	{IncreaseProtectedAsOvercurrent, "protectedAsOvercurrent"},
	{IncreaseProtectedAsOvertemperature, "protectedAsOvertemperature"},
	{IncreaseSetToShutdown, "setToShutdown"},
}

const increaseMask IncreaseState = 0x07ff

func (s IncreaseState) Vendor() Vendor              { return VendorIncrease }
func (s IncreaseState) Has(flag IncreaseState) bool { return s&flag == flag }
func (s IncreaseState) Flags() []string             { return setFlags(s, increaseFlags) }
func (s IncreaseState) String() string              { return joinFlags(s.Flags()) }

func (s IncreaseState) HasFault() bool {
	return s&^increaseInformational&increaseMask != 0
}

// UUGreenState is the UUGreen state register. Bits 3..4 of tab2 hold the
// output loop status instead of a flag.
type UUGreenState uint32

const (
	// tab0
	UUGreenACInputOvervoltage       UUGreenState = 1 << 0
	UUGreenACInputUndervoltage      UUGreenState = 1 << 1
	UUGreenProtectedAsACOvervoltage UUGreenState = 1 << 2
	UUGreenPFCBusOvervoltage        UUGreenState = 1 << 3
	UUGreenPFCBusUndervoltage       UUGreenState = 1 << 4
	UUGreenPFCBusUnbalanced         UUGreenState = 1 << 5
	UUGreenDCOutputOvervoltage      UUGreenState = 1 << 6
	UUGreenProtectedAsDCOvervoltage UUGreenState = 1 << 7

	// tab1
	UUGreenDCOutputUndervoltage          UUGreenState = 1 << 8
	UUGreenFanFailure                    UUGreenState = 1 << 9
	UUGreenFanDriveCircuitFault          UUGreenState = 1 << 10
	UUGreenProtectedAsAmbientTemperature UUGreenState = 1 << 11
	UUGreenAmbientTemperatureTooLow      UUGreenState = 1 << 12
	UUGreenProtectedAsPFCTemperature1    UUGreenState = 1 << 13
	UUGreenProtectedAsDCTemperature1     UUGreenState = 1 << 14
	UUGreenCommunicationFaultPFCAndDCDC  UUGreenState = 1 << 15

	// tab2
	UUGreenPFCFault                  UUGreenState = 1 << 16
	UUGreenDCDCFault                 UUGreenState = 1 << 17
	UUGreenDCDCShutdown              UUGreenState = 1 << 18
	UUGreenOutputLoopStatusMask      UUGreenState = 3 << 19
	UUGreenDCOutputVoltageUnbalanced UUGreenState = 1 << 21
	UUGreenSNIsTheSame               UUGreenState = 1 << 22
	UUGreenBleedCircuitFault         UUGreenState = 1 << 23
)

const uuGreenOutputLoopShift = 19

var uuGreenFlags = []flagName[UUGreenState]{
	{UUGreenACInputOvervoltage, "acInputOvervoltage"},
	{UUGreenACInputUndervoltage, "acInputUndervoltage"},
	{UUGreenProtectedAsACOvervoltage, "protectedAsAcOvervoltage"},
	{UUGreenPFCBusOvervoltage, "pfcBusOvervoltage"},
	{UUGreenPFCBusUndervoltage, "pfcBusUndervoltage"},
	{UUGreenPFCBusUnbalanced, "pfcBusUnbalanced"},
	{UUGreenDCOutputOvervoltage, "dcOutputOvervoltage"},
	{UUGreenProtectedAsDCOvervoltage, "protectedAsDcOvervoltage"},
	{UUGreenDCOutputUndervoltage, "dcOutputUndervoltage"},
	{UUGreenFanFailure, "fanFailure"},
	{UUGreenFanDriveCircuitFault, "fanDriveCircuitFault"},
	{UUGreenProtectedAsAmbientTemperature, "protectedAsAmbientTemperature"},
	{UUGreenAmbientTemperatureTooLow, "ambientTemperatureTooLow"},
	{UUGreenProtectedAsPFCTemperature1, "protectedAsPfcTemperature1"},
	{UUGreenProtectedAsDCTemperature1, "protectedAsDcTemperature1"},
	{UUGreenCommunicationFaultPFCAndDCDC, "communicationFaultBetweenPfcAndDcdc"},
	{UUGreenPFCFault, "pfcFault"},
	{UUGreenDCDCFault, "dcdcFault"},
	{UUGreenDCDCShutdown, "dcdcShutdown"},
	{UUGreenDCOutputVoltageUnbalanced, "dcOutputVoltageUnbalanced"},
	{UUGreenSNIsTheSame, "snIsTheSame"},
	{UUGreenBleedCircuitFault, "bleedCircuitFault"},
}

const uuGreenFaultMask = 0xffffff &^ UUGreenOutputLoopStatusMask

func (s UUGreenState) Vendor() Vendor             { return VendorUUGreen }
func (s UUGreenState) Has(flag UUGreenState) bool { return s&flag == flag }
func (s UUGreenState) Flags() []string            { return setFlags(s, uuGreenFlags) }
func (s UUGreenState) HasFault() bool             { return s&uuGreenFaultMask != 0 }

// OutputLoopStatus returns the 2-bit output loop status.
func (s UUGreenState) OutputLoopStatus() uint8 {
	return uint8((s & UUGreenOutputLoopStatusMask) >> uuGreenOutputLoopShift)
}

// String renders the flags followed by the output loop status.
func (s UUGreenState) String() string {
	return fmt.Sprintf("%s loop=%d", joinFlags(s.Flags()), s.OutputLoopStatus())
}

// RawState is the state register of a vendor without a documented layout.
type RawState uint32

func (s RawState) Vendor() Vendor  { return VendorNone }
func (s RawState) Flags() []string { return nil }
func (s RawState) HasFault() bool  { return false }
func (s RawState) String() string  { return fmt.Sprintf("0x%06x", uint32(s)) }
