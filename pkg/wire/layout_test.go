package wire

import (
	"encoding"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutEncoding(t *testing.T) {
	tests := []struct {
		name  string
		value encoding.BinaryMarshaler
		want  []byte
	}{
		{"vi", VI{Voltage: 8000, Current: 300}, []byte{0x40, 0x1f, 0x2c, 0x01}},
		{"pm state", PMState{Temperature: 45, State: [3]byte{0x01, 0x08, 0x40}}, []byte{45, 0x01, 0x08, 0x40}},
		{"pm address", PMAddress{Address: 3, Group: 1}, []byte{3, 1}},
		{"update status", UpdateStatus{State: UpdateStateError, Index: 72, Detail: 0x1234}, []byte{2, 72, 0x34, 0x12}},
		{"soft version", SoftVersion{PFC: 0x0102, DCDC: 0x0304}, []byte{0x02, 0x01, 0x04, 0x03}},
		{"soft version with can", SoftVersion{PFC: 1, DCDC: 2, CAN: 3, HasCAN: true}, []byte{1, 0, 2, 0, 3, 0}},
		{"bridge pdo1", BridgePDO1{Status: BridgeDCPlusClosed | BridgeDCMinusClosed}, []byte{3, 0, 0, 0, 0, 0, 0, 0}},
		{"pm pdo1", PMPDO1{Voltage: 4000, Current: 100, Temperature: -50, Status: PMPDOChargerOn}, []byte{0xa0, 0x0f, 0x64, 0x00, 0xce, 0xff, 0x01, 0x00}},
		{"min max", MinMax{Min: 1500, Max: 10000}, []byte{0xdc, 0x05, 0x10, 0x27}},
		{"temp range", TempRange{Min: -400, Max: 850}, []byte{0x70, 0xfe, 0x52, 0x03}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.value.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLayoutDecoding(t *testing.T) {
	var vi VI
	require.NoError(t, vi.UnmarshalBinary([]byte{0x40, 0x1f, 0x2c, 0x01}))
	assert.Equal(t, 800.0, vi.Volts())
	assert.Equal(t, 30.0, vi.Amps())
	assert.Equal(t, 24000.0, vi.Watts())
	assert.Equal(t, "800.0V 30.0A", vi.String())

	var pdo PMPDO1
	require.NoError(t, pdo.UnmarshalBinary([]byte{0xa0, 0x0f, 0x64, 0x00, 0xce, 0xff, 0x03, 0x80}))
	assert.Equal(t, int16(-50), pdo.Temperature)
	assert.True(t, pdo.Status.Has(PMPDOGlobalError))
	assert.True(t, pdo.Status.CurrentMode())
	assert.Equal(t, "chargerOn,globalError,ccMode", pdo.Status.String())

	var sv SoftVersion
	require.NoError(t, sv.UnmarshalBinary([]byte{1, 0, 2, 0}))
	assert.False(t, sv.HasCAN)
	require.NoError(t, sv.UnmarshalBinary([]byte{1, 0, 2, 0, 3, 0}))
	assert.True(t, sv.HasCAN)
	assert.Equal(t, uint16(3), sv.CAN)
	assert.Equal(t, "pfc 1.0 dcdc 2.0 can 3.0", sv.String())
}

func TestLayoutRejectsWrongLength(t *testing.T) {
	tests := []struct {
		name  string
		value encoding.BinaryUnmarshaler
		data  []byte
	}{
		{"vi short", &VI{}, []byte{1, 2, 3}},
		{"pm state long", &PMState{}, []byte{1, 2, 3, 4, 5}},
		{"pm address", &PMAddress{}, []byte{1}},
		{"update status", &UpdateStatus{}, nil},
		{"soft version 5 bytes", &SoftVersion{}, []byte{1, 2, 3, 4, 5}},
		{"data frame", &DataFrame{}, []byte{1, 2}},
		{"bridge pdo1", &BridgePDO1{}, make([]byte, 4)},
		{"pm pdo1", &PMPDO1{}, make([]byte, 9)},
		{"min max", &MinMax{}, make([]byte, 2)},
		{"temp range", &TempRange{}, make([]byte, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.value.UnmarshalBinary(tt.data)
			assert.True(t, errors.Is(err, ErrInvalidLength), "got %v", err)
		})
	}
}

func TestScalarHelpers(t *testing.T) {
	assert.Equal(t, []byte{7}, Uint8(7))
	assert.Equal(t, []byte{0x34, 0x12}, Uint16(0x1234))
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, Uint32(0x12345678))

	v16, err := ParseInt16([]byte{0xff, 0xff})
	require.NoError(t, err)
	assert.Equal(t, int16(-1), v16)

	v32, err := ParseUint32([]byte{0x78, 0x56, 0x34, 0x12})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v32)

	_, err = ParseUint8(nil)
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = ParseUint16([]byte{1})
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestPMStateDecode(t *testing.T) {
	tests := []struct {
		name      string
		pmType    PMType
		state     [3]byte
		vendor    Vendor
		flags     []string
		wantFault bool
	}{
		{
			name:   "infy all clear",
			pmType: PMTypeInfy75025,
			vendor: VendorInfy,
		},
		{
			name:      "infy short circuit and phase lost",
			pmType:    PMTypeInfy50030,
			state:     [3]byte{0x01, 0x00, 0x08},
			vendor:    VendorInfy,
			flags:     []string{"dcOutputShortCircuit", "acInputPhaseLost"},
			wantFault: true,
		},
		{
			name:   "infy walk-in and dc shutdown only",
			pmType: PMTypeInfy100025,
			state:  [3]byte{0x00, 0x41, 0x00},
			vendor: VendorInfy,
			flags:  []string{"shutdownOnDcSide", "walkInEnabled"},
		},
		{
			name:   "infy reserved bits ignored",
			pmType: PMTypeInfy100025,
			state:  [3]byte{0x02, 0x00, 0x00},
			vendor: VendorInfy,
		},
		{
			name:      "increase fan failure and overtemperature",
			pmType:    PMTypeIncr50030,
			state:     [3]byte{0x08, 0x02, 0x00},
			vendor:    VendorIncrease,
			flags:     []string{"fanFailure", "protectedAsOvertemperature"},
			wantFault: true,
		},
		{
			name:   "increase set to shutdown",
			pmType: PMTypeIncr75025,
			state:  [3]byte{0x01, 0x04, 0xff},
			vendor: VendorIncrease,
			flags:  []string{"shutdown", "setToShutdown"},
		},
		{
			name:      "uugreen bleed circuit",
			pmType:    PMTypeUUGr100030,
			state:     [3]byte{0x00, 0x00, 0x80},
			vendor:    VendorUUGreen,
			flags:     []string{"bleedCircuitFault"},
			wantFault: true,
		},
		{
			name:   "elpc has no decoder",
			pmType: PMTypeELPC100030,
			state:  [3]byte{0xff, 0xff, 0xff},
			vendor: VendorNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := PMState{Temperature: 40, State: tt.state}
			vs := s.Decode(tt.pmType)
			assert.Equal(t, tt.vendor, vs.Vendor())
			assert.Equal(t, tt.flags, vs.Flags())
			assert.Equal(t, tt.wantFault, vs.HasFault())
		})
	}
}

func TestUUGreenOutputLoopStatus(t *testing.T) {
	s := PMState{State: [3]byte{0x00, 0x00, 0x18 | 0x01}}
	uu := s.Decode(PMTypeUUGr100030).(UUGreenState)

	assert.Equal(t, uint8(3), uu.OutputLoopStatus())
	assert.True(t, uu.Has(UUGreenPFCFault))
	assert.Equal(t, []string{"pfcFault"}, uu.Flags())
	assert.Equal(t, "pfcFault loop=3", uu.String())

	loopOnly := UUGreenState(1 << 19)
	assert.Equal(t, uint8(1), loopOnly.OutputLoopStatus())
	assert.False(t, loopOnly.HasFault())
	assert.Equal(t, "ok loop=1", loopOnly.String())
}

func TestBridgeStatus(t *testing.T) {
	assert.Equal(t, "open", BridgeStatus(0).String())

	s := BridgeDCPlusClosed | BridgeDCMinusClosed
	assert.False(t, s.HasError())
	assert.Equal(t, "dc+Closed,dc-Closed", s.String())

	s |= BridgeConfigurationError
	assert.True(t, s.HasError())
	assert.True(t, s.Has(BridgeConfigurationError))
}

func TestPMPDOStatusLayout(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint16
		flags []string
		fault bool
	}{
		{"charger on", 0x0001, []string{"chargerOn"}, false},
		{"aux undervoltage", 0x0400, []string{"auxUndervoltage"}, true},
		{"reset detected", 0x1000, []string{"resetDetected"}, false},
		{"unused bits", 0x6000, nil, false},
		{"cc mode", 0x8001, []string{"chargerOn", "ccMode"}, false},
		{"cc mode with overtemperature", 0x8081, []string{"chargerOn", "overtemperature", "ccMode"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pdo PMPDO1
			require.NoError(t, pdo.UnmarshalBinary([]byte{0, 0, 0, 0, 0, 0, byte(tt.raw), byte(tt.raw >> 8)}))
			assert.Equal(t, tt.flags, pdo.Status.Flags())
			assert.Equal(t, tt.fault, pdo.Status.HasFault())
		})
	}

	// The setpoint and PFC bits of the converter status stay out of PDO1.
	s := PMStatusEnabled | PMStatusAuxSupply | PMStatusSetpointTimeout | PMStatusPFCError
	assert.Equal(t, PMPDOChargerOn|PMPDOAuxUndervoltage, s.PDO())
	assert.False(t, PMStatusPFCError.PDO().CurrentMode())
}

func TestPMStatusFault(t *testing.T) {
	assert.False(t, PMStatus(0).HasFault())
	assert.False(t, (PMStatusEnabled | PMStatusResetDetected).HasFault())
	assert.True(t, (PMStatusEnabled | PMStatusSetpointTimeout).HasFault())
	assert.True(t, PMStatusEnabled.Enabled())
	assert.Equal(t, "disabled", PMStatus(0).String())
}
