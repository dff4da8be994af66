package wire

import (
	"errors"
	"fmt"

	"github.com/powerbridge/pwb-go/pkg/od"
)

// AbortCode is a CiA 301 SDO abort code. Zero means success.
type AbortCode uint32

const (
	AbortNone               AbortCode = 0x00000000
	AbortTimeout            AbortCode = 0x05040000
	AbortCommandSpecifier   AbortCode = 0x05040001
	AbortOutOfMemory        AbortCode = 0x05040005
	AbortUnsupportedAccess  AbortCode = 0x06010000
	AbortWriteOnly          AbortCode = 0x06010001
	AbortReadOnly           AbortCode = 0x06010002
	AbortObjectNotFound     AbortCode = 0x06020000
	AbortParamIncompatible  AbortCode = 0x06040043
	AbortDeviceIncompatible AbortCode = 0x06040047
	AbortHardware           AbortCode = 0x06060000
	AbortLengthMismatch     AbortCode = 0x06070010
	AbortLengthTooHigh      AbortCode = 0x06070012
	AbortLengthTooLow       AbortCode = 0x06070013
	AbortSubIndexNotFound   AbortCode = 0x06090011
	AbortInvalidValue       AbortCode = 0x06090030
	AbortValueTooHigh       AbortCode = 0x06090031
	AbortValueTooLow        AbortCode = 0x06090032
	AbortGeneral            AbortCode = 0x08000000
	AbortDataTransfer       AbortCode = 0x08000020
	AbortLocalControl       AbortCode = 0x08000021
	AbortDeviceState        AbortCode = 0x08000022
)

var abortText = map[AbortCode]string{
	AbortNone:               "success",
	AbortTimeout:            "SDO protocol timeout",
	AbortCommandSpecifier:   "command specifier invalid or unknown",
	AbortOutOfMemory:        "out of memory",
	AbortUnsupportedAccess:  "unsupported access to object",
	AbortWriteOnly:          "attempt to read a write-only object",
	AbortReadOnly:           "attempt to write a read-only object",
	AbortObjectNotFound:     "object does not exist",
	AbortParamIncompatible:  "general parameter incompatibility",
	AbortDeviceIncompatible: "internal incompatibility in device",
	AbortHardware:           "hardware error",
	AbortLengthMismatch:     "data type does not match (length)",
	AbortLengthTooHigh:      "data type does not match (length too high)",
	AbortLengthTooLow:       "data type does not match (length too low)",
	AbortSubIndexNotFound:   "sub-index does not exist",
	AbortInvalidValue:       "invalid value for parameter",
	AbortValueTooHigh:       "value range exceeded (max)",
	AbortValueTooLow:        "value range exceeded (min)",
	AbortGeneral:            "general error",
	AbortDataTransfer:       "data cannot be transferred or stored",
	AbortLocalControl:       "data cannot be transferred because of local control",
	AbortDeviceState:        "data cannot be transferred because of device state",
}

// String returns the abort description.
func (c AbortCode) String() string {
	if s, ok := abortText[c]; ok {
		return s
	}
	return fmt.Sprintf("abort 0x%08X", uint32(c))
}

// IsSuccess returns true if the code is AbortNone.
func (c AbortCode) IsSuccess() bool {
	return c == AbortNone
}

// ErrInvalidValue is returned by object handlers for values the layout
// accepts but the bridge does not (reserved enum values, capabilities out
// of range).
var ErrInvalidValue = errors.New("invalid value for parameter")

// ErrDeviceState is returned by object handlers when the bridge cannot
// accept the request in its current state.
var ErrDeviceState = errors.New("device state does not allow the request")

// errorAbort maps errors onto abort codes, most specific first.
var errorAbort = []struct {
	err  error
	code AbortCode
}{
	{od.ErrObjectNotFound, AbortObjectNotFound},
	{od.ErrSubIndexNotFound, AbortSubIndexNotFound},
	{od.ErrWriteOnly, AbortWriteOnly},
	{od.ErrReadOnly, AbortReadOnly},
	{od.ErrDataTooShort, AbortLengthTooLow},
	{od.ErrDataTooLong, AbortLengthTooHigh},
	{od.ErrValueTooLow, AbortValueTooLow},
	{od.ErrValueTooHigh, AbortValueTooHigh},
	{ErrInvalidValue, AbortInvalidValue},
	{ErrInvalidLength, AbortLengthMismatch},
	{ErrDeviceState, AbortDeviceState},
}

// AbortFor returns the abort code for err. Unknown errors map to
// AbortGeneral; nil maps to AbortNone.
func AbortFor(err error) AbortCode {
	if err == nil {
		return AbortNone
	}
	for _, m := range errorAbort {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return AbortGeneral
}

// Err returns the sentinel error matching the abort code, or nil if the
// code has no sentinel.
func (c AbortCode) Err() error {
	for _, m := range errorAbort {
		if m.code == c {
			return m.err
		}
	}
	return nil
}
