// Package od implements the object dictionary of the power bridge and of
// the internal power modules.
//
// # Objects
//
// Every value is addressed by a 16-bit index and an 8-bit sub-index:
//
//	0x2400:01   output voltage/current of power module 1
//	0x2402:00   interlink DC contactor
//	0x2424:03   max power capability
//
// Each sub-index has an access (r, w, r/w), a persist flag and a packed
// little-endian layout: a scalar (uint8, uint16, int16, uint32), a record
// of scalars, or a variable length domain. Some objects read back a
// different layout than they accept (0x2405 accepts a uint8 command and
// returns a uint32 fan state word).
//
// # Definitions
//
// The dictionaries are defined in YAML under definitions/ and embedded in
// the binary. Bridge and PowerModule build them on first use. The index
// constants in objects_gen.go are generated from the same files by
// pwb-odgen.
//
// # Validation
//
// ValidateRead and ValidateWrite check existence, sub-index, access,
// size and documented value range. Errors wrap the package sentinels so
// callers can map them onto SDO abort codes.
package od

//go:generate go run ../../cmd/pwb-odgen -o objects_gen.go definitions/bridge.yaml definitions/powermodule.yaml
