// Package wire defines the binary layouts of the power bridge objects and
// the CBOR messages of the gateway link.
//
// # Object layouts
//
// Object values are packed little-endian structures without padding.
// Every layout type implements encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler; unmarshalling rejects any length other than
// the documented one with ErrInvalidLength.
//
// Status and fault registers are plain fixed-width integers. Each bit has
// a named mask constant, Has tests a mask, and Flags lists the names of
// the set bits:
//
//	var st wire.PMState
//	if err := st.UnmarshalBinary(data); err != nil { ... }
//	if s, ok := st.Decode(wire.PMTypeInfy75025).(wire.InfyState); ok && s.Has(wire.InfyFanFailure) { ... }
//
// The three state bytes of object 0x2401 are vendor specific. PMState
// keeps them raw and Decode interprets them for a PMType.
//
// # Gateway messages
//
// Request and Response carry a single object read or write between a
// controller and a bridge. They use CBOR (RFC 8949) with integer keys and
// are length-prefixed on the link. A failed request is answered with a
// CiA 301 abort code.
package wire
