package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLength indicates a value whose length does not match its layout.
var ErrInvalidLength = errors.New("invalid length")

var le = binary.LittleEndian

func checkLen(data []byte, want int, what string) error {
	if len(data) != want {
		return fmt.Errorf("%w: %s is %d bytes, got %d", ErrInvalidLength, what, want, len(data))
	}
	return nil
}

// flagName pairs a mask with its name.
type flagName[T ~uint8 | ~uint16 | ~uint32] struct {
	mask T
	name string
}

// setFlags returns the names of the masks set in v, in table order.
func setFlags[T ~uint8 | ~uint16 | ~uint32](v T, table []flagName[T]) []string {
	var out []string
	for _, f := range table {
		if v&f.mask != 0 {
			out = append(out, f.name)
		}
	}
	return out
}

// joinFlags renders a flag list, "ok" when empty.
func joinFlags(flags []string) string {
	if len(flags) == 0 {
		return "ok"
	}
	return strings.Join(flags, ",")
}

// Uint8 encodes a single byte value.
func Uint8(v uint8) []byte { return []byte{v} }

// Uint16 encodes a little-endian uint16.
func Uint16(v uint16) []byte { return le.AppendUint16(nil, v) }

// Uint32 encodes a little-endian uint32.
func Uint32(v uint32) []byte { return le.AppendUint32(nil, v) }

// ParseUint8 decodes a single byte value.
func ParseUint8(data []byte) (uint8, error) {
	if err := checkLen(data, 1, "uint8"); err != nil {
		return 0, err
	}
	return data[0], nil
}

// ParseUint16 decodes a little-endian uint16.
func ParseUint16(data []byte) (uint16, error) {
	if err := checkLen(data, 2, "uint16"); err != nil {
		return 0, err
	}
	return le.Uint16(data), nil
}

// ParseInt16 decodes a little-endian int16.
func ParseInt16(data []byte) (int16, error) {
	v, err := ParseUint16(data)
	return int16(v), err
}

// ParseUint32 decodes a little-endian uint32.
func ParseUint32(data []byte) (uint32, error) {
	if err := checkLen(data, 4, "uint32"); err != nil {
		return 0, err
	}
	return le.Uint32(data), nil
}
