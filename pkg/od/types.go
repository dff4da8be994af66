package od

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxModules is the number of power modules a power bridge can address.
// Per-module objects use sub-indices 1..MaxModules.
const MaxModules = 8

// Index is a 16-bit object dictionary index.
type Index uint16

// String returns the index as 0xNNNN.
func (i Index) String() string {
	return fmt.Sprintf("0x%04X", uint16(i))
}

// SubIndex selects an element within an object.
type SubIndex uint8

// Address identifies a single value in the dictionary.
type Address struct {
	Index Index
	Sub   SubIndex
}

// Addr is shorthand for building an Address.
func Addr(index Index, sub SubIndex) Address {
	return Address{Index: index, Sub: sub}
}

// String returns the address as 0xNNNN:SS.
func (a Address) String() string {
	return fmt.Sprintf("0x%04X:%02X", uint16(a.Index), uint8(a.Sub))
}

// ParseAddress parses "0x2400:01", "2400:1", "0x2402" or "2402" (sub-index 0).
// Index and sub-index are hexadecimal with an optional 0x prefix.
func ParseAddress(s string) (Address, error) {
	idxPart, subPart, hasSub := strings.Cut(strings.TrimSpace(s), ":")

	idx, err := parseHex(idxPart, 16)
	if err != nil {
		return Address{}, fmt.Errorf("invalid index %q: %w", idxPart, err)
	}

	var sub uint64
	if hasSub {
		sub, err = parseHex(subPart, 8)
		if err != nil {
			return Address{}, fmt.Errorf("invalid sub-index %q: %w", subPart, err)
		}
	}

	return Address{Index: Index(idx), Sub: SubIndex(sub)}, nil
}

func parseHex(s string, bits int) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseUint(s, 16, bits)
}

// Access flags for dictionary values.
type Access uint8

const (
	// AccessRead allows reading (SDO upload).
	AccessRead Access = 1 << iota

	// AccessWrite allows writing (SDO download).
	AccessWrite

	// AccessReadWrite is read and write.
	AccessReadWrite = AccessRead | AccessWrite
)

// CanRead returns true if reading is allowed.
func (a Access) CanRead() bool { return a&AccessRead != 0 }

// CanWrite returns true if writing is allowed.
func (a Access) CanWrite() bool { return a&AccessWrite != 0 }

// String returns the access as used in the object tables (r, w, r/w).
func (a Access) String() string {
	switch {
	case a.CanRead() && a.CanWrite():
		return "r/w"
	case a.CanRead():
		return "r"
	case a.CanWrite():
		return "w"
	default:
		return "-"
	}
}

// ParseAccess parses "r", "w", "rw" or "r/w".
func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "ro":
		return AccessRead, nil
	case "w", "wo":
		return AccessWrite, nil
	case "rw", "r/w":
		return AccessReadWrite, nil
	default:
		return 0, fmt.Errorf("unknown access %q", s)
	}
}

// DataType is the encoding of a dictionary value.
type DataType uint8

const (
	DataTypeUnknown DataType = iota
	DataTypeUint8
	DataTypeUint16
	DataTypeInt16
	DataTypeUint32
	DataTypeRecord
	DataTypeDomain
)

var dataTypeNames = []string{"unknown", "uint8", "uint16", "int16", "uint32", "record", "domain"}

// String returns the data type name.
func (d DataType) String() string {
	if int(d) < len(dataTypeNames) {
		return dataTypeNames[d]
	}
	return "unknown"
}

// ParseDataType parses a data type name.
func ParseDataType(s string) (DataType, error) {
	for i, name := range dataTypeNames {
		if i > 0 && name == s {
			return DataType(i), nil
		}
	}
	return DataTypeUnknown, fmt.Errorf("unknown data type %q", s)
}

// Size returns the encoded size of a scalar type, or 0 for record,
// domain and unknown types.
func (d DataType) Size() int {
	switch d {
	case DataTypeUint8:
		return 1
	case DataTypeUint16, DataTypeInt16:
		return 2
	case DataTypeUint32:
		return 4
	default:
		return 0
	}
}

// IsScalar returns true for fixed-size integer types.
func (d DataType) IsScalar() bool {
	return d.Size() > 0
}

// Signed returns true for signed integer types.
func (d DataType) Signed() bool {
	return d == DataTypeInt16
}
