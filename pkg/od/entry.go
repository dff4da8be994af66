package od

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// Field documents one member of a record layout.
type Field struct {
	Name string
	Type DataType
	Unit string
}

// SubEntry describes one sub-index, or a run of sub-indices sharing a layout.
type SubEntry struct {
	// Sub is the first sub-index covered.
	Sub SubIndex

	// Count is the number of consecutive sub-indices covered (at least 1).
	Count uint8

	Name        string
	Description string
	Access      Access
	Persist     bool
	Unit        string

	// Type is the layout written to the object, and read from it
	// unless ReadType is set.
	Type DataType

	// ReadType overrides Type for reads (e.g. fan state: write uint8, read uint32).
	ReadType DataType

	// Fields lists the members of a record or domain, in wire order.
	Fields []Field

	// MinSize and MaxSize bound the length of a domain value. Sizes,
	// when set, lists the only lengths accepted, in ascending order.
	MinSize int
	MaxSize int
	Sizes   []int

	// Min and Max bound scalar values when set.
	Min *int64
	Max *int64
}

// Last returns the last sub-index covered.
func (s *SubEntry) Last() SubIndex {
	if s.Count <= 1 {
		return s.Sub
	}
	return s.Sub + SubIndex(s.Count-1)
}

// Contains reports whether sub is covered by this entry.
func (s *SubEntry) Contains(sub SubIndex) bool {
	return sub >= s.Sub && sub <= s.Last()
}

// readType returns the layout used for reads.
func (s *SubEntry) readType() DataType {
	if s.ReadType != DataTypeUnknown {
		return s.ReadType
	}
	return s.Type
}

// WriteSize returns the size of a written value. For domains it returns
// MaxSize.
func (s *SubEntry) WriteSize() int {
	return s.sizeOf(s.Type)
}

// ReadSize returns the size of a read value. For domains it returns MaxSize.
func (s *SubEntry) ReadSize() int {
	return s.sizeOf(s.readType())
}

func (s *SubEntry) sizeOf(t DataType) int {
	switch t {
	case DataTypeRecord:
		n := 0
		for _, f := range s.Fields {
			n += f.Type.Size()
		}
		return n
	case DataTypeDomain:
		return s.MaxSize
	default:
		return t.Size()
	}
}

// checkSize verifies n against the layout t.
func (s *SubEntry) checkSize(t DataType, n int) error {
	if t == DataTypeDomain {
		if n < s.MinSize {
			return fmt.Errorf("%w: %d bytes, want at least %d", ErrDataTooShort, n, s.MinSize)
		}
		if s.MaxSize > 0 && n > s.MaxSize {
			return fmt.Errorf("%w: %d bytes, want at most %d", ErrDataTooLong, n, s.MaxSize)
		}
		if len(s.Sizes) == 0 || slices.Contains(s.Sizes, n) {
			return nil
		}
		if n > s.Sizes[len(s.Sizes)-1] {
			return fmt.Errorf("%w: %d bytes, want one of %v", ErrDataTooLong, n, s.Sizes)
		}
		return fmt.Errorf("%w: %d bytes, want one of %v", ErrDataTooShort, n, s.Sizes)
	}

	want := s.sizeOf(t)
	switch {
	case n < want:
		return fmt.Errorf("%w: %d bytes, want %d", ErrDataTooShort, n, want)
	case n > want:
		return fmt.Errorf("%w: %d bytes, want %d", ErrDataTooLong, n, want)
	}
	return nil
}

// CheckWrite validates a value about to be written.
func (s *SubEntry) CheckWrite(data []byte) error {
	if err := s.checkSize(s.Type, len(data)); err != nil {
		return err
	}
	return s.checkRange(s.Type, data)
}

// CheckRead validates a value returned by a read.
func (s *SubEntry) CheckRead(data []byte) error {
	return s.checkSize(s.readType(), len(data))
}

// checkRange applies Min/Max to scalar values.
func (s *SubEntry) checkRange(t DataType, data []byte) error {
	if !t.IsScalar() || (s.Min == nil && s.Max == nil) {
		return nil
	}

	v := DecodeScalar(t, data)
	if s.Min != nil && v < *s.Min {
		return fmt.Errorf("%w: %d < %d", ErrValueTooLow, v, *s.Min)
	}
	if s.Max != nil && v > *s.Max {
		return fmt.Errorf("%w: %d > %d", ErrValueTooHigh, v, *s.Max)
	}
	return nil
}

// DecodeScalar decodes a little-endian scalar. data must be t.Size() bytes.
func DecodeScalar(t DataType, data []byte) int64 {
	switch t {
	case DataTypeUint8:
		return int64(data[0])
	case DataTypeUint16:
		return int64(binary.LittleEndian.Uint16(data))
	case DataTypeInt16:
		return int64(int16(binary.LittleEndian.Uint16(data)))
	case DataTypeUint32:
		return int64(binary.LittleEndian.Uint32(data))
	default:
		return 0
	}
}

// EncodeScalar encodes v as a little-endian scalar of type t.
func EncodeScalar(t DataType, v int64) []byte {
	switch t {
	case DataTypeUint8:
		return []byte{uint8(v)}
	case DataTypeUint16, DataTypeInt16:
		return binary.LittleEndian.AppendUint16(nil, uint16(v))
	case DataTypeUint32:
		return binary.LittleEndian.AppendUint32(nil, uint32(v))
	default:
		return nil
	}
}

// Entry is an object: one index with its sub-index layouts.
type Entry struct {
	Index       Index
	Name        string
	Description string
	Subs        []*SubEntry
}

// Sub returns the sub-entry covering sub.
func (e *Entry) Sub(sub SubIndex) (*SubEntry, bool) {
	for _, s := range e.Subs {
		if s.Contains(sub) {
			return s, true
		}
	}
	return nil, false
}

// Access returns the union of the access flags of all sub-indices.
func (e *Entry) Access() Access {
	var a Access
	for _, s := range e.Subs {
		a |= s.Access
	}
	return a
}

// Persistent reports whether any sub-index of the object is persisted.
func (e *Entry) Persistent() bool {
	for _, s := range e.Subs {
		if s.Persist {
			return true
		}
	}
	return false
}

// validate checks the entry for internal consistency.
func (e *Entry) validate() error {
	if len(e.Subs) == 0 {
		return fmt.Errorf("object %s (%s) has no sub-indices", e.Index, e.Name)
	}
	for i, s := range e.Subs {
		if s.Access == 0 {
			return fmt.Errorf("object %s sub %d: no access", e.Index, s.Sub)
		}
		switch s.Type {
		case DataTypeUnknown:
			return fmt.Errorf("object %s sub %d: unknown type", e.Index, s.Sub)
		case DataTypeRecord:
			if len(s.Fields) == 0 {
				return fmt.Errorf("object %s sub %d: record without fields", e.Index, s.Sub)
			}
		case DataTypeDomain:
			if s.MaxSize < s.MinSize {
				return fmt.Errorf("object %s sub %d: domain max size below min size", e.Index, s.Sub)
			}
			for _, n := range s.Sizes {
				if n < s.MinSize || n > s.MaxSize {
					return fmt.Errorf("object %s sub %d: domain size %d outside %d..%d", e.Index, s.Sub, n, s.MinSize, s.MaxSize)
				}
			}
		}
		for _, other := range e.Subs[:i] {
			if s.Sub <= other.Last() && other.Sub <= s.Last() {
				return fmt.Errorf("object %s: sub-index ranges %d and %d overlap", e.Index, other.Sub, s.Sub)
			}
		}
	}
	return nil
}
