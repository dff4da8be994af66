package wire

// Operation is the kind of access a request performs.
type Operation uint8

const (
	// OpRead uploads a value from the bridge.
	OpRead Operation = 1

	// OpWrite downloads a value to the bridge.
	OpWrite Operation = 2
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpRead:
		return "Read"
	case OpWrite:
		return "Write"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the operation is known.
func (o Operation) IsValid() bool {
	return o == OpRead || o == OpWrite
}
