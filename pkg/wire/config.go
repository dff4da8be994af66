package wire

import (
	"fmt"
	"strings"
)

// ValidationError reports a configuration value the bridge rejects.
// It matches ErrInvalidValue with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidValue.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidValue
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InterlinkCommand is the value written to the interlink DC contactor
// object (0x2402).
type InterlinkCommand uint8

const (
	// InterlinkForcedOff opens the contactor.
	InterlinkForcedOff InterlinkCommand = 0

	// InterlinkTimedEnable closes the contactor for InterlinkTimeout.
	// Every write re-arms the timer.
	InterlinkTimedEnable InterlinkCommand = 1

	// InterlinkForcedEnable closes the contactor without a timeout.
	InterlinkForcedEnable InterlinkCommand = 255
)

// Validate rejects the reserved values 2..254.
func (c InterlinkCommand) Validate() error {
	switch c {
	case InterlinkForcedOff, InterlinkTimedEnable, InterlinkForcedEnable:
		return nil
	}
	return invalid("interlink command", "%d is reserved", uint8(c))
}

func (c InterlinkCommand) String() string {
	switch c {
	case InterlinkForcedOff:
		return "forced-off"
	case InterlinkTimedEnable:
		return "timed-enable"
	case InterlinkForcedEnable:
		return "forced-enable"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(c))
	}
}

// ParseInterlinkCommand parses "off", "on"/"timed" and "force".
func ParseInterlinkCommand(s string) (InterlinkCommand, error) {
	switch strings.ToLower(s) {
	case "off", "forced-off", "0":
		return InterlinkForcedOff, nil
	case "on", "timed", "timed-enable", "1":
		return InterlinkTimedEnable, nil
	case "force", "forced-enable", "255":
		return InterlinkForcedEnable, nil
	}
	return 0, fmt.Errorf("unknown interlink command %q", s)
}

// InterlinkState is the value read from the interlink DC contactor.
type InterlinkState uint8

const (
	InterlinkOpen   InterlinkState = 0
	InterlinkClosed InterlinkState = 1
	InterlinkError  InterlinkState = 2
)

func (s InterlinkState) String() string {
	switch s {
	case InterlinkOpen:
		return "open"
	case InterlinkClosed:
		return "closed"
	case InterlinkError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// FanConfiguration identifies the fan set fitted to the bridge (0x2404:00).
type FanConfiguration uint8

const (
	FanConfigNone  FanConfiguration = 0
	FanConfigHC300 FanConfiguration = 1
)

// FanCount returns the number of fans of the configuration.
func (c FanConfiguration) FanCount() uint8 {
	if c == FanConfigHC300 {
		return 2
	}
	return 0
}

func (c FanConfiguration) String() string {
	switch c {
	case FanConfigNone:
		return "none"
	case FanConfigHC300:
		return "HC_300A"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// FanCommand starts or stops all fans (0x2405 write).
type FanCommand uint8

const (
	FanStop  FanCommand = 0
	FanStart FanCommand = 1
)

// FanState is the 2-bit state of one fan.
type FanState uint8

const (
	FanNormal FanState = 0
	FanError  FanState = 3
)

func (s FanState) String() string {
	switch s {
	case FanNormal:
		return "normal"
	case FanError:
		return "error"
	default:
		return "reserved"
	}
}

// MaxFans is the number of fans a FanStates value can describe.
const MaxFans = 16

// FanStates is the fan state word read from 0x2405, 2 bits per fan with
// fan 1 in the least significant bits.
type FanStates uint32

// Fan returns the state of fan n (1..16).
func (f FanStates) Fan(n int) FanState {
	if n < 1 || n > MaxFans {
		return FanNormal
	}
	return FanState(f >> (2 * (n - 1)) & 0x3)
}

// WithFan returns f with fan n set to s.
func (f FanStates) WithFan(n int, s FanState) FanStates {
	if n < 1 || n > MaxFans {
		return f
	}
	shift := 2 * (n - 1)
	return f&^(0x3<<shift) | FanStates(s&0x3)<<shift
}

// Failed returns the fans reporting an error, 1-based.
func (f FanStates) Failed() []int {
	var out []int
	for n := 1; n <= MaxFans; n++ {
		if f.Fan(n) == FanError {
			out = append(out, n)
		}
	}
	return out
}

// ACContactorGroups is the AC relay state per PM group (0x2406), bit n is
// group n+1.
type ACContactorGroups uint8

// Closed reports whether the relay of group (1-based) is closed.
func (g ACContactorGroups) Closed(group int) bool {
	if group < 1 || group > 8 {
		return false
	}
	return g&(1<<(group-1)) != 0
}

// With returns g with the relay of group set to closed.
func (g ACContactorGroups) With(group int, closed bool) ACContactorGroups {
	if group < 1 || group > 8 {
		return g
	}
	bit := ACContactorGroups(1 << (group - 1))
	if closed {
		return g | bit
	}
	return g &^ bit
}

// CabinetController selects the controller whose PDOs are used (0x2407).
type CabinetController uint8

const (
	// CabinetControllerBoth listens to both the CCB and the cabinet CCB3.
	CabinetControllerBoth CabinetController = 0

	// CabinetControllerCabinet listens to the cabinet CCB3 only.
	CabinetControllerCabinet CabinetController = 1
)

func (c CabinetController) String() string {
	switch c {
	case CabinetControllerBoth:
		return "ccb+ccb3"
	case CabinetControllerCabinet:
		return "ccb3"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// PMAddress is the power module and group address of the bridge (0x2410).
type PMAddress struct {
	Address uint8
	Group   uint8
}

// PMAddressSize is the encoded size of PMAddress.
const PMAddressSize = 2

func (a PMAddress) MarshalBinary() ([]byte, error) {
	return []byte{a.Address, a.Group}, nil
}

func (a *PMAddress) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, PMAddressSize, "pm address"); err != nil {
		return err
	}
	a.Address, a.Group = data[0], data[1]
	return nil
}

// Capabilities are the configured output limits of the power modules
// (0x2424 sub-index 1..3) in 0.1 V, 0.1 A and 0.1 kW.
type Capabilities struct {
	Voltage uint16
	Current uint16
	Power   uint16
}

// CapabilitiesCount is the value of 0x2424:00.
const CapabilitiesCount = 3

// Validate checks every limit is set and does not exceed the default of
// the power module type.
func (c Capabilities) Validate(t PMType) error {
	if !t.IsValid() {
		return invalid("capabilities", "power module type %d is undefined", uint8(t))
	}
	def := t.DefaultCapabilities()
	return c.validateAgainst(def)
}

func (c Capabilities) validateAgainst(def Capabilities) error {
	checks := []struct {
		name     string
		v, limit uint16
	}{
		{"voltage capability", c.Voltage, def.Voltage},
		{"current capability", c.Current, def.Current},
		{"power capability", c.Power, def.Power},
	}
	for _, ch := range checks {
		if ch.v == 0 || ch.v > ch.limit {
			return invalid(ch.name, "%d out of range 1..%d", ch.v, ch.limit)
		}
	}
	return nil
}

// Get returns the limit stored at sub-index 1..3.
func (c Capabilities) Get(sub uint8) (uint16, bool) {
	switch sub {
	case 1:
		return c.Voltage, true
	case 2:
		return c.Current, true
	case 3:
		return c.Power, true
	}
	return 0, false
}

// With returns c with the limit at sub-index 1..3 replaced.
func (c Capabilities) With(sub uint8, v uint16) Capabilities {
	switch sub {
	case 1:
		c.Voltage = v
	case 2:
		c.Current = v
	case 3:
		c.Power = v
	}
	return c
}

func (c Capabilities) String() string {
	return fmt.Sprintf("%.1fV %.1fA %.1fkW", float64(c.Voltage)/10, float64(c.Current)/10, float64(c.Power)/10)
}
