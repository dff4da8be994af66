package wire

import "fmt"

// VI is a voltage/current pair in 0.1 V and 0.1 A steps.
// Used by the PM output (0x2400) and PM max output (0x2403) objects.
//
// Layout: voltage uint16 at offset 0, current uint16 at offset 2.
type VI struct {
	Voltage uint16
	Current uint16
}

// VISize is the encoded size of VI.
const VISize = 4

// NewVI builds a VI from volts and amperes.
func NewVI(volts, amps float64) VI {
	return VI{Voltage: uint16(volts*10 + 0.5), Current: uint16(amps*10 + 0.5)}
}

// Volts returns the voltage in V.
func (v VI) Volts() float64 { return float64(v.Voltage) / 10 }

// Amps returns the current in A.
func (v VI) Amps() float64 { return float64(v.Current) / 10 }

// Watts returns the product of voltage and current in W.
func (v VI) Watts() float64 { return v.Volts() * v.Amps() }

// MarshalBinary encodes the pair.
func (v VI) MarshalBinary() ([]byte, error) {
	b := make([]byte, VISize)
	le.PutUint16(b[0:], v.Voltage)
	le.PutUint16(b[2:], v.Current)
	return b, nil
}

// UnmarshalBinary decodes the pair.
func (v *VI) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, VISize, "voltage/current"); err != nil {
		return err
	}
	v.Voltage = le.Uint16(data[0:])
	v.Current = le.Uint16(data[2:])
	return nil
}

// String returns "123.4V 56.7A".
func (v VI) String() string {
	return fmt.Sprintf("%.1fV %.1fA", v.Volts(), v.Amps())
}
