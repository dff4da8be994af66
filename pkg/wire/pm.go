package wire

import "fmt"

// MinMax is an unsigned limit pair of the power module capabilities
// (0x2110 sub-index 2..5).
type MinMax struct {
	Min uint16
	Max uint16
}

// MinMaxSize is the encoded size of MinMax and TempRange.
const MinMaxSize = 4

func (m MinMax) MarshalBinary() ([]byte, error) {
	b := make([]byte, MinMaxSize)
	le.PutUint16(b[0:], m.Min)
	le.PutUint16(b[2:], m.Max)
	return b, nil
}

func (m *MinMax) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, MinMaxSize, "min/max"); err != nil {
		return err
	}
	m.Min = le.Uint16(data[0:])
	m.Max = le.Uint16(data[2:])
	return nil
}

// Contains reports whether v lies within the limits.
func (m MinMax) Contains(v uint16) bool {
	return v >= m.Min && v <= m.Max
}

func (m MinMax) String() string {
	return fmt.Sprintf("%d..%d", m.Min, m.Max)
}

// TempRange is the signed temperature limit pair (0x2110:06) in 0.1 °C.
type TempRange struct {
	Min int16
	Max int16
}

func (r TempRange) MarshalBinary() ([]byte, error) {
	b := make([]byte, MinMaxSize)
	le.PutUint16(b[0:], uint16(r.Min))
	le.PutUint16(b[2:], uint16(r.Max))
	return b, nil
}

func (r *TempRange) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, MinMaxSize, "temperature range"); err != nil {
		return err
	}
	r.Min = int16(le.Uint16(data[0:]))
	r.Max = int16(le.Uint16(data[2:]))
	return nil
}

func (r TempRange) String() string {
	return fmt.Sprintf("%.1f..%.1f°C", float64(r.Min)/10, float64(r.Max)/10)
}

// PMCapabilities collects the power module capabilities object (0x2110).
type PMCapabilities struct {
	Version uint16
	ACU     MinMax
	ACI     MinMax
	DCU     MinMax
	DCI     MinMax
	Temp    TempRange
	Power   uint16
}

// PMCapabilitiesCount is the value of 0x2110:00.
const PMCapabilitiesCount = 7

// CoolingParameters collects the cooling object (0x2117).
type CoolingParameters struct {
	Version   uint16
	Topology  uint8
	Airflow   uint16
	MinFanPWM uint8
}

// CoolingParametersCount is the value of 0x2117:00.
const CoolingParametersCount = 4
