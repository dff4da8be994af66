package wire

import "fmt"

// PMType is the configured power module type (object 0x2420).
type PMType uint8

const (
	PMTypeUndefined  PMType = 0
	PMTypeInfy50030  PMType = 1
	PMTypeInfy75025  PMType = 2
	PMTypeInfy100025 PMType = 3
	PMTypeIncr50030  PMType = 4
	PMTypeIncr75025  PMType = 5
	PMTypeUUGr100030 PMType = 6
	PMTypeELPC100030 PMType = 7
)

// Vendor is the manufacturer of a power module.
type Vendor uint8

const (
	VendorNone Vendor = iota
	VendorInfy
	VendorIncrease
	VendorUUGreen
	VendorELPC
)

// String returns the vendor name.
func (v Vendor) String() string {
	switch v {
	case VendorInfy:
		return "InfyPower"
	case VendorIncrease:
		return "Increase"
	case VendorUUGreen:
		return "UUGreenPower"
	case VendorELPC:
		return "ELPCPower"
	default:
		return "None"
	}
}

// MaxPowerCapability is the default power capability ceiling in 0.1 kW.
const MaxPowerCapability = 300

type pmTypeInfo struct {
	name    string
	vendor  Vendor
	voltage uint16 // V
	current uint16 // A
}

var pmTypes = map[PMType]pmTypeInfo{
	PMTypeInfy50030:  {"Infy,500V/30A", VendorInfy, 500, 30},
	PMTypeInfy75025:  {"Infy,750V/25A", VendorInfy, 750, 25},
	PMTypeInfy100025: {"Infy,1000V/25A", VendorInfy, 1000, 25},
	PMTypeIncr50030:  {"Increase,500V/30A", VendorIncrease, 500, 30},
	PMTypeIncr75025:  {"Increase,750V/25A", VendorIncrease, 750, 25},
	PMTypeUUGr100030: {"UuGreen,1000V/30A", VendorUUGreen, 1000, 30},
	PMTypeELPC100030: {"Elpc,1000V/30A", VendorELPC, 1000, 30},
}

// String returns the type string, "Undefined" for unknown values.
func (t PMType) String() string {
	if info, ok := pmTypes[t]; ok {
		return info.name
	}
	return "Undefined"
}

// IsValid returns true for a known, defined type.
func (t PMType) IsValid() bool {
	_, ok := pmTypes[t]
	return ok
}

// Vendor returns the manufacturer of the type.
func (t PMType) Vendor() Vendor {
	return pmTypes[t].vendor
}

// RatedVoltage returns the rated output voltage in V.
func (t PMType) RatedVoltage() uint16 {
	return pmTypes[t].voltage
}

// RatedCurrent returns the rated output current in A.
func (t PMType) RatedCurrent() uint16 {
	return pmTypes[t].current
}

// DefaultCapabilities returns the hard-coded output capabilities of the
// type: rated voltage and current, and their product capped at 30 kW.
func (t PMType) DefaultCapabilities() Capabilities {
	info, ok := pmTypes[t]
	if !ok {
		return Capabilities{}
	}
	power := uint32(info.voltage) * uint32(info.current) / 100 // W -> 0.1 kW
	if power > MaxPowerCapability {
		power = MaxPowerCapability
	}
	return Capabilities{
		Voltage: info.voltage * 10,
		Current: info.current * 10,
		Power:   uint16(power),
	}
}

// ParsePMType parses a type number or type string.
func ParsePMType(s string) (PMType, error) {
	for t, info := range pmTypes {
		if info.name == s {
			return t, nil
		}
	}
	var n uint8
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && PMType(n).IsValid() {
		return PMType(n), nil
	}
	return PMTypeUndefined, fmt.Errorf("unknown power module type %q", s)
}
