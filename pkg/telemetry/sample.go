package telemetry

import (
	"time"

	"github.com/powerbridge/pwb-go/pkg/bridge"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Sample is the reading of one power module at one poll.
type Sample struct {
	Time time.Time
	Node uint8
	PM   int

	// Group is the 1-based group of the module, 0 if unassigned.
	Group int

	Output      wire.VI
	Temperature uint8 // °C
	State       uint32

	// Vendor and Flags are the decoded vendor state.
	Vendor string
	Flags  []string
	Fault  bool

	Interlink wire.InterlinkState
}

// Watts returns the output power.
func (s Sample) Watts() float64 {
	return s.Output.Watts()
}

// Samples converts a bridge snapshot into one sample per module.
func Samples(snap *bridge.Snapshot) []Sample {
	out := make([]Sample, 0, len(snap.Modules))
	for _, m := range snap.Modules {
		s := Sample{
			Time:        snap.Timestamp,
			Node:        snap.Node,
			PM:          m.PM,
			Group:       m.Group,
			Output:      m.Output,
			Temperature: m.State.State.Temperature,
			State:       m.State.State.Raw(),
			Fault:       m.State.HasFault(),
			Interlink:   snap.Interlink,
		}
		if v := m.State.Vendor; v != nil {
			s.Vendor = v.Vendor().String()
			s.Flags = v.Flags()
		}
		out = append(out, s)
	}
	return out
}
