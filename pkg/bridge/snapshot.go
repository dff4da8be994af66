package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Snapshot is the readable configuration and state of a bridge.
type Snapshot struct {
	Node      uint8
	Timestamp time.Time

	Interlink         wire.InterlinkState
	MaxOutput         wire.VI
	FanConfiguration  wire.FanConfiguration
	FanCount          uint8
	FanStates         wire.FanStates
	ACContactors      wire.ACContactorGroups
	CabinetController wire.CabinetController
	Address           wire.PMAddress
	PMType            wire.PMType
	Topology          wire.Topology
	Groups            wire.Groups
	Offset            uint8
	Capabilities      wire.Capabilities
	UpdateStatus      wire.UpdateStatus

	// Modules holds the modules of the topology, all of them when the
	// topology is empty.
	Modules []ModuleSnapshot
}

// ModuleSnapshot is the output and state of one power module.
type ModuleSnapshot struct {
	PM     int
	Group  int
	Output wire.VI
	State  ModuleState
}

// Snapshot reads every readable object of the bridge.
func (b *Bridge) Snapshot(ctx context.Context) (*Snapshot, error) {
	s := &Snapshot{Node: b.id, Timestamp: time.Now()}

	steps := []struct {
		name string
		read func() error
	}{
		{"interlink", func() (err error) { s.Interlink, err = b.Interlink(ctx); return }},
		{"max output", func() (err error) { s.MaxOutput, err = b.MaxOutput(ctx); return }},
		{"fan configuration", func() (err error) { s.FanConfiguration, err = b.FanConfiguration(ctx); return }},
		{"fan count", func() (err error) { s.FanCount, err = b.FanCount(ctx); return }},
		{"fan states", func() (err error) { s.FanStates, err = b.FanStates(ctx); return }},
		{"ac contactors", func() (err error) { s.ACContactors, err = b.ACContactors(ctx); return }},
		{"cabinet controller", func() (err error) { s.CabinetController, err = b.CabinetController(ctx); return }},
		{"address", func() (err error) { s.Address, err = b.Address(ctx); return }},
		{"pm type", func() (err error) { s.PMType, err = b.PMType(ctx); return }},
		{"topology", func() (err error) { s.Topology, err = b.Topology(ctx); return }},
		{"groups", func() (err error) { s.Groups, err = b.Groups(ctx); return }},
		{"offset", func() (err error) { s.Offset, err = b.Offset(ctx); return }},
		{"capabilities", func() (err error) { s.Capabilities, err = b.Capabilities(ctx); return }},
		{"update status", func() (err error) { s.UpdateStatus, err = b.UpdateStatus(ctx); return }},
	}
	for _, step := range steps {
		if err := step.read(); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", step.name, err)
		}
	}

	n := s.Topology.Modules()
	if n == 0 {
		n = od.MaxModules
	}
	for pm := 1; pm <= n; pm++ {
		out, err := b.Output(ctx, pm)
		if err != nil {
			return nil, fmt.Errorf("snapshot PM%d output: %w", pm, err)
		}
		st, err := b.State(ctx, pm)
		if err != nil {
			return nil, fmt.Errorf("snapshot PM%d state: %w", pm, err)
		}
		s.Modules = append(s.Modules, ModuleSnapshot{
			PM:     pm,
			Group:  s.Groups.GroupOf(pm),
			Output: out,
			State:  st,
		})
	}
	return s, nil
}

// Faults returns the modules whose vendor state carries an error bit.
func (s *Snapshot) Faults() []ModuleSnapshot {
	var out []ModuleSnapshot
	for _, m := range s.Modules {
		if m.State.HasFault() {
			out = append(out, m)
		}
	}
	return out
}
