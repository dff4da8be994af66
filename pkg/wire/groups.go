package wire

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/powerbridge/pwb-go/pkg/od"
)

// MaxGroups is the maximum number of power module groups.
const MaxGroups = 2

// MaxModules is the maximum number of power modules behind one bridge.
const MaxModules = od.MaxModules

// Topology is the number of groups and the number of power modules per
// group (0x2421).
type Topology struct {
	Groups   uint8
	PerGroup [MaxGroups]uint8
}

// Validate checks the group and module counts.
func (t Topology) Validate() error {
	if t.Groups > MaxGroups {
		return invalid("topology", "%d groups, at most %d", t.Groups, MaxGroups)
	}
	total := 0
	for i, n := range t.PerGroup {
		if n > MaxModules {
			return invalid("topology", "group %d has %d modules, at most %d", i+1, n, MaxModules)
		}
		if i < int(t.Groups) {
			total += int(n)
		}
	}
	if total > MaxModules {
		return invalid("topology", "%d modules in total, at most %d", total, MaxModules)
	}
	return nil
}

// Modules returns the number of power modules in the configured groups.
func (t Topology) Modules() int {
	total := 0
	for i := 0; i < int(t.Groups) && i < MaxGroups; i++ {
		total += int(t.PerGroup[i])
	}
	return total
}

func (t Topology) String() string {
	return fmt.Sprintf("%d groups %v", t.Groups, t.PerGroup[:min(int(t.Groups), MaxGroups)])
}

// GroupMask selects power modules, bit 0 is power module 1.
type GroupMask uint32

// MaskOf builds a mask from 1-based power module numbers.
func MaskOf(pms ...int) GroupMask {
	var m GroupMask
	for _, pm := range pms {
		if pm >= 1 && pm <= 32 {
			m |= 1 << (pm - 1)
		}
	}
	return m
}

// Contains reports whether power module pm (1-based) is in the mask.
func (m GroupMask) Contains(pm int) bool {
	if pm < 1 || pm > 32 {
		return false
	}
	return m&(1<<(pm-1)) != 0
}

// Modules returns the 1-based power module numbers in the mask.
func (m GroupMask) Modules() []int {
	var out []int
	for v := uint32(m); v != 0; v &= v - 1 {
		out = append(out, bits.TrailingZeros32(v)+1)
	}
	return out
}

// Len returns the number of power modules in the mask.
func (m GroupMask) Len() int {
	return bits.OnesCount32(uint32(m))
}

func (m GroupMask) String() string {
	mods := m.Modules()
	parts := make([]string, len(mods))
	for i, pm := range mods {
		parts[i] = fmt.Sprintf("PM%d", pm)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Groups is the power module assignment per group (0x2422).
type Groups struct {
	Count uint32
	Masks [MaxGroups]GroupMask
}

// Validate checks the group count, that every mask selects existing power
// modules and that no power module belongs to two groups.
func (g Groups) Validate() error {
	if g.Count > MaxGroups {
		return invalid("groups", "%d groups, at most %d", g.Count, MaxGroups)
	}
	var seen GroupMask
	for i, m := range g.Masks {
		if m>>MaxModules != 0 {
			return invalid("groups", "group %d mask 0x%x selects modules above %d", i+1, uint32(m), MaxModules)
		}
		if overlap := seen & m; overlap != 0 {
			return invalid("groups", "%s in more than one group", overlap)
		}
		seen |= m
	}
	return nil
}

// GroupOf returns the 1-based group of power module pm, or 0.
func (g Groups) GroupOf(pm int) int {
	for i := 0; i < int(g.Count) && i < MaxGroups; i++ {
		if g.Masks[i].Contains(pm) {
			return i + 1
		}
	}
	return 0
}

// Matches reports whether the masks agree with the module counts of t.
func (g Groups) Matches(t Topology) bool {
	if g.Count != uint32(t.Groups) {
		return false
	}
	for i := 0; i < int(t.Groups); i++ {
		if g.Masks[i].Len() != int(t.PerGroup[i]) {
			return false
		}
	}
	return true
}
