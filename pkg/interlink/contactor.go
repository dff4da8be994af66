package interlink

import (
	"fmt"
	"sync"
	"time"

	"github.com/powerbridge/pwb-go/pkg/wire"
)

// TimedEnableDuration is how long a timed enable keeps the contactor closed.
const TimedEnableDuration = 10 * time.Second

// Mode is the command mode the contactor was last put in.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeTimed
	ModeForced
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeTimed:
		return "timed"
	case ModeForced:
		return "forced"
	default:
		return "unknown"
	}
}

// Contactor is the device side of the interlink DC contactor (0x2402).
//
// A timed enable closes the contactor for TimedEnableDuration and every
// further timed enable re-arms the timer; the contactor opens when it
// expires. A forced enable closes it without a timer, forced off opens it.
// A fault puts the contactor in the error state until ClearFault.
type Contactor struct {
	mu sync.Mutex

	state    wire.InterlinkState
	mode     Mode
	duration time.Duration
	fault    error

	timer     *time.Timer
	timerGen  uint64
	expiresAt time.Time

	onStateChange func(oldState, newState wire.InterlinkState, reason string)
}

// NewContactor creates an open contactor. A zero duration selects
// TimedEnableDuration.
func NewContactor(duration time.Duration) *Contactor {
	if duration <= 0 {
		duration = TimedEnableDuration
	}
	return &Contactor{
		state:    wire.InterlinkOpen,
		duration: duration,
	}
}

// OnStateChange sets a callback for state changes. It is called without
// the contactor lock held.
func (c *Contactor) OnStateChange(fn func(oldState, newState wire.InterlinkState, reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = fn
}

// State returns the contactor state as read from 0x2402.
func (c *Contactor) State() wire.InterlinkState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode returns the mode of the last accepted command.
func (c *Contactor) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Fault returns the active fault, or nil.
func (c *Contactor) Fault() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fault
}

// Remaining returns the time until a timed enable expires, 0 when no
// timer runs.
func (c *Contactor) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return 0
	}
	if d := time.Until(c.expiresAt); d > 0 {
		return d
	}
	return 0
}

// Apply executes a command written to 0x2402. Reserved values are
// rejected with a *wire.ValidationError. While faulted only forced off is
// accepted; other commands return wire.ErrDeviceState.
func (c *Contactor) Apply(cmd wire.InterlinkCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.fault != nil && cmd != wire.InterlinkForcedOff {
		c.mu.Unlock()
		return fmt.Errorf("interlink faulted (%v): %w", c.fault, wire.ErrDeviceState)
	}

	c.stopTimerLocked()
	newState := wire.InterlinkClosed
	switch cmd {
	case wire.InterlinkForcedOff:
		c.mode = ModeOff
		newState = wire.InterlinkOpen
	case wire.InterlinkTimedEnable:
		c.mode = ModeTimed
		c.armTimerLocked()
	case wire.InterlinkForcedEnable:
		c.mode = ModeForced
	}
	if c.fault != nil {
		newState = wire.InterlinkError
	}

	notify := c.setStateLocked(newState)
	c.mu.Unlock()

	notify(cmd.String())
	return nil
}

// SetFault opens the contactor and reports the error state until
// ClearFault is called.
func (c *Contactor) SetFault(err error) {
	c.mu.Lock()
	c.stopTimerLocked()
	c.fault = err
	c.mode = ModeOff
	notify := c.setStateLocked(wire.InterlinkError)
	c.mu.Unlock()

	notify(fmt.Sprintf("fault: %v", err))
}

// ClearFault leaves the error state. The contactor stays open.
func (c *Contactor) ClearFault() {
	c.mu.Lock()
	if c.fault == nil {
		c.mu.Unlock()
		return
	}
	c.fault = nil
	notify := c.setStateLocked(wire.InterlinkOpen)
	c.mu.Unlock()

	notify("fault cleared")
}

// Close stops the timer without changing the state.
func (c *Contactor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

func (c *Contactor) armTimerLocked() {
	c.timerGen++
	gen := c.timerGen
	c.expiresAt = time.Now().Add(c.duration)
	c.timer = time.AfterFunc(c.duration, func() {
		c.expire(gen)
	})
}

func (c *Contactor) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

// expire is called when a timed enable runs out.
func (c *Contactor) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen || c.mode != ModeTimed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mode = ModeOff
	notify := c.setStateLocked(wire.InterlinkOpen)
	c.mu.Unlock()

	notify("timed enable expired")
}

// setStateLocked updates the state and returns a function that runs the
// callback once the lock is released.
func (c *Contactor) setStateLocked(newState wire.InterlinkState) func(reason string) {
	oldState := c.state
	c.state = newState
	fn := c.onStateChange
	if fn == nil || oldState == newState {
		return func(string) {}
	}
	return func(reason string) { fn(oldState, newState, reason) }
}
