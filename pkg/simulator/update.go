package simulator

import (
	"fmt"
	"strings"
	"time"

	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Update session phases.
const (
	phaseIdle      = "idle"
	phaseStarting  = "starting"
	phaseReceiving = "receiving"
	phaseDone      = "done"
	phaseError     = "error"
)

// updateSession is the device side of the update handshake.
type updateSession struct {
	mode     wire.UpdateMode
	phase    string
	versions wire.SoftVersion

	// images is the number of images expected, image the one being received.
	images int
	image  int
	buf    []byte
	done   [][]byte

	// status is reported once readyAt has passed, processing before.
	status  wire.UpdateStatus
	readyAt time.Time
}

func (u *updateSession) setMode(m wire.UpdateMode) error {
	if u.busy() {
		return fmt.Errorf("update in progress: %w", wire.ErrDeviceState)
	}
	u.mode = m
	return nil
}

func (u *updateSession) busy() bool {
	return u.phase == phaseStarting || u.phase == phaseReceiving
}

func (u *updateSession) statusAt(now time.Time) wire.UpdateStatus {
	if u.phase == "" || u.phase == phaseIdle {
		return wire.UpdateStatus{State: wire.UpdateStateReadyToReceive}
	}
	if now.Before(u.readyAt) {
		return wire.UpdateStatus{State: wire.UpdateStateProcessing}
	}
	return u.status
}

func (s *Simulator) processLocked(next wire.UpdateStatus) {
	s.update.status = next
	s.update.readyAt = s.now().Add(s.config.Update.ProcessingDelay)
}

func (s *Simulator) setUpdatePhaseLocked(phase, reason string) {
	old := s.update.phase
	if old == "" {
		old = phaseIdle
	}
	s.update.phase = phase
	s.debug("update", "old", old, "new", phase, "reason", reason)
	s.protocol.Log(log.StateEvent(log.LayerUpdate, log.StateEntityUpdate, old, phase, reason))
}

// injectedFailure returns the configured failure for stage and the current
// image.
func (s *Simulator) injectedFailureLocked(stage string) (wire.UpdateStatus, bool) {
	f := s.config.Update.Fail
	if f == nil || !strings.EqualFold(f.Stage, stage) {
		return wire.UpdateStatus{}, false
	}
	if stage != "start" && f.Image != s.update.image {
		return wire.UpdateStatus{}, false
	}
	return wire.UpdateStatus{State: wire.UpdateStateError, Index: f.Error, Detail: f.Detail}, true
}

func (s *Simulator) failLocked(status wire.UpdateStatus, reason string) {
	s.processLocked(status)
	s.setUpdatePhaseLocked(phaseError, reason)
}

func (s *Simulator) startUpdateLocked(v wire.SoftVersion) error {
	if s.update.busy() {
		return fmt.Errorf("update in progress: %w", wire.ErrDeviceState)
	}
	mode := s.update.mode
	s.update = updateSession{mode: mode, versions: v, images: 2}
	if v.HasCAN {
		s.update.images = 3
	}
	s.setUpdatePhaseLocked(phaseStarting, v.String())

	if status, ok := s.injectedFailureLocked("start"); ok {
		s.failLocked(status, "injected start failure")
		return nil
	}
	if mode != wire.UpdateVerifyNothing && s.topology.Modules() != len(s.modules) {
		s.failLocked(wire.UpdateStatus{
			State:  wire.UpdateStateError,
			Index:  uint8(wire.UpdateErrStartPrimaryNotMatchPMNumber),
			Detail: uint16(len(s.modules)),
		}, "module count mismatch")
		return nil
	}
	if mode == wire.UpdateVerifyAddrNum && s.address.Address == 0 {
		s.failLocked(wire.UpdateStatus{
			State: wire.UpdateStateError,
			Index: uint8(wire.UpdateErrStartPrimaryEraseUnexpectedRespAddrError),
		}, "no power module address")
		return nil
	}

	s.update.image = 1
	s.processLocked(wire.UpdateStatus{State: wire.UpdateStateReadyToReceive, Index: 1})
	s.setUpdatePhaseLocked(phaseReceiving, "")
	return nil
}

// receivingLocked reports whether the bridge accepts data for the
// current image.
func (s *Simulator) receivingLocked() bool {
	if s.update.phase != phaseReceiving {
		return false
	}
	st := s.update.statusAt(s.now())
	return st.State == wire.UpdateStateReadyToReceive && int(st.Index) == s.update.image
}

func (s *Simulator) dataFrameLocked(f wire.DataFrame) error {
	if !s.receivingLocked() {
		return fmt.Errorf("not ready to receive: %w", wire.ErrDeviceState)
	}
	if len(s.update.buf) == 0 {
		if status, ok := s.injectedFailureLocked("data"); ok {
			s.failLocked(status, fmt.Sprintf("injected data failure in image %d", s.update.image))
			return nil
		}
	}
	s.update.buf = append(s.update.buf, f[:]...)
	return nil
}

func (s *Simulator) dataEndLocked() error {
	if !s.receivingLocked() || len(s.update.buf) == 0 {
		return fmt.Errorf("no image data: %w", wire.ErrDeviceState)
	}
	if status, ok := s.injectedFailureLocked("end"); ok {
		s.failLocked(status, fmt.Sprintf("injected end failure in image %d", s.update.image))
		return nil
	}

	s.update.done = append(s.update.done, s.update.buf)
	s.debug("update image received", "image", s.update.image, "bytes", len(s.update.buf))
	s.update.buf = nil

	if s.update.image >= s.update.images {
		s.update.image = 0
		s.processLocked(wire.UpdateStatus{State: wire.UpdateStateReadyToReceive})
		s.setUpdatePhaseLocked(phaseDone, fmt.Sprintf("%d images", len(s.update.done)))
		return nil
	}
	s.update.image++
	s.processLocked(wire.UpdateStatus{State: wire.UpdateStateReadyToReceive, Index: uint8(s.update.image)})
	return nil
}

// UpdateImages returns the images received by the last update, padding
// included.
func (s *Simulator) UpdateImages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.update.done))
	for i, img := range s.update.done {
		out[i] = append([]byte(nil), img...)
	}
	return out
}

// UpdateVersions returns the versions written by the last update start.
func (s *Simulator) UpdateVersions() wire.SoftVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update.versions
}
