package update

import (
	"errors"
	"fmt"

	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Updater errors.
var (
	ErrNoImage         = errors.New("image is empty")
	ErrCANImage        = errors.New("CAN image and CAN version must be given together")
	ErrStatusTimeout   = errors.New("update status did not change")
	ErrUnexpectedImage = errors.New("bridge requested an unknown image")
)

// Error is an update failure reported by the bridge.
type Error struct {
	ID     wire.UpdateError
	Stage  wire.UpdateStage
	Detail uint16

	// Image is the image being handled when the error was reported, 0
	// during the start.
	Image uint8
}

func (e *Error) Error() string {
	s := fmt.Sprintf("update failed in %s stage: %s (%d) detail 0x%04x",
		e.Stage, e.ID.NameInStage(e.Stage), uint8(e.ID), e.Detail)
	if e.Image != 0 {
		s += fmt.Sprintf(" image %d", e.Image)
	}
	return s
}

func statusError(st wire.UpdateStatus, stage wire.UpdateStage, image uint8) *Error {
	return &Error{ID: st.ErrorID(), Stage: stage, Detail: st.Detail, Image: image}
}
