package update

import (
	"time"

	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Phase is a step of an update run.
type Phase string

const (
	PhaseMode    Phase = "mode"
	PhaseStart   Phase = "start"
	PhaseWaiting Phase = "waiting"
	PhaseData    Phase = "data"
	PhaseEnd     Phase = "end"
	PhaseDone    Phase = "done"
	PhaseFailed  Phase = "failed"
)

// Progress describes the state of a running update.
type Progress struct {
	Phase Phase

	// Image is the index of the image being sent (1-based), 0 outside the
	// data and end phases.
	Image  uint8
	Images int

	// BytesSent and BytesTotal count the bytes of the current image.
	BytesSent  int
	BytesTotal int

	// Status is the last status read from the bridge.
	Status wire.UpdateStatus

	Elapsed time.Duration
}

// ProgressFunc receives progress reports. It runs on the updater
// goroutine and should return quickly.
type ProgressFunc func(Progress)
