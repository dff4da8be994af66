package update

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Device is the bridge side of the update handshake. *bridge.Bridge
// implements it.
type Device interface {
	Node() uint8
	SetUpdateMode(ctx context.Context, m wire.UpdateMode) error
	StartUpdate(ctx context.Context, v wire.SoftVersion) error
	UpdateStatus(ctx context.Context) (wire.UpdateStatus, error)
	WriteDataFrame(ctx context.Context, f wire.DataFrame) error
	EndData(ctx context.Context) error
}

// Images are the firmware images of one update. The bridge requests them
// by index: 1 is PFC, 2 is DCDC and 3 is CAN.
type Images struct {
	Version wire.SoftVersion
	PFC     []byte
	DCDC    []byte
	CAN     []byte
}

// Validate checks that every image the version announces is present.
func (im Images) Validate() error {
	if len(im.PFC) == 0 {
		return fmt.Errorf("PFC: %w", ErrNoImage)
	}
	if len(im.DCDC) == 0 {
		return fmt.Errorf("DCDC: %w", ErrNoImage)
	}
	if im.Version.HasCAN != (len(im.CAN) > 0) {
		return ErrCANImage
	}
	return nil
}

// Count returns the number of images.
func (im Images) Count() int {
	if im.Version.HasCAN {
		return 3
	}
	return 2
}

// Image returns image index (1-based), or nil.
func (im Images) Image(index uint8) []byte {
	switch {
	case index == 1:
		return im.PFC
	case index == 2:
		return im.DCDC
	case index == 3 && im.Version.HasCAN:
		return im.CAN
	}
	return nil
}

// Updater runs the update handshake against a Device.
type Updater struct {
	device Device
	config Config
}

// New creates an Updater for device.
func New(device Device, opts ...Option) *Updater {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Events = log.OrNoop(cfg.Events)
	return &Updater{device: device, config: cfg}
}

// run is the state of one Run call.
type run struct {
	id     string
	start  time.Time
	images Images
	phase  Phase
	image  uint8
	p      Progress
}

// Run updates the power modules with images. It returns when the bridge
// reports the update done, on the first error, or when ctx is cancelled.
func (u *Updater) Run(ctx context.Context, images Images) error {
	if err := images.Validate(); err != nil {
		return err
	}
	r := &run{
		id:     uuid.New().String(),
		start:  time.Now(),
		images: images,
		p:      Progress{Images: images.Count()},
	}
	u.debug("update run", "id", r.id, "versions", images.Version.String(), "mode", u.config.Mode)

	err := u.run(ctx, r)
	if err != nil {
		u.setPhase(r, PhaseFailed, err.Error())
		code := -1
		var ue *Error
		if errors.As(err, &ue) {
			code = int(ue.ID)
		}
		u.config.Events.Log(log.ErrorEvent(log.LayerUpdate, err, "update run "+r.id, &code))
		return err
	}
	u.setPhase(r, PhaseDone, "")
	return nil
}

func (u *Updater) run(ctx context.Context, r *run) error {
	u.setPhase(r, PhaseMode, u.config.Mode.String())
	if err := u.device.SetUpdateMode(ctx, u.config.Mode); err != nil {
		return fmt.Errorf("set update mode: %w", err)
	}

	u.setPhase(r, PhaseStart, r.images.Version.String())
	if err := u.device.StartUpdate(ctx, r.images.Version); err != nil {
		return fmt.Errorf("start update: %w", err)
	}

	// An idle bridge reports ready with index 0 until it takes the start.
	stage := wire.StageStart
	st, err := u.wait(ctx, r, wire.UpdateStatus{State: wire.UpdateStateReadyToReceive})
	for {
		if err != nil {
			return err
		}
		if st.State == wire.UpdateStateError {
			return statusError(st, stage, r.image)
		}
		if st.Done() {
			return nil
		}

		index := st.Index
		image := r.images.Image(index)
		if image == nil {
			return fmt.Errorf("%w: index %d of %d", ErrUnexpectedImage, index, r.images.Count())
		}
		if err := u.send(ctx, r, index, image); err != nil {
			return err
		}

		stage = wire.StageEnd
		st, err = u.wait(ctx, r, wire.UpdateStatus{State: wire.UpdateStateReadyToReceive, Index: index})
	}
}

// send streams one image and marks its end.
func (u *Updater) send(ctx context.Context, r *run, index uint8, image []byte) error {
	r.image = index
	r.p.Image = index
	r.p.BytesSent = 0
	r.p.BytesTotal = len(image)
	u.setPhase(r, PhaseData, fmt.Sprintf("image %d, %d bytes", index, len(image)))

	for i, f := range wire.SplitFrames(image) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("image %d cancelled: %w", index, err)
		}
		if err := u.device.WriteDataFrame(ctx, f); err != nil {
			return u.refused(ctx, r, index, fmt.Errorf("image %d frame %d: %w", index, i, err))
		}
		r.p.BytesSent = min((i+1)*wire.DataFrameSize, len(image))
		u.progress(r)
	}

	u.setPhase(r, PhaseEnd, fmt.Sprintf("image %d", index))
	if err := u.device.EndData(ctx); err != nil {
		return u.refused(ctx, r, index, fmt.Errorf("end image %d: %w", index, err))
	}
	return nil
}

// refused turns a data write the bridge refused into the error it
// reports in its status, if any. The bridge stops taking data once a
// transfer to the modules failed.
func (u *Updater) refused(ctx context.Context, r *run, index uint8, err error) error {
	if !errors.Is(err, wire.ErrDeviceState) {
		return err
	}
	st, werr := u.wait(ctx, r, wire.UpdateStatus{State: wire.UpdateStateReadyToReceive, Index: index})
	if werr != nil {
		return errors.Join(err, werr)
	}
	if st.State == wire.UpdateStateError {
		return statusError(st, wire.StageData, index)
	}
	return err
}

// wait polls the status until the bridge reports an error or a ready
// status other than stale.
func (u *Updater) wait(ctx context.Context, r *run, stale wire.UpdateStatus) (wire.UpdateStatus, error) {
	u.setPhase(r, PhaseWaiting, "")
	changed := time.Now()
	first := true
	for {
		st, err := u.device.UpdateStatus(ctx)
		if err != nil {
			return st, fmt.Errorf("read update status: %w", err)
		}
		if first || st != r.p.Status {
			first = false
			changed = time.Now()
			r.p.Status = st
			u.debug("update status", "status", st.String())
			u.progress(r)
		}

		switch {
		case st.State == wire.UpdateStateError:
			return st, nil
		case st.State == wire.UpdateStateReadyToReceive && st != stale:
			return st, nil
		}

		if time.Since(changed) >= u.config.StatusTimeout {
			return st, fmt.Errorf("%w: %s for %s", ErrStatusTimeout, st, u.config.StatusTimeout)
		}

		timer := time.NewTimer(u.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return st, ctx.Err()
		case <-timer.C:
		}
	}
}

func (u *Updater) setPhase(r *run, phase Phase, reason string) {
	if r.phase == phase {
		return
	}
	old := r.phase
	r.phase = phase
	r.p.Phase = phase
	if phase != PhaseData && phase != PhaseEnd {
		r.p.Image = 0
		r.p.BytesSent = 0
		r.p.BytesTotal = 0
	}

	ev := log.StateEvent(log.LayerUpdate, log.StateEntityUpdate, string(old), string(phase), reason)
	ev.LocalRole = log.RoleController
	ev.Node = u.device.Node()
	u.config.Events.Log(ev)

	status := r.p.Status
	u.config.Events.Log(log.ProgressEvent(u.device.Node(), log.UpdateEvent{
		RunID:      r.id,
		Phase:      string(phase),
		Image:      r.p.Image,
		BytesSent:  r.p.BytesSent,
		BytesTotal: r.p.BytesTotal,
		Status:     &status,
	}))
	u.progress(r)
}

func (u *Updater) progress(r *run) {
	if u.config.Progress == nil {
		return
	}
	p := r.p
	p.Elapsed = time.Since(r.start)
	u.config.Progress(p)
}

func (u *Updater) debug(msg string, args ...any) {
	if u.config.Logger != nil {
		u.config.Logger.Debug(msg, args...)
	}
}
