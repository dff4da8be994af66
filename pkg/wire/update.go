package wire

import "fmt"

// UpdateMode selects the verification done before an update (0x2444).
type UpdateMode uint8

const (
	// UpdateVerifyAddrNum verifies the addresses and number of modules.
	UpdateVerifyAddrNum UpdateMode = 0

	// UpdateVerifyNum verifies the number of modules only.
	UpdateVerifyNum UpdateMode = 1

	// UpdateVerifyNothing skips verification.
	UpdateVerifyNothing UpdateMode = 2
)

func (m UpdateMode) String() string {
	switch m {
	case UpdateVerifyAddrNum:
		return "verify-addr-num"
	case UpdateVerifyNum:
		return "verify-num"
	case UpdateVerifyNothing:
		return "verify-nothing"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// ParseUpdateMode parses the names returned by UpdateMode.String.
func ParseUpdateMode(s string) (UpdateMode, error) {
	for m := UpdateVerifyAddrNum; m <= UpdateVerifyNothing; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown update mode %q", s)
}

// UpdateState is the first byte of the update status.
type UpdateState uint8

const (
	UpdateStateProcessing     UpdateState = 0
	UpdateStateReadyToReceive UpdateState = 1
	UpdateStateError          UpdateState = 2
)

func (s UpdateState) String() string {
	switch s {
	case UpdateStateProcessing:
		return "processing"
	case UpdateStateReadyToReceive:
		return "ready-to-receive"
	case UpdateStateError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// UpdateStatus is the update status object (0x2441).
//
// Layout: state uint8, expected image index or error id uint8, error
// detail uint16. An expected image index of 0 means the update is done.
type UpdateStatus struct {
	State UpdateState

	// Index is the expected image index in UpdateStateReadyToReceive and
	// the UpdateError id in UpdateStateError.
	Index uint8

	Detail uint16
}

// UpdateStatusSize is the encoded size of UpdateStatus.
const UpdateStatusSize = 4

// Done reports whether all images have been transferred.
func (s UpdateStatus) Done() bool {
	return s.State == UpdateStateReadyToReceive && s.Index == 0
}

// ErrorID returns the error id. Only meaningful in UpdateStateError.
func (s UpdateStatus) ErrorID() UpdateError {
	return UpdateError(s.Index)
}

func (s UpdateStatus) MarshalBinary() ([]byte, error) {
	b := make([]byte, UpdateStatusSize)
	b[0] = uint8(s.State)
	b[1] = s.Index
	le.PutUint16(b[2:], s.Detail)
	return b, nil
}

func (s *UpdateStatus) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, UpdateStatusSize, "update status"); err != nil {
		return err
	}
	s.State = UpdateState(data[0])
	s.Index = data[1]
	s.Detail = le.Uint16(data[2:])
	return nil
}

func (s UpdateStatus) String() string {
	switch s.State {
	case UpdateStateReadyToReceive:
		if s.Index == 0 {
			return "done"
		}
		return fmt.Sprintf("ready-to-receive image %d", s.Index)
	case UpdateStateError:
		return fmt.Sprintf("error %s detail 0x%04x", s.ErrorID(), s.Detail)
	default:
		return s.State.String()
	}
}

// SoftVersion carries the image versions written to the update start
// object (0x2440): PFC at bytes 0..1, DCDC at 2..3 and, for vendors with
// a CAN DSP, the CAN version at 4..5.
type SoftVersion struct {
	PFC  uint16
	DCDC uint16

	// CAN is encoded only when HasCAN is set.
	CAN    uint16
	HasCAN bool
}

func (v SoftVersion) MarshalBinary() ([]byte, error) {
	b := le.AppendUint16(nil, v.PFC)
	b = le.AppendUint16(b, v.DCDC)
	if v.HasCAN {
		b = le.AppendUint16(b, v.CAN)
	}
	return b, nil
}

func (v *SoftVersion) UnmarshalBinary(data []byte) error {
	switch len(data) {
	case 4, 6:
	default:
		return fmt.Errorf("%w: soft version is 4 or 6 bytes, got %d", ErrInvalidLength, len(data))
	}
	v.PFC = le.Uint16(data[0:])
	v.DCDC = le.Uint16(data[2:])
	v.HasCAN = len(data) == 6
	v.CAN = 0
	if v.HasCAN {
		v.CAN = le.Uint16(data[4:])
	}
	return nil
}

// versionParts splits a version into major (low byte) and minor (high byte).
func versionParts(v uint16) (uint8, uint8) {
	return uint8(v), uint8(v >> 8)
}

func (v SoftVersion) String() string {
	pa, pb := versionParts(v.PFC)
	da, db := versionParts(v.DCDC)
	s := fmt.Sprintf("pfc %d.%d dcdc %d.%d", pa, pb, da, db)
	if v.HasCAN {
		ca, cb := versionParts(v.CAN)
		s += fmt.Sprintf(" can %d.%d", ca, cb)
	}
	return s
}

// DataFrameSize is the number of image bytes per data frame.
const DataFrameSize = 4

// FramePad fills the unused bytes of the last data frame.
const FramePad = 0xFF

// DataFrame is one write to the update data frame object (0x2442).
type DataFrame [DataFrameSize]byte

func (f DataFrame) MarshalBinary() ([]byte, error) {
	return f[:], nil
}

func (f *DataFrame) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, DataFrameSize, "data frame"); err != nil {
		return err
	}
	copy(f[:], data)
	return nil
}

// FrameCount returns the number of data frames needed for n image bytes.
func FrameCount(n int) int {
	return (n + DataFrameSize - 1) / DataFrameSize
}

// Frame returns data frame i of image, padding past the end with FramePad.
func Frame(image []byte, i int) DataFrame {
	var f DataFrame
	for j := range f {
		f[j] = FramePad
	}
	start := i * DataFrameSize
	if start < len(image) {
		copy(f[:], image[start:min(start+DataFrameSize, len(image))])
	}
	return f
}

// SplitFrames splits image into data frames.
func SplitFrames(image []byte) []DataFrame {
	frames := make([]DataFrame, FrameCount(len(image)))
	for i := range frames {
		frames[i] = Frame(image, i)
	}
	return frames
}

// UpdateDataEnd is the value written to the data end object (0x2443).
const UpdateDataEnd uint8 = 0
