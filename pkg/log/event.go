package log

import (
	"fmt"
	"strings"
	"time"

	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Event is one captured protocol event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the gateway connection (UUID). Empty for
	// in-process links.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// LocalRole is the side that captured the event.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Node is the node id of the bridge the event concerns.
	Node uint8 `cbor:"8,keyasint,omitempty"`

	// Type-specific payload, exactly one is set.
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // SDO layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection, interlink, update state
	Update      *UpdateEvent      `cbor:"13,keyasint,omitempty"` // Update progress
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
)

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerSDO is the object read/write layer.
	LayerSDO Layer = 1
	// LayerUpdate is the firmware update handshake.
	LayerUpdate Layer = 2
)

// Category classifies the event type.
type Category uint8

const (
	CategoryMessage  Category = 0
	CategoryProgress Category = 1
	CategoryState    Category = 2
	CategoryError    Category = 3
)

// Role indicates whether the local endpoint is a bridge or a controller.
type Role uint8

const (
	RoleBridge     Role = 0
	RoleController Role = 1
)

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded object read or write.
type MessageEvent struct {
	Type      MessageType `cbor:"1,keyasint"`
	MessageID uint32      `cbor:"2,keyasint"`

	// For requests: the operation being performed.
	Operation *wire.Operation `cbor:"3,keyasint,omitempty"`

	// Object address, set on requests and on responses when known.
	Index    uint16 `cbor:"4,keyasint,omitempty"`
	SubIndex uint8  `cbor:"5,keyasint,omitempty"`

	// For responses: the abort code, nil on success.
	Abort *wire.AbortCode `cbor:"6,keyasint,omitempty"`

	// Data is the value written or read.
	Data []byte `cbor:"7,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to response
	// send (response only). Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"9,keyasint,omitempty"`
}

// MessageType distinguishes requests from responses.
type MessageType uint8

const (
	MessageTypeRequest  MessageType = 0
	MessageTypeResponse MessageType = 1
)

// StateChangeEvent captures lifecycle transitions.
type StateChangeEvent struct {
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = 0
	StateEntityInterlink  StateEntity = 1
	StateEntityUpdate     StateEntity = 2
)

// UpdateEvent reports progress of a firmware update.
type UpdateEvent struct {
	// RunID identifies one update run (UUID).
	RunID string `cbor:"1,keyasint,omitempty"`

	Phase string `cbor:"2,keyasint"`

	// Image is the image index being transferred, 0 outside the data phase.
	Image uint8 `cbor:"3,keyasint,omitempty"`

	BytesSent  int `cbor:"4,keyasint,omitempty"`
	BytesTotal int `cbor:"5,keyasint,omitempty"`

	// Status is the last update status read from the bridge.
	Status *wire.UpdateStatus `cbor:"6,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer Layer `cbor:"1,keyasint"`

	Message string `cbor:"2,keyasint"`

	// Code is the abort code or update error id, if applicable.
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

var (
	directionNames   = []string{"IN", "OUT"}
	layerNames       = []string{"TRANSPORT", "SDO", "UPDATE"}
	categoryNames    = []string{"MESSAGE", "PROGRESS", "STATE", "ERROR"}
	roleNames        = []string{"BRIDGE", "CONTROLLER"}
	messageTypeNames = []string{"REQUEST", "RESPONSE"}
	entityNames      = []string{"CONNECTION", "INTERLINK", "UPDATE"}
)

// enumName returns names[v], or UNKNOWN past the end of the table.
func enumName[T ~uint8](names []string, v T) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "UNKNOWN"
}

// enumValue is the inverse of enumName, ignoring case.
func enumValue[T ~uint8](kind string, names []string, s string) (T, error) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return T(i), nil
		}
	}
	return 0, fmt.Errorf("invalid %s: %q (must be one of %s)", kind, s, strings.ToLower(strings.Join(names, ", ")))
}

// The Parse functions accept the names printed by String in any case.
func ParseDirection(s string) (Direction, error) { return enumValue[Direction]("direction", directionNames, s) }
func ParseLayer(s string) (Layer, error)         { return enumValue[Layer]("layer", layerNames, s) }
func ParseCategory(s string) (Category, error)   { return enumValue[Category]("category", categoryNames, s) }

func (d Direction) String() string   { return enumName(directionNames, d) }
func (l Layer) String() string       { return enumName(layerNames, l) }
func (c Category) String() string    { return enumName(categoryNames, c) }
func (r Role) String() string        { return enumName(roleNames, r) }
func (m MessageType) String() string { return enumName(messageTypeNames, m) }
func (s StateEntity) String() string { return enumName(entityNames, s) }
