package log

import (
	"time"

	"github.com/powerbridge/pwb-go/pkg/wire"
)

// RequestEvent builds the SDO event of a request.
func RequestEvent(dir Direction, role Role, req *wire.Request) Event {
	op := req.Operation
	return Event{
		Timestamp: time.Now(),
		Direction: dir,
		Layer:     LayerSDO,
		Category:  CategoryMessage,
		LocalRole: role,
		Node:      req.Node,
		Message: &MessageEvent{
			Type:      MessageTypeRequest,
			MessageID: req.MessageID,
			Operation: &op,
			Index:     req.Index,
			SubIndex:  req.SubIndex,
			Data:      req.Data,
		},
	}
}

// ResponseEvent builds the SDO event of a response. req may be nil when
// the matching request is unknown.
func ResponseEvent(dir Direction, role Role, req *wire.Request, resp *wire.Response, elapsed time.Duration) Event {
	ev := Event{
		Timestamp: time.Now(),
		Direction: dir,
		Layer:     LayerSDO,
		Category:  CategoryMessage,
		LocalRole: role,
		Message: &MessageEvent{
			Type:      MessageTypeResponse,
			MessageID: resp.MessageID,
			Data:      resp.Data,
		},
	}
	if !resp.IsSuccess() {
		code := resp.Abort
		ev.Message.Abort = &code
	}
	if req != nil {
		ev.Node = req.Node
		ev.Message.Index = req.Index
		ev.Message.SubIndex = req.SubIndex
	}
	if elapsed > 0 {
		ev.Message.ProcessingTime = &elapsed
	}
	return ev
}

// StateEvent builds a state change event.
func StateEvent(layer Layer, entity StateEntity, oldState, newState, reason string) Event {
	return Event{
		Timestamp: time.Now(),
		Layer:     layer,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
}

// ErrorEvent builds an error event. code may be nil.
func ErrorEvent(layer Layer, err error, context string, code *int) Event {
	return Event{
		Timestamp: time.Now(),
		Layer:     layer,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Code:    code,
			Context: context,
		},
	}
}

// ProgressEvent builds an update progress event for node.
func ProgressEvent(node uint8, u UpdateEvent) Event {
	return Event{
		Timestamp: time.Now(),
		Layer:     LayerUpdate,
		Category:  CategoryProgress,
		LocalRole: RoleController,
		Node:      node,
		Update:    &u,
	}
}
