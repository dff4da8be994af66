package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/powerbridge/pwb-go/pkg/wire"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerSDO.String(), "SDO"},
		{LayerUpdate.String(), "UPDATE"},
		{CategoryProgress.String(), "PROGRESS"},
		{CategoryError.String(), "ERROR"},
		{RoleBridge.String(), "BRIDGE"},
		{RoleController.String(), "CONTROLLER"},
		{MessageTypeResponse.String(), "RESPONSE"},
		{StateEntityInterlink.String(), "INTERLINK"},
		{StateEntityUpdate.String(), "UPDATE"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEventRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	op := wire.OpWrite
	abort := wire.AbortInvalidValue
	elapsed := 3 * time.Millisecond

	tests := []struct {
		name  string
		event Event
	}{
		{
			name: "frame",
			event: Event{
				Timestamp:    ts,
				ConnectionID: "c0ffee",
				Direction:    DirectionOut,
				Layer:        LayerTransport,
				Frame:        &FrameEvent{Size: 12, Data: []byte{0, 0, 0, 8}},
			},
		},
		{
			name: "write request",
			event: Event{
				Timestamp: ts,
				Layer:     LayerSDO,
				LocalRole: RoleController,
				Node:      10,
				Message: &MessageEvent{
					Type:      MessageTypeRequest,
					MessageID: 7,
					Operation: &op,
					Index:     0x2424,
					SubIndex:  3,
					Data:      []byte{0x2c, 0x01},
				},
			},
		},
		{
			name: "abort response",
			event: Event{
				Timestamp: ts,
				Direction: DirectionIn,
				Layer:     LayerSDO,
				Message: &MessageEvent{
					Type:           MessageTypeResponse,
					MessageID:      7,
					Abort:          &abort,
					ProcessingTime: &elapsed,
				},
			},
		},
		{
			name: "update progress",
			event: Event{
				Timestamp: ts,
				Layer:     LayerUpdate,
				Category:  CategoryProgress,
				Update: &UpdateEvent{
					RunID:      "run-1",
					Phase:      "data",
					Image:      2,
					BytesSent:  1024,
					BytesTotal: 4096,
					Status:     &wire.UpdateStatus{State: wire.UpdateStateReadyToReceive, Index: 2},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}
			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if !got.Timestamp.Equal(tt.event.Timestamp) {
				t.Errorf("Timestamp: got %v, want %v", got.Timestamp, tt.event.Timestamp)
			}
			if got.Layer != tt.event.Layer || got.Direction != tt.event.Direction || got.Node != tt.event.Node {
				t.Errorf("header mismatch: got %+v", got)
			}

			switch {
			case tt.event.Frame != nil:
				if got.Frame == nil || !bytes.Equal(got.Frame.Data, tt.event.Frame.Data) {
					t.Errorf("Frame: got %+v", got.Frame)
				}
			case tt.event.Message != nil:
				want := tt.event.Message
				if got.Message == nil {
					t.Fatal("Message is nil")
				}
				if got.Message.Index != want.Index || got.Message.SubIndex != want.SubIndex {
					t.Errorf("address: got %04x:%02x", got.Message.Index, got.Message.SubIndex)
				}
				if (want.Abort == nil) != (got.Message.Abort == nil) {
					t.Errorf("Abort: got %v, want %v", got.Message.Abort, want.Abort)
				} else if want.Abort != nil && *got.Message.Abort != *want.Abort {
					t.Errorf("Abort: got %v, want %v", *got.Message.Abort, *want.Abort)
				}
				if want.Operation != nil && (got.Message.Operation == nil || *got.Message.Operation != *want.Operation) {
					t.Errorf("Operation: got %v", got.Message.Operation)
				}
			case tt.event.Update != nil:
				if got.Update == nil || got.Update.Status == nil {
					t.Fatalf("Update: got %+v", got.Update)
				}
				if *got.Update.Status != *tt.event.Update.Status {
					t.Errorf("Status: got %+v, want %+v", *got.Update.Status, *tt.event.Update.Status)
				}
				if got.Update.BytesSent != 1024 || got.Update.Image != 2 {
					t.Errorf("progress: got %+v", got.Update)
				}
			}
		})
	}
}

func TestParseEnums(t *testing.T) {
	l, err := ParseLayer("sdo")
	if err != nil || l != LayerSDO {
		t.Errorf("ParseLayer(sdo) = %v, %v", l, err)
	}
	d, err := ParseDirection("OUT")
	if err != nil || d != DirectionOut {
		t.Errorf("ParseDirection(OUT) = %v, %v", d, err)
	}
	c, err := ParseCategory("Progress")
	if err != nil || c != CategoryProgress {
		t.Errorf("ParseCategory(Progress) = %v, %v", c, err)
	}
	if _, err := ParseLayer("wire"); err == nil {
		t.Error("expected error for unknown layer")
	}
}
