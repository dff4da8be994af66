package wire

import (
	"fmt"

	"github.com/powerbridge/pwb-go/pkg/od"
)

// CBOR map keys for message encoding.
const (
	KeyMessageID = 1
	KeyOperation = 2 // requests; abort code in responses
	KeyNode      = 3
	KeyIndex     = 4
	KeySubIndex  = 5
	KeyData      = 6
)

// MaxNodeID is the highest CANopen node id.
const MaxNodeID = 127

// Request is a single object read or write sent to a bridge.
//
// CBOR encoding:
//
//	{
//	  1: messageId,  // uint32, never 0
//	  2: operation,  // uint8: 1=Read, 2=Write
//	  3: node,       // uint8: 1..127
//	  4: index,      // uint16
//	  5: subIndex,   // uint8
//	  6: data        // bytes, writes only
//	}
type Request struct {
	MessageID uint32    `cbor:"1,keyasint"`
	Operation Operation `cbor:"2,keyasint"`
	Node      uint8     `cbor:"3,keyasint"`
	Index     uint16    `cbor:"4,keyasint"`
	SubIndex  uint8     `cbor:"5,keyasint"`
	Data      []byte    `cbor:"6,keyasint,omitempty"`
}

// Address returns the object address of the request.
func (r *Request) Address() od.Address {
	return od.Addr(od.Index(r.Index), od.SubIndex(r.SubIndex))
}

// Validate checks if the request is well formed.
func (r *Request) Validate() error {
	if r.MessageID == 0 {
		return fmt.Errorf("messageId 0 is reserved")
	}
	if !r.Operation.IsValid() {
		return fmt.Errorf("invalid operation: %d", r.Operation)
	}
	if r.Node == 0 || r.Node > MaxNodeID {
		return fmt.Errorf("invalid node id: %d", r.Node)
	}
	if r.Operation == OpWrite && len(r.Data) == 0 {
		return fmt.Errorf("write without data")
	}
	if r.Operation == OpRead && len(r.Data) != 0 {
		return fmt.Errorf("read with data")
	}
	return nil
}

// Response answers a Request.
//
// CBOR encoding:
//
//	{
//	  1: messageId,  // uint32: matches request
//	  2: abort,      // uint32: 0 on success, CiA 301 abort code otherwise
//	  6: data        // bytes, successful reads only
//	}
type Response struct {
	MessageID uint32    `cbor:"1,keyasint"`
	Abort     AbortCode `cbor:"2,keyasint"`
	Data      []byte    `cbor:"6,keyasint,omitempty"`
}

// IsSuccess returns true if the response carries no abort code.
func (r *Response) IsSuccess() bool {
	return r.Abort.IsSuccess()
}

// AbortResponse creates a response carrying an abort code.
func AbortResponse(messageID uint32, code AbortCode) *Response {
	return &Response{MessageID: messageID, Abort: code}
}
