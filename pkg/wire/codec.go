package wire

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Codec pairs the CBOR modes of one encoding. Encoding is canonical
// (sorted keys, definite lengths); decoding tolerates unknown and
// duplicate keys so newer peers can add fields.
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCodec returns a codec encoding time values with tm.
func NewCodec(tm cbor.TimeMode) (*Codec, error) {
	enc, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          tm,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyQuiet,
		IndefLength:     cbor.IndefLengthAllowed,
		MaxNestedLevels: 16,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// MustCodec is NewCodec for package initialization.
func MustCodec(tm cbor.TimeMode) *Codec {
	c, err := NewCodec(tm)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Codec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c *Codec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

// NewEncoder returns a stream encoder writing to w.
func (c *Codec) NewEncoder(w io.Writer) *cbor.Encoder {
	return c.enc.NewEncoder(w)
}

// NewDecoder returns a stream decoder reading from r.
func (c *Codec) NewDecoder(r io.Reader) *cbor.Decoder {
	return c.dec.NewDecoder(r)
}

// messages is the codec of gateway requests and responses.
var messages = MustCodec(cbor.TimeUnix)

// Marshal encodes a value as a gateway message.
func Marshal(v any) ([]byte, error) {
	return messages.Marshal(v)
}

// Unmarshal decodes a gateway message.
func Unmarshal(data []byte, v any) error {
	return messages.Unmarshal(data, v)
}

// EncodeRequest validates and encodes a request.
func EncodeRequest(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return messages.Marshal(req)
}

// DecodeRequest decodes and validates a request.
func DecodeRequest(data []byte) (*Request, error) {
	req := new(Request)
	if err := messages.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

func EncodeResponse(resp *Response) ([]byte, error) {
	return messages.Marshal(resp)
}

func DecodeResponse(data []byte) (*Response, error) {
	resp := new(Response)
	if err := messages.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}

// PeekMessageID returns the message ID of a message that may not decode
// as a valid request, 0 when it carries none.
func PeekMessageID(data []byte) (uint32, error) {
	var peek struct {
		MessageID uint32 `cbor:"1,keyasint"`
	}
	if err := messages.Unmarshal(data, &peek); err != nil {
		return 0, fmt.Errorf("failed to peek message: %w", err)
	}
	return peek.MessageID, nil
}
