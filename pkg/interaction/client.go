package interaction

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// DefaultTimeout is the time a request waits for its response.
const DefaultTimeout = 2 * time.Second

// Client errors.
var (
	ErrRequestTimeout  = errors.New("request timed out")
	ErrClientClosed    = errors.New("client is closed")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// RequestSender sends an encoded request to the bridge.
type RequestSender interface {
	Send(data []byte) error
}

// AbortError is returned when the bridge answers a request with an abort
// code. errors.Is matches the od and wire sentinels of the code.
type AbortError struct {
	Node uint8
	Addr od.Address
	Code wire.AbortCode
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("node %d %s: %s", e.Node, e.Addr, e.Code)
}

// Unwrap returns the sentinel error of the abort code, if any.
func (e *AbortError) Unwrap() error {
	return e.Code.Err()
}

// call is a request waiting for its response.
type call struct {
	req  *wire.Request
	sent time.Time
	resp chan *wire.Response
}

// Client performs object reads and writes against one or more bridge
// nodes. Requests are matched to responses by message ID, so any number
// may be in flight.
type Client struct {
	sender RequestSender

	mu        sync.RWMutex
	timeout   time.Duration
	logger    log.Logger
	dict      *od.Dictionary // nodes without an entry in nodeDicts
	nodeDicts map[uint8]*od.Dictionary

	lastID atomic.Uint32

	callsMu sync.Mutex
	calls   map[uint32]*call

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client that validates requests against dict. A nil
// dict disables validation.
func NewClient(sender RequestSender, dict *od.Dictionary) *Client {
	return &Client{
		sender:    sender,
		timeout:   DefaultTimeout,
		logger:    log.NoopLogger{},
		dict:      dict,
		nodeDicts: make(map[uint8]*od.Dictionary),
		calls:     make(map[uint32]*call),
		done:      make(chan struct{}),
	}
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	c.timeout = timeout
	c.mu.Unlock()
}

func (c *Client) SetLogger(l log.Logger) {
	c.mu.Lock()
	c.logger = log.OrNoop(l)
	c.mu.Unlock()
}

// SetNodeDictionary validates requests to node against dict instead of
// the default dictionary, e.g. for power module nodes.
func (c *Client) SetNodeDictionary(node uint8, dict *od.Dictionary) {
	c.mu.Lock()
	c.nodeDicts[node] = dict
	c.mu.Unlock()
}

// Dictionary returns the dictionary used for node, or nil.
func (c *Client) Dictionary(node uint8) *od.Dictionary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := c.nodeDicts[node]; ok {
		return d
	}
	return c.dict
}

// Close fails every waiting request with ErrClientClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// messageID returns the next message ID, skipping 0 on wrap-around.
func (c *Client) messageID() uint32 {
	id := c.lastID.Add(1)
	if id == 0 {
		id = c.lastID.Add(1)
	}
	return id
}

func (c *Client) track(req *wire.Request) (*call, func()) {
	cl := &call{req: req, sent: time.Now(), resp: make(chan *wire.Response, 1)}
	c.callsMu.Lock()
	c.calls[req.MessageID] = cl
	c.callsMu.Unlock()
	return cl, func() {
		c.callsMu.Lock()
		delete(c.calls, req.MessageID)
		c.callsMu.Unlock()
	}
}

// roundTrip sends one request and returns its response. An abort
// response is returned as *AbortError.
func (c *Client) roundTrip(ctx context.Context, op wire.Operation, node uint8, addr od.Address, data []byte) (*wire.Response, error) {
	select {
	case <-c.done:
		return nil, ErrClientClosed
	default:
	}
	c.mu.RLock()
	timeout, logger := c.timeout, c.logger
	c.mu.RUnlock()

	req := &wire.Request{
		MessageID: c.messageID(),
		Operation: op,
		Node:      node,
		Index:     uint16(addr.Index),
		SubIndex:  uint8(addr.Sub),
		Data:      data,
	}
	encoded, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	cl, untrack := c.track(req)
	defer untrack()

	logger.Log(log.RequestEvent(log.DirectionOut, log.RoleController, req))
	if err := c.sender.Send(encoded); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	ctx, cancel := context.WithTimeoutCause(ctx, timeout, ErrRequestTimeout)
	defer cancel()

	select {
	case resp := <-cl.resp:
		logger.Log(log.ResponseEvent(log.DirectionIn, log.RoleController, req, resp, time.Since(cl.sent)))
		if !resp.IsSuccess() {
			return nil, &AbortError{Node: node, Addr: addr, Code: resp.Abort}
		}
		return resp, nil
	case <-c.done:
		return nil, ErrClientClosed
	case <-ctx.Done():
		if cause := context.Cause(ctx); errors.Is(cause, ErrRequestTimeout) {
			return nil, fmt.Errorf("node %d %s: %w", node, addr, cause)
		}
		return nil, ctx.Err()
	}
}

// HandleResponse delivers a response to the request waiting for it.
// Duplicate responses are dropped.
func (c *Client) HandleResponse(resp *wire.Response) error {
	c.callsMu.Lock()
	cl, ok := c.calls[resp.MessageID]
	c.callsMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: message %d", ErrUnexpectedReply, resp.MessageID)
	}
	select {
	case cl.resp <- resp:
	default:
	}
	return nil
}

// HandleResponseData decodes and delivers an encoded response.
func (c *Client) HandleResponseData(data []byte) error {
	resp, err := wire.DecodeResponse(data)
	if err != nil {
		return err
	}
	return c.HandleResponse(resp)
}

// Read reads the value at addr of node. The value is checked against the
// dictionary of node.
func (c *Client) Read(ctx context.Context, node uint8, addr od.Address) ([]byte, error) {
	var sub *od.SubEntry
	if dict := c.Dictionary(node); dict != nil {
		s, err := dict.ValidateRead(addr)
		if err != nil {
			return nil, err
		}
		sub = s
	}

	resp, err := c.roundTrip(ctx, wire.OpRead, node, addr, nil)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		if err := sub.CheckRead(resp.Data); err != nil {
			return nil, fmt.Errorf("%w: node %d %s: %w", ErrUnexpectedReply, node, addr, err)
		}
	}
	return resp.Data, nil
}

// Write writes data to addr of node after validating it against the
// dictionary of node.
func (c *Client) Write(ctx context.Context, node uint8, addr od.Address, data []byte) error {
	if dict := c.Dictionary(node); dict != nil {
		if _, err := dict.ValidateWrite(addr, data); err != nil {
			return err
		}
	}
	_, err := c.roundTrip(ctx, wire.OpWrite, node, addr, data)
	return err
}

func readAs[T any](ctx context.Context, c *Client, node uint8, addr od.Address, parse func([]byte) (T, error)) (T, error) {
	data, err := c.Read(ctx, node, addr)
	if err != nil {
		var zero T
		return zero, err
	}
	return parse(data)
}

func (c *Client) ReadUint8(ctx context.Context, node uint8, addr od.Address) (uint8, error) {
	return readAs(ctx, c, node, addr, wire.ParseUint8)
}

func (c *Client) ReadUint16(ctx context.Context, node uint8, addr od.Address) (uint16, error) {
	return readAs(ctx, c, node, addr, wire.ParseUint16)
}

func (c *Client) ReadUint32(ctx context.Context, node uint8, addr od.Address) (uint32, error) {
	return readAs(ctx, c, node, addr, wire.ParseUint32)
}

func (c *Client) WriteUint8(ctx context.Context, node uint8, addr od.Address, v uint8) error {
	return c.Write(ctx, node, addr, wire.Uint8(v))
}

func (c *Client) WriteUint16(ctx context.Context, node uint8, addr od.Address, v uint16) error {
	return c.Write(ctx, node, addr, wire.Uint16(v))
}

func (c *Client) WriteUint32(ctx context.Context, node uint8, addr od.Address, v uint32) error {
	return c.Write(ctx, node, addr, wire.Uint32(v))
}

// ReadInto reads the value at addr and decodes it into v.
func (c *Client) ReadInto(ctx context.Context, node uint8, addr od.Address, v encoding.BinaryUnmarshaler) error {
	data, err := c.Read(ctx, node, addr)
	if err != nil {
		return err
	}
	if err := v.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("%s: %w", addr, err)
	}
	return nil
}

// WriteFrom encodes v and writes it to addr.
func (c *Client) WriteFrom(ctx context.Context, node uint8, addr od.Address, v encoding.BinaryMarshaler) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%s: %w", addr, err)
	}
	return c.Write(ctx, node, addr, data)
}
