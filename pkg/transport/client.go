package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/powerbridge/pwb-go/pkg/log"
)

// DefaultConnectTimeout bounds the dial when ctx carries no deadline.
const DefaultConnectTimeout = 5 * time.Second

// ClientConfig configures a controller connection.
type ClientConfig struct {
	MaxMessageSize uint32        // default 4 KB
	ConnectTimeout time.Duration // default 5s
	Logger         log.Logger

	// OnStateChange observes every state transition of the connection.
	OnStateChange func(from, to ConnectionState)
}

// ClientConn is a controller connection to a gateway. Frames are sent
// with Send and delivered by the read loop started with Start.
type ClientConn struct {
	config ClientConfig
	connID string
	conn   net.Conn
	framer *Framer
	state  atomic.Int32

	started   atomic.Bool
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// Dial connects to the gateway at address.
func Dial(ctx context.Context, address string, config ClientConfig) (*ClientConn, error) {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	config.Logger = log.OrNoop(config.Logger)

	c := &ClientConn{
		config:  config,
		connID:  uuid.New().String(),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.transition(StateConnecting, "dial "+address)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		c.transition(StateDisconnected, err.Error())
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	c.conn = nc
	c.framer = NewFramer(nc, config.MaxMessageSize)
	c.framer.SetLogger(config.Logger, c.connID)
	c.transition(StateConnected, "")
	return c, nil
}

func (c *ClientConn) ConnID() string         { return c.connID }
func (c *ClientConn) State() ConnectionState { return ConnectionState(c.state.Load()) }
func (c *ClientConn) RemoteAddr() net.Addr   { return c.conn.RemoteAddr() }
func (c *ClientConn) Done() <-chan struct{}  { return c.done }

func (c *ClientConn) transition(to ConnectionState, reason string) {
	from := ConnectionState(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	var remote string
	if c.conn != nil {
		remote = c.conn.RemoteAddr().String()
	}
	c.config.Logger.Log(stateEvent(c.connID, remote, from, to, reason))
	if c.config.OnStateChange != nil {
		c.config.OnStateChange(from, to)
	}
}

// Send writes one frame to the gateway.
func (c *ClientConn) Send(data []byte) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	return c.framer.WriteFrame(data)
}

// Start delivers every received frame to handle until the connection
// fails or is closed. Later calls are ignored.
func (c *ClientConn) Start(handle func([]byte)) {
	if c.started.Swap(true) {
		return
	}
	go c.readLoop(handle)
}

func (c *ClientConn) readLoop(handle func([]byte)) {
	defer close(c.done)
	for {
		data, err := c.framer.ReadFrame()
		if err != nil {
			c.lost(err)
			return
		}
		handle(data)
	}
}

// Err waits for the read loop to exit and returns the error that ended
// it, nil after Close.
func (c *ClientConn) Err() error {
	<-c.done
	return c.err
}

// lost records a read failure unless the connection is being closed.
func (c *ClientConn) lost(err error) {
	select {
	case <-c.closing:
		return
	default:
	}
	if errors.Is(err, io.EOF) {
		err = ErrConnectionClosed
	}
	c.err = err
	c.closeOnce.Do(func() {
		close(c.closing)
		c.conn.Close()
	})
	c.transition(StateDisconnected, err.Error())
}

func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.transition(StateClosing, "")
		close(c.closing)
		err = c.conn.Close()
		c.transition(StateDisconnected, "closed")
	})
	return err
}
