package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/powerbridge/pwb-go/pkg/log"
)

// DefaultMaxConnections is the number of controllers a gateway serves at
// once when ServerConfig.MaxConnections is 0.
const DefaultMaxConnections = 8

// ErrTooManyConnections is reported through OnError when a controller is
// refused because the gateway is full.
var ErrTooManyConnections = errors.New("too many connections")

// ServerConfig configures a gateway server.
type ServerConfig struct {
	// Address to listen on, ":7460" when empty.
	Address string

	// MaxMessageSize bounds frames in both directions (default 4 KB).
	MaxMessageSize uint32

	// MaxConnections bounds concurrent controllers (default 8). Further
	// controllers are closed right after accept.
	MaxConnections int

	// IdleTimeout closes a controller that sends nothing for this long.
	// Zero disables it.
	IdleTimeout time.Duration

	Logger log.Logger

	// Callbacks, all optional. OnMessage runs on the read goroutine of
	// the connection. OnError gets a nil conn for accept errors.
	OnConnect    func(conn *ServerConn)
	OnDisconnect func(conn *ServerConn)
	OnMessage    func(conn *ServerConn, msg []byte)
	OnError      func(conn *ServerConn, err error)
}

// Server accepts gateway connections from controllers.
type Server struct {
	config ServerConfig

	mu       sync.Mutex
	listener net.Listener
	conns    map[*ServerConn]struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a gateway server.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = DefaultMaxConnections
	}
	config.Logger = log.OrNoop(config.Logger)
	return &Server{config: config}
}

// Start listens on the configured address and serves controllers until
// Stop is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return ErrServerRunning
	}

	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	sctx, cancel := context.WithCancel(ctx)
	s.listener = l
	s.conns = make(map[*ServerConn]struct{})
	s.ctx, s.cancel = sctx, cancel

	s.wg.Add(1)
	go s.accept(sctx, l)
	go func() {
		<-sctx.Done()
		l.Close()
	}()
	return nil
}

// Stop closes the listener and every connection and waits for their
// goroutines.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.listener = nil
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the listen address, or nil when not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of connected controllers.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) accept(ctx context.Context, l net.Listener) {
	defer s.wg.Done()
	for {
		nc, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.reportError(nil, fmt.Errorf("accept error: %w", err))
			continue
		}

		c, err := s.register(nc)
		if err != nil {
			nc.Close()
			if errors.Is(err, ErrTooManyConnections) {
				s.reportError(nil, fmt.Errorf("%w: refused %s", err, nc.RemoteAddr()))
			}
			continue
		}
		s.wg.Add(1)
		go s.serve(c)
	}
}

// register adds a connection unless the server stopped or is full.
func (s *Server) register(nc net.Conn) (*ServerConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil, net.ErrClosed
	}
	if len(s.conns) >= s.config.MaxConnections {
		return nil, ErrTooManyConnections
	}

	c := &ServerConn{
		conn:    nc,
		framer:  NewFramer(nc, s.config.MaxMessageSize),
		ctx:     s.ctx,
		connID:  uuid.New().String(),
		closeCh: make(chan struct{}),
	}
	c.framer.SetLogger(s.config.Logger, c.connID)
	s.conns[c] = struct{}{}
	return c, nil
}

func (s *Server) serve(c *ServerConn) {
	defer s.wg.Done()
	remote := c.conn.RemoteAddr().String()

	s.config.Logger.Log(stateEvent(c.connID, remote, StateDisconnected, StateConnected, ""))
	if s.config.OnConnect != nil {
		s.config.OnConnect(c)
	}

	reason := s.readLoop(c)
	c.Close()

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	s.config.Logger.Log(stateEvent(c.connID, remote, StateConnected, StateDisconnected, reason))
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(c)
	}
}

// readLoop delivers frames until the connection ends and returns why.
func (s *Server) readLoop(c *ServerConn) string {
	for {
		if s.config.IdleTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		}
		data, err := c.framer.ReadFrame()
		if err == nil {
			if s.config.OnMessage != nil {
				s.config.OnMessage(c, data)
			}
			continue
		}

		var ne net.Error
		switch {
		case c.closed():
			return "closed"
		case errors.Is(err, io.EOF):
			return "peer closed"
		case errors.As(err, &ne) && ne.Timeout():
			return "idle timeout"
		}
		if c.ctx.Err() == nil {
			s.reportError(c, err)
		}
		return err.Error()
	}
}

func (s *Server) reportError(c *ServerConn, err error) {
	if s.config.OnError != nil {
		s.config.OnError(c, err)
	}
}

// ServerConn is a controller connected to the gateway.
type ServerConn struct {
	conn      net.Conn
	framer    *Framer
	ctx       context.Context
	connID    string
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (c *ServerConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
func (c *ServerConn) ConnID() string       { return c.connID }

// Context returns a context cancelled when the server stops.
func (c *ServerConn) Context() context.Context {
	return c.ctx
}

// Send writes one frame to the controller.
func (c *ServerConn) Send(data []byte) error {
	if c.closed() {
		return ErrConnectionClosed
	}
	return c.framer.WriteFrame(data)
}

func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

func (c *ServerConn) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}
