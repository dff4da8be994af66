package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/powerbridge/pwb-go/pkg/interaction"
	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/transport"
)

// Manager errors.
var (
	ErrNotConnected     = errors.New("gateway not connected")
	ErrClosed           = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// DefaultDialTimeout bounds one dial attempt of the redial loop.
const DefaultDialTimeout = 5 * time.Second

// State is the state of a Manager.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

var stateNames = [...]string{"DISCONNECTED", "CONNECTING", "CONNECTED", "RECONNECTING", "CLOSED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Session is one established gateway session.
type Session interface {
	Read(ctx context.Context, node uint8, addr od.Address) ([]byte, error)
	Write(ctx context.Context, node uint8, addr od.Address, data []byte) error
	// Done is closed when the session ends.
	Done() <-chan struct{}
	Close() error
}

// DialFunc opens a session.
type DialFunc func(ctx context.Context) (Session, error)

// GatewayConfig selects the gateway and the dictionaries of the nodes
// behind it.
type GatewayConfig struct {
	Address string
	Client  transport.ClientConfig

	// Dictionary is used for nodes without an entry in NodeDictionaries.
	Dictionary       *od.Dictionary
	NodeDictionaries map[uint8]*od.Dictionary

	// Timeout is the SDO response timeout, 0 keeps the client default.
	Timeout time.Duration
}

// GatewayDialer returns a DialFunc connecting over TCP.
func GatewayDialer(cfg GatewayConfig) DialFunc {
	return func(ctx context.Context) (Session, error) {
		client, conn, err := transport.DialBridge(ctx, cfg.Address, cfg.Client, cfg.Dictionary)
		if err != nil {
			return nil, err
		}
		for node, dict := range cfg.NodeDictionaries {
			client.SetNodeDictionary(node, dict)
		}
		if cfg.Timeout > 0 {
			client.SetTimeout(cfg.Timeout)
		}
		return &gatewaySession{Client: client, conn: conn}, nil
	}
}

type gatewaySession struct {
	*interaction.Client
	conn *transport.ClientConn
}

func (s *gatewaySession) Done() <-chan struct{} { return s.conn.Done() }
func (s *gatewaySession) Close() error          { return s.conn.Close() }

// Option configures a Manager.
type Option func(*Manager)

// WithBackoff sets the redial backoff.
func WithBackoff(cfg BackoffConfig) Option {
	return func(m *Manager) { m.backoff = NewBackoff(cfg) }
}

// WithDialTimeout bounds every redial attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.dialTimeout = d
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithProtocolLogger sets the logger receiving connection state events.
func WithProtocolLogger(l log.Logger) Option {
	return func(m *Manager) { m.protocol = l }
}

// WithStateHandler sets a function called on every state change.
func WithStateHandler(fn func(oldState, newState State)) Option {
	return func(m *Manager) { m.onState = fn }
}

// Manager keeps one gateway session open, redialing when it ends.
type Manager struct {
	dial        DialFunc
	backoff     *Backoff
	dialTimeout time.Duration
	logger      *slog.Logger
	protocol    log.Logger
	onState     func(oldState, newState State)

	mu        sync.RWMutex
	state     State
	session   Session
	connected chan struct{} // closed while connected

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewManager creates a Manager dialing with dial.
func NewManager(dial DialFunc, opts ...Option) *Manager {
	m := &Manager{
		dial:        dial,
		dialTimeout: DefaultDialTimeout,
		logger:      slog.New(slog.DiscardHandler),
		connected:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.backoff == nil {
		m.backoff = NewBackoff(BackoffConfig{})
	}
	m.protocol = log.OrNoop(m.protocol)
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Attempts returns the failed redials since the last successful dial.
func (m *Manager) Attempts() int {
	return m.backoff.Attempts()
}

// Connect dials once and starts the redial loop. When the first dial
// fails the loop keeps trying in the background and the error is
// returned.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case StateDisconnected:
	default:
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.switchLocked(StateConnecting)
	m.mu.Unlock()
	m.notify(StateDisconnected, StateConnecting, "")

	err := m.attempt(ctx)
	if err != nil {
		m.setState(StateReconnecting, err.Error())
	}

	m.wg.Add(1)
	go m.loop()
	return err
}

// WaitConnected blocks until a session is up or ctx is done.
func (m *Manager) WaitConnected(ctx context.Context) error {
	for {
		m.mu.RLock()
		state, ch := m.state, m.connected
		m.mu.RUnlock()

		switch state {
		case StateConnected:
			return nil
		case StateClosed:
			return ErrClosed
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-m.ctx.Done():
			return ErrClosed
		}
	}
}

// Read reads an object through the current session.
func (m *Manager) Read(ctx context.Context, node uint8, addr od.Address) ([]byte, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.Read(ctx, node, addr)
}

// Write writes an object through the current session.
func (m *Manager) Write(ctx context.Context, node uint8, addr od.Address, data []byte) error {
	s, err := m.current()
	if err != nil {
		return err
	}
	return s.Write(ctx, node, addr, data)
}

// Close stops the redial loop and closes the session.
func (m *Manager) Close() error {
	var err error
	m.once.Do(func() {
		m.cancel()
		m.mu.Lock()
		s := m.session
		m.session = nil
		m.mu.Unlock()
		if s != nil {
			err = s.Close()
		}
		m.wg.Wait()
		m.setState(StateClosed, "closed")
	})
	return err
}

func (m *Manager) current() (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch {
	case m.state == StateClosed:
		return nil, ErrClosed
	case m.session == nil:
		return nil, ErrNotConnected
	}
	return m.session, nil
}

// attempt dials and installs the session.
func (m *Manager) attempt(ctx context.Context) error {
	s, err := m.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	m.mu.Lock()
	if m.state == StateClosed || m.ctx.Err() != nil {
		m.mu.Unlock()
		s.Close()
		return ErrClosed
	}
	m.session = s
	m.mu.Unlock()

	m.backoff.Reset()
	m.setState(StateConnected, "")
	return nil
}

func (m *Manager) loop() {
	defer m.wg.Done()

	for {
		m.mu.RLock()
		s := m.session
		m.mu.RUnlock()

		if s != nil {
			select {
			case <-m.ctx.Done():
				return
			case <-s.Done():
			}
			if m.ctx.Err() != nil {
				return
			}
			m.mu.Lock()
			if m.session == s {
				m.session = nil
			}
			m.mu.Unlock()
			m.logger.Warn("gateway session lost")
			m.setState(StateReconnecting, "session ended")
		}

		if !m.redial() {
			return
		}
	}
}

// redial dials with backoff until a session is up. It returns false when
// the manager is closed.
func (m *Manager) redial() bool {
	for {
		delay := m.backoff.Next()
		m.logger.Debug("redialing gateway", "attempt", m.backoff.Attempts(), "delay", delay)

		t := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.dialTimeout)
		err := m.attempt(ctx)
		cancel()
		switch {
		case err == nil:
			m.logger.Info("gateway reconnected")
			return true
		case m.ctx.Err() != nil:
			return false
		}
		m.logger.Debug("redial failed", "error", err)
	}
}

func (m *Manager) setState(newState State, reason string) {
	m.mu.Lock()
	oldState := m.state
	if oldState == newState || oldState == StateClosed {
		m.mu.Unlock()
		return
	}
	m.switchLocked(newState)
	m.mu.Unlock()
	m.notify(oldState, newState, reason)
}

func (m *Manager) switchLocked(newState State) {
	if newState == StateConnected {
		close(m.connected)
	} else if m.state == StateConnected {
		m.connected = make(chan struct{})
	}
	m.state = newState
}

func (m *Manager) notify(oldState, newState State, reason string) {
	m.protocol.Log(log.StateEvent(log.LayerTransport, log.StateEntityConnection, oldState.String(), newState.String(), reason))
	if m.onState != nil {
		m.onState(oldState, newState)
	}
}
