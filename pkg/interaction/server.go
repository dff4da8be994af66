package interaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

// Store holds the object values of the nodes behind a gateway.
//
// The server validates every request against the node's dictionary before
// calling ReadObject or WriteObject, so implementations only check values
// the dictionary cannot express (reserved enums, cross-object rules).
// Errors are converted to abort codes with wire.AbortFor.
type Store interface {
	// Dictionary returns the dictionary of node, or false if the node is
	// not served.
	Dictionary(node uint8) (*od.Dictionary, bool)

	ReadObject(ctx context.Context, node uint8, addr od.Address) ([]byte, error)
	WriteObject(ctx context.Context, node uint8, addr od.Address, data []byte) error
}

// Server answers object read and write requests from a Store.
type Server struct {
	mu sync.RWMutex

	store  Store
	logger log.Logger
}

// NewServer creates a server for store.
func NewServer(store Store) *Server {
	return &Server{
		store:  store,
		logger: log.NoopLogger{},
	}
}

// SetLogger sets the protocol event logger.
func (s *Server) SetLogger(l log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = log.OrNoop(l)
}

// HandleRequest processes a request and returns its response.
func (s *Server) HandleRequest(ctx context.Context, req *wire.Request) *wire.Response {
	s.mu.RLock()
	logger := s.logger
	s.mu.RUnlock()

	start := time.Now()
	logger.Log(log.RequestEvent(log.DirectionIn, log.RoleBridge, req))

	var resp *wire.Response
	switch req.Operation {
	case wire.OpRead:
		resp = s.handleRead(ctx, req)
	case wire.OpWrite:
		resp = s.handleWrite(ctx, req)
	default:
		resp = wire.AbortResponse(req.MessageID, wire.AbortCommandSpecifier)
	}

	logger.Log(log.ResponseEvent(log.DirectionOut, log.RoleBridge, req, resp, time.Since(start)))
	return resp
}

func (s *Server) dictionary(req *wire.Request) (*od.Dictionary, *wire.Response) {
	dict, ok := s.store.Dictionary(req.Node)
	if !ok {
		// An absent node never answers.
		return nil, wire.AbortResponse(req.MessageID, wire.AbortTimeout)
	}
	return dict, nil
}

func (s *Server) handleRead(ctx context.Context, req *wire.Request) *wire.Response {
	dict, abort := s.dictionary(req)
	if abort != nil {
		return abort
	}

	addr := req.Address()
	sub, err := dict.ValidateRead(addr)
	if err != nil {
		return wire.AbortResponse(req.MessageID, wire.AbortFor(err))
	}

	data, err := s.store.ReadObject(ctx, req.Node, addr)
	if err != nil {
		return wire.AbortResponse(req.MessageID, wire.AbortFor(err))
	}
	if err := sub.CheckRead(data); err != nil {
		return wire.AbortResponse(req.MessageID, wire.AbortDeviceIncompatible)
	}

	return &wire.Response{MessageID: req.MessageID, Data: data}
}

func (s *Server) handleWrite(ctx context.Context, req *wire.Request) *wire.Response {
	dict, abort := s.dictionary(req)
	if abort != nil {
		return abort
	}

	addr := req.Address()
	if _, err := dict.ValidateWrite(addr, req.Data); err != nil {
		return wire.AbortResponse(req.MessageID, wire.AbortFor(err))
	}
	if err := s.store.WriteObject(ctx, req.Node, addr, req.Data); err != nil {
		return wire.AbortResponse(req.MessageID, wire.AbortFor(err))
	}

	return &wire.Response{MessageID: req.MessageID}
}

// HandleRequestData decodes a request, handles it and encodes the
// response. Requests too malformed to carry a message ID are dropped and
// return nil data.
func (s *Server) HandleRequestData(ctx context.Context, data []byte) ([]byte, error) {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		id, peekErr := wire.PeekMessageID(data)
		if peekErr != nil || id == 0 {
			return nil, err
		}
		return wire.EncodeResponse(wire.AbortResponse(id, wire.AbortCommandSpecifier))
	}

	resp := s.HandleRequest(ctx, req)
	out, err := wire.EncodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}
